// Package job tracks motion-transfer runs started through the HTTP API.
// A Job records the inputs of one run, the pipeline stage it is in, its
// progress and its outcome.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/motiontransfer/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job waits for the pipeline to be free.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the pipeline is processing the job.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the result video was produced.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates a stage failed or the inputs were rejected.
	StatusFailed Status = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusFailed},
	StatusRunning:   {StatusCompleted, StatusFailed},
	StatusCompleted: {},
	StatusFailed:    {},
}

func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Job is one motion-transfer run.
type Job struct {
	mu sync.RWMutex

	ID       string
	Status   Status
	Stage    string
	Progress int
	// Error is the failure message shown to the user.
	Error string

	SourceImagePath  string
	DrivingVideoPath string
	CroppedVideoPath string
	OutputVideoPath  string

	Quality    int
	Model      string
	Relative   bool
	OutputName string

	// PushToS3 publishes the result and drops the local copy.
	PushToS3 bool
	VideoURL string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// New creates a new Job with a generated ID in IN_QUEUE.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID in IN_QUEUE.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusInQueue,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo changes the job status.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start moves the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete moves the job to COMPLETED.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail moves the job to FAILED and records stage and message.
func (j *Job) Fail(stage, errMsg string) error {
	j.mu.Lock()
	j.Stage = stage
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// GetStatus returns the current job status.
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetStage records the pipeline stage the job is in.
func (j *Job) SetStage(stage string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Stage = stage
	j.UpdatedAt = time.Now()
}

// UpdateProgress sets the progress percentage, clamped to 0..100.
// Progress never moves backwards.
func (j *Job) UpdateProgress(progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	progress = max(0, min(progress, 100))
	if progress < j.Progress {
		return
	}
	j.Progress = progress
	j.UpdatedAt = time.Now()
}

// SetCropped records the cropped driving video path.
func (j *Job) SetCropped(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.CroppedVideoPath = path
	j.UpdatedAt = time.Now()
}

// SetOutput sets the output video path and optional published URL.
func (j *Job) SetOutput(videoPath, videoURL string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputVideoPath = videoPath
	j.VideoURL = videoURL
	j.UpdatedAt = time.Now()
}

// Files returns every local file the job owns.
func (j *Job) Files() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var files []string
	for _, p := range []string{j.SourceImagePath, j.DrivingVideoPath, j.CroppedVideoPath, j.OutputVideoPath} {
		if p != "" {
			files = append(files, p)
		}
	}
	return files
}

// IsTerminal returns true if the job is COMPLETED or FAILED.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Clone creates a copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:               j.ID,
		Status:           j.Status,
		Stage:            j.Stage,
		Progress:         j.Progress,
		Error:            j.Error,
		SourceImagePath:  j.SourceImagePath,
		DrivingVideoPath: j.DrivingVideoPath,
		CroppedVideoPath: j.CroppedVideoPath,
		OutputVideoPath:  j.OutputVideoPath,
		Quality:          j.Quality,
		Model:            j.Model,
		Relative:         j.Relative,
		OutputName:       j.OutputName,
		PushToS3:         j.PushToS3,
		VideoURL:         j.VideoURL,
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
		StartedAt:        j.StartedAt,
		CompletedAt:      j.CompletedAt,
	}
}
