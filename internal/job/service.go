package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"sync"

	"github.com/maauso/motiontransfer/internal/motion"
	"github.com/maauso/motiontransfer/internal/pipeline"
	"github.com/maauso/motiontransfer/internal/storage"
)

// Static errors for the run service.
var (
	// ErrJobActive is returned when deleting a job that has not finished.
	ErrJobActive = errors.New("job is still processing")
	// ErrPublishUnavailable is returned when a job asks for S3 publishing
	// and no bucket is configured.
	ErrPublishUnavailable = errors.New("push_to_s3 requested but S3 is not configured")
	// ErrPublishFailed is recorded when the result could not be uploaded.
	ErrPublishFailed = errors.New("failed to publish result video")
)

// StagePublish is the job stage reported while uploading the result.
const StagePublish = "publish"

// Executor runs the motion-transfer pipeline.
type Executor interface {
	Execute(ctx context.Context, req pipeline.Request, obs pipeline.Observer) pipeline.Outcome
}

// Upload is a named input file.
type Upload struct {
	// Name is the client file name. Only its extension is kept.
	Name string
	Data io.Reader
}

// CreateJobInput contains the inputs of a new run.
type CreateJobInput struct {
	SourceImage  Upload
	DrivingVideo Upload
	Quality      int
	Model        string
	Relative     bool
	// OutputName is the result file name; directories are stripped.
	OutputName string
	PushToS3   bool
}

// RunService creates jobs and drives them through the pipeline.
// Only one job runs at a time; others wait in IN_QUEUE.
type RunService struct {
	repo     Repository
	executor Executor
	store    storage.Storage
	logger   *slog.Logger

	// run serializes pipeline executions.
	run sync.Mutex

	publishing   bool
	resultPrefix string
}

// ServiceOption configures a RunService.
type ServiceOption func(*RunService)

// WithPublishing allows jobs to request S3 publishing of their result.
func WithPublishing(enabled bool) ServiceOption {
	return func(s *RunService) {
		s.publishing = enabled
	}
}

// WithResultPrefix sets the object key prefix of published results.
// Defaults to "results".
func WithResultPrefix(prefix string) ServiceOption {
	return func(s *RunService) {
		s.resultPrefix = prefix
	}
}

// NewRunService creates a new RunService.
func NewRunService(repo Repository, executor Executor, store storage.Storage, logger *slog.Logger, opts ...ServiceOption) *RunService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &RunService{
		repo:         repo,
		executor:     executor,
		store:        store,
		logger:       logger,
		resultPrefix: "results",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJob stores the uploaded inputs and persists a new job in IN_QUEUE.
func (s *RunService) CreateJob(ctx context.Context, input CreateJobInput) (*Job, error) {
	if input.PushToS3 && !s.publishing {
		return nil, ErrPublishUnavailable
	}

	job := New()
	job.Quality = input.Quality
	job.Model = input.Model
	job.Relative = input.Relative
	job.OutputName = filepath.Base(input.OutputName)
	if input.OutputName == "" {
		job.OutputName = motion.DefaultOutputName
	}
	job.PushToS3 = input.PushToS3

	imagePath, err := s.store.SaveTemp(ctx, "source"+filepath.Ext(input.SourceImage.Name), input.SourceImage.Data)
	if err != nil {
		return nil, fmt.Errorf("save source image: %w", err)
	}
	videoPath, err := s.store.SaveTemp(ctx, "driving"+filepath.Ext(input.DrivingVideo.Name), input.DrivingVideo.Data)
	if err != nil {
		_ = s.store.CleanupTemp(ctx, []string{imagePath})
		return nil, fmt.Errorf("save driving video: %w", err)
	}
	job.SourceImagePath = imagePath
	job.DrivingVideoPath = videoPath

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.Int("quality", job.Quality),
		slog.String("model", job.Model),
		slog.Bool("relative", job.Relative),
		slog.Bool("push_to_s3", job.PushToS3),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		_ = s.store.CleanupTemp(ctx, job.Files())
		return nil, err
	}

	return job, nil
}

// GetJob retrieves a job by ID.
func (s *RunService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns all jobs, newest first.
func (s *RunService) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// DeleteJob removes a finished job and its files.
func (s *RunService) DeleteJob(ctx context.Context, id string) error {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !job.IsTerminal() {
		return ErrJobActive
	}

	if err := s.store.CleanupTemp(ctx, job.Files()); err != nil {
		s.logger.Warn("failed to remove job files",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
	}
	return s.repo.Delete(ctx, id)
}

// ProcessExistingJob runs the pipeline for a job created by CreateJob and
// records its stage, progress and outcome. It blocks until the pipeline is
// free and the run has finished.
func (s *RunService) ProcessExistingJob(ctx context.Context, jobID string) (*Job, error) {
	s.run.Lock()
	defer s.run.Unlock()

	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := job.Start(); err != nil {
		return nil, fmt.Errorf("start job %s: %w", jobID, err)
	}
	s.save(ctx, job)

	logger := s.logger.With(slog.String("job_id", job.ID))
	logger.Info("job started")

	req := pipeline.Request{
		SourceImagePath:  job.SourceImagePath,
		DrivingVideoPath: job.DrivingVideoPath,
		Quality:          job.Quality,
		Model:            motion.Variant(job.Model),
		Relative:         job.Relative,
		OutputName:       filepath.Join(s.store.Dir(), job.ID+"_"+job.OutputName),
	}

	outcome := s.executor.Execute(ctx, req, pipeline.Observer{
		OnStage: func(stage pipeline.Stage) {
			if stage.IsTerminal() {
				return
			}
			job.SetStage(string(stage))
			s.save(ctx, job)
		},
		OnProgress: func(percent int) {
			job.UpdateProgress(percent)
			s.save(ctx, job)
		},
	})
	if outcome.CroppedPath != "" {
		job.SetCropped(outcome.CroppedPath)
	}

	if !outcome.Success() {
		return s.fail(ctx, job, string(outcome.Stage), outcome.Message)
	}

	if !job.PushToS3 {
		job.SetOutput(outcome.OutputPath, "")
		return s.complete(ctx, job)
	}

	job.SetStage(StagePublish)
	s.save(ctx, job)
	url, err := s.publish(ctx, job.ID, outcome.OutputPath)
	if err != nil {
		job.SetOutput(outcome.OutputPath, "")
		return s.fail(ctx, job, StagePublish, fmt.Sprintf("%v: %v", ErrPublishFailed, err))
	}

	if err := s.store.CleanupTemp(ctx, []string{outcome.OutputPath, outcome.CroppedPath}); err != nil {
		logger.Warn("failed to remove published files", slog.String("error", err.Error()))
	}
	job.SetCropped("")
	job.SetOutput("", url)
	return s.complete(ctx, job)
}

func (s *RunService) publish(ctx context.Context, jobID, outputPath string) (string, error) {
	f, err := s.store.LoadTemp(ctx, outputPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	key := path.Join(s.resultPrefix, jobID+filepath.Ext(outputPath))
	return s.store.Publish(ctx, key, f)
}

func (s *RunService) complete(ctx context.Context, job *Job) (*Job, error) {
	job.SetStage(string(pipeline.StageDone))
	job.UpdateProgress(pipeline.ProgressDone)
	if err := job.Complete(); err != nil {
		return nil, fmt.Errorf("complete job %s: %w", job.ID, err)
	}
	s.save(ctx, job)

	s.logger.Info("job completed",
		slog.String("job_id", job.ID),
		slog.String("output", job.OutputVideoPath),
		slog.String("video_url", job.VideoURL),
	)
	return job.Clone(), nil
}

func (s *RunService) fail(ctx context.Context, job *Job, stage, message string) (*Job, error) {
	if err := job.Fail(stage, message); err != nil {
		return nil, fmt.Errorf("fail job %s: %w", job.ID, err)
	}
	s.save(ctx, job)

	s.logger.Error("job failed",
		slog.String("job_id", job.ID),
		slog.String("stage", stage),
		slog.String("error", message),
	)
	return job.Clone(), nil
}

// save persists job; failures are logged since the run itself goes on.
func (s *RunService) save(ctx context.Context, job *Job) {
	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Warn("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}
