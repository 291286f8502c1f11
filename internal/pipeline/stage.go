package pipeline

import (
	"errors"
	"fmt"
)

// Stage is the progress of a pipeline run.
type Stage string

const (
	// StageSuggest runs the face-crop suggestion tool.
	StageSuggest Stage = "suggest"
	// StageCrop applies the suggested crop to the driving video.
	StageCrop Stage = "crop"
	// StageInfer runs motion-transfer inference.
	StageInfer Stage = "infer"
	// StageDone means the result video was written.
	StageDone Stage = "done"
	// StageFailed means a stage failed; the run is over.
	StageFailed Stage = "failed"
)

// Progress reported to observers once the named stage completes.
const (
	ProgressSuggested = 30
	ProgressCropped   = 60
	ProgressDone      = 100
)

// ErrInvalidTransition is returned when a stage change would move backwards.
var ErrInvalidTransition = errors.New("invalid stage transition")

// validTransitions allows only forward moves; every running stage may fail.
var validTransitions = map[Stage][]Stage{
	StageSuggest: {StageCrop, StageFailed},
	StageCrop:    {StageInfer, StageFailed},
	StageInfer:   {StageDone, StageFailed},
	StageDone:    {},
	StageFailed:  {},
}

// IsTerminal returns true for StageDone and StageFailed.
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageFailed
}

// tracker holds the current stage of one run.
type tracker struct {
	current Stage
}

func newTracker() *tracker {
	return &tracker{current: StageSuggest}
}

// advance moves to the next stage, rejecting backward or skipping moves.
func (t *tracker) advance(to Stage) error {
	for _, s := range validTransitions[t.current] {
		if s == to {
			t.current = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.current, to)
}
