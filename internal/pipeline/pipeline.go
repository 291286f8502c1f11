// Package pipeline runs the motion-transfer pipeline: suggest a face crop for
// the driving video, apply it, then animate the source image with the cropped
// video.
//
// Each stage runs an external tool and blocks until it exits; the next stage
// consumes the file the previous one wrote. The first failure ends the run and
// files written by earlier stages are left in place.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/motiontransfer/internal/command"
	"github.com/maauso/motiontransfer/internal/crop"
	"github.com/maauso/motiontransfer/internal/media"
	"github.com/maauso/motiontransfer/internal/motion"
)

// Outcome is the terminal result of one run.
type Outcome struct {
	// Stage is StageDone on success, otherwise the stage that failed.
	Stage Stage
	// OutputPath is the result video path on success.
	OutputPath string
	// CroppedPath is the cropped driving video, once the crop stage was reached.
	CroppedPath string
	// Message is the human-readable failure message.
	Message string
	// Err is the failure cause: *ValidationError or *StageError.
	Err error
}

// Success reports whether the run produced the result video.
func (o Outcome) Success() bool {
	return o.Err == nil && o.Stage == StageDone
}

// Observer receives run notifications. Nil callbacks are skipped.
type Observer struct {
	// OnStage is called when a stage starts and on the terminal stage.
	OnStage func(stage Stage)
	// OnProgress is called with 30, 60 and 100 as stages complete.
	OnProgress func(percent int)
	// OnOutcome is called exactly once at the end of the run.
	OnOutcome func(outcome Outcome)
}

// Orchestrator sequences the pipeline stages.
type Orchestrator struct {
	runner     command.Runner
	tools      *motion.Tools
	media      media.Processor
	logger     *slog.Logger
	validate   *validator.Validate
	output     io.Writer
	verifyCrop bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithToolOutput mirrors the output of the crop and inference tools to w.
func WithToolOutput(w io.Writer) Option {
	return func(o *Orchestrator) {
		o.output = w
	}
}

// WithCropVerification probes the cropped video with ffprobe before inference
// and fails the crop stage when it is missing or empty.
func WithCropVerification(enabled bool) Option {
	return func(o *Orchestrator) {
		o.verifyCrop = enabled
	}
}

// New creates an Orchestrator.
func New(runner command.Runner, tools *motion.Tools, processor media.Processor, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		runner:   runner,
		tools:    tools,
		media:    processor,
		logger:   logger,
		validate: newValidator(),
		output:   io.Discard,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute runs the whole pipeline for req and returns its outcome. It never
// retries a stage and runs no stage after a failed one.
func (o *Orchestrator) Execute(ctx context.Context, req Request, obs Observer) Outcome {
	run := &execution{
		Orchestrator: o,
		req:          req,
		obs:          obs,
		stages:       newTracker(),
		logger:       o.logger.With(slog.String("driving_video", req.DrivingVideoPath)),
	}
	outcome := run.execute(ctx)
	if obs.OnOutcome != nil {
		obs.OnOutcome(outcome)
	}
	return outcome
}

// execution is the state of one Execute call.
type execution struct {
	*Orchestrator
	req     Request
	obs     Observer
	stages  *tracker
	logger  *slog.Logger
	cropped string
}

func (e *execution) execute(ctx context.Context) Outcome {
	if err := validate(e.validate, e.req); err != nil {
		return e.fail(err)
	}
	e.enter(StageSuggest)

	suggestion, err := e.suggest(ctx)
	if err != nil {
		return e.fail(err)
	}
	e.progress(ProgressSuggested)

	if err := e.advance(StageCrop); err != nil {
		return e.fail(err)
	}
	if err := e.crop(ctx, suggestion); err != nil {
		return e.fail(err)
	}

	if err := e.advance(StageInfer); err != nil {
		return e.fail(err)
	}
	e.progress(ProgressCropped)

	if err := e.infer(ctx); err != nil {
		return e.fail(err)
	}
	if err := e.advance(StageDone); err != nil {
		return e.fail(err)
	}
	e.progress(ProgressDone)

	e.logger.Info("pipeline completed",
		slog.String("output", e.req.Output()),
	)
	return Outcome{
		Stage:       StageDone,
		OutputPath:  e.req.Output(),
		CroppedPath: e.cropped,
	}
}

func (e *execution) suggest(ctx context.Context) (crop.Suggestion, error) {
	line := e.tools.SuggestCommand(e.req.DrivingVideoPath)
	e.logger.Info("requesting crop suggestion", slog.String("command", line.String()))

	res, err := e.runner.Run(ctx, line)
	if err != nil || !res.Success() {
		return crop.Suggestion{}, &StageError{
			Stage:      StageSuggest,
			Kind:       ErrSuggestionFailed,
			ExitCode:   res.ExitCode,
			Diagnostic: res.Stderr,
			Err:        err,
		}
	}

	suggestion, err := crop.Parse(res.Stdout)
	if err != nil {
		return crop.Suggestion{}, &StageError{
			Stage: StageSuggest,
			Kind:  ErrSuggestionUnparsable,
			Err:   err,
		}
	}

	e.logger.Info("crop suggestion received",
		slog.String("start", suggestion.Start),
		slog.String("duration", suggestion.Duration),
		slog.String("filter", suggestion.Filter),
	)
	return suggestion, nil
}

func (e *execution) crop(ctx context.Context, s crop.Suggestion) error {
	e.cropped = media.CroppedPath(e.req.DrivingVideoPath)
	line := e.media.CropCommand(e.req.DrivingVideoPath, e.cropped, s, e.req.Quality)
	e.logger.Info("cropping driving video", slog.String("command", line.String()))

	res, err := e.runner.Stream(ctx, line, e.output)
	if err != nil || !res.Success() {
		return &StageError{
			Stage:      StageCrop,
			Kind:       ErrCropFailed,
			ExitCode:   res.ExitCode,
			Diagnostic: res.Stderr,
			Err:        err,
		}
	}

	if e.verifyCrop {
		duration, err := e.media.MediaDuration(ctx, e.cropped)
		if err != nil {
			return &StageError{Stage: StageCrop, Kind: ErrCropFailed, Err: err}
		}
		e.logger.Debug("cropped video verified",
			slog.String("path", e.cropped),
			slog.Float64("duration_sec", duration),
		)
	}
	return nil
}

func (e *execution) infer(ctx context.Context) error {
	line := e.tools.InferenceCommand(motion.InferenceOptions{
		SourceImage:  e.req.SourceImagePath,
		DrivingVideo: e.cropped,
		Variant:      e.req.Variant(),
		Relative:     e.req.Relative,
		Result:       e.req.Output(),
	})
	e.logger.Info("running motion transfer", slog.String("command", line.String()))

	res, err := e.runner.Stream(ctx, line, e.output)
	if err != nil || !res.Success() {
		return &StageError{
			Stage:      StageInfer,
			Kind:       ErrInferenceFailed,
			ExitCode:   res.ExitCode,
			Diagnostic: res.Stderr,
			Err:        err,
		}
	}
	return nil
}

func (e *execution) enter(stage Stage) {
	if e.obs.OnStage != nil {
		e.obs.OnStage(stage)
	}
}

func (e *execution) advance(to Stage) error {
	if err := e.stages.advance(to); err != nil {
		return err
	}
	e.enter(to)
	return nil
}

func (e *execution) progress(percent int) {
	if e.obs.OnProgress != nil {
		e.obs.OnProgress(percent)
	}
}

// fail ends the run in StageFailed and builds the failure outcome.
func (e *execution) fail(err error) Outcome {
	failedAt := e.stages.current
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		failedAt = stageErr.Stage
	}
	_ = e.stages.advance(StageFailed)
	e.enter(StageFailed)

	e.logger.Error("pipeline failed",
		slog.String("stage", string(failedAt)),
		slog.String("error", err.Error()),
	)
	return Outcome{
		Stage:       failedAt,
		CroppedPath: e.cropped,
		Message:     err.Error(),
		Err:         err,
	}
}
