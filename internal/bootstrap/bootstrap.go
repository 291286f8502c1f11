// Package bootstrap wires the motion-transfer components from configuration.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/maauso/motiontransfer/internal/command"
	"github.com/maauso/motiontransfer/internal/config"
	"github.com/maauso/motiontransfer/internal/job"
	"github.com/maauso/motiontransfer/internal/media"
	"github.com/maauso/motiontransfer/internal/motion"
	"github.com/maauso/motiontransfer/internal/pipeline"
	"github.com/maauso/motiontransfer/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Pipeline   *pipeline.Orchestrator
	RunService *job.RunService
	Storage    storage.Storage
}

// NewPipeline creates the orchestrator with the tools described by cfg.
func NewPipeline(cfg *config.Config, runner command.Runner, logger *slog.Logger, opts ...pipeline.Option) *pipeline.Orchestrator {
	if runner == nil {
		runner = command.NewExecRunner()
	}
	tools := motion.NewTools(cfg.MotionConfig())
	processor := media.NewFFmpegProcessor(cfg.FFmpegPath, cfg.FFprobePath, runner)

	opts = append([]pipeline.Option{pipeline.WithCropVerification(cfg.VerifyCrop)}, opts...)
	return pipeline.New(runner, tools, processor, logger, opts...)
}

// NewDependencies creates and initializes all dependencies for the HTTP server.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	orchestrator := NewPipeline(cfg, command.NewExecRunner(), logger)
	svc := job.NewRunService(
		job.NewMemoryRepository(),
		orchestrator,
		store,
		logger,
		job.WithPublishing(cfg.S3Enabled()),
	)

	return &Dependencies{
		Pipeline:   orchestrator,
		RunService: svc,
		Storage:    store,
	}, nil
}

// initStorage creates the storage backend: S3 publishing when a bucket is
// configured, local files only otherwise.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Store, err := storage.NewS3Storage(cfg.TempDir, cfg.S3Config())
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
