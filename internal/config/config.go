// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"

	"github.com/maauso/motiontransfer/internal/motion"
	"github.com/maauso/motiontransfer/internal/storage"
)

// Static errors for configuration validation.
var (
	// ErrInvalidPort is returned when PORT is outside 1-65535.
	ErrInvalidPort = errors.New("config: PORT must be between 1 and 65535")
	// ErrS3RegionRequired is returned when S3_BUCKET is set without S3_REGION.
	ErrS3RegionRequired = errors.New("config: S3_REGION is required when S3_BUCKET is set")
	// ErrToolDirNotFound is returned when TOOL_DIR is not a directory.
	ErrToolDirNotFound = errors.New("config: TOOL_DIR does not exist")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port           int      `env:"PORT, default=8080" json:"port"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/motiontransfer" json:"temp_dir"`

	// Model tool settings
	PythonBin      string `env:"PYTHON_BIN, default=python" json:"python_bin"`
	ToolDir        string `env:"TOOL_DIR, default=." json:"tool_dir"`
	CropScript     string `env:"CROP_SCRIPT, default=crop-video.py" json:"crop_script"`
	DemoScript     string `env:"DEMO_SCRIPT, default=demo.py" json:"demo_script"`
	ConfigDir      string `env:"CONFIG_DIR, default=config" json:"config_dir"`
	CheckpointPath string `env:"CHECKPOINT_PATH, default=checkpoints/vox-cpk.pth.tar" json:"checkpoint_path"`
	UseCPU         bool   `env:"USE_CPU, default=true" json:"use_cpu"`
	AdaptScale     bool   `env:"ADAPT_SCALE, default=true" json:"adapt_scale"`

	// Media settings
	FFmpegPath  string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`
	VerifyCrop  bool   `env:"VERIFY_CROP, default=false" json:"verify_crop"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if a result bucket is configured.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

// S3Config returns the storage settings for S3 publishing.
func (c *Config) S3Config() storage.S3Config {
	return storage.S3Config{
		Bucket:          c.S3Bucket,
		Region:          c.S3Region,
		Endpoint:        c.S3Endpoint,
		AccessKeyID:     c.AWSAccessKeyID,
		SecretAccessKey: c.AWSSecretAccessKey,
	}
}

// MotionConfig returns the model tool layout.
func (c *Config) MotionConfig() motion.Config {
	return motion.Config{
		Python:     c.PythonBin,
		Dir:        c.ToolDir,
		CropScript: c.CropScript,
		DemoScript: c.DemoScript,
		ConfigDir:  c.ConfigDir,
		Checkpoint: c.CheckpointPath,
		CPU:        c.UseCPU,
		AdaptScale: c.AdaptScale,
	}
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	return LoadFrom(envconfig.OsLookuper())
}

// LoadFrom reads configuration from l.
func LoadFrom(l envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.S3Bucket != "" && c.S3Region == "" {
		return ErrS3RegionRequired
	}
	if info, err := os.Stat(c.ToolDir); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrToolDirNotFound, c.ToolDir)
	}
	return nil
}

// NewLogger creates a structured logger writing to stdout.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo creates a structured logger writing to w.
// LogFormat "json" selects JSON output, anything else human-readable text.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, PythonBin: %s, ToolDir: %s, UseCPU: %t, FFmpegPath: %s, VerifyCrop: %t, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.PythonBin,
		c.ToolDir,
		c.UseCPU,
		c.FFmpegPath,
		c.VerifyCrop,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
