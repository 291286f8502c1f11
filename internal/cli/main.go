// Package cli implements the motiontransfer command line.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/maauso/motiontransfer/internal/command"
	"github.com/maauso/motiontransfer/internal/config"
)

// app holds what the subcommands share.
type app struct {
	runner command.Runner
	env    envconfig.Lookuper
	stdout io.Writer
	stderr io.Writer
}

// Option configures the root command.
type Option func(*app)

// WithRunner replaces the process runner used for the model tools and ffmpeg.
func WithRunner(r command.Runner) Option {
	return func(a *app) { a.runner = r }
}

// WithEnv replaces the environment configuration is read from.
func WithEnv(l envconfig.Lookuper) Option {
	return func(a *app) { a.env = l }
}

// WithOutput redirects command output.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(a *app) {
		a.stdout = stdout
		a.stderr = stderr
	}
}

// Main runs the CLI and exits with status 1 on failure.
func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// NewRootCommand builds the motiontransfer command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	a := &app{
		runner: command.NewExecRunner(),
		env:    envconfig.OsLookuper(),
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(a)
	}

	root := &cobra.Command{
		Use:   "motiontransfer",
		Short: "Animate a still face image with the motion of a driving video",
		Long: `motiontransfer crops the face region of a driving video and transfers its
motion onto a source image with a first-order motion model.

The model checkout and tools are located through environment variables
(TOOL_DIR, PYTHON_BIN, FFMPEG_PATH, ...), optionally read from a .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.AddCommand(a.runCommand(), a.suggestCommand(), a.serveCommand())
	return root
}

// loadConfig reads and validates the configuration.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(a.env)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
