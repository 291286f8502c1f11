package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/maauso/motiontransfer/internal/bootstrap"
	"github.com/maauso/motiontransfer/internal/media"
	"github.com/maauso/motiontransfer/internal/motion"
	"github.com/maauso/motiontransfer/internal/pipeline"
)

type runFlags struct {
	source   string
	driving  string
	crf      int
	model    string
	relative bool
	output   string
	verbose  bool
}

func (a *app) runCommand() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Crop the driving video and animate the source image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.source, "source", "", "Source image to animate")
	cmd.Flags().StringVar(&f.driving, "driving", "", "Driving video")
	cmd.Flags().IntVar(&f.crf, "crf", media.DefaultQuality,
		fmt.Sprintf("x264 CRF of the cropped video (%d-%d, lower is better)", media.MinQuality, media.MaxQuality))
	cmd.Flags().StringVar(&f.model, "model", string(motion.DefaultVariant), "Model configuration ("+variantNames()+")")
	cmd.Flags().BoolVar(&f.relative, "relative", false, "Use motion relative to the first driving frame")
	cmd.Flags().StringVarP(&f.output, "output", "o", motion.DefaultOutputName, "Result video")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Show logs and tool output instead of a progress bar")
	return cmd
}

func (a *app) run(cmd *cobra.Command, f runFlags) error {
	model, err := motion.ParseVariant(f.model)
	if err != nil {
		return fmt.Errorf("--model: %w", err)
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if !f.verbose {
		cfg.LogLevel = "error"
	}
	logger := cfg.NewLoggerTo(a.stderr)

	req := pipeline.Request{
		SourceImagePath:  absPath(f.source),
		DrivingVideoPath: absPath(f.driving),
		Quality:          f.crf,
		Model:            model,
		Relative:         f.relative,
		OutputName:       absPath(f.output),
	}

	var opts []pipeline.Option
	if f.verbose {
		opts = append(opts, pipeline.WithToolOutput(a.stderr))
	}
	orchestrator := bootstrap.NewPipeline(cfg, a.runner, logger, opts...)

	var obs pipeline.Observer
	var bar *progressbar.ProgressBar
	if !f.verbose {
		bar = newProgressBar(a.stderr)
		obs.OnStage = func(s pipeline.Stage) {
			if !s.IsTerminal() {
				bar.Describe(string(s))
			}
		}
		obs.OnProgress = func(p int) { _ = bar.Set(p) }
	}

	out := orchestrator.Execute(cmd.Context(), req, obs)
	if bar != nil {
		if out.Success() {
			_ = bar.Finish()
		}
		fmt.Fprintln(a.stderr)
	}
	if !out.Success() {
		return fmt.Errorf("%s: %w", out.Stage, out.Err)
	}

	fmt.Fprintf(a.stdout, "result: %s\n", out.OutputPath)
	return nil
}

func newProgressBar(w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(pipeline.ProgressDone,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(string(pipeline.StageSuggest)),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowCount(),
	)
}

// absPath resolves p against the working directory, since the model tools run
// inside TOOL_DIR. Empty stays empty so missing inputs are still reported as such.
func absPath(p string) string {
	if p == "" {
		return ""
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}

func variantNames() string {
	names := make([]string, 0, len(motion.Variants()))
	for _, v := range motion.Variants() {
		names = append(names, string(v))
	}
	return strings.Join(names, ", ")
}
