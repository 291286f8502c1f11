package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maauso/motiontransfer/internal/crop"
	"github.com/maauso/motiontransfer/internal/motion"
	"github.com/maauso/motiontransfer/internal/pipeline"
)

func (a *app) suggestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <video>",
		Short: "Print every crop the suggestion tool proposes for a driving video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.suggest(cmd, args[0])
		},
	}
}

func (a *app) suggest(cmd *cobra.Command, video string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	line := motion.NewTools(cfg.MotionConfig()).SuggestCommand(absPath(video))
	res, err := a.runner.Run(cmd.Context(), line)
	if err != nil || !res.Success() {
		return fmt.Errorf("%s: %w", pipeline.StageSuggest, &pipeline.StageError{
			Stage:      pipeline.StageSuggest,
			Kind:       pipeline.ErrSuggestionFailed,
			ExitCode:   res.ExitCode,
			Diagnostic: res.Stderr,
			Err:        err,
		})
	}

	suggestions, err := crop.ParseAll(res.Stdout)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", pipeline.StageSuggest, pipeline.ErrSuggestionUnparsable, err)
	}

	for i, s := range suggestions {
		fmt.Fprintf(a.stdout, "%d\tstart=%s\tduration=%s\tfilter=%s\n", i+1, s.Start, s.Duration, s.Filter)
	}
	return nil
}
