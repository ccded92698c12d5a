package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/teranos/autojson/generator"
	"github.com/teranos/autojson/gosym"
	"github.com/teranos/autojson/watch"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <project-file> <root-package> <output-dir>",
		Short: "Regenerate whenever the module changes",
		Long: `Run a generation pass, then watch the module's Go sources, go.mod and the
generator config and run again after each burst of changes. Stop with Ctrl+C.`,
		Args: usageArgs("<project-file> <root-package> <output-dir>"),
		RunE: runWatch,
	}
	cmd.Flags().Duration("debounce", watch.DefaultDebounce, "Quiet period after the last change before regenerating")
	cmd.Flags().Duration("min-interval", watch.DefaultMinInterval, "Minimum time between two passes")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	debounce, _ := cmd.Flags().GetDuration("debounce")
	minInterval, _ := cmd.Flags().GetDuration("min-interval")

	mod, err := gosym.FindModule(args[0])
	if err != nil {
		return err
	}

	opts := generator.Options{
		ProjectPath: args[0],
		RootPackage: args[1],
		OutputDir:   args[2],
		Flag:        newFlag(),
		Provider:    newProvider(),
	}
	w, err := watch.New(watch.Options{Root: mod.Dir, Debounce: debounce, MinInterval: minInterval},
		func(ctx context.Context) error {
			report, err := generator.Run(ctx, opts)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		})
	if err != nil {
		return err
	}
	return w.Run(cmd.Context())
}
