// Package commands implements the autojsonctx command tree
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/autojson/errors"
	"github.com/teranos/autojson/generator"
	"github.com/teranos/autojson/gosym"
	"github.com/teranos/autojson/guard"
	"github.com/teranos/autojson/logger"
	"github.com/teranos/autojson/symtab"
)

// newProvider builds the symbol table provider; tests swap it for a fake
var newProvider = func() symtab.Provider { return gosym.NewProvider() }

// newFlag returns the recursion flag shared with child processes
var newFlag = func() guard.Flag { return guard.EnvFlag(guard.EnvVar) }

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "autojsonctx <project-file> <root-package> <output-dir>",
		Short: "Generate a reflect.Type registry for marked Go types",
		Long: `autojsonctx scans a Go module for types that embed the Serializable marker
and writes zz_generated.autojson.go into the output directory. The file declares
AutoJSONContext, a []reflect.Type with every marked type and its collection shapes
([]T, []*T, map[string]T by default).

Arguments:
  project-file  the module's go.mod
  root-package  import path of the package receiving the artifact ("./gen" is
                resolved against the module root)
  output-dir    directory of that package

Configuration is read from autojsonconfig.json, then .editorconfig
(autojson.* keys), next to the project file.

Examples:
  autojsonctx go.mod ./internal/registry internal/registry
  autojsonctx scan go.mod ./internal/registry
  autojsonctx config . --format yaml`,
		Args:          generateArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			verbosity, _ := cmd.Flags().GetCount("verbose")
			jsonLog, _ := cmd.Flags().GetBool("json-log")
			if err := logger.InitializeWithWriter(cmd.ErrOrStderr(), jsonLog, verbosity); err != nil {
				return errors.Wrap(err, "failed to initialize logger")
			}
			logger.Debugw("Logger ready", "level", logger.LevelName(verbosity), "command", cmd.Name())
			return nil
		},
		RunE: runGenerate,
	}

	root.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	root.PersistentFlags().Bool("json-log", false, "Emit logs as JSON")

	root.AddCommand(newScanCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the CLI and returns the process exit code
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}

	verbosity, _ := root.PersistentFlags().GetCount("verbose")
	printError(stderr, err, verbosity)
	if errors.IsUsageError(err) {
		fmt.Fprintln(stderr)
		fmt.Fprint(stderr, cmd.UsageString())
	}
	return 1
}

// printError writes the error with its hints; -v adds the full cause chain
// with stack traces
func printError(w io.Writer, err error, verbosity int) {
	pterm.Error.WithWriter(w).Println(err.Error())
	for _, hint := range errors.GetAllHints(err) {
		fmt.Fprintf(w, "  hint: %s\n", hint)
	}
	for _, detail := range errors.GetAllDetails(err) {
		fmt.Fprintf(w, "  detail: %s\n", detail)
	}
	if verbosity >= logger.VerbosityInfo {
		fmt.Fprintf(w, "\n%+v\n", err)
	}
}

func generateArgs(cmd *cobra.Command, args []string) error {
	if len(args) < 3 {
		return errors.NewUsageError("expected <project-file> <root-package> <output-dir>, got %d argument(s)", len(args))
	}
	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if len(args) > 3 {
		logger.Warnw("Ignoring extra arguments", "args", args[3:])
	}

	report, err := generator.Run(cmd.Context(), generator.Options{
		ProjectPath: args[0],
		RootPackage: args[1],
		OutputDir:   args[2],
		Flag:        newFlag(),
		Provider:    newProvider(),
	})
	if err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), report)
	return nil
}

func printReport(w io.Writer, report *generator.Report) {
	switch {
	case report.Skipped != guard.NotSkipped:
		pterm.Info.WithWriter(w).Printfln("Generation skipped: %s", report.Skipped)
	case !report.Changed:
		pterm.Info.WithWriter(w).Printfln("No changes detected, %s left as is (%d types)", report.OutputPath, report.TypeCount)
	default:
		pterm.Success.WithWriter(w).Printfln("Generated %s (%d types, %d registrations)",
			report.OutputPath, report.TypeCount, report.Registrations)
	}
}
