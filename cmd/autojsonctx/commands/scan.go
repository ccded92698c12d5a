package commands

import (
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/autojson/errors"
	"github.com/teranos/autojson/generator"
)

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <project-file> <root-package>",
		Short: "List the types that would be registered",
		Long: `Resolve the config, load the module and print every eligible type with the
reason it matched. Nothing is written and no lock is taken.`,
		Args: usageArgs("<project-file> <root-package>"),
		RunE: runScan,
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	result, report, err := generator.Inspect(cmd.Context(), generator.Options{
		ProjectPath: args[0],
		RootPackage: args[1],
		Provider:    newProvider(),
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	pterm.Info.WithWriter(out).Printfln("Marker %s, config from %s", report.Marker, report.Config.Source)

	if len(result.Matches) == 0 {
		pterm.Warning.WithWriter(out).Printfln("No eligible types (%d types visited)", result.Visited)
		return nil
	}

	data := pterm.TableData{{"Type", "Kind", "Match", "Via"}}
	for _, m := range result.Matches {
		via := ""
		if m.Via != nil {
			via = m.Via.QualifiedName()
		}
		data = append(data, []string{m.Symbol.QualifiedName(), m.Symbol.Kind().String(), m.Reason.String(), via})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).WithWriter(out).Render(); err != nil {
		return errors.Wrap(err, "failed to render table")
	}

	pterm.Success.WithWriter(out).Printfln("%d eligible types, %d registrations (templates: %s)",
		report.TypeCount, report.Registrations, strings.Join(report.Config.Templates(), " "))
	return nil
}

// usageArgs requires exactly as many arguments as names lists
func usageArgs(names string) cobra.PositionalArgs {
	want := len(strings.Fields(names))
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != want {
			return errors.NewUsageError("expected %s, got %d argument(s)", names, len(args))
		}
		return nil
	}
}
