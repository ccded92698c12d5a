package commands

import (
	"encoding/json"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/autojson/config"
	"github.com/teranos/autojson/errors"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config [project-dir]",
		Short: "Show the resolved generator config",
		Long: `Resolve the generator config for a project directory (default ".") and print it.

Resolution order:
  1. autojsonconfig.json
  2. .editorconfig (autojson.* keys)
  3. built-in defaults

Examples:
  autojsonctx config
  autojsonctx config ./service --format toml`,
		Args: cobra.MaximumNArgs(1),
		RunE: runConfig,
	}
	cmd.Flags().String("format", "json", "Output format: json, yaml, toml")
	return cmd
}

func runConfig(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = config.ProjectDir(args[0])
	}
	format, _ := cmd.Flags().GetString("format")

	cfg, err := config.Resolve(dir)
	if err != nil {
		return err
	}

	var data []byte
	switch format {
	case "json":
		data, err = json.MarshalIndent(cfg, "", "  ")
		data = append(data, '\n')
	case "yaml":
		data, err = yaml.Marshal(cfg)
	case "toml":
		data, err = toml.Marshal(cfg)
	default:
		return errors.NewUsageError("unsupported format: %s (supported: json, yaml, toml)", format)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to encode config as %s", format)
	}

	out := cmd.OutOrStdout()
	if cfg.Path != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "source: %s (%s)\n", cfg.Source, cfg.Path)
	} else {
		fmt.Fprintf(cmd.ErrOrStderr(), "source: %s\n", cfg.Source)
	}
	_, err = out.Write(data)
	return err
}
