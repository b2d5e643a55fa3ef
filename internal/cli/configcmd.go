package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Load the configuration (schema defaults, the --config file and
environment overrides), validate it and print the result.

API keys are redacted. A configuration error exits with code 2.

Examples:
  tally config
  tally config --config tally.cue --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig(rootOpts, cmd)
		},
	}

	return cmd
}

func runConfig(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	a, err := loadApp(opts, f)
	if err != nil {
		return err
	}
	defer a.close()

	cfg := a.cfg.Redacted()
	if opts.Format == "json" {
		return f.Success(cfg)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return f.Success(string(data))
}
