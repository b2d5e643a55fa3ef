package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/harness"
)

// ScenariosOptions holds flags for the scenarios command.
type ScenariosOptions struct {
	*RootOptions
	Filter string // scenario name glob
	Golden string // golden snapshot directory
	Update bool   // rewrite golden snapshots
}

// ScenarioResult holds the result of a single scenario.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// ScenariosResult holds the overall result.
type ScenariosResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewScenariosCommand creates the scenarios command.
func NewScenariosCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenariosOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenarios <scenarios-dir>",
		Short: "Run conversation scenarios",
		Long: `Run YAML conversation scenarios against an in-memory ledger.

Each scenario asks one or more questions with a fixed clock, optional
scripted interpretation-service replies, and expectations on the plan
and answer. With --golden, each scenario's snapshot is also compared
against <golden>/<name>.golden.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, malformed scenario, etc.)

Examples:
  tally scenarios ./scenarios
  tally scenarios ./scenarios --filter "food_*"
  tally scenarios ./scenarios --golden ./golden --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by name glob")
	cmd.Flags().StringVar(&opts.Golden, "golden", "", "directory of golden snapshots")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden snapshots (requires --golden)")

	return cmd
}

func runScenarios(opts *ScenariosOptions, dir string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}
	if opts.Update && opts.Golden == "" {
		return NewExitError(ExitCommandError, "--update requires --golden")
	}

	scenarios, err := harness.LoadDir(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenarios", err)
	}
	if opts.Filter != "" {
		kept := scenarios[:0]
		for _, s := range scenarios {
			matched, err := filepath.Match(opts.Filter, s.Name)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid filter pattern", err)
			}
			if matched {
				kept = append(kept, s)
			}
		}
		scenarios = kept
	}

	if len(scenarios) == 0 {
		if opts.Format == "json" {
			return f.Success(ScenariosResult{Scenarios: []ScenarioResult{}})
		}
		return f.Success("No scenarios found.")
	}

	a, err := loadApp(opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer a.close()

	results, err := harness.RunAll(cmd.Context(), scenarios, harness.WithLogger(a.logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenarios", err)
	}

	summary := ScenariosResult{
		Scenarios: make([]ScenarioResult, 0, len(results)),
		Total:     len(results),
	}
	for _, r := range results {
		sr := ScenarioResult{Name: r.Name, Pass: r.Pass, Errors: r.Errors}
		if opts.Golden != "" {
			if err := checkGolden(opts, r); err != nil {
				sr.Pass = false
				sr.Errors = append(sr.Errors, err.Error())
			}
		}
		if sr.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
		summary.Scenarios = append(summary.Scenarios, sr)
	}

	if opts.Format == "json" {
		if summary.Failed > 0 {
			if err := f.Error(CodeScenarioFailed, fmt.Sprintf("%d scenario(s) failed", summary.Failed), summary); err != nil {
				return err
			}
		} else if err := f.Success(summary); err != nil {
			return err
		}
	} else {
		writeScenariosText(f, summary)
	}

	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", summary.Failed))
	}
	return nil
}

// checkGolden compares r's snapshot with its golden file, or rewrites the
// file when updating.
func checkGolden(opts *ScenariosOptions, r *harness.Result) error {
	snap, err := harness.Snapshot(r)
	if err != nil {
		return fmt.Errorf("snapshot failed: %w", err)
	}
	path := filepath.Join(opts.Golden, r.Name+".golden")

	if opts.Update {
		if err := os.MkdirAll(opts.Golden, 0o755); err != nil {
			return fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(path, snap, 0o644); err != nil {
			return fmt.Errorf("failed to write golden file: %w", err)
		}
		return nil
	}

	want, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(want, snap) {
		return fmt.Errorf("snapshot does not match %s (run with --update to regenerate)", path)
	}
	return nil
}

func writeScenariosText(f *OutputFormatter, summary ScenariosResult) {
	w := f.Writer
	for _, sr := range summary.Scenarios {
		if sr.Pass {
			fmt.Fprintf(w, "✓ %s\n", sr.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", sr.Name)
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Summary: %d passed, %d failed, %d total\n", summary.Passed, summary.Failed, summary.Total)
	if summary.Failed == 0 {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
}
