package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AnswerOptions holds flags for the answer command.
type AnswerOptions struct {
	QuestionOptions
	DB string // database path, overrides config
}

// NewAnswerCommand creates the answer command.
func NewAnswerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnswerOptions{QuestionOptions: QuestionOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "answer <question...>",
		Short: "Resolve a question and run its plan against the expense database",
		Long: `Resolve a natural-language question and execute the resulting plan
as a single read against the expense database.

Exit codes:
  0 - Question answered
  1 - Question unresolved or storage failure
  2 - Command error (invalid request, bad config, database not found, etc.)

Examples:
  tally answer "how much did I spend on food last month"
  tally answer --db expenses.db "total per category in March"
  tally answer --format json --user u2 list my expenses`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnswer(opts, args, cmd)
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite database path (default from config)")

	return cmd
}

func runAnswer(opts *AnswerOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	a, err := loadApp(opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer a.close()

	req, err := opts.request(args)
	if err != nil {
		return err
	}
	st, db, err := a.openStore(opts.DB)
	if err != nil {
		return err
	}
	defer st.Close()
	f.VerboseLog("Using database %s", db)

	eng, err := a.engine(cmd.Context(), nil)
	if err != nil {
		return err
	}

	ans, err := eng.Answer(cmd.Context(), req, st)
	if err != nil {
		return reportEngineError(f, err)
	}

	if opts.Format == "json" {
		return f.Success(ans)
	}
	writeResolution(f.Writer, ans.Resolution)
	fmt.Fprintln(f.Writer)
	writeResult(f.Writer, ans.Result, a.cfg.MinorUnits)
	return nil
}
