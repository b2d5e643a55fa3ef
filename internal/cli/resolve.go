package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/engine"
)

// QuestionOptions holds flags shared by resolve and answer.
type QuestionOptions struct {
	*RootOptions
	User  string // user whose expenses are queried
	Prior string // path to a JSON trusted filter set from an earlier turn
}

func (o *QuestionOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.User, "user", "u", "u1", "user id the question is scoped to")
	cmd.Flags().StringVar(&o.Prior, "prior", "", "JSON file with the previous turn's trusted filters")
}

func (o *QuestionOptions) request(args []string) (engine.Request, error) {
	prior, err := loadPrior(o.Prior)
	if err != nil {
		return engine.Request{}, err
	}
	return engine.Request{
		Text:   strings.Join(args, " "),
		UserID: o.User,
		Prior:  prior,
	}, nil
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QuestionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <question...>",
		Short: "Resolve a question into a query plan without running it",
		Long: `Resolve a natural-language question into a validated query plan.

The plan is printed but not executed. Questions that cannot be answered
safely produce a clarifying question and exit code 1.

Exit codes:
  0 - Plan built
  1 - Question unresolved
  2 - Command error (invalid request, bad config, etc.)

Examples:
  tally resolve "how much did I spend on food last month"
  tally resolve --format json top 5 expenses
  tally resolve --prior turn1.json "what about last week"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, args, cmd)
		},
	}
	opts.addFlags(cmd)

	return cmd
}

func runResolve(opts *QuestionOptions, args []string, cmd *cobra.Command) error {
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
	eng, err := a.engine(cmd.Context(), nil)
	if err != nil {
		return err
	}

	res, err := eng.Resolve(cmd.Context(), req)
	if err != nil {
		if res != nil && opts.Format != "json" {
			writeResolution(f.GetErrWriter(), res)
		}
		return reportEngineError(f, err)
	}

	if opts.Format == "json" {
		return f.Success(res)
	}
	writeResolution(f.Writer, res)
	return nil
}
