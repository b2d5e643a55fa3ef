package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/store"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	DB string
}

// SeedResult is the seed command's success payload.
type SeedResult struct {
	Inserted int     `json:"inserted"`
	DB       string  `json:"db"`
	IDs      []int64 `json:"ids"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed <expenses.yaml>",
		Short: "Load expenses from a YAML file into the database",
		Long: `Load the expenses: list of a YAML file into the expense database.

Each entry needs user_id, date (YYYY-MM-DD), amount (minor units) and
category. Subcategory, description, payment_method and companions are
optional. The file is validated in full before anything is written.

Examples:
  tally seed ledger.yaml
  tally seed --db /tmp/expenses.db ledger.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, args[0], cmd)
		},
	}
	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite database path (default from config)")

	return cmd
}

func runSeed(opts *SeedOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	file, err := os.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open expenses file", err)
	}
	defer file.Close()

	expenses, err := store.LoadExpenses(file)
	if err != nil {
		if outErr := f.Error(CodeInvalidRequest, err.Error(), map[string]string{"file": path}); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "invalid expenses file", err)
	}

	a, err := loadApp(opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer a.close()

	st, db, err := a.openStore(opts.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	result := SeedResult{DB: db, IDs: make([]int64, 0, len(expenses))}
	for _, e := range expenses {
		id, err := st.InsertExpense(cmd.Context(), e)
		if err != nil {
			if outErr := f.Error(CodeStorage, err.Error(), map[string]string{"date": e.Date, "category": e.Category}); outErr != nil {
				return outErr
			}
			return WrapExitError(ExitFailure, "failed to insert expense", err)
		}
		result.IDs = append(result.IDs, id)
		f.VerboseLog("Inserted expense %d (%s %s)", id, e.Date, e.Category)
	}
	result.Inserted = len(result.IDs)

	if opts.Format == "json" {
		return f.Success(result)
	}
	return f.Success(fmt.Sprintf("Inserted %d expense(s) into %s", result.Inserted, db))
}
