package store

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// InsertExpense inserts an expense and its companions in one transaction
// and returns the new row id.
//
// The query pipeline never calls this; it exists for seeding and tests.
func (s *Store) InsertExpense(ctx context.Context, e Expense) (int64, error) {
	if err := validateExpense(e); err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("insert expense: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO expenses
		(user_id, date, amount, category, subcategory, description, payment_method)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.UserID,
		e.Date,
		e.Amount,
		e.Category,
		e.Subcategory,
		e.Description,
		e.PaymentMethod,
	)
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert expense: last id: %w", err)
	}

	for _, name := range e.Companions {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		// Duplicate names on one expense collapse onto the primary key.
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO expense_companions (expense_id, name, name_key)
			VALUES (?, ?, ?)
			ON CONFLICT DO NOTHING
		`, id, name, strings.ToLower(name)); err != nil {
			return 0, fmt.Errorf("insert companion %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert expense: commit: %w", err)
	}
	return id, nil
}

func validateExpense(e Expense) error {
	if e.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if _, err := time.Parse(time.DateOnly, e.Date); err != nil {
		return fmt.Errorf("date %q: want YYYY-MM-DD", e.Date)
	}
	if e.Amount <= 0 {
		return fmt.Errorf("amount must be positive minor units, got %d", e.Amount)
	}
	if strings.TrimSpace(e.Category) == "" {
		return fmt.Errorf("category is required")
	}
	return nil
}

// seedFile is the YAML layout accepted by LoadExpenses.
type seedFile struct {
	Expenses []Expense `yaml:"expenses"`
}

// LoadExpenses decodes a YAML seed document. Unknown fields are rejected.
func LoadExpenses(r io.Reader) ([]Expense, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f seedFile
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	for i, e := range f.Expenses {
		if err := validateExpense(e); err != nil {
			return nil, fmt.Errorf("expenses[%d]: %w", i, err)
		}
	}
	return f.Expenses, nil
}
