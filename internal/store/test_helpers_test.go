package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/ir"
	"github.com/roach88/tally/internal/queryir"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// seedFixture inserts a small ledger for u1 plus one row for u2.
//
//	u1: 2025-03-02 Food     45000 UPI         with Alice
//	u1: 2025-03-15 Food     12050 Cash
//	u1: 2025-03-20 Travel  150000 Credit Card with Alice, Bob
//	u1: 2025-04-01 Shopping 30000 UPI
//	u2: 2025-03-05 Food     99900 Cash
func seedFixture(t *testing.T, s *Store) {
	t.Helper()
	fixture := []Expense{
		{UserID: "u1", Date: "2025-03-02", Amount: 45000, Category: "Food", Subcategory: "Dining", Description: "dinner", PaymentMethod: "UPI", Companions: []string{"Alice"}},
		{UserID: "u1", Date: "2025-03-15", Amount: 12050, Category: "Food", Subcategory: "Groceries", Description: "vegetables", PaymentMethod: "Cash"},
		{UserID: "u1", Date: "2025-03-20", Amount: 150000, Category: "Travel", Description: "flight", PaymentMethod: "Credit Card", Companions: []string{"Bob", "Alice"}},
		{UserID: "u1", Date: "2025-04-01", Amount: 30000, Category: "Shopping", Description: "shoes", PaymentMethod: "UPI"},
		{UserID: "u2", Date: "2025-03-05", Amount: 99900, Category: "Food", PaymentMethod: "Cash"},
	}
	for _, e := range fixture {
		_, err := s.InsertExpense(context.Background(), e)
		require.NoError(t, err)
	}
}

func userPlan(shape queryir.Shape, preds ...queryir.Predicate) *queryir.Plan {
	return &queryir.Plan{
		UserID: "u1",
		Shape:  shape,
		Filter: queryir.And{Predicates: append([]queryir.Predicate{
			queryir.Equals{Field: queryir.FieldUserID, Value: ir.IRString("u1")},
		}, preds...)},
		OrderBy: []queryir.Order{queryir.DefaultOrder},
		Limit:   200,
	}
}

func march() queryir.Predicate {
	return queryir.Between{Field: queryir.FieldDate, Low: ir.IRString("2025-03-01"), High: ir.IRString("2025-03-31")}
}
