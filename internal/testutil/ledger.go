package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/store"
)

// Ledger is a small expense history for user u1 around Today, plus one row
// for u2 that must never leak into u1's answers.
//
//	u1: 2025-03-02 food      450.00 UPI         with Alice
//	u1: 2025-03-15 food      120.50 Cash
//	u1: 2025-03-20 travel   1500.00 Credit Card with Bob, Alice
//	u1: 2025-04-01 shopping  300.00 UPI
//	u1: 2025-04-14 food       80.00 Google Pay  with Alice
//	u2: 2025-03-05 food      999.00 Cash
func Ledger() []store.Expense {
	return []store.Expense{
		{UserID: "u1", Date: "2025-03-02", Amount: 45000, Category: "food", Subcategory: "dining", Description: "dinner", PaymentMethod: "UPI", Companions: []string{"Alice"}},
		{UserID: "u1", Date: "2025-03-15", Amount: 12050, Category: "food", Subcategory: "groceries", Description: "vegetables", PaymentMethod: "Cash"},
		{UserID: "u1", Date: "2025-03-20", Amount: 150000, Category: "travel", Description: "flight", PaymentMethod: "Credit Card", Companions: []string{"Bob", "Alice"}},
		{UserID: "u1", Date: "2025-04-01", Amount: 30000, Category: "shopping", Description: "shoes", PaymentMethod: "UPI"},
		{UserID: "u1", Date: "2025-04-14", Amount: 8000, Category: "food", Subcategory: "dining", Description: "coffee", PaymentMethod: "Google Pay", Companions: []string{"Alice"}},
		{UserID: "u2", Date: "2025-03-05", Amount: 99900, Category: "food", PaymentMethod: "Cash"},
	}
}

// OpenStore opens a fresh store in a temp directory, closed on cleanup.
func OpenStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "tally.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// SeedLedger inserts expenses (Ledger() when none are given) into s.
func SeedLedger(t *testing.T, s *store.Store, expenses ...store.Expense) {
	t.Helper()
	if len(expenses) == 0 {
		expenses = Ledger()
	}
	for _, e := range expenses {
		_, err := s.InsertExpense(context.Background(), e)
		require.NoError(t, err)
	}
}
