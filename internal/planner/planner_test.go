package planner

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/filter"
	"github.com/roach88/tally/internal/ir"
	"github.com/roach88/tally/internal/queryir"
	"github.com/roach88/tally/internal/reconcile"
	"github.com/roach88/tally/internal/shape"
)

func intPtr(n int) *int { return &n }

func reconcileFor(trusted filter.TrustedSet) reconcile.Request {
	return reconcile.New(reconcile.Options{}).Reconcile(reconcile.Input{UserID: "u1", Trusted: trusted})
}

func TestBuild_AggregateFoodLastMonth(t *testing.T) {
	req := reconcileFor(filter.TrustedSet{
		DateRange:  &filter.DateRange{Start: "2025-03-01", End: "2025-03-31", Label: "last_month"},
		Categories: []string{"food"},
		Signals:    filter.Signals{Aggregate: queryir.AggSum},
	})
	res := shape.Resolve(req)
	require.Equal(t, queryir.ShapeAggregate, res.Shape)

	p, err := NewBuilder(200).Build(req, res)
	require.NoError(t, err)

	want := &queryir.Plan{
		ID:     p.ID,
		UserID: "u1",
		Shape:  queryir.ShapeAggregate,
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals{Field: queryir.FieldUserID, Value: ir.IRString("u1")},
			queryir.Between{Field: queryir.FieldDate, Low: ir.IRString("2025-03-01"), High: ir.IRString("2025-03-31")},
			queryir.In{Field: queryir.FieldCategory, Values: ir.Strings("food")},
		}},
		Aggregate: queryir.AggSum,
		Limit:     1,
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, p.ID, 64)
}

func TestBuild_AggregateWindow(t *testing.T) {
	tests := []struct {
		name    string
		trusted filter.TrustedSet
		window  int
		order   queryir.Order
	}{
		{
			name: "total of my top 3",
			trusted: filter.TrustedSet{
				Limit:   intPtr(3),
				Signals: filter.Signals{Aggregate: queryir.AggSum, RowNoun: true, Sort: &queryir.Order{Field: queryir.FieldAmount, Desc: true}},
			},
			window: 3,
			order:  queryir.Order{Field: queryir.FieldAmount, Desc: true},
		},
		{
			name: "how much were my last 5",
			trusted: filter.TrustedSet{
				Limit:   intPtr(5),
				Signals: filter.Signals{Aggregate: queryir.AggSum, RowNoun: true, Sort: &queryir.Order{Field: queryir.FieldDate, Desc: true}},
			},
			window: 5,
			order:  queryir.Order{Field: queryir.FieldDate, Desc: true},
		},
		{
			name: "window ignores the row cap",
			trusted: filter.TrustedSet{
				Limit:   intPtr(500),
				Signals: filter.Signals{Aggregate: queryir.AggAvg, Sort: &queryir.Order{Field: queryir.FieldAmount, Desc: true}},
			},
			window: 500,
			order:  queryir.Order{Field: queryir.FieldAmount, Desc: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := reconcileFor(tt.trusted)
			res := shape.Resolve(req)
			require.Equal(t, queryir.ShapeAggregate, res.Shape)

			p, err := NewBuilder(200).Build(req, res)
			require.NoError(t, err)
			assert.Equal(t, tt.window, p.Window)
			assert.Equal(t, []queryir.Order{tt.order}, p.OrderBy)
			assert.Equal(t, 1, p.Limit)
			assert.False(t, p.Capped)
		})
	}

	t.Run("no limit means every row", func(t *testing.T) {
		req := reconcileFor(filter.TrustedSet{Signals: filter.Signals{Aggregate: queryir.AggSum}})
		p, err := NewBuilder(200).Build(req, shape.Resolve(req))
		require.NoError(t, err)
		assert.Zero(t, p.Window)
		assert.Empty(t, p.OrderBy)
	})

	t.Run("window changes the plan id", func(t *testing.T) {
		sig := filter.Signals{Aggregate: queryir.AggSum, Sort: &queryir.Order{Field: queryir.FieldAmount, Desc: true}}
		whole := reconcileFor(filter.TrustedSet{Signals: sig})
		top := reconcileFor(filter.TrustedSet{Limit: intPtr(3), Signals: sig})

		a, err := NewBuilder(200).Build(whole, shape.Resolve(whole))
		require.NoError(t, err)
		b, err := NewBuilder(200).Build(top, shape.Resolve(top))
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})
}

func TestBuild_ListDefaults(t *testing.T) {
	req := reconcileFor(filter.TrustedSet{Signals: filter.Signals{ListVerb: true, RowNoun: true}})
	p, err := NewBuilder(200).Build(req, shape.Resolve(req))
	require.NoError(t, err)

	assert.Equal(t, queryir.ShapeList, p.Shape)
	assert.Len(t, p.Filter.Predicates, 1, "all time: only the user predicate")
	assert.Equal(t, []queryir.Order{queryir.DefaultOrder}, p.OrderBy)
	assert.Equal(t, 200, p.Limit)
	assert.True(t, p.Capped)
}

func TestBuild_LimitCap(t *testing.T) {
	tests := []struct {
		name   string
		limit  int
		want   int
		capped bool
	}{
		{"under cap", 5, 5, false},
		{"at cap", 50, 50, false},
		{"over cap", 5000, 50, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := reconcileFor(filter.TrustedSet{Limit: intPtr(tt.limit), Signals: filter.Signals{RowNoun: true}})
			p, err := NewBuilder(50).Build(req, shape.Resolve(req))
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Limit)
			assert.Equal(t, tt.capped, p.Capped)
		})
	}
}

func TestBuild_PredicateOrder(t *testing.T) {
	req := reconcileFor(filter.TrustedSet{
		PaymentMethods: []string{"UPI", "Cash"},
		Companions:     []string{"Bob", "Alice"},
		Categories:     []string{"travel", "food"},
		Amount:         &filter.AmountComparator{Op: filter.AmountGT, Value: 50000},
		DateRange:      &filter.DateRange{Start: "2025-03-01", End: "2025-03-31"},
	})
	p, err := NewBuilder(200).Build(req, shape.Resolve(req))
	require.NoError(t, err)

	want := []queryir.Predicate{
		queryir.Equals{Field: queryir.FieldUserID, Value: ir.IRString("u1")},
		queryir.Between{Field: queryir.FieldDate, Low: ir.IRString("2025-03-01"), High: ir.IRString("2025-03-31")},
		queryir.Compare{Field: queryir.FieldAmount, Op: queryir.OpGT, Value: ir.IRInt(50000)},
		queryir.In{Field: queryir.FieldCategory, Values: ir.Strings("food", "travel")},
		queryir.HasAny{Field: queryir.FieldCompanions, Values: ir.Strings("alice", "bob")},
		queryir.In{Field: queryir.FieldPaymentMethod, Values: ir.Strings("cash", "upi")},
	}
	if diff := cmp.Diff(want, p.Filter.Predicates); diff != "" {
		t.Errorf("predicates mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_BetweenAmount(t *testing.T) {
	req := reconcileFor(filter.TrustedSet{Amount: &filter.AmountComparator{Op: filter.AmountBetween, Value: 100, High: 500}})
	p, err := NewBuilder(200).Build(req, shape.Resolve(req))
	require.NoError(t, err)
	assert.Equal(t,
		queryir.Between{Field: queryir.FieldAmount, Low: ir.IRInt(100), High: ir.IRInt(500)},
		p.Filter.Predicates[1])
}

func TestBuild_Grouped(t *testing.T) {
	req := reconcileFor(filter.TrustedSet{Signals: filter.Signals{GroupBy: queryir.GroupCategory, Aggregate: queryir.AggSum}})
	p, err := NewBuilder(200).Build(req, shape.Resolve(req))
	require.NoError(t, err)

	assert.Equal(t, queryir.ShapeGrouped, p.Shape)
	assert.Equal(t, queryir.GroupCategory, p.GroupBy)
	assert.Equal(t, queryir.AggSum, p.Aggregate)
	assert.Nil(t, p.OrderBy)
	assert.Nil(t, p.Columns)
}

func TestBuild_StableID(t *testing.T) {
	a := reconcileFor(filter.TrustedSet{Categories: []string{"food", "travel"}, Signals: filter.Signals{Aggregate: queryir.AggSum}})
	b := reconcileFor(filter.TrustedSet{Categories: []string{"Travel", "food"}, Signals: filter.Signals{Aggregate: queryir.AggSum, RowNoun: true}})

	pa, err := NewBuilder(200).Build(a, shape.Resolve(a))
	require.NoError(t, err)
	pb, err := NewBuilder(200).Build(b, shape.Resolve(b))
	require.NoError(t, err)
	assert.Equal(t, pa.ID, pb.ID)

	c := reconcileFor(filter.TrustedSet{Categories: []string{"food"}, Signals: filter.Signals{Aggregate: queryir.AggSum}})
	pc, err := NewBuilder(200).Build(c, shape.Resolve(c))
	require.NoError(t, err)
	assert.NotEqual(t, pa.ID, pc.ID)
}

func TestBuild_InvariantViolations(t *testing.T) {
	tests := []struct {
		name string
		req  reconcile.Request
		res  shape.Resolution
	}{
		{
			name: "unresolved",
			req:  reconcile.Request{UserID: "u1"},
			res:  shape.Resolution{Shape: queryir.ShapeUnresolved, Reason: shape.ReasonNoSignal},
		},
		{
			name: "grouped without key",
			req:  reconcile.Request{UserID: "u1", Aggregate: queryir.AggSum, Limit: 10},
			res:  shape.Resolution{Shape: queryir.ShapeGrouped},
		},
		{
			name: "grouped on companions",
			req:  reconcile.Request{UserID: "u1", GroupBy: queryir.GroupCompanions, Aggregate: queryir.AggSum, Limit: 10},
			res:  shape.Resolution{Shape: queryir.ShapeGrouped},
		},
		{
			name: "aggregate without function",
			req:  reconcile.Request{UserID: "u1"},
			res:  shape.Resolution{Shape: queryir.ShapeAggregate},
		},
		{
			name: "list with aggregate",
			req:  reconcile.Request{UserID: "u1", Aggregate: queryir.AggSum, Sort: queryir.DefaultOrder, Limit: 10},
			res:  shape.Resolution{Shape: queryir.ShapeList},
		},
		{
			name: "missing user",
			req:  reconcile.Request{Sort: queryir.DefaultOrder, Limit: 10},
			res:  shape.Resolution{Shape: queryir.ShapeList},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewBuilder(200).Build(tt.req, tt.res)
			assert.Nil(t, p)
			var inv *InvariantError
			require.ErrorAs(t, err, &inv)
			assert.NotEmpty(t, inv.Violations)
		})
	}
}
