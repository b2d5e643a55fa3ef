package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/ir"
	"github.com/roach88/tally/internal/queryir"
)

func TestExecute_ListNewestFirst(t *testing.T) {
	s := createTestStore(t)
	seedFixture(t, s)

	res, err := s.Execute(context.Background(), userPlan(queryir.ShapeList))
	require.NoError(t, err)

	require.Len(t, res.Rows, 4, "u2 rows never leak")
	dates := make([]string, len(res.Rows))
	for i, r := range res.Rows {
		dates[i] = r.Date
	}
	assert.Equal(t, []string{"2025-04-01", "2025-03-20", "2025-03-15", "2025-03-02"}, dates)
	assert.Equal(t, []string{"Alice", "Bob"}, res.Rows[1].Companions)
	assert.Equal(t, int64(4), res.RowCount)
}

func TestExecute_ListProjectionAndLimit(t *testing.T) {
	s := createTestStore(t)
	seedFixture(t, s)

	p := userPlan(queryir.ShapeList)
	p.Columns = []queryir.Field{queryir.FieldAmount}
	p.OrderBy = []queryir.Order{{Field: queryir.FieldAmount, Desc: true}}
	p.Limit = 2
	p.Capped = true

	res, err := s.Execute(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, res.Rows, 2)
	assert.Equal(t, int64(150000), res.Rows[0].Amount)
	assert.Equal(t, int64(45000), res.Rows[1].Amount)
	assert.Empty(t, res.Rows[0].Date, "unprojected columns stay empty")
	assert.True(t, res.Capped)
}

func TestExecute_AggregateFoodMarch(t *testing.T) {
	s := createTestStore(t)
	seedFixture(t, s)

	p := userPlan(queryir.ShapeAggregate, march(), queryir.In{Field: queryir.FieldCategory, Values: ir.Strings("food")})
	p.Aggregate = queryir.AggSum

	res, err := s.Execute(context.Background(), p)
	require.NoError(t, err)

	require.NotNil(t, res.Value)
	assert.Equal(t, int64(57050), *res.Value)
	assert.Equal(t, int64(2), res.RowCount)
}

func TestExecute_Aggregates(t *testing.T) {
	s := createTestStore(t)
	seedFixture(t, s)

	tests := []struct {
		fn   queryir.AggregateFunc
		want int64
	}{
		{queryir.AggSum, 207050},
		{queryir.AggCount, 3},
		// (45000 + 12050 + 150000) / 3 = 69016.67 -> 69017
		{queryir.AggAvg, 69017},
		{queryir.AggMin, 12050},
		{queryir.AggMax, 150000},
	}

	for _, tt := range tests {
		t.Run(string(tt.fn), func(t *testing.T) {
			p := userPlan(queryir.ShapeAggregate, march())
			p.Aggregate = tt.fn

			res, err := s.Execute(context.Background(), p)
			require.NoError(t, err)
			require.NotNil(t, res.Value)
			assert.Equal(t, tt.want, *res.Value)
		})
	}
}

func TestExecute_AggregateWindow(t *testing.T) {
	s := createTestStore(t)
	seedFixture(t, s)

	tests := []struct {
		name   string
		fn     queryir.AggregateFunc
		order  queryir.Order
		window int
		want   int64
		rows   int64
	}{
		{"total of top 3", queryir.AggSum, queryir.Order{Field: queryir.FieldAmount, Desc: true}, 3, 225000, 3},
		{"total of last 2", queryir.AggSum, queryir.DefaultOrder, 2, 180000, 2},
		// (150000 + 45000 + 30000) / 3 = 75000
		{"average of top 3", queryir.AggAvg, queryir.Order{Field: queryir.FieldAmount, Desc: true}, 3, 75000, 3},
		{"min of 2 biggest", queryir.AggMin, queryir.Order{Field: queryir.FieldAmount, Desc: true}, 2, 45000, 2},
		{"window past the data", queryir.AggSum, queryir.DefaultOrder, 10, 237050, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := userPlan(queryir.ShapeAggregate)
			p.Aggregate = tt.fn
			p.OrderBy = []queryir.Order{tt.order}
			p.Limit = 1
			p.Window = tt.window

			res, err := s.Execute(context.Background(), p)
			require.NoError(t, err)
			require.NotNil(t, res.Value)
			assert.Equal(t, tt.want, *res.Value)
			assert.Equal(t, tt.rows, res.RowCount)
		})
	}
}

func TestExecute_AggregateOverNothing(t *testing.T) {
	s := createTestStore(t)
	seedFixture(t, s)

	empty := queryir.In{Field: queryir.FieldCategory, Values: ir.Strings("health")}

	sum := userPlan(queryir.ShapeAggregate, empty)
	sum.Aggregate = queryir.AggSum
	res, err := s.Execute(context.Background(), sum)
	require.NoError(t, err)
	require.NotNil(t, res.Value)
	assert.Equal(t, int64(0), *res.Value)

	avg := userPlan(queryir.ShapeAggregate, empty)
	avg.Aggregate = queryir.AggAvg
	res, err = s.Execute(context.Background(), avg)
	require.NoError(t, err)
	assert.Nil(t, res.Value, "average of nothing is undefined, not zero")
	assert.Equal(t, int64(0), res.RowCount)
}

func TestExecute_GroupedByCategory(t *testing.T) {
	s := createTestStore(t)
	seedFixture(t, s)

	p := userPlan(queryir.ShapeGrouped)
	p.GroupBy = queryir.GroupCategory
	p.Aggregate = queryir.AggSum
	p.OrderBy = nil

	res, err := s.Execute(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, []Group{
		{Key: "travel", Value: 150000, RowCount: 1},
		{Key: "food", Value: 57050, RowCount: 2},
		{Key: "shopping", Value: 30000, RowCount: 1},
	}, res.Groups)
	assert.Equal(t, int64(4), res.RowCount)
}

func TestExecute_GroupedByMonth(t *testing.T) {
	s := createTestStore(t)
	seedFixture(t, s)

	p := userPlan(queryir.ShapeGrouped)
	p.GroupBy = queryir.GroupMonth
	p.Aggregate = queryir.AggCount
	p.OrderBy = nil

	res, err := s.Execute(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, []Group{
		{Key: "2025-03", Value: 3, RowCount: 3},
		{Key: "2025-04", Value: 1, RowCount: 1},
	}, res.Groups)
}

func TestExecute_CompanionAndPaymentFilters(t *testing.T) {
	s := createTestStore(t)
	seedFixture(t, s)

	p := userPlan(queryir.ShapeList,
		queryir.HasAny{Field: queryir.FieldCompanions, Values: ir.Strings("ALICE")},
		queryir.In{Field: queryir.FieldPaymentMethod, Values: ir.Strings("upi")},
	)

	res, err := s.Execute(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, res.Rows, 1)
	assert.Equal(t, "dinner", res.Rows[0].Description)
}

func TestExecute_AmountComparator(t *testing.T) {
	s := createTestStore(t)
	seedFixture(t, s)

	p := userPlan(queryir.ShapeAggregate, queryir.Compare{Field: queryir.FieldAmount, Op: queryir.OpGT, Value: ir.IRInt(40000)})
	p.Aggregate = queryir.AggCount

	res, err := s.Execute(context.Background(), p)
	require.NoError(t, err)
	require.NotNil(t, res.Value)
	assert.Equal(t, int64(2), *res.Value)
}

func TestExecute_Deterministic(t *testing.T) {
	s := createTestStore(t)
	seedFixture(t, s)

	first, err := s.Execute(context.Background(), userPlan(queryir.ShapeList))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := s.Execute(context.Background(), userPlan(queryir.ShapeList))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestExecute_RejectsInvalidPlan(t *testing.T) {
	s := createTestStore(t)

	p := userPlan(queryir.ShapeUnresolved)
	_, err := s.Execute(context.Background(), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid plan")
}

func TestExecute_CancelledContext(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Execute(ctx, userPlan(queryir.ShapeList))
	assert.Error(t, err)
}
