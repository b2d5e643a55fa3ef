package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/tally/internal/extract"
	"github.com/roach88/tally/internal/filter"
	"github.com/roach88/tally/internal/hint"
	"github.com/roach88/tally/internal/ir"
	"github.com/roach88/tally/internal/queryir"
	"github.com/roach88/tally/internal/reconcile"
	"github.com/roach88/tally/internal/shape"
	"github.com/roach88/tally/internal/store"
)

var today = time.Date(2025, 4, 16, 10, 30, 0, 0, time.UTC)

func newExtractor() *extract.Extractor {
	return extract.New(extract.Options{Now: func() time.Time { return today }})
}

func newCollector(s hint.Suggester) *hint.Collector {
	return hint.NewCollector(s, hint.Config{Timeout: time.Second})
}

type testEngine struct {
	*Engine
	metrics *Metrics
}

func newTestEngine(t *testing.T, s hint.Suggester, opts ...EngineOption) testEngine {
	t.Helper()
	m := NewMetrics(prometheus.NewRegistry())
	opts = append([]EngineOption{
		WithMetrics(m),
		WithLogger(zaptest.NewLogger(t)),
		WithIDGenerator(NewFixedGenerator("req-1", "req-2", "req-3")),
	}, opts...)
	return testEngine{Engine: New(newExtractor(), newCollector(s), opts...), metrics: m}
}

func ask(text string) Request {
	return Request{Text: text, UserID: "u1"}
}

func TestResolve_FoodLastMonth(t *testing.T) {
	e := newTestEngine(t, nil)

	res, err := e.Resolve(context.Background(), ask("How much did I spend on food last month?"))
	require.NoError(t, err)

	assert.Equal(t, "req-1", res.RequestID)
	require.NotNil(t, res.Plan)
	assert.Equal(t, queryir.ShapeAggregate, res.Plan.Shape)
	assert.Equal(t, queryir.AggSum, res.Plan.Aggregate)
	assert.Equal(t, []queryir.Predicate{
		queryir.Equals{Field: queryir.FieldUserID, Value: ir.IRString("u1")},
		queryir.Between{Field: queryir.FieldDate, Low: ir.IRString("2025-03-01"), High: ir.IRString("2025-03-31")},
		queryir.In{Field: queryir.FieldCategory, Values: ir.Strings("food")},
	}, res.Plan.Filter.Predicates)
	assert.Equal(t, "none", res.Hint.Provider)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.Resolutions.WithLabelValues("AGGREGATE")))
}

func TestResolve_ListMyExpenses(t *testing.T) {
	e := newTestEngine(t, nil)

	res, err := e.Resolve(context.Background(), ask("List my expenses"))
	require.NoError(t, err)

	require.NotNil(t, res.Plan)
	assert.Equal(t, queryir.ShapeList, res.Plan.Shape)
	assert.Len(t, res.Plan.Filter.Predicates, 1)
	assert.Equal(t, reconcile.DefaultRowCap, res.Plan.Limit)
	assert.True(t, res.Plan.Capped)
	assert.Equal(t, filter.SourceDefault, res.Reconciled.Source(string(filter.KindDateRange)))
}

func TestResolve_Unresolved(t *testing.T) {
	e := newTestEngine(t, nil)

	res, err := e.Resolve(context.Background(), ask("Show me something interesting about my spending"))
	require.Error(t, err)
	assert.True(t, IsUnresolved(err))

	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, RejectCodeShapeUnresolved, rej.Code)
	assert.Equal(t, shape.ReasonNoSignal, rej.Reason)
	assert.NotEmpty(t, rej.Clarification)
	assert.Equal(t, "req-1", rej.RequestID)

	require.NotNil(t, res)
	assert.Nil(t, res.Plan)
	assert.Equal(t, queryir.ShapeUnresolved, res.Shape.Shape)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.Resolutions.WithLabelValues("UNRESOLVED")))
}

func TestResolve_TrustedWinsConflict(t *testing.T) {
	s := &hint.StaticSuggester{Annotation: hint.Annotation{Categories: []string{"travel"}}}
	e := newTestEngine(t, s)

	res, err := e.Resolve(context.Background(), ask("How much did I spend on food last month?"))
	require.NoError(t, err)

	assert.Equal(t, []string{"food"}, res.Reconciled.Filters.Categories)
	require.Len(t, res.Reconciled.Conflicts, 1)
	assert.Equal(t, string(filter.KindCategory), res.Reconciled.Conflicts[0].Kind)
	assert.Equal(t, reconcile.WinnerTrusted, res.Reconciled.Conflicts[0].Winner)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.Conflicts.WithLabelValues("category")))
}

func TestResolve_HintFailureMatchesEmptyAnnotation(t *testing.T) {
	q := ask("total per category last month")

	failing := newTestEngine(t, &hint.FailingSuggester{Failures: 10})
	got, err := failing.Resolve(context.Background(), q)
	require.NoError(t, err)

	quiet := newTestEngine(t, nil)
	want, err := quiet.Resolve(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, want.Reconciled, got.Reconciled)
	assert.Equal(t, want.Plan.ID, got.Plan.ID)
	assert.Equal(t, queryir.ShapeGrouped, got.Plan.Shape)
	assert.Equal(t, string(hint.ReasonUnavailable), got.Hint.Failure)
	assert.Equal(t, 1.0, testutil.ToFloat64(failing.metrics.HintFailures.WithLabelValues("unavailable")))
}

func TestResolve_CorroboratedSuggestedKey(t *testing.T) {
	s := &hint.StaticSuggester{Annotation: hint.Annotation{GroupBy: queryir.GroupCategory}}
	e := newTestEngine(t, s)

	res, err := e.Resolve(context.Background(), ask("how much did I spend on each category in March"))
	require.NoError(t, err)
	assert.Equal(t, queryir.ShapeGrouped, res.Plan.Shape)
	assert.Equal(t, queryir.GroupCategory, res.Plan.GroupBy)
}

func TestResolve_Cancelled(t *testing.T) {
	s := &hint.StaticSuggester{Delay: time.Minute}
	e := newTestEngine(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.Resolve(ctx, ask("List my expenses"))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolve_InvalidRequest(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"empty text", Request{Text: "   ", UserID: "u1"}, "text"},
		{"missing user", Request{Text: "list my expenses"}, "user_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, nil)
			res, err := e.Resolve(context.Background(), tt.req)
			assert.Nil(t, res)
			require.True(t, IsInvalidRequest(err), "got %v", err)

			var re *RuntimeError
			require.ErrorAs(t, err, &re)
			assert.Contains(t, re.Details, tt.field)
			assert.Equal(t, "req-1", re.RequestID)
		})
	}
}

func TestResolve_PriorContext(t *testing.T) {
	e := newTestEngine(t, nil)
	prior := &filter.TrustedSet{Categories: []string{"food"}}

	req := ask("what was the total last week")
	req.Prior = prior
	res, err := e.Resolve(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []filter.Kind{filter.KindCategory}, res.PriorFilled)
	assert.Equal(t, filter.SourcePriorContext, res.Reconciled.Source(string(filter.KindCategory)))
	assert.Contains(t, res.Plan.Filter.Predicates,
		queryir.Predicate(queryir.In{Field: queryir.FieldCategory, Values: ir.Strings("food")}))
}

func TestResolve_AggregateOverStatedRows(t *testing.T) {
	tests := []struct {
		question string
		fn       queryir.AggregateFunc
		window   int
		order    queryir.Order
	}{
		{"What is the total of my top 3 expenses?", queryir.AggSum, 3, queryir.Order{Field: queryir.FieldAmount, Desc: true}},
		{"How much were my last 5 expenses?", queryir.AggSum, 5, queryir.Order{Field: queryir.FieldDate, Desc: true}},
		{"average of my 3 biggest expenses", queryir.AggAvg, 3, queryir.Order{Field: queryir.FieldAmount, Desc: true}},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			e := newTestEngine(t, nil)

			res, err := e.Resolve(context.Background(), ask(tt.question))
			require.NoError(t, err)

			require.NotNil(t, res.Plan)
			assert.Equal(t, queryir.ShapeAggregate, res.Plan.Shape)
			assert.Equal(t, tt.fn, res.Plan.Aggregate)
			assert.Equal(t, tt.window, res.Plan.Window)
			assert.Equal(t, []queryir.Order{tt.order}, res.Plan.OrderBy)
			assert.Equal(t, filter.SourceUserStated, res.Reconciled.Source(reconcile.FieldLimit))
		})
	}

	t.Run("limit carried from the prior turn", func(t *testing.T) {
		e := newTestEngine(t, nil)
		req := ask("what was the total")
		req.Prior = &filter.TrustedSet{Limit: func() *int { n := 3; return &n }()}

		res, err := e.Resolve(context.Background(), req)
		require.NoError(t, err)

		require.NotNil(t, res.Plan)
		assert.Equal(t, 3, res.Plan.Window)
		assert.Equal(t, []queryir.Order{queryir.DefaultOrder}, res.Plan.OrderBy)
		assert.Equal(t, filter.SourcePriorContext, res.Reconciled.Source(reconcile.FieldLimit))
	})

	t.Run("suggested limit does not window", func(t *testing.T) {
		n := 3
		e := newTestEngine(t, &hint.StaticSuggester{Annotation: hint.Annotation{Limit: &n}})

		res, err := e.Resolve(context.Background(), ask("How much did I spend on food last month?"))
		require.NoError(t, err)

		require.NotNil(t, res.Plan)
		assert.Zero(t, res.Plan.Window)
		require.Len(t, res.Reconciled.Rejected, 1)
		assert.Equal(t, reconcile.ReasonLimitNotApplicable, res.Reconciled.Rejected[0].Reason)
	})
}

func TestResolve_ConcurrentUse(t *testing.T) {
	e := New(newExtractor(), nil)
	q := ask("How much did I spend on food last month?")

	first, err := e.Resolve(context.Background(), q)
	require.NoError(t, err)

	done := make(chan string, 8)
	for i := 0; i < 8; i++ {
		go func() {
			res, err := e.Resolve(context.Background(), q)
			if err != nil {
				done <- ""
				return
			}
			done <- res.Plan.ID
		}()
	}
	for i := 0; i < 8; i++ {
		assert.Equal(t, first.Plan.ID, <-done)
	}
}

type fakeExecutor struct {
	calls  atomic.Int32
	result *store.Result
	err    error
}

func (f *fakeExecutor) Execute(_ context.Context, p *queryir.Plan) (*store.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	r.PlanID = p.ID
	r.Shape = p.Shape
	return &r, nil
}

func TestAnswer(t *testing.T) {
	total := int64(45000)
	exec := &fakeExecutor{result: &store.Result{Value: &total, RowCount: 3}}
	e := newTestEngine(t, nil)

	ans, err := e.Answer(context.Background(), ask("How much did I spend on food last month?"), exec)
	require.NoError(t, err)

	assert.Equal(t, int32(1), exec.calls.Load())
	assert.Equal(t, ans.Resolution.Plan.ID, ans.Result.PlanID)
	require.NotNil(t, ans.Result.Value)
	assert.Equal(t, total, *ans.Result.Value)
}

func TestAnswer_RejectionNeverExecutes(t *testing.T) {
	exec := &fakeExecutor{result: &store.Result{}}
	e := newTestEngine(t, nil)

	ans, err := e.Answer(context.Background(), ask("Show me something interesting about my spending"), exec)
	assert.True(t, IsUnresolved(err))
	require.NotNil(t, ans)
	assert.Nil(t, ans.Result)
	assert.Zero(t, exec.calls.Load())
}

func TestAnswer_StorageFailure(t *testing.T) {
	boom := errors.New("disk on fire")
	exec := &fakeExecutor{err: boom}
	e := newTestEngine(t, nil)

	ans, err := e.Answer(context.Background(), ask("List my expenses"), exec)
	assert.Nil(t, ans)
	assert.ErrorIs(t, err, boom)

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeStorage, re.Code)
	assert.NotEmpty(t, re.Details["plan_id"])
}
