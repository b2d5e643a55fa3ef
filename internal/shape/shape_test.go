package shape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/filter"
	"github.com/roach88/tally/internal/queryir"
	"github.com/roach88/tally/internal/reconcile"
)

func TestResolve(t *testing.T) {
	food := []string{"food"}
	tests := []struct {
		name   string
		req    reconcile.Request
		shape  queryir.Shape
		reason Reason
	}{
		{
			name:  "list verb",
			req:   reconcile.Request{Filters: filter.TrustedSet{Signals: filter.Signals{ListVerb: true}}},
			shape: queryir.ShapeList,
		},
		{
			name:  "row noun",
			req:   reconcile.Request{Filters: filter.TrustedSet{Signals: filter.Signals{RowNoun: true}}},
			shape: queryir.ShapeList,
		},
		{
			name:  "trusted filter alone requests rows",
			req:   reconcile.Request{Filters: filter.TrustedSet{Categories: food}},
			shape: queryir.ShapeList,
		},
		{
			name: "aggregate",
			req: reconcile.Request{
				Filters:   filter.TrustedSet{Categories: food, Signals: filter.Signals{Aggregate: queryir.AggSum}},
				Aggregate: queryir.AggSum,
			},
			shape: queryir.ShapeAggregate,
		},
		{
			name: "aggregate with row noun",
			req: reconcile.Request{
				Filters:   filter.TrustedSet{Signals: filter.Signals{RowNoun: true, Aggregate: queryir.AggCount}},
				Aggregate: queryir.AggCount,
			},
			shape: queryir.ShapeAggregate,
		},
		{
			name:  "grouped",
			req:   reconcile.Request{GroupBy: queryir.GroupCategory, Aggregate: queryir.AggSum},
			shape: queryir.ShapeGrouped,
		},
		{
			name: "grouping key beats list verb",
			req: reconcile.Request{
				Filters:   filter.TrustedSet{Signals: filter.Signals{ListVerb: true}},
				GroupBy:   queryir.GroupMonth,
				Aggregate: queryir.AggSum,
			},
			shape: queryir.ShapeGrouped,
		},
		{
			name: "list verb with aggregate",
			req: reconcile.Request{
				Filters:   filter.TrustedSet{Signals: filter.Signals{ListVerb: true, Aggregate: queryir.AggSum}},
				Aggregate: queryir.AggSum,
			},
			shape:  queryir.ShapeUnresolved,
			reason: ReasonMixedIntent,
		},
		{
			name:   "companions key",
			req:    reconcile.Request{GroupBy: queryir.GroupCompanions, Aggregate: queryir.AggSum},
			shape:  queryir.ShapeUnresolved,
			reason: ReasonUnsupportedGrouping,
		},
		{
			name:   "nothing",
			req:    reconcile.Request{},
			shape:  queryir.ShapeUnresolved,
			reason: ReasonNoSignal,
		},
		{
			name:   "limit alone is not a row request",
			req:    reconcile.Request{Filters: filter.TrustedSet{Limit: new(int)}},
			shape:  queryir.ShapeUnresolved,
			reason: ReasonNoSignal,
		},
		{
			name:   "shape hint alone never decides",
			req:    reconcile.Request{ShapeHint: queryir.ShapeList},
			shape:  queryir.ShapeUnresolved,
			reason: ReasonNoSignal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.req)
			assert.Equal(t, tt.shape, got.Shape)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestResolve_HintAgreement(t *testing.T) {
	req := reconcile.Request{Filters: filter.TrustedSet{Signals: filter.Signals{ListVerb: true}}}

	assert.Nil(t, Resolve(req).HintAgreed)

	req.ShapeHint = queryir.ShapeList
	agreed := Resolve(req).HintAgreed
	require.NotNil(t, agreed)
	assert.True(t, *agreed)

	req.ShapeHint = queryir.ShapeAggregate
	res := Resolve(req)
	require.NotNil(t, res.HintAgreed)
	assert.False(t, *res.HintAgreed)
	assert.Equal(t, queryir.ShapeList, res.Shape)
}

func TestClarification(t *testing.T) {
	for _, r := range []Reason{ReasonNoSignal, ReasonMixedIntent, ReasonUnsupportedGrouping} {
		assert.NotEmpty(t, Clarification(r))
	}
	assert.NotEqual(t, Clarification(ReasonNoSignal), Clarification(ReasonMixedIntent))
}
