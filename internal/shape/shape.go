// Package shape decides what kind of answer a reconciled request asks for.
package shape

import (
	"github.com/roach88/tally/internal/queryir"
	"github.com/roach88/tally/internal/reconcile"
)

// Reason explains an UNRESOLVED shape.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonNoSignal            Reason = "no_signal"
	ReasonMixedIntent         Reason = "mixed_intent"
	ReasonUnsupportedGrouping Reason = "unsupported_grouping"
)

// Resolution is the shape decision for one request.
type Resolution struct {
	Shape  queryir.Shape `json:"shape"`
	Reason Reason        `json:"reason,omitempty"`

	// HintAgreed is set when the service offered a shape hint; it reports
	// whether the hint matches the decision. The hint never decides.
	HintAgreed *bool `json:"hint_agreed,omitempty"`
}

// Resolve applies the ordered decision list:
//
//  1. no grouping key, rows requested, no aggregate → LIST
//  2. aggregate, no grouping key, no list verb      → AGGREGATE
//  3. grouping key                                  → GROUPED
//  4. otherwise                                     → UNRESOLVED
//
// Rows are requested by a list verb, a row noun, or any trusted row filter.
// A grouping key storage cannot partition by is UNRESOLVED.
func Resolve(req reconcile.Request) Resolution {
	res := decide(req)
	if req.ShapeHint != "" {
		agreed := req.ShapeHint == res.Shape
		res.HintAgreed = &agreed
	}
	return res
}

func decide(req reconcile.Request) Resolution {
	sig := req.Filters.Signals
	hasKey := req.GroupBy != queryir.GroupNone
	hasAgg := req.Aggregate != queryir.AggNone
	rowsRequested := sig.ListVerb || sig.RowNoun || req.Filters.HasRowFilter()

	switch {
	case !hasKey && rowsRequested && !hasAgg:
		return Resolution{Shape: queryir.ShapeList}
	case hasAgg && !hasKey && !sig.ListVerb:
		return Resolution{Shape: queryir.ShapeAggregate}
	case hasKey && !req.GroupBy.Groupable():
		return Resolution{Shape: queryir.ShapeUnresolved, Reason: ReasonUnsupportedGrouping}
	case hasKey:
		return Resolution{Shape: queryir.ShapeGrouped}
	case hasAgg && sig.ListVerb:
		return Resolution{Shape: queryir.ShapeUnresolved, Reason: ReasonMixedIntent}
	default:
		return Resolution{Shape: queryir.ShapeUnresolved, Reason: ReasonNoSignal}
	}
}

// Clarification returns the question to put back to the user for an
// UNRESOLVED resolution.
func Clarification(reason Reason) string {
	switch reason {
	case ReasonMixedIntent:
		return "Do you want the individual expenses listed, or a single total?"
	case ReasonUnsupportedGrouping:
		return "Spending can't be split per companion. Do you want a list of expenses with them, or a total?"
	default:
		return "Do you want a list of expenses, a total, or a breakdown by category or month?"
	}
}
