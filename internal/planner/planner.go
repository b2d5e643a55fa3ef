package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/tally/internal/filter"
	"github.com/roach88/tally/internal/ir"
	"github.com/roach88/tally/internal/queryir"
	"github.com/roach88/tally/internal/reconcile"
	"github.com/roach88/tally/internal/shape"
)

// InvariantError reports a request and resolution that cannot form a valid
// plan. It always indicates a defect upstream, never bad user input.
type InvariantError struct {
	Violations []string
}

func (e *InvariantError) Error() string {
	return "plan invariant violation: " + strings.Join(e.Violations, "; ")
}

// Builder turns a reconciled request and its shape into a Plan.
type Builder struct {
	rowCap int
}

// NewBuilder creates a Builder with the given hard row cap.
func NewBuilder(rowCap int) *Builder {
	if rowCap <= 0 {
		rowCap = reconcile.DefaultRowCap
	}
	return &Builder{rowCap: rowCap}
}

// Build assembles, validates and identifies a plan. It is pure.
//
// The user predicate always comes first, followed by date, amount,
// category, companion and payment predicates in that order. Multi-valued
// filters are sorted so equal requests produce equal plans. The row cap
// applies whatever limit was requested; Capped records that the cap set the
// final limit. An AGGREGATE with a trusted limit is windowed over that many
// rows in the requested order.
func (b *Builder) Build(req reconcile.Request, res shape.Resolution) (*queryir.Plan, error) {
	if !res.Shape.Executable() {
		return nil, &InvariantError{Violations: []string{
			fmt.Sprintf("shape %s (%s) cannot be planned", res.Shape, res.Reason),
		}}
	}

	p := &queryir.Plan{
		UserID:    req.UserID,
		Shape:     res.Shape,
		Filter:    queryir.And{Predicates: predicates(req)},
		GroupBy:   req.GroupBy,
		Aggregate: req.Aggregate,
	}

	switch res.Shape {
	case queryir.ShapeList:
		p.Columns = append([]queryir.Field(nil), req.Columns...)
		p.OrderBy = []queryir.Order{req.Sort}
		p.Limit, p.Capped = b.limit(req)
	case queryir.ShapeGrouped:
		p.Limit, p.Capped = b.limit(req)
	case queryir.ShapeAggregate:
		// One row by construction.
		p.Limit = 1
		if n, ok := window(req); ok {
			p.OrderBy = []queryir.Order{req.Sort}
			p.Window = n
		}
	}

	if v := queryir.Validate(p); !v.Valid {
		return nil, &InvariantError{Violations: v.Violations}
	}

	body, err := p.Body()
	if err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}
	id, err := ir.PlanID(body)
	if err != nil {
		return nil, fmt.Errorf("hash plan: %w", err)
	}
	p.ID = id
	return p, nil
}

// limit applies the hard cap.
func (b *Builder) limit(req reconcile.Request) (int, bool) {
	if req.Limit <= 0 || req.Source(reconcile.FieldLimit) == filter.SourceDefault {
		return b.rowCap, true
	}
	if req.Limit > b.rowCap {
		return b.rowCap, true
	}
	return req.Limit, false
}

// window returns the row count an aggregate covers. Only a trusted limit
// windows an aggregate; the row cap does not apply to a window.
func window(req reconcile.Request) (int, bool) {
	if req.Limit <= 0 {
		return 0, false
	}
	switch req.Source(reconcile.FieldLimit) {
	case filter.SourceUserStated, filter.SourcePriorContext:
		return req.Limit, true
	default:
		return 0, false
	}
}

func predicates(req reconcile.Request) []queryir.Predicate {
	f := req.Filters
	preds := []queryir.Predicate{
		queryir.Equals{Field: queryir.FieldUserID, Value: ir.IRString(req.UserID)},
	}

	if f.DateRange != nil {
		preds = append(preds, queryir.Between{
			Field: queryir.FieldDate,
			Low:   ir.IRString(f.DateRange.Start),
			High:  ir.IRString(f.DateRange.End),
		})
	}
	if f.Amount != nil {
		preds = append(preds, amountPredicate(*f.Amount))
	}
	if len(f.Categories) > 0 {
		preds = append(preds, queryir.In{Field: queryir.FieldCategory, Values: ir.Strings(sortedFold(f.Categories)...)})
	}
	if len(f.Companions) > 0 {
		preds = append(preds, queryir.HasAny{Field: queryir.FieldCompanions, Values: ir.Strings(sortedFold(f.Companions)...)})
	}
	if len(f.PaymentMethods) > 0 {
		preds = append(preds, queryir.In{Field: queryir.FieldPaymentMethod, Values: ir.Strings(sortedFold(f.PaymentMethods)...)})
	}
	return preds
}

func amountPredicate(a filter.AmountComparator) queryir.Predicate {
	if a.Op == filter.AmountBetween {
		return queryir.Between{Field: queryir.FieldAmount, Low: ir.IRInt(a.Value), High: ir.IRInt(a.High)}
	}
	ops := map[filter.AmountOp]queryir.CompareOp{
		filter.AmountGT:  queryir.OpGT,
		filter.AmountGTE: queryir.OpGTE,
		filter.AmountLT:  queryir.OpLT,
		filter.AmountLTE: queryir.OpLTE,
		filter.AmountEQ:  queryir.OpEQ,
	}
	return queryir.Compare{Field: queryir.FieldAmount, Op: ops[a.Op], Value: ir.IRInt(a.Value)}
}

// sortedFold lowercases, deduplicates and sorts values. Storage matches
// these fields case-insensitively, so case carries no meaning in a plan.
func sortedFold(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
