package queryir

import (
	"fmt"

	"github.com/roach88/tally/internal/ir"
)

// ValidationResult lists every invariant a plan breaks.
type ValidationResult struct {
	// Valid is true when Violations is empty.
	Valid bool

	// Violations describes each broken invariant.
	Violations []string
}

// Validate checks that a plan is internally consistent before it reaches
// storage.
//
// Rules:
//  1. Shape is executable (never UNRESOLVED)
//  2. The first predicate scopes the plan to its user
//  3. GROUPED has a groupable key and an aggregate
//  4. AGGREGATE has an aggregate and no key or columns; a windowed
//     AGGREGATE orders its window
//  5. LIST has neither aggregate nor key; columns come from the allow-list
//  6. Limit is positive
//  7. Predicates reference known fields with non-null values
//
// A plan that fails validation indicates a defect upstream, never bad user
// input. Validate is a pure function with no side effects.
func Validate(p *Plan) ValidationResult {
	v := &validator{violations: []string{}}
	if p == nil {
		v.add("nil plan")
	} else {
		v.validatePlan(p)
	}
	return ValidationResult{
		Valid:      len(v.violations) == 0,
		Violations: v.violations,
	}
}

type validator struct {
	violations []string
}

func (v *validator) add(format string, args ...any) {
	v.violations = append(v.violations, fmt.Sprintf(format, args...))
}

func (v *validator) validatePlan(p *Plan) {
	if !p.Shape.Executable() {
		v.add("shape %q is not executable", p.Shape)
	}
	if p.UserID == "" {
		v.add("missing user_id")
	}
	v.validateUserScope(p)

	switch p.Shape {
	case ShapeGrouped:
		if p.GroupBy == GroupNone {
			v.add("GROUPED plan without grouping key")
		} else if !p.GroupBy.Groupable() {
			v.add("grouping key %q is not groupable", p.GroupBy)
		}
		if p.Aggregate == AggNone {
			v.add("GROUPED plan without aggregate function")
		}
		if len(p.Columns) > 0 {
			v.add("GROUPED plan projects columns")
		}
	case ShapeAggregate:
		if p.Aggregate == AggNone {
			v.add("AGGREGATE plan without aggregate function")
		}
		if p.GroupBy != GroupNone {
			v.add("AGGREGATE plan with grouping key %q", p.GroupBy)
		}
		if len(p.Columns) > 0 {
			v.add("AGGREGATE plan projects columns")
		}
		if p.Window > 0 && len(p.OrderBy) == 0 {
			v.add("windowed AGGREGATE plan without ordering")
		}
	case ShapeList:
		if p.Aggregate != AggNone {
			v.add("LIST plan with aggregate %q", p.Aggregate)
		}
		if p.GroupBy != GroupNone {
			v.add("LIST plan with grouping key %q", p.GroupBy)
		}
		for _, c := range p.Columns {
			if !IsListColumn(c) {
				v.add("column %q is not allowed", c)
			}
		}
	}

	if _, ok := ParseAggregate(string(p.Aggregate)); p.Aggregate != AggNone && !ok {
		v.add("unknown aggregate %q", p.Aggregate)
	}
	if p.Window < 0 {
		v.add("window must not be negative, got %d", p.Window)
	}
	if p.Window > 0 && p.Shape != ShapeAggregate {
		v.add("%s plan with window %d", p.Shape, p.Window)
	}
	if p.Limit <= 0 {
		v.add("limit must be positive, got %d", p.Limit)
	}
	for _, o := range p.OrderBy {
		if o.Field != FieldDate && o.Field != FieldAmount {
			v.add("cannot order by %q", o.Field)
		}
	}

	for _, pred := range p.Filter.Predicates {
		v.validatePredicate(pred)
	}
}

// validateUserScope requires Filter[0] to be user_id = p.UserID.
func (v *validator) validateUserScope(p *Plan) {
	if len(p.Filter.Predicates) == 0 {
		v.add("filter does not scope to user")
		return
	}
	var eq Equals
	switch first := p.Filter.Predicates[0].(type) {
	case Equals:
		eq = first
	case *Equals:
		eq = *first
	default:
		v.add("first predicate must be user_id equality, got %T", first)
		return
	}
	if eq.Field != FieldUserID || eq.Value != ir.IRString(p.UserID) {
		v.add("first predicate must be user_id = %q", p.UserID)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case Equals:
		v.checkField(pred.Field)
		v.checkValue(pred.Field, pred.Value)
	case *Equals:
		v.validatePredicate(*pred)
	case In:
		v.checkField(pred.Field)
		v.checkValues(pred.Field, pred.Values)
	case *In:
		v.validatePredicate(*pred)
	case Compare:
		v.checkField(pred.Field)
		if _, ok := pred.Op.SQL(); !ok {
			v.add("unknown comparison %q on %q", pred.Op, pred.Field)
		}
		v.checkValue(pred.Field, pred.Value)
	case *Compare:
		v.validatePredicate(*pred)
	case Between:
		v.checkField(pred.Field)
		v.checkValue(pred.Field, pred.Low)
		v.checkValue(pred.Field, pred.High)
	case *Between:
		v.validatePredicate(*pred)
	case HasAny:
		if pred.Field != FieldCompanions {
			v.add("has_any on single-valued field %q", pred.Field)
		}
		v.checkValues(pred.Field, pred.Values)
	case *HasAny:
		v.validatePredicate(*pred)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case *And:
		v.validatePredicate(*pred)
	default:
		v.add("unknown predicate type %T", p)
	}
}

func (v *validator) checkField(f Field) {
	if !knownField(f) {
		v.add("unknown field %q", f)
	}
}

func (v *validator) checkValues(f Field, values []ir.IRValue) {
	if len(values) == 0 {
		v.add("empty value set for %q", f)
	}
	for _, val := range values {
		v.checkValue(f, val)
	}
}

func (v *validator) checkValue(f Field, val ir.IRValue) {
	switch val.(type) {
	case nil, ir.IRNull:
		v.add("field %q compared to null", f)
	case ir.IRArray, ir.IRObject:
		v.add("field %q compared to composite value", f)
	case ir.IRInt:
		if f != FieldAmount {
			v.add("field %q compared to integer", f)
		}
	case ir.IRString:
		if f == FieldAmount {
			v.add("amount compared to string")
		}
	}
}
