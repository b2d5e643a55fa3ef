package queryir

import (
	"fmt"

	"github.com/roach88/tally/internal/ir"
)

// Body returns the plan's content as an IRObject, excluding ID.
//
// Body is the input to ir.PlanID and the form written to golden files.
// Optional parts (group_by, aggregate, window, columns) are omitted when empty
// because canonical JSON has no null.
func (p *Plan) Body() (ir.IRObject, error) {
	filter, err := PredicateIR(p.Filter)
	if err != nil {
		return nil, err
	}

	order := make(ir.IRArray, len(p.OrderBy))
	for i, o := range p.OrderBy {
		dir := "asc"
		if o.Desc {
			dir = "desc"
		}
		order[i] = ir.IRObject{
			"field": ir.IRString(o.Field),
			"dir":   ir.IRString(dir),
		}
	}

	body := ir.IRObject{
		"version":  ir.IRString(ir.PlanVersion),
		"user_id":  ir.IRString(p.UserID),
		"shape":    ir.IRString(p.Shape),
		"filter":   filter,
		"order_by": order,
		"limit":    ir.IRInt(p.Limit),
		"capped":   ir.IRBool(p.Capped),
	}
	if p.GroupBy != GroupNone {
		body["group_by"] = ir.IRString(p.GroupBy)
	}
	if p.Aggregate != AggNone {
		body["aggregate"] = ir.IRString(p.Aggregate)
	}
	if p.Window > 0 {
		body["window"] = ir.IRInt(p.Window)
	}
	if len(p.Columns) > 0 {
		cols := make([]string, len(p.Columns))
		for i, c := range p.Columns {
			cols[i] = string(c)
		}
		body["columns"] = ir.Strings(cols...)
	}
	return body, nil
}

// MarshalJSON encodes the plan as canonical JSON: its body plus "id" when
// the plan has been identified.
func (p Plan) MarshalJSON() ([]byte, error) {
	body, err := p.Body()
	if err != nil {
		return nil, err
	}
	if p.ID != "" {
		body["id"] = ir.IRString(p.ID)
	}
	return ir.MarshalCanonical(body)
}

// PredicateIR encodes a predicate tree as an IRObject tagged by "op".
func PredicateIR(p Predicate) (ir.IRObject, error) {
	switch pred := p.(type) {
	case Equals:
		return ir.IRObject{"op": ir.IRString("eq"), "field": ir.IRString(pred.Field), "value": pred.Value}, nil
	case *Equals:
		return PredicateIR(*pred)
	case In:
		return ir.IRObject{"op": ir.IRString("in"), "field": ir.IRString(pred.Field), "values": ir.IRArray(pred.Values)}, nil
	case *In:
		return PredicateIR(*pred)
	case Compare:
		return ir.IRObject{
			"op":    ir.IRString("cmp"),
			"cmp":   ir.IRString(pred.Op),
			"field": ir.IRString(pred.Field),
			"value": pred.Value,
		}, nil
	case *Compare:
		return PredicateIR(*pred)
	case Between:
		return ir.IRObject{
			"op":    ir.IRString("between"),
			"field": ir.IRString(pred.Field),
			"low":   pred.Low,
			"high":  pred.High,
		}, nil
	case *Between:
		return PredicateIR(*pred)
	case HasAny:
		return ir.IRObject{"op": ir.IRString("has_any"), "field": ir.IRString(pred.Field), "values": ir.IRArray(pred.Values)}, nil
	case *HasAny:
		return PredicateIR(*pred)
	case And:
		children := make(ir.IRArray, len(pred.Predicates))
		for i, child := range pred.Predicates {
			enc, err := PredicateIR(child)
			if err != nil {
				return nil, fmt.Errorf("and[%d]: %w", i, err)
			}
			children[i] = enc
		}
		return ir.IRObject{"op": ir.IRString("and"), "args": children}, nil
	case *And:
		return PredicateIR(*pred)
	default:
		return nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}
