package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/roach88/tally/internal/engine"
	"github.com/roach88/tally/internal/ir"
	"github.com/roach88/tally/internal/queryir"
	"github.com/roach88/tally/internal/store"
)

// writeResolution prints the human-readable form of a resolution.
func writeResolution(w io.Writer, res *engine.Resolution) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "request:\t%s\n", res.RequestID)
	shape := string(res.Shape.Shape)
	if res.Plan != nil {
		switch {
		case res.Plan.GroupBy != queryir.GroupNone:
			shape += fmt.Sprintf(" (%s by %s)", res.Plan.Aggregate, res.Plan.GroupBy)
		case res.Plan.Aggregate != queryir.AggNone:
			shape += fmt.Sprintf(" (%s)", res.Plan.Aggregate)
		}
	} else if res.Shape.Reason != "" {
		shape += fmt.Sprintf(" (%s)", res.Shape.Reason)
	}
	fmt.Fprintf(tw, "shape:\t%s\n", shape)

	if p := res.Plan; p != nil {
		fmt.Fprintf(tw, "filters:\t%s\n", describeFilter(p.Filter))
		if len(p.OrderBy) > 0 {
			fmt.Fprintf(tw, "order:\t%s\n", describeOrder(p.OrderBy))
		}
		if p.Window > 0 {
			fmt.Fprintf(tw, "window:\t%d expense(s)\n", p.Window)
		}
		limit := fmt.Sprint(p.Limit)
		if p.Capped {
			limit += " (capped)"
		}
		fmt.Fprintf(tw, "limit:\t%s\n", limit)
		fmt.Fprintf(tw, "plan:\t%s\n", p.ID)
	}
	for _, k := range res.PriorFilled {
		fmt.Fprintf(tw, "carried:\t%s\n", k)
	}
	if res.Hint.Failure != "" {
		fmt.Fprintf(tw, "hint:\t%s failed (%s)\n", res.Hint.Provider, res.Hint.Failure)
	}
	for _, c := range res.Reconciled.Conflicts {
		fmt.Fprintf(tw, "conflict:\t%s: %q vs suggested %q, %s wins (%s)\n", c.Kind, c.Trusted, c.Suggested, c.Winner, c.Reason)
	}
	for _, c := range res.Reconciled.Rejected {
		fmt.Fprintf(tw, "ignored:\t%s %q (%s)\n", c.Kind, c.Suggested, c.Reason)
	}
}

// writeResult prints the human-readable form of a storage result.
func writeResult(w io.Writer, r *store.Result, minorUnits int) {
	money := r.Aggregate != queryir.AggCount
	switch r.Shape {
	case queryir.ShapeAggregate:
		value := "undefined (no matching expenses)"
		if r.Value != nil {
			value = formatValue(*r.Value, money, minorUnits)
		}
		fmt.Fprintf(w, "%s: %s over %d expense(s)\n", r.Aggregate, value, r.RowCount)

	case queryir.ShapeGrouped:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintf(tw, "%s\t%s\trows\t\n", r.GroupBy, r.Aggregate)
		for _, g := range r.Groups {
			key := g.Key
			if key == "" {
				key = "(none)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t\n", key, formatValue(g.Value, money, minorUnits), g.RowCount)
		}
		tw.Flush()

	case queryir.ShapeList:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "id\tdate\tamount\tcategory\tdescription\tpayment\twith")
		for _, row := range r.Rows {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				row.ID, row.Date, formatMinor(row.Amount, minorUnits), row.Category,
				row.Description, row.PaymentMethod, strings.Join(row.Companions, ", "))
		}
		tw.Flush()
		if r.Capped {
			fmt.Fprintf(w, "%d row(s), limited by the row cap\n", r.RowCount)
		} else {
			fmt.Fprintf(w, "%d row(s)\n", r.RowCount)
		}
	}
}

func formatValue(v int64, money bool, minorUnits int) string {
	if !money {
		return fmt.Sprint(v)
	}
	return formatMinor(v, minorUnits)
}

// formatMinor renders an amount in minor units with minorUnits fractional
// digits, e.g. 57050 with 2 digits is "570.50".
func formatMinor(v int64, minorUnits int) string {
	if minorUnits <= 0 {
		return fmt.Sprint(v)
	}
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	scale := int64(1)
	for i := 0; i < minorUnits; i++ {
		scale *= 10
	}
	return fmt.Sprintf("%s%d.%0*d", sign, v/scale, minorUnits, v%scale)
}

func describeFilter(and queryir.And) string {
	parts := make([]string, 0, len(and.Predicates))
	for _, p := range and.Predicates {
		parts = append(parts, describePredicate(p))
	}
	return strings.Join(parts, "; ")
}

func describePredicate(p queryir.Predicate) string {
	switch pred := p.(type) {
	case queryir.Equals:
		return fmt.Sprintf("%s = %s", pred.Field, irText(pred.Value))
	case queryir.In:
		return fmt.Sprintf("%s in [%s]", pred.Field, irList(pred.Values))
	case queryir.HasAny:
		return fmt.Sprintf("%s has any of [%s]", pred.Field, irList(pred.Values))
	case queryir.Compare:
		return fmt.Sprintf("%s %s %s", pred.Field, opSymbols[pred.Op], irText(pred.Value))
	case queryir.Between:
		return fmt.Sprintf("%s between %s and %s", pred.Field, irText(pred.Low), irText(pred.High))
	default:
		return fmt.Sprintf("%T", p)
	}
}

var opSymbols = map[queryir.CompareOp]string{
	queryir.OpGT:  ">",
	queryir.OpGTE: ">=",
	queryir.OpLT:  "<",
	queryir.OpLTE: "<=",
	queryir.OpEQ:  "=",
}

func describeOrder(orders []queryir.Order) string {
	parts := make([]string, len(orders))
	for i, o := range orders {
		dir := "asc"
		if o.Desc {
			dir = "desc"
		}
		parts[i] = fmt.Sprintf("%s %s", o.Field, dir)
	}
	return strings.Join(parts, ", ")
}

func irText(v ir.IRValue) string {
	switch val := v.(type) {
	case ir.IRString:
		return string(val)
	case ir.IRInt:
		return fmt.Sprint(int64(val))
	default:
		return fmt.Sprint(v)
	}
}

func irList(vs []ir.IRValue) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = irText(v)
	}
	return strings.Join(parts, ", ")
}
