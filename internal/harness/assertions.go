package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/tally/internal/queryir"
	"github.com/roach88/tally/internal/reconcile"
)

// checkStep compares a step's outcome against its expect clause and
// returns one message per mismatch.
func checkStep(step Step, sr StepResult) []string {
	e := step.Expect
	if e == nil {
		return nil
	}
	if sr.Err != "" {
		return []string{"unexpected error: " + sr.Err}
	}
	if sr.Resolution == nil {
		return []string{"no resolution"}
	}

	var c checker
	res := sr.Resolution
	c.equal("shape", e.Shape, string(res.Shape.Shape))
	if e.Reason != "" {
		c.equal("reason", e.Reason, string(res.Shape.Reason))
	}
	if e.HintFailure != "" {
		c.equal("hint_failure", e.HintFailure, res.Hint.Failure)
	}
	if e.Conflicts != nil {
		c.list("conflicts", e.Conflicts, kinds(res.Reconciled.Conflicts))
	}
	if e.Rejected != nil {
		c.list("rejected", e.Rejected, kinds(res.Reconciled.Rejected))
	}

	if queryir.Shape(e.Shape) == queryir.ShapeUnresolved {
		if res.Plan != nil {
			c.fail("plan: expected none for UNRESOLVED, got %s", res.Plan.Shape)
		}
		if sr.Answer != nil {
			c.fail("answer: UNRESOLVED step must never execute")
		}
		return c.errs
	}

	p := res.Plan
	if p == nil {
		c.fail("plan: expected %s plan, got none", e.Shape)
		return c.errs
	}
	if e.Aggregate != "" {
		c.equal("aggregate", e.Aggregate, string(p.Aggregate))
	}
	if e.GroupBy != "" {
		c.equal("group_by", e.GroupBy, string(p.GroupBy))
	}
	if e.Limit != nil {
		c.equal("limit", fmt.Sprint(*e.Limit), fmt.Sprint(p.Limit))
	}
	if e.Capped != nil {
		c.equal("capped", fmt.Sprint(*e.Capped), fmt.Sprint(p.Capped))
	}
	if e.Window != nil {
		c.equal("window", fmt.Sprint(*e.Window), fmt.Sprint(p.Window))
	}
	if e.Filters != nil {
		c.list("filters", e.Filters, predicateFields(p.Filter))
	}

	if step.Answer {
		checkAnswer(&c, e, sr)
	}
	return c.errs
}

func checkAnswer(c *checker, e *Expect, sr StepResult) {
	a := sr.Answer
	if a == nil {
		c.fail("answer: plan was not executed")
		return
	}
	if a.PlanID != sr.Resolution.Plan.ID {
		c.fail("answer: plan_id %s does not match plan %s", a.PlanID, sr.Resolution.Plan.ID)
	}
	if e.Value != nil {
		if a.Value == nil {
			c.fail("value: expected %d, got undefined", *e.Value)
		} else {
			c.equal("value", fmt.Sprint(*e.Value), fmt.Sprint(*a.Value))
		}
	}
	if e.RowCount != nil {
		c.equal("row_count", fmt.Sprint(*e.RowCount), fmt.Sprint(a.RowCount))
	}
	if e.Rows != nil {
		got := make([]string, len(a.Rows))
		for i, r := range a.Rows {
			got[i] = fmt.Sprint(r.ID)
		}
		want := make([]string, len(e.Rows))
		for i, id := range e.Rows {
			want[i] = fmt.Sprint(id)
		}
		c.list("rows", want, got)
	}
	if e.Groups != nil {
		got := make([]string, len(a.Groups))
		for i, g := range a.Groups {
			got[i] = fmt.Sprintf("%s=%d/%d", g.Key, g.Value, g.RowCount)
		}
		want := make([]string, len(e.Groups))
		for i, g := range e.Groups {
			want[i] = fmt.Sprintf("%s=%d/%d", g.Key, g.Value, g.RowCount)
		}
		c.list("groups", want, got)
	}
}

type checker struct {
	errs []string
}

func (c *checker) fail(format string, args ...any) {
	c.errs = append(c.errs, fmt.Sprintf(format, args...))
}

func (c *checker) equal(field, want, got string) {
	if want != got {
		c.fail("%s: expected %q, got %q", field, want, got)
	}
}

func (c *checker) list(field string, want, got []string) {
	if strings.Join(want, ",") != strings.Join(got, ",") {
		c.fail("%s: expected [%s], got [%s]", field, strings.Join(want, ", "), strings.Join(got, ", "))
	}
}

func kinds(cs []reconcile.Conflict) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Kind
	}
	return out
}

// predicateFields lists the fields of a conjunction's predicates in order.
func predicateFields(and queryir.And) []string {
	out := make([]string, 0, len(and.Predicates))
	for _, p := range and.Predicates {
		switch pred := p.(type) {
		case queryir.Equals:
			out = append(out, string(pred.Field))
		case queryir.In:
			out = append(out, string(pred.Field))
		case queryir.Compare:
			out = append(out, string(pred.Field))
		case queryir.Between:
			out = append(out, string(pred.Field))
		case queryir.HasAny:
			out = append(out, string(pred.Field))
		default:
			out = append(out, fmt.Sprintf("%T", p))
		}
	}
	return out
}
