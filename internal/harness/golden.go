package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tally/internal/ir"
	"github.com/roach88/tally/internal/reconcile"
	"github.com/roach88/tally/internal/store"
)

// Snapshot renders a result as indented canonical JSON.
//
// Plans appear as their canonical body without the id: the id is the hash
// of exactly that body, so a stable body is a stable id. LIST rows carry
// id, date, amount and category only.
func Snapshot(result *Result) ([]byte, error) {
	steps := make([]any, len(result.Steps))
	for i, sr := range result.Steps {
		s, err := stepSnapshot(sr)
		if err != nil {
			return nil, err
		}
		steps[i] = s
	}

	canonical, err := ir.MarshalCanonical(map[string]any{
		"scenario": result.Name,
		"steps":    steps,
	})
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, canonical, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func stepSnapshot(sr StepResult) (map[string]any, error) {
	m := map[string]any{"ask": sr.Ask}
	if sr.Err != "" {
		m["error"] = sr.Err
		return m, nil
	}
	res := sr.Resolution
	if res == nil {
		return m, nil
	}

	m["shape"] = string(res.Shape.Shape)
	if res.Shape.Reason != "" {
		m["reason"] = string(res.Shape.Reason)
	}
	if sr.Rejection != nil {
		m["clarification"] = sr.Rejection.Clarification
	}
	if res.Plan != nil {
		body, err := res.Plan.Body()
		if err != nil {
			return nil, err
		}
		m["plan"] = body
	}
	if len(res.Reconciled.Conflicts) > 0 {
		m["conflicts"] = conflictSnapshot(res.Reconciled.Conflicts)
	}
	if len(res.Reconciled.Rejected) > 0 {
		m["rejected"] = conflictSnapshot(res.Reconciled.Rejected)
	}
	if res.Hint.Failure != "" {
		m["hint_failure"] = res.Hint.Failure
	}
	if len(res.PriorFilled) > 0 {
		filled := make([]string, len(res.PriorFilled))
		for i, k := range res.PriorFilled {
			filled[i] = string(k)
		}
		m["prior_filled"] = filled
	}
	if sr.Answer != nil {
		m["answer"] = answerSnapshot(sr.Answer)
	}
	return m, nil
}

func conflictSnapshot(cs []reconcile.Conflict) []any {
	out := make([]any, len(cs))
	for i, c := range cs {
		entry := map[string]any{
			"kind":      c.Kind,
			"suggested": c.Suggested,
			"winner":    string(c.Winner),
			"reason":    c.Reason,
		}
		if c.Trusted != "" {
			entry["trusted"] = c.Trusted
		}
		out[i] = entry
	}
	return out
}

func answerSnapshot(r *store.Result) map[string]any {
	m := map[string]any{"row_count": r.RowCount}
	if r.Value != nil {
		m["value"] = *r.Value
	}
	if len(r.Rows) > 0 {
		rows := make([]any, len(r.Rows))
		for i, row := range r.Rows {
			rows[i] = map[string]any{
				"id":       row.ID,
				"date":     row.Date,
				"amount":   row.Amount,
				"category": row.Category,
			}
		}
		m["rows"] = rows
	}
	if len(r.Groups) > 0 {
		groups := make([]any, len(r.Groups))
		for i, g := range r.Groups {
			groups[i] = map[string]any{
				"key":       g.Key,
				"value":     g.Value,
				"row_count": g.RowCount,
			}
		}
		m["groups"] = groups
	}
	return m
}

// RunWithGolden executes a scenario, fails the test on any expectation
// mismatch and compares the snapshot against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's snapshot against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, snapshot)
	return nil
}
