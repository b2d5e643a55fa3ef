package queryir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/ir"
)

func foodLastMonth() *Plan {
	return &Plan{
		UserID: "u1",
		Shape:  ShapeAggregate,
		Filter: And{Predicates: []Predicate{
			Equals{Field: FieldUserID, Value: ir.IRString("u1")},
			Between{Field: FieldDate, Low: ir.IRString("2025-03-01"), High: ir.IRString("2025-03-31")},
			In{Field: FieldCategory, Values: ir.Strings("food")},
		}},
		Aggregate: AggSum,
		OrderBy:   []Order{DefaultOrder},
		Limit:     200,
	}
}

func TestPlanBodyCanonical(t *testing.T) {
	body, err := foodLastMonth().Body()
	require.NoError(t, err)

	data, err := ir.MarshalCanonical(body)
	require.NoError(t, err)

	want := `{"aggregate":"sum","capped":false,` +
		`"filter":{"args":[` +
		`{"field":"user_id","op":"eq","value":"u1"},` +
		`{"field":"date","high":"2025-03-31","low":"2025-03-01","op":"between"},` +
		`{"field":"category","op":"in","values":["food"]}` +
		`],"op":"and"},` +
		`"limit":200,"order_by":[{"dir":"desc","field":"date"}],` +
		`"shape":"AGGREGATE","user_id":"u1","version":"1"}`
	assert.Equal(t, want, string(data))
}

func TestPlanMarshalJSON(t *testing.T) {
	p := foodLastMonth()
	p.ID = "abc"

	data, err := json.Marshal(struct {
		Plan *Plan `json:"plan"`
	}{p})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":"abc"`)
	assert.Contains(t, string(data), `"shape":"AGGREGATE"`)

	p.ID = ""
	data, err = json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"id"`)
}

func TestPlanBodyOptionalParts(t *testing.T) {
	p := &Plan{
		UserID:  "u1",
		Shape:   ShapeList,
		Filter:  And{Predicates: []Predicate{Equals{Field: FieldUserID, Value: ir.IRString("u1")}}},
		Columns: []Field{FieldDate, FieldAmount},
		Limit:   10,
	}

	body, err := p.Body()
	require.NoError(t, err)

	assert.NotContains(t, body, "aggregate")
	assert.NotContains(t, body, "group_by")
	assert.NotContains(t, body, "window")
	assert.Equal(t, ir.Strings("date", "amount"), body["columns"])
}

func TestPlanBodyWindow(t *testing.T) {
	whole := foodLastMonth()
	windowed := foodLastMonth()
	windowed.Window = 3

	body, err := windowed.Body()
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(3), body["window"])

	wholeBody, err := whole.Body()
	require.NoError(t, err)
	a, err := ir.PlanID(wholeBody)
	require.NoError(t, err)
	b, err := ir.PlanID(body)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "window is part of plan identity")
}

func TestPredicateIRPointers(t *testing.T) {
	byValue, err := PredicateIR(Compare{Field: FieldAmount, Op: OpGTE, Value: ir.IRInt(100)})
	require.NoError(t, err)
	byPointer, err := PredicateIR(&Compare{Field: FieldAmount, Op: OpGTE, Value: ir.IRInt(100)})
	require.NoError(t, err)

	assert.Equal(t, byValue, byPointer)
	assert.Equal(t, ir.IRString("cmp"), byValue["op"])
	assert.Equal(t, ir.IRString("gte"), byValue["cmp"])
}

func TestPredicateIRHasAny(t *testing.T) {
	enc, err := PredicateIR(HasAny{Field: FieldCompanions, Values: ir.Strings("Alice", "Bob")})
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("has_any"), enc["op"])
	assert.Equal(t, ir.IRArray(ir.Strings("Alice", "Bob")), enc["values"])
}

func TestPlanIDStable(t *testing.T) {
	a, err := foodLastMonth().Body()
	require.NoError(t, err)
	b, err := foodLastMonth().Body()
	require.NoError(t, err)

	idA, err := ir.PlanID(a)
	require.NoError(t, err)
	idB, err := ir.PlanID(b)
	require.NoError(t, err)
	assert.Equal(t, idA, idB)

	other := foodLastMonth()
	other.Aggregate = AggCount
	c, err := other.Body()
	require.NoError(t, err)
	idC, err := ir.PlanID(c)
	require.NoError(t, err)
	assert.NotEqual(t, idA, idC)
}
