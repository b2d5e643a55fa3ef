package hint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/filter"
	"github.com/roach88/tally/internal/queryir"
)

func intPtr(n int) *int { return &n }

func TestParseAnnotation(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Annotation
	}{
		{
			name: "all suggestion fields",
			raw:  `{"grouping_key":"category","limit":5,"columns":["date","amount"],"shape_hint":"grouped"}`,
			want: Annotation{
				GroupBy:   queryir.GroupCategory,
				Limit:     intPtr(5),
				Columns:   []queryir.Field{queryir.FieldDate, queryir.FieldAmount},
				ShapeHint: queryir.ShapeGrouped,
			},
		},
		{
			name: "code fence",
			raw:  "```json\n{\"grouping_key\": \"month\"}\n```",
			want: Annotation{GroupBy: queryir.GroupMonth},
		},
		{
			name: "bare fence",
			raw:  "```\n{\"limit\": 3}\n```",
			want: Annotation{Limit: intPtr(3)},
		},
		{
			name: "none grouping and nulls",
			raw:  `{"grouping_key":"none","limit":null,"columns":null}`,
			want: Annotation{},
		},
		{
			name: "echoed filters",
			raw: `{"category":["Food","food","travel"],"companion":"Alice","payment_method":["UPI"],` +
				`"date_range":{"start":"2025-03-01","end":"2025-03-31"},"amount_comparator":{"op":"gt","value":50000}}`,
			want: Annotation{
				Categories:     []string{"food", "travel"},
				Companions:     []string{"Alice"},
				PaymentMethods: []string{"UPI"},
				DateRange:      &filter.DateRange{Start: "2025-03-01", End: "2025-03-31"},
				Amount:         &filter.AmountComparator{Op: filter.AmountGT, Value: 50000},
			},
		},
		{
			name: "between amount",
			raw:  `{"amount_comparator":{"op":"between","value":100,"high":500}}`,
			want: Annotation{Amount: &filter.AmountComparator{Op: filter.AmountBetween, Value: 100, High: 500}},
		},
		{
			name: "bad fields dropped independently",
			raw:  `{"grouping_key":"vibes","limit":-2,"columns":["amount","secret"],"shape_hint":"PIE","category":"food"}`,
			want: Annotation{
				Columns:    []queryir.Field{queryir.FieldAmount},
				Categories: []string{"food"},
				Dropped: []string{
					`columns: unknown column "secret"`,
					`grouping_key: unknown key "vibes"`,
					"limit: out of range: -2",
					`shape_hint: unknown shape "PIE"`,
				},
			},
		},
		{
			name: "wrong types dropped",
			raw:  `{"grouping_key":7,"limit":"five","columns":"amount","date_range":"last month"}`,
			want: Annotation{
				Dropped: []string{
					"columns: not a list of strings",
					"date_range: not an object",
					"grouping_key: not a string",
					"limit: not a number",
				},
			},
		},
		{
			name: "fractional limit dropped",
			raw:  `{"limit":2.5}`,
			want: Annotation{Dropped: []string{"limit: not an integer"}},
		},
		{
			name: "inverted date range dropped",
			raw:  `{"date_range":{"start":"2025-03-31","end":"2025-03-01"}}`,
			want: Annotation{Dropped: []string{"date_range: invalid dates"}},
		},
		{
			name: "unknown field",
			raw:  `{"answer":42}`,
			want: Annotation{Dropped: []string{"answer: unknown field"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAnnotation(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAnnotation_Malformed(t *testing.T) {
	for _, raw := range []string{"", "sure! here you go", "[1,2]", "null", `"category"`} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseAnnotation(raw)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestAnnotationEmpty(t *testing.T) {
	assert.True(t, Annotation{}.Empty())
	assert.True(t, Annotation{Dropped: []string{"limit: not a number"}}.Empty())
	assert.False(t, Annotation{ShapeHint: queryir.ShapeList}.Empty())
	assert.False(t, Annotation{Categories: []string{"food"}}.Empty())
}
