package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/tally/internal/queryir"
)

func intPtr(n int) *int { return &n }

func TestDateRangeDays(t *testing.T) {
	tests := []struct {
		name string
		dr   DateRange
		want int
	}{
		{"single day", DateRange{Start: "2025-03-01", End: "2025-03-01"}, 1},
		{"march", DateRange{Start: "2025-03-01", End: "2025-03-31"}, 31},
		{"leap february", DateRange{Start: "2024-02-01", End: "2024-02-29"}, 29},
		{"inverted", DateRange{Start: "2025-03-31", End: "2025-03-01"}, 0},
		{"garbage", DateRange{Start: "march", End: "2025-03-01"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dr.Days())
		})
	}
}

func TestTrustedSetHasAndKinds(t *testing.T) {
	var empty TrustedSet
	assert.Empty(t, empty.Kinds())
	assert.False(t, empty.HasRowFilter())

	set := TrustedSet{
		Categories: []string{"food"},
		Limit:      intPtr(5),
		DateRange:  &DateRange{Start: "2025-03-01", End: "2025-03-31"},
	}
	assert.Equal(t, []Kind{KindDateRange, KindCategory, KindExplicitLimit}, set.Kinds())
	assert.True(t, set.HasRowFilter())

	onlyLimit := TrustedSet{Limit: intPtr(5)}
	assert.False(t, onlyLimit.HasRowFilter())
}

func TestTrustedSetDescribe(t *testing.T) {
	set := TrustedSet{
		DateRange:  &DateRange{Start: "2025-03-01", End: "2025-03-31"},
		Amount:     &AmountComparator{Op: AmountBetween, Value: 100, High: 500},
		Categories: []string{"food", "travel"},
		Limit:      intPtr(3),
	}

	assert.Equal(t, "2025-03-01..2025-03-31", set.Describe(KindDateRange))
	assert.Equal(t, "between 100 and 500", set.Describe(KindAmount))
	assert.Equal(t, "food,travel", set.Describe(KindCategory))
	assert.Equal(t, "3", set.Describe(KindExplicitLimit))
	assert.Equal(t, "", set.Describe(KindCompanion))
}

func TestWithPrior(t *testing.T) {
	prior := &TrustedSet{
		DateRange:  &DateRange{Start: "2025-03-01", End: "2025-03-31", Label: "last_month"},
		Categories: []string{"travel"},
		Signals:    Signals{Aggregate: queryir.AggSum},
	}
	current := TrustedSet{Categories: []string{"food"}}

	merged, filled := current.WithPrior(prior)

	assert.Equal(t, []Kind{KindDateRange}, filled)
	assert.Equal(t, []string{"food"}, merged.Categories, "current text wins")
	assert.Equal(t, "last_month", merged.DateRange.Label)
	assert.Equal(t, queryir.AggNone, merged.Signals.Aggregate, "signals are not inherited")

	merged.DateRange.Label = "mutated"
	assert.Equal(t, "last_month", prior.DateRange.Label, "prior is not aliased")
}

func TestWithPriorNil(t *testing.T) {
	current := TrustedSet{Categories: []string{"food"}}
	merged, filled := current.WithPrior(nil)
	assert.Equal(t, current, merged)
	assert.Nil(t, filled)
}

func TestSignalsMentions(t *testing.T) {
	s := Signals{DimensionMentions: []queryir.GroupKey{queryir.GroupCategory}}
	assert.True(t, s.Mentions(queryir.GroupCategory))
	assert.False(t, s.Mentions(queryir.GroupMonth))
}
