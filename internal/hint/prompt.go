package hint

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/tally/internal/filter"
	"github.com/roach88/tally/internal/queryir"
)

// Prompt is one request to the interpretation service.
type Prompt struct {
	System string
	User   string
}

// groupingKeys are the keys the service may suggest.
var groupingKeys = []queryir.GroupKey{
	queryir.GroupCategory,
	queryir.GroupSubcategory,
	queryir.GroupPaymentMethod,
	queryir.GroupMonth,
	queryir.GroupWeek,
	queryir.GroupDay,
}

const systemPrompt = `You annotate questions about personal expenses. You never answer them.
Reply with one JSON object and nothing else. Every field is optional; omit a
field rather than guess.

Fields:
  "grouping_key": one of %s, or "none"
  "limit":        positive integer, only if the user asked for a number of rows
  "columns":      list drawn from %s
  "shape_hint":   one of "LIST", "AGGREGATE", "GROUPED", "UNRESOLVED"
  "category":     list of category names the question is about
  "companion":    list of people the user spent with
  "payment_method": list of payment methods
  "date_range":   {"start": "YYYY-MM-DD", "end": "YYYY-MM-DD"}, inclusive
  "amount_comparator": {"op": "gt|gte|lt|lte|eq|between", "value": int, "high": int}
                  amounts in minor currency units

LIST returns rows, AGGREGATE returns one number, GROUPED returns one number
per group. Use UNRESOLVED when the question does not ask for either.`

// BuildPrompt renders the request for q. Trusted filters are included read
// only, so the service can see what is already settled.
func BuildPrompt(q filter.RawQuery, trusted *filter.TrustedSet, today time.Time) Prompt {
	keys := make([]string, len(groupingKeys))
	for i, k := range groupingKeys {
		keys[i] = fmt.Sprintf("%q", k)
	}
	cols := make([]string, len(queryir.ListColumns))
	for i, c := range queryir.ListColumns {
		cols[i] = fmt.Sprintf("%q", c)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Today is %s.\n", today.Format(time.DateOnly))
	if trusted != nil {
		if kinds := trusted.Kinds(); len(kinds) > 0 {
			b.WriteString("Already established (do not change):\n")
			for _, k := range kinds {
				fmt.Fprintf(&b, "  %s: %s\n", k, trusted.Describe(k))
			}
		}
	}
	fmt.Fprintf(&b, "Question: %s\n", strings.TrimSpace(q.Text))

	return Prompt{
		System: fmt.Sprintf(systemPrompt, strings.Join(keys, ", "), strings.Join(cols, ", ")),
		User:   b.String(),
	}
}
