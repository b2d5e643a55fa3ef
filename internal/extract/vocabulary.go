package extract

import (
	"regexp"
	"sort"
	"strings"
)

// Vocabulary maps lowercase keywords to canonical values.
type Vocabulary struct {
	// Categories maps a keyword ("dinner") to a category ("food").
	Categories map[string]string
	// PaymentMethods maps a keyword ("gpay") to a method ("Google Pay").
	PaymentMethods map[string]string
}

// DefaultVocabulary returns the built-in keyword tables.
func DefaultVocabulary() Vocabulary {
	categories := map[string][]string{
		"food":          {"food", "dinner", "lunch", "breakfast", "restaurant", "restaurants", "cafe", "coffee", "dining", "meal", "meals", "snacks", "swiggy", "zomato"},
		"groceries":     {"grocery", "groceries", "supermarket", "bigbasket", "vegetables", "fruits"},
		"travel":        {"travel", "uber", "ola", "taxi", "cab", "cabs", "flight", "flights", "train", "bus", "metro", "fuel", "petrol"},
		"shopping":      {"shopping", "mall", "amazon", "flipkart", "clothes", "clothing", "shoes", "electronics"},
		"entertainment": {"entertainment", "movie", "movies", "cinema", "netflix", "spotify", "concert", "gaming"},
		"health":        {"health", "healthcare", "hospital", "doctor", "medicine", "medicines", "pharmacy", "medical"},
		"bills":         {"bills", "bill", "electricity", "internet", "rent", "utilities", "recharge"},
		"education":     {"education", "school", "college", "course", "courses", "tuition", "books"},
	}
	payments := map[string]string{
		"cash":          "Cash",
		"upi":           "UPI",
		"gpay":          "Google Pay",
		"google pay":    "Google Pay",
		"phonepe":       "PhonePe",
		"paytm":         "Paytm",
		"netbanking":    "Net Banking",
		"net banking":   "Net Banking",
		"credit card":   "Credit Card",
		"debit card":    "Debit Card",
		"card":          "Card",
		"bank transfer": "Bank Transfer",
	}

	v := Vocabulary{
		Categories:     make(map[string]string),
		PaymentMethods: payments,
	}
	for category, words := range categories {
		for _, w := range words {
			v.Categories[w] = category
		}
	}
	return v
}

// keywordMatcher finds whole-word keyword occurrences, longest keyword first,
// and never matches overlapping spans.
type keywordMatcher struct {
	re     *regexp.Regexp
	values map[string]string
}

func newKeywordMatcher(table map[string]string) *keywordMatcher {
	keys := make([]string, 0, len(table))
	values := make(map[string]string, len(table))
	for k, v := range table {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		keys = append(keys, k)
		values[k] = v
	}
	if len(keys) == 0 {
		return &keywordMatcher{values: values}
	}
	// Longest first so "credit card" wins over "card".
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = strings.ReplaceAll(regexp.QuoteMeta(k), " ", `\s+`)
	}
	return &keywordMatcher{
		re:     regexp.MustCompile(`\b(?:` + strings.Join(parts, "|") + `)\b`),
		values: values,
	}
}

// match returns canonical values in order of first appearance, deduplicated,
// plus the matched spans.
func (m *keywordMatcher) match(text string) ([]string, [][]int) {
	if m.re == nil {
		return nil, nil
	}
	var out []string
	seen := make(map[string]bool)
	locs := m.re.FindAllStringIndex(text, -1)
	for _, loc := range locs {
		key := strings.Join(strings.Fields(text[loc[0]:loc[1]]), " ")
		v, ok := m.values[key]
		if !ok || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out, locs
}

// contains reports whether word is a keyword.
func (m *keywordMatcher) contains(word string) bool {
	_, ok := m.values[word]
	return ok
}
