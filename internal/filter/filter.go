package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/tally/internal/queryir"
)

// Kind names a filter kind.
type Kind string

const (
	KindDateRange     Kind = "date_range"
	KindAmount        Kind = "amount_comparator"
	KindCategory      Kind = "category"
	KindCompanion     Kind = "companion"
	KindExplicitLimit Kind = "explicit_limit"
	KindPaymentMethod Kind = "payment_method"
)

// FilterKinds lists every kind in a fixed order used for iteration and output.
var FilterKinds = []Kind{
	KindDateRange,
	KindAmount,
	KindCategory,
	KindCompanion,
	KindPaymentMethod,
	KindExplicitLimit,
}

// Source records where a reconciled value came from.
type Source string

const (
	SourceUserStated        Source = "user_stated"
	SourcePriorContext      Source = "prior_context"
	SourceSuggestionDerived Source = "suggestion_derived"
	SourceDefault           Source = "default"
)

// RawQuery is the immutable inbound question.
type RawQuery struct {
	Text   string `json:"text" validate:"required,max=2000"`
	UserID string `json:"user_id" validate:"required,max=128"`
}

// DateRange is an inclusive civil date range in YYYY-MM-DD form.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Label string `json:"label"`
}

// Days returns the inclusive width of the range, or 0 if it does not parse.
func (d DateRange) Days() int {
	start, err := time.Parse(time.DateOnly, d.Start)
	if err != nil {
		return 0
	}
	end, err := time.Parse(time.DateOnly, d.End)
	if err != nil || end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

func (d DateRange) String() string {
	return d.Start + ".." + d.End
}

// AmountOp is the comparison an AmountComparator applies.
type AmountOp string

const (
	AmountGT      AmountOp = "gt"
	AmountGTE     AmountOp = "gte"
	AmountLT      AmountOp = "lt"
	AmountLTE     AmountOp = "lte"
	AmountEQ      AmountOp = "eq"
	AmountBetween AmountOp = "between"
)

// AmountComparator constrains the amount in minor units.
// High is set only for AmountBetween, where Value <= amount <= High.
type AmountComparator struct {
	Op    AmountOp `json:"op"`
	Value int64    `json:"value"`
	High  int64    `json:"high,omitempty"`
}

func (a AmountComparator) String() string {
	if a.Op == AmountBetween {
		return fmt.Sprintf("between %d and %d", a.Value, a.High)
	}
	return fmt.Sprintf("%s %d", a.Op, a.Value)
}

// Signals is trusted vocabulary that is not itself a filter. The shape
// resolver and the grouping corroboration rule read it.
type Signals struct {
	Aggregate         queryir.AggregateFunc `json:"aggregate,omitempty"`
	GroupBy           queryir.GroupKey      `json:"group_by,omitempty"`
	ListVerb          bool                  `json:"list_verb,omitempty"`
	RowNoun           bool                  `json:"row_noun,omitempty"`
	DimensionMentions []queryir.GroupKey    `json:"dimension_mentions,omitempty"`
	Distributive      bool                  `json:"distributive,omitempty"`
	Sort              *queryir.Order        `json:"sort,omitempty"`
}

// Mentions reports whether the text named dimension k.
func (s Signals) Mentions(k queryir.GroupKey) bool {
	for _, m := range s.DimensionMentions {
		if m == k {
			return true
		}
	}
	return false
}

// TrustedSet holds deterministically established filters.
//
// A nil pointer or nil slice means the kind was not matched, which is
// different from the user asking for "none".
type TrustedSet struct {
	DateRange      *DateRange        `json:"date_range,omitempty"`
	Amount         *AmountComparator `json:"amount_comparator,omitempty"`
	Categories     []string          `json:"category,omitempty"`
	Companions     []string          `json:"companion,omitempty"`
	PaymentMethods []string          `json:"payment_method,omitempty"`
	Limit          *int              `json:"explicit_limit,omitempty"`
	Signals        Signals           `json:"signals"`
}

// Has reports whether kind k was matched.
func (t TrustedSet) Has(k Kind) bool {
	switch k {
	case KindDateRange:
		return t.DateRange != nil
	case KindAmount:
		return t.Amount != nil
	case KindCategory:
		return len(t.Categories) > 0
	case KindCompanion:
		return len(t.Companions) > 0
	case KindPaymentMethod:
		return len(t.PaymentMethods) > 0
	case KindExplicitLimit:
		return t.Limit != nil
	default:
		return false
	}
}

// Kinds returns the matched kinds in FilterKinds order.
func (t TrustedSet) Kinds() []Kind {
	var kinds []Kind
	for _, k := range FilterKinds {
		if t.Has(k) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// HasRowFilter reports whether any row-restricting kind was matched.
// explicit_limit bounds a result but does not restrict which rows qualify.
func (t TrustedSet) HasRowFilter() bool {
	for _, k := range t.Kinds() {
		if k != KindExplicitLimit {
			return true
		}
	}
	return false
}

// Describe renders the value of kind k for conflict reports and prompts.
// It returns "" when k is absent.
func (t TrustedSet) Describe(k Kind) string {
	if !t.Has(k) {
		return ""
	}
	switch k {
	case KindDateRange:
		return t.DateRange.String()
	case KindAmount:
		return t.Amount.String()
	case KindCategory:
		return strings.Join(t.Categories, ",")
	case KindCompanion:
		return strings.Join(t.Companions, ",")
	case KindPaymentMethod:
		return strings.Join(t.PaymentMethods, ",")
	case KindExplicitLimit:
		return fmt.Sprintf("%d", *t.Limit)
	default:
		return ""
	}
}

// WithPrior fills kinds absent from t with the prior set's values and
// returns the kinds it filled. Kinds matched in t always win. Signals are
// never inherited: they describe the current question only.
func (t TrustedSet) WithPrior(prior *TrustedSet) (TrustedSet, []Kind) {
	if prior == nil {
		return t, nil
	}
	var filled []Kind
	for _, k := range FilterKinds {
		if t.Has(k) || !prior.Has(k) {
			continue
		}
		switch k {
		case KindDateRange:
			d := *prior.DateRange
			t.DateRange = &d
		case KindAmount:
			a := *prior.Amount
			t.Amount = &a
		case KindCategory:
			t.Categories = append([]string(nil), prior.Categories...)
		case KindCompanion:
			t.Companions = append([]string(nil), prior.Companions...)
		case KindPaymentMethod:
			t.PaymentMethods = append([]string(nil), prior.PaymentMethods...)
		case KindExplicitLimit:
			n := *prior.Limit
			t.Limit = &n
		}
		filled = append(filled, k)
	}
	return t, filled
}
