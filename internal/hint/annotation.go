package hint

import (
	"github.com/roach88/tally/internal/filter"
	"github.com/roach88/tally/internal/queryir"
)

// Provenance is the provenance of every value in an Annotation.
const Provenance = "suggested"

// Kind names a suggestion-only field.
type Kind string

const (
	KindGroupingKey Kind = "grouping_key"
	KindLimit       Kind = "limit"
	KindColumns     Kind = "columns"
	KindShapeHint   Kind = "shape_hint"
)

// Annotation is what the interpretation service suggested.
//
// It is deliberately not a filter.TrustedSet and nothing converts one into
// the other. The echoed filter fields exist only so the reconciler can
// detect disagreement with the extractor; they never become filters.
type Annotation struct {
	GroupBy   queryir.GroupKey `json:"grouping_key,omitempty"`
	Limit     *int             `json:"limit,omitempty"`
	Columns   []queryir.Field  `json:"columns,omitempty"`
	ShapeHint queryir.Shape    `json:"shape_hint,omitempty"`

	DateRange      *filter.DateRange        `json:"date_range,omitempty"`
	Amount         *filter.AmountComparator `json:"amount_comparator,omitempty"`
	Categories     []string                 `json:"category,omitempty"`
	Companions     []string                 `json:"companion,omitempty"`
	PaymentMethods []string                 `json:"payment_method,omitempty"`

	// Dropped lists fields discarded while parsing, as "field: reason".
	Dropped []string `json:"dropped,omitempty"`
}

// Empty reports whether the annotation suggests nothing.
func (a Annotation) Empty() bool {
	return a.GroupBy == queryir.GroupNone &&
		a.Limit == nil &&
		len(a.Columns) == 0 &&
		a.ShapeHint == "" &&
		!a.HasFilter(filter.KindDateRange) &&
		!a.HasFilter(filter.KindAmount) &&
		!a.HasFilter(filter.KindCategory) &&
		!a.HasFilter(filter.KindCompanion) &&
		!a.HasFilter(filter.KindPaymentMethod)
}

// HasFilter reports whether the service echoed filter kind k.
// explicit_limit is reported through Limit, never here.
func (a Annotation) HasFilter(k filter.Kind) bool {
	switch k {
	case filter.KindDateRange:
		return a.DateRange != nil
	case filter.KindAmount:
		return a.Amount != nil
	case filter.KindCategory:
		return len(a.Categories) > 0
	case filter.KindCompanion:
		return len(a.Companions) > 0
	case filter.KindPaymentMethod:
		return len(a.PaymentMethods) > 0
	default:
		return false
	}
}
