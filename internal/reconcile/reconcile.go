package reconcile

import (
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/tally/internal/filter"
	"github.com/roach88/tally/internal/hint"
	"github.com/roach88/tally/internal/queryir"
)

// GroupingCorroborationThreshold is the default number of independent trusted
// signals a suggested grouping key needs before it is accepted.
const GroupingCorroborationThreshold = 1

// DefaultGroupedAggregate applies to grouped requests that name no aggregate.
const DefaultGroupedAggregate = queryir.AggSum

// DefaultRowCap is the default hard row cap.
const DefaultRowCap = 200

// Winner says which side a recorded disagreement resolved to.
type Winner string

const (
	// WinnerTrusted: both sides had a value and the trusted one was kept.
	WinnerTrusted Winner = "trusted"
	// WinnerNone: the suggestion was discarded and nothing replaced it.
	WinnerNone Winner = "none"
)

// Reasons recorded on a Conflict.
const (
	ReasonTrustedPrecedence    = "trusted_precedence"
	ReasonUncorroborated       = "uncorroborated"
	ReasonSuggestionOnlyFilter = "suggestion_only_filter"
	ReasonColumnsNotApplicable = "columns_not_applicable"
	ReasonLimitNotApplicable   = "limit_not_applicable"
)

// Field names used as Provenance keys for values that are not filter kinds.
const (
	FieldGroupingKey = string(hint.KindGroupingKey)
	FieldLimit       = string(hint.KindLimit)
	FieldColumns     = string(hint.KindColumns)
	FieldAggregate   = "aggregate"
	FieldSort        = "sort"
)

// Conflict records one place where the suggestion was not taken.
type Conflict struct {
	Kind      string `json:"kind"`
	Trusted   string `json:"trusted,omitempty"`
	Suggested string `json:"suggested"`
	Winner    Winner `json:"winner"`
	Reason    string `json:"reason"`
}

// Input is everything the reconciler reads.
type Input struct {
	UserID     string
	Trusted    filter.TrustedSet
	Prior      *filter.TrustedSet
	Annotation hint.Annotation
}

// Request is the reconciled request handed to shape resolution.
//
// Every value is traceable through Provenance to an extractor match, a prior
// turn, an accepted suggestion, or a named default.
type Request struct {
	UserID  string            `json:"user_id"`
	Filters filter.TrustedSet `json:"filters"`

	GroupBy   queryir.GroupKey      `json:"group_by,omitempty"`
	Aggregate queryir.AggregateFunc `json:"aggregate,omitempty"`
	Limit     int                   `json:"limit"`
	Columns   []queryir.Field       `json:"columns,omitempty"`
	Sort      queryir.Order         `json:"sort"`
	ShapeHint queryir.Shape         `json:"shape_hint,omitempty"`

	// Conflicts are kinds both sides set to different values.
	Conflicts []Conflict `json:"conflicts,omitempty"`
	// Rejected are suggestions discarded by policy.
	Rejected []Conflict `json:"rejected,omitempty"`

	Provenance map[string]filter.Source `json:"provenance"`
}

// Source returns the provenance of field, or "" when it is unset.
func (r Request) Source(field string) filter.Source {
	return r.Provenance[field]
}

// Options configures a Reconciler.
type Options struct {
	// CorroborationThreshold defaults to GroupingCorroborationThreshold.
	CorroborationThreshold int
	// RowCap defaults to DefaultRowCap.
	RowCap int
}

// Reconciler merges trusted filters with a suggested annotation.
//
// Precedence, in order:
//  1. A kind on both sides keeps the trusted value; a differing suggestion
//     is recorded as a Conflict.
//  2. Suggestion-only kinds (grouping key, limit, columns) are accepted
//     subject to corroboration and applicability.
//  3. Filter kinds only the suggestion has are never synthesized.
//  4. Anything still unset gets an enumerated default that never reads the
//     annotation.
//
// Reconcile is pure.
type Reconciler struct {
	threshold int
	rowCap    int
}

// New creates a Reconciler.
func New(opts Options) *Reconciler {
	if opts.CorroborationThreshold <= 0 {
		opts.CorroborationThreshold = GroupingCorroborationThreshold
	}
	if opts.RowCap <= 0 {
		opts.RowCap = DefaultRowCap
	}
	return &Reconciler{threshold: opts.CorroborationThreshold, rowCap: opts.RowCap}
}

// RowCap returns the hard row cap.
func (r *Reconciler) RowCap() int {
	return r.rowCap
}

// Reconcile applies the precedence rules.
func (r *Reconciler) Reconcile(in Input) Request {
	merged, filled := in.Trusted.WithPrior(in.Prior)
	ann := in.Annotation
	sig := merged.Signals

	req := Request{
		UserID:     in.UserID,
		Filters:    merged,
		ShapeHint:  ann.ShapeHint,
		Provenance: make(map[string]filter.Source),
	}

	fromPrior := make(map[filter.Kind]bool, len(filled))
	for _, k := range filled {
		fromPrior[k] = true
	}
	for _, k := range merged.Kinds() {
		if fromPrior[k] {
			req.Provenance[string(k)] = filter.SourcePriorContext
		} else {
			req.Provenance[string(k)] = filter.SourceUserStated
		}
	}
	if !merged.Has(filter.KindDateRange) {
		// All time.
		req.Provenance[string(filter.KindDateRange)] = filter.SourceDefault
	}

	r.reconcileFilters(&req, merged, ann)
	r.reconcileGrouping(&req, sig, ann)

	if sig.Aggregate != queryir.AggNone {
		req.Aggregate = sig.Aggregate
		req.Provenance[FieldAggregate] = filter.SourceUserStated
	} else if req.GroupBy != queryir.GroupNone {
		req.Aggregate = DefaultGroupedAggregate
		req.Provenance[FieldAggregate] = filter.SourceDefault
	}

	r.reconcileLimit(&req, merged, ann)
	r.reconcileColumns(&req, ann)

	if sig.Sort != nil {
		req.Sort = *sig.Sort
		req.Provenance[FieldSort] = filter.SourceUserStated
	} else {
		req.Sort = queryir.DefaultOrder
		req.Provenance[FieldSort] = filter.SourceDefault
	}
	return req
}

// reconcileFilters records disagreements on filter kinds. It never copies a
// suggested filter into the request.
func (r *Reconciler) reconcileFilters(req *Request, trusted filter.TrustedSet, ann hint.Annotation) {
	for _, k := range filter.FilterKinds {
		if k == filter.KindExplicitLimit || !ann.HasFilter(k) {
			continue
		}
		suggested := describeSuggested(ann, k)
		if !trusted.Has(k) {
			req.Rejected = append(req.Rejected, Conflict{
				Kind:      string(k),
				Suggested: suggested,
				Winner:    WinnerNone,
				Reason:    ReasonSuggestionOnlyFilter,
			})
			continue
		}
		if !sameFilter(trusted, ann, k) {
			req.Conflicts = append(req.Conflicts, Conflict{
				Kind:      string(k),
				Trusted:   trusted.Describe(k),
				Suggested: suggested,
				Winner:    WinnerTrusted,
				Reason:    ReasonTrustedPrecedence,
			})
		}
	}
}

func (r *Reconciler) reconcileGrouping(req *Request, sig filter.Signals, ann hint.Annotation) {
	if sig.GroupBy != queryir.GroupNone {
		req.GroupBy = sig.GroupBy
		req.Provenance[FieldGroupingKey] = filter.SourceUserStated
		if ann.GroupBy != queryir.GroupNone && ann.GroupBy != sig.GroupBy {
			req.Conflicts = append(req.Conflicts, Conflict{
				Kind:      FieldGroupingKey,
				Trusted:   string(sig.GroupBy),
				Suggested: string(ann.GroupBy),
				Winner:    WinnerTrusted,
				Reason:    ReasonTrustedPrecedence,
			})
		}
		return
	}
	if ann.GroupBy == queryir.GroupNone {
		return
	}
	if Corroboration(sig, ann.GroupBy) < r.threshold {
		req.Rejected = append(req.Rejected, Conflict{
			Kind:      FieldGroupingKey,
			Suggested: string(ann.GroupBy),
			Winner:    WinnerNone,
			Reason:    ReasonUncorroborated,
		})
		return
	}
	req.GroupBy = ann.GroupBy
	req.Provenance[FieldGroupingKey] = filter.SourceSuggestionDerived
}

// Corroboration counts independent trusted signals supporting key: a mention
// of the key's dimension and a distributive word. An aggregate word alone
// never corroborates grouping.
func Corroboration(sig filter.Signals, key queryir.GroupKey) int {
	n := 0
	if sig.Mentions(key) {
		n++
	}
	if sig.Distributive {
		n++
	}
	return n
}

func (r *Reconciler) reconcileLimit(req *Request, trusted filter.TrustedSet, ann hint.Annotation) {
	switch {
	case trusted.Limit != nil:
		req.Limit = *trusted.Limit
		req.Provenance[FieldLimit] = req.Provenance[string(filter.KindExplicitLimit)]
		if ann.Limit != nil && *ann.Limit != *trusted.Limit {
			req.Conflicts = append(req.Conflicts, Conflict{
				Kind:      FieldLimit,
				Trusted:   strconv.Itoa(*trusted.Limit),
				Suggested: strconv.Itoa(*ann.Limit),
				Winner:    WinnerTrusted,
				Reason:    ReasonTrustedPrecedence,
			})
		}
	case ann.Limit != nil && req.Aggregate != queryir.AggNone && req.GroupBy == queryir.GroupNone:
		// A single aggregate has no rows to limit.
		req.Rejected = append(req.Rejected, Conflict{
			Kind:      FieldLimit,
			Suggested: strconv.Itoa(*ann.Limit),
			Winner:    WinnerNone,
			Reason:    ReasonLimitNotApplicable,
		})
		req.Limit = r.rowCap
		req.Provenance[FieldLimit] = filter.SourceDefault
	case ann.Limit != nil:
		req.Limit = *ann.Limit
		req.Provenance[FieldLimit] = filter.SourceSuggestionDerived
	default:
		req.Limit = r.rowCap
		req.Provenance[FieldLimit] = filter.SourceDefault
	}
}

func (r *Reconciler) reconcileColumns(req *Request, ann hint.Annotation) {
	if len(ann.Columns) == 0 {
		return
	}
	if req.Aggregate != queryir.AggNone || req.GroupBy != queryir.GroupNone {
		req.Rejected = append(req.Rejected, Conflict{
			Kind:      FieldColumns,
			Suggested: joinFields(ann.Columns),
			Winner:    WinnerNone,
			Reason:    ReasonColumnsNotApplicable,
		})
		return
	}
	for _, c := range ann.Columns {
		if queryir.IsListColumn(c) {
			req.Columns = append(req.Columns, c)
		}
	}
	if len(req.Columns) > 0 {
		req.Provenance[FieldColumns] = filter.SourceSuggestionDerived
	}
}

func describeSuggested(ann hint.Annotation, k filter.Kind) string {
	switch k {
	case filter.KindDateRange:
		return ann.DateRange.String()
	case filter.KindAmount:
		return ann.Amount.String()
	case filter.KindCategory:
		return strings.Join(ann.Categories, ",")
	case filter.KindCompanion:
		return strings.Join(ann.Companions, ",")
	case filter.KindPaymentMethod:
		return strings.Join(ann.PaymentMethods, ",")
	default:
		return ""
	}
}

func sameFilter(t filter.TrustedSet, ann hint.Annotation, k filter.Kind) bool {
	switch k {
	case filter.KindDateRange:
		return t.DateRange.Start == ann.DateRange.Start && t.DateRange.End == ann.DateRange.End
	case filter.KindAmount:
		return *t.Amount == *ann.Amount
	case filter.KindCategory:
		return sameSet(t.Categories, ann.Categories)
	case filter.KindCompanion:
		return sameSet(t.Companions, ann.Companions)
	case filter.KindPaymentMethod:
		return sameSet(t.PaymentMethods, ann.PaymentMethods)
	default:
		return true
	}
}

// sameSet compares case-insensitively, ignoring order and duplicates.
func sameSet(a, b []string) bool {
	norm := func(xs []string) []string {
		seen := make(map[string]bool)
		var out []string
		for _, x := range xs {
			x = strings.ToLower(strings.TrimSpace(x))
			if !seen[x] {
				seen[x] = true
				out = append(out, x)
			}
		}
		sort.Strings(out)
		return out
	}
	na, nb := norm(a), norm(b)
	if len(na) != len(nb) {
		return false
	}
	for i := range na {
		if na[i] != nb[i] {
			return false
		}
	}
	return true
}

func joinFields(fs []queryir.Field) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = string(f)
	}
	return strings.Join(parts, ",")
}
