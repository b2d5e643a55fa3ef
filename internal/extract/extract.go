package extract

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/tally/internal/filter"
	"github.com/roach88/tally/internal/queryir"
)

// DefaultMinorUnits is the number of fractional digits in the currency.
const DefaultMinorUnits = 2

// Options configures an Extractor.
type Options struct {
	// Vocabulary supplies category and payment keywords.
	// The zero value uses DefaultVocabulary.
	Vocabulary Vocabulary

	// Location is the user's time zone for "today". Defaults to UTC.
	Location *time.Location

	// MinorUnits is the number of fractional currency digits. Defaults to 2.
	MinorUnits int

	// Now returns the current instant. Defaults to time.Now.
	Now func() time.Time
}

// Extractor derives a TrustedSet from question text using fixed vocabulary
// and patterns only.
//
// Extract never fails: an unrecognised phrase is simply absent from the
// result. Every matcher runs on the same normalised text and none of them
// suppresses another, except that temporal and limit phrases are masked out
// before amounts, companions and signals are scanned so "last 5 days" never
// becomes an amount or a dimension mention.
//
// An Extractor is immutable after New and safe for concurrent use.
type Extractor struct {
	loc        *time.Location
	minorUnits int
	now        func() time.Time

	categories *keywordMatcher
	payments   *keywordMatcher
	stopwords  map[string]bool
}

// New creates an Extractor.
func New(opts Options) *Extractor {
	if opts.Vocabulary.Categories == nil && opts.Vocabulary.PaymentMethods == nil {
		opts.Vocabulary = DefaultVocabulary()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MinorUnits <= 0 {
		opts.MinorUnits = DefaultMinorUnits
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	e := &Extractor{
		loc:        opts.Location,
		minorUnits: opts.MinorUnits,
		now:        opts.Now,
		categories: newKeywordMatcher(opts.Vocabulary.Categories),
		payments:   newKeywordMatcher(opts.Vocabulary.PaymentMethods),
		stopwords:  make(map[string]bool),
	}
	for w := range nameStopwords {
		e.stopwords[w] = true
	}
	for w := range opts.Vocabulary.Categories {
		for _, f := range strings.Fields(strings.ToLower(w)) {
			e.stopwords[f] = true
		}
	}
	for w := range opts.Vocabulary.PaymentMethods {
		for _, f := range strings.Fields(strings.ToLower(w)) {
			e.stopwords[f] = true
		}
	}
	for w := range monthNumbers {
		e.stopwords[w] = true
	}
	return e
}

// Today returns the current civil date in the extractor's time zone as a
// UTC midnight.
func (e *Extractor) Today() time.Time {
	t := e.now().In(e.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Extract runs every matcher over q.Text.
func (e *Extractor) Extract(q filter.RawQuery) filter.TrustedSet {
	text := Normalize(q.Text)
	var ts filter.TrustedSet

	dr, dateSpans := extractDateRange(text, e.Today())
	ts.DateRange = dr
	masked := maskSpans(text, dateSpans)

	limit, limitSort, limitSpans := extractLimit(masked)
	ts.Limit = limit
	masked = maskSpans(masked, limitSpans)

	amount, amountSpans := extractAmount(masked, e.minorUnits)
	ts.Amount = amount

	ts.Categories, _ = e.categories.match(masked)
	ts.PaymentMethods, _ = e.payments.match(masked)
	ts.Companions = e.extractCompanions(maskSpans(masked, amountSpans))

	ts.Signals = extractSignals(maskSpans(masked, amountSpans))
	if ts.Signals.Sort == nil && limitSort != nil {
		ts.Signals.Sort = limitSort
	}
	// With an explicit limit, superlatives rank rows instead of aggregating.
	if ts.Limit != nil {
		switch ts.Signals.Aggregate {
		case queryir.AggMax:
			ts.Signals.Aggregate = queryir.AggNone
			if ts.Signals.Sort == nil {
				ts.Signals.Sort = &queryir.Order{Field: queryir.FieldAmount, Desc: true}
			}
		case queryir.AggMin:
			ts.Signals.Aggregate = queryir.AggNone
			if ts.Signals.Sort == nil {
				ts.Signals.Sort = &queryir.Order{Field: queryir.FieldAmount}
			}
		}
	}
	return ts
}

// Normalize applies NFC composition and full case folding, and maps
// typographic apostrophes to ASCII.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = strings.NewReplacer("’", "'", "‘", "'").Replace(s)
	// A Caser is stateful, so one is created per call.
	return cases.Fold().String(s)
}

// submatches converts an index slice from FindStringSubmatchIndex into
// strings, with "" for groups that did not participate.
func submatches(text string, m []int) []string {
	out := make([]string, len(m)/2)
	for i := range out {
		lo, hi := m[2*i], m[2*i+1]
		if lo >= 0 && hi >= 0 {
			out[i] = text[lo:hi]
		}
	}
	return out
}

// maskSpans replaces every byte inside spans with a space. Offsets into the
// result stay valid for the input.
func maskSpans(text string, spans [][]int) string {
	if len(spans) == 0 {
		return text
	}
	b := []byte(text)
	for _, s := range spans {
		for i := s[0]; i < s[1] && i < len(b); i++ {
			b[i] = ' '
		}
	}
	return string(b)
}
