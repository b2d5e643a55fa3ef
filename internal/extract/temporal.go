package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/roach88/tally/internal/filter"
)

var monthNumbers = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// ambiguousMonths are month tokens that are also ordinary English words or
// abbreviations; they need a year or a preposition to count as a month.
var ambiguousMonths = map[string]bool{
	"may": true, "jan": true, "feb": true, "mar": true, "apr": true, "jun": true,
	"jul": true, "aug": true, "sep": true, "sept": true, "oct": true, "nov": true, "dec": true,
}

const monthAlt = `january|february|march|april|may|june|july|august|september|october|november|december|sept|jan|feb|mar|apr|jun|jul|aug|sep|oct|nov|dec`

var (
	isoDateRe      = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	dayMonthRe     = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(` + monthAlt + `)\b(?:,?\s+(\d{4})\b)?`)
	monthDayRe     = regexp.MustCompile(`\b(` + monthAlt + `)\s+(\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s+(\d{4})\b)?`)
	bareMonthRe    = regexp.MustCompile(`\b(?:(in|during|for|of|since|last|this)\s+)?(` + monthAlt + `)\b(?:\s+(\d{4})\b)?`)
	yearRe         = regexp.MustCompile(`\b(?:in|during)\s+((?:19|20)\d{2})\b`)
	rangeJoinRe    = regexp.MustCompile(`^\s*(?:and|to|until|till|through|-)\s*$`)
	rangeOpenRe    = regexp.MustCompile(`\b(?:between|from)\s*$`)
	sinceRe        = regexp.MustCompile(`\bsince\s*$`)
	yearCurrencyRe = regexp.MustCompile(`^\s*(?:rupees?|rs\b|inr\b|usd\b|dollars?\b|k\b|bucks\b)`)
)

// relativeRule resolves one relative temporal phrase against today.
type relativeRule struct {
	re      *regexp.Regexp
	resolve func(m []string, today time.Time) (start, end time.Time, label string, ok bool)
}

var relativeRules = []relativeRule{
	{regexp.MustCompile(`\btoday\b`), func(_ []string, today time.Time) (time.Time, time.Time, string, bool) {
		return today, today, "today", true
	}},
	{regexp.MustCompile(`\byesterday\b`), func(_ []string, today time.Time) (time.Time, time.Time, string, bool) {
		d := today.AddDate(0, 0, -1)
		return d, d, "yesterday", true
	}},
	{regexp.MustCompile(`\b(?:this|current)\s+week\b`), func(_ []string, today time.Time) (time.Time, time.Time, string, bool) {
		return weekStart(today), today, "this_week", true
	}},
	{regexp.MustCompile(`\b(?:last|previous)\s+week\b`), func(_ []string, today time.Time) (time.Time, time.Time, string, bool) {
		start := weekStart(today).AddDate(0, 0, -7)
		return start, start.AddDate(0, 0, 6), "last_week", true
	}},
	{regexp.MustCompile(`\bpast\s+week\b`), func(_ []string, today time.Time) (time.Time, time.Time, string, bool) {
		return today.AddDate(0, 0, -6), today, "last_7_days", true
	}},
	{regexp.MustCompile(`\b(?:this|current)\s+month\b`), func(_ []string, today time.Time) (time.Time, time.Time, string, bool) {
		return monthStart(today), today, "this_month", true
	}},
	{regexp.MustCompile(`\b(?:last|previous)\s+month\b`), func(_ []string, today time.Time) (time.Time, time.Time, string, bool) {
		start := monthStart(today).AddDate(0, -1, 0)
		return start, monthEnd(start), "last_month", true
	}},
	{regexp.MustCompile(`\bpast\s+month\b`), func(_ []string, today time.Time) (time.Time, time.Time, string, bool) {
		return monthsBack(today, 1).AddDate(0, 0, 1), today, "past_month", true
	}},
	{regexp.MustCompile(`\b(?:this|current)\s+year\b`), func(_ []string, today time.Time) (time.Time, time.Time, string, bool) {
		return time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC), today, "this_year", true
	}},
	{regexp.MustCompile(`\b(?:last|previous)\s+year\b`), func(_ []string, today time.Time) (time.Time, time.Time, string, bool) {
		y := today.Year() - 1
		return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC), time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC), "last_year", true
	}},
	{regexp.MustCompile(`\bpast\s+year\b`), func(_ []string, today time.Time) (time.Time, time.Time, string, bool) {
		return monthsBack(today, 12).AddDate(0, 0, 1), today, "past_year", true
	}},
	{regexp.MustCompile(`\b(?:last|past|previous)\s+(\d{1,4})\s+(day|week|month|year)s?\b`), func(m []string, today time.Time) (time.Time, time.Time, string, bool) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 || n > 3650 {
			return time.Time{}, time.Time{}, "", false
		}
		var start time.Time
		switch m[2] {
		case "day":
			start = today.AddDate(0, 0, -(n - 1))
		case "week":
			start = today.AddDate(0, 0, -(7*n - 1))
		case "month":
			start = monthsBack(today, n).AddDate(0, 0, 1)
		case "year":
			start = monthsBack(today, 12*n).AddDate(0, 0, 1)
		}
		return start, today, fmt.Sprintf("last_%d_%ss", n, m[2]), true
	}},
}

// dateCandidate is one resolved temporal expression and where it was found.
type dateCandidate struct {
	dr  filter.DateRange
	pos int
}

// dateHit is an explicit calendar date found in text.
type dateHit struct {
	t        time.Time
	start    int
	end      int
	consumed bool
}

// extractDateRange resolves every temporal expression in text and picks one.
//
// Tie policy: the narrowest range wins; among equally narrow ranges the one
// that appears first in the text wins. It also returns every matched span
// so later matchers can ignore temporal words.
func extractDateRange(text string, today time.Time) (*filter.DateRange, [][]int) {
	var candidates []dateCandidate
	var spans [][]int

	hits := explicitDates(text, today)

	// Ranges between two explicit dates, and "since <date>".
	for i := range hits {
		a := &hits[i]
		if a.consumed {
			continue
		}
		prefix := text[:a.start]
		if i+1 < len(hits) && rangeJoinRe.MatchString(text[a.end:hits[i+1].start]) {
			if loc := rangeOpenRe.FindStringIndex(prefix); loc != nil {
				b := &hits[i+1]
				lo, hi := a.t, b.t
				if hi.Before(lo) {
					lo, hi = hi, lo
				}
				candidates = append(candidates, dateCandidate{
					dr:  filter.DateRange{Start: day(lo), End: day(hi), Label: day(lo) + ".." + day(hi)},
					pos: loc[0],
				})
				spans = append(spans, []int{loc[0], b.end})
				a.consumed, b.consumed = true, true
				continue
			}
		}
		if loc := sinceRe.FindStringIndex(prefix); loc != nil && !a.t.After(today) {
			candidates = append(candidates, dateCandidate{
				dr:  filter.DateRange{Start: day(a.t), End: day(today), Label: "since_" + day(a.t)},
				pos: loc[0],
			})
			spans = append(spans, []int{loc[0], a.end})
			a.consumed = true
		}
	}
	for _, h := range hits {
		spans = append(spans, []int{h.start, h.end})
		if h.consumed {
			continue
		}
		candidates = append(candidates, dateCandidate{
			dr:  filter.DateRange{Start: day(h.t), End: day(h.t), Label: day(h.t)},
			pos: h.start,
		})
	}

	for _, rule := range relativeRules {
		for _, m := range rule.re.FindAllStringSubmatchIndex(text, -1) {
			groups := submatches(text, m)
			start, end, label, ok := rule.resolve(groups, today)
			if !ok {
				continue
			}
			candidates = append(candidates, dateCandidate{
				dr:  filter.DateRange{Start: day(start), End: day(end), Label: label},
				pos: m[0],
			})
			spans = append(spans, []int{m[0], m[1]})
		}
	}

	masked := maskSpans(text, spans)
	for _, m := range bareMonthRe.FindAllStringSubmatchIndex(masked, -1) {
		groups := submatches(masked, m)
		prep, name, yearStr := groups[1], groups[2], groups[3]
		if ambiguousMonths[name] && prep == "" && yearStr == "" {
			continue
		}
		start, end, ok := resolveMonth(monthNumbers[name], yearStr, prep, today)
		if !ok {
			continue
		}
		candidates = append(candidates, dateCandidate{
			dr:  filter.DateRange{Start: day(start), End: day(end), Label: start.Format("2006-01")},
			pos: m[0],
		})
		spans = append(spans, []int{m[0], m[1]})
	}

	masked = maskSpans(text, spans)
	for _, m := range yearRe.FindAllStringSubmatchIndex(masked, -1) {
		if yearCurrencyRe.MatchString(masked[m[1]:]) {
			continue
		}
		y, _ := strconv.Atoi(masked[m[2]:m[3]])
		if y < 1970 || y > today.Year()+1 {
			continue
		}
		start := time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC)
		candidates = append(candidates, dateCandidate{
			dr:  filter.DateRange{Start: day(start), End: day(end), Label: strconv.Itoa(y)},
			pos: m[0],
		})
		spans = append(spans, []int{m[0], m[1]})
	}

	if len(candidates) == 0 {
		return nil, spans
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if narrower(c, best) {
			best = c
		}
	}
	dr := best.dr
	return &dr, spans
}

// narrower reports whether a should replace b under the tie policy.
func narrower(a, b dateCandidate) bool {
	da, db := a.dr.Days(), b.dr.Days()
	if da != db {
		return da < db
	}
	return a.pos < b.pos
}

// explicitDates finds calendar dates, earliest first, without overlaps.
// Dates without a year resolve to their most recent past occurrence.
func explicitDates(text string, today time.Time) []dateHit {
	var hits []dateHit
	add := func(t time.Time, start, end int) {
		for _, h := range hits {
			if start < h.end && end > h.start {
				return
			}
		}
		hits = append(hits, dateHit{t: t, start: start, end: end})
	}

	for _, m := range isoDateRe.FindAllStringSubmatchIndex(text, -1) {
		g := submatches(text, m)
		y, _ := strconv.Atoi(g[1])
		mo, _ := strconv.Atoi(g[2])
		d, _ := strconv.Atoi(g[3])
		if t, ok := civilDate(y, time.Month(mo), d); ok {
			add(t, m[0], m[1])
		}
	}
	for _, m := range dayMonthRe.FindAllStringSubmatchIndex(text, -1) {
		g := submatches(text, m)
		d, _ := strconv.Atoi(g[1])
		if t, ok := dateWithOptionalYear(d, monthNumbers[g[2]], g[3], today); ok {
			add(t, m[0], m[1])
		}
	}
	for _, m := range monthDayRe.FindAllStringSubmatchIndex(text, -1) {
		g := submatches(text, m)
		d, _ := strconv.Atoi(g[2])
		if t, ok := dateWithOptionalYear(d, monthNumbers[g[1]], g[3], today); ok {
			add(t, m[0], m[1])
		}
	}

	// Order by position so range detection sees neighbours.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].start < hits[j-1].start; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	return hits
}

func dateWithOptionalYear(d int, mo time.Month, yearStr string, today time.Time) (time.Time, bool) {
	if yearStr != "" {
		y, _ := strconv.Atoi(yearStr)
		return civilDate(y, mo, d)
	}
	t, ok := civilDate(today.Year(), mo, d)
	if !ok {
		// 29 February in a non-leap year: try last year.
		return civilDate(today.Year()-1, mo, d)
	}
	if t.After(today) {
		return civilDate(today.Year()-1, mo, d)
	}
	return t, true
}

// resolveMonth returns the whole month, capped at today when it is the
// current month. Without a year the most recent past occurrence is used;
// "last <month>" always means an earlier year when the month is current.
func resolveMonth(mo time.Month, yearStr, prep string, today time.Time) (time.Time, time.Time, bool) {
	var y int
	if yearStr != "" {
		y, _ = strconv.Atoi(yearStr)
	} else {
		y = today.Year()
		if mo > today.Month() || (prep == "last" && mo == today.Month()) {
			y--
		}
	}
	start := time.Date(y, mo, 1, 0, 0, 0, 0, time.UTC)
	end := monthEnd(start)
	if prep == "since" {
		end = today
	}
	if !start.After(today) && end.After(today) {
		end = today
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func civilDate(y int, mo time.Month, d int) (time.Time, bool) {
	if mo < time.January || mo > time.December || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	if t.Month() != mo || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

// weekStart returns the Monday on or before t.
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func monthEnd(t time.Time) time.Time {
	return monthStart(t).AddDate(0, 1, -1)
}

// monthsBack returns the same day n months before t, clamped to the last
// day of the target month: one month before 31 March is 28 February.
func monthsBack(t time.Time, n int) time.Time {
	first := monthStart(t).AddDate(0, -n, 0)
	if last := monthEnd(first); t.Day() > last.Day() {
		return last
	}
	return first.AddDate(0, 0, t.Day()-1)
}

func day(t time.Time) string {
	return t.Format(time.DateOnly)
}
