package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/tally/internal/filter"
	"github.com/roach88/tally/internal/queryir"
)

// MaxExplicitLimit bounds a stated limit; larger numbers are not limits.
const MaxExplicitLimit = 100000

// aggregateRules are checked in priority order; the first hit wins.
var aggregateRules = []struct {
	fn queryir.AggregateFunc
	re *regexp.Regexp
}{
	{queryir.AggAvg, regexp.MustCompile(`\b(?:average|avg|mean)\b`)},
	{queryir.AggCount, regexp.MustCompile(`\b(?:how many|count|number of)\b`)},
	{queryir.AggMax, regexp.MustCompile(`\b(?:biggest|largest|highest|most expensive|costliest|max|maximum)\b`)},
	{queryir.AggMin, regexp.MustCompile(`\b(?:smallest|cheapest|lowest|least expensive|min|minimum)\b`)},
	{queryir.AggSum, regexp.MustCompile(`\b(?:how much|total|totals|sum|altogether|in all)\b`)},
}

// groupNouns maps dimension nouns to grouping keys.
var groupNouns = []struct {
	key queryir.GroupKey
	re  string
}{
	{queryir.GroupSubcategory, `sub-?categor(?:y|ies)`},
	{queryir.GroupCategory, `categor(?:y|ies)`},
	{queryir.GroupPaymentMethod, `payment\s+(?:methods?|modes?|types?)|payment`},
	{queryir.GroupMonth, `months?|monthly`},
	{queryir.GroupWeek, `weeks?|weekly`},
	{queryir.GroupDay, `days?|daily|dates?`},
	{queryir.GroupCompanions, `companions?|person|people|friends?`},
}

var (
	groupByRe     *regexp.Regexp
	groupWiseRe   *regexp.Regexp
	periodicRe    = regexp.MustCompile(`\b(monthly|weekly|daily)\s+(?:breakdown|split|totals?|spend(?:ing)?|summary|trend|expenses?)\b`)
	mentionRes    []*regexp.Regexp
	distributiveR = regexp.MustCompile(`\b(?:per|each|every|breakdown|break\s+down|broken\s+down|split|grouped|group|distribution|across)\b|-?wise\b`)
	listVerbRe    = regexp.MustCompile(`\b(?:list|itemi[sz]e|enumerate|show\s+(?:me\s+)?all|display(?:\s+all)?)\b`)
	rowNounRe     = regexp.MustCompile(`\b(?:expenses?|transactions?|purchases?|payments?|entries|entry|records?|spends)\b`)
	rowNounNotRe  = regexp.MustCompile(`^\s+(?:methods?|modes?|types?)\b`)
	sortByRe      = regexp.MustCompile(`\b(?:sort(?:ed)?|order(?:ed)?)\s+by\s+(date|amount|price|cost|time)\b(?:\s+(asc(?:ending)?|desc(?:ending)?))?`)
	sortFirstRe   = regexp.MustCompile(`\b(oldest|earliest|newest|latest|most recent|biggest|largest|highest|smallest|cheapest|lowest)\s+first\b`)
)

func init() {
	var alts []string
	for _, n := range groupNouns {
		alts = append(alts, n.re)
		mentionRes = append(mentionRes, regexp.MustCompile(`\b(?:`+n.re+`)\b`))
	}
	all := strings.Join(alts, "|")
	groupByRe = regexp.MustCompile(`\b(?:per|by|for\s+each|each|every|across)\s+(` + all + `)\b`)
	groupWiseRe = regexp.MustCompile(`\b(` + all + `)\s*-?\s*wise\b`)
}

// numberWords are the spelled-out counts a limit may use.
var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

const limitNumber = `(\d{1,6}|one|two|three|four|five|six|seven|eight|nine|ten)`

// limitRules recognise explicit row limits. sort is the ordering the phrase
// implies, or nil.
var limitRules = []struct {
	re   *regexp.Regexp
	sort func(m []string) *queryir.Order
}{
	{regexp.MustCompile(`\btop\s+` + limitNumber + `\b`), func([]string) *queryir.Order {
		return &queryir.Order{Field: queryir.FieldAmount, Desc: true}
	}},
	{regexp.MustCompile(`\b(first|last|latest|recent|most\s+recent|newest|oldest)\s+` + limitNumber + `\b`), func(m []string) *queryir.Order {
		asc := m[1] == "first" || m[1] == "oldest"
		return &queryir.Order{Field: queryir.FieldDate, Desc: !asc}
	}},
	{regexp.MustCompile(`\b` + limitNumber + `\s+(?:most\s+recent|latest|newest|recent)\b`), func([]string) *queryir.Order {
		return &queryir.Order{Field: queryir.FieldDate, Desc: true}
	}},
	{regexp.MustCompile(`\b` + limitNumber + `\s+(?:biggest|largest|highest|costliest|most\s+expensive)\b`), func([]string) *queryir.Order {
		return &queryir.Order{Field: queryir.FieldAmount, Desc: true}
	}},
	{regexp.MustCompile(`\b` + limitNumber + `\s+(?:smallest|cheapest|lowest|least\s+expensive)\b`), func([]string) *queryir.Order {
		return &queryir.Order{Field: queryir.FieldAmount}
	}},
	{regexp.MustCompile(`\blimit\s+(?:to\s+)?` + limitNumber + `\b`), func([]string) *queryir.Order {
		return nil
	}},
}

// extractLimit returns the first explicit limit in text, the ordering it
// implies, and the span of the phrase.
func extractLimit(text string) (*int, *queryir.Order, [][]int) {
	best := -1
	var limit int
	var order *queryir.Order
	var span []int
	for _, rule := range limitRules {
		m := rule.re.FindStringSubmatchIndex(text)
		if m == nil || (best >= 0 && m[0] >= best) {
			continue
		}
		g := submatches(text, m)
		n, ok := parseLimit(g[len(g)-1])
		if !ok {
			continue
		}
		best, limit, order, span = m[0], n, rule.sort(g), []int{m[0], m[1]}
	}
	if best < 0 {
		return nil, nil, nil
	}
	return &limit, order, [][]int{span}
}

func parseLimit(s string) (int, bool) {
	if n, ok := numberWords[s]; ok {
		return n, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > MaxExplicitLimit {
		return 0, false
	}
	return n, true
}

// extractSignals scans text for vocabulary that informs shape and grouping.
func extractSignals(text string) filter.Signals {
	var s filter.Signals

	if m := sortByRe.FindStringSubmatchIndex(text); m != nil {
		g := submatches(text, m)
		o := queryir.Order{Field: queryir.FieldAmount, Desc: true}
		if g[1] == "date" || g[1] == "time" {
			o.Field = queryir.FieldDate
		}
		if strings.HasPrefix(g[2], "asc") {
			o.Desc = false
		}
		s.Sort = &o
		text = maskSpans(text, [][]int{{m[0], m[1]}})
	} else if m := sortFirstRe.FindStringSubmatchIndex(text); m != nil {
		g := submatches(text, m)
		switch g[1] {
		case "oldest", "earliest":
			s.Sort = &queryir.Order{Field: queryir.FieldDate}
		case "newest", "latest", "most recent":
			s.Sort = &queryir.Order{Field: queryir.FieldDate, Desc: true}
		case "smallest", "cheapest", "lowest":
			s.Sort = &queryir.Order{Field: queryir.FieldAmount}
		default:
			s.Sort = &queryir.Order{Field: queryir.FieldAmount, Desc: true}
		}
		text = maskSpans(text, [][]int{{m[0], m[1]}})
	}

	for _, rule := range aggregateRules {
		if rule.re.MatchString(text) {
			s.Aggregate = rule.fn
			break
		}
	}

	s.GroupBy = groupingKey(text)

	for i, re := range mentionRes {
		key := groupNouns[i].key
		for _, loc := range re.FindAllStringIndex(text, -1) {
			// "payment" alone is a row noun unless it names a method.
			if key == queryir.GroupPaymentMethod && strings.TrimSpace(text[loc[0]:loc[1]]) == "payment" {
				continue
			}
			s.DimensionMentions = append(s.DimensionMentions, key)
			break
		}
	}

	s.Distributive = distributiveR.MatchString(text)
	s.ListVerb = listVerbRe.MatchString(text)
	for _, loc := range rowNounRe.FindAllStringIndex(text, -1) {
		if !rowNounNotRe.MatchString(text[loc[1]:]) {
			s.RowNoun = true
			break
		}
	}
	return s
}

// groupingKey returns the key named by the first grouping phrase.
func groupingKey(text string) queryir.GroupKey {
	type hit struct {
		pos int
		key queryir.GroupKey
	}
	var hits []hit
	for _, re := range []*regexp.Regexp{groupByRe, groupWiseRe} {
		if m := re.FindStringSubmatchIndex(text); m != nil {
			if k, ok := nounKey(text[m[2]:m[3]]); ok {
				hits = append(hits, hit{m[0], k})
			}
		}
	}
	if m := periodicRe.FindStringSubmatchIndex(text); m != nil {
		if k, ok := nounKey(text[m[2]:m[3]]); ok {
			hits = append(hits, hit{m[0], k})
		}
	}
	if len(hits) == 0 {
		return queryir.GroupNone
	}
	best := hits[0]
	for _, h := range hits[1:] {
		if h.pos < best.pos {
			best = h
		}
	}
	return best.key
}

func nounKey(noun string) (queryir.GroupKey, bool) {
	for i, re := range mentionRes {
		if loc := re.FindStringIndex(noun); loc != nil && loc[0] == 0 && loc[1] == len(noun) {
			return groupNouns[i].key, true
		}
	}
	return queryir.GroupNone, false
}
