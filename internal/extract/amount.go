package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/tally/internal/filter"
)

const amountNumber = `(\d{1,3}(?:,\d{2,3})+|\d+)(?:\.(\d+))?(?:\s*(k|lakhs?|lacs?)\b)?`

var (
	amountRe = regexp.MustCompile(
		`(₹|\brs\.?|\binr\b|\$|\busd\b)?\s*` + amountNumber +
			`(?:\s*(rupees?\b|rs\b\.?|inr\b|usd\b|dollars?\b|bucks\b))?`)
	betweenAmountRe = regexp.MustCompile(
		`\b(?:between|from)\s+(₹|\brs\.?|\binr\b|\$|\busd\b)?\s*` + amountNumber +
			`\s*(?:rupees?|rs\.?|inr|usd|dollars?)?\s+(?:and|to|-)\s+(₹|\brs\.?|\binr\b|\$|\busd\b)?\s*` + amountNumber +
			`(?:\s*(rupees?\b|rs\b\.?|inr\b|usd\b|dollars?\b|bucks\b))?`)
	comparatorRe = regexp.MustCompile(
		`\b(more than|greater than|over|above|exceeding|at least|no less than|under|below|less than|at most|up to|upto|no more than|exactly|equal to)\s*$`)
	currencyWordRe = regexp.MustCompile(`\b(?:rupees?|rs|inr|usd|dollars?)\b`)
	// Numbers followed by these words are counts or durations, not money.
	notMoneyRe = regexp.MustCompile(`^\s*(?:expenses?|transactions?|purchases?|payments?|entries|records?|items?|times?|days?|weeks?|months?|years?|people|persons?)\b`)
)

var comparatorOps = map[string]filter.AmountOp{
	"more than":    filter.AmountGT,
	"greater than": filter.AmountGT,
	"over":         filter.AmountGT,
	"above":        filter.AmountGT,
	"exceeding":    filter.AmountGT,
	"at least":     filter.AmountGTE,
	"no less than": filter.AmountGTE,
	"under":        filter.AmountLT,
	"below":        filter.AmountLT,
	"less than":    filter.AmountLT,
	"at most":      filter.AmountLTE,
	"up to":        filter.AmountLTE,
	"upto":         filter.AmountLTE,
	"no more than": filter.AmountLTE,
	"exactly":      filter.AmountEQ,
	"equal to":     filter.AmountEQ,
}

// extractAmount finds the first qualified amount in text.
//
// A number is an amount only when a comparator word precedes it or a
// currency marker is attached; bare numbers are never money. Temporal spans
// are masked out by the caller. Values are converted to minor units with
// integer arithmetic; a value with more fractional digits than the currency
// has is refused rather than rounded.
func extractAmount(text string, minorUnits int) (*filter.AmountComparator, [][]int) {
	if m := betweenAmountRe.FindStringSubmatchIndex(text); m != nil {
		g := submatches(text, m)
		lo, ok1 := toMinorUnits(g[2], g[3], g[4], minorUnits)
		hi, ok2 := toMinorUnits(g[6], g[7], g[8], minorUnits)
		hasCurrency := g[1] != "" || g[5] != "" || g[9] != "" ||
			currencyWordRe.MatchString(text[m[0]:m[1]])
		if ok1 && ok2 && (hasCurrency || g[4] != "" || g[8] != "") {
			if hi < lo {
				lo, hi = hi, lo
			}
			return &filter.AmountComparator{Op: filter.AmountBetween, Value: lo, High: hi}, [][]int{{m[0], m[1]}}
		}
	}

	for _, m := range amountRe.FindAllStringSubmatchIndex(text, -1) {
		g := submatches(text, m)
		prefix, whole, frac, mult, suffix := g[1], g[2], g[3], g[4], g[5]
		if whole == "" {
			continue
		}
		// The match must start on a word boundary unless it starts with a symbol.
		if prefix == "" && m[4] > 0 && isWordByte(text[m[4]-1]) {
			continue
		}
		if suffix == "" && notMoneyRe.MatchString(text[m[1]:]) {
			continue
		}

		op := filter.AmountEQ
		start := m[0]
		qualified := prefix != "" || suffix != "" || mult != ""
		if c := comparatorRe.FindStringSubmatchIndex(text[:m[0]+leadingSpace(text[m[0]:])]); c != nil {
			op = comparatorOps[text[c[2]:c[3]]]
			start = c[0]
			qualified = true
		}
		if !qualified {
			continue
		}

		value, ok := toMinorUnits(whole, frac, mult, minorUnits)
		if !ok {
			continue
		}
		return &filter.AmountComparator{Op: op, Value: value}, [][]int{{start, m[1]}}
	}
	return nil, nil
}

// toMinorUnits converts "1,234" "50" "k" into minor units without floats.
func toMinorUnits(whole, frac, mult string, minorUnits int) (int64, bool) {
	if whole == "" {
		return 0, false
	}
	w, err := strconv.ParseInt(strings.ReplaceAll(whole, ",", ""), 10, 64)
	if err != nil {
		return 0, false
	}
	if len(frac) > minorUnits {
		return 0, false
	}

	scale := pow10(minorUnits)
	var f int64
	if frac != "" {
		f, err = strconv.ParseInt(frac+strings.Repeat("0", minorUnits-len(frac)), 10, 64)
		if err != nil {
			return 0, false
		}
	}

	var multiplier int64 = 1
	switch {
	case mult == "k":
		multiplier = 1000
	case strings.HasPrefix(mult, "lakh"), strings.HasPrefix(mult, "lac"):
		multiplier = 100000
	}

	const limit = int64(1) << 53
	if w > limit/scale/multiplier {
		return 0, false
	}
	return (w*scale + f) * multiplier, true
}

func pow10(n int) int64 {
	p := int64(1)
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}

func leadingSpace(s string) int {
	return len(s) - len(strings.TrimLeft(s, " \t"))
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}
