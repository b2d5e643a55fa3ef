package extract

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// maxNameWords bounds a single companion name ("alice smith").
const maxNameWords = 2

var (
	withRe   = regexp.MustCompile(`\bwith\b`)
	meAndRe  = regexp.MustCompile(`\bme\s+and\s+([\p{L}][\p{L}'-]*)`)
	andMeRe  = regexp.MustCompile(`([\p{L}][\p{L}'-]*)\s+and\s+(?:me|i)\b`)
	nameWord = regexp.MustCompile(`^[\p{L}][\p{L}'-]*$`)
	tokenRe  = regexp.MustCompile(`[\p{L}\p{N}'&-]+|\S`)
)

// nameStopwords end a companion list or are never names on their own.
var nameStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "my": true, "our": true, "your": true, "his": true, "their": true,
	"me": true, "i": true, "we": true, "us": true, "you": true, "him": true, "her": true, "them": true,
	"someone": true, "anyone": true, "everyone": true, "friends": true, "friend": true,
	"family": true, "colleagues": true, "people": true, "others": true, "whom": true, "who": true,
	"in": true, "on": true, "at": true, "for": true, "to": true, "from": true, "of": true, "by": true,
	"during": true, "since": true, "between": true, "after": true, "before": true, "about": true,
	"last": true, "this": true, "next": true, "past": true, "previous": true, "current": true,
	"or": true, "but": true, "so": true, "than": true, "then": true, "when": true, "where": true,
	"how": true, "what": true, "which": true, "much": true, "many": true, "all": true, "any": true,
	"total": true, "spent": true, "spend": true, "spending": true, "paid": true, "pay": true,
	"using": true, "via": true, "per": true, "each": true, "every": true, "over": true, "under": true,
	"above": true, "below": true, "more": true, "less": true, "is": true, "was": true, "did": true,
	"do": true, "have": true, "had": true, "expense": true, "expenses": true, "money": true,
	"today": true, "yesterday": true, "week": true, "month": true, "year": true,
	"and": true, "with": true,
	// Expense field nouns: "with amount over 500" names no one.
	"amount": true, "amounts": true, "description": true, "descriptions": true,
	"date": true, "dates": true, "category": true, "categories": true,
	"subcategory": true, "subcategories": true, "sub-category": true, "sub-categories": true,
	"payment": true, "payments": true, "method": true, "methods": true, "mode": true,
	"price": true, "prices": true, "cost": true, "costs": true,
}

// extractCompanions finds people the user spent with, title-cased and
// deduplicated in order of appearance.
func (e *Extractor) extractCompanions(text string) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(words []string) {
		if len(words) == 0 {
			return
		}
		name := cases.Title(language.Und).String(strings.Join(words, " "))
		key := strings.ToLower(name)
		if seen[key] {
			return
		}
		seen[key] = true
		names = append(names, name)
	}

	for _, loc := range withRe.FindAllStringIndex(text, -1) {
		for _, n := range e.nameList(text[loc[1]:]) {
			add(n)
		}
	}
	for _, re := range []*regexp.Regexp{meAndRe, andMeRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if e.isName(m[1]) {
				add([]string{m[1]})
			}
		}
	}
	return names
}

// nameList reads "alice, bob smith and carol" from the start of rest and
// stops at the first word that cannot be part of a name.
func (e *Extractor) nameList(rest string) [][]string {
	var out [][]string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			out = append(out, cur)
			cur = nil
		}
	}
	for _, tok := range tokenRe.FindAllString(rest, -1) {
		if tok == "," || tok == "and" || tok == "&" {
			if len(cur) == 0 && len(out) == 0 {
				break
			}
			flush()
			continue
		}
		if !e.isName(tok) || len(cur) == maxNameWords {
			break
		}
		cur = append(cur, tok)
	}
	flush()
	return out
}

func (e *Extractor) isName(word string) bool {
	return nameWord.MatchString(word) && !e.stopwords[word] && !rowNounRe.MatchString(word)
}
