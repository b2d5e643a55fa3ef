package hint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/roach88/tally/internal/filter"
	"github.com/roach88/tally/internal/queryir"
)

// ErrMalformed means the response was not a JSON object at all.
// Malformed responses are not retried.
var ErrMalformed = errors.New("malformed annotation")

// maxSuggestedLimit bounds a suggested limit; anything larger is dropped.
const maxSuggestedLimit = 1_000_000

// ParseAnnotation decodes a service response.
//
// Parsing is defensive: markdown code fences are stripped and every field is
// decoded on its own. A field with the wrong type or an unknown value is
// dropped and listed in Dropped; it is never replaced with a default. Only a
// response that is not a JSON object fails, with ErrMalformed.
func ParseAnnotation(raw string) (Annotation, error) {
	body := stripFences(raw)

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return Annotation{}, fmt.Errorf("%w: %.120q", ErrMalformed, body)
	}

	var a Annotation
	p := &parser{ann: &a}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		msg := fields[key]
		if isNull(msg) {
			continue
		}
		switch key {
		case string(KindGroupingKey):
			p.groupingKey(msg)
		case string(KindLimit):
			p.limit(msg)
		case string(KindColumns):
			p.columns(msg)
		case string(KindShapeHint):
			p.shapeHint(msg)
		case string(filter.KindCategory):
			a.Categories = p.stringList(key, msg, strings.ToLower)
		case string(filter.KindCompanion):
			a.Companions = p.stringList(key, msg, nil)
		case string(filter.KindPaymentMethod):
			a.PaymentMethods = p.stringList(key, msg, nil)
		case string(filter.KindDateRange):
			p.dateRange(msg)
		case string(filter.KindAmount):
			p.amount(msg)
		default:
			p.drop(key, "unknown field")
		}
	}
	return a, nil
}

// stripFences removes a surrounding ```json ... ``` block.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func isNull(msg json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(msg), []byte("null"))
}

type parser struct {
	ann *Annotation
}

func (p *parser) drop(field, reason string) {
	p.ann.Dropped = append(p.ann.Dropped, field+": "+reason)
}

func (p *parser) str(field string, msg json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(msg, &s); err != nil {
		p.drop(field, "not a string")
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

func (p *parser) groupingKey(msg json.RawMessage) {
	s, ok := p.str(string(KindGroupingKey), msg)
	if !ok {
		return
	}
	s = strings.ToLower(s)
	if s == "none" {
		return
	}
	k, ok := queryir.ParseGroupKey(s)
	if !ok {
		p.drop(string(KindGroupingKey), fmt.Sprintf("unknown key %q", s))
		return
	}
	p.ann.GroupBy = k
}

func (p *parser) limit(msg json.RawMessage) {
	var n json.Number
	if err := json.Unmarshal(msg, &n); err != nil {
		p.drop(string(KindLimit), "not a number")
		return
	}
	v, err := n.Int64()
	if err != nil {
		p.drop(string(KindLimit), "not an integer")
		return
	}
	if v <= 0 || v > maxSuggestedLimit {
		p.drop(string(KindLimit), fmt.Sprintf("out of range: %d", v))
		return
	}
	limit := int(v)
	p.ann.Limit = &limit
}

func (p *parser) columns(msg json.RawMessage) {
	var raw []string
	if err := json.Unmarshal(msg, &raw); err != nil {
		p.drop(string(KindColumns), "not a list of strings")
		return
	}
	seen := make(map[queryir.Field]bool)
	for _, c := range raw {
		f := queryir.Field(strings.ToLower(strings.TrimSpace(c)))
		if !queryir.IsListColumn(f) {
			p.drop(string(KindColumns), fmt.Sprintf("unknown column %q", c))
			continue
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		p.ann.Columns = append(p.ann.Columns, f)
	}
}

func (p *parser) shapeHint(msg json.RawMessage) {
	s, ok := p.str(string(KindShapeHint), msg)
	if !ok {
		return
	}
	switch shape := queryir.Shape(strings.ToUpper(s)); shape {
	case queryir.ShapeList, queryir.ShapeAggregate, queryir.ShapeGrouped, queryir.ShapeUnresolved:
		p.ann.ShapeHint = shape
	default:
		p.drop(string(KindShapeHint), fmt.Sprintf("unknown shape %q", s))
	}
}

// stringList accepts a string or a list of strings.
func (p *parser) stringList(field string, msg json.RawMessage, canon func(string) string) []string {
	var list []string
	if err := json.Unmarshal(msg, &list); err != nil {
		var single string
		if err := json.Unmarshal(msg, &single); err != nil {
			p.drop(field, "not a string or list of strings")
			return nil
		}
		list = []string{single}
	}
	var out []string
	seen := make(map[string]bool)
	for _, s := range list {
		s = strings.TrimSpace(s)
		if canon != nil {
			s = canon(s)
		}
		if s == "" || seen[strings.ToLower(s)] {
			continue
		}
		seen[strings.ToLower(s)] = true
		out = append(out, s)
	}
	return out
}

func (p *parser) dateRange(msg json.RawMessage) {
	var dr struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}
	if err := json.Unmarshal(msg, &dr); err != nil {
		p.drop(string(filter.KindDateRange), "not an object")
		return
	}
	start, err1 := time.Parse(time.DateOnly, dr.Start)
	end, err2 := time.Parse(time.DateOnly, dr.End)
	if err1 != nil || err2 != nil || end.Before(start) {
		p.drop(string(filter.KindDateRange), "invalid dates")
		return
	}
	p.ann.DateRange = &filter.DateRange{Start: dr.Start, End: dr.End}
}

func (p *parser) amount(msg json.RawMessage) {
	var ac struct {
		Op    string      `json:"op"`
		Value json.Number `json:"value"`
		High  json.Number `json:"high"`
	}
	if err := json.Unmarshal(msg, &ac); err != nil {
		p.drop(string(filter.KindAmount), "not an object")
		return
	}
	op := filter.AmountOp(strings.ToLower(ac.Op))
	switch op {
	case filter.AmountGT, filter.AmountGTE, filter.AmountLT, filter.AmountLTE, filter.AmountEQ, filter.AmountBetween:
	default:
		p.drop(string(filter.KindAmount), fmt.Sprintf("unknown op %q", ac.Op))
		return
	}
	value, err := ac.Value.Int64()
	if err != nil || value < 0 {
		p.drop(string(filter.KindAmount), "value is not a non-negative integer")
		return
	}
	out := &filter.AmountComparator{Op: op, Value: value}
	if op == filter.AmountBetween {
		high, err := ac.High.Int64()
		if err != nil || high < value {
			p.drop(string(filter.KindAmount), "invalid upper bound")
			return
		}
		out.High = high
	}
	p.ann.Amount = out
}
