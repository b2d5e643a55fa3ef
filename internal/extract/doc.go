// Package extract derives trusted filters from question text.
//
// The Extractor is the only producer of filter.TrustedSet. It uses fixed
// vocabulary tables and regular expressions, evaluated against an injected
// clock and time zone, and never consults a language model.
//
// MATCHERS:
//
//	temporal   → date_range          (narrowest range wins, then earliest)
//	amount     → amount_comparator   (comparator word or currency marker required)
//	vocabulary → category, payment_method
//	people     → companion
//	limits     → explicit_limit      (plus the ordering the phrase implies)
//	signals    → aggregate, grouping, list verb, row noun, mentions, sort
//
// Text is NFC-normalized and case-folded before matching. Temporal and limit
// phrases are masked out before later matchers run, so "last 5 days" is never
// read as an amount, a limit or a mention of the day dimension.
package extract
