// Package filter defines the trusted side of query reconciliation.
//
// A TrustedSet is populated only by the deterministic extractor, or by a
// caller passing a previous TrustedSet as context. Nothing in this package
// accepts a suggestion; the suggested side lives in package hint with its
// own types, and the only path between the two is the reconciler.
package filter
