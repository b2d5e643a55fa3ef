// Package planner builds the executable query plan for a reconciled request.
//
// Build is the last pure step before storage: it lays out predicates in a
// fixed order, applies the row cap, validates the plan against queryir's
// invariants and stamps it with a content-addressed ID.
package planner
