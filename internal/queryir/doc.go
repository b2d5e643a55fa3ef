// Package queryir defines the query plan handed from the reconciliation
// pipeline to storage.
//
// The plan is the contract between the planner and backends. The planner
// produces it, Validate checks it, querysql compiles it, store executes it.
//
//	[planner] → [Plan] → [querysql] → [store]
//
// SEALED INTERFACES:
//
// Predicate is sealed with the marker method pattern. Backends switch over
// Equals, In, Compare, Between, HasAny and And, and treat anything else as a
// defect.
//
// VALUES:
//
// All literals are ir.IRValue. There are no floats: amounts are int64 minor
// units and dates are YYYY-MM-DD strings, which order correctly as text.
//
// IDENTITY:
//
// Plan.Body encodes a plan as an IRObject; ir.PlanID hashes its canonical
// form. Equal plans always share an ID regardless of which question produced
// them.
package queryir
