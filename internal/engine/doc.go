// Package engine resolves free-text expense questions into executable query
// plans and, on request, answers them with a single storage read.
//
// Resolve runs the pipeline strictly forward:
//
//	extract → hint → reconcile → shape → plan
//
// The extractor's trusted filters are authoritative. The hint collector's
// annotation may only add what the reconciler allows, and an UNRESOLVED
// shape is returned as a Rejection with a clarification instead of being
// guessed at. No error path produces a number.
//
// Errors are typed: *RuntimeError carries a RuntimeErrorCode, *Rejection
// carries the clarification. Use IsUnresolved, IsInvariantViolation and
// IsInvalidRequest rather than matching on messages.
//
// Metrics go to the prometheus.Registerer passed to NewMetrics; logs go to
// the injected *zap.Logger with request_id on every entry.
package engine
