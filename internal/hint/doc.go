// Package hint obtains non-authoritative annotations from an interpretation
// service.
//
// A Suggester wraps one provider (Gemini, OpenAI, or a test double). The
// Collector calls it under a fixed policy: one shared deadline, at most one
// retry, and a token-bucket limiter shared across requests. Every failure
// degrades to an empty Annotation with the reason recorded on the Outcome.
// Nothing in this package can produce a filter.TrustedSet.
package hint
