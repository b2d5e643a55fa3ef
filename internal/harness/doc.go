// Package harness provides conformance testing for the query reconciliation
// engine.
//
// A scenario fixes a ledger and a "today", then asks a sequence of questions
// through a real engine. Each step may script the interpretation service,
// carry the previous step's filters forward, and execute the plan against
// an in-memory store.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	today: "2025-04-16T10:30:00Z"   # optional
//	timezone: Asia/Kolkata          # optional
//	ledger: ledgers/basic.yaml      # optional; or inline expenses:
//	steps:
//	  - ask: "How much did I spend on food last month?"
//	    answer: true
//	    hint:
//	      raw: '{"category": ["travel"]}'
//	    expect:
//	      shape: AGGREGATE
//	      aggregate: sum
//	      filters: [user_id, date, category]
//	      conflicts: [category]
//	      value: 57050
//	  - ask: "and the week before?"
//	    carry: true
//
// Unknown fields are rejected so typos fail loudly.
//
// # Deterministic Testing
//
// All scenarios execute with a fixed clock and a fixed request id so the
// same scenario always produces the same plans. The harness uses:
//   - testutil.FixedClock (scenario.today, or testutil.Today)
//   - testutil.FixedIDGenerator (scenario.request_id, or "test-request")
//   - In-memory SQLite database (isolated per scenario)
//
// Snapshots of every step are compared against golden files in
// testdata/golden; regenerate them with go test ./internal/harness -update.
package harness
