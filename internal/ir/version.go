package ir

// Version constants for plan layout and engine.
const (
	// PlanVersion is the plan layout version folded into every plan ID.
	PlanVersion = "1"

	// EngineVersion is the tally engine version.
	EngineVersion = "0.1.0"
)
