package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tally/internal/hint"
	"github.com/roach88/tally/internal/queryir"
	"github.com/roach88/tally/internal/shape"
	"github.com/roach88/tally/internal/store"
)

// Scenario defines a conformance test scenario: a ledger, a fixed "today"
// and a sequence of questions with their expected plans and answers.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Today is the instant relative dates resolve against, RFC 3339.
	// Defaults to testutil.Today.
	Today string `yaml:"today,omitempty"`

	// Timezone is the user's IANA time zone. Defaults to UTC.
	Timezone string `yaml:"timezone,omitempty"`

	// RequestID is returned for every request. Defaults to "test-request".
	RequestID string `yaml:"request_id,omitempty"`

	// Expenses are inserted before the first step.
	Expenses []store.Expense `yaml:"expenses,omitempty"`

	// Ledger is a YAML file with an expenses: list, relative to the
	// scenario file. When neither Expenses nor Ledger is set the standard
	// test ledger is used.
	Ledger string `yaml:"ledger,omitempty"`

	// Steps are asked in order against the same ledger.
	Steps []Step `yaml:"steps"`
}

// Step is one question.
type Step struct {
	// Ask is the question text.
	Ask string `yaml:"ask"`

	// User is the asking user. Defaults to "u1".
	User string `yaml:"user,omitempty"`

	// Carry passes the previous step's trusted filters as prior context.
	Carry bool `yaml:"carry,omitempty"`

	// Answer executes the plan against the ledger.
	Answer bool `yaml:"answer,omitempty"`

	// Hint configures the interpretation service for this step. Without it
	// the service suggests nothing.
	Hint *HintStep `yaml:"hint,omitempty"`

	// Expect is checked against the step's outcome. Unset fields are not
	// checked.
	Expect *Expect `yaml:"expect,omitempty"`
}

// HintStep is a scripted interpretation service response.
type HintStep struct {
	// Raw is the service's response text, parsed like a live response.
	Raw string `yaml:"raw,omitempty"`

	// Fail makes the call fail: unavailable, timeout or malformed.
	Fail string `yaml:"fail,omitempty"`
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	Shape     string `yaml:"shape"`
	Reason    string `yaml:"reason,omitempty"`
	Aggregate string `yaml:"aggregate,omitempty"`
	GroupBy   string `yaml:"group_by,omitempty"`
	Limit     *int   `yaml:"limit,omitempty"`
	Capped    *bool  `yaml:"capped,omitempty"`
	Window    *int   `yaml:"window,omitempty"`

	// Filters lists the plan's predicate fields in order.
	Filters []string `yaml:"filters,omitempty"`

	// Conflicts and Rejected list the kinds of recorded disagreements.
	Conflicts []string `yaml:"conflicts,omitempty"`
	Rejected  []string `yaml:"rejected,omitempty"`

	HintFailure string `yaml:"hint_failure,omitempty"`

	// Answer expectations; only checked when the step has answer: true.
	Value    *int64        `yaml:"value,omitempty"`
	RowCount *int64        `yaml:"row_count,omitempty"`
	Rows     []int64       `yaml:"rows,omitempty"`
	Groups   []ExpectGroup `yaml:"groups,omitempty"`
}

// ExpectGroup is one expected GROUPED bucket.
type ExpectGroup struct {
	Key      string `yaml:"key"`
	Value    int64  `yaml:"value"`
	RowCount int64  `yaml:"row_count"`
}

// Hint failure modes.
const (
	FailUnavailable = string(hint.ReasonUnavailable)
	FailTimeout     = string(hint.ReasonTimeout)
	FailMalformed   = string(hint.ReasonMalformed)
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative ledger path is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Ledger != "" && !filepath.IsAbs(scenario.Ledger) {
		scenario.Ledger = filepath.Join(filepath.Dir(path), scenario.Ledger)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.Today != "" {
		if _, err := time.Parse(time.RFC3339, s.Today); err != nil {
			return fmt.Errorf("today: %w", err)
		}
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	if s.Ledger != "" && len(s.Expenses) > 0 {
		return fmt.Errorf("ledger and expenses are mutually exclusive")
	}

	for i, step := range s.Steps {
		if step.Ask == "" {
			return fmt.Errorf("steps[%d]: ask is required", i)
		}
		if i == 0 && step.Carry {
			return fmt.Errorf("steps[0]: carry needs a previous step")
		}
		if step.Hint != nil {
			if err := validateHint(i, step.Hint); err != nil {
				return err
			}
		}
		if step.Expect != nil {
			if err := validateExpect(i, step.Expect); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateHint(index int, h *HintStep) error {
	switch h.Fail {
	case "", FailUnavailable, FailTimeout, FailMalformed:
	default:
		return fmt.Errorf("steps[%d].hint: unknown fail mode %q", index, h.Fail)
	}
	if h.Fail != "" && h.Raw != "" {
		return fmt.Errorf("steps[%d].hint: raw and fail are mutually exclusive", index)
	}
	return nil
}

func validateExpect(index int, e *Expect) error {
	switch queryir.Shape(e.Shape) {
	case queryir.ShapeList, queryir.ShapeAggregate, queryir.ShapeGrouped:
		if e.Reason != "" {
			return fmt.Errorf("steps[%d].expect: reason only applies to UNRESOLVED", index)
		}
	case queryir.ShapeUnresolved:
		switch shape.Reason(e.Reason) {
		case shape.ReasonNoSignal, shape.ReasonMixedIntent, shape.ReasonUnsupportedGrouping, shape.ReasonNone:
		default:
			return fmt.Errorf("steps[%d].expect: unknown reason %q", index, e.Reason)
		}
	default:
		return fmt.Errorf("steps[%d].expect: shape is required (LIST, AGGREGATE, GROUPED or UNRESOLVED)", index)
	}
	return nil
}
