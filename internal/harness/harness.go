package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/tally/internal/engine"
	"github.com/roach88/tally/internal/extract"
	"github.com/roach88/tally/internal/filter"
	"github.com/roach88/tally/internal/hint"
	"github.com/roach88/tally/internal/store"
	"github.com/roach88/tally/internal/testutil"
)

// DefaultUser asks every step that names no user.
const DefaultUser = "u1"

// hintTimeout bounds every scripted hint call. A "timeout" step sleeps
// well past it.
const hintTimeout = 200 * time.Millisecond

// Option configures a run.
type Option func(*runConfig)

type runConfig struct {
	logger *zap.Logger
}

// WithLogger sets the logger handed to the engine. Default: zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(c *runConfig) { c.logger = l }
}

// Harness is the test execution engine.
// It runs scenarios with a fixed clock and fixed request ids.
type Harness struct {
	store     *store.Store
	extractor *extract.Extractor
	clock     *testutil.FixedClock
	ids       *testutil.FixedIDGenerator
	logger    *zap.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database and load the ledger
// 2. Fix the clock at the scenario's today
// 3. Ask each step through a real engine, carrying prior context on request
// 4. Check each step's expect clause
// 5. Return result with pass/fail, steps, and errors
//
// A failed expectation is reported in Result.Errors; the returned error is
// reserved for scenarios that cannot run at all.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	expenses, err := scenarioExpenses(scenario)
	if err != nil {
		return nil, err
	}
	for i, e := range expenses {
		if _, err := st.InsertExpense(ctx, e); err != nil {
			return nil, fmt.Errorf("expenses[%d]: %w", i, err)
		}
	}

	today := testutil.Today
	if scenario.Today != "" {
		today, err = time.Parse(time.RFC3339, scenario.Today)
		if err != nil {
			return nil, fmt.Errorf("today: %w", err)
		}
	}
	loc := time.UTC
	if scenario.Timezone != "" {
		loc, err = time.LoadLocation(scenario.Timezone)
		if err != nil {
			return nil, fmt.Errorf("timezone: %w", err)
		}
	}

	clock := testutil.NewFixedClock(today)
	h := &Harness{
		store:     st,
		extractor: extract.New(extract.Options{Location: loc, Now: clock.Now}),
		clock:     clock,
		ids:       testutil.NewFixedIDGenerator(scenario.RequestID),
		logger:    cfg.logger.With(zap.String("scenario", scenario.Name)),
	}

	result := NewResult(scenario.Name)
	var prior *filter.TrustedSet
	for i, step := range scenario.Steps {
		if !step.Carry {
			prior = nil
		}
		sr := h.executeStep(ctx, step, prior)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Steps = append(result.Steps, sr)

		for _, msg := range checkStep(step, sr) {
			result.AddError(fmt.Sprintf("steps[%d] %q: %s", i, step.Ask, msg))
		}
		if sr.Resolution != nil {
			trusted := sr.Resolution.Trusted
			if step.Carry && prior != nil {
				trusted, _ = trusted.WithPrior(prior)
			}
			prior = &trusted
		}
	}
	return result, nil
}

// executeStep asks one question. Only a context cancellation escapes as an
// error; everything else is recorded on the StepResult.
func (h *Harness) executeStep(ctx context.Context, step Step, prior *filter.TrustedSet) StepResult {
	user := step.User
	if user == "" {
		user = DefaultUser
	}
	eng := engine.New(h.extractor, h.collector(step.Hint),
		engine.WithIDGenerator(h.ids),
		engine.WithMetrics(engine.NewMetrics(nil)),
		engine.WithLogger(h.logger))
	req := engine.Request{Text: step.Ask, UserID: user, Prior: prior}

	sr := StepResult{Ask: step.Ask}
	var err error
	if step.Answer {
		var ans *engine.Answer
		ans, err = eng.Answer(ctx, req, h.store)
		if ans != nil {
			sr.Resolution = ans.Resolution
			sr.Answer = ans.Result
		}
	} else {
		sr.Resolution, err = eng.Resolve(ctx, req)
	}

	var rej *engine.Rejection
	switch {
	case err == nil:
	case errors.As(err, &rej):
		sr.Rejection = rej
	default:
		sr.Err = err.Error()
	}
	return sr
}

// collector builds the hint collector scripted by a step.
func (h *Harness) collector(hs *HintStep) *hint.Collector {
	cfg := hint.Config{Timeout: hintTimeout, MaxRetries: 1}
	opts := []hint.CollectorOption{hint.WithLogger(h.logger), hint.WithClock(h.clock.Now)}
	if hs == nil {
		return hint.NewCollector(nil, cfg, opts...)
	}

	var s hint.Suggester
	switch hs.Fail {
	case FailUnavailable:
		s = &hint.FailingSuggester{}
	case FailTimeout:
		s = &hint.StaticSuggester{Delay: 10 * hintTimeout}
	case FailMalformed:
		s = &hint.StaticSuggester{Raw: "I think you mean food, probably."}
	default:
		s = &hint.StaticSuggester{Raw: hs.Raw}
	}
	return hint.NewCollector(s, cfg, opts...)
}

func scenarioExpenses(s *Scenario) ([]store.Expense, error) {
	switch {
	case len(s.Expenses) > 0:
		return s.Expenses, nil
	case s.Ledger != "":
		f, err := os.Open(s.Ledger)
		if err != nil {
			return nil, fmt.Errorf("failed to open ledger: %w", err)
		}
		defer f.Close()
		expenses, err := store.LoadExpenses(f)
		if err != nil {
			return nil, fmt.Errorf("ledger %s: %w", s.Ledger, err)
		}
		return expenses, nil
	default:
		return testutil.Ledger(), nil
	}
}
