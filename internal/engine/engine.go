package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/tally/internal/extract"
	"github.com/roach88/tally/internal/filter"
	"github.com/roach88/tally/internal/hint"
	"github.com/roach88/tally/internal/planner"
	"github.com/roach88/tally/internal/queryir"
	"github.com/roach88/tally/internal/reconcile"
	"github.com/roach88/tally/internal/shape"
	"github.com/roach88/tally/internal/store"
)

// Request is one inbound question.
type Request struct {
	Text   string `json:"text" validate:"required,max=2000"`
	UserID string `json:"user_id" validate:"required,max=128"`

	// Prior carries the trusted filters of an earlier turn. Kinds the
	// current text does not mention are filled from it.
	Prior *filter.TrustedSet `json:"prior,omitempty"`
}

// HintReport summarizes the hint call of one resolution.
type HintReport struct {
	Provider   string          `json:"provider"`
	Annotation hint.Annotation `json:"annotation"`
	Failure    string          `json:"failure,omitempty"`
	Attempts   int             `json:"attempts"`
}

// Resolution traces one question through every stage. Plan is nil when the
// shape was rejected.
type Resolution struct {
	RequestID   string            `json:"request_id"`
	Query       filter.RawQuery   `json:"query"`
	Trusted     filter.TrustedSet `json:"trusted"`
	PriorFilled []filter.Kind     `json:"prior_filled,omitempty"`
	Hint        HintReport        `json:"hint"`
	Reconciled  reconcile.Request `json:"reconciled"`
	Shape       shape.Resolution  `json:"shape"`
	Plan        *queryir.Plan     `json:"plan,omitempty"`
}

// Executor runs a plan. store.Store is the production implementation.
type Executor interface {
	Execute(ctx context.Context, p *queryir.Plan) (*store.Result, error)
}

// Answer is a resolution together with the result of its one read.
type Answer struct {
	Resolution *Resolution   `json:"resolution"`
	Result     *store.Result `json:"result"`
}

// Engine resolves questions into plans.
//
// The pipeline runs strictly forward:
//
//	extract → hint → reconcile → shape → plan
//
// Every stage but the hint call is pure, so an Engine is safe for concurrent
// use. The only state shared across requests is the hint rate limiter and
// the metrics collectors.
type Engine struct {
	extractor  *extract.Extractor
	collector  *hint.Collector
	reconciler *reconcile.Reconciler
	builder    *planner.Builder
	ids        RequestIDGenerator
	metrics    *Metrics
	logger     *zap.Logger
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*engineConfig)

type engineConfig struct {
	reconcile reconcile.Options
	ids       RequestIDGenerator
	metrics   *Metrics
	logger    *zap.Logger
}

// WithRowCap sets the hard row cap for LIST and GROUPED plans.
func WithRowCap(n int) EngineOption {
	return func(c *engineConfig) { c.reconcile.RowCap = n }
}

// WithCorroborationThreshold sets how many independent textual signals a
// suggested grouping key needs before it is accepted.
func WithCorroborationThreshold(n int) EngineOption {
	return func(c *engineConfig) { c.reconcile.CorroborationThreshold = n }
}

// WithIDGenerator sets the request id generator. Default: UUIDv7Generator.
func WithIDGenerator(g RequestIDGenerator) EngineOption {
	return func(c *engineConfig) { c.ids = g }
}

// WithMetrics sets the collectors the engine reports to. Default:
// unregistered collectors.
func WithMetrics(m *Metrics) EngineOption {
	return func(c *engineConfig) { c.metrics = m }
}

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(l *zap.Logger) EngineOption {
	return func(c *engineConfig) { c.logger = l }
}

// New creates an Engine. A nil collector never suggests anything.
func New(ex *extract.Extractor, hc *hint.Collector, opts ...EngineOption) *Engine {
	cfg := engineConfig{
		ids:    UUIDv7Generator{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.metrics == nil {
		cfg.metrics = NewMetrics(nil)
	}
	if ex == nil {
		ex = extract.New(extract.Options{})
	}
	if hc == nil {
		hc = hint.NewCollector(nil, hint.DefaultConfig(), hint.WithLogger(cfg.logger))
	}

	r := reconcile.New(cfg.reconcile)
	return &Engine{
		extractor:  ex,
		collector:  hc,
		reconciler: r,
		builder:    planner.NewBuilder(r.RowCap()),
		ids:        cfg.ids,
		metrics:    cfg.metrics,
		logger:     cfg.logger,
	}
}

// Resolve turns a question into an executable plan.
//
// Errors:
//   - *RuntimeError INVALID_REQUEST when text or user is missing
//   - *Rejection when the shape is UNRESOLVED; the partial Resolution is
//     returned alongside it
//   - *RuntimeError PLAN_INVARIANT_VIOLATION when the plan is inconsistent
//   - ctx.Err() when ctx is cancelled during the hint call
//
// A hint failure is not an error: the question is answered from the trusted
// filters alone.
func (e *Engine) Resolve(ctx context.Context, req Request) (*Resolution, error) {
	requestID := e.ids.Generate()
	log := e.logger.With(zap.String("request_id", requestID))

	if err := validateRequest(&req); err != nil {
		var re *RuntimeError
		if errors.As(err, &re) {
			re.RequestID = requestID
		}
		log.Debug("request rejected by validation", zap.Error(err))
		return nil, err
	}
	log = log.With(zap.String("user_id", req.UserID))

	q := filter.RawQuery{Text: req.Text, UserID: req.UserID}
	trusted := e.extractor.Extract(q)
	merged, filled := trusted.WithPrior(req.Prior)

	out := e.collector.Collect(ctx, q, &merged)
	if out.Abandoned {
		log.Debug("resolution abandoned")
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, context.Canceled
	}
	e.metrics.observeHint(out)

	reconciled := e.reconciler.Reconcile(reconcile.Input{
		UserID:     req.UserID,
		Trusted:    trusted,
		Prior:      req.Prior,
		Annotation: out.Annotation,
	})
	sres := shape.Resolve(reconciled)
	e.metrics.observeRequest(reconciled, sres.Shape)

	res := &Resolution{
		RequestID:   requestID,
		Query:       q,
		Trusted:     trusted,
		PriorFilled: filled,
		Hint: HintReport{
			Provider:   e.collector.Provider(),
			Annotation: out.Annotation,
			Attempts:   out.Attempts,
		},
		Reconciled: reconciled,
		Shape:      sres,
	}
	if out.Failure != nil {
		res.Hint.Failure = string(out.Failure.Reason)
	}

	if !sres.Shape.Executable() {
		log.Info("query shape unresolved",
			zap.String("reason", string(sres.Reason)),
			zap.Int("conflicts", len(reconciled.Conflicts)))
		return res, &Rejection{
			Code:          RejectCodeShapeUnresolved,
			Reason:        sres.Reason,
			Clarification: shape.Clarification(sres.Reason),
			RequestID:     requestID,
		}
	}

	plan, err := e.builder.Build(reconciled, sres)
	if err != nil {
		var inv *planner.InvariantError
		if errors.As(err, &inv) {
			rerr := NewInvariantError(requestID, inv.Violations)
			rerr.Err = err
			log.Error("plan invariant violation",
				zap.String("shape", string(sres.Shape)),
				zap.Strings("violations", inv.Violations))
			return nil, rerr
		}
		return nil, fmt.Errorf("build plan: %w", err)
	}
	res.Plan = plan

	log.Info("query resolved",
		zap.String("shape", string(plan.Shape)),
		zap.String("plan_id", plan.ID),
		zap.Int("conflicts", len(reconciled.Conflicts)),
		zap.Int("rejected", len(reconciled.Rejected)))
	return res, nil
}

// Answer resolves req and executes the plan with exactly one read.
//
// On a Rejection the partial Answer is returned with the error so callers
// can show what was understood. A failed read is a *RuntimeError
// STORAGE_FAILURE wrapping the cause; no fallback value is ever produced.
func (e *Engine) Answer(ctx context.Context, req Request, exec Executor) (*Answer, error) {
	res, err := e.Resolve(ctx, req)
	if err != nil {
		if res != nil {
			return &Answer{Resolution: res}, err
		}
		return nil, err
	}

	result, err := exec.Execute(ctx, res.Plan)
	if err != nil {
		e.logger.Error("plan execution failed",
			zap.String("request_id", res.RequestID),
			zap.String("plan_id", res.Plan.ID),
			zap.Error(err))
		return nil, NewStorageError(res.RequestID, res.Plan.ID, err)
	}
	return &Answer{Resolution: res, Result: result}, nil
}
