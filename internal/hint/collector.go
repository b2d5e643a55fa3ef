package hint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/roach88/tally/internal/filter"
)

// Default call policy.
const (
	DefaultTimeout      = 3 * time.Second
	DefaultMaxRetries   = 1
	DefaultRetryBackoff = 100 * time.Millisecond
	DefaultRate         = 10
	DefaultBurst        = 5
)

// Suggester is the interpretation service capability.
type Suggester interface {
	// Suggest returns an annotation for the prompt. It must return promptly
	// once ctx is done.
	Suggest(ctx context.Context, p Prompt) (Annotation, error)

	// Name identifies the provider in logs.
	Name() string
}

// FailureReason classifies why no annotation was obtained.
type FailureReason string

const (
	ReasonTimeout     FailureReason = "timeout"
	ReasonUnavailable FailureReason = "unavailable"
	ReasonMalformed   FailureReason = "malformed"
	ReasonRateLimited FailureReason = "rate_limited"
)

// Failure records a failed hint call. It is reported, never returned as an
// error to the caller of Resolve.
type Failure struct {
	Reason   FailureReason
	Attempts int
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("hint %s after %d attempt(s): %v", f.Reason, f.Attempts, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Outcome is the result of one Collect call.
//
// Exactly one of these holds: the call succeeded (Failure nil, Abandoned
// false), the call failed (Failure set, Annotation empty), or the parent
// context was cancelled (Abandoned true, Annotation empty).
type Outcome struct {
	Annotation Annotation
	Failure    *Failure
	Abandoned  bool
	Attempts   int
	Duration   time.Duration
}

// Config is the hint call policy.
type Config struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// Rate and Burst configure the token bucket shared by every Collect call.
	// A zero Rate disables limiting.
	Rate  rate.Limit
	Burst int
}

// DefaultConfig returns the default call policy.
func DefaultConfig() Config {
	return Config{
		Timeout:      DefaultTimeout,
		MaxRetries:   DefaultMaxRetries,
		RetryBackoff: DefaultRetryBackoff,
		Rate:         DefaultRate,
		Burst:        DefaultBurst,
	}
}

// Collector obtains annotations under a bounded call policy.
//
// Collect never returns an error: every failure degrades to an empty
// annotation. The limiter is the only state shared between calls.
type Collector struct {
	suggester Suggester
	cfg       Config
	limiter   *rate.Limiter
	logger    *zap.Logger
	now       func() time.Time
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *zap.Logger) CollectorOption {
	return func(c *Collector) { c.logger = l }
}

// WithClock sets the clock used for the prompt date and durations.
func WithClock(now func() time.Time) CollectorOption {
	return func(c *Collector) { c.now = now }
}

// NewCollector creates a Collector. A nil suggester behaves like NopSuggester.
func NewCollector(s Suggester, cfg Config, opts ...CollectorOption) *Collector {
	if s == nil {
		s = NopSuggester{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxRetries > 1 {
		cfg.MaxRetries = 1
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(cfg.Rate, burst)
	}

	c := &Collector{
		suggester: s,
		cfg:       cfg,
		limiter:   limiter,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provider returns the suggester name.
func (c *Collector) Provider() string {
	return c.suggester.Name()
}

// Collect asks the suggester for an annotation of q.
//
// The whole call, including limiter waits and the retry, shares one deadline
// of cfg.Timeout. At most one retry is made and only for errors other than
// ErrMalformed. If ctx is cancelled the outcome is Abandoned.
func (c *Collector) Collect(ctx context.Context, q filter.RawQuery, trusted *filter.TrustedSet) Outcome {
	start := c.now()
	out := c.collect(ctx, q, trusted)
	out.Duration = c.now().Sub(start)

	switch {
	case out.Abandoned:
		c.logger.Debug("hint call abandoned",
			zap.String("provider", c.suggester.Name()),
			zap.Int("attempts", out.Attempts))
	case out.Failure != nil:
		c.logger.Warn("hint call failed",
			zap.String("provider", c.suggester.Name()),
			zap.String("reason", string(out.Failure.Reason)),
			zap.Int("attempts", out.Attempts),
			zap.Error(out.Failure.Err))
	default:
		c.logger.Debug("hint call succeeded",
			zap.String("provider", c.suggester.Name()),
			zap.Int("attempts", out.Attempts),
			zap.Strings("dropped", out.Annotation.Dropped))
	}
	return out
}

func (c *Collector) collect(ctx context.Context, q filter.RawQuery, trusted *filter.TrustedSet) Outcome {
	if ctx.Err() != nil {
		return Outcome{Abandoned: true}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	today := c.now()
	prompt := BuildPrompt(q, trusted, time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC))

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 && !c.backoff(callCtx) {
			break
		}
		if err := c.limiter.Wait(callCtx); err != nil {
			if ctx.Err() != nil {
				return Outcome{Abandoned: true, Attempts: attempts}
			}
			return c.fail(ReasonRateLimited, attempts, err)
		}

		attempts++
		ann, err := c.suggester.Suggest(callCtx, prompt)
		if err == nil {
			return Outcome{Annotation: ann, Attempts: attempts}
		}
		if ctx.Err() != nil {
			return Outcome{Abandoned: true, Attempts: attempts}
		}
		lastErr = err
		if errors.Is(err, ErrMalformed) {
			return c.fail(ReasonMalformed, attempts, err)
		}
		if callCtx.Err() != nil {
			break
		}
	}

	if ctx.Err() != nil {
		return Outcome{Abandoned: true, Attempts: attempts}
	}
	if callCtx.Err() != nil {
		if lastErr == nil {
			lastErr = callCtx.Err()
		}
		return c.fail(ReasonTimeout, attempts, lastErr)
	}
	return c.fail(ReasonUnavailable, attempts, lastErr)
}

// backoff sleeps before a retry. It reports false if the deadline passed.
func (c *Collector) backoff(ctx context.Context) bool {
	if c.cfg.RetryBackoff <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(c.cfg.RetryBackoff)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Collector) fail(reason FailureReason, attempts int, err error) Outcome {
	return Outcome{
		Attempts: attempts,
		Failure:  &Failure{Reason: reason, Attempts: attempts, Err: err},
	}
}
