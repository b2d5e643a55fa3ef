package hint

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// NopSuggester never suggests anything. It backs the "none" provider.
type NopSuggester struct{}

func (NopSuggester) Suggest(context.Context, Prompt) (Annotation, error) {
	return Annotation{}, nil
}

func (NopSuggester) Name() string { return "none" }

// StaticSuggester returns a fixed response after an optional delay.
// When Raw is set it is parsed with ParseAnnotation on every call; otherwise
// Annotation is returned as is.
type StaticSuggester struct {
	Annotation Annotation
	Raw        string
	Delay      time.Duration

	calls atomic.Int32
}

func (s *StaticSuggester) Suggest(ctx context.Context, _ Prompt) (Annotation, error) {
	s.calls.Add(1)
	if err := sleep(ctx, s.Delay); err != nil {
		return Annotation{}, err
	}
	if s.Raw != "" {
		return ParseAnnotation(s.Raw)
	}
	return s.Annotation, nil
}

func (s *StaticSuggester) Name() string { return "static" }

// Calls returns how many times Suggest ran.
func (s *StaticSuggester) Calls() int { return int(s.calls.Load()) }

// ErrUnavailable is the default error of FailingSuggester.
var ErrUnavailable = errors.New("interpretation service unavailable")

// FailingSuggester fails its first Failures calls (every call when Failures
// is zero) and then returns Then.
type FailingSuggester struct {
	Err      error
	Failures int
	Delay    time.Duration
	Then     Annotation

	calls atomic.Int32
}

func (f *FailingSuggester) Suggest(ctx context.Context, _ Prompt) (Annotation, error) {
	n := int(f.calls.Add(1))
	if err := sleep(ctx, f.Delay); err != nil {
		return Annotation{}, err
	}
	if f.Failures == 0 || n <= f.Failures {
		if f.Err != nil {
			return Annotation{}, f.Err
		}
		return Annotation{}, ErrUnavailable
	}
	return f.Then, nil
}

func (f *FailingSuggester) Name() string { return "failing" }

// Calls returns how many times Suggest ran.
func (f *FailingSuggester) Calls() int { return int(f.calls.Load()) }

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
