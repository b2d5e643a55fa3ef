package cli

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/tally/internal/config"
	"github.com/roach88/tally/internal/engine"
	"github.com/roach88/tally/internal/extract"
	"github.com/roach88/tally/internal/filter"
	"github.com/roach88/tally/internal/hint"
	"github.com/roach88/tally/internal/logging"
	"github.com/roach88/tally/internal/store"
)

// app bundles what every question-answering command needs.
type app struct {
	opts   *RootOptions
	cfg    *config.Config
	logger *zap.Logger
}

// loadApp loads configuration and logging. Config errors are reported
// through f.
func loadApp(opts *RootOptions, f *OutputFormatter) (*app, error) {
	cfg, err := config.Load(opts.Config, opts.Getenv)
	if err != nil {
		var details map[string]string
		var cfgErr *config.Error
		if errors.As(err, &cfgErr) && cfgErr.Field != "" {
			details = map[string]string{"field": cfgErr.Field}
		}
		if outErr := f.Error(CodeConfig, err.Error(), details); outErr != nil {
			return nil, outErr
		}
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	// Logs go to stderr, in JSON when command output is JSON.
	logFormat := logging.FormatText
	if opts.Format == "json" {
		logFormat = logging.FormatJSON
	}
	logger, err := logging.New(opts.Verbose, logFormat)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to configure logging", err)
	}
	return &app{opts: opts, cfg: cfg, logger: logger}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// engine builds an engine from the loaded config. reg may be nil.
func (a *app) engine(ctx context.Context, reg prometheus.Registerer) (*engine.Engine, error) {
	suggester, err := a.cfg.Suggester(ctx, a.opts.Getenv)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to configure hint provider", err)
	}

	exOpts := a.cfg.ExtractOptions()
	hintOpts := []hint.CollectorOption{hint.WithLogger(a.logger)}
	if a.opts.Now != nil {
		exOpts.Now = a.opts.Now
		hintOpts = append(hintOpts, hint.WithClock(a.opts.Now))
	}
	ids := a.opts.IDs
	if ids == nil {
		ids = engine.UUIDv7Generator{}
	}

	return engine.New(
		extract.New(exOpts),
		hint.NewCollector(suggester, a.cfg.HintPolicy(), hintOpts...),
		engine.WithRowCap(a.cfg.RowCap),
		engine.WithCorroborationThreshold(a.cfg.CorroborationThreshold),
		engine.WithIDGenerator(ids),
		engine.WithMetrics(engine.NewMetrics(reg)),
		engine.WithLogger(a.logger),
	), nil
}

// openStore opens db, or the configured database when db is empty.
func (a *app) openStore(db string) (*store.Store, string, error) {
	if db == "" {
		db = a.cfg.DB
	}
	st, err := store.Open(db)
	if err != nil {
		return nil, db, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, db, nil
}

// loadPrior reads a trusted filter set written by an earlier
// `resolve --format json` (its data.trusted object).
func loadPrior(path string) (*filter.TrustedSet, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read prior context", err)
	}
	var prior filter.TrustedSet
	if err := json.Unmarshal(data, &prior); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to parse prior context", err)
	}
	return &prior, nil
}

// reportEngineError prints err through f and returns the matching ExitError.
func reportEngineError(f *OutputFormatter, err error) error {
	var rej *engine.Rejection
	if errors.As(err, &rej) {
		if outErr := f.Error(CodeUnresolved, rej.Clarification, map[string]string{
			"reason":     string(rej.Reason),
			"request_id": rej.RequestID,
		}); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, "question not resolved", err)
	}

	var re *engine.RuntimeError
	if errors.As(err, &re) {
		code, exit := CodeInternal, ExitFailure
		switch re.Code {
		case engine.ErrCodeInvalidRequest:
			code, exit = CodeInvalidRequest, ExitCommandError
		case engine.ErrCodePlanInvariant:
			code = CodeInvariant
		case engine.ErrCodeStorage:
			code = CodeStorage
		}
		if outErr := f.Error(code, re.Message, re.Details); outErr != nil {
			return outErr
		}
		return WrapExitError(exit, string(re.Code), err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if outErr := f.Error(CodeCancelled, "cancelled", nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, "cancelled", err)
	}

	if outErr := f.Error(CodeInternal, err.Error(), nil); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitFailure, "internal error", err)
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
