package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/tally/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
	DB   string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve resolve and answer over HTTP",
		Long: `Serve the engine over HTTP until interrupted.

Endpoints:
  GET  /healthz
  GET  /metrics
  POST /v1/query/resolve  {"text": "...", "user_id": "...", "prior": {...}}
  POST /v1/query/answer   same body, runs the plan against the database

Examples:
  tally serve
  tally serve --addr :9090 --db expenses.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite database path (default from config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	a, err := loadApp(opts.RootOptions, newFormatter(opts.RootOptions, cmd))
	if err != nil {
		return err
	}
	defer a.close()

	addr := opts.Addr
	if addr == "" {
		addr = a.cfg.Server.Addr
	}

	st, db, err := a.openStore(opts.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := a.engine(ctx, reg)
	if err != nil {
		return err
	}

	a.logger.Info("serving", zap.String("addr", addr), zap.String("db", db))
	if err := server.New(eng, st, reg, a.logger).Run(ctx, addr); err != nil {
		return WrapExitError(ExitFailure, "server failed", err)
	}
	return nil
}
