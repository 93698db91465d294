package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/xraph/parkledger"
	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/api"
	audithook "github.com/xraph/parkledger/audit_hook"
	"github.com/xraph/parkledger/internal/config"
	"github.com/xraph/parkledger/observability"
	"github.com/xraph/parkledger/store"
	"github.com/xraph/parkledger/store/memory"
	"github.com/xraph/parkledger/store/mongo"
	"github.com/xraph/parkledger/store/postgres"
	redisstore "github.com/xraph/parkledger/store/redis"
	"github.com/xraph/parkledger/store/sqlite"
)

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "run the HTTP API",
	Action: func(cctx *cli.Context) error {
		cfg, err := config.Load(cctx.String("config"))
		if err != nil {
			return err
		}
		logger := newLogger(cfg.Log, os.Stdout)

		ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg, logger)
	},
}

// serve runs the server until ctx is cancelled, then drains requests and
// stops the ledger.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	s, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	logger.Info("store opened", "driver", cfg.Store.Driver)

	l, reg, err := newLedger(cfg, s, logger)
	if err != nil {
		_ = s.Close()
		return err
	}
	if err := l.Start(ctx); err != nil {
		_ = s.Close()
		return fmt.Errorf("start ledger: %w", err)
	}

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      newHandler(cfg, l, reg, logger),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr, "base_path", cfg.HTTP.BasePath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		_ = l.Stop()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	srv.SetKeepAlivesEnabled(false)
	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
		errs = append(errs, err)
	}
	logger.Info("HTTP server stopped")

	if err := l.Stop(); err != nil {
		logger.Error("ledger shutdown error", "error", err)
		errs = append(errs, err)
	}
	logger.Info("server stopped gracefully")
	return errors.Join(errs...)
}

// newLedger builds the engine with the configured policy and metrics plugin.
func newLedger(cfg *config.Config, s store.Store, logger *slog.Logger) (*parkledger.Ledger, *prometheus.Registry, error) {
	policy, err := cfg.FeePolicy()
	if err != nil {
		return nil, nil, err
	}

	opts := []parkledger.Option{
		parkledger.WithLogger(logger),
		parkledger.WithProgramID(address.ProgramID(cfg.Ledger.ProgramName)),
		parkledger.WithFeePolicy(policy),
		parkledger.WithPlateRequired(cfg.Ledger.PlateRequired),
		parkledger.WithLockStripes(cfg.Ledger.LockStripes),
		parkledger.WithPluginTimeout(cfg.Ledger.PluginTimeout),
	}

	if cfg.Log.Audit {
		opts = append(opts, parkledger.WithPlugin(audithook.New(auditLogger(logger), audithook.WithLogger(logger))))
	}

	var reg *prometheus.Registry
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics := observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))
		opts = append(opts, parkledger.WithPlugin(metrics))
	}

	return parkledger.New(s, opts...), reg, nil
}

// auditLogger records audit events as structured log lines.
func auditLogger(logger *slog.Logger) audithook.Recorder {
	return audithook.RecorderFunc(func(ctx context.Context, ev *audithook.AuditEvent) error {
		level := slog.LevelInfo
		switch ev.Severity {
		case audithook.SeverityWarning:
			level = slog.LevelWarn
		case audithook.SeverityError, audithook.SeverityCritical:
			level = slog.LevelError
		}
		attrs := []slog.Attr{
			slog.String("action", ev.Action),
			slog.String("resource", ev.Resource),
			slog.String("resource_id", ev.ResourceID),
			slog.String("outcome", ev.Outcome),
		}
		if ev.Reason != "" {
			attrs = append(attrs, slog.String("reason", ev.Reason))
		}
		if len(ev.Metadata) > 0 {
			attrs = append(attrs, slog.Any("metadata", ev.Metadata))
		}
		logger.LogAttrs(ctx, level, "audit", attrs...)
		return nil
	})
}

// newHandler mounts the API and, when enabled, the metrics endpoint.
func newHandler(cfg *config.Config, l *parkledger.Ledger, reg *prometheus.Registry, logger *slog.Logger) http.Handler {
	apiHandler := api.New(l,
		api.WithLogger(logger),
		api.WithBasePath(cfg.HTTP.BasePath),
		api.WithFaucet(cfg.HTTP.Faucet),
	).Handler()

	if reg == nil {
		return apiHandler
	}

	r := chi.NewRouter()
	r.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Mount("/", apiHandler)
	return r
}

// openStore connects the configured backend.
func openStore(ctx context.Context, cfg config.Store) (store.Store, error) {
	var (
		s   store.Store
		err error
	)
	switch cfg.Driver {
	case config.DriverMemory:
		s = memory.New()
	case config.DriverPostgres:
		s, err = asStore(postgres.Open(ctx, cfg.URL))
	case config.DriverSQLite:
		s, err = asStore(sqlite.Open(cfg.URL))
	case config.DriverRedis:
		s, err = asStore(redisstore.Open(ctx, cfg.URL, redisstore.WithPrefix(cfg.Prefix)))
	case config.DriverMongo:
		s, err = asStore(mongo.Open(ctx, cfg.URL, cfg.Database))
	default:
		err = fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	return s, nil
}

// asStore drops the concrete type of a backend constructor result.
func asStore[S store.Store](s S, err error) (store.Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

// newLogger builds the process logger and installs it as the slog default.
func newLogger(cfg config.Log, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}

	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
