package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/clinic-appointment-scheduling/internal/auth"
	"github.com/hackgods/clinic-appointment-scheduling/internal/config"
	"github.com/hackgods/clinic-appointment-scheduling/internal/db"
	"github.com/hackgods/clinic-appointment-scheduling/internal/observability/metrics"
	"github.com/hackgods/clinic-appointment-scheduling/pkg/logging"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "count expired sessions without deleting them")
	once := flag.Bool("once", false, "run a single pass and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel).With("service", "session-cleaner", "env", cfg.Env)
	logger.Info("session-cleaner starting up",
		"interval", cfg.WorkerInterval.String(),
		"idle_timeout", cfg.SessionIdleTimeout.String(),
		"max_age", cfg.SessionMaxAge.String(),
		"dry_run", *dryRun,
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2})
	cancelPg()
	if err != nil {
		logger.Error("postgres connection error", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	svc := auth.NewService(
		auth.NewPgStore(pgPool),
		auth.NewTokens(cfg.SessionSecret, cfg.SessionMaxAge),
		auth.Policy{IdleTimeout: cfg.SessionIdleTimeout, MaxAge: cfg.SessionMaxAge},
		auth.WithLogger(logger),
		auth.WithMetrics(metrics.NewBookingMetrics(nil)),
	)

	runOnce(rootCtx, svc, logger, *dryRun)
	if *once {
		return
	}

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping session cleaner")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, logger, *dryRun)
		}
	}
}

func runOnce(ctx context.Context, svc *auth.Service, logger *logging.Logger, dryRun bool) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.PurgeExpired(runCtx, dryRun)
	if err != nil {
		logger.Error("session purge failed", "error", err)
		return
	}
	logger.Info("session purge complete",
		"expired", n,
		"dry_run", dryRun,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
