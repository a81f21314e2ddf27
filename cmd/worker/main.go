// Package main is the gamification worker. It runs the periodic maintenance
// jobs: ledger reconciliation and the leaderboard projection rebuild.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campushub/gamification/config"
	"github.com/campushub/gamification/internal/bootstrap"
	"github.com/campushub/gamification/internal/infrastructure/scheduler"
	"github.com/campushub/gamification/internal/infrastructure/scheduler/jobs"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := bootstrap.NewLogger(cfg, os.Stdout)
	log.Info("starting gamification worker",
		"env", cfg.App.Environment,
		"debug", cfg.App.Debug,
		"timezone", cfg.App.Timezone,
	)

	if !cfg.Scheduler.Enabled {
		log.Warn("scheduler disabled by SCHEDULER_ENABLED, nothing to do")
		return nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STORE, CACHE AND ENGINE
	// The worker also keeps the schema current.
	// ─────────────────────────────────────────────────────────────────────────
	app, err := bootstrap.Build(ctx, cfg, log, bootstrap.Options{Migrate: true})
	if err != nil {
		return err
	}
	defer app.Close()

	if app.DB == nil {
		log.Warn("worker is running against the in-memory store; jobs only see this process")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	sched, err := scheduler.New(scheduler.Config{
		Logger:      log,
		Timezone:    cfg.App.Location,
		StopTimeout: cfg.App.ShutdownTimeout,
		JobTimeout:  cfg.Scheduler.JobTimeout,
		OnJobComplete: func(result scheduler.JobResult) {
			app.Metrics.ObserveJob(result.JobName, result.Duration, result.Error)
		},
	})
	if err != nil {
		return err
	}

	reconcile := jobs.NewReconcileLedgerJob(
		app.Store.Users(),
		app.Service,
		log,
		cfg.Scheduler.PageSize,
		func(stats jobs.ReconcileStats) {
			app.Metrics.SetLedgerDrift(stats.Drifted())
		},
	)
	if err := sched.Register(reconcile, scheduler.Cron(cfg.Scheduler.ReconcileCron)); err != nil {
		return fmt.Errorf("failed to register %s: %w", reconcile.Name(), err)
	}

	rebuild := app.RebuildJob()
	if err := sched.Register(rebuild, scheduler.Every(cfg.Scheduler.RebuildLeaderboardInterval).Immediately()); err != nil {
		return fmt.Errorf("failed to register %s: %w", rebuild.Name(), err)
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. METRICS ENDPOINT
	// ─────────────────────────────────────────────────────────────────────────
	var metricsSrv *http.Server
	if cfg.Observability.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Observability.MetricsPath, app.Metrics.Handler())
		metricsSrv = &http.Server{
			Addr:              cfg.Observability.WorkerMetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("metrics endpoint listening", "addr", metricsSrv.Addr, "path", cfg.Observability.MetricsPath)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	log.Info("gamification worker is running",
		"reconcile_cron", cfg.Scheduler.ReconcileCron,
		"rebuild_interval", cfg.Scheduler.RebuildLeaderboardInterval.String(),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown", "timeout", cfg.App.ShutdownTimeout.String())

	if err := sched.Stop(); err != nil {
		log.Error("scheduler stop failed", "error", err)
	}

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Error("metrics endpoint shutdown failed", "error", err)
		}
	}

	log.Info("shutdown completed successfully")
	return nil
}
