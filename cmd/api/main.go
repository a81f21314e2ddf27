// Package main is the gamification API binary. It serves the HTTP API and
// carries the operator commands for migrations and the achievement catalog.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/campushub/gamification/config"
	"github.com/campushub/gamification/internal/application/command"
	"github.com/campushub/gamification/internal/application/query"
	"github.com/campushub/gamification/internal/bootstrap"
	"github.com/campushub/gamification/internal/infrastructure/catalog"
	"github.com/campushub/gamification/internal/infrastructure/persistence/postgres"
	rediscache "github.com/campushub/gamification/internal/infrastructure/persistence/redis"
	httpapi "github.com/campushub/gamification/internal/interface/http"
	"github.com/campushub/gamification/internal/interface/http/handlers"
)

var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

const appName = "campushub-gamification"

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "api",
		Short: "Campus Hub gamification API",
		Long: `Serves the gamification HTTP API: points, levels, achievements and
the leaderboard. With no subcommand it starts the server.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply pending migrations before serving")

	cmd.AddCommand(migrateCmd(), seedCmd(), catalogCmd(), hashKeyCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVE
// ══════════════════════════════════════════════════════════════════════════════

func serve(ctx context.Context, migrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := bootstrap.NewLogger(cfg, os.Stdout)
	log.Info("starting gamification API",
		"env", cfg.App.Environment,
		"version", Version,
		"addr", cfg.HTTP.Addr(),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, log, bootstrap.Options{Migrate: migrate})
	if err != nil {
		return err
	}
	defer app.Close()

	health := handlers.NewCompositeHealthChecker(Version)
	if app.DB != nil {
		health.AddCheck("postgres", handlers.NewPingCheck(app.DB))
	}
	if app.Redis != nil {
		health.AddOptionalCheck("redis", handlers.NewPingCheck(app.Redis))
	}
	if lc, ok := app.Leaderboard.(*rediscache.LeaderboardCache); ok {
		health.AddOptionalCheck("leaderboard_projection", func(ctx context.Context) error {
			_, err := lc.Meta(ctx)
			return err
		})
	}

	var metricsHandler http.Handler
	if cfg.Observability.MetricsEnabled {
		metricsHandler = app.Metrics.Handler()
	}

	srvCfg := httpapi.DefaultConfig()
	srvCfg.Host = cfg.HTTP.Host
	srvCfg.Port = cfg.HTTP.Port
	srvCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	srvCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	srvCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	srvCfg.MetricsPath = cfg.Observability.MetricsPath
	srvCfg.Version = Version

	adminAuth := handlers.NewAdminKeyAuth(handlers.DefaultAdminKeyHeader, cfg.HTTP.AdminKeyHashes)
	if !adminAuth.Enabled() {
		log.Warn("no admin keys configured, admin endpoints will reject every request")
	}

	server, err := httpapi.NewServer(srvCfg, httpapi.Dependencies{
		Service:               app.Service,
		GetLeaderboardHandler: query.NewGetLeaderboardHandler(app.Service, app.Leaderboard, log),
		RecordActivityHandler: command.NewRecordActivityHandler(app.Bus, log),
		AdminAuth:             adminAuth,
		Metrics:               metricsHandler,
		HealthChecker:         health,
		Logger:                bootstrap.NewHTTPLogger(cfg, os.Stdout),
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	errCh := server.StartAsync()
	log.Info("gamification API is running", "addr", srvCfg.Address())

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("received shutdown signal")
	}

	log.Info("starting graceful shutdown", "timeout", cfg.HTTP.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator) error {
					applied, err := m.Migrate(ctx)
					if err != nil {
						return err
					}
					if len(applied) == 0 {
						fmt.Println("schema is up to date")
						return nil
					}
					fmt.Printf("applied migrations: %v\n", applied)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the newest applied migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator) error {
					version, err := m.Rollback(ctx)
					if err != nil {
						return err
					}
					if version == 0 {
						fmt.Println("nothing to roll back")
						return nil
					}
					fmt.Printf("rolled back migration %d\n", version)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator) error {
					list, err := m.Status(ctx)
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
					for _, mig := range list {
						applied := "-"
						if mig.IsApplied {
							applied = mig.AppliedAt.Format(time.RFC3339)
						}
						fmt.Fprintf(tw, "%d\t%s\t%s\n", mig.Version, mig.Name, applied)
					}
					return tw.Flush()
				})
			},
		},
	)

	return cmd
}

func withMigrator(ctx context.Context, fn func(context.Context, *postgres.Migrator) error) error {
	cfg, log, err := loadForCommand()
	if err != nil {
		return err
	}
	if !cfg.UsesDatabase() {
		return errors.New("DATABASE_URL is required for migrations")
	}

	conn, err := bootstrap.ConnectDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	return fn(ctx, postgres.NewMigrator(conn))
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the stock achievements that are missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadForCommand()
			if err != nil {
				return err
			}
			if !cfg.UsesDatabase() {
				return errors.New("DATABASE_URL is required for seeding")
			}

			app, err := bootstrap.Build(cmd.Context(), cfg, log, bootstrap.Options{SeedCatalog: true})
			if err != nil {
				return err
			}
			app.Close()
			return nil
		},
	}
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the stock achievement catalog",
	}

	var out string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write the stock catalog as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := catalog.Default(time.Now().UTC())
			if err != nil {
				return err
			}

			w := os.Stdout
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			return catalog.Export(w, defs)
		},
	}
	export.Flags().StringVarP(&out, "output", "o", "-", "Output file, - for stdout")

	cmd.AddCommand(export)
	return cmd
}

func hashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-admin-key KEY",
		Short: "Print the bcrypt hash to put in ADMIN_API_KEY_HASHES",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := handlers.HashAdminKey(args[0])
			if err != nil {
				return err
			}
			fmt.Println(hash)
			return nil
		},
	}
}

func loadForCommand() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, bootstrap.NewLogger(cfg, os.Stderr), nil
}
