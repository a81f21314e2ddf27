// Package bootstrap wires the gamification engine from configuration. Both
// binaries build the same object graph; only what they run on top differs.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/campushub/gamification/config"
	"github.com/campushub/gamification/internal/application/engine"
	"github.com/campushub/gamification/internal/application/eventhandler"
	"github.com/campushub/gamification/internal/domain/gamification"
	"github.com/campushub/gamification/internal/domain/shared"
	"github.com/campushub/gamification/internal/infrastructure/catalog"
	"github.com/campushub/gamification/internal/infrastructure/messaging"
	"github.com/campushub/gamification/internal/infrastructure/metrics"
	"github.com/campushub/gamification/internal/infrastructure/persistence/memory"
	"github.com/campushub/gamification/internal/infrastructure/persistence/postgres"
	"github.com/campushub/gamification/internal/infrastructure/persistence/redis"
	"github.com/campushub/gamification/internal/infrastructure/scheduler/jobs"
	"github.com/campushub/gamification/pkg/logger"
)

// Options tune Build for a particular binary.
type Options struct {
	// Migrate applies pending schema migrations after connecting.
	Migrate bool

	// SeedCatalog inserts the stock achievements that are missing. The
	// in-memory store is always seeded, otherwise it has no catalog at all.
	SeedCatalog bool
}

// App is the wired engine plus the resources it owns.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Store   gamification.Store
	Service *engine.Service
	Bus     *messaging.InMemoryEventBus
	Metrics *metrics.Collector

	// Leaderboard is the Redis projection, or the in-process one when Redis
	// is disabled or unreachable.
	Leaderboard gamification.LeaderboardCache

	// DB is nil in memory mode.
	DB *postgres.Connection

	// Redis is nil when the projection lives in process memory.
	Redis *redis.Cache

	closers []func()
}

// Build connects the backing services and assembles the engine.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger, opts Options) (*App, error) {
	app := &App{
		Config:  cfg,
		Logger:  log,
		Metrics: metrics.New(),
	}

	if err := app.openStore(ctx, opts); err != nil {
		app.Close()
		return nil, err
	}
	app.openLeaderboard(ctx)

	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	busCfg.Observer = app.Metrics
	if cfg.Gamification.HandlerTimeout > 0 {
		busCfg.HandlerTimeout = cfg.Gamification.HandlerTimeout
	}
	app.Bus = messaging.NewInMemoryEventBus(busCfg)
	app.closers = append(app.closers, func() {
		log.Info("closing event bus")
		_ = app.Bus.Close()
	})

	svc, err := engine.NewService(app.Store, cfg.Gamification.PointsTable, app.Bus, log)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create gamification service: %w", err)
	}
	app.Service = svc

	subscribers := []interface {
		Register(bus shared.EventSubscriber) error
	}{
		app.Metrics,
		eventhandler.NewActivityHooks(svc, log),
		eventhandler.NewLeaderboardProjection(app.Store.Users(), app.Leaderboard, log),
	}
	for _, s := range subscribers {
		if err := s.Register(app.Bus); err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to register event handler: %w", err)
		}
	}

	if opts.SeedCatalog || app.DB == nil {
		if err := app.Seed(ctx); err != nil {
			app.Close()
			return nil, err
		}
	}

	// Nobody else fills an in-process projection.
	if app.Redis == nil {
		if err := app.RebuildJob().Run(ctx); err != nil {
			log.Warn("initial leaderboard rebuild failed", "error", err)
		}
	}

	return app, nil
}

// Seed inserts the stock catalog.
func (a *App) Seed(ctx context.Context) error {
	defs, err := catalog.Default(time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to load stock catalog: %w", err)
	}
	report, err := a.Service.Catalog().Seed(ctx, defs)
	if err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}
	a.Logger.Info("achievement catalog seeded",
		"created", len(report.Created),
		"existing", len(report.Existing),
	)
	return nil
}

// RebuildJob returns the job that reloads the leaderboard projection from
// the user table.
func (a *App) RebuildJob() *jobs.RebuildLeaderboardJob {
	return jobs.NewRebuildLeaderboardJob(a.Store.Users(), a.Leaderboard, a.Logger, a.Config.Scheduler.PageSize)
}

// Close releases everything Build opened, newest first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) openStore(ctx context.Context, opts Options) error {
	if !a.Config.UsesDatabase() {
		a.Logger.Warn("DATABASE_URL is empty, using the in-memory store")
		a.Store = memory.New()
		return nil
	}

	conn, err := ConnectDatabase(ctx, a.Config, a.Logger)
	if err != nil {
		return err
	}
	a.DB = conn
	a.closers = append(a.closers, func() {
		a.Logger.Info("closing database connection")
		conn.Close()
	})

	if opts.Migrate {
		applied, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		a.Logger.Info("database schema is up to date", "applied", applied)
	}

	a.Store = postgres.NewStore(conn)
	return nil
}

func (a *App) openLeaderboard(ctx context.Context) {
	if a.Config.Redis.Disabled {
		a.Logger.Info("redis disabled, leaderboard projection kept in memory")
		a.Leaderboard = memory.NewLeaderboardCache()
		return
	}

	cache, err := ConnectRedis(ctx, a.Config, a.Logger)
	if err != nil {
		a.Logger.Warn("failed to connect to Redis, leaderboard projection kept in memory", "error", err)
		a.Leaderboard = memory.NewLeaderboardCache()
		return
	}
	a.Redis = cache
	a.closers = append(a.closers, func() {
		a.Logger.Info("closing redis connection")
		_ = cache.Close()
	})

	breaker := redis.NewBreaker("redis-leaderboard",
		func(name string, from, to gobreaker.State) {
			a.Logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		gamification.ErrLeaderboardCold,
	)
	a.Leaderboard = redis.NewLeaderboardCache(cache, a.Config.Redis.LeaderboardTTL).WithBreaker(breaker)
}

// ConnectDatabase opens the PostgreSQL pool, retrying while the server starts.
func ConnectDatabase(ctx context.Context, cfg *config.Config, log *slog.Logger) (*postgres.Connection, error) {
	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.Database.URL
	if cfg.Database.MaxConns > 0 {
		pgCfg.MaxConns = int32(cfg.Database.MaxConns)
	}
	if cfg.Database.MinConns > 0 {
		pgCfg.MinConns = int32(cfg.Database.MinConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	}
	if cfg.Database.ConnMaxIdleTime > 0 {
		pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	}
	if cfg.Database.ConnectTimeout > 0 {
		pgCfg.ConnectTimeout = cfg.Database.ConnectTimeout
	}

	log.Info("connecting to database")
	conn, err := connectWithRetry(ctx, log, "postgres", cfg.Database.ConnectAttempts, func(ctx context.Context) (*postgres.Connection, error) {
		return postgres.NewConnection(ctx, pgCfg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("database connection established")
	return conn, nil
}

// ConnectRedis opens the Redis client. Redis is optional, so it gets fewer
// attempts than the database.
func ConnectRedis(ctx context.Context, cfg *config.Config, log *slog.Logger) (*redis.Cache, error) {
	rc := redis.DefaultConfig()
	rc.Host = cfg.Redis.Host
	rc.Port = cfg.Redis.Port
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	if cfg.Redis.PoolSize > 0 {
		rc.PoolSize = cfg.Redis.PoolSize
	}
	if cfg.Redis.MinIdleConns > 0 {
		rc.MinIdleConns = cfg.Redis.MinIdleConns
	}
	if cfg.Redis.DialTimeout > 0 {
		rc.DialTimeout = cfg.Redis.DialTimeout
	}
	if cfg.Redis.ReadTimeout > 0 {
		rc.ReadTimeout = cfg.Redis.ReadTimeout
	}
	if cfg.Redis.WriteTimeout > 0 {
		rc.WriteTimeout = cfg.Redis.WriteTimeout
	}

	log.Info("connecting to Redis", "addr", rc.Addr())
	cache, err := connectWithRetry(ctx, log, "redis", 2, func(ctx context.Context) (*redis.Cache, error) {
		return redis.NewCache(ctx, rc)
	})
	if err != nil {
		return nil, err
	}

	log.Info("Redis connection established")
	return cache, nil
}

// startupInitialDelay is the first pause between connection attempts.
var startupInitialDelay = 500 * time.Millisecond

// connectWithRetry calls connect up to attempts times with exponential
// backoff, for backing services that are still starting. Cancellation of ctx
// stops it at once.
func connectWithRetry[T any](ctx context.Context, log *slog.Logger, target string, attempts int, connect func(context.Context) (T, error)) (T, error) {
	if attempts < 1 {
		attempts = 1
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = startupInitialDelay
	eb.MaxInterval = 10 * time.Second
	eb.RandomizationFactor = 0.2
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)

	attempt := 0
	return backoff.RetryNotifyWithData(func() (T, error) {
		attempt++
		v, err := connect(ctx)
		if err != nil && (errors.Is(err, context.Canceled) || ctx.Err() != nil) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, policy, func(err error, delay time.Duration) {
		log.Warn("connection attempt failed",
			"target", target,
			"attempt", attempt,
			"retry_in", delay.String(),
			"error", err,
		)
	})
}

// NewLogger builds the process-wide slog logger: JSON in production or when
// asked for, text otherwise.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Observability.LogLevel)}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.IsProduction() || strings.EqualFold(cfg.Observability.LogFormat, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	log := slog.New(handler).With("app", cfg.App.Name)
	slog.SetDefault(log)
	return log
}

// NewHTTPLogger builds the request logger used by the API server.
func NewHTTPLogger(cfg *config.Config, w io.Writer) *logger.Logger {
	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		level = logger.LevelDebug
	}
	return logger.New(logger.Options{
		Output:    w,
		Level:     level,
		AddCaller: !cfg.IsProduction(),
	}).With(logger.Component("http"))
}

func slogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
