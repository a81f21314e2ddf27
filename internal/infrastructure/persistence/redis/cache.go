// Package redis keeps the leaderboard projection in Redis.
//
// Cache owns the client. LeaderboardCache builds the projection on top of it
// and is the only thing the rest of the engine talks to.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds the connection settings. Zero durations and sizes fall back to
// the go-redis defaults.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int
	MaxRetries   int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig targets a local Redis with short timeouts: the projection is
// optional and a slow Redis should not stall requests.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   2,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) options() *redis.Options {
	return &redis.Options{
		Addr:         c.Addr(),
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		MaxRetries:   c.MaxRetries,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}

var (
	// ErrConnect wraps the PING failure from NewCache.
	ErrConnect = errors.New("redis: connect failed")

	// ErrEncoding is returned when a projection entry cannot be encoded or
	// decoded.
	ErrEncoding = errors.New("redis: bad projection payload")

	// ErrEmptyUserID rejects upserts without a member to store.
	ErrEmptyUserID = errors.New("redis: empty user id")
)

// Cache is a connected Redis client.
type Cache struct {
	client *redis.Client
	config Config
}

// NewCache connects and checks the server answers PING before returning.
func NewCache(ctx context.Context, cfg Config) (*Cache, error) {
	client := redis.NewClient(cfg.options())

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrConnect, cfg.Addr(), err)
	}

	return &Cache{client: client, config: cfg}, nil
}

// Client exposes the go-redis client for pipelines.
func (c *Cache) Client() *redis.Client { return c.client }

func (c *Cache) Close() error { return c.client.Close() }

// Ping satisfies the health checker's Pinger.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// getJSON decodes the value at key into dest. found is false when the key
// does not exist.
func (c *Cache) getJSON(ctx context.Context, key string, dest any) (found bool, err error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrEncoding, key, err)
	}
	return true, nil
}
