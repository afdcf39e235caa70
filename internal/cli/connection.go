// Package cli holds the cobra commands behind the rsmq-producer,
// rsmq-consumer and rsmq-admin binaries.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hunetmoducoding/rsmq-go/pkg/rsmq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// Connection holds the flags shared by every command.
type Connection struct {
	Addr      string
	Password  string
	TLS       bool
	Namespace string
	Strategy  string
	Realtime  bool
	LogLevel  string
}

// AddConnectionFlags registers the connection flags as persistent flags on
// cmd. Defaults come from REDIS_HOST, REDIS_PORT, REDIS_PASSWORD,
// REDIS_USE_TLS, RSMQ_NAMESPACE and RSMQ_LOG_LEVEL.
func AddConnectionFlags(cmd *cobra.Command) *Connection {
	env := rsmq.ConfigFromEnv()
	c := &Connection{}

	flags := cmd.PersistentFlags()
	flags.StringVar(&c.Addr, "redis", env.Redis.Address, "Redis address (host:port)")
	flags.StringVar(&c.Password, "password", env.Redis.Password, "Redis password")
	flags.BoolVar(&c.TLS, "tls", env.Redis.UseTLS, "Enable TLS")
	flags.StringVar(&c.Namespace, "ns", env.Namespace, "Key namespace")
	flags.StringVar(&c.Strategy, "claim", rsmq.ClaimStrategyScript, "Claim strategy: script|optimistic")
	flags.BoolVar(&c.Realtime, "realtime", false, "Publish the queue length on {ns}:rt:{queue} after every send")
	flags.StringVar(&c.LogLevel, "log-level", getEnv("RSMQ_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	return c
}

// Config turns the flags into a validated library config.
func (c *Connection) Config() (rsmq.Config, error) {
	cfg := rsmq.DefaultConfig()
	cfg.Namespace = c.Namespace
	cfg.Realtime = c.Realtime
	cfg.Redis.Address = c.Addr
	cfg.Redis.Password = c.Password
	cfg.Redis.UseTLS = c.TLS
	cfg.Claim.Strategy = c.Strategy

	if err := cfg.Validate(); err != nil {
		return rsmq.Config{}, fmt.Errorf("%w: %w", rsmq.ErrInvalidParameter, err)
	}
	return cfg, nil
}

// Logger returns a text logger on stderr at the configured level.
func (c *Connection) Logger() *slog.Logger {
	return NewLogger(c.LogLevel)
}

// Session is an open Redis connection with an rsmq.Client on top.
type Session struct {
	Client *rsmq.Client
	Config rsmq.Config
	Redis  *redis.Client
}

// Close releases the connection pool.
func (s *Session) Close() error {
	return s.Redis.Close()
}

// Connect opens and pings a Redis client and wraps it in an rsmq.Client.
func (c *Connection) Connect(ctx context.Context, opts ...rsmq.Option) (*Session, error) {
	cfg, err := c.Config()
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(cfg.RedisOptions())
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("%w: failed to connect to Redis at %s: %w",
			rsmq.ErrBackingStoreUnavailable, c.Addr, err)
	}

	opts = append([]rsmq.Option{rsmq.WithLogger(c.Logger())}, opts...)
	return &Session{
		Client: rsmq.NewRedisClient(rdb, cfg, opts...),
		Config: cfg,
		Redis:  rdb,
	}, nil
}

// NewLogger builds a slog text logger on stderr. Unknown levels fall back to
// info.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// seconds converts a flag given in whole seconds, rejecting values outside
// 0..rsmq.MaxTimeout before the multiplication can overflow.
func seconds(flag string, n int64) (time.Duration, error) {
	if n < 0 || n > int64(rsmq.MaxTimeout/time.Second) {
		return 0, &rsmq.InvalidParameterError{Field: flag, Value: n, Reason: "must be between 0 and 9999999 seconds"}
	}
	return time.Duration(n) * time.Second, nil
}
