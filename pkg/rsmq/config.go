package rsmq

import (
	"crypto/tls"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Claim strategies for RedisStore.
const (
	ClaimStrategyScript     = "script"
	ClaimStrategyOptimistic = "optimistic"
)

// NoClaimRetries as Claim.MaxRetries makes the optimistic strategy give up
// after the first lost race. Zero means the default.
const NoClaimRetries = -1

type Config struct {
	Namespace string
	Realtime  bool // PUBLISH the queue length on "{ns}:rt:{queue}" after every send
	Redis     RedisConfig
	Claim     ClaimConfig
	Worker    WorkerConfig
}

type RedisConfig struct {
	Address        string // default: "localhost:6379"
	Password       string
	DB             int
	PoolSize       int   // default: 10
	ReadTimeoutMs  int64 // default: 3000
	WriteTimeoutMs int64 // default: 3000
	UseTLS         bool  // default: false
}

type ClaimConfig struct {
	Strategy   string // default: "script"
	MaxRetries int    // default: 5 when 0, NoClaimRetries for none; optimistic strategy only
}

type WorkerConfig struct {
	PollIntervalMs      int64  // default: 1000
	VisibilityTimeoutMs int64  // 0 uses the queue's visibility timeout
	MaxReceiveCount     int64  // default: 5, only used with DeadLetterQueue
	DeadLetterQueue     string // disabled if empty
	BaseDelayMs         int64  // default: 1000
	MaxDelayMs          int64  // default: 60000
	Jitter              bool   // default: false
	ShutdownTimeoutMs   int64  // default: 30000
	WorkerName          string // auto-generated if empty
}

// DefaultConfig returns a Config with all default values.
func DefaultConfig() Config {
	return Config{
		Namespace: "rsmq",
		Redis: RedisConfig{
			Address:        "localhost:6379",
			PoolSize:       10,
			ReadTimeoutMs:  3000,
			WriteTimeoutMs: 3000,
		},
		Claim: ClaimConfig{
			Strategy:   ClaimStrategyScript,
			MaxRetries: 5,
		},
		Worker: WorkerConfig{
			PollIntervalMs:    1000,
			MaxReceiveCount:   5,
			BaseDelayMs:       1000,
			MaxDelayMs:        60000,
			ShutdownTimeoutMs: 30000,
		},
	}
}

// Validate checks that all required fields are set and values are within valid ranges.
// Returns an error describing the first validation failure.
func (c Config) Validate() error {
	if c.Namespace == "" {
		return errors.New("rsmq: namespace must not be empty")
	}

	if strings.Contains(c.Namespace, ":") {
		return errors.New("rsmq: namespace must not contain ':'")
	}

	if c.Claim.Strategy != ClaimStrategyScript && c.Claim.Strategy != ClaimStrategyOptimistic {
		return errors.New("rsmq: claim strategy must be 'script' or 'optimistic'")
	}

	if c.Claim.MaxRetries < NoClaimRetries {
		return errors.New("rsmq: claim max_retries must be >= 0, or NoClaimRetries")
	}

	if c.Worker.PollIntervalMs <= 0 {
		return errors.New("rsmq: worker poll_interval must be > 0")
	}

	if c.Worker.VisibilityTimeoutMs < 0 || time.Duration(c.Worker.VisibilityTimeoutMs)*time.Millisecond > MaxTimeout {
		return errors.New("rsmq: worker visibility_timeout must be between 0 and 9999999 seconds")
	}

	if c.Worker.BaseDelayMs <= 0 {
		return errors.New("rsmq: worker base_delay must be > 0")
	}

	if c.Worker.MaxDelayMs < c.Worker.BaseDelayMs {
		return errors.New("rsmq: worker max_delay must be >= base_delay")
	}

	if c.Worker.DeadLetterQueue != "" && c.Worker.MaxReceiveCount < 1 {
		return errors.New("rsmq: worker max_receive_count must be >= 1 when a dead-letter queue is set")
	}

	return nil
}

// WithDefaults returns a new Config with zero-value fields replaced by defaults.
// Booleans (Realtime, UseTLS, Jitter) default to false and are kept as given.
func (c Config) WithDefaults() Config {
	defaults := DefaultConfig()
	result := c

	if result.Namespace == "" {
		result.Namespace = defaults.Namespace
	}

	// Redis
	if result.Redis.Address == "" {
		result.Redis.Address = defaults.Redis.Address
	}
	if result.Redis.PoolSize == 0 {
		result.Redis.PoolSize = defaults.Redis.PoolSize
	}
	if result.Redis.ReadTimeoutMs == 0 {
		result.Redis.ReadTimeoutMs = defaults.Redis.ReadTimeoutMs
	}
	if result.Redis.WriteTimeoutMs == 0 {
		result.Redis.WriteTimeoutMs = defaults.Redis.WriteTimeoutMs
	}

	// Claim
	if result.Claim.Strategy == "" {
		result.Claim.Strategy = defaults.Claim.Strategy
	}
	if result.Claim.MaxRetries == 0 {
		result.Claim.MaxRetries = defaults.Claim.MaxRetries
	}

	// Worker
	if result.Worker.PollIntervalMs == 0 {
		result.Worker.PollIntervalMs = defaults.Worker.PollIntervalMs
	}
	if result.Worker.MaxReceiveCount == 0 {
		result.Worker.MaxReceiveCount = defaults.Worker.MaxReceiveCount
	}
	if result.Worker.BaseDelayMs == 0 {
		result.Worker.BaseDelayMs = defaults.Worker.BaseDelayMs
	}
	if result.Worker.MaxDelayMs == 0 {
		result.Worker.MaxDelayMs = defaults.Worker.MaxDelayMs
	}
	if result.Worker.ShutdownTimeoutMs == 0 {
		result.Worker.ShutdownTimeoutMs = defaults.Worker.ShutdownTimeoutMs
	}

	return result
}

// ConfigFromEnv reads Redis connection settings and the namespace from
// environment variables. Unset variables use defaults.
//
// Environment variables:
//   - REDIS_HOST: Redis hostname (default: "localhost")
//   - REDIS_PORT: Redis port (default: "6379")
//   - REDIS_PASSWORD: Redis password (default: "")
//   - REDIS_USE_TLS: Enable TLS ("true" or "1") (default: false)
//   - RSMQ_NAMESPACE: key namespace (default: "rsmq")
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	host := os.Getenv("REDIS_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	cfg.Redis.Address = host + ":" + port

	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}

	tlsEnv := os.Getenv("REDIS_USE_TLS")
	cfg.Redis.UseTLS = (tlsEnv == "true" || tlsEnv == "1" || tlsEnv == "yes")

	if ns := os.Getenv("RSMQ_NAMESPACE"); ns != "" {
		cfg.Namespace = ns
	}

	return cfg
}

// RedisOptions builds go-redis options from the Redis section. With TLS on,
// the host part of the address is used for SNI.
func (c Config) RedisOptions() *redis.Options {
	opts := &redis.Options{
		Addr:         c.Redis.Address,
		Password:     c.Redis.Password,
		DB:           c.Redis.DB,
		PoolSize:     c.Redis.PoolSize,
		ReadTimeout:  time.Duration(c.Redis.ReadTimeoutMs) * time.Millisecond,
		WriteTimeout: time.Duration(c.Redis.WriteTimeoutMs) * time.Millisecond,
	}

	if c.Redis.UseTLS {
		host := strings.Split(c.Redis.Address, ":")[0]
		opts.TLSConfig = &tls.Config{
			ServerName: host,
		}
	}

	return opts
}
