package rsmq_test

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hunetmoducoding/rsmq-go/pkg/rsmq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable clock so visibility and delay tests never sleep.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testEnv is one client wired to one store flavour.
type testEnv struct {
	Client *rsmq.Client
	Clock  *fakeClock
	Store  rsmq.Store
	Redis  *redis.Client // nil for the memory store
	Config rsmq.Config
}

type storeKind struct {
	name     string
	redis    bool
	strategy string
}

var storeKinds = []storeKind{
	{name: "memory"},
	{name: "redis-script", redis: true, strategy: rsmq.ClaimStrategyScript},
	{name: "redis-optimistic", redis: true, strategy: rsmq.ClaimStrategyOptimistic},
}

// forEachStore runs fn as a subtest against every store flavour.
func forEachStore(t *testing.T, fn func(t *testing.T, env *testEnv)) {
	t.Helper()
	for _, kind := range storeKinds {
		t.Run(kind.name, func(t *testing.T) {
			fn(t, newTestEnv(t, kind))
		})
	}
}

func newTestEnv(t *testing.T, kind storeKind, opts ...rsmq.Option) *testEnv {
	t.Helper()

	clock := newFakeClock()
	cfg := rsmq.DefaultConfig()
	env := &testEnv{Clock: clock}

	if kind.redis {
		client := NewRedisClient(t)
		cfg.Namespace = UniqueNamespace(t, client)
		cfg.Claim.Strategy = kind.strategy
		cfg.Claim.MaxRetries = 50
		env.Redis = client
		env.Store = rsmq.NewRedisStore(client, cfg)
	} else {
		env.Store = rsmq.NewMemoryStore()
	}

	env.Config = cfg
	opts = append([]rsmq.Option{rsmq.WithClock(clock.Now)}, opts...)
	env.Client = rsmq.NewClient(env.Store, opts...)
	return env
}

// createQueue creates name with a 30s visibility timeout and no delay.
func (e *testEnv) createQueue(t *testing.T, name string) {
	t.Helper()
	require.NoError(t, e.Client.CreateQueue(context.Background(), name, rsmq.DefaultQueueConfig()))
}

// NewRedisClient returns a client for a real Redis when REDIS_HOST is set
// (REDIS_PORT, REDIS_PASSWORD and REDIS_USE_TLS are honoured), otherwise for
// an in-process miniredis that is torn down with the test.
func NewRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	host := os.Getenv("REDIS_HOST")
	if host == "" {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		return client
	}

	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}

	opts := &redis.Options{
		Addr:     host + ":" + port,
		Password: os.Getenv("REDIS_PASSWORD"),
	}
	useTLS := os.Getenv("REDIS_USE_TLS")
	if useTLS == "true" || useTLS == "1" || useTLS == "yes" {
		opts.TLSConfig = &tls.Config{ServerName: host}
	}

	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })
	return client
}

// UniqueNamespace returns a namespace like "test-1707000000-abc123ef" and
// deletes every key under it when the test ends.
func UniqueNamespace(t *testing.T, client *redis.Client) string {
	t.Helper()

	namespace := fmt.Sprintf("test-%d-%s", time.Now().Unix(), uuid.New().String()[:8])

	t.Cleanup(func() {
		ctx := context.Background()
		if err := CleanupKeys(ctx, client, namespace); err != nil {
			t.Logf("Cleanup failed for namespace %s: %v", namespace, err)
		}
	})

	return namespace
}

// CleanupKeys deletes all Redis keys matching "{namespace}:*" using SCAN + DEL.
func CleanupKeys(ctx context.Context, client *redis.Client, namespace string) error {
	iter := client.Scan(ctx, 0, namespace+":*", 0).Iterator()

	for iter.Next(ctx) {
		key := iter.Val()
		if err := client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", key, err)
		}
	}

	return iter.Err()
}
