package rsmq

import (
	"github.com/redis/go-redis/v9"
)

// Client bundles the registry, producer and consumer of one store.
type Client struct {
	*Registry
	*Producer
	*Consumer

	store Store
}

// NewClient creates a Client on top of store.
func NewClient(store Store, opts ...Option) *Client {
	return &Client{
		Registry: NewRegistry(store, opts...),
		Producer: NewProducer(store, opts...),
		Consumer: NewConsumer(store, opts...),
		store:    store,
	}
}

// NewRedisClient creates a Client backed by a RedisStore on rdb. The store
// shares the client's logger and metrics.
func NewRedisClient(rdb redis.UniversalClient, config Config, opts ...Option) *Client {
	o := newOptions(opts)
	store := NewRedisStore(rdb, config)
	store.SetLogger(o.logger)
	store.SetMetrics(o.metrics)
	return NewClient(store, opts...)
}

// Store returns the backing store.
func (c *Client) Store() Store { return c.store }
