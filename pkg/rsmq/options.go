package rsmq

import (
	"log/slog"
	"time"
)

// Option configures a Registry, Producer, Consumer or Client.
type Option func(*options)

type options struct {
	now     func() time.Time
	logger  *slog.Logger
	metrics Metrics
	ids     *IDGenerator
}

func newOptions(opts []Option) options {
	o := options{
		now:     time.Now,
		logger:  slog.Default(),
		metrics: NoopMetrics{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ids == nil {
		o.ids = NewIDGenerator()
	}
	return o
}

// WithClock replaces time.Now. All producers and consumers of a queue are
// expected to see roughly the same clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithMetrics(m Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithIDGenerator shares one generator between several producers.
func WithIDGenerator(g *IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// SendOption overrides queue defaults for one SendMessage call.
type SendOption func(*sendOptions)

type sendOptions struct {
	delay *time.Duration
}

// WithDelay replaces the queue's delay for this message.
func WithDelay(d time.Duration) SendOption {
	return func(o *sendOptions) { o.delay = &d }
}

// ReceiveOption overrides queue defaults for one ReceiveMessage call.
type ReceiveOption func(*receiveOptions)

type receiveOptions struct {
	visibilityTimeout *time.Duration
}

// WithVisibilityTimeout replaces the queue's visibility timeout for this
// claim.
func WithVisibilityTimeout(d time.Duration) ReceiveOption {
	return func(o *receiveOptions) { o.visibilityTimeout = &d }
}
