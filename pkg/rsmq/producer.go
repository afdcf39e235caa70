package rsmq

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Producer sends messages to queues.
type Producer struct {
	store    Store
	registry *Registry
	ids      *IDGenerator
	now      func() time.Time
	logger   *slog.Logger
	metrics  Metrics
}

// NewProducer creates a Producer on top of store.
func NewProducer(store Store, opts ...Option) *Producer {
	o := newOptions(opts)
	return &Producer{
		store:    store,
		registry: NewRegistry(store, opts...),
		ids:      o.ids,
		now:      o.now,
		logger:   o.logger,
		metrics:  o.metrics,
	}
}

// SendMessage stores payload in queue and returns the new message id. The
// message becomes claimable after the queue delay, or after WithDelay's
// value when given.
func (p *Producer) SendMessage(ctx context.Context, queue string, payload []byte, opts ...SendOption) (string, error) {
	var so sendOptions
	for _, opt := range opts {
		opt(&so)
	}

	if so.delay != nil {
		if err := validateDuration("delay", *so.delay); err != nil {
			return "", opErr("send_message", queue, "", err)
		}
	}

	q, err := p.registry.queue(ctx, queue)
	if err != nil {
		return "", opErr("send_message", queue, "", err)
	}

	if q.MaxSize != UnlimitedMaxSize && len(payload) > q.MaxSize {
		err := fmt.Errorf("%w: %d bytes exceeds max_size %d", ErrPayloadTooLarge, len(payload), q.MaxSize)
		return "", opErr("send_message", queue, "", err)
	}

	delay := q.Delay
	if so.delay != nil {
		delay = *so.delay
	}

	now := p.now()
	msg := &Message{
		ID:        p.ids.Next(),
		Queue:     queue,
		Payload:   payload,
		SentAt:    now,
		VisibleAt: now.Add(delay),
	}

	if err := p.store.Insert(ctx, msg); err != nil {
		return "", opErr("send_message", queue, msg.ID, err)
	}

	p.metrics.IncSent(queue)
	p.logger.Debug("message sent", "queue", queue, "id", msg.ID, "delay", delay)

	return msg.ID, nil
}
