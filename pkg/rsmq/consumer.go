package rsmq

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Consumer claims, extends and deletes messages. It never blocks waiting for
// a message: an empty queue returns ErrNoMessageAvailable immediately and
// callers poll.
type Consumer struct {
	store    Store
	registry *Registry
	now      func() time.Time
	logger   *slog.Logger
	metrics  Metrics
}

// NewConsumer creates a Consumer on top of store.
func NewConsumer(store Store, opts ...Option) *Consumer {
	o := newOptions(opts)
	return &Consumer{
		store:    store,
		registry: NewRegistry(store, opts...),
		now:      o.now,
		logger:   o.logger,
		metrics:  o.metrics,
	}
}

// ReceiveMessage claims the next ready message and hides it for the queue's
// visibility timeout, or WithVisibilityTimeout's value when given. The
// message comes back once the timeout elapses unless it is deleted first.
func (c *Consumer) ReceiveMessage(ctx context.Context, queue string, opts ...ReceiveOption) (*Message, error) {
	var ro receiveOptions
	for _, opt := range opts {
		opt(&ro)
	}

	if ro.visibilityTimeout != nil {
		if err := validateDuration("visibility_timeout", *ro.visibilityTimeout); err != nil {
			return nil, opErr("receive_message", queue, "", err)
		}
	}

	q, err := c.registry.queue(ctx, queue)
	if err != nil {
		return nil, opErr("receive_message", queue, "", err)
	}

	vt := q.VisibilityTimeout
	if ro.visibilityTimeout != nil {
		vt = *ro.visibilityTimeout
	}

	now := c.now()
	msg, err := c.store.Claim(ctx, queue, now, now.Add(vt))
	if errors.Is(err, ErrNoMessageAvailable) {
		c.metrics.IncEmptyReceives(queue)
		return nil, ErrNoMessageAvailable
	}
	if err != nil {
		return nil, opErr("receive_message", queue, "", err)
	}

	c.metrics.IncReceived(queue)
	c.logger.Debug("message received",
		"queue", queue,
		"id", msg.ID,
		"receive_count", msg.ReceiveCount,
		"visible_at", msg.VisibleAt,
	)
	return msg, nil
}

// DeleteMessage removes a message whether it is ready or hidden. A second
// delete of the same id returns ErrMessageNotFound, which callers can treat
// as already acknowledged.
func (c *Consumer) DeleteMessage(ctx context.Context, queue, id string) error {
	if err := validateMessageRef(queue, id); err != nil {
		return opErr("delete_message", queue, id, err)
	}
	if err := c.store.Delete(ctx, queue, id); err != nil {
		return opErr("delete_message", queue, id, err)
	}
	c.metrics.IncDeleted(queue)
	c.logger.Debug("message deleted", "queue", queue, "id", id)
	return nil
}

// ChangeMessageVisibility sets the message's visible_at to now + timeout,
// extending a lease, releasing it early (timeout 0) or hiding a ready
// message.
func (c *Consumer) ChangeMessageVisibility(ctx context.Context, queue, id string, timeout time.Duration) error {
	if err := validateMessageRef(queue, id); err != nil {
		return opErr("change_message_visibility", queue, id, err)
	}
	if err := validateDuration("visibility_timeout", timeout); err != nil {
		return opErr("change_message_visibility", queue, id, err)
	}
	if err := c.store.SetVisibleAt(ctx, queue, id, c.now().Add(timeout)); err != nil {
		return opErr("change_message_visibility", queue, id, err)
	}
	c.logger.Debug("message visibility changed", "queue", queue, "id", id, "timeout", timeout)
	return nil
}

// PopMessage claims and deletes the next ready message in one store
// operation. There is no lease: if the caller fails after PopMessage returns,
// the message is gone.
func (c *Consumer) PopMessage(ctx context.Context, queue string) (*Message, error) {
	if _, err := c.registry.queue(ctx, queue); err != nil {
		return nil, opErr("pop_message", queue, "", err)
	}

	msg, err := c.store.Pop(ctx, queue, c.now())
	if errors.Is(err, ErrNoMessageAvailable) {
		c.metrics.IncEmptyReceives(queue)
		return nil, ErrNoMessageAvailable
	}
	if err != nil {
		return nil, opErr("pop_message", queue, "", err)
	}

	c.metrics.IncReceived(queue)
	c.metrics.IncDeleted(queue)
	c.logger.Debug("message popped", "queue", queue, "id", msg.ID, "receive_count", msg.ReceiveCount)
	return msg, nil
}

func validateMessageRef(queue, id string) error {
	if err := validateQueueName(queue); err != nil {
		return err
	}
	if !validID(id) {
		return &InvalidParameterError{Field: "id", Value: id, Reason: "must be 1-64 alphanumeric characters and not a queue attribute name"}
	}
	return nil
}
