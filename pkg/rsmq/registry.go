package rsmq

import (
	"context"
	"log/slog"
	"time"
)

// Registry manages named queues and their default attributes.
type Registry struct {
	store   Store
	now     func() time.Time
	logger  *slog.Logger
	metrics Metrics
}

// NewRegistry creates a Registry on top of store.
func NewRegistry(store Store, opts ...Option) *Registry {
	o := newOptions(opts)
	return &Registry{
		store:   store,
		now:     o.now,
		logger:  o.logger,
		metrics: o.metrics,
	}
}

// CreateQueue registers a queue with Created = Modified = now.
func (r *Registry) CreateQueue(ctx context.Context, name string, cfg QueueConfig) error {
	if err := validateQueueName(name); err != nil {
		return opErr("create_queue", name, "", err)
	}
	if err := cfg.Validate(); err != nil {
		return opErr("create_queue", name, "", err)
	}

	now := r.now()
	q := &Queue{
		Name:        name,
		QueueConfig: cfg,
		Created:     now,
		Modified:    now,
	}
	if err := r.store.CreateQueue(ctx, q); err != nil {
		return opErr("create_queue", name, "", err)
	}

	r.logger.Debug("queue created",
		"queue", name,
		"visibility_timeout", cfg.VisibilityTimeout,
		"delay", cfg.Delay,
		"max_size", cfg.MaxSize,
	)
	return nil
}

// DeleteQueue removes the queue and every message in it.
func (r *Registry) DeleteQueue(ctx context.Context, name string) error {
	if err := validateQueueName(name); err != nil {
		return opErr("delete_queue", name, "", err)
	}
	if err := r.store.DeleteQueue(ctx, name); err != nil {
		return opErr("delete_queue", name, "", err)
	}
	r.logger.Debug("queue deleted", "queue", name)
	return nil
}

// GetQueueAttributes returns the queue config and current counters.
func (r *Registry) GetQueueAttributes(ctx context.Context, name string) (*QueueAttributes, error) {
	if err := validateQueueName(name); err != nil {
		return nil, opErr("get_queue_attributes", name, "", err)
	}
	attrs, err := r.store.QueueAttributes(ctx, name, r.now())
	if err != nil {
		return nil, opErr("get_queue_attributes", name, "", err)
	}
	r.metrics.SetQueueDepth(name, attrs.Messages, attrs.HiddenMessages)
	return attrs, nil
}

// SetQueueAttributes applies a partial update, validates the result and
// bumps Modified. Returns the attributes after the update.
func (r *Registry) SetQueueAttributes(ctx context.Context, name string, update QueueAttributesUpdate) (*QueueAttributes, error) {
	if err := validateQueueName(name); err != nil {
		return nil, opErr("set_queue_attributes", name, "", err)
	}
	if update.empty() {
		return nil, opErr("set_queue_attributes", name, "",
			&InvalidParameterError{Field: "update", Value: "{}", Reason: "at least one attribute is required"})
	}

	q, err := r.store.GetQueue(ctx, name)
	if err != nil {
		return nil, opErr("set_queue_attributes", name, "", err)
	}

	cfg := update.apply(q.QueueConfig)
	if err := cfg.Validate(); err != nil {
		return nil, opErr("set_queue_attributes", name, "", err)
	}

	if err := r.store.UpdateQueue(ctx, name, cfg, r.now()); err != nil {
		return nil, opErr("set_queue_attributes", name, "", err)
	}

	r.logger.Debug("queue attributes updated", "queue", name)
	return r.GetQueueAttributes(ctx, name)
}

// ListQueues returns all queue names in ascending order.
func (r *Registry) ListQueues(ctx context.Context) ([]string, error) {
	names, err := r.store.ListQueues(ctx)
	if err != nil {
		return nil, opErr("list_queues", "", "", err)
	}
	return names, nil
}

// queue loads the config send and receive need.
func (r *Registry) queue(ctx context.Context, name string) (*Queue, error) {
	if err := validateQueueName(name); err != nil {
		return nil, err
	}
	return r.store.GetQueue(ctx, name)
}
