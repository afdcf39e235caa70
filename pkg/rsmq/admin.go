package rsmq

import (
	"context"
	"errors"
)

// Admin provides cross-queue monitoring and dead-letter maintenance.
type Admin struct {
	client *Client
	dlq    *DeadLetter
}

// NewAdmin creates a new Admin instance.
func NewAdmin(client *Client, opts ...Option) *Admin {
	return &Admin{
		client: client,
		dlq:    NewDeadLetter(client, opts...),
	}
}

// Stats returns the attributes of every queue, sorted by name. A queue
// deleted between listing and reading is skipped.
func (a *Admin) Stats(ctx context.Context) ([]QueueAttributes, error) {
	names, err := a.client.ListQueues(ctx)
	if err != nil {
		return nil, err
	}

	stats := make([]QueueAttributes, 0, len(names))
	for _, name := range names {
		attrs, err := a.client.GetQueueAttributes(ctx, name)
		if errors.Is(err, ErrQueueNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		stats = append(stats, *attrs)
	}

	return stats, nil
}

// Redrive delegates to DeadLetter.Redrive.
func (a *Admin) Redrive(ctx context.Context, source, target string, max int) (int, error) {
	return a.dlq.Redrive(ctx, source, target, max)
}
