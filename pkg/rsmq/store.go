package rsmq

import (
	"context"
	"time"
)

// Store is the backing store the queue engine runs against. Implementations
// must make Claim and Pop indivisible: two concurrent calls never return the
// same message while its lease is active.
//
// Times are truncated to milliseconds by every implementation.
type Store interface {
	// CreateQueue registers q. Returns ErrDuplicateQueue if the name exists.
	CreateQueue(ctx context.Context, q *Queue) error
	// GetQueue returns ErrQueueNotFound for an unknown name.
	GetQueue(ctx context.Context, name string) (*Queue, error)
	// QueueAttributes returns the queue plus counters evaluated at now.
	QueueAttributes(ctx context.Context, name string, now time.Time) (*QueueAttributes, error)
	// UpdateQueue overwrites the queue config and modification time.
	UpdateQueue(ctx context.Context, name string, cfg QueueConfig, modified time.Time) error
	// DeleteQueue drops the queue metadata and every message in it.
	DeleteQueue(ctx context.Context, name string) error
	// ListQueues returns registered queue names in ascending order.
	ListQueues(ctx context.Context) ([]string, error)

	// Insert stores msg. Returns ErrQueueNotFound if the queue is gone.
	Insert(ctx context.Context, msg *Message) error
	// Claim leases the ready message with the smallest visible_at (then id)
	// until visibleUntil. Returns ErrNoMessageAvailable if none is ready.
	Claim(ctx context.Context, queue string, now, visibleUntil time.Time) (*Message, error)
	// Pop claims and deletes in one step.
	Pop(ctx context.Context, queue string, now time.Time) (*Message, error)
	// Delete removes a message in any state. Returns ErrMessageNotFound if
	// it does not exist.
	Delete(ctx context.Context, queue, id string) error
	// SetVisibleAt moves a message on the timeline. Returns
	// ErrMessageNotFound if it does not exist.
	SetVisibleAt(ctx context.Context, queue, id string, visibleAt time.Time) error
}
