package rsmq

import (
	"context"
	"errors"
	"log/slog"
)

// DeadLetter moves messages that keep failing out of their queue. The
// dead-letter queue is an ordinary queue and must exist.
type DeadLetter struct {
	client  *Client
	logger  *slog.Logger
	metrics Metrics
}

// NewDeadLetter creates a DeadLetter working through client.
func NewDeadLetter(client *Client, opts ...Option) *DeadLetter {
	o := newOptions(opts)
	return &DeadLetter{
		client:  client,
		logger:  o.logger,
		metrics: o.metrics,
	}
}

// Move sends msg's payload to target and then deletes msg from its queue.
// A failure between the two steps leaves the message in both queues, never
// in neither. Returns the id of the copy in target.
func (d *DeadLetter) Move(ctx context.Context, msg *Message, target string) (string, error) {
	id, err := d.client.SendMessage(ctx, target, msg.Payload, WithDelay(0))
	if err != nil {
		return "", err
	}

	if err := d.client.DeleteMessage(ctx, msg.Queue, msg.ID); err != nil && !errors.Is(err, ErrMessageNotFound) {
		return id, err
	}

	d.metrics.IncDeadLettered(msg.Queue)
	d.logger.Warn("message moved to dead-letter queue",
		"queue", msg.Queue,
		"id", msg.ID,
		"receive_count", msg.ReceiveCount,
		"dead_letter_queue", target,
		"dead_letter_id", id,
	)
	return id, nil
}

// Redrive moves up to max ready messages from source to target. Each one is
// claimed, resent and then deleted, so a failure part way leaves it in
// source to be redriven again. Returns the number of messages moved.
func (d *DeadLetter) Redrive(ctx context.Context, source, target string, max int) (int, error) {
	moved := 0
	for moved < max {
		msg, err := d.client.ReceiveMessage(ctx, source)
		if errors.Is(err, ErrNoMessageAvailable) {
			break
		}
		if err != nil {
			return moved, err
		}

		if _, err := d.client.SendMessage(ctx, target, msg.Payload, WithDelay(0)); err != nil {
			return moved, err
		}
		if err := d.client.DeleteMessage(ctx, source, msg.ID); err != nil && !errors.Is(err, ErrMessageNotFound) {
			return moved, err
		}
		moved++
	}

	if moved > 0 {
		d.logger.Info("redrive complete", "source", source, "target", target, "moved", moved)
	}
	return moved, nil
}
