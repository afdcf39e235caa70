package rsmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Handler processes a message. Return nil to delete it, an error to have it
// redelivered after a backoff (or dead-lettered once it has been received
// MaxReceiveCount times).
type Handler func(ctx context.Context, msg *Message) error

// Worker polls one queue and runs a Handler for every message it claims.
type Worker struct {
	client  *Client
	config  WorkerConfig
	backoff BackoffConfig
	dlq     *DeadLetter
	name    string
	logger  *slog.Logger

	// Lifecycle
	stopCh  chan struct{}
	doneCh  chan struct{}
	cancel  context.CancelFunc
	running atomic.Bool
	mu      sync.Mutex

	queue   string
	handler Handler
}

// NewWorker creates a Worker. Zero fields in config are not defaulted here;
// pass Config.WithDefaults().Worker.
func NewWorker(client *Client, config WorkerConfig, opts ...Option) *Worker {
	o := newOptions(opts)

	prefix := config.WorkerName
	if prefix == "" {
		prefix = "rsmq"
	}
	name := generateWorkerName(prefix)

	return &Worker{
		client:  client,
		config:  config,
		backoff: BackoffFromWorker(config),
		dlq:     NewDeadLetter(client, opts...),
		name:    name,
		logger:  o.logger.With("worker", name),
	}
}

// Name returns the auto-generated unique worker name.
func (w *Worker) Name() string {
	return w.name
}

// Start begins polling queue in a goroutine and returns immediately.
// While messages are ready they are processed back to back; an empty queue
// is polled again after PollIntervalMs. Call Stop to shut down.
func (w *Worker) Start(queue string, handler Handler) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running.Load() {
		return errors.New("worker is already running")
	}
	if err := validateQueueName(queue); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.queue = queue
	w.handler = handler
	w.cancel = cancel
	w.running.Store(true)

	stop, done := w.stopCh, w.doneCh
	go func() {
		defer close(done)
		w.loop(ctx, stop)
	}()

	w.logger.Info("worker started", "queue", queue)
	return nil
}

// Stop signals the poll loop to exit and waits for the in-flight message
// (up to ShutdownTimeoutMs, default 30s). The handler's context is cancelled
// on return either way.
func (w *Worker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running.Load() {
		return nil
	}
	close(w.stopCh)

	timeout := time.Duration(w.config.ShutdownTimeoutMs) * time.Millisecond
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	select {
	case <-w.doneCh:
	case <-time.After(timeout):
		w.logger.Warn("shutdown timeout exceeded, cancelling in-flight handler")
	}

	w.cancel()
	w.running.Store(false)
	return nil
}

func (w *Worker) loop(ctx context.Context, stop <-chan struct{}) {
	interval := time.Duration(w.config.PollIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
		}

		processed, err := w.ProcessNext(ctx, w.queue, w.handler)
		if err != nil {
			w.logger.Error("process failed", "queue", w.queue, "error", err)
		}

		if processed {
			timer.Reset(0)
		} else {
			timer.Reset(interval)
		}
	}
}

// ProcessNext claims one message from queue and runs handler on it.
// Returns false when no message was ready.
func (w *Worker) ProcessNext(ctx context.Context, queue string, handler Handler) (bool, error) {
	var opts []ReceiveOption
	if w.config.VisibilityTimeoutMs > 0 {
		opts = append(opts, WithVisibilityTimeout(time.Duration(w.config.VisibilityTimeoutMs)*time.Millisecond))
	}

	msg, err := w.client.ReceiveMessage(ctx, queue, opts...)
	if errors.Is(err, ErrNoMessageAvailable) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	handlerErr := w.runHandler(ctx, handler, msg)
	if handlerErr == nil {
		err := w.client.DeleteMessage(ctx, queue, msg.ID)
		if errors.Is(err, ErrMessageNotFound) {
			// Lease expired and someone else already finished it.
			w.logger.Debug("message already deleted", "queue", queue, "id", msg.ID)
			return true, nil
		}
		return true, err
	}

	if w.config.DeadLetterQueue != "" && msg.ReceiveCount >= w.config.MaxReceiveCount {
		if _, err := w.dlq.Move(ctx, msg, w.config.DeadLetterQueue); err != nil {
			return true, fmt.Errorf("dead-letter %s: %w", msg.ID, err)
		}
		return true, nil
	}

	delay := ComputeDelay(msg.ReceiveCount, w.backoff)
	w.logger.Warn("handler failed, retrying later",
		"queue", queue,
		"id", msg.ID,
		"receive_count", msg.ReceiveCount,
		"retry_in", delay,
		"error", handlerErr,
	)

	err = w.client.ChangeMessageVisibility(ctx, queue, msg.ID, delay)
	if errors.Is(err, ErrMessageNotFound) {
		return true, nil
	}
	return true, err
}

// runHandler turns a handler panic into an error so the message follows the
// normal retry path.
func (w *Worker) runHandler(ctx context.Context, handler Handler, msg *Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, msg)
}

// generateWorkerName creates a unique worker name.
// Format: {prefix}-{hostname}-{pid}-{short_uuid}
func generateWorkerName(prefix string) string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	pid := os.Getpid()
	shortUUID := uuid.New().String()[:8]

	return fmt.Sprintf("%s-%s-%d-%s", prefix, hostname, pid, shortUUID)
}
