package rsmq

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrQueueNotFound           = errors.New("rsmq: queue not found")
	ErrDuplicateQueue          = errors.New("rsmq: queue already exists")
	ErrInvalidParameter        = errors.New("rsmq: invalid parameter")
	ErrPayloadTooLarge         = errors.New("rsmq: payload too large")
	ErrMessageNotFound         = errors.New("rsmq: message not found")
	ErrBackingStoreUnavailable = errors.New("rsmq: backing store unavailable")

	// ErrNoMessageAvailable is returned by receive and pop when no message is
	// ready. It is an empty result, not a failure.
	ErrNoMessageAvailable = errors.New("rsmq: no message available")

	// ErrConcurrentModificationRetryExhausted is returned by the optimistic
	// claim strategy after losing MaxRetries races in a row.
	ErrConcurrentModificationRetryExhausted = errors.New("rsmq: concurrent modification retries exhausted")
)

var kinds = []error{
	ErrQueueNotFound,
	ErrDuplicateQueue,
	ErrInvalidParameter,
	ErrPayloadTooLarge,
	ErrMessageNotFound,
	ErrNoMessageAvailable,
	ErrBackingStoreUnavailable,
	ErrConcurrentModificationRetryExhausted,
}

// Kind returns the sentinel error err belongs to, or nil if err is not one
// of the package's error kinds.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// InvalidParameterError wraps ErrInvalidParameter with the offending field.
type InvalidParameterError struct {
	Field  string
	Value  any
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("rsmq: invalid parameter '%s' (%v): %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidParameterError) Unwrap() error {
	return ErrInvalidParameter
}

// OpError records the operation, queue and message a failure happened on.
type OpError struct {
	Op    string
	Queue string
	ID    string
	Err   error
}

func (e *OpError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Queue != "" {
		b.WriteString(" queue=")
		b.WriteString(e.Queue)
	}
	if e.ID != "" {
		b.WriteString(" id=")
		b.WriteString(e.ID)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// opErr wraps err with operation context. Nil and ErrNoMessageAvailable pass
// through untouched so callers can keep comparing the empty result directly.
func opErr(op, queue, id string, err error) error {
	if err == nil || err == ErrNoMessageAvailable {
		return err
	}
	return &OpError{Op: op, Queue: queue, ID: id, Err: err}
}

// unavailable marks a transport error from the backing store.
func unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrBackingStoreUnavailable, err)
}
