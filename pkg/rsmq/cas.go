package rsmq

import (
	"context"
	"errors"
)

// errConflict signals a lost optimistic race: the state read before the
// conditional write changed underneath it.
var errConflict = errors.New("rsmq: optimistic update conflict")

// retryOnConflict runs fn until it returns something other than errConflict,
// allowing at most maxRetries retries after the first attempt. Any other
// error, including transport failures, is returned immediately. onRetry, if
// set, is called with the 1-based retry number before each retry.
func retryOnConflict(ctx context.Context, maxRetries int, onRetry func(retry int), fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if !errors.Is(err, errConflict) {
			return err
		}
		if attempt >= maxRetries {
			return ErrConcurrentModificationRetryExhausted
		}
		if err := ctx.Err(); err != nil {
			return unavailable(err)
		}
		if onRetry != nil {
			onRetry(attempt + 1)
		}
	}
}
