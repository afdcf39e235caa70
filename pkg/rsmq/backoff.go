package rsmq

import (
	"math/rand/v2"
	"time"
)

// BackoffConfig controls how long a failed message stays hidden before its
// next delivery.
type BackoffConfig struct {
	Base   time.Duration
	Max    time.Duration
	Jitter bool // add a random value in [0, Base)
}

// BackoffFromWorker converts the worker's millisecond settings.
func BackoffFromWorker(w WorkerConfig) BackoffConfig {
	return BackoffConfig{
		Base:   time.Duration(w.BaseDelayMs) * time.Millisecond,
		Max:    time.Duration(w.MaxDelayMs) * time.Millisecond,
		Jitter: w.Jitter,
	}
}

// ComputeDelay returns min(Base * 2^(receiveCount-1) + jitter, Max).
// receiveCount <= 0 is treated as 1. The result never exceeds MaxTimeout so
// it can be passed straight to ChangeMessageVisibility.
func ComputeDelay(receiveCount int64, cfg BackoffConfig) time.Duration {
	if receiveCount <= 0 {
		receiveCount = 1
	}

	limit := cfg.Max
	if limit <= 0 || limit > MaxTimeout {
		limit = MaxTimeout
	}

	delay := cfg.Base
	for i := int64(1); i < receiveCount && delay < limit; i++ {
		delay *= 2
	}

	if cfg.Jitter && cfg.Base > 0 {
		delay += time.Duration(rand.Int64N(int64(cfg.Base)))
	}

	if delay > limit {
		delay = limit
	}
	return delay
}
