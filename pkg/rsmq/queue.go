package rsmq

import (
	"regexp"
	"time"
)

const (
	MaxQueueNameLength = 160

	// MaxTimeout bounds both the visibility timeout and the delay.
	MaxTimeout = 9999999 * time.Second

	// UnlimitedMaxSize disables the payload size check for a queue.
	UnlimitedMaxSize = -1
	MinMaxSize       = 1024
	MaxMaxSize       = 65536
)

var queueNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// QueueConfig holds the per-queue defaults applied by send and receive.
type QueueConfig struct {
	VisibilityTimeout time.Duration
	Delay             time.Duration
	MaxSize           int // bytes, or UnlimitedMaxSize
}

// DefaultQueueConfig returns a 30s visibility timeout, no delay and a 64KiB
// payload limit.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		VisibilityTimeout: 30 * time.Second,
		Delay:             0,
		MaxSize:           MaxMaxSize,
	}
}

// Validate checks every field against its documented range.
func (c QueueConfig) Validate() error {
	if err := validateDuration("visibility_timeout", c.VisibilityTimeout); err != nil {
		return err
	}
	if err := validateDuration("delay", c.Delay); err != nil {
		return err
	}
	return validateMaxSize(c.MaxSize)
}

// Queue is the registry entry for a named queue.
type Queue struct {
	Name string
	QueueConfig
	Created  time.Time
	Modified time.Time
}

// QueueAttributes is a Queue plus counters computed at read time.
type QueueAttributes struct {
	Queue
	TotalReceived  int64 // successful claims, all time
	TotalSent      int64 // messages sent, all time
	Messages       int64 // messages currently stored
	HiddenMessages int64 // stored messages with visible_at in the future
}

// QueueAttributesUpdate is a partial QueueConfig. Nil fields are left as is.
type QueueAttributesUpdate struct {
	VisibilityTimeout *time.Duration
	Delay             *time.Duration
	MaxSize           *int
}

func (u QueueAttributesUpdate) empty() bool {
	return u.VisibilityTimeout == nil && u.Delay == nil && u.MaxSize == nil
}

func (u QueueAttributesUpdate) apply(c QueueConfig) QueueConfig {
	if u.VisibilityTimeout != nil {
		c.VisibilityTimeout = *u.VisibilityTimeout
	}
	if u.Delay != nil {
		c.Delay = *u.Delay
	}
	if u.MaxSize != nil {
		c.MaxSize = *u.MaxSize
	}
	return c
}

func validateQueueName(name string) error {
	if name == "" || len(name) > MaxQueueNameLength {
		return &InvalidParameterError{Field: "name", Value: name, Reason: "must be 1-160 characters"}
	}
	if !queueNamePattern.MatchString(name) {
		return &InvalidParameterError{Field: "name", Value: name, Reason: "allowed characters are A-Z a-z 0-9 _ -"}
	}
	return nil
}

func validateDuration(field string, d time.Duration) error {
	if d < 0 || d > MaxTimeout {
		return &InvalidParameterError{Field: field, Value: d, Reason: "must be between 0 and 9999999 seconds"}
	}
	return nil
}

func validateMaxSize(n int) error {
	if n == UnlimitedMaxSize {
		return nil
	}
	if n < MinMaxSize || n > MaxMaxSize {
		return &InvalidParameterError{Field: "max_size", Value: n, Reason: "must be -1 or between 1024 and 65536"}
	}
	return nil
}
