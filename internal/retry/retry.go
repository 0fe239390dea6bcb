// Package retry implements a bounded fixed-delay retry policy.
package retry

import (
	"context"
	"time"
)

// Policy bounds how often and how quickly an operation is retried.
type Policy struct {
	// Attempts is the total number of tries, including the first one.
	Attempts int
	// Delay is the fixed pause between consecutive tries.
	Delay time.Duration
}

// DefaultPolicy is the policy used for calls against the Obsidian REST API.
var DefaultPolicy = Policy{Attempts: 3, Delay: 500 * time.Millisecond}

// Do runs fn up to p.Attempts times, pausing p.Delay between tries.
// It stops early when fn succeeds, when retryable returns false for the
// error, or when ctx is cancelled. The last error is returned.
func Do(ctx context.Context, p Policy, retryable func(error) bool, fn func() error) error {
	if p.Attempts < 1 {
		p.Attempts = 1
	}

	var err error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Delay):
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
	}
	return err
}
