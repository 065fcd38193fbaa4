// Package backoff retries operations with growing delays between attempts.
package backoff

import (
	"context"
	"fmt"
	"time"

	"github.com/wb-go/wbf/retry"
)

// Do calls fn at most s.Attempts times, waiting s.Delay before the second attempt
// and multiplying the wait by s.Backoff after each one. It never waits after the
// last attempt. Retrying stops early when retryable reports false for an error
// or when ctx is done; a nil retryable retries every error.
func Do(ctx context.Context, s retry.Strategy, retryable func(error) bool, fn func(ctx context.Context) error) error {
	attempts := s.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := s.Delay

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			if err != nil {
				return fmt.Errorf("%w (last error: %v)", cerr, err)
			}
			return cerr
		}

		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts || (retryable != nil && !retryable(err)) {
			return err
		}

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
			case <-timer.C:
			}
		}

		if s.Backoff > 1 {
			delay = time.Duration(float64(delay) * s.Backoff)
		}
	}

	return err
}
