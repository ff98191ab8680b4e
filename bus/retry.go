package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventfold/go-eventfold/event"
)

// WithRetry decorates the provided Handler with bounded, fixed-delay retry.
//
// The base Bus never retries failed handlers; delivery outcomes are terminal
// per subscriber. Wrap the specific handlers that need retry semantics with
// this decorator before subscribing them.
func WithRetry(h Handler, attempts int, delay time.Duration) Handler {
	// Every handler runs at least once, so non-positive attempt counts
	// degrade to a plain undecorated delivery.
	if attempts < 1 {
		attempts = 1
	}

	return HandlerFunc(func(ctx context.Context, evt event.Persisted) error {
		var lastErr error

		for attempt := 1; attempt <= attempts; attempt++ {
			if lastErr = h.Handle(ctx, evt); lastErr == nil {
				return nil
			}

			if attempt == attempts {
				break
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return errors.Join(lastErr, ctx.Err())
			case <-timer.C:
			}
		}

		return fmt.Errorf("bus: handler failed after %d attempts, %w", attempts, lastErr)
	})
}
