package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/eventfold/go-eventfold/event"
)

// DefaultMaxConcurrency is the intra-tier concurrency limit used by
// PublishAsync when not overridden through WithMaxConcurrency.
const DefaultMaxConcurrency = 8

// PublishOption configures a single PublishAsync call.
type PublishOption func(*publishConfig)

type publishConfig struct {
	maxConcurrency int64
	timeout        time.Duration
}

// WithMaxConcurrency bounds how many handlers of the same priority tier
// may execute concurrently. Values below 1 are ignored.
func WithMaxConcurrency(n int64) PublishOption {
	return func(cfg *publishConfig) {
		if n >= 1 {
			cfg.maxConcurrency = n
		}
	}
}

// WithTimeout bounds the overall duration of the asynchronous dispatch.
// On expiry, outstanding handler work is cancelled cooperatively through
// the handler context.
func WithTimeout(d time.Duration) PublishOption {
	return func(cfg *publishConfig) {
		cfg.timeout = d
	}
}

// Async is the handle of an in-flight asynchronous dispatch.
type Async struct {
	done   chan struct{}
	cancel context.CancelFunc
	err    error
}

// Done returns a channel closed once the dispatch has completed, failed
// or timed out.
func (a *Async) Done() <-chan struct{} { return a.done }

// Wait blocks until the dispatch completes and returns its aggregated
// outcome, with the same semantics as Bus.Publish. A timed-out dispatch
// includes context.DeadlineExceeded in the aggregate.
func (a *Async) Wait() error {
	<-a.done
	return a.err
}

// Cancel requests cooperative cancellation of the outstanding handler work.
func (a *Async) Cancel() { a.cancel() }

// PublishAsync delivers the provided event to all matching subscriptions
// without blocking the caller.
//
// Priority tiers are processed strictly in order: a tier starts only after
// every handler of the previous tier has completed. Handlers within one tier
// may execute concurrently, gated by the configured maximum concurrency.
//
// The returned Async handle resolves once all tiers complete, or once the
// configured timeout elapses; on timeout, pending handler work is cancelled
// cooperatively. Handlers must tolerate mid-flight cancellation, since the
// durable write they react to has already been committed.
func (b *Bus) PublishAsync(ctx context.Context, evt event.Persisted, opts ...PublishOption) *Async {
	cfg := publishConfig{maxConcurrency: DefaultMaxConcurrency}

	for _, opt := range opts {
		opt(&cfg)
	}

	var cancel context.CancelFunc
	if cfg.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	a := &Async{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	// Snapshot the matching subscriptions before returning control, so that
	// the dispatch set is fixed at publish time.
	tiers := b.matching(evt)

	go func() {
		defer close(a.done)
		defer cancel()

		a.err = b.dispatchTiers(ctx, tiers, evt, cfg.maxConcurrency)
	}()

	return a
}

func (b *Bus) dispatchTiers(
	ctx context.Context,
	tiers [numPriorities][]*Subscription,
	evt event.Persisted,
	maxConcurrency int64,
) error {
	sem := semaphore.NewWeighted(maxConcurrency)

	var (
		mx       sync.Mutex
		failures []error
	)

	record := func(sub *Subscription, err error) {
		handlerErr := b.reportFailure(sub, evt, err)

		mx.Lock()
		defer mx.Unlock()

		failures = append(failures, handlerErr)
	}

	for _, tier := range tiers {
		var wg sync.WaitGroup

		for _, sub := range tier {
			if err := sem.Acquire(ctx, 1); err != nil {
				record(sub, fmt.Errorf("cancelled before execution, %w", err))
				continue
			}

			wg.Add(1)

			go func(sub *Subscription) {
				defer wg.Done()
				defer sem.Release(1)

				if err := b.handle(ctx, sub, evt); err != nil {
					record(sub, err)
				}
			}(sub)
		}

		// Tier barrier: the next priority tier must not start until every
		// handler of this tier has completed or failed.
		wg.Wait()
	}

	if err := ctx.Err(); err != nil {
		failures = append(failures, fmt.Errorf("bus: asynchronous dispatch interrupted, %w", err))
	}

	return errors.Join(failures...)
}
