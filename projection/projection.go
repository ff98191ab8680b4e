// Package projection provides support for building read-models out of
// committed Domain Events: a catch-up rebuild from the Event Store, and
// live updates through bus subscriptions.
package projection

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eventfold/go-eventfold/bus"
	"github.com/eventfold/go-eventfold/event"
)

// Applier applies committed Domain Events to a read-model.
//
// Appliers should be idempotent where possible: a rebuild followed by a
// live subscription may observe the same event twice around the switchover.
type Applier interface {
	Apply(ctx context.Context, evt event.Persisted) error
}

// ApplierFunc is a functional implementation of the Applier interface.
type ApplierFunc func(ctx context.Context, evt event.Persisted) error

// Apply implements the projection.Applier interface.
func (fn ApplierFunc) Apply(ctx context.Context, evt event.Persisted) error {
	return fn(ctx, evt)
}

// DefaultRebuildBufferSize is the Event Stream buffer size used by Rebuild.
const DefaultRebuildBufferSize = 128

// Rebuild replays all the committed Domain Events of the specified type
// recorded at or after the given point in time, applying each of them to
// the read-model in commit order.
//
// The replayed sequence is bounded by the store content at call time: use a
// bus subscription (see Subscribe) to keep the read-model fresh afterwards.
func Rebuild(
	ctx context.Context,
	streamer event.TypeStreamer,
	applier Applier,
	eventType string,
	since time.Time,
) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eventStream := make(event.Stream, DefaultRebuildBufferSize)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := streamer.StreamByType(ctx, eventStream, eventType, since); err != nil {
			return fmt.Errorf("projection.Rebuild: failed while streaming events, %w", err)
		}

		return nil
	})

	for evt := range eventStream {
		if err := applier.Apply(ctx, evt); err != nil {
			return fmt.Errorf("projection.Rebuild: failed to apply event to read-model, %w", err)
		}
	}

	return group.Wait()
}

// Subscribe registers the Applier on the bus for live updates on all the
// specified event types.
//
// The returned subscriptions can be deactivated through bus.Unsubscribe,
// typically on shutdown.
func Subscribe(
	eventBus *bus.Bus,
	applier Applier,
	eventTypes []string,
	opts ...bus.SubscribeOption,
) ([]*bus.Subscription, error) {
	subscriptions := make([]*bus.Subscription, 0, len(eventTypes))

	handler := bus.HandlerFunc(func(ctx context.Context, evt event.Persisted) error {
		return applier.Apply(ctx, evt)
	})

	for _, eventType := range eventTypes {
		sub, err := eventBus.Subscribe(eventType, handler, opts...)
		if err != nil {
			for _, active := range subscriptions {
				eventBus.Unsubscribe(active)
			}

			return nil, fmt.Errorf("projection.Subscribe: failed to subscribe read-model, %w", err)
		}

		subscriptions = append(subscriptions, sub)
	}

	return subscriptions, nil
}
