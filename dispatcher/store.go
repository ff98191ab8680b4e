package dispatcher

import (
	"context"
	"sync"

	"github.com/eventfold/go-eventfold/bus"
	"github.com/eventfold/go-eventfold/event"
	"github.com/eventfold/go-eventfold/logger"
	"github.com/eventfold/go-eventfold/version"
)

// Store is an event.Store decorator that publishes Domain Events to the
// event bus after they have been durably committed to the inner Store.
//
// Append failures publish nothing: the Event Stream is the source of truth,
// and subscribers only ever observe committed events. Handler failures are
// logged but do not fail the Append, which already succeeded.
//
// Decorators that enrich event Metadata, such as correlation.WrapEventStore,
// must wrap this Store rather than sit inside it: published events are the
// envelopes this Store receives, so stamping has to happen before dispatch
// for subscribers to observe the committed representation.
type Store struct {
	event.Store

	publisher   *bus.Bus
	logger      logger.Logger
	async       bool
	publishOpts []bus.PublishOption

	mx       sync.Mutex
	inflight map[*bus.Async]struct{}
}

// StoreOption configures a dispatcher.Store instance.
type StoreOption func(*Store)

// WithStoreLogger sets the logger used to report delivery outcomes.
func WithStoreLogger(l logger.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// WithAsyncPublish makes the Store deliver committed events through
// bus.PublishAsync, decoupling Append latency from handler execution.
//
// In-flight deliveries are tracked, and can be drained through Drain,
// typically on shutdown via dispatcher.Manager.
func WithAsyncPublish(opts ...bus.PublishOption) StoreOption {
	return func(s *Store) {
		s.async = true
		s.publishOpts = opts
	}
}

// NewStore decorates the provided event.Store so that every successful
// Append publishes the newly-committed events to the given bus.
func NewStore(inner event.Store, publisher *bus.Bus, opts ...StoreOption) *Store {
	store := &Store{
		Store:     inner,
		publisher: publisher,
		inflight:  make(map[*bus.Async]struct{}),
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Append delegates to the inner event.Store and, only on durable success,
// publishes the newly-committed events to the bus in recording order.
func (s *Store) Append(
	ctx context.Context,
	id event.StreamID,
	expected version.Check,
	events ...event.Envelope,
) (version.Version, error) {
	newVersion, err := s.Store.Append(ctx, id, expected, events...)
	if err != nil {
		return newVersion, err
	}

	firstVersion := newVersion - version.Version(len(events))

	for i, evt := range events {
		persisted := event.Persisted{
			Envelope: evt,
			StreamID: id,
			Version:  firstVersion + version.Version(i) + 1,
		}

		s.publish(ctx, persisted)
	}

	return newVersion, nil
}

func (s *Store) publish(ctx context.Context, evt event.Persisted) {
	if s.async {
		// Delivery must not be cut short by the lifetime of the request
		// that recorded the event.
		async := s.publisher.PublishAsync(context.WithoutCancel(ctx), evt, s.publishOpts...)
		s.track(async)

		logger.Debug(s.logger, "event published",
			logger.With("event_type", evt.Message.Name()),
			logger.With("stream_id", evt.StreamID.String()),
			logger.With("state", string(StatePublished)),
		)

		return
	}

	if err := s.publisher.Publish(ctx, evt); err != nil {
		logger.Error(s.logger, "event delivery failed for one or more subscribers",
			logger.With("event_type", evt.Message.Name()),
			logger.With("stream_id", evt.StreamID.String()),
			logger.With("state", string(StateFailed)),
			logger.With("error", err),
		)

		return
	}

	logger.Debug(s.logger, "event delivered to all subscribers",
		logger.With("event_type", evt.Message.Name()),
		logger.With("stream_id", evt.StreamID.String()),
		logger.With("state", string(StateDelivered)),
	)
}

func (s *Store) track(async *bus.Async) {
	s.mx.Lock()
	s.inflight[async] = struct{}{}
	s.mx.Unlock()

	go func() {
		<-async.Done()

		if err := async.Wait(); err != nil {
			logger.Error(s.logger, "async event delivery failed for one or more subscribers",
				logger.With("state", string(StateFailed)),
				logger.With("error", err),
			)
		}

		s.mx.Lock()
		delete(s.inflight, async)
		s.mx.Unlock()
	}()
}

// Drain waits for all in-flight async deliveries to complete.
//
// When the context expires first, the remaining deliveries are
// force-cancelled and the context error is returned.
func (s *Store) Drain(ctx context.Context) error {
	s.mx.Lock()
	pending := make([]*bus.Async, 0, len(s.inflight))

	for async := range s.inflight {
		pending = append(pending, async)
	}
	s.mx.Unlock()

	for _, async := range pending {
		select {
		case <-async.Done():
		case <-ctx.Done():
			for _, overrun := range pending {
				overrun.Cancel()
			}

			logger.Error(s.logger, "shutdown expired, force-cancelled in-flight event deliveries",
				logger.With("error", ctx.Err()),
			)

			return ctx.Err()
		}
	}

	return nil
}
