package dispatcher_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventfold/go-eventfold/bus"
	"github.com/eventfold/go-eventfold/correlation"
	"github.com/eventfold/go-eventfold/dispatcher"
	"github.com/eventfold/go-eventfold/event"
	"github.com/eventfold/go-eventfold/version"
)

type paymentRequested struct {
	PaymentID string
}

func (paymentRequested) Name() string { return "payment_requested" }

type recorder struct {
	mx     sync.Mutex
	events []event.Persisted
}

func (r *recorder) Handle(_ context.Context, evt event.Persisted) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	r.events = append(r.events, evt)

	return nil
}

func (r *recorder) Events() []event.Persisted {
	r.mx.Lock()
	defer r.mx.Unlock()

	return append([]event.Persisted(nil), r.events...)
}

func TestStorePublishesOnlyCommittedEvents(t *testing.T) {
	ctx := context.Background()
	streamID := event.StreamID{Type: "Payment", Name: "payment-1"}

	eventBus := bus.New()
	handled := new(recorder)

	_, err := eventBus.Subscribe("payment_requested", handled)
	require.NoError(t, err)

	store := dispatcher.NewStore(event.NewInMemoryStore(), eventBus)

	newVersion, err := store.Append(
		ctx, streamID, version.CheckExact(0),
		event.ToEnvelope(paymentRequested{PaymentID: "payment-1"}),
	)
	require.NoError(t, err)
	require.Equal(t, version.Version(1), newVersion)

	events := handled.Events()
	require.Len(t, events, 1)
	assert.Equal(t, streamID, events[0].StreamID)
	assert.Equal(t, version.Version(1), events[0].Version)

	// A conflicting append commits nothing, so nothing must be published.
	_, err = store.Append(
		ctx, streamID, version.CheckExact(0),
		event.ToEnvelope(paymentRequested{PaymentID: "payment-1"}),
	)

	var conflictErr version.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Len(t, handled.Events(), 1)
}

func TestStoreDeliversCommittedRepresentation(t *testing.T) {
	ctx := context.Background()
	streamID := event.StreamID{Type: "Payment", Name: "payment-5"}

	eventBus := bus.New()
	handled := new(recorder)

	_, err := eventBus.Subscribe("payment_requested", handled)
	require.NoError(t, err)

	inner := event.NewInMemoryStore()

	// Metadata-stamping decorators wrap the outbox, so that the envelopes it
	// publishes carry the same identity and trace linkage as the stored rows.
	store := correlation.WrapEventStore(
		dispatcher.NewStore(inner, eventBus),
		nil,
	)

	ctx = correlation.WithCorrelationID(ctx, "trace-1")

	_, err = store.Append(
		ctx, streamID, version.CheckExact(0),
		event.ToEnvelope(paymentRequested{PaymentID: "payment-5"}),
	)
	require.NoError(t, err)

	committed, err := event.StreamToSlice(ctx, func(ctx context.Context, stream event.StreamWrite) error {
		return inner.Stream(ctx, stream, streamID, version.SelectFromBeginning)
	})
	require.NoError(t, err)
	require.Len(t, committed, 1)

	delivered := handled.Events()
	require.Len(t, delivered, 1)

	assert.Equal(t, "trace-1", delivered[0].CorrelationID())
	assert.NotEmpty(t, delivered[0].ID())
	assert.Equal(t, committed[0], delivered[0])
}

func TestStoreHandlerFailuresDoNotFailAppend(t *testing.T) {
	ctx := context.Background()
	streamID := event.StreamID{Type: "Payment", Name: "payment-2"}

	eventBus := bus.New()

	_, err := eventBus.Subscribe("payment_requested", bus.HandlerFunc(
		func(context.Context, event.Persisted) error {
			return errors.New("downstream unavailable")
		},
	))
	require.NoError(t, err)

	store := dispatcher.NewStore(event.NewInMemoryStore(), eventBus)

	// The event is durably committed at this point: the failed delivery
	// is a subscriber problem, not a writer problem.
	newVersion, err := store.Append(
		ctx, streamID, version.CheckExact(0),
		event.ToEnvelope(paymentRequested{PaymentID: "payment-2"}),
	)
	assert.NoError(t, err)
	assert.Equal(t, version.Version(1), newVersion)
}

func TestStoreAsyncPublishAndDrain(t *testing.T) {
	ctx := context.Background()
	streamID := event.StreamID{Type: "Payment", Name: "payment-3"}

	eventBus := bus.New()
	handled := new(recorder)

	release := make(chan struct{})

	_, err := eventBus.Subscribe("payment_requested", bus.HandlerFunc(
		func(ctx context.Context, evt event.Persisted) error {
			select {
			case <-release:
			case <-ctx.Done():
				return ctx.Err()
			}

			return handled.Handle(ctx, evt)
		},
	))
	require.NoError(t, err)

	store := dispatcher.NewStore(event.NewInMemoryStore(), eventBus,
		dispatcher.WithAsyncPublish(),
	)

	_, err = store.Append(
		ctx, streamID, version.CheckExact(0),
		event.ToEnvelope(paymentRequested{PaymentID: "payment-3"}),
	)
	require.NoError(t, err)

	// Append returned while the handler is still blocked.
	assert.Empty(t, handled.Events())

	close(release)
	require.NoError(t, store.Drain(ctx))
	assert.Len(t, handled.Events(), 1)
}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("start activates registrations, stop deactivates them", func(t *testing.T) {
		eventBus := bus.New()
		handled := new(recorder)

		manager := dispatcher.NewManager(eventBus)
		manager.Register("payment_requested", handled)

		store := dispatcher.NewStore(event.NewInMemoryStore(), eventBus)

		require.NoError(t, manager.Start(ctx))

		_, err := store.Append(
			ctx, event.StreamID{Type: "Payment", Name: "payment-4"}, version.CheckExact(0),
			event.ToEnvelope(paymentRequested{PaymentID: "payment-4"}),
		)
		require.NoError(t, err)
		assert.Len(t, handled.Events(), 1)

		require.NoError(t, manager.Stop(ctx))

		_, err = store.Append(
			ctx, event.StreamID{Type: "Payment", Name: "payment-4"}, version.CheckExact(1),
			event.ToEnvelope(paymentRequested{PaymentID: "payment-4"}),
		)
		require.NoError(t, err)
		assert.Len(t, handled.Events(), 1)
	})

	t.Run("invalid registrations roll back the ones already activated", func(t *testing.T) {
		eventBus := bus.New()

		manager := dispatcher.NewManager(eventBus)
		manager.Register("payment_requested", new(recorder))
		manager.Register("", new(recorder))

		err := manager.Start(ctx)

		var configErr bus.ConfigurationError
		require.ErrorAs(t, err, &configErr)

		// The first registration must have been rolled back: an exclusive
		// subscription on the same event type succeeds only on a clean bus.
		_, err = eventBus.Subscribe("payment_requested", new(recorder), bus.WithExclusive())
		assert.NoError(t, err)
	})

	t.Run("stop force-cancels deliveries that overrun the shutdown timeout", func(t *testing.T) {
		eventBus := bus.New()

		_, err := eventBus.Subscribe("payment_requested", bus.HandlerFunc(
			func(ctx context.Context, _ event.Persisted) error {
				<-ctx.Done()
				return ctx.Err()
			},
		))
		require.NoError(t, err)

		store := dispatcher.NewStore(event.NewInMemoryStore(), eventBus,
			dispatcher.WithAsyncPublish(),
		)

		manager := dispatcher.NewManager(eventBus,
			dispatcher.WithShutdownTimeout(20*time.Millisecond),
		)
		manager.Watch(store)

		require.NoError(t, manager.Start(ctx))

		_, err = store.Append(
			ctx, event.StreamID{Type: "Payment", Name: "payment-5"}, version.CheckExact(0),
			event.ToEnvelope(paymentRequested{PaymentID: "payment-5"}),
		)
		require.NoError(t, err)

		err = manager.Stop(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
