package correlation_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventfold/go-eventfold/correlation"
	"github.com/eventfold/go-eventfold/event"
	"github.com/eventfold/go-eventfold/version"
)

type orderShipped struct {
	OrderID string
}

func (orderShipped) Name() string { return "order_shipped" }

func TestEventStoreWrapper(t *testing.T) {
	var counter int

	generator := func() string {
		counter++
		return fmt.Sprintf("test-id-%d", counter)
	}

	streamID := event.StreamID{Type: "Order", Name: "order-1"}

	t.Run("without a pre-set correlation, a new trace is started", func(t *testing.T) {
		store := correlation.WrapEventStore(event.NewInMemoryStore(), generator)

		_, err := store.Append(
			context.Background(),
			streamID,
			version.CheckExact(0),
			event.Envelope{Message: orderShipped{OrderID: "order-1"}},
		)
		require.NoError(t, err)

		events, err := event.StreamToSlice(context.Background(), func(ctx context.Context, stream event.StreamWrite) error {
			return store.Stream(ctx, stream, streamID, version.SelectFromBeginning)
		})
		require.NoError(t, err)
		require.Len(t, events, 1)

		evt := events[0].Envelope
		assert.NotEmpty(t, evt.ID())
		assert.NotEmpty(t, evt.CorrelationID())
		assert.Equal(t, evt.CorrelationID(), evt.CausationID())
	})

	t.Run("correlation and causation ids from the context are used", func(t *testing.T) {
		store := correlation.WrapEventStore(event.NewInMemoryStore(), generator)

		ctx := correlation.WithCorrelationID(context.Background(), "trace-A")
		ctx = correlation.WithCausationID(ctx, "command-B")

		_, err := store.Append(
			ctx,
			streamID,
			version.CheckExact(0),
			event.Envelope{Message: orderShipped{OrderID: "order-1"}},
		)
		require.NoError(t, err)

		events, err := event.StreamToSlice(context.Background(), func(ctx context.Context, stream event.StreamWrite) error {
			return store.Stream(ctx, stream, streamID, version.SelectFromBeginning)
		})
		require.NoError(t, err)
		require.Len(t, events, 1)

		evt := events[0].Envelope
		assert.Equal(t, "trace-A", evt.CorrelationID())
		assert.Equal(t, "command-B", evt.CausationID())
	})

	t.Run("pre-assigned event ids are left untouched", func(t *testing.T) {
		store := correlation.WrapEventStore(event.NewInMemoryStore(), generator)

		_, err := store.Append(
			context.Background(),
			streamID,
			version.CheckExact(0),
			event.ToEnvelope(orderShipped{OrderID: "order-1"}),
		)
		require.NoError(t, err)

		events, err := event.StreamToSlice(context.Background(), func(ctx context.Context, stream event.StreamWrite) error {
			return store.Stream(ctx, stream, streamID, version.SelectFromBeginning)
		})
		require.NoError(t, err)
		require.Len(t, events, 1)

		assert.NotContains(t, events[0].Envelope.ID(), "test-id")
	})
}
