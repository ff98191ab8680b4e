package event_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eventfold/go-eventfold/event"
)

func TestToEnvelope(t *testing.T) {
	evt := event.ToEnvelope(event.SuitePayload{Value: 1})

	assert.NotEmpty(t, evt.ID())
	assert.False(t, evt.RecordedAt().IsZero())

	t.Run("existing identity is preserved", func(t *testing.T) {
		again := event.ToEnvelope(evt.Message)
		assert.NotEqual(t, evt.ID(), again.ID())
	})
}

func TestEnvelopeDerivation(t *testing.T) {
	original := event.ToEnvelope(event.SuitePayload{Value: 1})

	derived := original.
		WithTopic("orders.created").
		WithCorrelation("correlation", "causation")

	assert.Equal(t, "orders.created", derived.Topic())
	assert.Equal(t, "correlation", derived.CorrelationID())
	assert.Equal(t, "causation", derived.CausationID())

	// Derived envelopes are new values: the original is untouched.
	assert.Empty(t, original.Topic())
	assert.Empty(t, original.CorrelationID())
	assert.Empty(t, original.CausationID())

	// Identity carries over to the derived copy.
	assert.Equal(t, original.ID(), derived.ID())
}
