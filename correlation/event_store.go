package correlation

import (
	"context"

	"github.com/google/uuid"

	"github.com/eventfold/go-eventfold/event"
	"github.com/eventfold/go-eventfold/version"
)

// Generator produces unique identifiers for events and correlations.
type Generator func() string

// DefaultGenerator produces uuid-based identifiers.
var DefaultGenerator Generator = uuid.NewString

// EventStoreWrapper is an event.Store decorator that stamps every appended
// Domain Event with identity and trace linkage Metadata:
// Event-Id, Correlation-Id and Causation-Id.
//
// The correlation and causation ids are taken from the context, when set
// through WithCorrelationID and WithCausationID. When the context carries
// neither, a fresh id is generated and used for both, starting a new trace.
type EventStoreWrapper struct {
	event.Store

	generator Generator
}

// WrapEventStore decorates the provided event.Store with events correlation.
//
// A nil Generator falls back to DefaultGenerator.
func WrapEventStore(store event.Store, generator Generator) EventStoreWrapper {
	if generator == nil {
		generator = DefaultGenerator
	}

	return EventStoreWrapper{
		Store:     store,
		generator: generator,
	}
}

// Append stamps the provided events with correlation Metadata, then delegates
// to the wrapped event.Store.
//
// Events that already carry an Event-Id keep it untouched.
func (es EventStoreWrapper) Append(
	ctx context.Context,
	id event.StreamID,
	expected version.Check,
	events ...event.Envelope,
) (version.Version, error) {
	causeID := es.generator()

	// Use the correlation id from the context. If the context doesn't
	// provide one, this append starts a new trace.
	correlationID, ok := CorrelationID(ctx)
	if !ok {
		correlationID = causeID
	}

	causationID, ok := CausationID(ctx)
	if !ok {
		causationID = causeID
	}

	enriched := make([]event.Envelope, 0, len(events))

	for _, evt := range events {
		if evt.ID() == "" {
			evt.Metadata = evt.Metadata.With(event.IDKey, es.generator())
		}

		enriched = append(enriched, evt.WithCorrelation(correlationID, causationID))
	}

	return es.Store.Append(ctx, id, expected, enriched...)
}
