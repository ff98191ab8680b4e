// Package event contains the Domain Event abstractions and the Event Store
// interfaces used to durably record and replay them.
package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/eventfold/go-eventfold/message"
	"github.com/eventfold/go-eventfold/version"
)

// Event is a Message representing some Domain information that has happened
// in the past, which is of vital information to the Domain itself.
//
// Event type names should be phrased in the past tense, to enforce the notion
// of "information happened in the past".
type Event message.Message

// Well-known Metadata keys attached to Event Envelopes.
//
// Identity and trace linkage travel in the Envelope Metadata, so that the
// Event payload stays a pure Domain value.
const (
	IDKey            = "Event-Id"
	RecordedAtKey    = "Recorded-At"
	CorrelationIDKey = "Correlation-Id"
	CausationIDKey   = "Causation-Id"
	TopicKey         = "Topic"
)

// Envelope bundles a Domain Event with its Metadata.
type Envelope message.GenericEnvelope

// ToEnvelope wraps the provided Domain Event into an Envelope, assigning
// a unique Event id and recording timestamp if not already present.
func ToEnvelope(evt Event) Envelope {
	return Envelope{Message: evt}.init()
}

func (e Envelope) init() Envelope {
	if e.Metadata.Get(IDKey) == "" {
		e.Metadata = e.Metadata.With(IDKey, uuid.NewString())
	}

	if e.Metadata.Get(RecordedAtKey) == "" {
		e.Metadata = e.Metadata.With(RecordedAtKey, time.Now().Format(time.RFC3339Nano))
	}

	return e
}

// ID returns the unique Event identifier assigned to this Envelope, if any.
func (e Envelope) ID() string { return e.Metadata.Get(IDKey) }

// RecordedAt returns the creation timestamp of the Envelope, if any.
//
// The zero time.Time value is returned when the timestamp is missing
// or malformed.
func (e Envelope) RecordedAt() time.Time {
	t, err := time.Parse(time.RFC3339Nano, e.Metadata.Get(RecordedAtKey))
	if err != nil {
		return time.Time{}
	}

	return t
}

// Topic returns the hierarchical routing topic of the Envelope, if any.
func (e Envelope) Topic() string { return e.Metadata.Get(TopicKey) }

// CorrelationID returns the correlation id of the Envelope, if any.
func (e Envelope) CorrelationID() string { return e.Metadata.Get(CorrelationIDKey) }

// CausationID returns the causation id of the Envelope, if any.
func (e Envelope) CausationID() string { return e.Metadata.Get(CausationIDKey) }

// WithTopic returns a new Envelope with the specified routing topic set,
// leaving the original Envelope untouched.
func (e Envelope) WithTopic(topic string) Envelope {
	e.Metadata = e.Metadata.With(TopicKey, topic)
	return e
}

// WithCorrelation returns a new Envelope with the specified correlation
// and causation ids set, leaving the original Envelope untouched.
func (e Envelope) WithCorrelation(correlationID, causationID string) Envelope {
	e.Metadata = e.Metadata.
		With(CorrelationIDKey, correlationID).
		With(CausationIDKey, causationID)

	return e
}

// StreamID represents the unique identifier for an Event Stream.
type StreamID struct {
	// Type is the type, or category, of the Event Stream to which this
	// Event belongs. Usually, this is the name of the Aggregate type.
	Type string

	// Name is the name of the Event Stream to which this Event belongs.
	// Usually, this is the string representation of the Aggregate id.
	Name string
}

func (id StreamID) String() string {
	return id.Type + "/" + id.Name
}

// Persisted represents a Domain Event that has been persisted into the Event Store.
type Persisted struct {
	Envelope

	StreamID StreamID
	Version  version.Version
}
