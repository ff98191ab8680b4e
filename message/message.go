// Package message exposes the generic Message type, used to represent
// a message in a system (e.g. Event, Command, etc.).
package message

// Message is a Message payload.
//
// Each payload should have a unique name identifier, that can be used
// to uniquely route a message to its type.
type Message interface {
	Name() string
}

// Metadata contains some data related to a Message that are not functional
// for the Message itself, but instead functioning as supporting information
// to provide additional context.
type Metadata map[string]string

// Get returns the value addressed by the specified key, or an empty string
// if the key is not present.
func (m Metadata) Get(key string) string {
	return m[key]
}

// With returns a new Metadata map holding the additional key-value pair.
//
// The receiver map is copied, never mutated, so that derived messages
// are always new values.
func (m Metadata) With(key, value string) Metadata {
	next := make(Metadata, len(m)+1)

	for k, v := range m {
		next[k] = v
	}

	next[key] = value

	return next
}

// Merge returns a new Metadata map combining the receiver with the other
// map provided in input.
//
// Values in the other map take precedence over the ones in the receiver.
func (m Metadata) Merge(other Metadata) Metadata {
	if m == nil {
		return other
	}

	next := make(Metadata, len(m)+len(other))

	for k, v := range m {
		next[k] = v
	}

	for k, v := range other {
		next[k] = v
	}

	return next
}

// GenericEnvelope is an Envelope type that can be used when the concrete
// Message type in the Envelope is not of interest.
type GenericEnvelope Envelope[Message]

// Envelope bundles a Message to be exchanged with optional Metadata support.
type Envelope[T Message] struct {
	Message  T
	Metadata Metadata
}

// ToGenericEnvelope maps the Envelope instance into a GenericEnvelope one.
func (e Envelope[T]) ToGenericEnvelope() GenericEnvelope {
	return GenericEnvelope{
		Message:  e.Message,
		Metadata: e.Metadata,
	}
}
