package message_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eventfold/go-eventfold/message"
)

func TestMetadataWith(t *testing.T) {
	var m message.Metadata

	first := m.With("key", "value")
	assert.Equal(t, "value", first.Get("key"))

	second := first.With("key", "other")
	assert.Equal(t, "other", second.Get("key"))

	// The source map is never mutated.
	assert.Equal(t, "value", first.Get("key"))
	assert.Empty(t, m.Get("key"))
}

func TestMetadataMerge(t *testing.T) {
	base := message.Metadata{"a": "1", "b": "2"}
	merged := base.Merge(message.Metadata{"b": "3", "c": "4"})

	assert.Equal(t, message.Metadata{"a": "1", "b": "3", "c": "4"}, merged)
	assert.Equal(t, message.Metadata{"a": "1", "b": "2"}, base)
}

type stringMessage string

func (m stringMessage) Name() string { return string(m) }

func TestToGenericEnvelope(t *testing.T) {
	envelope := message.Envelope[stringMessage]{
		Message:  stringMessage("hello"),
		Metadata: message.Metadata{"key": "value"},
	}

	generic := envelope.ToGenericEnvelope()

	assert.Equal(t, "hello", generic.Message.Name())
	assert.Equal(t, envelope.Metadata, generic.Metadata)
}
