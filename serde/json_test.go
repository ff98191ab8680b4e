package serde_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventfold/go-eventfold/serde"
)

type payload struct {
	Kind  string `json:"kind"`
	Value int    `json:"value"`
}

func (payload) Name() string { return "test-payload" }

func TestJSON(t *testing.T) {
	jsonSerde := serde.NewJSON(func() payload { return payload{} })

	expected := payload{Kind: "test", Value: 42}

	data, err := jsonSerde.Serialize(expected)
	require.NoError(t, err)

	got, err := jsonSerde.Deserialize(data)
	require.NoError(t, err)
	assert.Equal(t, expected, got)
}

func TestJSONDeserializeFailure(t *testing.T) {
	jsonSerde := serde.NewJSON(func() payload { return payload{} })

	_, err := jsonSerde.Deserialize([]byte(`{invalid json`))

	var serdeErr serde.SerializationError
	require.ErrorAs(t, err, &serdeErr)
	assert.Equal(t, "deserialize", serdeErr.Op)
}
