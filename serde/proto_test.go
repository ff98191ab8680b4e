package serde_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/eventfold/go-eventfold/serde"
)

func TestNewProto(t *testing.T) {
	protoSerde := serde.NewProto(func() *structpb.Struct { return &structpb.Struct{} })

	src, err := structpb.NewStruct(map[string]any{
		"holder":  "John Ross",
		"balance": 250,
	})
	require.NoError(t, err)

	data, err := protoSerde.Serialize(src)
	require.NoError(t, err)

	got, err := protoSerde.Deserialize(data)
	require.NoError(t, err)

	assert.True(t, proto.Equal(src, got))
}

func TestNewProtoJSON(t *testing.T) {
	protoSerde := serde.NewProtoJSON(func() *structpb.Struct { return &structpb.Struct{} })

	src, err := structpb.NewStruct(map[string]any{
		"holder":  "John Ross",
		"balance": 250,
	})
	require.NoError(t, err)

	data, err := protoSerde.Serialize(src)
	require.NoError(t, err)
	assert.JSONEq(t, `{"holder": "John Ross", "balance": 250}`, string(data))

	got, err := protoSerde.Deserialize(data)
	require.NoError(t, err)

	assert.True(t, proto.Equal(src, got))
}
