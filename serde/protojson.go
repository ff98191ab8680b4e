package serde

import (
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// NewProtoJSONSerializer returns a serializer function where the input data (T)
// gets serialized to Protobuf JSON byte-array.
func NewProtoJSONSerializer[T proto.Message]() SerializerFunc[T, []byte] {
	return func(t T) ([]byte, error) {
		data, err := protojson.Marshal(t)
		if err != nil {
			return nil, SerializationError{Op: "serialize", Err: err}
		}

		return data, nil
	}
}

// NewProtoJSONDeserializer returns a deserializer function where a byte-array
// is deserialized into a destination data type (T) using Protobuf JSON.
//
// A data factory function is required for creating new instances of type `T`
// (especially if pointer semantics is used).
func NewProtoJSONDeserializer[T proto.Message](factory func() T) DeserializerFunc[T, []byte] {
	return func(data []byte) (T, error) {
		var zeroValue T

		model := factory()

		if err := protojson.Unmarshal(data, model); err != nil {
			return zeroValue, SerializationError{Op: "deserialize", Err: err}
		}

		return model, nil
	}
}

// NewProtoJSON returns a new serde instance where some data (`T`) gets
// serialized to and deserialized from Protobuf JSON.
func NewProtoJSON[T proto.Message](factory func() T) Fused[T, []byte] {
	return Fuse(
		NewProtoJSONSerializer[T](),
		NewProtoJSONDeserializer(factory),
	)
}
