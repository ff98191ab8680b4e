package serde

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/eventfold/go-eventfold/message"
)

// Registry is a Serde over message.Message values that serializes and
// deserializes the JSON representation of the registered payload types.
//
// Durable Event Stores use it to decode rows back into their concrete
// Domain Event types, routed by the payload's Name() identifier.
//
// Given the current limitation of Go with generics, the only way to provide
// type information for deserialization is to use interfaces and reflection.
type Registry struct {
	mx              sync.RWMutex
	eventNameToType map[string]reflect.Type
	eventTypeToName map[reflect.Type]string
}

// NewRegistry creates a new, empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		eventNameToType: make(map[string]reflect.Type),
		eventTypeToName: make(map[reflect.Type]string),
	}
}

// Register adds the type information to this registry for all the provided
// payload types.
//
// An error is returned if any of the provided payloads is nil, or if two
// different payload types with the same Name() identifier have been provided.
func (r *Registry) Register(payloads ...message.Message) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	for _, payload := range payloads {
		if payload == nil {
			return fmt.Errorf("serde.Registry: expected payload type, nil was provided instead")
		}

		payloadName := payload.Name()
		payloadType := reflect.TypeOf(payload)

		if registeredType, ok := r.eventNameToType[payloadName]; ok {
			if registeredType == payloadType {
				continue
			}

			return fmt.Errorf(
				"serde.Registry: payload '%s' has been already registered with a different type",
				payloadName,
			)
		}

		r.eventNameToType[payloadName] = payloadType
		r.eventTypeToName[payloadType] = payloadName
	}

	return nil
}

// Serialize serializes a Domain Event payload using its JSON representation.
func (r *Registry) Serialize(payload message.Message) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, SerializationError{Op: "serialize", Err: err}
	}

	return data, nil
}

// Deserialize attempts to deserialize a raw message with the type referenced
// by the supplied payload type identifier.
func (r *Registry) Deserialize(payloadName string, data []byte) (message.Message, error) {
	r.mx.RLock()
	payloadType, ok := r.eventNameToType[payloadName]
	r.mx.RUnlock()

	if !ok {
		return nil, SerializationError{
			Op:  "deserialize",
			Err: fmt.Errorf("received unregistered payload, '%s'", payloadName),
		}
	}

	vp := reflect.New(payloadType)
	if err := json.Unmarshal(data, vp.Interface()); err != nil {
		return nil, SerializationError{Op: "deserialize", Err: err}
	}

	return vp.Elem().Interface().(message.Message), nil
}
