package serde

import "fmt"

// SerializationError is returned when a payload cannot be encoded to or
// decoded from its storage representation.
//
// A single undecodable event surfaces this error at append or replay time;
// it must never corrupt state derived from other Event Streams.
type SerializationError struct {
	Op  string
	Err error
}

func (err SerializationError) Error() string {
	return fmt.Sprintf("serde: failed to %s payload, %v", err.Op, err.Err)
}

func (err SerializationError) Unwrap() error { return err.Err }
