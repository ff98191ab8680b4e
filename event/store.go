package event

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eventfold/go-eventfold/version"
)

// Stream represents a stream of persisted Domain Events coming from some
// stream-able source of data, like an Event Store.
type Stream = chan Persisted

// StreamWrite provides write-only access to an event.Stream object.
type StreamWrite chan<- Persisted

// StreamRead provides read-only access to an event.Stream object.
type StreamRead <-chan Persisted

// SliceToStream converts a slice of event.Persisted domain events to an
// event.Stream type.
//
// The channel returned by the function contains all the original slice
// elements and is already closed.
func SliceToStream(events []Persisted) Stream {
	ch := make(chan Persisted, len(events))
	defer close(ch)

	for _, event := range events {
		ch <- event
	}

	return ch
}

// StreamToSlice synchronously exhausts an EventStream to an event.Persisted slice,
// and returns an error if the EventStream origin, passed here as a closure,
// fails with an error.
func StreamToSlice(ctx context.Context, f func(ctx context.Context, stream StreamWrite) error) ([]Persisted, error) {
	ch := make(chan Persisted, 1)
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error { return f(ctx, ch) })

	var events []Persisted
	for event := range ch {
		events = append(events, event)
	}

	return events, group.Wait()
}

// Streamer is an event.Store trait used to open a specific Event Stream and
// stream it back in the application.
type Streamer interface {
	Stream(ctx context.Context, stream StreamWrite, id StreamID, selector version.Selector) error
}

// TypeStreamer is an event.Store trait used to stream all committed Domain
// Events of a given type recorded at or after a point in time.
//
// The resulting stream is finite, bounded by the store content at call time.
// It is meant for read-model rebuilds, not live tailing.
type TypeStreamer interface {
	StreamByType(ctx context.Context, stream StreamWrite, eventType string, since time.Time) error
}

// Appender is an event.Store trait used to append new Domain Events in the Event Stream.
//
// The version.Check provided is compared atomically against the current
// Event Stream version: on mismatch, version.ConflictError is returned and
// nothing is written.
type Appender interface {
	Append(ctx context.Context, id StreamID, expected version.Check, events ...Envelope) (version.Version, error)
}

// Store represents an Event Store, a stateful data source where Domain Events
// can be safely stored, and easily replayed.
//
// Event Streams are append-only: no update or delete operations exist.
type Store interface {
	Appender
	Streamer
	TypeStreamer
}

// FusedStore is a convenience type to fuse multiple Event Store traits
// where you might need to extend the functionality of the Store only partially.
//
// E.g. You might want to extend the functionality of the Append() method,
// but keep the Streamer methods the same.
type FusedStore struct {
	Appender
	Streamer
	TypeStreamer
}

// StoreUnavailableError is returned by durable Event Store implementations
// when the storage backend cannot be reached.
//
// Operations fail closed with no partial writes; callers may retry
// with backoff.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (err StoreUnavailableError) Error() string {
	return fmt.Sprintf("event: store unavailable during %s, %v", err.Op, err.Err)
}

func (err StoreUnavailableError) Unwrap() error { return err.Err }
