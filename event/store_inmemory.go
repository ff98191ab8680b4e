package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eventfold/go-eventfold/version"
)

// Interface implementation assertion.
var _ Store = new(InMemoryStore)

// InMemoryStore is a thread-safe, in-memory event.Store implementation.
type InMemoryStore struct {
	mx      sync.RWMutex
	streams map[StreamID][]Persisted
	log     []Persisted
}

// NewInMemoryStore creates a new event.InMemoryStore instance.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		streams: make(map[StreamID][]Persisted),
	}
}

func contextErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("event.InMemoryStore: context error, %w", err)
	}

	return nil
}

// Append inserts the specified Domain Events into the Event Stream specified
// by the current instance, returning the new version of the Event Stream.
//
// `version.CheckExact` can be specified to enable an Optimistic Concurrency check
// on append, by using the expected version of the Event Stream prior
// to appending the new Events.
//
// Alternatively, `version.Any` can be used if no Optimistic Concurrency check
// should be carried out.
//
// An instance of `version.ConflictError` will be returned if the optimistic locking
// version check fails against the current version of the Event Stream.
func (es *InMemoryStore) Append(
	_ context.Context,
	id StreamID,
	expected version.Check,
	events ...Envelope,
) (version.Version, error) {
	es.mx.Lock()
	defer es.mx.Unlock()

	currentVersion := version.Version(len(es.streams[id]))

	if v, ok := expected.(version.CheckExact); ok && currentVersion != version.Version(v) {
		return 0, fmt.Errorf("event.InMemoryStore: failed to append events, %w", version.ConflictError{
			Expected: version.Version(v),
			Actual:   currentVersion,
		})
	}

	for i, evt := range events {
		persisted := Persisted{
			Envelope: evt.init(),
			StreamID: id,
			Version:  currentVersion + version.Version(i) + 1,
		}

		es.streams[id] = append(es.streams[id], persisted)
		es.log = append(es.log, persisted)
	}

	return version.Version(len(es.streams[id])), nil
}

// Stream streams committed events in the Event Store onto the provided EventStream,
// from the specified version in `selector`, based on the provided StreamID.
//
// Note: this call is synchronous, and will return when all the Events
// have been successfully written to the provided EventStream, or when
// the context has been canceled.
func (es *InMemoryStore) Stream(
	ctx context.Context,
	eventStream StreamWrite,
	id StreamID,
	selector version.Selector,
) error {
	defer close(eventStream)

	es.mx.RLock()
	events := make([]Persisted, 0, len(es.streams[id]))

	for _, evt := range es.streams[id] {
		if evt.Version >= selector.From {
			events = append(events, evt)
		}
	}
	es.mx.RUnlock()

	for _, evt := range events {
		select {
		case eventStream <- evt:
		case <-ctx.Done():
			return contextErr(ctx)
		}
	}

	return nil
}

// StreamByType streams all committed events with the specified type recorded
// at or after the provided timestamp, in commit order.
//
// The stream is bounded by the store content at call time: events appended
// while the caller is still consuming the stream are not included.
func (es *InMemoryStore) StreamByType(
	ctx context.Context,
	eventStream StreamWrite,
	eventType string,
	since time.Time,
) error {
	defer close(eventStream)

	es.mx.RLock()
	events := make([]Persisted, 0, len(es.log))

	for _, evt := range es.log {
		if evt.Message.Name() != eventType {
			continue
		}

		if recordedAt := evt.RecordedAt(); recordedAt.Before(since) {
			continue
		}

		events = append(events, evt)
	}
	es.mx.RUnlock()

	for _, evt := range events {
		select {
		case eventStream <- evt:
		case <-ctx.Done():
			return contextErr(ctx)
		}
	}

	return nil
}
