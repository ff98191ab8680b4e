package event

import (
	"context"
	"sync"

	"github.com/eventfold/go-eventfold/version"
)

// TrackingStore is an event.Store decorator that records the calls
// performed against the inner Store.
//
// Useful in tests, to assert which writes were committed and which
// portions of an Event Stream were actually replayed.
type TrackingStore struct {
	Store

	mx       sync.Mutex
	recorded []Persisted
	streamed []version.Selector
}

// NewTrackingStore wraps the provided event.Store with call tracking.
func NewTrackingStore(store Store) *TrackingStore {
	return &TrackingStore{Store: store}
}

// Recorded returns the list of events successfully appended through this store.
func (ts *TrackingStore) Recorded() []Persisted {
	ts.mx.Lock()
	defer ts.mx.Unlock()

	return ts.recorded
}

// StreamedSelectors returns the version selectors used on Stream calls.
func (ts *TrackingStore) StreamedSelectors() []version.Selector {
	ts.mx.Lock()
	defer ts.mx.Unlock()

	return ts.streamed
}

// Append delegates to the inner Store and, on success, records the
// newly-persisted events.
func (ts *TrackingStore) Append(
	ctx context.Context,
	id StreamID,
	expected version.Check,
	events ...Envelope,
) (version.Version, error) {
	newVersion, err := ts.Store.Append(ctx, id, expected, events...)
	if err != nil {
		return newVersion, err
	}

	ts.mx.Lock()
	defer ts.mx.Unlock()

	firstVersion := newVersion - version.Version(len(events))

	for i, evt := range events {
		ts.recorded = append(ts.recorded, Persisted{
			Envelope: evt,
			StreamID: id,
			Version:  firstVersion + version.Version(i) + 1,
		})
	}

	return newVersion, nil
}

// Stream delegates to the inner Store, recording the selector used.
func (ts *TrackingStore) Stream(
	ctx context.Context,
	eventStream StreamWrite,
	id StreamID,
	selector version.Selector,
) error {
	ts.mx.Lock()
	ts.streamed = append(ts.streamed, selector)
	ts.mx.Unlock()

	return ts.Store.Stream(ctx, eventStream, id, selector)
}
