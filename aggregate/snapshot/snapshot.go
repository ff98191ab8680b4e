// Package snapshot provides support for Aggregate Root snapshots, useful
// where the Event Streams of your Aggregate Roots are expected to grow
// considerably in size.
//
// Snapshots are used by the Event-sourced Aggregate Repository as an
// optimization technique to bound the state rehydration cost, by saving
// the state of the Aggregate Root at a particular version in a durable store
// and replaying only the events recorded afterwards.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/eventfold/go-eventfold/event"
	"github.com/eventfold/go-eventfold/version"
)

// ErrNotFound is returned by a snapshot.Getter when no snapshot
// has been recorded for the requested Event Stream.
var ErrNotFound = fmt.Errorf("snapshot: entry not found")

// Snapshot represents the serialized state of an Aggregate Root
// at a specific version.
//
// Later snapshots supersede earlier ones; a Snapshot value is never mutated.
type Snapshot struct {
	Version version.Version
	State   []byte
	TakenAt time.Time
}

// Recorder is used to record Snapshots to a durable store.
type Recorder interface {
	Record(ctx context.Context, id event.StreamID, v version.Version, state []byte) error
}

// Getter is used to retrieve the most recent Snapshot from a durable store.
type Getter interface {
	Get(ctx context.Context, id event.StreamID) (Snapshot, error)
}

// Store is the interface implemented by Snapshot storage backends.
type Store interface {
	Recorder
	Getter
}
