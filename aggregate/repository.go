package aggregate

import (
	"context"
	"fmt"

	"github.com/eventfold/go-eventfold/event"
	"github.com/eventfold/go-eventfold/version"
)

// ErrRootNotFound is returned when the Aggregate Root queried is not found.
var ErrRootNotFound = fmt.Errorf("aggregate: root not found")

// Getter is an Aggregate Repository trait used to get an Aggregate Root
// from a durable store.
type Getter[I ID, T Root[I]] interface {
	Get(ctx context.Context, id I) (T, error)
}

// Saver is an Aggregate Repository trait used to save an Aggregate Root
// to a durable store.
type Saver[I ID, T Root[I]] interface {
	Save(ctx context.Context, root T) error
}

// Repository is the interface used to get Aggregate Roots from and save them
// to some form of storage, depending on the implementation.
type Repository[I ID, T Root[I]] interface {
	Getter[I, T]
	Saver[I, T]
}

// FusedRepository is a convenience type to fuse together
// different implementations for the Getter and Saver Repository traits.
type FusedRepository[I ID, T Root[I]] struct {
	Getter[I, T]
	Saver[I, T]
}

// ReplayError is returned when a reducer fails while rehydrating an
// Aggregate Root from its Event Stream.
//
// The failure is fatal to that load: skipping events silently would break
// replay determinism. The error carries the Event Stream id and the version
// of the offending event.
type ReplayError struct {
	StreamID event.StreamID
	Version  version.Version
	Err      error
}

func (err ReplayError) Error() string {
	return fmt.Sprintf(
		"aggregate: failed to replay event, stream: %s, version: %d, %v",
		err.StreamID, err.Version, err.Err,
	)
}

func (err ReplayError) Unwrap() error { return err.Err }

// RehydrateFromEvents rehydrates an Aggregate Root from a read-only Event Stream.
func RehydrateFromEvents[I ID](root Root[I], eventStream event.StreamRead) error {
	for evt := range eventStream {
		if err := root.Apply(evt.Message); err != nil {
			return ReplayError{
				StreamID: evt.StreamID,
				Version:  evt.Version,
				Err:      err,
			}
		}

		root.setVersion(evt.Version)
	}

	return nil
}
