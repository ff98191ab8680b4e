package aggregate

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/eventfold/go-eventfold/aggregate/snapshot"
	"github.com/eventfold/go-eventfold/event"
	"github.com/eventfold/go-eventfold/logger"
	"github.com/eventfold/go-eventfold/serde"
	"github.com/eventfold/go-eventfold/version"
)

// EventSourcedRepository provides an aggregate.Repository interface
// implementation that uses an event.Store to load and save the state
// of the Aggregate Root.
//
// When configured with WithSnapshots, loading starts from the latest
// recorded snapshot and replays only the events committed afterwards,
// and saving records new snapshots following the configured Policy.
type EventSourcedRepository[I ID, T Root[I]] struct {
	eventStore event.Store
	typ        Type[I, T]
	logger     logger.Logger

	snapshots     snapshot.Store
	policy        snapshot.Policy
	snapshotSerde serde.Bytes[T]
}

// Option configures an EventSourcedRepository instance.
type Option[I ID, T Root[I]] func(*EventSourcedRepository[I, T])

// WithSnapshots enables snapshot support on the Repository, using the
// provided store for persistence, the Policy to decide the snapshot cadence,
// and the serde to map the Aggregate Root state to its storage format.
func WithSnapshots[I ID, T Root[I]](
	store snapshot.Store,
	policy snapshot.Policy,
	snapshotSerde serde.Bytes[T],
) Option[I, T] {
	return func(repo *EventSourcedRepository[I, T]) {
		repo.snapshots = store
		repo.policy = policy
		repo.snapshotSerde = snapshotSerde
	}
}

// WithLogger sets the logger used to report non-fatal snapshot failures.
func WithLogger[I ID, T Root[I]](l logger.Logger) Option[I, T] {
	return func(repo *EventSourcedRepository[I, T]) {
		repo.logger = l
	}
}

// NewEventSourcedRepository returns a new EventSourcedRepository implementation
// to load and save Aggregate Roots, specified by the aggregate.Type,
// using the provided event.Store implementation.
func NewEventSourcedRepository[I ID, T Root[I]](
	eventStore event.Store,
	typ Type[I, T],
	opts ...Option[I, T],
) EventSourcedRepository[I, T] {
	repo := EventSourcedRepository[I, T]{
		eventStore: eventStore,
		typ:        typ,
	}

	for _, opt := range opts {
		opt(&repo)
	}

	return repo
}

func (repo EventSourcedRepository[I, T]) streamID(id I) event.StreamID {
	return event.StreamID{
		Type: repo.typ.Name,
		Name: id.String(),
	}
}

// fromSnapshot attempts to rehydrate a new Root instance from the latest
// recorded snapshot, returning the root and the version selector to resume
// event replay from.
//
// Snapshots are an optimization: on any failure the load falls back to a
// full replay from the beginning of the Event Stream, which remains the
// source of truth.
func (repo EventSourcedRepository[I, T]) fromSnapshot(ctx context.Context, streamID event.StreamID) (T, version.Selector) {
	root := repo.typ.Factory()

	if repo.snapshots == nil {
		return root, version.SelectFromBeginning
	}

	snap, err := repo.snapshots.Get(ctx, streamID)
	if errors.Is(err, snapshot.ErrNotFound) {
		return root, version.SelectFromBeginning
	}

	if err != nil {
		logger.Error(repo.logger, "failed to fetch latest snapshot, replaying from the beginning",
			logger.With("stream_id", streamID.String()),
			logger.With("error", err),
		)

		return root, version.SelectFromBeginning
	}

	rehydrated, err := repo.snapshotSerde.Deserialize(snap.State)
	if err != nil {
		logger.Error(repo.logger, "failed to deserialize snapshot state, replaying from the beginning",
			logger.With("stream_id", streamID.String()),
			logger.With("snapshot_version", snap.Version),
			logger.With("error", err),
		)

		return repo.typ.Factory(), version.SelectFromBeginning
	}

	rehydrated.setVersion(snap.Version)

	return rehydrated, version.Selector{From: snap.Version + 1}
}

// Get returns the Aggregate Root with the specified id.
//
// aggregate.ErrRootNotFound is returned if no Aggregate Root was found with
// that id.
//
// An error is returned if the underlying Event Store fails, or if a reducer
// fails while rehydrating the Aggregate Root state from its Event Stream
// (aggregate.ReplayError).
func (repo EventSourcedRepository[I, T]) Get(ctx context.Context, id I) (T, error) {
	var zeroValue T

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	streamID := repo.streamID(id)
	root, selector := repo.fromSnapshot(ctx, streamID)

	eventStream := make(event.Stream, 1)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := repo.eventStore.Stream(ctx, eventStream, streamID, selector); err != nil {
			return fmt.Errorf("aggregate.EventSourcedRepository: failed while reading event from stream, %w", err)
		}

		return nil
	})

	if err := RehydrateFromEvents[I](root, eventStream); err != nil {
		return zeroValue, fmt.Errorf("aggregate.EventSourcedRepository: failed to rehydrate aggregate root, %w", err)
	}

	if err := group.Wait(); err != nil {
		return zeroValue, err
	}

	if root.Version() == 0 {
		return zeroValue, ErrRootNotFound
	}

	return root, nil
}

// Save stores the Aggregate Root to the Event Store, by appending the
// new, uncommitted Domain Events recorded through the Root, if any.
//
// A version.ConflictError (wrapped) is returned when the Event Stream was
// modified concurrently: reload the Aggregate Root and retry on top of the
// fresh state, never on top of the stale one.
func (repo EventSourcedRepository[I, T]) Save(ctx context.Context, root T) error {
	events := root.FlushRecordedEvents()
	if len(events) == 0 {
		return nil
	}

	streamID := repo.streamID(root.AggregateID())
	expectedVersion := version.CheckExact(root.Version() - version.Version(len(events)))

	newVersion, err := repo.eventStore.Append(ctx, streamID, expectedVersion, events...)
	if err != nil {
		return fmt.Errorf("aggregate.EventSourcedRepository: failed to commit recorded events, %w", err)
	}

	repo.maybeRecordSnapshot(ctx, streamID, root, newVersion)

	return nil
}

// maybeRecordSnapshot records a new snapshot when the configured Policy
// signals so. Snapshot failures are logged and swallowed: the events are
// already durably committed, and the next load falls back to replay.
func (repo EventSourcedRepository[I, T]) maybeRecordSnapshot(
	ctx context.Context,
	streamID event.StreamID,
	root T,
	newVersion version.Version,
) {
	if repo.snapshots == nil || !repo.policy.ShouldRecord(newVersion) {
		return
	}

	state, err := repo.snapshotSerde.Serialize(root)
	if err != nil {
		logger.Error(repo.logger, "failed to serialize aggregate root state for snapshot",
			logger.With("stream_id", streamID.String()),
			logger.With("version", newVersion),
			logger.With("error", err),
		)

		return
	}

	if err := repo.snapshots.Record(ctx, streamID, newVersion, state); err != nil {
		logger.Error(repo.logger, "failed to record snapshot",
			logger.With("stream_id", streamID.String()),
			logger.With("version", newVersion),
			logger.With("error", err),
		)

		return
	}

	repo.policy.Record(newVersion)
}
