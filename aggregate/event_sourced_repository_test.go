package aggregate_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventfold/go-eventfold/aggregate"
	"github.com/eventfold/go-eventfold/aggregate/snapshot"
	"github.com/eventfold/go-eventfold/event"
	"github.com/eventfold/go-eventfold/internal/account"
	"github.com/eventfold/go-eventfold/version"
)

func TestEventSourcedRepository(t *testing.T) {
	t.Run("in-memory event store", account.AggregateRepositorySuite(
		aggregate.NewEventSourcedRepository(
			event.NewInMemoryStore(),
			account.Type,
		),
	))

	t.Run("in-memory event store with snapshots", account.AggregateRepositorySuite(
		aggregate.NewEventSourcedRepository(
			event.NewInMemoryStore(),
			account.Type,
			aggregate.WithSnapshots[uuid.UUID, *account.Account](
				snapshot.NewInMemoryStore(),
				snapshot.AlwaysPolicy{},
				account.SnapshotSerde,
			),
		),
	))
}

func TestEventSourcedRepositorySnapshotReplay(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC)

	trackingStore := event.NewTrackingStore(event.NewInMemoryStore())
	snapshotStore := snapshot.NewInMemoryStore()

	repository := aggregate.NewEventSourcedRepository(
		trackingStore,
		account.Type,
		aggregate.WithSnapshots[uuid.UUID, *account.Account](
			snapshotStore,
			snapshot.EveryVersionIncrementPolicy(3),
			account.SnapshotSerde,
		),
	)

	id := uuid.New()
	streamID := event.StreamID{Type: "Account", Name: id.String()}

	acc, err := account.Open(id, "John Ross", now)
	require.NoError(t, err)
	require.NoError(t, acc.Deposit(10_00))
	require.NoError(t, acc.Withdraw(2_50))
	require.NoError(t, repository.Save(ctx, acc))

	// Version 3 hits the policy increment, so a snapshot must be recorded.
	snap, err := snapshotStore.Get(ctx, streamID)
	require.NoError(t, err)
	assert.Equal(t, version.Version(3), snap.Version)

	got, err := repository.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, version.Version(3), got.Version())
	assert.Equal(t, int64(7_50), got.Balance())

	// The load above must resume replay right after the snapshot version,
	// not from the beginning of the Event Stream.
	selectors := trackingStore.StreamedSelectors()
	require.Len(t, selectors, 1)
	assert.Equal(t, version.Selector{From: 4}, selectors[0])
}

func TestEventSourcedRepositorySnapshotFallback(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC)

	trackingStore := event.NewTrackingStore(event.NewInMemoryStore())
	snapshotStore := snapshot.NewInMemoryStore()

	repository := aggregate.NewEventSourcedRepository(
		trackingStore,
		account.Type,
		aggregate.WithSnapshots[uuid.UUID, *account.Account](
			snapshotStore,
			snapshot.AlwaysPolicy{},
			account.SnapshotSerde,
		),
	)

	id := uuid.New()
	streamID := event.StreamID{Type: "Account", Name: id.String()}

	acc, err := account.Open(id, "Jane Ross", now)
	require.NoError(t, err)
	require.NoError(t, acc.Deposit(4_00))
	require.NoError(t, repository.Save(ctx, acc))

	// Corrupt the recorded snapshot: the repository must fall back to a
	// full replay from the Event Stream, which stays the source of truth.
	require.NoError(t, snapshotStore.Record(ctx, streamID, 2, []byte("{invalid json")))

	got, err := repository.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, version.Version(2), got.Version())
	assert.Equal(t, int64(4_00), got.Balance())

	selectors := trackingStore.StreamedSelectors()
	require.Len(t, selectors, 1)
	assert.Equal(t, version.SelectFromBeginning, selectors[0])
}

func TestEventSourcedRepositoryReplayError(t *testing.T) {
	ctx := context.Background()

	store := event.NewInMemoryStore()

	streamID := event.StreamID{Type: "Account", Name: uuid.NewString()}
	_, err := store.Append(ctx, streamID, version.CheckExact(0), event.ToEnvelope(unknownPayload{}))
	require.NoError(t, err)

	repository := aggregate.NewEventSourcedRepository(store, account.Type)

	id, err := uuid.Parse(streamID.Name)
	require.NoError(t, err)

	_, err = repository.Get(ctx, id)

	var replayErr aggregate.ReplayError

	require.ErrorAs(t, err, &replayErr)
	assert.Equal(t, streamID, replayErr.StreamID)
	assert.Equal(t, version.Version(1), replayErr.Version)
}

type unknownPayload struct{}

func (unknownPayload) Name() string { return "unknown_payload" }
