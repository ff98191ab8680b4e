package snapshot_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventfold/go-eventfold/aggregate/snapshot"
	"github.com/eventfold/go-eventfold/event"
	"github.com/eventfold/go-eventfold/version"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	streamID := event.StreamID{Type: "Account", Name: "test-account"}

	store := snapshot.NewInMemoryStore()

	t.Run("missing snapshots are reported with ErrNotFound", func(t *testing.T) {
		_, err := store.Get(ctx, streamID)
		assert.ErrorIs(t, err, snapshot.ErrNotFound)
	})

	t.Run("only the latest snapshot per stream is retained", func(t *testing.T) {
		require.NoError(t, store.Record(ctx, streamID, 10, []byte(`{"balance":100}`)))
		require.NoError(t, store.Record(ctx, streamID, 20, []byte(`{"balance":250}`)))

		snap, err := store.Get(ctx, streamID)
		require.NoError(t, err)

		assert.Equal(t, version.Version(20), snap.Version)
		assert.Equal(t, []byte(`{"balance":250}`), snap.State)
		assert.False(t, snap.TakenAt.IsZero())
	})

	t.Run("streams do not share snapshots", func(t *testing.T) {
		_, err := store.Get(ctx, event.StreamID{Type: "Account", Name: "another-account"})
		assert.ErrorIs(t, err, snapshot.ErrNotFound)
	})
}

func TestPolicies(t *testing.T) {
	t.Run("NeverPolicy never signals", func(t *testing.T) {
		policy := snapshot.NeverPolicy{}

		for v := version.Version(1); v <= 10; v++ {
			assert.False(t, policy.ShouldRecord(v))
		}
	})

	t.Run("AlwaysPolicy always signals", func(t *testing.T) {
		policy := snapshot.AlwaysPolicy{}

		for v := version.Version(1); v <= 10; v++ {
			assert.True(t, policy.ShouldRecord(v))
		}
	})

	t.Run("EveryVersionIncrementPolicy signals on multiples only", func(t *testing.T) {
		policy := snapshot.EveryVersionIncrementPolicy(3)

		assert.False(t, policy.ShouldRecord(1))
		assert.False(t, policy.ShouldRecord(2))
		assert.True(t, policy.ShouldRecord(3))
		assert.False(t, policy.ShouldRecord(4))
		assert.True(t, policy.ShouldRecord(6))
	})

	t.Run("AtFixedIntervalsPolicy signals after the configured interval", func(t *testing.T) {
		policy := snapshot.NewAtFixedIntervalsPolicy(time.Hour)

		// First query always signals, as no snapshot has been recorded yet.
		assert.True(t, policy.ShouldRecord(1))
		policy.Record(1)

		assert.False(t, policy.ShouldRecord(2))
	})
}
