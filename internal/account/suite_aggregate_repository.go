package account

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventfold/go-eventfold/aggregate"
	"github.com/eventfold/go-eventfold/version"
)

// AggregateRepositorySuite returns an executable testing suite running on the
// aggregate.Repository value provided in input.
//
// Package account of this module also exposes a JSON-based snapshot serde and
// an event registry, useful to test serialization and deserialization of data
// to the target repository implementation.
func AggregateRepositorySuite(repository aggregate.Repository[uuid.UUID, *Account]) func(t *testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()
		now := time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC)

		t.Run("it can load and save aggregates from the store", func(t *testing.T) {
			id := uuid.New()

			_, err := repository.Get(ctx, id)
			if !assert.ErrorIs(t, err, aggregate.ErrRootNotFound) {
				return
			}

			acc, err := Open(id, "John Doe", now)
			require.NoError(t, err)
			require.NoError(t, acc.Deposit(10_00))
			require.NoError(t, acc.Withdraw(2_50))

			if err := repository.Save(ctx, acc); !assert.NoError(t, err) {
				return
			}

			got, err := repository.Get(ctx, id)
			assert.NoError(t, err)
			assert.Equal(t, acc, got)
			assert.Equal(t, int64(7_50), got.Balance())
		})

		t.Run("optimistic locking of aggregates is also working fine", func(t *testing.T) {
			id := uuid.New()

			acc, err := Open(id, "Jane Doe", now)
			require.NoError(t, err)
			require.NoError(t, acc.Deposit(5_00))

			if err := repository.Save(ctx, acc); !assert.NoError(t, err) {
				return
			}

			// Open a new Account on the same id, simulating a writer
			// working on top of stale state.
			outdated, err := Open(id, "Jane Doe", now)
			require.NoError(t, err)

			err = repository.Save(ctx, outdated)

			expectedErr := version.ConflictError{
				Expected: 0,
				Actual:   2,
			}

			var conflictErr version.ConflictError

			assert.ErrorAs(t, err, &conflictErr)
			assert.Equal(t, expectedErr, conflictErr)
		})
	}
}
