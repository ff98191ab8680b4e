package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eventfold/go-eventfold/aggregate/snapshot"
	"github.com/eventfold/go-eventfold/event"
	"github.com/eventfold/go-eventfold/version"
)

var _ snapshot.Store = SnapshotStore{}

// SnapshotStore is a snapshot.Store implementation backed by a SQLite
// database, using "snapshots" as its operational table.
//
// Only the latest snapshot per Event Stream is retained: recording a new
// snapshot replaces the previous one.
type SnapshotStore struct {
	DB *sql.DB
}

// Record implements the snapshot.Recorder interface.
func (ss SnapshotStore) Record(
	ctx context.Context,
	id event.StreamID,
	v version.Version,
	state []byte,
) error {
	if _, err := ss.DB.ExecContext(
		ctx,
		`INSERT INTO snapshots (aggregate_type, aggregate_id, version, state, taken_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (aggregate_type, aggregate_id) DO
		UPDATE SET version = excluded.version, state = excluded.state, taken_at = excluded.taken_at`,
		id.Type, id.Name, v, state, toMillis(time.Now()),
	); err != nil {
		return fmt.Errorf("sqlite.SnapshotStore: failed to record snapshot, %w", err)
	}

	return nil
}

// Get implements the snapshot.Getter interface.
func (ss SnapshotStore) Get(ctx context.Context, id event.StreamID) (snapshot.Snapshot, error) {
	row := ss.DB.QueryRowContext(
		ctx,
		`SELECT version, state, taken_at FROM snapshots
		WHERE aggregate_type = ? AND aggregate_id = ?`,
		id.Type, id.Name,
	)

	var (
		snap          snapshot.Snapshot
		takenAtMillis int64
	)

	if err := row.Scan(&snap.Version, &snap.State, &takenAtMillis); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return snapshot.Snapshot{}, snapshot.ErrNotFound
		}

		return snapshot.Snapshot{}, fmt.Errorf("sqlite.SnapshotStore: failed to scan snapshot row, %w", err)
	}

	snap.TakenAt = fromMillis(takenAtMillis)

	return snap, nil
}
