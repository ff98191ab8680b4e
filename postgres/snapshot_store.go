package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventfold/go-eventfold/aggregate/snapshot"
	"github.com/eventfold/go-eventfold/event"
	"github.com/eventfold/go-eventfold/version"
)

var _ snapshot.Store = SnapshotStore{}

// SnapshotStore is a snapshot.Store implementation targeted to PostgreSQL
// databases, using "snapshots" as its operational table.
//
// Only the latest snapshot per Event Stream is retained: recording a new
// snapshot replaces the previous one.
type SnapshotStore struct {
	Conn *pgxpool.Pool
}

// Record implements the snapshot.Recorder interface.
func (ss SnapshotStore) Record(
	ctx context.Context,
	id event.StreamID,
	v version.Version,
	state []byte,
) error {
	if _, err := ss.Conn.Exec(
		ctx,
		`INSERT INTO snapshots (aggregate_type, aggregate_id, version, state, taken_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (aggregate_type, aggregate_id) DO
		UPDATE SET version = $3, state = $4, taken_at = $5`,
		id.Type, id.Name, v, state, time.Now(),
	); err != nil {
		return mapError("failed to record snapshot", "record_snapshot", err)
	}

	return nil
}

// Get implements the snapshot.Getter interface.
func (ss SnapshotStore) Get(ctx context.Context, id event.StreamID) (snapshot.Snapshot, error) {
	row := ss.Conn.QueryRow(
		ctx,
		`SELECT version, state, taken_at FROM snapshots
		WHERE aggregate_type = $1 AND aggregate_id = $2`,
		id.Type, id.Name,
	)

	var snap snapshot.Snapshot

	if err := row.Scan(&snap.Version, &snap.State, &snap.TakenAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return snapshot.Snapshot{}, snapshot.ErrNotFound
		}

		return snapshot.Snapshot{}, fmt.Errorf("postgres.SnapshotStore: failed to scan snapshot row, %w", err)
	}

	return snap, nil
}
