// Package postgres provides durable implementations of the event.Store and
// snapshot.Store interfaces targeted to PostgreSQL databases, using the
// pgx driver and connection pool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/puddle/v2"

	"github.com/eventfold/go-eventfold/event"
	"github.com/eventfold/go-eventfold/message"
	"github.com/eventfold/go-eventfold/serde"
	"github.com/eventfold/go-eventfold/version"
)

var _ event.Store = EventStore{}

// EventStore is an event.Store implementation targeted to PostgreSQL databases.
//
// The implementation uses "event_streams" and "events" as its operational
// tables. Updates to these tables are transactional.
type EventStore struct {
	Conn  *pgxpool.Pool
	Serde *serde.Registry
}

// Stream implements the event.Streamer interface.
func (es EventStore) Stream(
	ctx context.Context,
	stream event.StreamWrite,
	id event.StreamID,
	selector version.Selector,
) error {
	defer close(stream)

	rows, err := es.Conn.Query(
		ctx,
		`SELECT version, event_type, payload, metadata FROM events
		WHERE aggregate_type = $1 AND aggregate_id = $2 AND version >= $3
		ORDER BY version`,
		id.Type, id.Name, selector.From,
	)
	if err != nil {
		return mapError("failed to query events table", "stream", err)
	}

	defer rows.Close()

	for rows.Next() {
		var (
			name        string
			rawPayload  []byte
			rawMetadata json.RawMessage
		)

		evt := event.Persisted{StreamID: id}

		if err := rows.Scan(&evt.Version, &name, &rawPayload, &rawMetadata); err != nil {
			return fmt.Errorf("postgres.EventStore: failed to scan next row, %w", err)
		}

		if evt.Envelope, err = es.deserializeEnvelope(name, rawPayload, rawMetadata); err != nil {
			return err
		}

		select {
		case stream <- evt:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := rows.Err(); err != nil {
		return mapError("failed while reading events rows", "stream", err)
	}

	return nil
}

// StreamByType implements the event.TypeStreamer interface.
//
// Events are returned in commit order across all Event Streams, bounded
// by the store content at call time.
func (es EventStore) StreamByType(
	ctx context.Context,
	stream event.StreamWrite,
	eventType string,
	since time.Time,
) error {
	defer close(stream)

	rows, err := es.Conn.Query(
		ctx,
		`SELECT aggregate_type, aggregate_id, version, event_type, payload, metadata FROM events
		WHERE event_type = $1 AND recorded_at >= $2
		ORDER BY global_sequence`,
		eventType, since,
	)
	if err != nil {
		return mapError("failed to query events table", "stream_by_type", err)
	}

	defer rows.Close()

	for rows.Next() {
		var (
			name        string
			rawPayload  []byte
			rawMetadata json.RawMessage
		)

		var evt event.Persisted

		if err := rows.Scan(
			&evt.StreamID.Type, &evt.StreamID.Name, &evt.Version,
			&name, &rawPayload, &rawMetadata,
		); err != nil {
			return fmt.Errorf("postgres.EventStore: failed to scan next row, %w", err)
		}

		if evt.Envelope, err = es.deserializeEnvelope(name, rawPayload, rawMetadata); err != nil {
			return err
		}

		select {
		case stream <- evt:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := rows.Err(); err != nil {
		return mapError("failed while reading events rows", "stream_by_type", err)
	}

	return nil
}

func (es EventStore) deserializeEnvelope(name string, rawPayload, rawMetadata []byte) (event.Envelope, error) {
	msg, err := es.Serde.Deserialize(name, rawPayload)
	if err != nil {
		return event.Envelope{}, fmt.Errorf("postgres.EventStore: failed to deserialize event, %w", err)
	}

	envelope := event.Envelope{Message: msg}

	if len(rawMetadata) > 0 {
		if err := json.Unmarshal(rawMetadata, &envelope.Metadata); err != nil {
			return event.Envelope{}, fmt.Errorf("postgres.EventStore: failed to deserialize metadata, %w", err)
		}
	}

	return envelope, nil
}

// Append implements the event.Appender interface.
//
// The expected version check and the events insert run in the same
// transaction: on conflict, version.ConflictError is returned and nothing
// is written.
func (es EventStore) Append(
	ctx context.Context,
	id event.StreamID,
	expected version.Check,
	events ...event.Envelope,
) (version.Version, error) {
	tx, err := es.Conn.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return 0, mapError("failed to open database transaction", "append", err)
	}

	defer func() {
		// Has no effect if the transaction has been committed.
		_ = tx.Rollback(ctx)
	}()

	oldVersion, err := es.currentStreamVersion(ctx, tx, id)
	if err != nil {
		return 0, err
	}

	if v, ok := expected.(version.CheckExact); ok && oldVersion != version.Version(v) {
		return 0, fmt.Errorf(
			"postgres.EventStore: event stream version check failed, %w",
			version.ConflictError{
				Expected: version.Version(v),
				Actual:   oldVersion,
			},
		)
	}

	newVersion := oldVersion + version.Version(len(events))

	if _, err := tx.Exec(
		ctx,
		`INSERT INTO event_streams (aggregate_type, aggregate_id, version)
		VALUES ($1, $2, $3)
		ON CONFLICT (aggregate_type, aggregate_id) DO
		UPDATE SET version = $3`,
		id.Type, id.Name, newVersion,
	); err != nil {
		return 0, mapError("failed to update event stream version", "append", err)
	}

	for i, evt := range events {
		eventVersion := oldVersion + version.Version(i) + 1

		if err := es.appendDomainEvent(ctx, tx, id, eventVersion, evt); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, mapError("failed to commit transaction", "append", err)
	}

	return newVersion, nil
}

func (es EventStore) currentStreamVersion(
	ctx context.Context,
	tx pgx.Tx,
	id event.StreamID,
) (version.Version, error) {
	// The row lock serializes concurrent writers on the same Event Stream,
	// so the version check below observes a stable value.
	row := tx.QueryRow(
		ctx,
		`SELECT version FROM event_streams
		WHERE aggregate_type = $1 AND aggregate_id = $2
		FOR UPDATE`,
		id.Type, id.Name,
	)

	var oldVersion version.Version
	if err := row.Scan(&oldVersion); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, mapError("failed to scan current event stream version", "append", err)
	}

	return oldVersion, nil
}

func (es EventStore) appendDomainEvent(
	ctx context.Context,
	tx pgx.Tx,
	id event.StreamID,
	eventVersion version.Version,
	evt event.Envelope,
) error {
	data, err := es.Serde.Serialize(evt.Message)
	if err != nil {
		return fmt.Errorf("postgres.EventStore: failed to serialize domain event, %w", err)
	}

	recordedAt := evt.RecordedAt()
	if recordedAt.IsZero() {
		recordedAt = time.Now()
		evt.Metadata = evt.Metadata.With(event.RecordedAtKey, recordedAt.Format(time.RFC3339Nano))
	}

	metadata, err := serializeMetadata(evt.Metadata)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(
		ctx,
		`INSERT INTO events
		(aggregate_type, aggregate_id, version, event_type, recorded_at,
		 correlation_id, causation_id, topic, payload, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id.Type, id.Name, eventVersion, evt.Message.Name(), recordedAt,
		evt.CorrelationID(), evt.CausationID(), evt.Topic(), data, metadata,
	); err != nil {
		if conflictErr, ok := isVersionConflictError(err, eventVersion); ok {
			return fmt.Errorf("postgres.EventStore: event stream version check failed, %w", conflictErr)
		}

		return mapError("failed to append new domain event", "append", err)
	}

	return nil
}

func serializeMetadata(metadata message.Metadata) ([]byte, error) {
	if metadata == nil {
		return nil, nil
	}

	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("postgres.serializeMetadata: failed to marshal to json, %w", err)
	}

	return data, nil
}

// isVersionConflictError reports whether the unique constraint on
// (aggregate_type, aggregate_id, version) was violated, the backstop against
// unchecked writers racing on the same Event Stream.
func isVersionConflictError(err error, attempted version.Version) (version.ConflictError, bool) {
	var pgErr *pgconn.PgError

	if err == nil || !errors.As(err, &pgErr) {
		return version.ConflictError{}, false
	}

	if pgErr.Code != "23505" {
		return version.ConflictError{}, false
	}

	return version.ConflictError{
		Expected: attempted - 1,
		Actual:   attempted,
	}, true
}

// mapError translates low-level pgx failures into the store error taxonomy.
//
// Class 08 errors (connection exceptions) and closed-pool failures surface as
// event.StoreUnavailableError, signaling callers that a retry with backoff
// may succeed.
func mapError(msg, op string, err error) error {
	var pgErr *pgconn.PgError

	isConnErr := errors.As(err, &pgErr) && len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08"

	if isConnErr || errors.Is(err, puddle.ErrClosedPool) {
		return fmt.Errorf("postgres.EventStore: %s, %w", msg, event.StoreUnavailableError{
			Op:  op,
			Err: err,
		})
	}

	return fmt.Errorf("postgres.EventStore: %s, %w", msg, err)
}
