package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/eventfold/go-eventfold/event"
	"github.com/eventfold/go-eventfold/message"
	"github.com/eventfold/go-eventfold/serde"
	"github.com/eventfold/go-eventfold/version"
)

var _ event.Store = EventStore{}

// EventStore is an event.Store implementation backed by a SQLite database,
// using "event_streams" and "events" as its operational tables.
//
// Use sqlite.Open to build the database handle with the expected schema.
type EventStore struct {
	DB    *sql.DB
	Serde *serde.Registry
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Stream implements the event.Streamer interface.
func (es EventStore) Stream(
	ctx context.Context,
	stream event.StreamWrite,
	id event.StreamID,
	selector version.Selector,
) error {
	defer close(stream)

	rows, err := es.DB.QueryContext(
		ctx,
		`SELECT version, event_type, payload, metadata FROM events
		WHERE aggregate_type = ? AND aggregate_id = ? AND version >= ?
		ORDER BY version`,
		id.Type, id.Name, selector.From,
	)
	if err != nil {
		return fmt.Errorf("sqlite.EventStore: failed to query events table, %w", err)
	}

	defer rows.Close()

	for rows.Next() {
		var (
			name        string
			rawPayload  []byte
			rawMetadata sql.NullString
		)

		evt := event.Persisted{StreamID: id}

		if err := rows.Scan(&evt.Version, &name, &rawPayload, &rawMetadata); err != nil {
			return fmt.Errorf("sqlite.EventStore: failed to scan next row, %w", err)
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
		return fmt.Errorf("sqlite.EventStore: failed while reading events rows, %w", err)
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

	rows, err := es.DB.QueryContext(
		ctx,
		`SELECT aggregate_type, aggregate_id, version, event_type, payload, metadata FROM events
		WHERE event_type = ? AND recorded_at >= ?
		ORDER BY global_sequence`,
		eventType, toMillis(since),
	)
	if err != nil {
		return fmt.Errorf("sqlite.EventStore: failed to query events table, %w", err)
	}

	defer rows.Close()

	for rows.Next() {
		var (
			name        string
			rawPayload  []byte
			rawMetadata sql.NullString
		)

		var evt event.Persisted

		if err := rows.Scan(
			&evt.StreamID.Type, &evt.StreamID.Name, &evt.Version,
			&name, &rawPayload, &rawMetadata,
		); err != nil {
			return fmt.Errorf("sqlite.EventStore: failed to scan next row, %w", err)
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
		return fmt.Errorf("sqlite.EventStore: failed while reading events rows, %w", err)
	}

	return nil
}

func (es EventStore) deserializeEnvelope(
	name string,
	rawPayload []byte,
	rawMetadata sql.NullString,
) (event.Envelope, error) {
	msg, err := es.Serde.Deserialize(name, rawPayload)
	if err != nil {
		return event.Envelope{}, fmt.Errorf("sqlite.EventStore: failed to deserialize event, %w", err)
	}

	envelope := event.Envelope{Message: msg}

	if rawMetadata.Valid && rawMetadata.String != "" {
		if err := json.Unmarshal([]byte(rawMetadata.String), &envelope.Metadata); err != nil {
			return event.Envelope{}, fmt.Errorf("sqlite.EventStore: failed to deserialize metadata, %w", err)
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
	tx, err := es.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite.EventStore: failed to open database transaction, %w", err)
	}

	defer func() {
		// Has no effect if the transaction has been committed.
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(
		ctx,
		`SELECT version FROM event_streams WHERE aggregate_type = ? AND aggregate_id = ?`,
		id.Type, id.Name,
	)

	var oldVersion version.Version
	if err := row.Scan(&oldVersion); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("sqlite.EventStore: failed to scan current event stream version, %w", err)
	}

	if v, ok := expected.(version.CheckExact); ok && oldVersion != version.Version(v) {
		return 0, fmt.Errorf(
			"sqlite.EventStore: event stream version check failed, %w",
			version.ConflictError{
				Expected: version.Version(v),
				Actual:   oldVersion,
			},
		)
	}

	newVersion := oldVersion + version.Version(len(events))

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO event_streams (aggregate_type, aggregate_id, version)
		VALUES (?, ?, ?)
		ON CONFLICT (aggregate_type, aggregate_id) DO
		UPDATE SET version = excluded.version`,
		id.Type, id.Name, newVersion,
	); err != nil {
		return 0, fmt.Errorf("sqlite.EventStore: failed to update event stream version, %w", err)
	}

	for i, evt := range events {
		eventVersion := oldVersion + version.Version(i) + 1

		if err := es.appendDomainEvent(ctx, tx, id, eventVersion, evt); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite.EventStore: failed to commit transaction, %w", err)
	}

	return newVersion, nil
}

func (es EventStore) appendDomainEvent(
	ctx context.Context,
	tx *sql.Tx,
	id event.StreamID,
	eventVersion version.Version,
	evt event.Envelope,
) error {
	data, err := es.Serde.Serialize(evt.Message)
	if err != nil {
		return fmt.Errorf("sqlite.EventStore: failed to serialize domain event, %w", err)
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

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO events
		(aggregate_type, aggregate_id, version, event_type, recorded_at,
		 correlation_id, causation_id, topic, payload, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.Type, id.Name, eventVersion, evt.Message.Name(), toMillis(recordedAt),
		evt.CorrelationID(), evt.CausationID(), evt.Topic(), data, metadata,
	); err != nil {
		if conflictErr, ok := isVersionConflictError(err, eventVersion); ok {
			return fmt.Errorf("sqlite.EventStore: event stream version check failed, %w", conflictErr)
		}

		return fmt.Errorf("sqlite.EventStore: failed to append new domain event, %w", err)
	}

	return nil
}

// isVersionConflictError reports whether the unique constraint on
// (aggregate_type, aggregate_id, version) was violated, the backstop against
// unchecked writers racing on the same Event Stream.
func isVersionConflictError(err error, attempted version.Version) (version.ConflictError, bool) {
	var sqliteErr *msqlite.Error

	if err == nil || !errors.As(err, &sqliteErr) {
		return version.ConflictError{}, false
	}

	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT, sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return version.ConflictError{
			Expected: attempted - 1,
			Actual:   attempted,
		}, true
	default:
		return version.ConflictError{}, false
	}
}

func serializeMetadata(metadata message.Metadata) ([]byte, error) {
	if metadata == nil {
		return nil, nil
	}

	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("sqlite.serializeMetadata: failed to marshal to json, %w", err)
	}

	return data, nil
}
