// Package sqlite provides a StorageAdapter that keeps the queue snapshot and
// the flag cache in a SQLite database. Several namespaces can share one file.
package sqlite

import (
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Tap30/courier-go/adapters"
)

//go:embed schema.sql
var schemaSQL string

// StorageAdapter stores snapshots in SQLite. Every save replaces the previous
// snapshot of its namespace inside one transaction.
type StorageAdapter struct {
	db        *sql.DB
	namespace string
}

var _ adapters.StorageAdapter = (*StorageAdapter)(nil)

// Open creates or opens the database at path and applies the schema.
//
// The database is configured with:
//   - WAL mode so readers such as the inspect command do not block saves
//   - 5-second busy timeout for lock contention
func Open(path, namespace string) (*StorageAdapter, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &StorageAdapter{db: db, namespace: namespace}, nil
}

// Close closes the database connection.
func (s *StorageAdapter) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveQueue replaces the queue snapshot with events.
func (s *StorageAdapter) SaveQueue(events []adapters.Event) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM queue_events WHERE namespace = ?`, s.namespace); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO queue_events (namespace, message_id, ts_nanos, payload) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		payload, err := e.MarshalJSON()
		if err != nil {
			return fmt.Errorf("encode event %s: %w", e.MessageID, err)
		}
		if _, err := stmt.Exec(s.namespace, e.MessageID, e.Timestamp.UnixNano(), string(payload)); err != nil {
			return fmt.Errorf("insert event %s: %w", e.MessageID, err)
		}
	}

	return tx.Commit()
}

// LoadQueue returns the queue snapshot oldest first.
func (s *StorageAdapter) LoadQueue() ([]adapters.Event, error) {
	rows, err := s.db.Query(
		`SELECT payload FROM queue_events WHERE namespace = ? ORDER BY ts_nanos, message_id`,
		s.namespace,
	)
	if err != nil {
		return nil, fmt.Errorf("query queue: %w", err)
	}
	defer rows.Close()

	events := []adapters.Event{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var e adapters.Event
		if err := e.UnmarshalJSON([]byte(payload)); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// SaveFlags replaces the flag cache.
func (s *StorageAdapter) SaveFlags(flags ldvalue.ValueMap) error {
	payload, err := adapters.EncodeValueMap(flags)
	if err != nil {
		return fmt.Errorf("encode flags: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO feature_flags (namespace, payload) VALUES (?, ?)
		 ON CONFLICT(namespace) DO UPDATE SET payload = excluded.payload`,
		s.namespace, string(payload),
	)
	if err != nil {
		return fmt.Errorf("save flags: %w", err)
	}
	return nil
}

// LoadFlags returns the flag cache, or an empty mapping if none was saved.
func (s *StorageAdapter) LoadFlags() (ldvalue.ValueMap, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM feature_flags WHERE namespace = ?`, s.namespace).Scan(&payload)
	if err == sql.ErrNoRows {
		return ldvalue.ValueMap{}, nil
	}
	if err != nil {
		return ldvalue.ValueMap{}, fmt.Errorf("load flags: %w", err)
	}
	return adapters.DecodeValueMap([]byte(payload))
}
