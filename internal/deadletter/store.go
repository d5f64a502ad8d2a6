// Package deadletter provides the durable sink for events that cannot be
// validated or published. Records are append-only and retained until an
// operator purges them; redelivery is an external operational action.
package deadletter

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/lessonpulse/lessonpulse/internal/observability"
)

// Failure reasons recorded with each entry.
const (
	ReasonValidationFailed = "validation_failed"
	ReasonPublishRejected  = "publish_rejected"
)

// Entry is what a pipeline component hands to the store: the original payload
// (an event, or raw bytes if undecodable) plus failure context.
type Entry struct {
	Payload     []byte
	Reason      string
	Attempts    int
	FirstSeen   time.Time
	LastAttempt time.Time
}

// Record is a stored dead-letter record.
type Record struct {
	ID          string    `json:"id"`
	Reason      string    `json:"reason"`
	Payload     []byte    `json:"payload"`
	Attempts    int       `json:"attempts"`
	FirstSeen   time.Time `json:"first_seen"`
	LastAttempt time.Time `json:"last_attempt"`
	CreatedAt   time.Time `json:"created_at"`
}

// Filter narrows List results for operator tooling.
type Filter struct {
	// Reason limits results to one failure reason; empty matches all.
	Reason string

	// CreatedAfter acts as a pagination cursor over creation time.
	CreatedAfter time.Time

	// Limit bounds the result size; <= 0 uses the default of 100.
	Limit int
}

// Store is the SQLite-backed dead-letter sink. Writes go through a single
// connection in WAL mode; reads use a concurrent read pool.
type Store struct {
	db     *sql.DB
	readDB *sql.DB
}

// Open creates (or opens) the dead-letter database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("deadletter: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("deadletter: failed to create schema: %w", err)
	}

	readDB, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&mode=ro")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("deadletter: failed to open read database: %w", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)
	readDB.SetConnMaxLifetime(5 * time.Minute)

	return &Store{db: db, readDB: readDB}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS dead_letters (
	id           TEXT PRIMARY KEY,
	reason       TEXT NOT NULL,
	payload      BLOB NOT NULL,
	attempts     INTEGER NOT NULL,
	first_seen   INTEGER NOT NULL,
	last_attempt INTEGER NOT NULL,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dead_letters_reason ON dead_letters(reason, created_at);
CREATE INDEX IF NOT EXISTS idx_dead_letters_created_at ON dead_letters(created_at);
`

// Record appends an entry and returns its generated record ID. Existing
// records are never overwritten.
func (s *Store) Record(ctx context.Context, e Entry) (string, error) {
	if e.Reason == "" {
		return "", fmt.Errorf("deadletter: reason is required")
	}

	now := time.Now()
	if e.FirstSeen.IsZero() {
		e.FirstSeen = now
	}
	if e.LastAttempt.IsZero() {
		e.LastAttempt = now
	}
	if e.Attempts <= 0 {
		e.Attempts = 1
	}

	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dead_letters (id, reason, payload, attempts, first_seen, last_attempt, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, e.Reason, e.Payload, e.Attempts,
		e.FirstSeen.UnixNano(), e.LastAttempt.UnixNano(), now.UnixNano())
	if err != nil {
		return "", fmt.Errorf("deadletter: failed to insert record: %w", err)
	}

	observability.DeadLetterRecords.WithLabelValues(e.Reason).Inc()
	return id, nil
}

// List returns records matching the filter, ordered by creation time.
func (s *Store) List(ctx context.Context, f Filter) ([]*Record, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, reason, payload, attempts, first_seen, last_attempt, created_at
	          FROM dead_letters WHERE created_at > ?`
	args := []interface{}{f.CreatedAfter.UnixNano()}
	if f.Reason != "" {
		query += ` AND reason = ?`
		args = append(args, f.Reason)
	}
	query += ` ORDER BY created_at ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("deadletter: failed to query records: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var rec Record
		var firstSeen, lastAttempt, createdAt int64
		if err := rows.Scan(&rec.ID, &rec.Reason, &rec.Payload, &rec.Attempts,
			&firstSeen, &lastAttempt, &createdAt); err != nil {
			return nil, fmt.Errorf("deadletter: failed to scan record: %w", err)
		}
		rec.FirstSeen = time.Unix(0, firstSeen)
		rec.LastAttempt = time.Unix(0, lastAttempt)
		rec.CreatedAt = time.Unix(0, createdAt)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Count returns the total number of stored records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.readDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letters`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("deadletter: failed to count records: %w", err)
	}
	return n, nil
}

// Close closes both database connections.
func (s *Store) Close() error {
	if err := s.readDB.Close(); err != nil {
		s.db.Close()
		return err
	}
	return s.db.Close()
}
