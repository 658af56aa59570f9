// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/driftline-dev/driftline/internal/store"
)

// Compile-time interface check.
var _ store.SignalStore = (*SignalStore)(nil)

// SignalStore implements store.SignalStore backed by SQLite.
type SignalStore struct {
	db *sql.DB
}

// NewSignalStore opens (or creates) a SQLite database at dbPath and
// initialises the signals table.
func NewSignalStore(dbPath string) (*SignalStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if err := migrateSignals(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating signal tables: %w", err)
	}

	return &SignalStore{db: db}, nil
}

func migrateSignals(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS signals (
	rowid       INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT UNIQUE NOT NULL,
	captured_at TEXT NOT NULL,
	url         TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL DEFAULT '',
	payload     TEXT NOT NULL DEFAULT '',
	space_id    TEXT NOT NULL DEFAULT '',
	subspace_id TEXT NOT NULL DEFAULT '',
	confidence  REAL NOT NULL DEFAULT 0,
	synced      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_signals_synced ON signals(synced, captured_at);
CREATE INDEX IF NOT EXISTS idx_signals_captured ON signals(captured_at);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *SignalStore) Close() error {
	return s.db.Close()
}

// SaveSignal appends a signal, assigning a uuid when the caller did not
// set an id. The insert is a single statement, so either the whole
// signal is persisted or nothing is.
func (s *SignalStore) SaveSignal(ctx context.Context, sig *store.Signal) error {
	if sig == nil {
		return fmt.Errorf("saving signal: %w", store.ErrInvalidInput)
	}
	if sig.ID == "" {
		sig.ID = uuid.NewString()
	}
	if sig.CapturedAt.IsZero() {
		sig.CapturedAt = time.Now().UTC()
	}

	const q = `INSERT INTO signals (id, captured_at, url, title, payload, space_id, subspace_id, confidence, synced)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q,
		sig.ID,
		formatTime(sig.CapturedAt),
		sig.URL,
		sig.Title,
		sig.Payload,
		sig.SpaceID,
		sig.SubspaceID,
		sig.Confidence,
		boolToInt(sig.Synced),
	)
	if err != nil {
		return fmt.Errorf("saving signal %s: %w", sig.ID, err)
	}
	return nil
}

const signalColumns = `id, captured_at, url, title, payload, space_id, subspace_id, confidence, synced`

// GetSignal returns the signal with the given id.
func (s *SignalStore) GetSignal(ctx context.Context, id string) (*store.Signal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+signalColumns+` FROM signals WHERE id = ?`, id)

	sig, err := scanSignal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("signal %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting signal %s: %w", id, err)
	}
	return sig, nil
}

// GetUnsynced returns every unsynced signal, oldest first. This is the
// sync queue's entire view of pending work.
func (s *SignalStore) GetUnsynced(ctx context.Context) ([]*store.Signal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+signalColumns+` FROM signals WHERE synced = 0 ORDER BY captured_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("getting unsynced signals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanSignals(rows)
}

// GetRecent returns the n most recently captured signals, newest first.
func (s *SignalStore) GetRecent(ctx context.Context, n int) ([]*store.Signal, error) {
	if n <= 0 {
		n = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+signalColumns+` FROM signals ORDER BY captured_at DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("getting recent signals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanSignals(rows)
}

// MarkSynced flips synced to true for the given ids in one statement, so
// a concurrent GetUnsynced sees either the whole batch marked or none of
// it. Already-synced and unknown ids are no-ops.
func (s *SignalStore) MarkSynced(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE signals SET synced = 1 WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("marking %d signals synced: %w", len(ids), err)
	}
	return nil
}

// CleanupOldSignals removes synced signals older than maxAge. Unsynced
// signals are retained regardless of age so nothing is lost before the
// backend acknowledges it.
func (s *SignalStore) CleanupOldSignals(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM signals WHERE synced = 1 AND captured_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("cleaning up old signals: %w", err)
	}

	return result.RowsAffected()
}

// Stats returns a point-in-time summary of the store.
func (s *SignalStore) Stats(ctx context.Context) (*store.SignalStats, error) {
	var stats store.SignalStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(synced), 0) FROM signals`,
	).Scan(&stats.Total, &stats.Synced)
	if err != nil {
		return nil, fmt.Errorf("counting signals: %w", err)
	}
	stats.Unsynced = stats.Total - stats.Synced

	var oldest sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT MIN(captured_at) FROM signals WHERE synced = 0`,
	).Scan(&oldest)
	if err != nil {
		return nil, fmt.Errorf("finding oldest unsynced signal: %w", err)
	}
	if oldest.Valid {
		t := parseTime(oldest.String)
		stats.OldestUnsynced = &t
	}

	return &stats, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanSignal.
type scanner interface {
	Scan(dest ...any) error
}

func scanSignal(row scanner) (*store.Signal, error) {
	var sig store.Signal
	var capturedAt string
	var synced int

	if err := row.Scan(
		&sig.ID,
		&capturedAt,
		&sig.URL,
		&sig.Title,
		&sig.Payload,
		&sig.SpaceID,
		&sig.SubspaceID,
		&sig.Confidence,
		&synced,
	); err != nil {
		return nil, err
	}

	sig.CapturedAt = parseTime(capturedAt)
	sig.Synced = synced != 0
	return &sig, nil
}

func scanSignals(rows *sql.Rows) ([]*store.Signal, error) {
	var sigs []*store.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning signal row: %w", err)
		}
		sigs = append(sigs, sig)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sigs, nil
}

// timeLayout is RFC 3339 in UTC with a fixed-width nanosecond fraction
// so the TEXT column's lexicographic order is chronological. RFC3339Nano
// would trim trailing zeros, making a whole-second value sort after any
// fractional one in the same second ('Z' > '.').
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
