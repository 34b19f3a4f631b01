package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// SQLiteTransitionStore implements TransitionStore using SQLite.
//
// It stores one row per transition in the session_history table.
type SQLiteTransitionStore struct {
	db *sql.DB
}

// NewSQLiteTransitionStore creates a new SQLite transition store.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *SQLiteTransitionStore: Store instance ready for use
func NewSQLiteTransitionStore(db *sql.DB) *SQLiteTransitionStore {
	return &SQLiteTransitionStore{db: db}
}

// RecordTransition inserts a new session transition entry.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - entry: Transition to persist
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (s *SQLiteTransitionStore) RecordTransition(ctx context.Context, entry TransitionEntry) error {
	if entry.ToState == "" {
		return fmt.Errorf("to_state is required")
	}
	if entry.Source == "" {
		entry.Source = TransitionSourceNotification
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_history (session_id, handle, from_state, to_state, reason, source)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.SessionID,
		entry.Handle,
		entry.FromState,
		entry.ToState,
		entry.Reason,
		entry.Source,
	)
	if err != nil {
		return fmt.Errorf("inserting session history: %w", err)
	}

	return nil
}

// GetTransitions returns recent transitions for a session, ordered newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - sessionID: Protocol-level session id
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []TransitionEntry: Entries ordered by created_at DESC
//   - error: nil on success, otherwise the underlying query error
func (s *SQLiteTransitionStore) GetTransitions(ctx context.Context, sessionID uint32, limit int) ([]TransitionEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, handle, from_state, to_state, reason, source, created_at
		 FROM session_history
		 WHERE session_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		sessionID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying session history: %w", err)
	}
	defer rows.Close()

	entries := make([]TransitionEntry, 0, limit)
	for rows.Next() {
		var entry TransitionEntry
		var createdAt string

		if err := rows.Scan(
			&entry.ID,
			&entry.SessionID,
			&entry.Handle,
			&entry.FromState,
			&entry.ToState,
			&entry.Reason,
			&entry.Source,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning session history: %w", err)
		}

		timestamp, err := parseHistoryTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session history: %w", err)
	}

	return entries, nil
}

// PruneTransitions deletes history entries older than the given duration.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - olderThan: Duration to retain (entries older than now-olderThan are deleted)
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (s *SQLiteTransitionStore) PruneTransitions(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM session_history WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting session history: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// parseHistoryTimestamp parses a timestamp stored in SQLite.
func parseHistoryTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}

	timestamp, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse("2006-01-02 15:04:05", value)
	if fallbackErr == nil {
		return fallback.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}
