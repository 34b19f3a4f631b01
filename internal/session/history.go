package session

import (
	"context"
	"time"
)

// Transition source values.
const (
	TransitionSourceCommand      = "command"
	TransitionSourceNotification = "notification"
	TransitionSourceLiveness     = "liveness"
	TransitionSourceSystem       = "system"
	TransitionSourceRegistry     = "registry"
)

// transitionRemoved is the terminal pseudo-state recorded when a session
// leaves the registry.
const transitionRemoved = "removed"

// TransitionEntry represents a single session state transition record.
//
// Each entry stores the transition endpoints with the reason and origin,
// providing a local audit trail of every session's lifecycle even after
// the session is gone.
type TransitionEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// SessionID is the protocol-level session id.
	SessionID uint32 `json:"session_id"`

	// Handle is the caller-scoped handle the session carried.
	Handle string `json:"handle"`

	// FromState is the state before the transition. Empty on registration.
	FromState string `json:"from_state"`

	// ToState is the state after the transition.
	ToState string `json:"to_state"`

	// Reason is the reason code attached to the transition.
	Reason string `json:"reason"`

	// Source identifies what recorded the transition (command,
	// notification, liveness, system, registry).
	Source string `json:"source"`

	// CreatedAt is the timestamp of the transition (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// TransitionRecorder records session state transitions.
//
// Implementations must be thread-safe; transitions arrive from session
// workers and from the notification goroutine.
type TransitionRecorder interface {
	// RecordTransition persists one transition entry.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - entry: Transition to persist (ID and CreatedAt are assigned)
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	RecordTransition(ctx context.Context, entry TransitionEntry) error
}

// TransitionStore extends TransitionRecorder with retrieval and pruning.
type TransitionStore interface {
	TransitionRecorder

	// GetTransitions returns recent transitions for a session id, newest
	// first.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - sessionID: Protocol-level session id
	//   - limit: Maximum entries to return (implementation may clamp bounds)
	//
	// Returns:
	//   - []TransitionEntry: Ordered newest-first entries (may be empty)
	//   - error: nil on success, otherwise the underlying query error
	GetTransitions(ctx context.Context, sessionID uint32, limit int) ([]TransitionEntry, error)

	// PruneTransitions deletes entries older than the given duration and
	// returns the number of rows removed.
	PruneTransitions(ctx context.Context, olderThan time.Duration) (int64, error)
}
