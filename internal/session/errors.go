package session

import "errors"

// Domain errors for the session package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, session.ErrDuplicateSession) {
//	    // a session with that id is already registered
//	}
var (
	// ErrDuplicateSession is returned when opening a session whose id is
	// already registered.
	ErrDuplicateSession = errors.New("session: duplicate session id")

	// ErrMaxSessionsReached is returned when the registered session count
	// has reached the hardware-advertised maximum.
	ErrMaxSessionsReached = errors.New("session: max sessions reached")

	// ErrSessionNotFound is returned when a handle does not resolve to a
	// registered session.
	ErrSessionNotFound = errors.New("session: not found")

	// ErrPermissionDenied is returned when the caller lacks the ranging
	// permission.
	ErrPermissionDenied = errors.New("session: ranging permission denied")

	// ErrCommandInFlight is returned when a command is dispatched while
	// the session's previous completion slot is unconsumed.
	ErrCommandInFlight = errors.New("session: command already in flight")

	// ErrRegistryClosed is returned when the registry has shut down.
	ErrRegistryClosed = errors.New("session: registry closed")

	// ErrSessionClosing is returned when work is submitted to a session
	// whose worker has stopped.
	ErrSessionClosing = errors.New("session: closing")
)
