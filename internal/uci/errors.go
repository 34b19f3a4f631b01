package uci

import "errors"

// Domain errors for the uci package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, uci.ErrInvalidParams) {
//	    // reject before touching the state machine
//	}
var (
	// ErrInvalidParams is returned when session parameter validation fails.
	ErrInvalidParams = errors.New("uci: invalid session params")

	// ErrTransportClosed is returned when a command is issued on a
	// transport that has been shut down.
	ErrTransportClosed = errors.New("uci: transport closed")

	// ErrUnknownSession is returned by transports when a command targets
	// a session id the hardware does not know.
	ErrUnknownSession = errors.New("uci: unknown session")
)
