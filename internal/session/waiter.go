package session

import (
	"time"

	"github.com/nerrad567/uwb-ranging-core/internal/uci"
)

// waitEvent is what the correlator delivers to a waiting command: either a
// session state transition or a multicast update result.
type waitEvent struct {
	state     uci.SessionState
	reason    uci.ReasonCode
	multicast *uci.MulticastUpdate
}

// commandWait is the single-slot rendezvous between a dispatched hardware
// command and its asynchronous notification. It is created at dispatch
// time, written at most once by the correlator, and read at most once
// (under a deadline) by the command issuer.
type commandWait struct {
	ch chan waitEvent
}

func newCommandWait() *commandWait {
	return &commandWait{ch: make(chan waitEvent, 1)}
}

// complete delivers the event without blocking. A second delivery into an
// already-filled slot is dropped; the slot holds exactly one result.
func (w *commandWait) complete(ev waitEvent) {
	select {
	case w.ch <- ev:
	default:
	}
}

// await blocks until the slot is filled or the deadline passes.
func (w *commandWait) await(timeout time.Duration) (waitEvent, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ev := <-w.ch:
		return ev, true
	case <-timer.C:
		return waitEvent{}, false
	}
}

// beginWait installs a fresh completion slot for the given operation.
// It fails if the previous slot is still unconsumed, enforcing the
// one-in-flight-command-per-session invariant by construction.
func (s *Session) beginWait(op opKind) (*commandWait, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wait != nil {
		return nil, ErrCommandInFlight
	}
	w := newCommandWait()
	s.wait = w
	s.pendingOp = op
	return w, nil
}

// clearWait releases the completion slot after the issuer consumed it or
// gave up on it.
func (s *Session) clearWait() {
	s.mu.Lock()
	s.wait = nil
	s.pendingOp = opNone
	s.mu.Unlock()
}

// completeWait hands an event to the pending waiter, if any. Returns
// whether a waiter was signaled. Called from the notification goroutine;
// never blocks.
func (s *Session) completeWait(ev waitEvent) bool {
	s.mu.Lock()
	w := s.wait
	s.mu.Unlock()
	if w == nil {
		return false
	}
	w.complete(ev)
	return true
}
