package session

import (
	"sync"

	"github.com/nerrad567/uwb-ranging-core/internal/uci"
)

// Handle is the opaque caller-scoped identity of a session. It is distinct
// from the protocol-level session id: the id is hardware-visible and unique
// among active sessions, the handle is what callers hold.
type Handle string

// Reason is the caller-facing reason code carried by failure and lifecycle
// callbacks.
type Reason string

// Caller-facing reason codes.
const (
	ReasonUnknown            Reason = "unknown"
	ReasonLocalAPI           Reason = "local_api"
	ReasonSystemPolicy       Reason = "system_policy"
	ReasonSystemRegulation   Reason = "system_regulation"
	ReasonRemoteRequest      Reason = "remote_request"
	ReasonBadParameters      Reason = "bad_parameters"
	ReasonDuplicateSession   Reason = "duplicate_session"
	ReasonMaxSessionsReached Reason = "max_sessions_reached"
	ReasonInvalidState       Reason = "invalid_state"
	ReasonTimeout            Reason = "timeout"
	ReasonProtocolError      Reason = "protocol_error"
	ReasonMaxRetryReached    Reason = "max_retry_reached"
)

// reasonFromStatus maps a synchronous command rejection to a caller reason.
func reasonFromStatus(status uci.Status) Reason {
	switch status {
	case uci.StatusInvalidParams:
		return ReasonBadParameters
	case uci.StatusSessionDuplicate:
		return ReasonDuplicateSession
	case uci.StatusMaxSessionsExceeded:
		return ReasonMaxSessionsReached
	case uci.StatusSessionNotFound, uci.StatusSessionActive:
		return ReasonInvalidState
	case uci.StatusRegulationOff:
		return ReasonSystemRegulation
	default:
		return ReasonProtocolError
	}
}

// reasonFromNotification maps a session status notification reason to a
// caller reason.
func reasonFromNotification(rc uci.ReasonCode) Reason {
	switch rc {
	case uci.ReasonCommands:
		return ReasonLocalAPI
	case uci.ReasonRemoteRequest:
		return ReasonRemoteRequest
	case uci.ReasonMaxRetryReached:
		return ReasonMaxRetryReached
	case uci.ReasonRegulation:
		return ReasonSystemRegulation
	default:
		return ReasonUnknown
	}
}

// opKind classifies the command a session is currently waiting on, so the
// correlator can tell command echoes from unsolicited transitions.
type opKind int

const (
	opNone opKind = iota
	opOpen
	opStart
	opStop
	opReconfigure
	opClose
)

// Session is one registered ranging engagement. It is owned exclusively by
// the registry from creation until removal; callers hold only the Handle.
type Session struct {
	id       uint32
	handle   Handle
	caller   string
	protocol uci.Protocol
	cb       Callbacks

	// tasks is the session's FIFO command queue.
	tasks     chan func()
	closed    chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	state      uci.SessionState
	lastReason uci.ReasonCode
	params     uci.SessionParams
	wait       *commandWait
	pendingOp  opKind
	multicast  *uci.MulticastUpdate
	nextSeq    uint16
	pendingTx  map[uint16]uci.PeerAddress
}

// ID returns the protocol-level session id.
func (s *Session) ID() uint32 { return s.id }

// Handle returns the caller-scoped handle.
func (s *Session) Handle() Handle { return s.handle }

// State returns the last recorded session state.
func (s *Session) State() uci.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Params returns the current session parameters.
func (s *Session) Params() uci.SessionParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// setParams replaces the session parameters after a successful reconfigure.
func (s *Session) setParams(p uci.SessionParams) {
	s.mu.Lock()
	s.params = p
	s.mu.Unlock()
}

// recordState stores a notified state and returns the previous state and
// the operation in flight when it arrived.
func (s *Session) recordState(state uci.SessionState, reason uci.ReasonCode) (prev uci.SessionState, op opKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev = s.state
	s.state = state
	s.lastReason = reason
	return prev, s.pendingOp
}

// storeMulticast records the pending multicast result for the reconfigure
// path to consume.
func (s *Session) storeMulticast(update uci.MulticastUpdate) {
	s.mu.Lock()
	s.multicast = &update
	s.mu.Unlock()
}

// takeMulticast consumes the pending multicast result.
func (s *Session) takeMulticast() *uci.MulticastUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	update := s.multicast
	s.multicast = nil
	return update
}

// allocSequence reserves the next data transfer sequence number and
// records the destination peer for completion dispatch.
func (s *Session) allocSequence(peer uci.PeerAddress) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.nextSeq
	s.nextSeq++
	if s.pendingTx == nil {
		s.pendingTx = make(map[uint16]uci.PeerAddress)
	}
	s.pendingTx[seq] = peer
	return seq
}

// takePendingTx consumes the peer recorded for a data transfer sequence.
func (s *Session) takePendingTx(seq uint16) (uci.PeerAddress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	peer, ok := s.pendingTx[seq]
	if ok {
		delete(s.pendingTx, seq)
	}
	return peer, ok
}

// markClosed stops the session's worker after its current task. Safe to
// call more than once.
func (s *Session) markClosed() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
}

// submit enqueues work on the session's FIFO worker.
func (s *Session) submit(task func()) error {
	select {
	case <-s.closed:
		return ErrSessionClosing
	default:
	}
	select {
	case s.tasks <- task:
		return nil
	case <-s.closed:
		return ErrSessionClosing
	}
}

// trySubmit enqueues work without blocking. Used from the notification
// goroutine, which must never stall on a full session queue.
func (s *Session) trySubmit(task func()) error {
	select {
	case <-s.closed:
		return ErrSessionClosing
	default:
	}
	select {
	case s.tasks <- task:
		return nil
	default:
		return ErrCommandInFlight
	}
}

// SessionInfo is an external snapshot of one registered session.
type SessionInfo struct {
	ID       uint32           `json:"id"`
	Handle   Handle           `json:"handle"`
	Caller   string           `json:"caller"`
	Protocol uci.Protocol     `json:"protocol"`
	State    uci.SessionState `json:"state"`
}
