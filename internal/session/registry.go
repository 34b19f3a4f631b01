package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/uwb-ranging-core/internal/uci"
)

// Registry defaults.
const (
	// defaultCommandThreshold bounds each hardware command wait.
	defaultCommandThreshold = 3 * time.Second

	// sessionQueueSize is the buffered depth of a session's FIFO worker.
	sessionQueueSize = 8

	// historyWriteTimeout bounds transition audit writes.
	historyWriteTimeout = 2 * time.Second

	// historyQueueSize is the buffered depth of the transition audit
	// queue. Entries beyond it are dropped rather than stalling workers.
	historyQueueSize = 64
)

// PermissionGate authorizes ranging for a caller. Checked at open time and
// again before every ranging result delivery.
type PermissionGate interface {
	CheckRangingPermission(caller string) bool
}

// AllowAllGate grants every caller. The default when no gate is supplied.
type AllowAllGate struct{}

// CheckRangingPermission implements PermissionGate.
func (AllowAllGate) CheckRangingPermission(string) bool { return true }

// Logger is the consumer-side logging interface for the registry.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Timeouts bounds the per-operation notification waits. Zero fields take
// the default threshold.
type Timeouts struct {
	Open        time.Duration
	Start       time.Duration
	Stop        time.Duration
	Close       time.Duration
	Reconfigure time.Duration
}

// withDefaults fills zero fields with the default threshold.
func (t Timeouts) withDefaults() Timeouts {
	if t.Open <= 0 {
		t.Open = defaultCommandThreshold
	}
	if t.Start <= 0 {
		t.Start = defaultCommandThreshold
	}
	if t.Stop <= 0 {
		t.Stop = defaultCommandThreshold
	}
	if t.Close <= 0 {
		t.Close = defaultCommandThreshold
	}
	if t.Reconfigure <= 0 {
		t.Reconfigure = defaultCommandThreshold
	}
	return t
}

// Options configures a Registry.
type Options struct {
	// Transport is the hardware command surface. Required.
	Transport uci.Transport

	// Gate authorizes callers. Optional; defaults to AllowAllGate.
	Gate PermissionGate

	// History records state transitions. Optional.
	History TransitionRecorder

	// Logger receives registry log output. Optional.
	Logger Logger

	// Timeouts bounds notification waits. Optional.
	Timeouts Timeouts

	// MaxSessions overrides the hardware-advertised session limit.
	// Optional; zero uses Transport.MaxSessionCount().
	MaxSessions int
}

// Registry owns all active sessions: admission control, the id and handle
// maps, and one FIFO worker per session.
type Registry struct {
	tr       uci.Transport
	gate     PermissionGate
	history  TransitionRecorder
	log      Logger
	timeouts Timeouts

	maxSessions int

	mu       sync.RWMutex
	sessions map[uint32]*Session
	byHandle map[Handle]*Session

	// historyCh feeds the single audit writer goroutine.
	historyCh chan TransitionEntry

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewRegistry creates a Registry ready for use.
func NewRegistry(opts Options) (*Registry, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("session: transport is required")
	}
	if opts.Gate == nil {
		opts.Gate = AllowAllGate{}
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	maxSessions := opts.MaxSessions
	if maxSessions <= 0 {
		maxSessions = opts.Transport.MaxSessionCount()
	}
	if maxSessions <= 0 {
		maxSessions = 1
	}

	r := &Registry{
		tr:          opts.Transport,
		gate:        opts.Gate,
		history:     opts.History,
		log:         opts.Logger,
		timeouts:    opts.Timeouts.withDefaults(),
		maxSessions: maxSessions,
		sessions:    make(map[uint32]*Session),
		byHandle:    make(map[Handle]*Session),
		done:        make(chan struct{}),
	}
	if r.history != nil {
		r.historyCh = make(chan TransitionEntry, historyQueueSize)
		r.wg.Add(1)
		go r.historyWriter()
	}
	return r, nil
}

// OpenRequest describes a session to open.
type OpenRequest struct {
	// SessionID is the protocol-level id, unique among active sessions.
	SessionID uint32

	// Caller attributes the session for permission re-checks and
	// liveness tracking.
	Caller string

	// Params are the negotiated open parameters. Required and validated
	// before anything touches hardware.
	Params uci.SessionParams

	// Callbacks receive every result for this session. Optional; absent
	// callbacks are discarded.
	Callbacks Callbacks
}

// OpenSession validates and registers a new session, then drives the open
// sequence (init command, app config, waits) on the session's worker.
// Policy failures (duplicate id, session limit, bad params, permission)
// are returned synchronously; everything later arrives via Callbacks.
func (r *Registry) OpenSession(req OpenRequest) (Handle, error) {
	select {
	case <-r.done:
		return "", ErrRegistryClosed
	default:
	}

	if req.Params == nil {
		return "", fmt.Errorf("%w: params are required", uci.ErrInvalidParams)
	}
	if err := req.Params.Validate(); err != nil {
		return "", err
	}
	if !r.gate.CheckRangingPermission(req.Caller) {
		return "", fmt.Errorf("%w: caller %q", ErrPermissionDenied, req.Caller)
	}
	if req.Callbacks == nil {
		req.Callbacks = NopCallbacks{}
	}

	s := &Session{
		id:       req.SessionID,
		handle:   Handle(uuid.NewString()),
		caller:   req.Caller,
		protocol: req.Params.Protocol(),
		cb:       req.Callbacks,
		tasks:    make(chan func(), sessionQueueSize),
		closed:   make(chan struct{}),
		state:    uci.SessionStateDeinit,
		params:   req.Params,
	}

	r.mu.Lock()
	if _, exists := r.sessions[req.SessionID]; exists {
		r.mu.Unlock()
		return "", fmt.Errorf("%w: id %d", ErrDuplicateSession, req.SessionID)
	}
	if len(r.sessions) >= r.maxSessions {
		r.mu.Unlock()
		return "", fmt.Errorf("%w: limit %d", ErrMaxSessionsReached, r.maxSessions)
	}
	r.sessions[req.SessionID] = s
	r.byHandle[s.handle] = s
	r.mu.Unlock()

	r.log.Info("session registered",
		"session_id", s.id,
		"handle", s.handle,
		"protocol", s.protocol,
		"caller", s.caller,
	)
	r.recordTransition(s, "", string(uci.SessionStateDeinit), string(ReasonLocalAPI), TransitionSourceRegistry)

	r.startWorker(s)
	if err := s.submit(func() { r.handleOpen(s) }); err != nil {
		r.remove(s)
		return "", err
	}
	return s.handle, nil
}

// StartRanging requests the start transition for a session.
func (r *Registry) StartRanging(h Handle) error {
	s, err := r.lookup(h)
	if err != nil {
		return err
	}
	return s.submit(func() { r.handleStart(s) })
}

// StopRanging requests the stop transition for a session.
func (r *Registry) StopRanging(h Handle) error {
	s, err := r.lookup(h)
	if err != nil {
		return err
	}
	return s.submit(func() { r.handleStop(s, ReasonLocalAPI) })
}

// ReconfigureRequest describes a reconfigure: an optional multicast list
// action executed first, then an optional app-config update.
type ReconfigureRequest struct {
	// Action, when set, adds or removes Peers before any config change.
	Action *uci.MulticastAction

	// Peers are the targets of Action.
	Peers []uci.PeerAddress

	// Params, when set, replace the session's app configuration.
	Params uci.SessionParams
}

// Reconfigure requests a reconfigure for a session.
func (r *Registry) Reconfigure(h Handle, req ReconfigureRequest) error {
	if req.Params != nil {
		if err := req.Params.Validate(); err != nil {
			return err
		}
	}
	if req.Action != nil && len(req.Peers) == 0 {
		return fmt.Errorf("%w: multicast action without peers", uci.ErrInvalidParams)
	}
	s, err := r.lookup(h)
	if err != nil {
		return err
	}
	return s.submit(func() { r.handleReconfigure(s, req) })
}

// CloseSession requests the close sequence for a session. The session is
// always removed, even when the hardware wait times out.
func (r *Registry) CloseSession(h Handle) error {
	s, err := r.lookup(h)
	if err != nil {
		return err
	}
	return s.submit(func() { r.handleClose(s, ReasonLocalAPI, TransitionSourceCommand) })
}

// SendData queues an in-band data frame to a peer of an active session.
func (r *Registry) SendData(h Handle, peer uci.PeerAddress, payload []byte) error {
	s, err := r.lookup(h)
	if err != nil {
		return err
	}
	return s.submit(func() { r.handleSendData(s, peer, payload) })
}

// OnCallerLost force-closes every session attributed to the caller. Wired
// to the transport layer's liveness watch.
func (r *Registry) OnCallerLost(caller string) {
	for _, s := range r.snapshotSessions() {
		if s.caller != caller {
			continue
		}
		sess := s
		r.log.Warn("caller lost, closing session", "caller", caller, "session_id", sess.id)
		if err := sess.submit(func() { r.handleClose(sess, ReasonSystemPolicy, TransitionSourceLiveness) }); err != nil {
			r.log.Warn("liveness close not queued", "session_id", sess.id, "error", err)
		}
	}
}

// StopAllRanging requests a system-policy stop for every session.
func (r *Registry) StopAllRanging() {
	for _, s := range r.snapshotSessions() {
		sess := s
		if err := sess.submit(func() { r.handleStop(sess, ReasonSystemPolicy) }); err != nil {
			r.log.Warn("stop-all not queued", "session_id", sess.id, "error", err)
		}
	}
}

// DeinitAll closes every registered session with a system-policy reason
// and waits for the closes to finish or the context to expire. The adapter
// controller calls this before hardware teardown.
func (r *Registry) DeinitAll(ctx context.Context) {
	sessions := r.snapshotSessions()
	dones := make([]chan struct{}, 0, len(sessions))

	for _, s := range sessions {
		sess := s
		done := make(chan struct{})
		err := sess.submit(func() {
			defer close(done)
			r.handleClose(sess, ReasonSystemPolicy, TransitionSourceSystem)
		})
		if err != nil {
			close(done)
		}
		dones = append(dones, done)
	}

	for _, done := range dones {
		select {
		case <-done:
		case <-ctx.Done():
			r.log.Warn("deinit-all interrupted", "error", ctx.Err())
			return
		}
	}
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sessions returns a snapshot of all registered sessions.
func (r *Registry) Sessions() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		infos = append(infos, SessionInfo{
			ID:       s.id,
			Handle:   s.handle,
			Caller:   s.caller,
			Protocol: s.protocol,
			State:    s.State(),
		})
	}
	return infos
}

// Close shuts the registry down. Session workers stop after their current
// task; no hardware teardown is attempted.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
	r.wg.Wait()
}

// startWorker launches the session's FIFO command worker.
func (r *Registry) startWorker(s *Session) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-s.closed:
				return
			case <-r.done:
				return
			case task := <-s.tasks:
				task()
			}
		}
	}()
}

// lookup resolves a handle to a session.
func (r *Registry) lookup(h Handle) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byHandle[h]
	if !ok {
		return nil, fmt.Errorf("%w: handle %s", ErrSessionNotFound, h)
	}
	return s, nil
}

// bySessionID resolves a protocol-level id to a session, for the
// correlator. Nil when unknown.
func (r *Registry) bySessionID(id uint32) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// snapshotSessions copies the current session set out from under the lock.
func (r *Registry) snapshotSessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// remove deletes the session from both maps and stops its worker. Safe to
// call twice; the return value reports whether this call performed the
// removal, which is what gates the single close callback.
func (r *Registry) remove(s *Session) bool {
	r.mu.Lock()
	present := r.sessions[s.id] == s
	if present {
		delete(r.sessions, s.id)
		delete(r.byHandle, s.handle)
	}
	r.mu.Unlock()

	s.markClosed()
	if present {
		r.log.Info("session removed", "session_id", s.id, "handle", s.handle)
	}
	return present
}

// recordTransition queues one entry for the transition audit trail. The
// write happens on the audit writer goroutine; neither session workers
// nor the notification goroutine wait on storage.
func (r *Registry) recordTransition(s *Session, from, to, reason, source string) {
	if r.history == nil {
		return
	}
	entry := TransitionEntry{
		SessionID: s.id,
		Handle:    string(s.handle),
		FromState: from,
		ToState:   to,
		Reason:    reason,
		Source:    source,
	}
	select {
	case r.historyCh <- entry:
	default:
		r.log.Warn("transition audit entry dropped, queue full",
			"session_id", s.id,
			"to_state", to,
		)
	}
}

// historyWriter drains queued transition entries into the recorder,
// preserving arrival order. On shutdown it flushes what is still buffered.
func (r *Registry) historyWriter() {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			for {
				select {
				case entry := <-r.historyCh:
					r.writeTransition(entry)
				default:
					return
				}
			}
		case entry := <-r.historyCh:
			r.writeTransition(entry)
		}
	}
}

// writeTransition persists one audit entry under the write timeout.
func (r *Registry) writeTransition(entry TransitionEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()
	if err := r.history.RecordTransition(ctx, entry); err != nil {
		r.log.Error("recording session transition failed",
			"session_id", entry.SessionID,
			"to_state", entry.ToState,
			"error", err,
		)
	}
}

// stopWaitFor returns the stop deadline for a session. Generic ranging
// sessions stretch it to two ranging intervals, since the hardware may
// finish the round in flight before going idle.
func (r *Registry) stopWaitFor(s *Session) time.Duration {
	timeout := r.timeouts.Stop
	if fp, ok := s.Params().(uci.FiraParams); ok {
		if stretched := 2 * fp.RangingInterval; stretched > timeout {
			timeout = stretched
		}
	}
	return timeout
}
