package session

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/uwb-ranging-core/internal/uci"
)

// teardownTimeout bounds the best-effort deinit issued while unwinding a
// failed open.
const teardownTimeout = 2 * time.Second

// commandFailureReason maps a command dispatch failure to a caller reason.
func commandFailureReason(err error, status uci.Status) Reason {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ReasonTimeout
		}
		return ReasonProtocolError
	}
	return reasonFromStatus(status)
}

// handleOpen drives the open sequence on the session worker: init the
// session on hardware, wait for Init, apply the app configuration, wait
// for Idle. Any failure unwinds the hardware state and removes the
// session.
func (r *Registry) handleOpen(s *Session) {
	w, err := s.beginWait(opOpen)
	if err != nil {
		r.failOpen(s, ReasonInvalidState)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeouts.Open)
	status, err := r.tr.InitSession(ctx, s.id, s.protocol)
	cancel()
	if err != nil || !status.IsOK() {
		s.clearWait()
		r.log.Warn("session init rejected", "session_id", s.id, "status", status, "error", err)
		r.failOpen(s, commandFailureReason(err, status))
		return
	}

	ev, ok := w.await(r.timeouts.Open)
	s.clearWait()
	if !ok {
		r.log.Warn("session init confirmation timed out", "session_id", s.id)
		r.failOpen(s, ReasonTimeout)
		return
	}
	if ev.state != uci.SessionStateInit {
		r.failOpen(s, reasonFromNotification(ev.reason))
		return
	}

	w, err = s.beginWait(opOpen)
	if err != nil {
		r.failOpen(s, ReasonInvalidState)
		return
	}

	ctx, cancel = context.WithTimeout(context.Background(), r.timeouts.Open)
	status, err = r.tr.SetAppConfig(ctx, s.id, s.Params())
	cancel()
	if err != nil || !status.IsOK() {
		s.clearWait()
		r.log.Warn("session app config rejected", "session_id", s.id, "status", status, "error", err)
		r.failOpen(s, commandFailureReason(err, status))
		return
	}

	ev, ok = w.await(r.timeouts.Open)
	s.clearWait()
	if !ok {
		r.failOpen(s, ReasonTimeout)
		return
	}
	if ev.state != uci.SessionStateIdle {
		r.failOpen(s, reasonFromNotification(ev.reason))
		return
	}

	r.log.Info("session opened", "session_id", s.id, "handle", s.handle)
	s.cb.OnOpened(s.handle)
}

// failOpen unwinds a failed open: best-effort hardware deinit, removal,
// then the failure and close callbacks. If a hardware-initiated close
// already removed the session, its close callback has fired and nothing
// fires again here.
func (r *Registry) failOpen(s *Session, reason Reason) {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	if _, err := r.tr.DeinitSession(ctx, s.id); err != nil {
		r.log.Debug("teardown deinit failed", "session_id", s.id, "error", err)
	}
	cancel()

	if !r.remove(s) {
		return
	}
	r.recordTransition(s, string(s.State()), transitionRemoved, string(reason), TransitionSourceRegistry)
	s.cb.OnOpenFailed(s.handle, reason)
	s.cb.OnClosed(s.handle, reason)
}

// handleStart drives the start transition. Starting an already active
// session succeeds without touching hardware.
func (r *Registry) handleStart(s *Session) {
	switch s.State() {
	case uci.SessionStateActive:
		s.cb.OnStarted(s.handle)
		return
	case uci.SessionStateIdle:
	default:
		s.cb.OnStartFailed(s.handle, ReasonInvalidState)
		return
	}

	w, err := s.beginWait(opStart)
	if err != nil {
		s.cb.OnStartFailed(s.handle, ReasonInvalidState)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeouts.Start)
	status, err := r.tr.StartSession(ctx, s.id)
	cancel()
	if err != nil || !status.IsOK() {
		s.clearWait()
		r.log.Warn("session start rejected", "session_id", s.id, "status", status, "error", err)
		s.cb.OnStartFailed(s.handle, commandFailureReason(err, status))
		return
	}

	ev, ok := w.await(r.timeouts.Start)
	s.clearWait()
	if !ok {
		s.cb.OnStartFailed(s.handle, ReasonTimeout)
		return
	}
	if ev.state != uci.SessionStateActive {
		s.cb.OnStartFailed(s.handle, reasonFromNotification(ev.reason))
		return
	}
	s.cb.OnStarted(s.handle)
}

// handleStop drives the stop transition. Stopping an already idle session
// succeeds without touching hardware. The notification wait stretches to
// two ranging intervals so an in-flight round can finish.
func (r *Registry) handleStop(s *Session, reason Reason) {
	switch s.State() {
	case uci.SessionStateIdle:
		s.cb.OnStopped(s.handle, reason)
		return
	case uci.SessionStateActive:
	default:
		s.cb.OnStopFailed(s.handle, ReasonInvalidState)
		return
	}

	w, err := s.beginWait(opStop)
	if err != nil {
		s.cb.OnStopFailed(s.handle, ReasonInvalidState)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeouts.Stop)
	status, err := r.tr.StopSession(ctx, s.id)
	cancel()
	if err != nil || !status.IsOK() {
		s.clearWait()
		r.log.Warn("session stop rejected", "session_id", s.id, "status", status, "error", err)
		s.cb.OnStopFailed(s.handle, commandFailureReason(err, status))
		return
	}

	ev, ok := w.await(r.stopWaitFor(s))
	s.clearWait()
	if !ok {
		s.cb.OnStopFailed(s.handle, ReasonTimeout)
		return
	}
	if ev.state != uci.SessionStateIdle {
		s.cb.OnStopFailed(s.handle, reasonFromNotification(ev.reason))
		return
	}
	s.cb.OnStopped(s.handle, reason)
}

// handleReconfigure drives a reconfigure: the multicast list action first,
// then the app configuration. A failed or partially failed multicast
// update blocks the configuration step. Peers removed before a partial
// delete failure stay removed.
func (r *Registry) handleReconfigure(s *Session, req ReconfigureRequest) {
	switch s.State() {
	case uci.SessionStateIdle, uci.SessionStateActive:
	default:
		s.cb.OnReconfigureFailed(s.handle, ReasonInvalidState)
		return
	}

	if req.Action != nil {
		if !r.updateMulticast(s, *req.Action, req.Peers) {
			return
		}
	}

	if req.Params != nil {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeouts.Reconfigure)
		status, err := r.tr.SetAppConfig(ctx, s.id, req.Params)
		cancel()
		if err != nil || !status.IsOK() {
			r.log.Warn("session reconfigure rejected", "session_id", s.id, "status", status, "error", err)
			s.cb.OnReconfigureFailed(s.handle, commandFailureReason(err, status))
			return
		}
		s.setParams(req.Params)
	}

	s.cb.OnReconfigured(s.handle)
}

// updateMulticast executes one multicast list action, waits for the
// per-peer result notification and dispatches the per-peer callbacks.
// Returns whether every peer succeeded.
func (r *Registry) updateMulticast(s *Session, action uci.MulticastAction, peers []uci.PeerAddress) bool {
	failAll := func(reason Reason) {
		for _, peer := range peers {
			r.dispatchPeerResult(s, action, peer, false, reason)
		}
		s.cb.OnReconfigureFailed(s.handle, reason)
	}

	w, err := s.beginWait(opReconfigure)
	if err != nil {
		failAll(ReasonInvalidState)
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeouts.Reconfigure)
	status, err := r.tr.UpdateMulticastList(ctx, s.id, action, peers)
	cancel()
	if err != nil || !status.IsOK() {
		s.clearWait()
		r.log.Warn("multicast update rejected",
			"session_id", s.id,
			"action", action,
			"status", status,
			"error", err,
		)
		failAll(commandFailureReason(err, status))
		return false
	}

	ev, ok := w.await(r.timeouts.Reconfigure)
	s.clearWait()
	if !ok {
		failAll(ReasonTimeout)
		return false
	}
	if ev.multicast == nil {
		// Woken by a state transition instead of the multicast result;
		// the session is going away underneath the reconfigure.
		failAll(reasonFromNotification(ev.reason))
		return false
	}

	var firstFailure Reason
	for _, ps := range ev.multicast.Statuses {
		if ps.Status.IsOK() {
			r.dispatchPeerResult(s, action, ps.Peer, true, "")
			continue
		}
		reason := reasonFromStatus(ps.Status)
		if firstFailure == "" {
			firstFailure = reason
		}
		r.dispatchPeerResult(s, action, ps.Peer, false, reason)
	}
	if firstFailure != "" {
		s.cb.OnReconfigureFailed(s.handle, firstFailure)
		return false
	}
	return true
}

// dispatchPeerResult routes one per-peer multicast outcome to the matching
// callback.
func (r *Registry) dispatchPeerResult(s *Session, action uci.MulticastAction, peer uci.PeerAddress, ok bool, reason Reason) {
	switch {
	case action == uci.MulticastActionAdd && ok:
		s.cb.OnControleeAdded(s.handle, peer)
	case action == uci.MulticastActionAdd:
		s.cb.OnControleeAddFailed(s.handle, peer, reason)
	case ok:
		s.cb.OnControleeRemoved(s.handle, peer)
	default:
		s.cb.OnControleeRemoveFailed(s.handle, peer, reason)
	}
}

// handleClose drives the close sequence. The session is removed whether or
// not the hardware confirms the deinit; a rejected command or a timed-out
// wait surfaces as the mapped failure reason on the close callback.
func (r *Registry) handleClose(s *Session, reason Reason, source string) {
	w, err := s.beginWait(opClose)

	ctx, cancel := context.WithTimeout(context.Background(), r.timeouts.Close)
	status, cmdErr := r.tr.DeinitSession(ctx, s.id)
	cancel()

	closedReason := reason
	if cmdErr != nil || !status.IsOK() {
		r.log.Warn("session deinit rejected", "session_id", s.id, "status", status, "error", cmdErr)
		closedReason = commandFailureReason(cmdErr, status)
	}
	if err == nil {
		if cmdErr == nil && status.IsOK() {
			if ev, ok := w.await(r.timeouts.Close); !ok {
				r.log.Warn("session deinit confirmation timed out", "session_id", s.id)
				closedReason = ReasonTimeout
			} else if ev.state != uci.SessionStateDeinit {
				r.log.Warn("unexpected state during close", "session_id", s.id, "state", ev.state)
			}
		}
		s.clearWait()
	}

	if !r.remove(s) {
		return
	}
	r.recordTransition(s, string(s.State()), transitionRemoved, string(closedReason), source)
	s.cb.OnClosed(s.handle, closedReason)
}

// handleHardwareClose finalizes a close the hardware initiated on its own:
// the deinit already happened, only removal and callbacks remain. When a
// woken command issuer unwound the session first, this is a no-op; the
// close callback fires exactly once either way.
func (r *Registry) handleHardwareClose(s *Session, reason Reason) {
	if !r.remove(s) {
		return
	}
	r.log.Info("hardware-initiated session close", "session_id", s.id)
	r.recordTransition(s, string(uci.SessionStateDeinit), transitionRemoved, string(reason), TransitionSourceNotification)
	s.cb.OnClosed(s.handle, reason)
}

// handleSendData queues one in-band data frame. The outcome arrives as a
// data transfer status notification correlated by sequence number.
func (r *Registry) handleSendData(s *Session, peer uci.PeerAddress, payload []byte) {
	if s.State() != uci.SessionStateActive {
		s.cb.OnDataSendFailed(s.handle, peer, ReasonInvalidState)
		return
	}

	seq := s.allocSequence(peer)
	ctx, cancel := context.WithTimeout(context.Background(), r.timeouts.Reconfigure)
	status, err := r.tr.SendData(ctx, s.id, peer, seq, payload)
	cancel()
	if err != nil || !status.IsOK() {
		s.takePendingTx(seq)
		r.log.Warn("data send rejected", "session_id", s.id, "peer", peer, "status", status, "error", err)
		s.cb.OnDataSendFailed(s.handle, peer, commandFailureReason(err, status))
	}
}
