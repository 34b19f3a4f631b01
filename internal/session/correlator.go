package session

import (
	"time"

	"github.com/nerrad567/uwb-ranging-core/internal/report"
	"github.com/nerrad567/uwb-ranging-core/internal/uci"
)

// AdapterSink receives the device-level notifications the correlator does
// not handle itself. The adapter controller implements it.
type AdapterSink interface {
	OnDeviceStatus(chipID string, state uci.DeviceState)
	OnGenericError(chipID string, status uci.Status)
}

// Correlator is the single consumer of the transport notification stream.
// It routes device-level events to the adapter sink and session-level
// events to the owning session: completion slots for command echoes,
// worker tasks for unsolicited transitions and for ranging data.
//
// Thread Safety:
//   - The transport invokes all methods from one goroutine; none of them
//     block.
type Correlator struct {
	registry *Registry
	adapter  AdapterSink
	log      Logger
}

// NewCorrelator wires a correlator to its registry and adapter sink.
// The adapter sink may be nil; device-level events are then dropped.
func NewCorrelator(registry *Registry, adapter AdapterSink, log Logger) *Correlator {
	if log == nil {
		log = noopLogger{}
	}
	return &Correlator{
		registry: registry,
		adapter:  adapter,
		log:      log,
	}
}

// OnDeviceStatus implements uci.NotificationHandler.
func (c *Correlator) OnDeviceStatus(chipID string, state uci.DeviceState) {
	if c.adapter == nil {
		return
	}
	c.adapter.OnDeviceStatus(chipID, state)
}

// OnGenericError implements uci.NotificationHandler.
func (c *Correlator) OnGenericError(chipID string, status uci.Status) {
	if c.adapter == nil {
		return
	}
	c.adapter.OnGenericError(chipID, status)
}

// OnSessionStatus implements uci.NotificationHandler. It records the
// transition, then either wakes the pending command or, for unsolicited
// transitions, queues the matching lifecycle work on the session worker.
func (c *Correlator) OnSessionStatus(sessionID uint32, state uci.SessionState, reason uci.ReasonCode) {
	s := c.registry.bySessionID(sessionID)
	if s == nil {
		c.log.Debug("status for unknown session dropped", "session_id", sessionID, "state", state)
		return
	}

	prev, op := s.recordState(state, reason)
	c.registry.recordTransition(s, string(prev), string(state), string(reason), TransitionSourceNotification)

	ev := waitEvent{state: state, reason: reason}

	switch {
	case state == uci.SessionStateDeinit && op != opClose:
		// The hardware tore the session down on its own. Wake any command
		// in flight so its issuer fails fast instead of sleeping out its
		// deadline, then finalize the close on the session worker so it
		// orders behind the issuer's unwind. Whichever path removes the
		// session first fires the close callback; the other is a no-op.
		closeReason := reasonFromNotification(reason)
		if reason == uci.ReasonCommands {
			closeReason = ReasonSystemPolicy
		}
		s.completeWait(ev)
		if err := s.trySubmit(func() { c.registry.handleHardwareClose(s, closeReason) }); err != nil {
			c.log.Debug("hardware close not queued", "session_id", sessionID, "error", err)
		}

	case state == uci.SessionStateIdle && prev == uci.SessionStateActive &&
		reason != uci.ReasonCommands && op != opStop:
		// A remote controller or the hardware halted ranging. No command
		// is waiting for this transition.
		stopReason := reasonFromNotification(reason)
		if err := s.trySubmit(func() { s.cb.OnStopped(s.handle, stopReason) }); err != nil {
			c.log.Warn("remote stop dropped, session queue full",
				"session_id", sessionID,
				"error", err,
			)
		}

	case op == opClose && state != uci.SessionStateDeinit:
		// Intermediate transition while a close is pending; the close
		// waits for Deinit only.

	default:
		if !s.completeWait(ev) {
			c.log.Debug("unsolicited session transition",
				"session_id", sessionID,
				"from", prev,
				"to", state,
				"reason", reason,
			)
		}
	}
}

// OnMulticastUpdate implements uci.NotificationHandler.
func (c *Correlator) OnMulticastUpdate(update uci.MulticastUpdate) {
	s := c.registry.bySessionID(update.SessionID)
	if s == nil {
		c.log.Debug("multicast update for unknown session dropped", "session_id", update.SessionID)
		return
	}
	s.storeMulticast(update)
	s.completeWait(waitEvent{multicast: &update})
}

// OnRangingData implements uci.NotificationHandler. Report building and
// delivery run on the session worker; a slow subscriber stalls only its
// own session, never the notification goroutine. The caller's ranging
// permission is re-checked on every delivery; a revoked caller stops
// receiving results without the session being torn down here.
func (c *Correlator) OnRangingData(data uci.RangingData) {
	s := c.registry.bySessionID(data.SessionID)
	if s == nil {
		c.log.Debug("ranging data for unknown session dropped", "session_id", data.SessionID)
		return
	}
	err := s.trySubmit(func() {
		if !c.registry.gate.CheckRangingPermission(s.caller) {
			c.log.Warn("ranging result withheld, permission revoked",
				"session_id", data.SessionID,
				"caller", s.caller,
			)
			return
		}
		rpt := report.Build(data, s.Params(), time.Now().UTC())
		s.cb.OnRangingResult(s.handle, rpt)
	})
	if err != nil {
		c.log.Debug("ranging data dropped, session queue full", "session_id", data.SessionID)
	}
}

// OnDataTransferStatus implements uci.NotificationHandler.
func (c *Correlator) OnDataTransferStatus(sessionID uint32, sequence uint16, status uci.Status) {
	s := c.registry.bySessionID(sessionID)
	if s == nil {
		return
	}
	peer, ok := s.takePendingTx(sequence)
	if !ok {
		c.log.Debug("transfer status without pending send", "session_id", sessionID, "sequence", sequence)
		return
	}
	err := s.trySubmit(func() {
		if status.IsOK() {
			s.cb.OnDataSent(s.handle, peer)
			return
		}
		s.cb.OnDataSendFailed(s.handle, peer, reasonFromStatus(status))
	})
	if err != nil {
		c.log.Debug("transfer status dropped, session queue full", "session_id", sessionID, "sequence", sequence)
	}
}

// OnDataReceived implements uci.NotificationHandler.
func (c *Correlator) OnDataReceived(sessionID uint32, peer uci.PeerAddress, payload []byte) {
	s := c.registry.bySessionID(sessionID)
	if s == nil {
		c.log.Debug("received data for unknown session dropped", "session_id", sessionID)
		return
	}
	err := s.trySubmit(func() {
		if !c.registry.gate.CheckRangingPermission(s.caller) {
			s.cb.OnDataReceiveFailed(s.handle, peer, ReasonSystemPolicy)
			return
		}
		s.cb.OnDataReceived(s.handle, peer, payload)
	})
	if err != nil {
		c.log.Debug("received data dropped, session queue full", "session_id", sessionID)
	}
}
