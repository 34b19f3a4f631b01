package session

import (
	"github.com/nerrad567/uwb-ranging-core/internal/report"
	"github.com/nerrad567/uwb-ranging-core/internal/uci"
)

// Callbacks is the per-session result surface, supplied at open time.
// Every operation ends in exactly one success or reason-coded failure
// callback; the only silent paths are the defined idempotent cases.
//
// Callbacks fire on session worker goroutines (command results) or on the
// notification goroutine (ranging results, received data). Implementations
// must return promptly and must not call back into the Registry
// synchronously.
type Callbacks interface {
	OnOpened(h Handle)
	OnOpenFailed(h Handle, reason Reason)

	OnStarted(h Handle)
	OnStartFailed(h Handle, reason Reason)

	OnReconfigured(h Handle)
	OnReconfigureFailed(h Handle, reason Reason)

	OnControleeAdded(h Handle, peer uci.PeerAddress)
	OnControleeAddFailed(h Handle, peer uci.PeerAddress, reason Reason)
	OnControleeRemoved(h Handle, peer uci.PeerAddress)
	OnControleeRemoveFailed(h Handle, peer uci.PeerAddress, reason Reason)

	OnStopped(h Handle, reason Reason)
	OnStopFailed(h Handle, reason Reason)

	// OnClosed always fires when a session leaves the registry, whatever
	// the path: explicit close, failed open teardown, liveness loss,
	// adapter shutdown or hardware-initiated deinit.
	OnClosed(h Handle, reason Reason)

	OnRangingResult(h Handle, rpt report.RangingReport)

	OnDataSent(h Handle, peer uci.PeerAddress)
	OnDataSendFailed(h Handle, peer uci.PeerAddress, reason Reason)
	OnDataReceived(h Handle, peer uci.PeerAddress, payload []byte)
	OnDataReceiveFailed(h Handle, peer uci.PeerAddress, reason Reason)
}

// NopCallbacks is a Callbacks implementation that ignores everything.
// Embed it to implement only the callbacks a consumer cares about.
type NopCallbacks struct{}

func (NopCallbacks) OnOpened(Handle)                                           {}
func (NopCallbacks) OnOpenFailed(Handle, Reason)                               {}
func (NopCallbacks) OnStarted(Handle)                                          {}
func (NopCallbacks) OnStartFailed(Handle, Reason)                              {}
func (NopCallbacks) OnReconfigured(Handle)                                     {}
func (NopCallbacks) OnReconfigureFailed(Handle, Reason)                        {}
func (NopCallbacks) OnControleeAdded(Handle, uci.PeerAddress)                  {}
func (NopCallbacks) OnControleeAddFailed(Handle, uci.PeerAddress, Reason)      {}
func (NopCallbacks) OnControleeRemoved(Handle, uci.PeerAddress)                {}
func (NopCallbacks) OnControleeRemoveFailed(Handle, uci.PeerAddress, Reason)   {}
func (NopCallbacks) OnStopped(Handle, Reason)                                  {}
func (NopCallbacks) OnStopFailed(Handle, Reason)                               {}
func (NopCallbacks) OnClosed(Handle, Reason)                                   {}
func (NopCallbacks) OnRangingResult(Handle, report.RangingReport)              {}
func (NopCallbacks) OnDataSent(Handle, uci.PeerAddress)                        {}
func (NopCallbacks) OnDataSendFailed(Handle, uci.PeerAddress, Reason)          {}
func (NopCallbacks) OnDataReceived(Handle, uci.PeerAddress, []byte)            {}
func (NopCallbacks) OnDataReceiveFailed(Handle, uci.PeerAddress, Reason)       {}
