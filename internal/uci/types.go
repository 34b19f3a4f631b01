package uci

// DeviceState is the hardware-reported state of a single radio chip.
type DeviceState string

// Device states as reported by the device status notification.
const (
	DeviceStateOff    DeviceState = "off"
	DeviceStateReady  DeviceState = "ready"
	DeviceStateActive DeviceState = "active"
	DeviceStateError  DeviceState = "error"
)

// SessionState is the hardware-reported state of a ranging session.
//
// The lifecycle is Deinit -> Init -> Idle <-> Active, with Error reachable
// from any state on unrecoverable failure. A session in Deinit has no
// hardware resources allocated.
type SessionState string

// Session states as reported by the session status notification.
const (
	SessionStateDeinit SessionState = "deinit"
	SessionStateInit   SessionState = "init"
	SessionStateIdle   SessionState = "idle"
	SessionStateActive SessionState = "active"
	SessionStateError  SessionState = "error"
)

// Protocol identifies the ranging protocol a session speaks.
type Protocol string

// Supported session protocols.
const (
	// ProtocolFira is generic FiRa two-way/one-way ranging.
	ProtocolFira Protocol = "fira"

	// ProtocolCCC is the constrained channel configuration used for
	// automotive digital-key ranging.
	ProtocolCCC Protocol = "ccc"

	// ProtocolRadar is short-range radar sweeps.
	ProtocolRadar Protocol = "radar"
)

// AllProtocols returns every supported protocol.
func AllProtocols() []Protocol {
	return []Protocol{ProtocolFira, ProtocolCCC, ProtocolRadar}
}

// IsValid reports whether the protocol is one of the supported values.
func (p Protocol) IsValid() bool {
	switch p {
	case ProtocolFira, ProtocolCCC, ProtocolRadar:
		return true
	default:
		return false
	}
}

// Status is the synchronous result of a hardware command, or the per-item
// result carried inside a notification.
type Status string

// Command status codes.
const (
	StatusOK                  Status = "ok"
	StatusRejected            Status = "rejected"
	StatusFailed              Status = "failed"
	StatusInvalidParams       Status = "invalid_params"
	StatusSessionNotFound     Status = "session_not_found"
	StatusSessionDuplicate    Status = "session_duplicate"
	StatusSessionActive       Status = "session_active"
	StatusMaxSessionsExceeded Status = "max_sessions_exceeded"
	StatusMulticastListFull   Status = "multicast_list_full"
	StatusAddressNotFound     Status = "address_not_found"
	StatusAddressAlreadyHere  Status = "address_already_present"
	StatusRegulationOff       Status = "regulation_uwb_off"
)

// IsOK reports whether the status indicates success.
func (s Status) IsOK() bool {
	return s == StatusOK
}

// ReasonCode qualifies a session status notification: why the session
// moved to the reported state.
type ReasonCode string

// Session status notification reason codes.
const (
	// ReasonCommands means the transition is the echo of a session
	// management command issued locally.
	ReasonCommands ReasonCode = "session_management_commands"

	// ReasonMaxRetryReached means ranging round retries were exhausted.
	ReasonMaxRetryReached ReasonCode = "max_ranging_round_retry"

	// ReasonRemoteRequest means a remote peer requested the transition.
	ReasonRemoteRequest ReasonCode = "remote_request"

	// ReasonRegulation means regulatory constraints forced the transition.
	ReasonRegulation ReasonCode = "regulation"

	// ReasonUnknown covers transitions the hardware did not qualify.
	ReasonUnknown ReasonCode = "unknown"
)

// PeerAddress is the short MAC address of a remote ranging device,
// formatted as lowercase hex (e.g. "1a2b").
type PeerAddress string

// MulticastAction selects what a multicast list update does with the
// addressed peers.
type MulticastAction string

// Multicast list update actions.
const (
	MulticastActionAdd    MulticastAction = "add"
	MulticastActionDelete MulticastAction = "delete"
)

// PeerStatus is the per-peer outcome of a multicast list update.
type PeerStatus struct {
	Peer   PeerAddress `json:"peer"`
	Status Status      `json:"status"`
}

// MulticastUpdate is the asynchronous result of a multicast list update
// command. Statuses carries one entry per targeted peer.
type MulticastUpdate struct {
	SessionID uint32          `json:"session_id"`
	Action    MulticastAction `json:"action"`
	Statuses  []PeerStatus    `json:"statuses"`
}

// Failed returns the peers whose update did not succeed.
func (m MulticastUpdate) Failed() []PeerStatus {
	var failed []PeerStatus
	for _, ps := range m.Statuses {
		if !ps.Status.IsOK() {
			failed = append(failed, ps)
		}
	}
	return failed
}
