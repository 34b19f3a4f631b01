package uci

import "context"

// Transport is the command surface of the UWB radio hardware.
//
// Every command is synchronous at the protocol level: the hardware accepts
// or rejects it immediately via the returned Status. State transitions the
// command triggers arrive later on the notification stream, delivered to
// the registered NotificationHandler.
//
// Thread Safety:
//   - Implementations must be safe for concurrent use; the coordinator
//     issues commands for different sessions concurrently.
type Transport interface {
	// Initialize brings the radio stack up. Called once per enable.
	Initialize(ctx context.Context) error

	// Deinitialize tears the radio stack down. Called once per disable.
	Deinitialize(ctx context.Context) error

	// ChipIDs returns the identifiers of the physical chips behind this
	// transport. At least one.
	ChipIDs() []string

	// MaxSessionCount returns the hardware-advertised maximum number of
	// concurrently registered sessions.
	MaxSessionCount() int

	// InitSession allocates hardware resources for a session. A session
	// status notification carrying Init follows on success.
	InitSession(ctx context.Context, sessionID uint32, protocol Protocol) (Status, error)

	// DeinitSession releases a session's hardware resources. A session
	// status notification carrying Deinit follows.
	DeinitSession(ctx context.Context, sessionID uint32) (Status, error)

	// StartSession begins ranging. A session status notification carrying
	// Active follows on success.
	StartSession(ctx context.Context, sessionID uint32) (Status, error)

	// StopSession halts ranging. A session status notification carrying
	// Idle follows; the hardware may take up to two ranging rounds.
	StopSession(ctx context.Context, sessionID uint32) (Status, error)

	// SetAppConfig applies session parameters. After a successful apply
	// on a freshly initialized session the session moves to Idle.
	SetAppConfig(ctx context.Context, sessionID uint32, params SessionParams) (Status, error)

	// UpdateMulticastList adds or removes peers from a running session.
	// A MulticastUpdate notification with per-peer statuses follows.
	UpdateMulticastList(ctx context.Context, sessionID uint32, action MulticastAction, peers []PeerAddress) (Status, error)

	// SetCountryCode programs the regulatory country code. Returns
	// StatusRegulationOff when UWB is not permitted under that code.
	SetCountryCode(ctx context.Context, code string) (Status, error)

	// SendData queues an in-band data frame to a peer of an active
	// session. The outcome arrives as a data transfer status notification
	// correlated by sequence number.
	SendData(ctx context.Context, sessionID uint32, peer PeerAddress, sequence uint16, payload []byte) (Status, error)

	// SetNotificationHandler registers the single consumer of the
	// asynchronous notification stream. Must be called before Initialize.
	SetNotificationHandler(h NotificationHandler)
}

// NotificationHandler consumes the asynchronous notification stream.
//
// The transport invokes these callbacks from a single goroutine, in the
// order the hardware emitted them. Handlers must not block: they record
// results and signal waiters, nothing more.
type NotificationHandler interface {
	// OnDeviceStatus reports a chip-level state change.
	OnDeviceStatus(chipID string, state DeviceState)

	// OnGenericError reports a device-level error outside any session.
	OnGenericError(chipID string, status Status)

	// OnSessionStatus reports a session state transition and its reason.
	OnSessionStatus(sessionID uint32, state SessionState, reason ReasonCode)

	// OnMulticastUpdate reports the per-peer outcome of a multicast list
	// update command.
	OnMulticastUpdate(update MulticastUpdate)

	// OnRangingData delivers a raw measurement notification.
	OnRangingData(data RangingData)

	// OnDataTransferStatus reports the outcome of a queued SendData.
	OnDataTransferStatus(sessionID uint32, sequence uint16, status Status)

	// OnDataReceived delivers an in-band data frame from a peer.
	OnDataReceived(sessionID uint32, peer PeerAddress, payload []byte)
}
