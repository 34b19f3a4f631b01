// Package uci defines the protocol vocabulary spoken between UWB Ranging
// Core and the radio hardware: device and session states, command status
// codes, session parameters, measurement shapes, and the Transport interface
// the coordinator drives.
//
// The package deliberately stops above the wire: byte-level encoding and
// decoding of UCI packets belongs to the transport implementation, not here.
// Everything in this package is the symbolic form the coordinator reasons
// about.
//
// # Key Types
//
//   - Transport: the command surface of the radio (init/start/stop/deinit
//     session, app config, multicast list, country code, data transfer)
//   - NotificationHandler: the asynchronous notification stream consumed by
//     the coordinator's correlator
//   - SessionParams: tagged-union open/reconfigure parameters (Fira, CCC,
//     radar), validated before they enter the state machine
//   - RangingData: raw measurement notification in one of three shapes
//     (two-way, OWR AoA, DL-TDoA)
//
// # Usage
//
//	tr := uci.NewLoopback(uci.LoopbackConfig{MaxSessions: 5})
//	tr.SetNotificationHandler(correlator)
//	status, err := tr.InitSession(ctx, 42, uci.ProtocolFira)
//
// # Thread Safety
//
// Transport implementations must be safe for concurrent use; notifications
// must be delivered from a single goroutine, in order.
package uci
