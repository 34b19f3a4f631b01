package events

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/uwb-ranging-core/internal/adapter"
	"github.com/nerrad567/uwb-ranging-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/uwb-ranging-core/internal/report"
	"github.com/nerrad567/uwb-ranging-core/internal/session"
	"github.com/nerrad567/uwb-ranging-core/internal/uci"
)

// MessagePublisher is the narrow MQTT surface the publisher needs.
// mqtt.Client satisfies it.
type MessagePublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MetricWriter is the narrow time-series surface the publisher needs.
// influxdb.Client satisfies it.
type MetricWriter interface {
	WriteRangingMeasurement(handle, peer string, distanceM, azimuthRad, elevationRad float64)
	WriteSessionEvent(handle, event, reason string)
	WriteAdapterEvent(state, reason string)
}

// Logger is the consumer-side logging interface for the publisher.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Publisher fans coordinator callbacks out to MQTT and InfluxDB.
//
// Thread Safety:
//   - All methods are safe for concurrent use; both sinks accept
//     concurrent writes.
type Publisher struct {
	session.NopCallbacks

	bus     MessagePublisher
	metrics MetricWriter
	log     Logger
	qos     byte
	topics  mqtt.Topics
}

// NewPublisher creates a publisher. Either sink may be nil.
func NewPublisher(bus MessagePublisher, metrics MetricWriter, qos byte, log Logger) *Publisher {
	if log == nil {
		log = noopLogger{}
	}
	return &Publisher{
		bus:     bus,
		metrics: metrics,
		log:     log,
		qos:     qos,
	}
}

// sessionEvent is the JSON body published for session lifecycle events.
type sessionEvent struct {
	Handle    string `json:"handle"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
	Peer      string `json:"peer,omitempty"`
	Timestamp string `json:"timestamp"`
}

// adapterEvent is the JSON body published for adapter state changes.
type adapterEvent struct {
	State     string `json:"state"`
	Reason    string `json:"reason"`
	Timestamp string `json:"timestamp"`
}

// OnAdapterStateChanged implements adapter.Listener.
func (p *Publisher) OnAdapterStateChanged(state adapter.ChipState, reason adapter.ChangeReason) {
	p.publishJSON(p.topics.AdapterState(), adapterEvent{
		State:     string(state),
		Reason:    string(reason),
		Timestamp: timestamp(),
	}, true)
	if p.metrics != nil {
		p.metrics.WriteAdapterEvent(string(state), string(reason))
	}
}

// OnOpened implements session.Callbacks.
func (p *Publisher) OnOpened(h session.Handle) {
	p.sessionLifecycle(h, "opened", "")
}

// OnOpenFailed implements session.Callbacks.
func (p *Publisher) OnOpenFailed(h session.Handle, reason session.Reason) {
	p.sessionLifecycle(h, "open_failed", string(reason))
}

// OnStarted implements session.Callbacks.
func (p *Publisher) OnStarted(h session.Handle) {
	p.sessionLifecycle(h, "started", "")
}

// OnStartFailed implements session.Callbacks.
func (p *Publisher) OnStartFailed(h session.Handle, reason session.Reason) {
	p.sessionLifecycle(h, "start_failed", string(reason))
}

// OnStopped implements session.Callbacks.
func (p *Publisher) OnStopped(h session.Handle, reason session.Reason) {
	p.sessionLifecycle(h, "stopped", string(reason))
}

// OnStopFailed implements session.Callbacks.
func (p *Publisher) OnStopFailed(h session.Handle, reason session.Reason) {
	p.sessionLifecycle(h, "stop_failed", string(reason))
}

// OnReconfigured implements session.Callbacks.
func (p *Publisher) OnReconfigured(h session.Handle) {
	p.sessionLifecycle(h, "reconfigured", "")
}

// OnReconfigureFailed implements session.Callbacks.
func (p *Publisher) OnReconfigureFailed(h session.Handle, reason session.Reason) {
	p.sessionLifecycle(h, "reconfigure_failed", string(reason))
}

// OnControleeAdded implements session.Callbacks.
func (p *Publisher) OnControleeAdded(h session.Handle, peer uci.PeerAddress) {
	p.sessionPeerEvent(h, "controlee_added", peer, "")
}

// OnControleeAddFailed implements session.Callbacks.
func (p *Publisher) OnControleeAddFailed(h session.Handle, peer uci.PeerAddress, reason session.Reason) {
	p.sessionPeerEvent(h, "controlee_add_failed", peer, string(reason))
}

// OnControleeRemoved implements session.Callbacks.
func (p *Publisher) OnControleeRemoved(h session.Handle, peer uci.PeerAddress) {
	p.sessionPeerEvent(h, "controlee_removed", peer, "")
}

// OnControleeRemoveFailed implements session.Callbacks.
func (p *Publisher) OnControleeRemoveFailed(h session.Handle, peer uci.PeerAddress, reason session.Reason) {
	p.sessionPeerEvent(h, "controlee_remove_failed", peer, string(reason))
}

// OnClosed implements session.Callbacks.
func (p *Publisher) OnClosed(h session.Handle, reason session.Reason) {
	p.sessionLifecycle(h, "closed", string(reason))
}

// OnRangingResult implements session.Callbacks. The full report goes to
// the session's report topic; per-peer distance and angles go to InfluxDB.
func (p *Publisher) OnRangingResult(h session.Handle, rpt report.RangingReport) {
	p.publishJSON(p.topics.SessionReport(string(h)), rpt, false)

	if p.metrics == nil {
		return
	}
	for _, m := range rpt.Measurements {
		if m.Distance == nil {
			continue
		}
		var azimuth, elevation float64
		if m.AoA != nil {
			azimuth = m.AoA.Azimuth.Radians
			if m.AoA.Elevation != nil {
				elevation = m.AoA.Elevation.Radians
			}
		}
		p.metrics.WriteRangingMeasurement(string(h), string(m.Peer), m.Distance.Meters, azimuth, elevation)
	}
}

// OnDataReceived implements session.Callbacks.
func (p *Publisher) OnDataReceived(h session.Handle, peer uci.PeerAddress, payload []byte) {
	body := struct {
		Peer      string `json:"peer"`
		Payload   []byte `json:"payload"`
		Timestamp string `json:"timestamp"`
	}{
		Peer:      string(peer),
		Payload:   payload,
		Timestamp: timestamp(),
	}
	p.publishJSON(p.topics.SessionData(string(h)), body, false)
}

// sessionLifecycle publishes one lifecycle event and mirrors it to InfluxDB.
func (p *Publisher) sessionLifecycle(h session.Handle, event, reason string) {
	p.publishJSON(p.topics.SessionEvent(string(h), event), sessionEvent{
		Handle:    string(h),
		Event:     event,
		Reason:    reason,
		Timestamp: timestamp(),
	}, false)
	if p.metrics != nil {
		p.metrics.WriteSessionEvent(string(h), event, reason)
	}
}

// sessionPeerEvent publishes one per-peer multicast outcome.
func (p *Publisher) sessionPeerEvent(h session.Handle, event string, peer uci.PeerAddress, reason string) {
	p.publishJSON(p.topics.SessionEvent(string(h), event), sessionEvent{
		Handle:    string(h),
		Event:     event,
		Reason:    reason,
		Peer:      string(peer),
		Timestamp: timestamp(),
	}, false)
}

// publishJSON marshals and publishes one message. Failures are logged and
// dropped; egress never blocks the coordinator.
func (p *Publisher) publishJSON(topic string, body any, retained bool) {
	if p.bus == nil {
		return
	}
	payload, err := json.Marshal(body)
	if err != nil {
		p.log.Error("marshalling event failed", "topic", topic, "error", err)
		return
	}
	if err := p.bus.Publish(topic, payload, p.qos, retained); err != nil {
		p.log.Warn("publishing event failed", "topic", topic, "error", err)
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
