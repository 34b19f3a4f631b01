package session

import (
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/uwb-ranging-core/internal/report"
	"github.com/nerrad567/uwb-ranging-core/internal/uci"
)

// recordingSink captures device-level notifications.
type recordingSink struct {
	mu      sync.Mutex
	devices []uci.DeviceState
	errors  []uci.Status
}

func (s *recordingSink) OnDeviceStatus(_ string, state uci.DeviceState) {
	s.mu.Lock()
	s.devices = append(s.devices, state)
	s.mu.Unlock()
}

func (s *recordingSink) OnGenericError(_ string, status uci.Status) {
	s.mu.Lock()
	s.errors = append(s.errors, status)
	s.mu.Unlock()
}

// toggleGate flips permission at runtime.
type toggleGate struct {
	mu   sync.Mutex
	deny bool
}

func (g *toggleGate) set(deny bool) {
	g.mu.Lock()
	g.deny = deny
	g.mu.Unlock()
}

func (g *toggleGate) CheckRangingPermission(string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.deny
}

// newCorrelatorFixture wires a registry, correlator and sink over a fake
// transport and returns all three.
func newCorrelatorFixture(t *testing.T, gate PermissionGate) (*Registry, *Correlator, *recordingSink) {
	t.Helper()
	tr := newFakeTransport()
	r, err := NewRegistry(Options{Transport: tr, Gate: gate})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	t.Cleanup(r.Close)
	sink := &recordingSink{}
	c := NewCorrelator(r, sink, nil)
	tr.SetNotificationHandler(c)
	return r, c, sink
}

// =============================================================================
// Device Routing Tests
// =============================================================================

func TestCorrelator_DeviceEventsToSink(t *testing.T) {
	_, c, sink := newCorrelatorFixture(t, nil)

	c.OnDeviceStatus("chip0", uci.DeviceStateReady)
	c.OnGenericError("chip0", uci.StatusFailed)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.devices) != 1 || sink.devices[0] != uci.DeviceStateReady {
		t.Errorf("devices = %v, want [ready]", sink.devices)
	}
	if len(sink.errors) != 1 || sink.errors[0] != uci.StatusFailed {
		t.Errorf("errors = %v, want [failed]", sink.errors)
	}
}

func TestCorrelator_NilSink(t *testing.T) {
	tr := newFakeTransport()
	r, err := NewRegistry(Options{Transport: tr})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	t.Cleanup(r.Close)
	c := NewCorrelator(r, nil, nil)

	// Device events without a sink are dropped, not a panic.
	c.OnDeviceStatus("chip0", uci.DeviceStateReady)
	c.OnGenericError("chip0", uci.StatusFailed)
}

// =============================================================================
// Session Status Tests
// =============================================================================

func TestCorrelator_UnknownSessionDropped(t *testing.T) {
	_, c, _ := newCorrelatorFixture(t, nil)

	// None of these may panic or leak work for an unregistered id.
	c.OnSessionStatus(99, uci.SessionStateActive, uci.ReasonCommands)
	c.OnMulticastUpdate(uci.MulticastUpdate{SessionID: 99})
	c.OnRangingData(uci.RangingData{SessionID: 99, Type: uci.MeasurementTwoWay})
	c.OnDataTransferStatus(99, 0, uci.StatusOK)
	c.OnDataReceived(99, "0a1b", []byte("x"))
}

func TestCorrelator_RemoteStop(t *testing.T) {
	r, c, _ := newCorrelatorFixture(t, nil)
	cb := newRecordingCallbacks()
	h := openSession(t, r, 1, cb)

	if err := r.StartRanging(h); err != nil {
		t.Fatalf("StartRanging() error = %v", err)
	}
	cb.expect(t, "started")

	// The controller side halted ranging; no local command is pending.
	c.OnSessionStatus(1, uci.SessionStateIdle, uci.ReasonRemoteRequest)

	ev := cb.expect(t, "stopped")
	if ev.reason != ReasonRemoteRequest {
		t.Errorf("stopped reason = %q, want remote_request", ev.reason)
	}

	// The session survives a remote stop.
	if r.Count() != 1 {
		t.Errorf("Count() = %d after remote stop, want 1", r.Count())
	}
}

func TestCorrelator_MaxRetryStop(t *testing.T) {
	r, c, _ := newCorrelatorFixture(t, nil)
	cb := newRecordingCallbacks()
	h := openSession(t, r, 1, cb)

	if err := r.StartRanging(h); err != nil {
		t.Fatalf("StartRanging() error = %v", err)
	}
	cb.expect(t, "started")

	c.OnSessionStatus(1, uci.SessionStateIdle, uci.ReasonMaxRetryReached)

	ev := cb.expect(t, "stopped")
	if ev.reason != ReasonMaxRetryReached {
		t.Errorf("stopped reason = %q, want max_retry_reached", ev.reason)
	}
}

func TestCorrelator_HardwareInitiatedClose(t *testing.T) {
	r, c, _ := newCorrelatorFixture(t, nil)
	cb := newRecordingCallbacks()
	openSession(t, r, 1, cb)

	// The hardware deinitialized the session on its own.
	c.OnSessionStatus(1, uci.SessionStateDeinit, uci.ReasonMaxRetryReached)

	ev := cb.expect(t, "closed")
	if ev.reason != ReasonMaxRetryReached {
		t.Errorf("closed reason = %q, want max_retry_reached", ev.reason)
	}

	deadline := time.Now().Add(testWait)
	for r.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Count() = %d, want 0 after hardware close", r.Count())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// =============================================================================
// Ranging Data Tests
// =============================================================================

func TestCorrelator_RangingData(t *testing.T) {
	r, c, _ := newCorrelatorFixture(t, nil)
	cb := newRecordingCallbacks()
	openSession(t, r, 1, cb)

	c.OnRangingData(uci.RangingData{
		SessionID: 1,
		Type:      uci.MeasurementTwoWay,
		TwoWay: []uci.TwoWayMeasurement{
			{Peer: "0a1b", Status: uci.StatusOK, DistanceCm: 150, RSSIDbm: -60, AoAAzimuthDeg: 30, AoAAzimuthFom: 90},
		},
	})

	select {
	case rpt := <-cb.reports:
		if rpt.SessionID != 1 {
			t.Errorf("report SessionID = %d, want 1", rpt.SessionID)
		}
		if len(rpt.Measurements) != 1 {
			t.Fatalf("len(Measurements) = %d, want 1", len(rpt.Measurements))
		}
		if rpt.Measurements[0].Distance == nil || rpt.Measurements[0].Distance.Meters != 1.5 {
			t.Errorf("Distance = %v, want 1.5m", rpt.Measurements[0].Distance)
		}
	case <-time.After(testWait):
		t.Fatal("timed out waiting for ranging report")
	}
}

// blockingCallbacks stalls ranging result delivery until released.
type blockingCallbacks struct {
	*recordingCallbacks
	release chan struct{}
}

func (c *blockingCallbacks) OnRangingResult(h Handle, rpt report.RangingReport) {
	<-c.release
	c.recordingCallbacks.OnRangingResult(h, rpt)
}

func TestCorrelator_RangingDataDoesNotBlockNotifier(t *testing.T) {
	r, c, _ := newCorrelatorFixture(t, nil)
	cb := &blockingCallbacks{
		recordingCallbacks: newRecordingCallbacks(),
		release:            make(chan struct{}),
	}

	if _, err := r.OpenSession(OpenRequest{
		SessionID: 1, Caller: "x", Params: testParams(), Callbacks: cb,
	}); err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	cb.expect(t, "opened")

	data := uci.RangingData{
		SessionID: 1,
		Type:      uci.MeasurementTwoWay,
		TwoWay:    []uci.TwoWayMeasurement{{Peer: "0a1b", Status: uci.StatusOK, DistanceCm: 100}},
	}

	// A subscriber stalled on the first report must not stall the
	// notification goroutine; delivery is queued on the session worker.
	start := time.Now()
	c.OnRangingData(data)
	c.OnRangingData(data)
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("OnRangingData blocked for %v", elapsed)
	}

	close(cb.release)
	select {
	case <-cb.reports:
	case <-time.After(testWait):
		t.Fatal("timed out waiting for ranging report")
	}
}

func TestCorrelator_RangingDataWithheldWhenRevoked(t *testing.T) {
	gate := &toggleGate{}
	r, c, _ := newCorrelatorFixture(t, gate)
	cb := newRecordingCallbacks()
	openSession(t, r, 1, cb)

	gate.set(true)

	c.OnRangingData(uci.RangingData{
		SessionID: 1,
		Type:      uci.MeasurementTwoWay,
		TwoWay:    []uci.TwoWayMeasurement{{Peer: "0a1b", Status: uci.StatusOK, DistanceCm: 100}},
	})

	select {
	case <-cb.reports:
		t.Fatal("ranging report delivered despite revoked permission")
	case <-time.After(100 * time.Millisecond):
	}

	// Revocation withholds results; it does not tear the session down.
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

// =============================================================================
// Data Transfer Tests
// =============================================================================

func TestCorrelator_TransferStatusWithoutPendingSend(t *testing.T) {
	r, c, _ := newCorrelatorFixture(t, nil)
	cb := newRecordingCallbacks()
	openSession(t, r, 1, cb)

	// No send was queued for this sequence; nothing fires.
	c.OnDataTransferStatus(1, 42, uci.StatusOK)

	select {
	case ev := <-cb.events:
		t.Fatalf("unexpected callback %q", ev.name)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCorrelator_DataReceived(t *testing.T) {
	r, c, _ := newCorrelatorFixture(t, nil)
	cb := newRecordingCallbacks()
	openSession(t, r, 1, cb)

	c.OnDataReceived(1, "0a1b", []byte("payload"))

	ev := cb.expect(t, "data_received")
	if ev.peer != "0a1b" {
		t.Errorf("data_received peer = %q, want 0a1b", ev.peer)
	}
}

func TestCorrelator_DataReceivedDeniedWhenRevoked(t *testing.T) {
	gate := &toggleGate{}
	r, c, _ := newCorrelatorFixture(t, gate)
	cb := newRecordingCallbacks()
	openSession(t, r, 1, cb)

	gate.set(true)

	c.OnDataReceived(1, "0a1b", []byte("payload"))

	ev := cb.expect(t, "data_receive_failed")
	if ev.reason != ReasonSystemPolicy {
		t.Errorf("data_receive_failed reason = %q, want system_policy", ev.reason)
	}
}
