package uci

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Loopback defaults.
const (
	defaultLoopbackMaxSessions = 5
	defaultLoopbackInterval    = 200 * time.Millisecond
	defaultNotifyQueueSize     = 64
)

// LoopbackConfig configures the in-process simulated transport.
type LoopbackConfig struct {
	// ChipIDs are the simulated chip identifiers. Defaults to ["chip0"].
	ChipIDs []string

	// MaxSessions is the advertised session limit. Defaults to 5.
	MaxSessions int

	// NotifyDelay is the artificial latency between a command and its
	// notification. Zero delivers as fast as the queue drains.
	NotifyDelay time.Duration

	// RangingInterval is the period between simulated measurement
	// notifications for active sessions. Defaults to 200ms.
	RangingInterval time.Duration
}

// Loopback is a simulated Transport for development and tests. Commands
// succeed immediately and the matching notifications are delivered from a
// single background goroutine, preserving the ordering contract of real
// hardware.
type Loopback struct {
	cfg     LoopbackConfig
	handler NotificationHandler

	mu          sync.Mutex
	initialized bool
	sessions    map[uint32]*loopbackSession

	notifyCh chan func(NotificationHandler)
	done     chan struct{}
	wg       sync.WaitGroup
	closeOnce sync.Once
}

// loopbackSession tracks the simulated hardware-side session state.
type loopbackSession struct {
	protocol Protocol
	state    SessionState
	peers    []PeerAddress
	stopTick chan struct{}
}

// NewLoopback creates a loopback transport. Close must be called when done.
func NewLoopback(cfg LoopbackConfig) *Loopback {
	if len(cfg.ChipIDs) == 0 {
		cfg.ChipIDs = []string{"chip0"}
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = defaultLoopbackMaxSessions
	}
	if cfg.RangingInterval <= 0 {
		cfg.RangingInterval = defaultLoopbackInterval
	}

	lb := &Loopback{
		cfg:      cfg,
		sessions: make(map[uint32]*loopbackSession),
		notifyCh: make(chan func(NotificationHandler), defaultNotifyQueueSize),
		done:     make(chan struct{}),
	}

	lb.wg.Add(1)
	go lb.notifyLoop()

	return lb
}

// SetNotificationHandler implements Transport.
func (lb *Loopback) SetNotificationHandler(h NotificationHandler) {
	lb.mu.Lock()
	lb.handler = h
	lb.mu.Unlock()
}

// ChipIDs implements Transport.
func (lb *Loopback) ChipIDs() []string {
	ids := make([]string, len(lb.cfg.ChipIDs))
	copy(ids, lb.cfg.ChipIDs)
	return ids
}

// MaxSessionCount implements Transport.
func (lb *Loopback) MaxSessionCount() int {
	return lb.cfg.MaxSessions
}

// Initialize implements Transport. All chips report ready.
func (lb *Loopback) Initialize(_ context.Context) error {
	lb.mu.Lock()
	lb.initialized = true
	lb.mu.Unlock()

	for _, chip := range lb.cfg.ChipIDs {
		id := chip
		lb.notify(func(h NotificationHandler) { h.OnDeviceStatus(id, DeviceStateReady) })
	}
	return nil
}

// Deinitialize implements Transport. Active sessions are torn down and all
// chips report off.
func (lb *Loopback) Deinitialize(_ context.Context) error {
	lb.mu.Lock()
	lb.initialized = false
	for id, s := range lb.sessions {
		lb.stopRanging(s)
		delete(lb.sessions, id)
	}
	lb.mu.Unlock()

	for _, chip := range lb.cfg.ChipIDs {
		id := chip
		lb.notify(func(h NotificationHandler) { h.OnDeviceStatus(id, DeviceStateOff) })
	}
	return nil
}

// InitSession implements Transport.
func (lb *Loopback) InitSession(_ context.Context, sessionID uint32, protocol Protocol) (Status, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if !lb.initialized {
		return StatusFailed, ErrTransportClosed
	}
	if _, ok := lb.sessions[sessionID]; ok {
		return StatusSessionDuplicate, nil
	}
	if len(lb.sessions) >= lb.cfg.MaxSessions {
		return StatusMaxSessionsExceeded, nil
	}

	lb.sessions[sessionID] = &loopbackSession{protocol: protocol, state: SessionStateInit}
	lb.notifySessionStatus(sessionID, SessionStateInit, ReasonCommands)
	return StatusOK, nil
}

// SetAppConfig implements Transport. Applying config to a freshly
// initialized session moves it to idle.
func (lb *Loopback) SetAppConfig(_ context.Context, sessionID uint32, params SessionParams) (Status, error) {
	if err := params.Validate(); err != nil {
		return StatusInvalidParams, nil //nolint:nilerr // rejection is a status, not an error
	}

	lb.mu.Lock()
	defer lb.mu.Unlock()

	s, ok := lb.sessions[sessionID]
	if !ok {
		return StatusSessionNotFound, nil
	}
	if fp, isFira := params.(FiraParams); isFira {
		s.peers = append([]PeerAddress(nil), fp.Peers...)
	}
	if s.state == SessionStateInit {
		s.state = SessionStateIdle
		lb.notifySessionStatus(sessionID, SessionStateIdle, ReasonCommands)
	}
	return StatusOK, nil
}

// StartSession implements Transport.
func (lb *Loopback) StartSession(_ context.Context, sessionID uint32) (Status, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	s, ok := lb.sessions[sessionID]
	if !ok {
		return StatusSessionNotFound, nil
	}
	if s.state != SessionStateIdle {
		return StatusRejected, nil
	}
	s.state = SessionStateActive
	lb.notifySessionStatus(sessionID, SessionStateActive, ReasonCommands)
	lb.startRanging(sessionID, s)
	return StatusOK, nil
}

// StopSession implements Transport.
func (lb *Loopback) StopSession(_ context.Context, sessionID uint32) (Status, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	s, ok := lb.sessions[sessionID]
	if !ok {
		return StatusSessionNotFound, nil
	}
	if s.state != SessionStateActive {
		return StatusRejected, nil
	}
	lb.stopRanging(s)
	s.state = SessionStateIdle
	lb.notifySessionStatus(sessionID, SessionStateIdle, ReasonCommands)
	return StatusOK, nil
}

// DeinitSession implements Transport.
func (lb *Loopback) DeinitSession(_ context.Context, sessionID uint32) (Status, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	s, ok := lb.sessions[sessionID]
	if !ok {
		return StatusSessionNotFound, nil
	}
	lb.stopRanging(s)
	delete(lb.sessions, sessionID)
	lb.notifySessionStatus(sessionID, SessionStateDeinit, ReasonCommands)
	return StatusOK, nil
}

// UpdateMulticastList implements Transport. Every targeted peer succeeds.
func (lb *Loopback) UpdateMulticastList(_ context.Context, sessionID uint32, action MulticastAction, peers []PeerAddress) (Status, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	s, ok := lb.sessions[sessionID]
	if !ok {
		return StatusSessionNotFound, nil
	}

	statuses := make([]PeerStatus, 0, len(peers))
	for _, peer := range peers {
		statuses = append(statuses, PeerStatus{Peer: peer, Status: StatusOK})
		if action == MulticastActionAdd {
			s.peers = append(s.peers, peer)
		}
	}
	update := MulticastUpdate{SessionID: sessionID, Action: action, Statuses: statuses}
	lb.notify(func(h NotificationHandler) { h.OnMulticastUpdate(update) })
	return StatusOK, nil
}

// SetCountryCode implements Transport. The special code "00" simulates a
// region where UWB is not permitted.
func (lb *Loopback) SetCountryCode(_ context.Context, code string) (Status, error) {
	if code == "00" {
		return StatusRegulationOff, nil
	}
	if len(code) != 2 {
		return StatusInvalidParams, nil
	}
	return StatusOK, nil
}

// SendData implements Transport. Frames to peers of active sessions are
// acknowledged asynchronously.
func (lb *Loopback) SendData(_ context.Context, sessionID uint32, _ PeerAddress, sequence uint16, _ []byte) (Status, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	s, ok := lb.sessions[sessionID]
	if !ok {
		return StatusSessionNotFound, nil
	}
	if s.state != SessionStateActive {
		return StatusRejected, nil
	}
	lb.notify(func(h NotificationHandler) { h.OnDataTransferStatus(sessionID, sequence, StatusOK) })
	return StatusOK, nil
}

// Close stops the notification goroutine. The transport is unusable after.
func (lb *Loopback) Close() {
	lb.closeOnce.Do(func() {
		lb.mu.Lock()
		for _, s := range lb.sessions {
			lb.stopRanging(s)
		}
		lb.mu.Unlock()
		close(lb.done)
	})
	lb.wg.Wait()
}

// startRanging begins emitting simulated two-way measurements. Caller holds mu.
func (lb *Loopback) startRanging(sessionID uint32, s *loopbackSession) {
	stop := make(chan struct{})
	s.stopTick = stop
	peers := append([]PeerAddress(nil), s.peers...)
	if len(peers) == 0 {
		peers = []PeerAddress{PeerAddress(fmt.Sprintf("%04x", sessionID&0xffff))}
	}

	lb.wg.Add(1)
	go func() {
		defer lb.wg.Done()
		ticker := time.NewTicker(lb.cfg.RangingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-lb.done:
				return
			case <-ticker.C:
				data := simulatedRound(sessionID, peers, lb.cfg.RangingInterval)
				lb.notify(func(h NotificationHandler) { h.OnRangingData(data) })
			}
		}
	}()
}

// stopRanging halts the measurement ticker, if running. Caller holds mu.
func (lb *Loopback) stopRanging(s *loopbackSession) {
	if s.stopTick != nil {
		close(s.stopTick)
		s.stopTick = nil
	}
}

// simulatedRound fabricates a plausible two-way measurement set.
func simulatedRound(sessionID uint32, peers []PeerAddress, interval time.Duration) RangingData {
	measures := make([]TwoWayMeasurement, 0, len(peers))
	for i, peer := range peers {
		measures = append(measures, TwoWayMeasurement{
			Peer:            peer,
			Status:          StatusOK,
			NLoS:            0,
			DistanceCm:      150 + 10*i,
			RSSIDbm:         -60 - i,
			AoAAzimuthDeg:   float64(15 * (i + 1)),
			AoAAzimuthFom:   90,
			AoAElevationDeg: float64(5 * (i + 1)),
			AoAElevationFom: 85,
		})
	}
	return RangingData{
		SessionID:                sessionID,
		Type:                     MeasurementTwoWay,
		CurrentRangingIntervalMs: int(interval / time.Millisecond),
		TwoWay:                   measures,
	}
}

// notifySessionStatus queues a session status notification. Caller holds mu.
func (lb *Loopback) notifySessionStatus(sessionID uint32, state SessionState, reason ReasonCode) {
	lb.notify(func(h NotificationHandler) { h.OnSessionStatus(sessionID, state, reason) })
}

// notify queues a notification for ordered delivery.
func (lb *Loopback) notify(fn func(NotificationHandler)) {
	select {
	case lb.notifyCh <- fn:
	case <-lb.done:
	}
}

// notifyLoop delivers queued notifications from a single goroutine.
func (lb *Loopback) notifyLoop() {
	defer lb.wg.Done()
	for {
		select {
		case <-lb.done:
			return
		case fn := <-lb.notifyCh:
			if lb.cfg.NotifyDelay > 0 {
				select {
				case <-time.After(lb.cfg.NotifyDelay):
				case <-lb.done:
					return
				}
			}
			lb.mu.Lock()
			h := lb.handler
			lb.mu.Unlock()
			if h != nil {
				fn(h)
			}
		}
	}
}
