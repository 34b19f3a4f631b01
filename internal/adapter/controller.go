package adapter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nerrad567/uwb-ranging-core/internal/uci"
)

// Controller defaults.
const (
	// defaultWatchdogTimeout bounds a hung enable/disable before the
	// retention lock is force-released.
	defaultWatchdogTimeout = 10 * time.Second

	// defaultCommandTimeout bounds individual hardware calls.
	defaultCommandTimeout = 5 * time.Second

	// defaultRestartMaxElapsed bounds the re-enable retry loop after a
	// device error.
	defaultRestartMaxElapsed = 30 * time.Second

	// defaultDiagnosticsInterval is the minimum spacing between
	// diagnostic captures.
	defaultDiagnosticsInterval = time.Hour

	// taskQueueSize is the buffered depth of the serial task queue.
	taskQueueSize = 16
)

// ChipState is the externally visible state of one chip, and of the
// aggregate adapter.
type ChipState string

// Adapter states.
const (
	StateDisabled        ChipState = "disabled"
	StateEnabledInactive ChipState = "enabled_inactive"
	StateEnabledActive   ChipState = "enabled_active"
)

// ChangeReason qualifies an adapter state broadcast.
type ChangeReason string

// Broadcast reasons.
const (
	ReasonUnknown          ChangeReason = "unknown"
	ReasonSystemPolicy     ChangeReason = "system_policy"
	ReasonSystemRegulation ChangeReason = "system_regulation"
	ReasonSessionStarted   ChangeReason = "session_started"
)

// Listener receives adapter state broadcasts. Callbacks run on the
// controller's queue goroutine and must return promptly.
type Listener interface {
	OnAdapterStateChanged(state ChipState, reason ChangeReason)
}

// SessionCloser de-initializes every registered session. The session
// registry implements it; the controller calls it before hardware teardown
// and on restart.
type SessionCloser interface {
	DeinitAll(ctx context.Context)
}

// RetentionLock is the abstract power-retention hold acquired around
// enable/disable so the platform does not suspend mid-operation.
// Release must be idempotent: the watchdog may have released already.
type RetentionLock interface {
	Acquire()
	Release()
}

// noopRetentionLock is the default when no platform lock is supplied.
type noopRetentionLock struct{}

func (noopRetentionLock) Acquire() {}
func (noopRetentionLock) Release() {}

// Logger is the consumer-side logging interface for the controller.
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

// Snapshot is a consistent view of the controller's state, obtained
// through a query message on the task queue.
type Snapshot struct {
	State          ChipState            `json:"state"`
	Reason         ChangeReason         `json:"reason"`
	Chips          map[string]ChipState `json:"chips"`
	CountryCode    CountryCode          `json:"country_code"`
	EnableFailures int                  `json:"enable_failures"`
}

// Options configures a Controller.
type Options struct {
	// Transport is the hardware command surface. Required.
	Transport uci.Transport

	// Sessions closes all registered sessions before disable/restart.
	// Required.
	Sessions SessionCloser

	// Country supplies the regulatory country code. Required.
	Country CountryCodeSource

	// Lock is the platform power-retention hold. Optional.
	Lock RetentionLock

	// Logger receives controller log output. Optional.
	Logger Logger

	// WatchdogTimeout bounds a hung enable/disable. Optional.
	WatchdogTimeout time.Duration

	// CommandTimeout bounds individual hardware calls. Optional.
	CommandTimeout time.Duration

	// RestartMaxElapsed bounds the re-enable retry loop. Optional.
	RestartMaxElapsed time.Duration

	// DiagnosticsEnabled gates diagnostic captures on device errors.
	DiagnosticsEnabled bool

	// DiagnosticsMinInterval throttles successive captures. Optional.
	DiagnosticsMinInterval time.Duration

	// DiagnosticsCapture is invoked (throttled) on fatal device errors.
	// Optional.
	DiagnosticsCapture func(chipID string, status uci.Status)
}

// Controller serializes adapter-level tasks and owns the per-chip state
// map. See the package documentation for the aggregate derivation rules.
type Controller struct {
	tr       uci.Transport
	sessions SessionCloser
	country  CountryCodeSource
	lock     RetentionLock
	log      Logger

	watchdogTimeout   time.Duration
	commandTimeout    time.Duration
	restartMaxElapsed time.Duration

	diagEnabled     bool
	diagMinInterval time.Duration
	diagCapture     func(chipID string, status uci.Status)

	// Owned by the queue goroutine.
	chips            map[string]ChipState
	countryPermitted bool
	currentCode      CountryCode
	enableFailures   int
	lastDiagnostics  time.Time
	lastState        ChipState
	lastReason       ChangeReason
	broadcastDone    bool

	tasks chan func()
	done  chan struct{}
	wg    sync.WaitGroup
	stopOnce sync.Once

	listeners  map[int]Listener
	nextListID int
	listenerMu sync.Mutex

	snapshot   Snapshot
	snapshotMu sync.RWMutex
}

// NewController creates a Controller. Start must be called before use.
func NewController(opts Options) (*Controller, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("%w: transport is required", ErrInvalidOptions)
	}
	if opts.Sessions == nil {
		return nil, fmt.Errorf("%w: session closer is required", ErrInvalidOptions)
	}
	if opts.Country == nil {
		return nil, fmt.Errorf("%w: country code source is required", ErrInvalidOptions)
	}
	if opts.Lock == nil {
		opts.Lock = noopRetentionLock{}
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.WatchdogTimeout <= 0 {
		opts.WatchdogTimeout = defaultWatchdogTimeout
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}
	if opts.RestartMaxElapsed <= 0 {
		opts.RestartMaxElapsed = defaultRestartMaxElapsed
	}
	if opts.DiagnosticsMinInterval <= 0 {
		opts.DiagnosticsMinInterval = defaultDiagnosticsInterval
	}

	chips := make(map[string]ChipState)
	for _, id := range opts.Transport.ChipIDs() {
		chips[id] = StateDisabled
	}

	c := &Controller{
		tr:                opts.Transport,
		sessions:          opts.Sessions,
		country:           opts.Country,
		lock:              opts.Lock,
		log:               opts.Logger,
		watchdogTimeout:   opts.WatchdogTimeout,
		commandTimeout:    opts.CommandTimeout,
		restartMaxElapsed: opts.RestartMaxElapsed,
		diagEnabled:       opts.DiagnosticsEnabled,
		diagMinInterval:   opts.DiagnosticsMinInterval,
		diagCapture:       opts.DiagnosticsCapture,
		chips:             chips,
		lastState:         StateDisabled,
		lastReason:        ReasonUnknown,
		tasks:             make(chan func(), taskQueueSize),
		done:              make(chan struct{}),
		listeners:         make(map[int]Listener),
	}
	c.snapshot = Snapshot{State: StateDisabled, Reason: ReasonUnknown, Chips: map[string]ChipState{}}

	return c, nil
}

// Start launches the task queue goroutine and hooks the country code
// change stream.
func (c *Controller) Start(ctx context.Context) {
	c.country.SetOnChange(func(code CountryCode) {
		c.submit(func() { c.handleCountryChange(code) })
	})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case task := <-c.tasks:
				task()
			}
		}
	}()
}

// Stop halts the task queue. Pending tasks are dropped.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
	c.wg.Wait()
}

// Enable requests hardware bring-up. Idempotent while already enabled.
func (c *Controller) Enable() {
	c.submit(func() { c.handleEnable() })
}

// Disable requests hardware tear-down. All sessions are de-initialized
// first. Idempotent while already disabled.
func (c *Controller) Disable() {
	c.submit(func() { c.handleDisable() })
}

// Restart de-initializes all sessions, disables and re-enables the
// hardware. Used on fatal device errors.
func (c *Controller) Restart() {
	c.submit(func() { c.handleRestart() })
}

// OnDeviceStatus feeds a chip-level state notification into the queue.
// Called by the notification correlator; never blocks. A status that
// finds the queue full is dropped; the next one carries fresher state.
func (c *Controller) OnDeviceStatus(chipID string, state uci.DeviceState) {
	if !c.trySubmit(func() { c.handleDeviceStatus(chipID, state) }) {
		c.log.Warn("device status dropped, task queue busy", "chip_id", chipID, "state", state)
	}
}

// OnGenericError feeds a device-level error notification into the queue.
// Always triggers a restart, optionally a throttled diagnostic capture.
// Called by the notification correlator; never blocks.
func (c *Controller) OnGenericError(chipID string, status uci.Status) {
	queued := c.trySubmit(func() {
		c.log.Error("device error notification", "chip_id", chipID, "status", status)
		c.maybeCaptureDiagnostics(chipID, status)
		c.handleRestart()
	})
	if !queued {
		c.log.Warn("device error dropped, task queue busy", "chip_id", chipID, "status", status)
	}
}

// RegisterListener adds a state listener and returns its handle. The
// listener immediately receives the last broadcast state, if any.
func (c *Controller) RegisterListener(l Listener) int {
	c.listenerMu.Lock()
	c.nextListID++
	id := c.nextListID
	c.listeners[id] = l
	c.listenerMu.Unlock()

	c.snapshotMu.RLock()
	snap := c.snapshot
	c.snapshotMu.RUnlock()
	if snap.Reason != ReasonUnknown {
		l.OnAdapterStateChanged(snap.State, snap.Reason)
	}
	return id
}

// UnregisterListener removes a listener by handle.
func (c *Controller) UnregisterListener(id int) {
	c.listenerMu.Lock()
	delete(c.listeners, id)
	c.listenerMu.Unlock()
}

// State returns a consistent snapshot via a query message. Falls back to
// the last published snapshot when the queue is stopped.
func (c *Controller) State() Snapshot {
	reply := make(chan Snapshot, 1)
	submitted := c.submit(func() { reply <- c.buildSnapshot() })
	if submitted {
		select {
		case snap := <-reply:
			return snap
		case <-c.done:
		}
	}
	c.snapshotMu.RLock()
	defer c.snapshotMu.RUnlock()
	return c.snapshot
}

// submit enqueues a task, reporting false if the controller is stopped.
func (c *Controller) submit(task func()) bool {
	select {
	case c.tasks <- task:
		return true
	case <-c.done:
		return false
	}
}

// trySubmit enqueues a task without blocking. The notification entry
// points use it; the hardware callback goroutine must never stall on a
// busy queue.
func (c *Controller) trySubmit(task func()) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.tasks <- task:
		return true
	default:
		return false
	}
}

// handleEnable runs on the queue goroutine.
func (c *Controller) handleEnable() {
	if !c.allDisabled() {
		c.log.Debug("enable requested while already enabled")
		c.broadcastIfChanged(c.deriveReason())
		return
	}
	if err := c.enableOnce(); err != nil {
		c.log.Error("enable failed", "error", err, "failures", c.enableFailures)
	}
}

// enableOnce performs one bring-up attempt under watchdog and lock.
func (c *Controller) enableOnce() error {
	c.lock.Acquire()
	watchdog := time.AfterFunc(c.watchdogTimeout, func() {
		c.log.Warn("enable watchdog fired, releasing retention lock")
		c.lock.Release()
	})
	defer watchdog.Stop()
	defer c.lock.Release()

	ctx, cancel := context.WithTimeout(context.Background(), c.commandTimeout)
	defer cancel()

	if err := c.tr.Initialize(ctx); err != nil {
		c.enableFailures++
		c.setAllChips(StateDisabled)
		c.broadcastIfChanged(ReasonSystemPolicy)
		return fmt.Errorf("%w: %w", ErrEnableFailed, err)
	}

	// Hardware is up; chips report ready until a session starts.
	c.setAllChips(StateEnabledInactive)
	c.applyCountryCode(ctx)
	c.broadcastIfChanged(c.deriveReason())
	return nil
}

// handleDisable runs on the queue goroutine.
func (c *Controller) handleDisable() {
	if c.allDisabled() {
		c.log.Debug("disable requested while already disabled")
		return
	}
	c.disableInternal()
}

// disableInternal tears the hardware down. Chips are forced to Disabled
// regardless of what the deinitialize call itself reports.
func (c *Controller) disableInternal() {
	c.lock.Acquire()
	watchdog := time.AfterFunc(c.watchdogTimeout, func() {
		c.log.Warn("disable watchdog fired, releasing retention lock")
		c.lock.Release()
	})
	defer watchdog.Stop()
	defer c.lock.Release()

	// The externally visible state flips first, matching the contract
	// that callers never see an enabled adapter while teardown runs.
	c.setAllChips(StateDisabled)
	c.broadcastIfChanged(ReasonSystemPolicy)

	ctx, cancel := context.WithTimeout(context.Background(), c.watchdogTimeout)
	defer cancel()

	c.sessions.DeinitAll(ctx)

	if err := c.tr.Deinitialize(ctx); err != nil {
		c.log.Error("hardware deinitialize failed", "error", err)
	}
	c.setAllChips(StateDisabled)
}

// handleRestart runs on the queue goroutine. The teardown happens inline;
// the re-enable retry loop runs on its own goroutine and submits each
// attempt back onto the queue, so notifications keep draining while the
// backoff waits out a dead radio.
func (c *Controller) handleRestart() {
	c.log.Warn("restarting adapter")
	c.disableInternal()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = c.restartMaxElapsed
		err := backoff.Retry(func() error {
			reply := make(chan error, 1)
			if !c.submit(func() { reply <- c.enableOnce() }) {
				return backoff.Permanent(ErrNotRunning)
			}
			select {
			case attemptErr := <-reply:
				return attemptErr
			case <-c.done:
				return backoff.Permanent(ErrNotRunning)
			}
		}, bo)
		if err != nil {
			c.log.Error("restart gave up", "error", err)
		}
	}()
}

// handleDeviceStatus runs on the queue goroutine.
func (c *Controller) handleDeviceStatus(chipID string, state uci.DeviceState) {
	if _, known := c.chips[chipID]; !known {
		c.log.Warn("device status for unknown chip dropped", "chip_id", chipID, "state", state)
		return
	}

	switch state {
	case uci.DeviceStateOff:
		c.chips[chipID] = StateDisabled
		c.broadcastIfChanged(ReasonSystemPolicy)
	case uci.DeviceStateReady:
		c.chips[chipID] = StateEnabledInactive
		c.broadcastIfChanged(c.deriveReason())
	case uci.DeviceStateActive:
		c.chips[chipID] = StateEnabledActive
		c.broadcastIfChanged(ReasonSessionStarted)
	case uci.DeviceStateError:
		c.log.Error("chip reported error state", "chip_id", chipID)
		c.maybeCaptureDiagnostics(chipID, uci.StatusFailed)
		c.handleRestart()
	default:
		c.log.Warn("unrecognized device state dropped", "chip_id", chipID, "state", state)
	}
}

// handleCountryChange runs on the queue goroutine. A code change never
// re-initializes the hardware; it only reprograms the code and recomputes
// the aggregate.
func (c *Controller) handleCountryChange(code CountryCode) {
	c.log.Info("country code changed", "code", code)
	ctx, cancel := context.WithTimeout(context.Background(), c.commandTimeout)
	defer cancel()

	c.currentCode = code
	if !c.allDisabledIgnoringCountry() {
		c.programCountryCode(ctx, code)
	} else {
		c.countryPermitted = code.IsValid()
	}
	c.broadcastIfChanged(c.deriveReason())
}

// applyCountryCode programs the current code during enable.
func (c *Controller) applyCountryCode(ctx context.Context) {
	code := c.country.CountryCode()
	c.currentCode = code
	c.programCountryCode(ctx, code)
}

// programCountryCode pushes the code to hardware and records whether UWB
// is permitted under it.
func (c *Controller) programCountryCode(ctx context.Context, code CountryCode) {
	if !code.IsValid() {
		c.log.Warn("country code invalid, adapter gated off", "code", code)
		c.countryPermitted = false
		return
	}

	status, err := c.tr.SetCountryCode(ctx, string(code))
	switch {
	case err != nil:
		c.log.Error("setting country code failed", "code", code, "error", err)
		c.countryPermitted = false
	case status == uci.StatusRegulationOff:
		c.log.Warn("uwb not permitted in region", "code", code)
		c.countryPermitted = false
	case !status.IsOK():
		c.log.Error("country code rejected", "code", code, "status", status)
		c.countryPermitted = false
	default:
		c.countryPermitted = true
	}
}

// maybeCaptureDiagnostics invokes the capture hook, throttled by the
// minimum interval.
func (c *Controller) maybeCaptureDiagnostics(chipID string, status uci.Status) {
	if !c.diagEnabled || c.diagCapture == nil {
		return
	}
	now := time.Now()
	if !c.lastDiagnostics.IsZero() && now.Sub(c.lastDiagnostics) < c.diagMinInterval {
		c.log.Debug("diagnostic capture throttled", "chip_id", chipID)
		return
	}
	c.lastDiagnostics = now
	c.diagCapture(chipID, status)
}

// aggregate derives the externally visible state from the chip map and
// country permission.
func (c *Controller) aggregate() ChipState {
	if !c.countryPermitted {
		return StateDisabled
	}
	anyActive := false
	for _, state := range c.chips {
		switch state {
		case StateDisabled:
			return StateDisabled
		case StateEnabledActive:
			anyActive = true
		}
	}
	if anyActive {
		return StateEnabledActive
	}
	return StateEnabledInactive
}

// deriveReason picks the broadcast reason for the current aggregate.
func (c *Controller) deriveReason() ChangeReason {
	if !c.countryPermitted {
		return ReasonSystemRegulation
	}
	if c.aggregate() == StateEnabledActive {
		return ReasonSessionStarted
	}
	return ReasonSystemPolicy
}

// broadcastIfChanged notifies listeners when the (state, reason) pair
// moved since the last broadcast. Repeated identical broadcasts are
// suppressed.
func (c *Controller) broadcastIfChanged(reason ChangeReason) {
	state := c.aggregate()
	if c.broadcastDone && state == c.lastState && reason == c.lastReason {
		return
	}
	c.lastState = state
	c.lastReason = reason
	c.broadcastDone = true

	snap := c.buildSnapshot()
	c.snapshotMu.Lock()
	c.snapshot = snap
	c.snapshotMu.Unlock()

	c.log.Info("adapter state changed", "state", state, "reason", reason)

	c.listenerMu.Lock()
	listeners := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.listenerMu.Unlock()

	for _, l := range listeners {
		l.OnAdapterStateChanged(state, reason)
	}
}

// buildSnapshot copies the queue-owned state into an external view.
func (c *Controller) buildSnapshot() Snapshot {
	chips := make(map[string]ChipState, len(c.chips))
	for id, state := range c.chips {
		chips[id] = state
	}
	return Snapshot{
		State:          c.lastState,
		Reason:         c.lastReason,
		Chips:          chips,
		CountryCode:    c.currentCode,
		EnableFailures: c.enableFailures,
	}
}

// setAllChips forces every chip to the given state.
func (c *Controller) setAllChips(state ChipState) {
	for id := range c.chips {
		c.chips[id] = state
	}
}

// allDisabled reports whether every chip is disabled.
func (c *Controller) allDisabled() bool {
	return c.allDisabledIgnoringCountry()
}

// allDisabledIgnoringCountry reports chip-level disablement without the
// country gate, used to decide whether hardware calls are worthwhile.
func (c *Controller) allDisabledIgnoringCountry() bool {
	for _, state := range c.chips {
		if state != StateDisabled {
			return false
		}
	}
	return true
}
