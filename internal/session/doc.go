// Package session owns all active ranging sessions and drives their state
// machines against the hardware transport.
//
// # Architecture
//
//	┌────────────────────────────────────────────────────────────────────┐
//	│                          Session Registry                          │
//	│                                                                    │
//	│  ┌────────────────┐   ┌─────────────────┐   ┌──────────────────┐   │
//	│  │    Registry    │   │  command tasks  │   │   Correlator     │   │
//	│  │ (registry.go)  │──▶│  (commands.go)  │◀──│ (correlator.go)  │   │
//	│  │                │   │                 │   │                  │   │
//	│  │ • id/handle map│   │ • open/start/   │   │ • notification   │   │
//	│  │ • max sessions │   │   stop/close    │   │   ingestion      │   │
//	│  │ • per-session  │   │ • bounded waits │   │ • waiter wakeup  │   │
//	│  │   FIFO workers │   │ • reason mapping│   │ • report dispatch│   │
//	│  └────────────────┘   └─────────────────┘   └──────────────────┘   │
//	└────────────────────────────────────────────────────────────────────┘
//
// Each session runs its commands on its own FIFO worker, so commands for
// one session never interleave while different sessions proceed
// concurrently. Every hardware command creates a single-slot completion
// channel; the correlator writes it once when the matching notification
// arrives, and the command handler reads it once under a deadline. The
// registry refuses a second dispatch while a slot is unconsumed, which
// makes the one-in-flight-command-per-session invariant structural.
//
// # Key Types
//
//   - Registry: session map, admission control, per-session workers
//   - Callbacks: the per-session result surface handed in at open time
//   - Correlator: the hardware notification handler
//   - TransitionStore: SQLite-backed state transition audit trail
//
// # Usage
//
//	reg := session.NewRegistry(session.Options{Transport: tr})
//	correlator := session.NewCorrelator(reg, adapterCtrl)
//	tr.SetNotificationHandler(correlator)
//
//	handle, err := reg.OpenSession(session.OpenRequest{
//	    SessionID: 42,
//	    Caller:    "com.example.finder",
//	    Params:    uci.FiraParams{...},
//	    Callbacks: cb,
//	})
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use. The session map is
// guarded by a mutex held only for map updates, never across a hardware
// wait. Callbacks fire on worker or notification goroutines; implementations
// must not call back into the Registry synchronously from them.
package session
