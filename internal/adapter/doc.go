// Package adapter owns the externally visible enable/disable state of the
// UWB subsystem, aggregated across one or more radio chips.
//
// # Architecture
//
// A single task queue serializes Enable, Disable and Restart so hardware
// bring-up and tear-down never interleave. Device status notifications and
// country code changes feed the same queue; each mutation recomputes the
// aggregate state and broadcasts it to registered listeners only when the
// (state, reason) pair actually changed.
//
// Aggregate derivation: Disabled if any chip is Disabled; else EnabledActive
// if any chip is EnabledActive; else EnabledInactive. An absent or invalid
// regulatory country code forces the aggregate to Disabled regardless of
// chip readiness.
//
// # Key Types
//
//   - Controller: the task queue and chip state map
//   - ChipState / ChangeReason: the broadcast vocabulary
//   - CountryCodeSource: supplies the regulatory code and change events
//   - RetentionLock: abstract power-retention hold around enable/disable
//
// # Usage
//
//	ctrl, err := adapter.NewController(adapter.Options{
//	    Transport: tr,
//	    Sessions:  registry,
//	    Country:   source,
//	})
//	ctrl.Start(ctx)
//	id := ctrl.RegisterListener(listener)
//	ctrl.Enable()
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Chip state is owned by
// the queue goroutine; State() obtains a snapshot through a query message.
package adapter
