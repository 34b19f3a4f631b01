package uci

import (
	"fmt"
	"time"
)

// AoAMode selects which angle-of-arrival results a Fira session negotiates.
// Reports must only carry the fields the negotiated mode allows.
type AoAMode string

// AoA result request modes.
const (
	AoAModeNone        AoAMode = "none"
	AoAModeAzimuth     AoAMode = "azimuth"
	AoAModeElevation   AoAMode = "elevation"
	AoAModeFull        AoAMode = "full"
	AoAModeInterleaved AoAMode = "interleaved"
)

// IsValid reports whether the mode is one of the defined values.
func (m AoAMode) IsValid() bool {
	switch m {
	case AoAModeNone, AoAModeAzimuth, AoAModeElevation, AoAModeFull, AoAModeInterleaved:
		return true
	default:
		return false
	}
}

// AzimuthEnabled reports whether reports may carry azimuth angles.
func (m AoAMode) AzimuthEnabled() bool {
	return m == AoAModeAzimuth || m == AoAModeFull || m == AoAModeInterleaved
}

// ElevationEnabled reports whether reports may carry elevation angles.
func (m AoAMode) ElevationEnabled() bool {
	return m == AoAModeElevation || m == AoAModeFull || m == AoAModeInterleaved
}

// SessionParams is the tagged-union of protocol-specific open/reconfigure
// parameters. Concrete types are FiraParams, CCCParams and RadarParams.
//
// Validate is called at the coordinator boundary; parameters that fail
// validation never reach the session state machine.
type SessionParams interface {
	Protocol() Protocol
	Validate() error
}

// FiraParams carries the negotiated configuration of a generic FiRa
// ranging session.
type FiraParams struct {
	// ChannelNumber is the UWB channel the session ranges on.
	ChannelNumber int `json:"channel_number"`

	// RangingInterval is the nominal period between ranging rounds.
	RangingInterval time.Duration `json:"ranging_interval"`

	// AoAResultRequest selects which angles the hardware measures and
	// which angle fields reports may carry.
	AoAResultRequest AoAMode `json:"aoa_result_request"`

	// ResultReportAzimuth enables the remote peer's azimuth in the
	// result report phase (the "destination" angle).
	ResultReportAzimuth bool `json:"result_report_azimuth"`

	// ResultReportElevation enables the remote peer's elevation in the
	// result report phase.
	ResultReportElevation bool `json:"result_report_elevation"`

	// Peers are the controlees addressed at open time. May be empty for
	// controlee-side sessions.
	Peers []PeerAddress `json:"peers,omitempty"`
}

// Protocol implements SessionParams.
func (p FiraParams) Protocol() Protocol { return ProtocolFira }

// Validate implements SessionParams.
func (p FiraParams) Validate() error {
	if !validChannel(p.ChannelNumber) {
		return fmt.Errorf("%w: fira channel %d", ErrInvalidParams, p.ChannelNumber)
	}
	if p.RangingInterval <= 0 {
		return fmt.Errorf("%w: fira ranging interval must be positive", ErrInvalidParams)
	}
	if !p.AoAResultRequest.IsValid() {
		return fmt.Errorf("%w: fira aoa mode %q", ErrInvalidParams, p.AoAResultRequest)
	}
	for _, peer := range p.Peers {
		if peer == "" {
			return fmt.Errorf("%w: fira peer address empty", ErrInvalidParams)
		}
	}
	return nil
}

// CCCParams carries the constrained channel configuration of an automotive
// digital-key session. The hop and sync parameters are negotiated by the
// vehicle and passed through opaquely.
type CCCParams struct {
	ChannelNumber int `json:"channel_number"`

	// RanMultiplier scales the base ranging round interval.
	RanMultiplier int `json:"ran_multiplier"`

	// SyncCodeIndex selects the SYNC preamble code (1..32).
	SyncCodeIndex int `json:"sync_code_index"`

	// HoppingEnabled enables channel hopping between rounds.
	HoppingEnabled bool `json:"hopping_enabled"`
}

// Protocol implements SessionParams.
func (p CCCParams) Protocol() Protocol { return ProtocolCCC }

// Validate implements SessionParams.
func (p CCCParams) Validate() error {
	if !validChannel(p.ChannelNumber) {
		return fmt.Errorf("%w: ccc channel %d", ErrInvalidParams, p.ChannelNumber)
	}
	if p.RanMultiplier <= 0 {
		return fmt.Errorf("%w: ccc ran multiplier must be positive", ErrInvalidParams)
	}
	if p.SyncCodeIndex < 1 || p.SyncCodeIndex > 32 {
		return fmt.Errorf("%w: ccc sync code index %d out of range 1..32", ErrInvalidParams, p.SyncCodeIndex)
	}
	return nil
}

// RadarParams carries the sweep configuration of a radar session.
type RadarParams struct {
	ChannelNumber int `json:"channel_number"`

	// SweepPeriod is the period between radar sweeps.
	SweepPeriod time.Duration `json:"sweep_period"`

	// SamplesPerSweep is the number of CIR samples captured per sweep.
	SamplesPerSweep int `json:"samples_per_sweep"`
}

// Protocol implements SessionParams.
func (p RadarParams) Protocol() Protocol { return ProtocolRadar }

// Validate implements SessionParams.
func (p RadarParams) Validate() error {
	if !validChannel(p.ChannelNumber) {
		return fmt.Errorf("%w: radar channel %d", ErrInvalidParams, p.ChannelNumber)
	}
	if p.SweepPeriod <= 0 {
		return fmt.Errorf("%w: radar sweep period must be positive", ErrInvalidParams)
	}
	if p.SamplesPerSweep <= 0 {
		return fmt.Errorf("%w: radar samples per sweep must be positive", ErrInvalidParams)
	}
	return nil
}

// validChannel reports whether the channel number is one the UWB PHY
// defines (FiRa consolidated channel set).
func validChannel(ch int) bool {
	switch ch {
	case 5, 6, 8, 9, 10, 12, 13, 14:
		return true
	default:
		return false
	}
}
