package uci

import (
	"errors"
	"testing"
	"time"
)

// =============================================================================
// Fira Parameter Tests
// =============================================================================

func validFira() FiraParams {
	return FiraParams{
		ChannelNumber:    9,
		RangingInterval:  200 * time.Millisecond,
		AoAResultRequest: AoAModeAzimuth,
		Peers:            []PeerAddress{"0a1b"},
	}
}

func TestFiraParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*FiraParams)
		wantErr bool
	}{
		{name: "valid", mutate: func(*FiraParams) {}},
		{name: "no peers is valid", mutate: func(p *FiraParams) { p.Peers = nil }},
		{name: "full aoa mode", mutate: func(p *FiraParams) { p.AoAResultRequest = AoAModeFull }},
		{name: "invalid channel", mutate: func(p *FiraParams) { p.ChannelNumber = 7 }, wantErr: true},
		{name: "zero channel", mutate: func(p *FiraParams) { p.ChannelNumber = 0 }, wantErr: true},
		{name: "zero interval", mutate: func(p *FiraParams) { p.RangingInterval = 0 }, wantErr: true},
		{name: "negative interval", mutate: func(p *FiraParams) { p.RangingInterval = -time.Second }, wantErr: true},
		{name: "bad aoa mode", mutate: func(p *FiraParams) { p.AoAResultRequest = "sideways" }, wantErr: true},
		{name: "empty aoa mode", mutate: func(p *FiraParams) { p.AoAResultRequest = "" }, wantErr: true},
		{name: "empty peer address", mutate: func(p *FiraParams) { p.Peers = []PeerAddress{"0a1b", ""} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validFira()
			tt.mutate(&p)

			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidParams) {
				t.Errorf("error = %v, want ErrInvalidParams", err)
			}
		})
	}
}

func TestFiraParams_Protocol(t *testing.T) {
	if got := validFira().Protocol(); got != ProtocolFira {
		t.Errorf("Protocol() = %q, want %q", got, ProtocolFira)
	}
}

// =============================================================================
// CCC Parameter Tests
// =============================================================================

func TestCCCParams_Validate(t *testing.T) {
	valid := CCCParams{ChannelNumber: 9, RanMultiplier: 4, SyncCodeIndex: 10}

	tests := []struct {
		name    string
		mutate  func(*CCCParams)
		wantErr bool
	}{
		{name: "valid", mutate: func(*CCCParams) {}},
		{name: "hopping enabled", mutate: func(p *CCCParams) { p.HoppingEnabled = true }},
		{name: "sync code lower bound", mutate: func(p *CCCParams) { p.SyncCodeIndex = 1 }},
		{name: "sync code upper bound", mutate: func(p *CCCParams) { p.SyncCodeIndex = 32 }},
		{name: "invalid channel", mutate: func(p *CCCParams) { p.ChannelNumber = 11 }, wantErr: true},
		{name: "zero ran multiplier", mutate: func(p *CCCParams) { p.RanMultiplier = 0 }, wantErr: true},
		{name: "sync code too low", mutate: func(p *CCCParams) { p.SyncCodeIndex = 0 }, wantErr: true},
		{name: "sync code too high", mutate: func(p *CCCParams) { p.SyncCodeIndex = 33 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)

			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidParams) {
				t.Errorf("error = %v, want ErrInvalidParams", err)
			}
		})
	}
}

func TestCCCParams_Protocol(t *testing.T) {
	p := CCCParams{ChannelNumber: 9, RanMultiplier: 4, SyncCodeIndex: 10}
	if got := p.Protocol(); got != ProtocolCCC {
		t.Errorf("Protocol() = %q, want %q", got, ProtocolCCC)
	}
}

// =============================================================================
// Radar Parameter Tests
// =============================================================================

func TestRadarParams_Validate(t *testing.T) {
	valid := RadarParams{ChannelNumber: 5, SweepPeriod: 50 * time.Millisecond, SamplesPerSweep: 64}

	tests := []struct {
		name    string
		mutate  func(*RadarParams)
		wantErr bool
	}{
		{name: "valid", mutate: func(*RadarParams) {}},
		{name: "invalid channel", mutate: func(p *RadarParams) { p.ChannelNumber = 3 }, wantErr: true},
		{name: "zero sweep period", mutate: func(p *RadarParams) { p.SweepPeriod = 0 }, wantErr: true},
		{name: "zero samples", mutate: func(p *RadarParams) { p.SamplesPerSweep = 0 }, wantErr: true},
		{name: "negative samples", mutate: func(p *RadarParams) { p.SamplesPerSweep = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)

			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRadarParams_Protocol(t *testing.T) {
	p := RadarParams{ChannelNumber: 5, SweepPeriod: time.Second, SamplesPerSweep: 64}
	if got := p.Protocol(); got != ProtocolRadar {
		t.Errorf("Protocol() = %q, want %q", got, ProtocolRadar)
	}
}

// =============================================================================
// AoA Mode Tests
// =============================================================================

func TestAoAMode(t *testing.T) {
	tests := []struct {
		mode      AoAMode
		valid     bool
		azimuth   bool
		elevation bool
	}{
		{mode: AoAModeNone, valid: true},
		{mode: AoAModeAzimuth, valid: true, azimuth: true},
		{mode: AoAModeElevation, valid: true, elevation: true},
		{mode: AoAModeFull, valid: true, azimuth: true, elevation: true},
		{mode: AoAModeInterleaved, valid: true, azimuth: true, elevation: true},
		{mode: "diagonal"},
		{mode: ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			if got := tt.mode.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
			if got := tt.mode.AzimuthEnabled(); got != tt.azimuth {
				t.Errorf("AzimuthEnabled() = %v, want %v", got, tt.azimuth)
			}
			if got := tt.mode.ElevationEnabled(); got != tt.elevation {
				t.Errorf("ElevationEnabled() = %v, want %v", got, tt.elevation)
			}
		})
	}
}

// =============================================================================
// Channel Tests
// =============================================================================

func TestValidChannel(t *testing.T) {
	allowed := map[int]bool{5: true, 6: true, 8: true, 9: true, 10: true, 12: true, 13: true, 14: true}

	for ch := -1; ch <= 16; ch++ {
		if got := validChannel(ch); got != allowed[ch] {
			t.Errorf("validChannel(%d) = %v, want %v", ch, got, allowed[ch])
		}
	}
}
