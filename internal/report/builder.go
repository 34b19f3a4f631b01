package report

import (
	"math"
	"time"

	"github.com/nerrad567/uwb-ranging-core/internal/uci"
)

// centimetersPerMeter converts hardware distances to meters.
const centimetersPerMeter = 100.0

// fomScale converts a figure-of-merit (0..100) to a confidence (0..1).
const fomScale = 100.0

// Angle is one measured angle with its confidence.
type Angle struct {
	// Radians is the measured angle.
	Radians float64 `json:"radians"`

	// Confidence is the hardware figure of merit scaled to 0..1.
	Confidence float64 `json:"confidence"`
}

// AngleOfArrival is an azimuth measurement with optional elevation.
// Azimuth is the mandatory component; elevation is only present when the
// session negotiated it.
type AngleOfArrival struct {
	Azimuth   Angle  `json:"azimuth"`
	Elevation *Angle `json:"elevation,omitempty"`
}

// Distance is a measured range to a peer.
type Distance struct {
	Meters float64 `json:"meters"`
}

// DlTDoAInfo carries the timing observations of a DL-TDoA measurement,
// consumed by downstream position solvers.
type DlTDoAInfo struct {
	MessageType           int    `json:"message_type"`
	MessageControl        int    `json:"message_control"`
	BlockIndex            int    `json:"block_index"`
	TxTimestamp           uint64 `json:"tx_timestamp"`
	RxTimestamp           uint64 `json:"rx_timestamp"`
	AnchorCfo             int    `json:"anchor_cfo"`
	Cfo                   int    `json:"cfo"`
	InitiatorReplyTime    uint32 `json:"initiator_reply_time"`
	ResponderReplyTime    uint32 `json:"responder_reply_time"`
	InitiatorResponderTof int    `json:"initiator_responder_tof"`
	AnchorLocation        []byte `json:"anchor_location,omitempty"`
	ActiveRangingRounds   []byte `json:"active_ranging_rounds,omitempty"`
}

// Measurement is one peer's entry in a ranging report. Optional fields are
// nil when the measurement failed or the session's configuration excludes
// them.
type Measurement struct {
	Peer   uci.PeerAddress `json:"peer"`
	Status uci.Status      `json:"status"`

	// LineOfSight is the hardware NLoS indicator: 0 LoS, 1 NLoS,
	// 255 unable to determine.
	LineOfSight int `json:"line_of_sight"`

	Distance *Distance       `json:"distance,omitempty"`
	RSSIDbm  *int            `json:"rssi_dbm,omitempty"`
	AoA      *AngleOfArrival `json:"aoa,omitempty"`

	// DestAoA is the remote peer's view of our angle, present only when
	// the session negotiated result report phase angles.
	DestAoA *AngleOfArrival `json:"dest_aoa,omitempty"`

	DlTDoA *DlTDoAInfo `json:"dl_tdoa,omitempty"`
}

// RangingReport is the caller-facing form of one measurement notification.
type RangingReport struct {
	SessionID  uint32        `json:"session_id"`
	CapturedAt time.Time     `json:"captured_at"`
	Measurements []Measurement `json:"measurements"`

	// Raw is the undecoded notification payload for vendor consumers.
	Raw []byte `json:"raw,omitempty"`
}

// aoaScope is the resolved reporting scope for one session.
type aoaScope struct {
	azimuth       bool
	elevation     bool
	destAzimuth   bool
	destElevation bool
}

// scopeFor resolves the AoA reporting scope from session parameters.
// Non-Fira protocols carry whatever the hardware measured.
func scopeFor(params uci.SessionParams) aoaScope {
	fp, ok := params.(uci.FiraParams)
	if !ok {
		return aoaScope{azimuth: true, elevation: true}
	}
	return aoaScope{
		azimuth:       fp.AoAResultRequest.AzimuthEnabled(),
		elevation:     fp.AoAResultRequest.ElevationEnabled(),
		destAzimuth:   fp.ResultReportAzimuth,
		destElevation: fp.ResultReportElevation,
	}
}

// Build converts a raw measurement notification into a report, honoring
// the session's negotiated reporting options. Unknown measurement types
// and empty notifications yield an empty report.
func Build(data uci.RangingData, params uci.SessionParams, capturedAt time.Time) RangingReport {
	rpt := RangingReport{
		SessionID:    data.SessionID,
		CapturedAt:   capturedAt,
		Measurements: []Measurement{},
		Raw:          data.Raw,
	}
	if data.Empty() {
		return rpt
	}

	scope := scopeFor(params)

	switch data.Type {
	case uci.MeasurementTwoWay:
		for _, m := range data.TwoWay {
			rpt.Measurements = append(rpt.Measurements, buildTwoWay(m, scope))
		}
	case uci.MeasurementOwrAoA:
		rpt.Measurements = append(rpt.Measurements, buildOwrAoA(*data.OwrAoA, scope))
	case uci.MeasurementDlTDoA:
		for _, m := range data.DlTDoA {
			rpt.Measurements = append(rpt.Measurements, buildDlTDoA(m, scope))
		}
	}
	return rpt
}

// buildTwoWay converts one two-way ranging entry.
func buildTwoWay(m uci.TwoWayMeasurement, scope aoaScope) Measurement {
	out := Measurement{
		Peer:        m.Peer,
		Status:      m.Status,
		LineOfSight: m.NLoS,
	}
	out.RSSIDbm = rssiField(m.RSSIDbm)

	if !m.Status.IsOK() {
		return out
	}

	// Distance is mandatory on success; angles follow the session scope.
	out.Distance = &Distance{Meters: float64(m.DistanceCm) / centimetersPerMeter}
	out.AoA = buildAngle(scope.azimuth, scope.elevation,
		m.AoAAzimuthDeg, m.AoAAzimuthFom, m.AoAElevationDeg, m.AoAElevationFom)
	out.DestAoA = buildAngle(scope.destAzimuth, scope.destElevation,
		m.DestAzimuthDeg, m.DestAzimuthFom, m.DestElevationDeg, m.DestElevationFom)
	return out
}

// buildOwrAoA converts a one-way AoA observation.
func buildOwrAoA(m uci.OwrAoAMeasurement, scope aoaScope) Measurement {
	out := Measurement{
		Peer:        m.Peer,
		Status:      m.Status,
		LineOfSight: m.NLoS,
	}
	if !m.Status.IsOK() {
		return out
	}
	out.AoA = buildAngle(scope.azimuth, scope.elevation,
		m.AoAAzimuthDeg, m.AoAAzimuthFom, m.AoAElevationDeg, m.AoAElevationFom)
	return out
}

// buildDlTDoA converts one anchor's DL-TDoA entry. Timing metadata is
// carried regardless of status; angles follow the session scope.
func buildDlTDoA(m uci.DlTDoAMeasurement, scope aoaScope) Measurement {
	out := Measurement{
		Peer:        m.Peer,
		Status:      m.Status,
		LineOfSight: m.NLoS,
	}
	out.RSSIDbm = rssiField(m.RSSIDbm)

	if m.Status.IsOK() {
		out.AoA = buildAngle(scope.azimuth, scope.elevation,
			m.AoAAzimuthDeg, m.AoAAzimuthFom, m.AoAElevationDeg, m.AoAElevationFom)
	}

	out.DlTDoA = &DlTDoAInfo{
		MessageType:           m.MessageType,
		MessageControl:        m.MessageControl,
		BlockIndex:            m.BlockIndex,
		TxTimestamp:           m.TxTimestamp,
		RxTimestamp:           m.RxTimestamp,
		AnchorCfo:             m.AnchorCfo,
		Cfo:                   m.Cfo,
		InitiatorReplyTime:    m.InitiatorReplyTime,
		ResponderReplyTime:    m.ResponderReplyTime,
		InitiatorResponderTof: m.InitiatorResponderTof,
		AnchorLocation:        m.AnchorLocation,
		ActiveRangingRounds:   m.ActiveRangingRounds,
	}
	return out
}

// buildAngle assembles an AngleOfArrival under the given scope. Azimuth is
// the mandatory component: without it no angle is reported at all, even if
// elevation was measured.
func buildAngle(azEnabled, elEnabled bool, azDeg float64, azFom int, elDeg float64, elFom int) *AngleOfArrival {
	if !azEnabled {
		return nil
	}
	aoa := &AngleOfArrival{
		Azimuth: Angle{
			Radians:    degreesToRadians(azDeg),
			Confidence: float64(azFom) / fomScale,
		},
	}
	if elEnabled {
		aoa.Elevation = &Angle{
			Radians:    degreesToRadians(elDeg),
			Confidence: float64(elFom) / fomScale,
		}
	}
	return aoa
}

// rssiField reports RSSI only when the hardware measured one; zero and
// positive values mean "not measured".
func rssiField(rssi int) *int {
	if rssi >= 0 {
		return nil
	}
	return &rssi
}

// degreesToRadians converts a hardware angle to radians.
func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
