package uci

// MeasurementType identifies the shape of a ranging data notification.
type MeasurementType string

// Measurement shapes.
const (
	// MeasurementTwoWay is double-sided two-way ranging: distance plus
	// optional local and destination angles, one entry per peer.
	MeasurementTwoWay MeasurementType = "two_way"

	// MeasurementOwrAoA is one-way-ranging angle-of-arrival: a single
	// angle observation of an advertising peer, no distance.
	MeasurementOwrAoA MeasurementType = "owr_aoa"

	// MeasurementDlTDoA is downlink time-difference-of-arrival: timing
	// observations against anchor messages, one entry per anchor.
	MeasurementDlTDoA MeasurementType = "dl_tdoa"
)

// RangingData is one raw measurement notification from the hardware.
// Exactly one of TwoWay, OwrAoA or DlTDoA is populated, matching Type.
type RangingData struct {
	SessionID uint32          `json:"session_id"`
	Type      MeasurementType `json:"type"`

	// CurrentRangingInterval is the interval the hardware is actually
	// ranging at, which may differ from the negotiated one.
	CurrentRangingIntervalMs int `json:"current_ranging_interval_ms"`

	TwoWay []TwoWayMeasurement `json:"two_way,omitempty"`
	OwrAoA *OwrAoAMeasurement  `json:"owr_aoa,omitempty"`
	DlTDoA []DlTDoAMeasurement `json:"dl_tdoa,omitempty"`

	// Raw is the undecoded notification payload, carried through for
	// vendor-specific consumers.
	Raw []byte `json:"raw,omitempty"`
}

// TwoWayMeasurement is one peer's result within a two-way ranging round.
// Angle and distance fields are only meaningful when Status is ok.
type TwoWayMeasurement struct {
	Peer   PeerAddress `json:"peer"`
	Status Status      `json:"status"`

	// NLoS is the line-of-sight indicator: 0 LoS, 1 NLoS, 255 unable.
	NLoS int `json:"nlos"`

	DistanceCm int `json:"distance_cm"`
	RSSIDbm    int `json:"rssi_dbm"`

	AoAAzimuthDeg      float64 `json:"aoa_azimuth_deg"`
	AoAAzimuthFom      int     `json:"aoa_azimuth_fom"`
	AoAElevationDeg    float64 `json:"aoa_elevation_deg"`
	AoAElevationFom    int     `json:"aoa_elevation_fom"`
	DestAzimuthDeg     float64 `json:"dest_azimuth_deg"`
	DestAzimuthFom     int     `json:"dest_azimuth_fom"`
	DestElevationDeg   float64 `json:"dest_elevation_deg"`
	DestElevationFom   int     `json:"dest_elevation_fom"`
}

// OwrAoAMeasurement is a single one-way AoA observation.
type OwrAoAMeasurement struct {
	Peer   PeerAddress `json:"peer"`
	Status Status      `json:"status"`
	NLoS   int         `json:"nlos"`

	FrameSequence int `json:"frame_sequence"`
	BlockIndex    int `json:"block_index"`

	AoAAzimuthDeg   float64 `json:"aoa_azimuth_deg"`
	AoAAzimuthFom   int     `json:"aoa_azimuth_fom"`
	AoAElevationDeg float64 `json:"aoa_elevation_deg"`
	AoAElevationFom int     `json:"aoa_elevation_fom"`
}

// DlTDoAMeasurement is one anchor's timing observation in a DL-TDoA round.
type DlTDoAMeasurement struct {
	Peer   PeerAddress `json:"peer"`
	Status Status      `json:"status"`
	NLoS   int         `json:"nlos"`

	MessageType    int `json:"message_type"`
	MessageControl int `json:"message_control"`
	BlockIndex     int `json:"block_index"`
	RSSIDbm        int `json:"rssi_dbm"`

	AoAAzimuthDeg   float64 `json:"aoa_azimuth_deg"`
	AoAAzimuthFom   int     `json:"aoa_azimuth_fom"`
	AoAElevationDeg float64 `json:"aoa_elevation_deg"`
	AoAElevationFom int     `json:"aoa_elevation_fom"`

	TxTimestamp          uint64 `json:"tx_timestamp"`
	RxTimestamp          uint64 `json:"rx_timestamp"`
	AnchorCfo            int    `json:"anchor_cfo"`
	Cfo                  int    `json:"cfo"`
	InitiatorReplyTime   uint32 `json:"initiator_reply_time"`
	ResponderReplyTime   uint32 `json:"responder_reply_time"`
	InitiatorResponderTof int   `json:"initiator_responder_tof"`

	// AnchorLocation is the anchor's reported position encoding, passed
	// through undecoded.
	AnchorLocation []byte `json:"anchor_location,omitempty"`

	ActiveRangingRounds []byte `json:"active_ranging_rounds,omitempty"`
}

// Empty reports whether the notification carries no measurements at all.
// Malformed notifications decode to an empty RangingData rather than an
// error, and builders must turn them into empty reports.
func (d RangingData) Empty() bool {
	switch d.Type {
	case MeasurementTwoWay:
		return len(d.TwoWay) == 0
	case MeasurementOwrAoA:
		return d.OwrAoA == nil
	case MeasurementDlTDoA:
		return len(d.DlTDoA) == 0
	default:
		return true
	}
}
