package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteRangingMeasurement writes one per-peer ranging measurement.
//
// This is the primary method for recording ranging telemetry. The write is
// non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - handle: Session handle the measurement belongs to
//   - peer: Short address of the measured peer
//   - distanceM: Measured distance in meters
//   - azimuthRad: Azimuth angle of arrival in radians (0 when absent)
//   - elevationRad: Elevation angle of arrival in radians (0 when absent)
//
// Example:
//
//	client.WriteRangingMeasurement(handle, "0A1B", 2.41, 0.12, 0)
func (c *Client) WriteRangingMeasurement(handle, peer string, distanceM, azimuthRad, elevationRad float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"ranging",
		map[string]string{
			"handle": handle,
			"peer":   peer,
		},
		map[string]interface{}{
			"distance_m":    distanceM,
			"azimuth_rad":   azimuthRad,
			"elevation_rad": elevationRad,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSessionEvent writes a session lifecycle event marker.
//
// Parameters:
//   - handle: Session handle
//   - event: Lifecycle event name (opened, started, stopped, closed, ...)
//   - reason: Reason code attached to the event
func (c *Client) WriteSessionEvent(handle, event, reason string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"session_events",
		map[string]string{
			"handle": handle,
			"event":  event,
		},
		map[string]interface{}{
			"reason": reason,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteAdapterEvent writes an adapter state change marker.
//
// Parameters:
//   - state: Aggregate adapter state (disabled, enabled_inactive, enabled_active)
//   - reason: Reason code for the change
func (c *Client) WriteAdapterEvent(state, reason string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"adapter_events",
		map[string]string{
			"state": state,
		},
		map[string]interface{}{
			"reason": reason,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "uwb-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
