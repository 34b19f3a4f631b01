// Package events publishes coordinator activity onto the message bus and
// the time-series store.
//
// The Publisher implements session.Callbacks and adapter.Listener, turning
// internal callbacks into retained MQTT state topics, per-session event
// topics and InfluxDB measurements. It is the only place that knows both
// the internal callback surfaces and the external topic layout.
//
//	session.Registry --callbacks--> Publisher --JSON--> MQTT
//	adapter.Controller --listener--^         --points--> InfluxDB
//
// Both sinks are optional: a nil MQTT client or metric writer simply
// disables that output.
package events
