// Package bus connects the device to its MQTT uplink. Two clients live
// here: a paho-based one for hosted targets and a natiu-mqtt one for TinyGo
// targets. Both expose the reconnect hook the connectivity manager nudges
// on every connectivity restoration, and both guard that hook internally so
// nudging a healthy connection is free.
package bus

import (
	"time"
)

// StatusUpdate is the telemetry document published to the broker.
type StatusUpdate struct {
	State                string        `json:"state"`
	LastDisconnectReason int           `json:"last_disconnect_reason"`
	ClockQuality         string        `json:"clock_quality"`
	Uptime               time.Duration `json:"uptime_ns"`
	Time                 time.Time     `json:"time,omitzero"`
}

// DefaultTopic is published to when no topic is configured.
const DefaultTopic = "device/status"
