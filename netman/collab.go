package netman

import (
	"time"

	"github.com/aalhard/firmware/rtc"
)

// Radio issues association requests to the wireless driver. Implementations
// live in the radio package; tests inject doubles.
type Radio interface {
	// ClearCredentials drops any stored association credentials so a fresh
	// request does not reuse stale state.
	ClearCredentials()
	// Associate requests association with the named access point. An empty
	// psk joins an open network. The request is asynchronous: the outcome
	// arrives later as driver events, and the returned error only covers
	// request submission.
	Associate(ssid, psk string) error
}

// Clock accepts quality-tagged candidate timestamps. *rtc.Clock implements
// this.
type Clock interface {
	Set(q rtc.Quality, t time.Time) bool
}

// TimeSource performs one bounded network-time query. It must not retry
// internally; the retry cadence belongs to the caller.
type TimeSource interface {
	QueryTime() (time.Time, error)
}

// Announcer registers the device with a name-resolution service. Called at
// most once, best-effort: a failure is logged and does not block the rest
// of the startup sequence.
type Announcer interface {
	Announce() error
}

// Bus is the message-bus client's reconnect hook. The manager nudges it on
// every connectivity restoration; implementations carry their own reconnect
// guard, so the call is cheap when already connected.
type Bus interface {
	TriggerReconnect()
}

// Service is a long-lived network-facing service started exactly once, on
// the first successful connection. Start must be idempotent and
// non-blocking.
type Service interface {
	Name() string
	Start() error
}

// Collaborators are the injected external dependencies of a Manager. Any
// field may be nil (or empty), in which case the corresponding action is
// skipped.
type Collaborators struct {
	Radio     Radio
	Clock     Clock
	Time      TimeSource
	Announcer Announcer
	Bus       Bus
	Services  []Service
}
