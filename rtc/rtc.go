// Package rtc models the device real-time clock as a quality-ranked time
// source: a candidate timestamp is only accepted when it comes from a source
// at least as trustworthy as the one that set the clock last. This keeps a
// rough network-observed time from clobbering an NTP- or GPS-derived one.
package rtc

import (
	"sync"
	"time"
)

// Quality ranks the trustworthiness of a time source, lowest first.
type Quality uint8

const (
	// QualityNone means the clock has never been set.
	QualityNone Quality = iota
	// QualityDevice is a battery-backed hardware RTC reading.
	QualityDevice
	// QualityFromNet is a coarse timestamp observed in network traffic.
	QualityFromNet
	// QualityNTP is a network-time protocol response.
	QualityNTP
	// QualityGPS is a satellite fix, the best we can do.
	QualityGPS
)

func (q Quality) String() string {
	switch q {
	case QualityNone:
		return "none"
	case QualityDevice:
		return "device"
	case QualityFromNet:
		return "fromnet"
	case QualityNTP:
		return "ntp"
	case QualityGPS:
		return "gps"
	default:
		return "invalid"
	}
}

// Clock is the process-wide quality-ranked clock. The zero value is ready to
// use and reports QualityNone until the first accepted Set.
//
// Clock tracks wall time as an offset from the local monotonic clock, so Now
// stays coherent even on targets whose system clock starts near the epoch.
// AdjustFunc, when non-nil, is invoked with the accepted offset so targets
// that can slew the underlying system clock (e.g. TinyGo's
// runtime.AdjustTimeOffset) may do so; it is called without the internal
// lock held.
type Clock struct {
	AdjustFunc func(offset time.Duration)

	mu      sync.Mutex
	quality Quality
	offset  time.Duration
	set     bool
}

// Set offers a candidate timestamp of the given quality. The candidate is
// applied only when q is at least the current quality; equal quality
// refreshes the clock. Returns whether the candidate was applied. Zero
// timestamps are always rejected.
func (c *Clock) Set(q Quality, t time.Time) bool {
	if t.IsZero() {
		return false
	}
	c.mu.Lock()
	if c.set && q < c.quality {
		c.mu.Unlock()
		return false
	}
	offset := time.Until(t)
	c.quality = q
	c.offset = offset
	c.set = true
	adjust := c.AdjustFunc
	c.mu.Unlock()

	if adjust != nil {
		adjust(offset)
	}
	return true
}

// Now returns the best-known wall time. Before the first accepted Set it
// falls back to the unadjusted local clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Now().Add(c.offset)
}

// Quality reports the quality of the source that last set the clock, or
// QualityNone if it was never set.
func (c *Clock) Quality() Quality {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quality
}
