// Package timesync issues network-time queries and hands the results to the
// quality-ranked device clock. Sources here perform exactly one bounded
// query per call and never retry internally; the retry cadence belongs to
// the connectivity manager's periodic tick.
package timesync

import "time"

// DefaultServer is queried when a source has no host configured.
const DefaultServer = "pool.ntp.org"

// DefaultTimeout bounds a single query so a hung request cannot starve the
// caller's next retry window.
const DefaultTimeout = 5 * time.Second
