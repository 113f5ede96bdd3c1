package netman

import (
	"net/netip"
	"time"
)

// StaticIP is an optional fixed IPv4 configuration applied during one-time
// radio setup. Both DNS slots are used; adapters that take a single resolver
// may duplicate the first entry.
type StaticIP struct {
	Address netip.Addr
	Gateway netip.Addr
	Subnet  netip.Addr
	DNS     [2]netip.Addr
}

// Config is the connectivity configuration. It is immutable for the process
// lifetime once a Manager is built from it.
type Config struct {
	// Enabled gates all association attempts. When false the retry tick is
	// a no-op.
	Enabled bool
	// SSID of the access point to join. Empty disables association
	// attempts without being an error.
	SSID string
	// PSK is the network passphrase. Empty means an open network.
	PSK string
	// Hostname the device announces over DHCP and mDNS.
	Hostname string
	// StaticIP, when non-nil, replaces DHCP during radio setup.
	StaticIP *StaticIP

	// RetryInterval is the delay the retry tick returns until its next run.
	// Zero means DefaultRetryInterval. The default is deliberately coarse:
	// the radio driver's own auto-reconnect covers fast retries between
	// ticks.
	RetryInterval time.Duration
	// TimeRefreshInterval is the cadence of the periodic time-sync client
	// started on first connect. Zero means DefaultTimeRefreshInterval.
	TimeRefreshInterval time.Duration
}

const (
	// DefaultRetryInterval matches the reference firmware's twelve-hour
	// safety-net tick.
	DefaultRetryInterval = 12 * time.Hour
	// DefaultTimeRefreshInterval is the hourly network-time refresh.
	DefaultTimeRefreshInterval = time.Hour
)

func (c Config) retryInterval() time.Duration {
	if c.RetryInterval > 0 {
		return c.RetryInterval
	}
	return DefaultRetryInterval
}

func (c Config) timeRefreshInterval() time.Duration {
	if c.TimeRefreshInterval > 0 {
		return c.TimeRefreshInterval
	}
	return DefaultTimeRefreshInterval
}

// WifiAvailable reports whether the configuration permits association at
// all: Wi-Fi enabled and an SSID present.
func (c Config) WifiAvailable() bool {
	return c.Enabled && c.SSID != ""
}
