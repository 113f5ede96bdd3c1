//go:build !tinygo

package timesync

import (
	"log/slog"
	"time"

	"github.com/beevik/ntp"
)

// NTPSource queries an NTP server over the host network stack. It
// implements netman.TimeSource. The zero value queries DefaultServer with
// DefaultTimeout.
type NTPSource struct {
	// Host is the NTP server to query.
	Host string
	// Timeout bounds the whole query.
	Timeout time.Duration
	Logger  *slog.Logger
}

// QueryTime performs a single NTP query and returns the corrected wall
// time. On failure the zero time and the error are returned and no state is
// kept; the caller decides when to try again.
func (s *NTPSource) QueryTime() (time.Time, error) {
	host := s.Host
	if host == "" {
		host = DefaultServer
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	resp, err := ntp.QueryWithOptions(host, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return time.Time{}, err
	}
	if err := resp.Validate(); err != nil {
		return time.Time{}, err
	}

	t := time.Now().Add(resp.ClockOffset)
	if s.Logger != nil {
		s.Logger.Debug("timesync:ntp response",
			slog.String("server", host),
			slog.Duration("offset", resp.ClockOffset),
			slog.Duration("rtt", resp.RTT))
	}
	return t, nil
}
