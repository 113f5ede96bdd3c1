//go:build tinygo

package timesync

import (
	"errors"
	"log/slog"
	"net/netip"
	"time"

	"github.com/soypat/seqs/eth/ntp"
	"github.com/soypat/seqs/stacks"
)

// SeqsSource queries NTP through a seqs port stack on TinyGo targets. It
// implements netman.TimeSource. The stack and resolver are shared with the
// radio adapter that owns the network device.
type SeqsSource struct {
	// Stack is the seqs port stack the NTP client attaches to.
	Stack *stacks.PortStack
	// LookupNetIP resolves the NTP server name. The radio adapter's
	// resolver is the usual implementation.
	LookupNetIP func(host string) ([]netip.Addr, error)
	// RouterHW returns the hardware address of the gateway, needed to
	// frame the outgoing request. It is a function because the gateway is
	// only learned during address acquisition.
	RouterHW func() [6]byte

	Host    string
	Timeout time.Duration
	Logger  *slog.Logger
}

// QueryTime resolves the configured server, performs one NTP exchange and
// returns the resulting wall time. The NTP epoch (1900-01-01) plus the
// reported offset is the absolute time; callers feed it to the
// quality-ranked clock rather than adjusting the runtime clock directly.
func (s *SeqsSource) QueryTime() (time.Time, error) {
	if s.Stack == nil || s.LookupNetIP == nil || s.RouterHW == nil {
		return time.Time{}, errors.New("timesync: seqs source not wired")
	}
	host := s.Host
	if host == "" {
		host = DefaultServer
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	addrs, err := s.LookupNetIP(host)
	if err != nil {
		return time.Time{}, errors.New("timesync: dns lookup: " + err.Error())
	}
	if len(addrs) == 0 {
		return time.Time{}, errors.New("timesync: dns lookup returned no addresses")
	}
	if s.Logger != nil {
		s.Logger.Debug("timesync:resolved",
			slog.String("server", host),
			slog.String("addr", addrs[0].String()))
	}

	ntpc := stacks.NewNTPClient(s.Stack, ntp.ClientPort)
	if err := ntpc.BeginDefaultRequest(s.RouterHW(), addrs[0]); err != nil {
		return time.Time{}, errors.New("timesync: ntp request: " + err.Error())
	}

	const pollInterval = 100 * time.Millisecond
	start := time.Now()
	for !ntpc.IsDone() {
		if time.Since(start) > timeout {
			return time.Time{}, errors.New("timesync: ntp timeout")
		}
		time.Sleep(pollInterval)
	}

	return ntp.BaseTime().Add(ntpc.Offset()), nil
}
