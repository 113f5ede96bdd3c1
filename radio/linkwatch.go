//go:build !tinygo

package radio

import (
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/aalhard/firmware/netman"
)

// DefaultWatchInterval is how often LinkWatch samples the interface.
const DefaultWatchInterval = 5 * time.Second

// LinkWatch polls a network interface for a global unicast address and
// synthesizes GotAddress/LostAddress events on transitions. Hosts have no
// driver event callback the way embedded radios do, so address presence is
// the observable that stands in for "associated".
type LinkWatch struct {
	iface    string
	interval time.Duration
	sink     func(netman.Event)
	log      *slog.Logger

	task *netman.Periodic
	up   bool
	seen bool
}

// NewLinkWatch builds a poller for iface (empty means any non-loopback
// interface) delivering events to sink.
func NewLinkWatch(iface string, interval time.Duration, sink func(netman.Event), logger *slog.Logger) *LinkWatch {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	w := &LinkWatch{iface: iface, interval: interval, sink: sink, log: logger}
	w.task = netman.NewPeriodic("linkwatch", logger, w.tick)
	return w
}

// Start begins polling. The first sample emits GotAddress if the host is
// already online, so a daemon started on a connected machine activates its
// services immediately.
func (w *LinkWatch) Start() {
	w.task.Start(0)
}

// Stop halts polling.
func (w *LinkWatch) Stop() {
	w.task.Stop()
}

func (w *LinkWatch) tick() time.Duration {
	up := w.hasAddress()
	switch {
	case up && (!w.seen || !w.up):
		w.log.Debug("radio:link up", slog.String("iface", w.iface))
		w.sink(netman.Event{Kind: netman.EventGotAddress})
	case !up && w.seen && w.up:
		w.log.Debug("radio:link down", slog.String("iface", w.iface))
		w.sink(netman.Event{Kind: netman.EventLostAddress})
	}
	w.up = up
	w.seen = true
	return w.interval
}

// hasAddress reports whether the watched interface (or any non-loopback
// interface) holds a global unicast address.
func (w *LinkWatch) hasAddress() bool {
	if w.iface != "" {
		ifi, err := net.InterfaceByName(w.iface)
		if err != nil {
			return false
		}
		return ifaceHasGlobalAddr(ifi)
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for i := range ifaces {
		if ifaces[i].Flags&net.FlagLoopback != 0 || ifaces[i].Flags&net.FlagUp == 0 {
			continue
		}
		if ifaceHasGlobalAddr(&ifaces[i]) {
			return true
		}
	}
	return false
}

func ifaceHasGlobalAddr(ifi *net.Interface) bool {
	addrs, err := ifi.Addrs()
	if err != nil {
		return false
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if ipnet.IP.IsGlobalUnicast() {
			return true
		}
	}
	return false
}
