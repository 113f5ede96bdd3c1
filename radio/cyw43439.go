//go:build tinygo

package radio

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/soypat/cyw43439"
	"github.com/soypat/lneto/x/xnet"
	"github.com/soypat/seqs/stacks"

	"github.com/aalhard/firmware/netman"
)

const mtu = cyw43439.MTU

// PicoWConfig configures the CYW43439 adapter.
type PicoWConfig struct {
	// Hostname used for DHCP and mDNS. Empty derives "node-xxxx" from the
	// MAC address.
	Hostname string
	// StaticIP, when non-nil, is requested instead of relying purely on
	// DHCP.
	StaticIP *netman.StaticIP
	// Events receives translated driver notifications. It runs on the
	// adapter's calling context and must return promptly.
	Events func(netman.Event)
	Logger *slog.Logger
	// RandSeed perturbs the stack PRNG; boot time is mixed in regardless.
	RandSeed int64
}

// PicoW owns the CYW43439 device and its network stacks: the lneto async
// stack carries DHCP/DNS/TCP, and a small seqs port stack is kept attached
// to the same ethernet ingress for the NTP client. PicoW implements
// netman.Radio; association outcomes surface through the event sink rather
// than return values.
type PicoW struct {
	dev      *cyw43439.Device
	stack    xnet.StackAsync
	ntpStack *stacks.PortStack
	cfg      PicoWConfig
	log      *slog.Logger
	hostname string
	sendbuf  []byte
	seqsbuf  []byte
	routerHW [6]byte
}

// NewPicoW initializes the wireless chip and both stacks, performing the
// one-time driver setup that is not part of the lifecycle state machine.
// No association is attempted here; that is the retry tick's job.
func NewPicoW(cfg PicoWConfig) (*PicoW, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	start := time.Now()
	dev := cyw43439.NewPicoWDevice()
	dev.SetLogger(logger)
	// The default config runs the radio without power saving, which this
	// device wants anyway: latency beats battery here.
	if err := dev.Init(cyw43439.DefaultWifiConfig()); err != nil {
		return nil, errors.New("radio: cyw43439 init: " + err.Error())
	}
	logger.Info("radio:cyw43439 up", slog.Duration("init", time.Since(start)))

	mac, err := dev.HardwareAddr6()
	if err != nil {
		return nil, errors.New("radio: hardware address: " + err.Error())
	}

	hostname := cfg.Hostname
	if hostname == "" {
		hostname = deriveHostname(mac)
	}

	r := &PicoW{
		dev:      dev,
		cfg:      cfg,
		log:      logger,
		hostname: hostname,
		sendbuf:  make([]byte, mtu),
		seqsbuf:  make([]byte, mtu),
	}

	err = r.stack.Reset(xnet.StackConfig{
		Hostname:        hostname,
		MaxTCPConns:     2,
		RandSeed:        time.Since(start).Nanoseconds() ^ cfg.RandSeed,
		HardwareAddress: mac,
		MTU:             mtu,
	})
	if err != nil {
		return nil, errors.New("radio: stack reset: " + err.Error())
	}

	r.ntpStack = stacks.NewPortStack(stacks.PortStackConfig{
		MAC:             mac[:],
		MaxOpenPortsUDP: 1,
		MTU:             mtu,
		Logger:          logger,
	})

	// Both stacks see every ingress frame; the seqs stack only claims its
	// own UDP port.
	dev.RecvEthHandle(func(pkt []byte) error {
		if r.ntpStack != nil {
			_ = r.ntpStack.RecvEth(pkt)
		}
		return r.stack.Demux(pkt, 0)
	})

	r.emit(netman.Event{Kind: netman.EventStationStarted})
	logger.Info("radio:station ready",
		slog.String("mac", net.HardwareAddr(mac[:]).String()),
		slog.String("hostname", hostname))
	return r, nil
}

func deriveHostname(mac [6]byte) string {
	const hex = "0123456789abcdef"
	return "node-" + string([]byte{
		hex[mac[4]>>4], hex[mac[4]&0xf],
		hex[mac[5]>>4], hex[mac[5]&0xf],
	})
}

func (r *PicoW) emit(ev netman.Event) {
	if r.cfg.Events != nil {
		r.cfg.Events(ev)
	}
}

// Hostname returns the effective device hostname.
func (r *PicoW) Hostname() string { return r.hostname }

// ClearCredentials implements netman.Radio. The CYW43439 keeps no
// persistent credential store; a fresh JoinWPA2 supersedes the old
// association, so there is nothing to drop beyond noting the intent.
func (r *PicoW) ClearCredentials() {
	r.log.Debug("radio:clearing stale association state")
}

// Associate implements netman.Radio: join the network, then acquire an
// address. Outcomes are delivered as events; the returned error only covers
// request submission.
func (r *PicoW) Associate(ssid, psk string) error {
	if r.dev == nil {
		return errors.New("radio: device not initialized")
	}
	if psk == "" {
		r.log.Info("radio:joining open network", slog.String("ssid", ssid))
	} else {
		r.log.Info("radio:joining WPA2 network", slog.String("ssid", ssid))
	}

	if err := r.dev.JoinWPA2(ssid, psk); err != nil {
		r.log.Error("radio:join failed", slog.String("err", err.Error()))
		r.emit(netman.Event{Kind: netman.EventDisconnected, Reason: ReasonJoinFailed})
		return nil
	}

	addr, err := r.acquireAddress()
	if err != nil {
		r.log.Error("radio:address acquisition failed", slog.String("err", err.Error()))
		r.emit(netman.Event{Kind: netman.EventDisconnected, Reason: ReasonAddressFailed})
		return nil
	}

	if r.ntpStack != nil {
		r.ntpStack.SetAddr(addr)
	}
	r.emit(netman.Event{Kind: netman.EventGotAddress})
	return nil
}

// acquireAddress runs DHCP, falling back to the configured static address
// when DHCP does not complete, and resolves the gateway hardware address.
func (r *PicoW) acquireAddress() (netip.Addr, error) {
	const pollTime = 50 * time.Millisecond
	rstack := r.stack.StackRetrying(pollTime)

	requested := netip.AddrFrom4([4]byte{})
	if r.cfg.StaticIP != nil && r.cfg.StaticIP.Address.Is4() {
		requested = r.cfg.StaticIP.Address
	}

	results, err := rstack.DoDHCPv4(requested.As4(), 3*time.Second, 3)
	if err != nil {
		if r.cfg.StaticIP == nil {
			return netip.Addr{}, errors.New("dhcp: " + err.Error())
		}
		// DHCP did not complete; fall back to the fixed assignment.
		r.log.Info("radio:dhcp incomplete, using static address",
			slog.String("ip", r.cfg.StaticIP.Address.String()))
		r.stack.SetIPAddr(r.cfg.StaticIP.Address)
		return r.cfg.StaticIP.Address, nil
	}

	if err := r.stack.AssimilateDHCPResults(results); err != nil {
		return netip.Addr{}, errors.New("assimilate dhcp: " + err.Error())
	}

	gatewayHW, err := rstack.DoResolveHardwareAddress6(results.Router, 500*time.Millisecond, 4)
	if err != nil {
		return netip.Addr{}, errors.New("resolve gateway: " + err.Error())
	}
	r.stack.SetGateway6(gatewayHW)
	r.routerHW = gatewayHW

	r.log.Info("radio:dhcp complete",
		slog.String("ourIP", results.AssignedAddr.String()),
		slog.String("router", results.Router.String()),
		slog.Uint64("lease_sec", uint64(results.TLease)))
	return results.AssignedAddr, nil
}

// RecvAndSend processes one round of ingress and egress packets for both
// stacks. Drive it in a tight loop from a dedicated goroutine.
func (r *PicoW) RecvAndSend() error {
	_, errRecv := r.dev.PollOne()

	n, err := r.stack.Encapsulate(r.sendbuf, -1, 0)
	if err != nil {
		r.log.Error("radio:encapsulate", slog.String("err", err.Error()))
	} else if n > 0 {
		if err := r.dev.SendEth(r.sendbuf[:n]); err != nil {
			r.log.Error("radio:send", slog.String("err", err.Error()))
		}
	}

	if r.ntpStack != nil {
		n, err = r.ntpStack.HandleEth(r.seqsbuf)
		if err == nil && n > 0 {
			if err := r.dev.SendEth(r.seqsbuf[:n]); err != nil {
				r.log.Error("radio:send ntp", slog.String("err", err.Error()))
			}
		}
	}
	return errRecv
}

// Stack exposes the lneto stack for TCP and DNS users (the message bus).
func (r *PicoW) Stack() *xnet.StackAsync { return &r.stack }

// NTPStack exposes the seqs port stack the NTP client attaches to.
func (r *PicoW) NTPStack() *stacks.PortStack { return r.ntpStack }

// RouterHW returns the gateway hardware address learned during address
// acquisition; zero until the first successful association.
func (r *PicoW) RouterHW() [6]byte { return r.routerHW }

// LookupNetIP resolves a hostname through the lneto stack.
func (r *PicoW) LookupNetIP(host string) ([]netip.Addr, error) {
	const pollTime = 50 * time.Millisecond
	return r.stack.StackRetrying(pollTime).DoLookupIP(host, 5*time.Second, 3)
}

// Prand32 returns a pseudo-random number from the stack PRNG, handy for
// ephemeral ports and packet identifiers.
func (r *PicoW) Prand32() uint32 { return r.stack.Prand32() }

// Addr returns the stack's current address.
func (r *PicoW) Addr() netip.Addr { return r.stack.Addr() }
