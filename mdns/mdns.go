//go:build !tinygo

// Package mdns registers the device with multicast DNS service discovery.
// Registration is best-effort and happens once, on first connectivity: the
// device advertises the plaintext and TLS variants of its application
// protocol as two TCP service records under a single instance name.
package mdns

import (
	"io"
	"log/slog"
	"sync"

	"github.com/grandcat/zeroconf"
)

// Config names the advertised instance and its two service ports.
type Config struct {
	// Instance is the DNS-SD instance name. Empty falls back to Hostname.
	Instance string
	// Hostname of the device on the local network.
	Hostname string
	// HTTPPort carries the plaintext service record. Zero means 80.
	HTTPPort int
	// HTTPSPort carries the TLS service record. Zero means 443.
	HTTPSPort int
}

// Responder owns the registered DNS-SD records. It implements
// netman.Announcer.
type Responder struct {
	cfg Config
	log *slog.Logger

	mu      sync.Mutex
	servers []*zeroconf.Server
}

// New builds a Responder; nothing is advertised until Announce.
func New(cfg Config, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Instance == "" {
		cfg.Instance = cfg.Hostname
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = 80
	}
	if cfg.HTTPSPort == 0 {
		cfg.HTTPSPort = 443
	}
	return &Responder{cfg: cfg, log: logger}
}

// Announce registers both service records. If the second registration
// fails, the first is withdrawn so the advertisement is all-or-nothing.
// Calling Announce on an already-announced Responder is a no-op.
func (r *Responder) Announce() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.servers) > 0 {
		return nil
	}

	txt := []string{"txtvers=1"}
	plain, err := zeroconf.Register(r.cfg.Instance, "_http._tcp", "local.", r.cfg.HTTPPort, txt, nil)
	if err != nil {
		return err
	}
	secure, err := zeroconf.Register(r.cfg.Instance, "_https._tcp", "local.", r.cfg.HTTPSPort, txt, nil)
	if err != nil {
		plain.Shutdown()
		return err
	}

	r.servers = []*zeroconf.Server{plain, secure}
	r.log.Info("mdns:registered",
		slog.String("instance", r.cfg.Instance),
		slog.Int("http", r.cfg.HTTPPort),
		slog.Int("https", r.cfg.HTTPSPort))
	return nil
}

// Shutdown withdraws the records. Safe to call without a prior Announce.
func (r *Responder) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.servers {
		s.Shutdown()
	}
	r.servers = nil
}
