// Package netman manages the Wi-Fi connectivity lifecycle of the device: it
// decides when to (re)attempt association, tracks the link state across
// asynchronous driver events, runs the one-time startup of dependent
// network services once connectivity is first established, and keeps the
// real-time clock synchronized opportunistically while online.
//
// Two execution contexts touch a Manager: the driver's event delivery path
// (HandleEvent, which must return promptly) and the cooperative periodic
// tick (Tick, which may block on a bounded network query). Shared state is
// word-sized atomics plus a small mutex-guarded block, and no lock is held
// across a network call.
package netman

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aalhard/firmware/rtc"
)

// Manager owns the connectivity lifecycle. Construct with New; the zero
// value is not usable.
type Manager struct {
	cfg Config
	col Collaborators
	log *slog.Logger

	// needReconnect is set by disconnect/lost-address events and cleared
	// by the tick once it actually issues an association request. It
	// starts true so a freshly booted, configured device associates on
	// the first tick.
	needReconnect atomic.Bool
	// startupDone is the one-shot latch for the dependent-service startup
	// sequence. false->true at most once per process lifetime.
	startupDone atomic.Bool
	// lastReason holds the most recent driver-reported disconnect cause,
	// ReasonNone until the first disconnect. Never reset on reconnect.
	lastReason atomic.Int32

	mu          sync.Mutex
	state       State
	timeRefresh *Periodic
}

// New builds a Manager from an immutable configuration and its injected
// collaborators. A nil logger discards output.
func New(cfg Config, col Collaborators, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	m := &Manager{cfg: cfg, col: col, log: logger}
	m.needReconnect.Store(true)
	return m
}

// State returns the current connectivity lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// HandleEvent consumes one driver notification. Safe to call concurrently
// with Tick and with itself; never blocks on the network and never fails:
// hardware events cannot be rejected, so problems are only logged.
func (m *Manager) HandleEvent(ev Event) {
	switch ev.Kind {
	case EventDisconnected:
		m.lastReason.Store(int32(ev.Reason))
		m.setState(StateDisconnected)
		m.needReconnect.Store(true)
		m.log.Info("netman:disconnected", slog.Int("reason", ev.Reason))
	case EventLostAddress:
		// Address loss re-arms the reconnector exactly like a disconnect.
		m.setState(StateDisconnected)
		m.needReconnect.Store(true)
		m.log.Info("netman:lost address")
	case EventGotAddress:
		m.setState(StateAssociated)
		m.log.Info("netman:address acquired")
		m.activate()
	case EventAccessPointStarted:
		// Serving as our own access point counts as connected for
		// service-startup purposes.
		m.log.Info("netman:access point started")
		m.activate()
	case EventStationStarted, EventStationStopped, EventAccessPointStopped, EventScanDone:
		m.log.Debug("netman:event", slog.String("event", ev.Kind.String()))
	default:
		m.log.Warn("netman:unrecognized event", slog.Int("kind", int(ev.Kind)))
	}
}

// Tick runs one pass of the retry scheduler: while disconnected it initiates
// an association attempt, while connected it refreshes network time. It
// returns the delay until the next tick and is meant to be driven by a
// Periodic, so it never overlaps with itself.
func (m *Manager) Tick() time.Duration {
	if m.cfg.WifiAvailable() && m.needReconnect.Load() && m.State() != StateAssociated {
		m.needReconnect.Store(false)
		m.reassociate()
	}
	if m.State() == StateAssociated {
		m.syncClock()
	}
	return m.cfg.retryInterval()
}

func (m *Manager) reassociate() {
	if m.col.Radio == nil {
		return
	}
	// Drop stale credentials before asking for a fresh association.
	m.col.Radio.ClearCredentials()
	m.log.Info("netman:reconnecting to access point", slog.String("ssid", m.cfg.SSID))
	m.setState(StateAwaitingAssociation)
	if err := m.col.Radio.Associate(m.cfg.SSID, m.cfg.PSK); err != nil {
		// Association outcome surfaces through driver events; this error
		// only means the request itself could not be submitted.
		m.log.Error("netman:associate request failed", slog.String("err", err.Error()))
	}
}

// syncClock performs one network-time query and feeds the result to the
// quality-ranked clock. Failures are logged and not retried until the next
// scheduled run.
func (m *Manager) syncClock() {
	if m.col.Time == nil || m.col.Clock == nil {
		return
	}
	t, err := m.col.Time.QueryTime()
	if err != nil {
		m.log.Warn("netman:time query failed", slog.String("err", err.Error()))
		return
	}
	if m.col.Clock.Set(rtc.QualityNTP, t) {
		m.log.Info("netman:clock set from network time", slog.Time("time", t))
	}
}

// Close stops the background time-refresh task if it was started. The
// one-shot latch stays set: a closed Manager does not rerun startup.
func (m *Manager) Close() {
	m.mu.Lock()
	tr := m.timeRefresh
	m.timeRefresh = nil
	m.mu.Unlock()
	if tr != nil {
		tr.Stop()
	}
}
