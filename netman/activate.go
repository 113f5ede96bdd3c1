package netman

import (
	"log/slog"
	"time"
)

// activate runs the dependent-service startup sequence. The long-lived
// startup actions (name-resolution registration, the periodic time-sync
// client, the web/API servers) run at most once per process lifetime,
// gated by the startupDone latch. The message-bus reconnect nudge runs on
// every call regardless of the latch: the bus has its own reconnect guard.
//
// No sub-step failure aborts the sequence; each is independently
// best-effort and logged.
func (m *Manager) activate() {
	if m.startupDone.CompareAndSwap(false, true) {
		m.log.Info("netman:starting network services")

		if m.col.Announcer != nil {
			if err := m.col.Announcer.Announce(); err != nil {
				m.log.Error("netman:name-service registration failed", slog.String("err", err.Error()))
			}
		}

		m.startTimeRefresh()

		for _, svc := range m.col.Services {
			if err := svc.Start(); err != nil {
				m.log.Error("netman:service start failed",
					slog.String("service", svc.Name()),
					slog.String("err", err.Error()))
			}
		}
	}

	if m.col.Bus != nil {
		m.col.Bus.TriggerReconnect()
	}
}

// startTimeRefresh launches the hourly network-time refresh task. It runs
// under the one-shot latch, so the Periodic is created at most once.
func (m *Manager) startTimeRefresh() {
	if m.col.Time == nil || m.col.Clock == nil {
		return
	}
	interval := m.cfg.timeRefreshInterval()
	p := NewPeriodic("time-refresh", m.log, func() time.Duration {
		if m.State() == StateAssociated {
			m.syncClock()
		}
		return interval
	})
	m.mu.Lock()
	m.timeRefresh = p
	m.mu.Unlock()
	p.Start(interval)
}

// StartupComplete reports whether the one-shot startup sequence has run.
func (m *Manager) StartupComplete() bool {
	return m.startupDone.Load()
}
