package netman

// ReasonNone is reported before any disconnect has occurred. Actual reason
// codes are opaque, platform-defined integers stored verbatim.
const ReasonNone = 0

// LastDisconnectReason returns the most recent driver-reported disconnect
// cause, for external status and telemetry consumers. The value is written
// only by the disconnect event path and retained across reconnects, so the
// previous failure remains inspectable after the link recovers.
func (m *Manager) LastDisconnectReason() int {
	return int(m.lastReason.Load())
}
