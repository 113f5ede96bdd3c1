//go:build !tinygo

package radio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"
)

// NMCli steers the host's NetworkManager supplicant over the nmcli binary.
// It implements netman.Radio for Linux-class devices, where the supplicant
// owns auto-reconnect between the manager's coarse retry ticks. Association
// outcomes arrive through the LinkWatch poller, not from these calls.
type NMCli struct {
	// Iface pins commands to one wireless interface. Empty lets
	// NetworkManager pick.
	Iface string
	// Timeout bounds each nmcli invocation. Zero means 30s, nmcli's own
	// default wait.
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewNMCli builds the adapter. The nmcli binary is resolved at call time so
// construction cannot fail.
func NewNMCli(iface string, logger *slog.Logger) *NMCli {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &NMCli{Iface: iface, Logger: logger}
}

func (n *NMCli) timeout() time.Duration {
	if n.Timeout > 0 {
		return n.Timeout
	}
	return 30 * time.Second
}

func (n *NMCli) run(args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout())
	defer cancel()
	out, err := exec.CommandContext(ctx, "nmcli", args...).CombinedOutput()
	return bytes.TrimSpace(out), err
}

// ClearCredentials implements netman.Radio: drop the current association so
// the fresh request does not ride a stale session. Best-effort; an already
// disconnected device makes nmcli complain, which is fine.
func (n *NMCli) ClearCredentials() {
	args := []string{"device", "disconnect"}
	if n.Iface != "" {
		args = append(args, n.Iface)
	}
	if out, err := n.run(args...); err != nil {
		n.Logger.Debug("radio:nmcli disconnect",
			slog.String("err", err.Error()),
			slog.String("output", string(out)))
	}
}

// Associate implements netman.Radio. An empty psk requests an open network.
// The returned error covers request submission only; whether the link
// actually comes up is observed by the address poller.
func (n *NMCli) Associate(ssid, psk string) error {
	args := []string{"device", "wifi", "connect", ssid}
	if psk != "" {
		args = append(args, "password", psk)
	}
	if n.Iface != "" {
		args = append(args, "ifname", n.Iface)
	}
	n.Logger.Info("radio:nmcli connect", slog.String("ssid", ssid))
	out, err := n.run(args...)
	if err != nil {
		return fmt.Errorf("nmcli connect %q: %w: %s", ssid, err, out)
	}
	return nil
}
