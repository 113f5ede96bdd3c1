//go:build tinygo

// Package screen drives a 16x2 character display with connectivity status.
// Updates flow through a channel so hardware writes never happen on the
// event or tick paths:
//
//	updates := make(chan screen.Update, 8)
//	handler := screen.NewHandler(device, updates, logger)
//	go handler.Run()
//	screen.Send(updates, screen.Update{State: m.State()})
package screen

import (
	"log/slog"
	"strconv"

	"tinygo.org/x/drivers/hd44780i2c"

	"github.com/aalhard/firmware/netman"
)

// Update is one status frame for the display.
type Update struct {
	State  netman.State
	Reason int // last disconnect reason; shown while disconnected
	Addr   string
}

// Handler renders updates from a channel onto the display.
type Handler struct {
	device  hd44780i2c.Device
	updates <-chan Update
	logger  *slog.Logger
	columns int
	buf     []byte
}

// NewHandler builds a handler for a 16x2 display.
func NewHandler(device hd44780i2c.Device, updates <-chan Update, logger *slog.Logger) *Handler {
	return &Handler{
		device:  device,
		updates: updates,
		logger:  logger,
		columns: 16,
		// Preallocated render buffer; fmt allocations add up on a
		// heap this small.
		buf: make([]byte, 0, 32),
	}
}

// Run renders updates until the channel closes. Call from its own
// goroutine.
func (h *Handler) Run() {
	for u := range h.updates {
		h.display(u)
	}
}

func (h *Handler) display(u Update) {
	h.device.ClearDisplay()
	h.device.SetCursor(0, 0)

	h.buf = h.buf[:0]
	h.buf = append(h.buf, "wifi "...)
	h.buf = append(h.buf, u.State.String()...)
	h.print(h.buf)

	h.device.SetCursor(0, 1)
	h.buf = h.buf[:0]
	switch {
	case u.State == netman.StateAssociated && u.Addr != "":
		h.buf = append(h.buf, u.Addr...)
	case u.State == netman.StateDisconnected && u.Reason != netman.ReasonNone:
		h.buf = append(h.buf, "reason "...)
		h.buf = strconv.AppendInt(h.buf, int64(u.Reason), 10)
	}
	h.print(h.buf)
}

func (h *Handler) print(line []byte) {
	if len(line) > h.columns {
		line = line[:h.columns]
	}
	h.device.Print(line)
}

// Send queues an update without blocking; a full channel drops the frame,
// which is fine for a status display.
func Send(updates chan<- Update, u Update) {
	select {
	case updates <- u:
	default:
	}
}
