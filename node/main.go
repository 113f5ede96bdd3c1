//go:build tinygo

// Command node is the Pico W firmware: it wires the CYW43439 radio, the
// connectivity manager, the quality-ranked clock, the status display, and
// the MQTT uplink together and then lets the periodic tick and the driver
// events run the show.
package main

import (
	"log/slog"
	"machine"
	"runtime"
	"time"

	"tinygo.org/x/drivers/hd44780i2c"

	"github.com/aalhard/firmware/bus"
	"github.com/aalhard/firmware/netman"
	"github.com/aalhard/firmware/radio"
	"github.com/aalhard/firmware/rtc"
	"github.com/aalhard/firmware/screen"
	"github.com/aalhard/firmware/timesync"
)

// Network configuration is injected at link time:
//
//	tinygo build -ldflags="-X 'main.ssid=MyNet' -X 'main.pass=secret' -X 'main.broker=10.0.0.9:1883'"
var (
	ssid   string
	pass   string
	broker string
)

const (
	statusPollInterval = time.Second
	telemetryInterval  = time.Minute
)

func main() {
	boot := time.Now()
	time.Sleep(2 * time.Second) // give the serial monitor time to attach
	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	clock := &rtc.Clock{
		AdjustFunc: func(offset time.Duration) {
			runtime.AdjustTimeOffset(int64(offset))
		},
	}

	// The manager is assigned below; events raised during radio bring-up
	// (before any goroutines exist) are dropped by the nil guard.
	var mgr *netman.Manager

	r, err := radio.NewPicoW(radio.PicoWConfig{
		Events: func(ev netman.Event) {
			if mgr != nil {
				mgr.HandleEvent(ev)
			}
		},
		Logger: logger,
	})
	if err != nil {
		logErrForever(logger, "radio init", slog.String("err", err.Error()))
	}

	var busClient *bus.NatiuClient
	var col netman.Collaborators
	col.Radio = r
	col.Clock = clock
	col.Time = &timesync.SeqsSource{
		Stack:       r.NTPStack(),
		LookupNetIP: r.LookupNetIP,
		RouterHW:    r.RouterHW,
		Logger:      logger,
	}
	if broker != "" {
		busClient = bus.NewNatiuClient(r.Hostname(), logger)
		col.Bus = busClient
	}

	mgr = netman.New(netman.Config{
		Enabled:  ssid != "",
		SSID:     ssid,
		PSK:      pass,
		Hostname: r.Hostname(),
	}, col, logger)

	// Packet pump for both network stacks.
	go func() {
		const pollTime = 5 * time.Millisecond
		for {
			if err := r.RecvAndSend(); err != nil {
				logger.Debug("node:poll", slog.String("err", err.Error()))
			}
			time.Sleep(pollTime)
		}
	}()

	updates := make(chan bus.StatusUpdate, 4)
	if busClient != nil {
		go func() {
			if err := busClient.Run(r, broker, updates); err != nil {
				logger.Error("node:bus stopped", slog.String("err", err.Error()))
			}
		}()
	}

	frames := make(chan screen.Update, 8)
	if display, err := configureDisplay(); err != nil {
		logger.Warn("node:no display", slog.String("err", err.Error()))
	} else {
		go screen.NewHandler(display, frames, logger).Run()
	}

	sched := netman.NewPeriodic("wifi-reconnect", logger, mgr.Tick)
	sched.Start(0)

	lastState := netman.State(0xff)
	lastTelemetry := boot
	for {
		state := mgr.State()
		if state != lastState {
			lastState = state
			addr := ""
			if state == netman.StateAssociated {
				addr = r.Addr().String()
			}
			screen.Send(frames, screen.Update{
				State:  state,
				Reason: mgr.LastDisconnectReason(),
				Addr:   addr,
			})
		}

		if busClient != nil && time.Since(lastTelemetry) >= telemetryInterval {
			lastTelemetry = time.Now()
			select {
			case updates <- bus.StatusUpdate{
				State:                state.String(),
				LastDisconnectReason: mgr.LastDisconnectReason(),
				ClockQuality:         clock.Quality().String(),
				Uptime:               time.Since(boot),
				Time:                 clock.Now(),
			}:
			default:
			}
		}

		time.Sleep(statusPollInterval)
	}
}

// configureDisplay sets up the HD44780 status display on I2C0. Missing
// hardware is not fatal; the node just runs headless.
func configureDisplay() (hd44780i2c.Device, error) {
	err := machine.I2C0.Configure(machine.I2CConfig{
		SDA: machine.GP4,
		SCL: machine.GP5,
	})
	if err != nil {
		return hd44780i2c.Device{}, err
	}
	dev := hd44780i2c.New(machine.I2C0, 0x27)
	err = dev.Configure(hd44780i2c.Config{Width: 16, Height: 2})
	return dev, err
}

// logErrForever prints the error at 1Hz forever, in case the serial
// monitor attaches after the failure.
func logErrForever(logger *slog.Logger, msg string, args ...any) {
	for {
		logger.Error(msg, args...)
		time.Sleep(time.Second)
	}
}
