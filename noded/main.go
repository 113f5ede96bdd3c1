//go:build !tinygo

// Command noded runs the connectivity manager on hosted Linux devices. The
// NetworkManager supplicant plays the role of the radio driver: noded
// steers it through nmcli and watches interface addresses to synthesize
// connectivity events.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/aalhard/firmware/bus"
	"github.com/aalhard/firmware/httpserv"
	"github.com/aalhard/firmware/mdns"
	"github.com/aalhard/firmware/netman"
	"github.com/aalhard/firmware/radio"
	"github.com/aalhard/firmware/rtc"
	"github.com/aalhard/firmware/timesync"
)

type fileConfig struct {
	Wifi struct {
		Enabled  bool   `json:"enabled"`
		SSID     string `json:"ssid"`
		PSK      string `json:"psk"`
		Iface    string `json:"iface"`
		Hostname string `json:"hostname"`
	} `json:"wifi"`
	NTP struct {
		Server string `json:"server"`
	} `json:"ntp"`
	MQTT bus.Config `json:"mqtt"`
	HTTP struct {
		Addr    string `json:"addr"`
		TLSAddr string `json:"tls_addr"`
	} `json:"http"`
}

func loadConfig(path string, logger *slog.Logger) fileConfig {
	var cfg fileConfig
	cfg.HTTP.Addr = ":8080"
	cfg.HTTP.TLSAddr = ":8443"

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("noded:config not read, using defaults", slog.String("err", err.Error()))
		return cfg
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		logger.Warn("noded:config invalid, using defaults", slog.String("err", err.Error()))
	}
	return cfg
}

// lazyStatus lets the HTTP servers be built before the manager they report
// on; the manager reference lands once construction completes.
type lazyStatus struct {
	mgr atomic.Pointer[netman.Manager]
}

func (l *lazyStatus) State() netman.State {
	if m := l.mgr.Load(); m != nil {
		return m.State()
	}
	return netman.StateUninitialized
}

func (l *lazyStatus) LastDisconnectReason() int {
	if m := l.mgr.Load(); m != nil {
		return m.LastDisconnectReason()
	}
	return netman.ReasonNone
}

func (l *lazyStatus) StartupComplete() bool {
	if m := l.mgr.Load(); m != nil {
		return m.StartupComplete()
	}
	return false
}

func main() {
	configPath := flag.String("config", "/etc/noded/config.json", "path to JSON configuration")
	logLevel := flag.String("log-level", "info", "log level (debug|info|warn|error)")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := loadConfig(*configPath, logger)

	hostname := cfg.Wifi.Hostname
	if hostname == "" {
		hostname, _ = os.Hostname()
	}

	clock := &rtc.Clock{}
	src := &lazyStatus{}

	web := httpserv.NewWeb(src, clock, httpserv.Options{
		Addr:   cfg.HTTP.Addr,
		Logger: logger,
	})
	api, err := httpserv.NewAPI(src, clock, hostname, httpserv.Options{
		Addr:   cfg.HTTP.TLSAddr,
		Logger: logger,
	})
	if err != nil {
		logger.Error("noded:api server", slog.String("err", err.Error()))
		os.Exit(1)
	}

	announcer := mdns.New(mdns.Config{Hostname: hostname}, logger)
	busClient := bus.NewClient(cfg.MQTT, logger)

	mgr := netman.New(netman.Config{
		Enabled:  cfg.Wifi.Enabled,
		SSID:     cfg.Wifi.SSID,
		PSK:      cfg.Wifi.PSK,
		Hostname: hostname,
	}, netman.Collaborators{
		Radio:     radio.NewNMCli(cfg.Wifi.Iface, logger),
		Clock:     clock,
		Time:      &timesync.NTPSource{Host: cfg.NTP.Server, Logger: logger},
		Announcer: announcer,
		Bus:       busClient,
		Services:  []netman.Service{web, api},
	}, logger)
	src.mgr.Store(mgr)

	watch := radio.NewLinkWatch(cfg.Wifi.Iface, 0, mgr.HandleEvent, logger)
	watch.Start()

	sched := netman.NewPeriodic("wifi-reconnect", logger, mgr.Tick)
	sched.Start(time.Second)

	boot := time.Now()
	telemetry := netman.NewPeriodic("telemetry", logger, func() time.Duration {
		if busClient.IsConnected() {
			err := busClient.PublishStatus(bus.StatusUpdate{
				State:                mgr.State().String(),
				LastDisconnectReason: mgr.LastDisconnectReason(),
				ClockQuality:         clock.Quality().String(),
				Uptime:               time.Since(boot),
				Time:                 clock.Now(),
			})
			if err != nil {
				logger.Warn("noded:telemetry publish", slog.String("err", err.Error()))
			}
		}
		return time.Minute
	})
	telemetry.Start(time.Minute)

	logger.Info("noded:running", slog.String("hostname", hostname))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("noded:shutting down")
	telemetry.Stop()
	sched.Stop()
	watch.Stop()
	mgr.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := web.Stop(shutdownCtx); err != nil {
		logger.Warn("noded:web shutdown", slog.String("err", err.Error()))
	}
	if err := api.Stop(shutdownCtx); err != nil {
		logger.Warn("noded:api shutdown", slog.String("err", err.Error()))
	}
	announcer.Shutdown()
	busClient.Disconnect()
}
