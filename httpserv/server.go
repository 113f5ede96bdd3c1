//go:build !tinygo

// Package httpserv hosts the device's two long-lived network-facing
// services: a plaintext web server and a TLS API server. Both are started
// exactly once by the connectivity manager's activation sequence; Start is
// idempotent so a repeated activation cannot double-bind a port.
package httpserv

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aalhard/firmware/netman"
	"github.com/aalhard/firmware/rtc"
)

// StatusSource is what the handlers read from the connectivity manager.
// *netman.Manager satisfies it.
type StatusSource interface {
	State() netman.State
	LastDisconnectReason() int
	StartupComplete() bool
}

// Options configures a server. Zero-valued timeouts get conservative
// defaults suitable for a device control plane.
type Options struct {
	Addr              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	Logger            *slog.Logger
}

func (o *Options) fillDefaults() {
	if o.ReadTimeout == 0 {
		o.ReadTimeout = 5 * time.Second
	}
	if o.ReadHeaderTimeout == 0 {
		o.ReadHeaderTimeout = 2 * time.Second
	}
	if o.WriteTimeout == 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.IdleTimeout == 0 {
		o.IdleTimeout = 60 * time.Second
	}
	if o.ShutdownTimeout == 0 {
		o.ShutdownTimeout = 5 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// Server is one of the two services. It implements netman.Service.
type Server struct {
	name string
	http *http.Server
	log  *slog.Logger
	opts Options
	once sync.Once
}

// NewWeb builds the plaintext web server.
func NewWeb(src StatusSource, clock *rtc.Clock, opts Options) *Server {
	opts.fillDefaults()
	if opts.Addr == "" {
		opts.Addr = ":80"
	}
	return newServer("web", src, clock, opts, nil)
}

// NewAPI builds the TLS API server with a freshly generated self-signed
// certificate; the certificate exists before the first connection is ever
// accepted, mirroring the boot-time generation on the original hardware.
func NewAPI(src StatusSource, clock *rtc.Clock, hostname string, opts Options) (*Server, error) {
	opts.fillDefaults()
	if opts.Addr == "" {
		opts.Addr = ":443"
	}
	cert, err := SelfSignedCert(hostname)
	if err != nil {
		return nil, errors.New("httpserv: certificate generation: " + err.Error())
	}
	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	return newServer("api", src, clock, opts, tlsCfg), nil
}

func newServer(name string, src StatusSource, clock *rtc.Clock, opts Options, tlsCfg *tls.Config) *Server {
	mux := http.NewServeMux()
	s := &Server{
		name: name,
		log:  opts.Logger,
		opts: opts,
		http: &http.Server{
			Addr:              opts.Addr,
			Handler:           mux,
			ReadTimeout:       opts.ReadTimeout,
			ReadHeaderTimeout: opts.ReadHeaderTimeout,
			WriteTimeout:      opts.WriteTimeout,
			IdleTimeout:       opts.IdleTimeout,
			TLSConfig:         tlsCfg,
		},
	}

	started := time.Now()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /api/v1/status", StatusHandler(src, clock, started))
	return s
}

// Status is the JSON document served at /api/v1/status: the external
// surface for the connectivity diagnostics.
type Status struct {
	State                string    `json:"state"`
	LastDisconnectReason int       `json:"last_disconnect_reason"`
	StartupComplete      bool      `json:"startup_complete"`
	ClockQuality         string    `json:"clock_quality"`
	Time                 time.Time `json:"time"`
	UptimeSeconds        int64     `json:"uptime_s"`
}

// StatusHandler serves the connectivity status document. Exposed separately
// so both servers, and tests, mount the same handler.
func StatusHandler(src StatusSource, clock *rtc.Clock, started time.Time) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		st := Status{
			State:                src.State().String(),
			LastDisconnectReason: src.LastDisconnectReason(),
			StartupComplete:      src.StartupComplete(),
			UptimeSeconds:        int64(time.Since(started).Seconds()),
		}
		if clock != nil {
			st.ClockQuality = clock.Quality().String()
			st.Time = clock.Now()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(st)
	})
}

// Name implements netman.Service.
func (s *Server) Name() string { return s.name }

// Start implements netman.Service: begin serving in the background. Only
// the first call does anything.
func (s *Server) Start() error {
	s.once.Do(func() {
		go func() {
			s.log.Info("httpserv:listening",
				slog.String("server", s.name),
				slog.String("addr", s.http.Addr))
			var err error
			if s.http.TLSConfig != nil {
				err = s.http.ListenAndServeTLS("", "")
			} else {
				err = s.http.ListenAndServe()
			}
			if !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("httpserv:serve",
					slog.String("server", s.name),
					slog.String("err", err.Error()))
			}
		}()
	})
	return nil
}

// Stop shuts the server down gracefully, bounded by ShutdownTimeout.
func (s *Server) Stop(ctx context.Context) error {
	if s.opts.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ShutdownTimeout)
		defer cancel()
	}
	return s.http.Shutdown(ctx)
}
