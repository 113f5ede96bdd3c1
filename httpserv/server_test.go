//go:build !tinygo

package httpserv

import (
	"crypto/x509"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/aalhard/firmware/netman"
	"github.com/aalhard/firmware/rtc"
)

type stubSource struct {
	state    netman.State
	reason   int
	complete bool
}

func (s *stubSource) State() netman.State       { return s.state }
func (s *stubSource) LastDisconnectReason() int { return s.reason }
func (s *stubSource) StartupComplete() bool     { return s.complete }

func TestStatusHandler(t *testing.T) {
	src := &stubSource{state: netman.StateAssociated, reason: 8, complete: true}
	clock := &rtc.Clock{}
	clock.Set(rtc.QualityNTP, time.Now())

	h := StatusHandler(src, clock, time.Now().Add(-90*time.Second))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var got Status
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if got.State != "associated" {
		t.Errorf("state = %q, want %q", got.State, "associated")
	}
	if got.LastDisconnectReason != 8 {
		t.Errorf("last_disconnect_reason = %d, want 8", got.LastDisconnectReason)
	}
	if !got.StartupComplete {
		t.Error("startup_complete = false")
	}
	if got.ClockQuality != "ntp" {
		t.Errorf("clock_quality = %q, want %q", got.ClockQuality, "ntp")
	}
	if got.UptimeSeconds < 89 || got.UptimeSeconds > 92 {
		t.Errorf("uptime_s = %d, want about 90", got.UptimeSeconds)
	}
}

func TestStatusHandlerNilClock(t *testing.T) {
	h := StatusHandler(&stubSource{state: netman.StateUninitialized}, nil, time.Now())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	var got Status
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if got.State != "uninitialized" {
		t.Errorf("state = %q, want %q", got.State, "uninitialized")
	}
	if got.ClockQuality != "" {
		t.Errorf("clock_quality = %q, want empty without a clock", got.ClockQuality)
	}
}

func TestHealthz(t *testing.T) {
	s := NewWeb(&stubSource{}, nil, Options{Addr: "127.0.0.1:0"})
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "ok")
	}
}

func TestSelfSignedCert(t *testing.T) {
	cert, err := SelfSignedCert("node-1a2b")
	if err != nil {
		t.Fatalf("SelfSignedCert: %v", err)
	}
	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatalf("generated certificate does not parse: %v", err)
	}
	if !slices.Contains(parsed.DNSNames, "node-1a2b") || !slices.Contains(parsed.DNSNames, "node-1a2b.local") {
		t.Errorf("DNSNames = %v, want hostname and hostname.local", parsed.DNSNames)
	}
	now := time.Now()
	if now.Before(parsed.NotBefore) || now.After(parsed.NotAfter) {
		t.Errorf("certificate not currently valid: %v .. %v", parsed.NotBefore, parsed.NotAfter)
	}
	// Validity starts in the past so a device with an unset clock can still
	// complete handshakes.
	if !parsed.NotBefore.Before(now.Add(-30 * time.Minute)) {
		t.Errorf("NotBefore = %v, want backdated", parsed.NotBefore)
	}
}

func TestNewAPIUsesTLS(t *testing.T) {
	s, err := NewAPI(&stubSource{}, nil, "node-1a2b", Options{Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("NewAPI: %v", err)
	}
	if s.http.TLSConfig == nil || len(s.http.TLSConfig.Certificates) != 1 {
		t.Fatal("API server has no TLS certificate")
	}
	if s.Name() != "api" {
		t.Errorf("Name = %q, want %q", s.Name(), "api")
	}
}
