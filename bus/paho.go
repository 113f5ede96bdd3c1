//go:build !tinygo

package bus

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Config configures the hosted MQTT client.
type Config struct {
	Enabled       bool   `json:"enabled"`
	BrokerURL     string `json:"broker_url"` // mqtt://host:1883 or mqtts://host:8883
	ClientID      string `json:"client_id"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	Topic         string `json:"topic"`
	TLSSkipVerify bool   `json:"tls_skip_verify"`
	QoS           byte   `json:"qos"`
}

// Client is the hosted message-bus client. It implements netman.Bus:
// TriggerReconnect is safe to call on every connectivity restoration
// because at most one reconnect attempt runs at a time and a healthy
// connection makes it a no-op.
type Client struct {
	cfg    Config
	log    *slog.Logger
	client mqtt.Client

	reconnecting atomic.Bool
}

// NewClient builds the client without connecting. A disabled config yields
// a client whose every method is a no-op.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Client{cfg: cfg, log: logger}
	if !cfg.Enabled {
		return c
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if strings.HasPrefix(cfg.BrokerURL, "mqtts://") || cfg.TLSSkipVerify {
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: cfg.TLSSkipVerify})
	}
	// Reconnects ride the connectivity manager's restoration hook instead
	// of paho's internal timer, so a dead uplink doesn't spin.
	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("bus:connection lost", slog.String("err", err.Error()))
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// Connect performs the initial broker connection. Failure is returned but
// is not fatal to the caller; the reconnect hook will try again on the next
// connectivity restoration.
func (c *Client) Connect() error {
	if !c.cfg.Enabled || c.client == nil {
		return nil
	}
	token := c.client.Connect()
	token.Wait()
	return token.Error()
}

// TriggerReconnect implements netman.Bus. It returns immediately; the
// attempt, if one is needed, runs in the background.
func (c *Client) TriggerReconnect() {
	if !c.cfg.Enabled || c.client == nil {
		return
	}
	if c.client.IsConnected() {
		return
	}
	if !c.reconnecting.CompareAndSwap(false, true) {
		return // an attempt is already in flight
	}
	go func() {
		defer c.reconnecting.Store(false)
		c.log.Info("bus:reconnecting", slog.String("broker", c.cfg.BrokerURL))
		token := c.client.Connect()
		token.Wait()
		if err := token.Error(); err != nil {
			c.log.Warn("bus:reconnect failed", slog.String("err", err.Error()))
			return
		}
		c.log.Info("bus:reconnected")
	}()
}

// IsConnected reports whether the broker session is up.
func (c *Client) IsConnected() bool {
	return c.cfg.Enabled && c.client != nil && c.client.IsConnected()
}

// PublishStatus publishes a telemetry document to the configured topic.
func (c *Client) PublishStatus(st StatusUpdate) error {
	if !c.IsConnected() {
		return errors.New("bus: not connected")
	}
	payload, err := json.Marshal(st)
	if err != nil {
		return err
	}
	topic := c.cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	token := c.client.Publish(topic, c.cfg.QoS, false, payload)
	token.Wait()
	return token.Error()
}

// Disconnect closes the broker session, allowing in-flight work a short
// drain.
func (c *Client) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
}
