//go:build tinygo

package bus

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"runtime"
	"time"

	"github.com/soypat/lneto/tcp"
	mqtt "github.com/soypat/natiu-mqtt"

	"github.com/aalhard/firmware/radio"
)

// NatiuClient is the TinyGo message-bus client. Its Run loop owns the TCP
// connection to the broker and reconnects on its own; TriggerReconnect only
// nudges a loop that is waiting out a dead link, which is the internal
// guard the connectivity manager relies on.
type NatiuClient struct {
	ID         string
	Timeout    time.Duration
	TCPBufSize int
	Topic      string
	Username   string
	Password   string
	Logger     *slog.Logger

	nudge chan struct{}
}

// NewNatiuClient prepares a client; the connection is made by Run.
func NewNatiuClient(id string, logger *slog.Logger) *NatiuClient {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &NatiuClient{
		ID:         id,
		Timeout:    5 * time.Second,
		TCPBufSize: 2030, // MTU - ethhdr - iphdr - tcphdr
		Logger:     logger,
		nudge:      make(chan struct{}, 1),
	}
}

// TriggerReconnect implements netman.Bus. Non-blocking; a nudge is dropped
// when one is already pending or the loop is mid-connect.
func (c *NatiuClient) TriggerReconnect() {
	select {
	case c.nudge <- struct{}{}:
	default:
	}
}

// Run connects to the broker at addr ("host:port") and publishes status
// updates until the updates channel closes. It reconnects after link loss,
// waiting for either a short backoff or a reconnect nudge.
func (c *NatiuClient) Run(r *radio.PicoW, addr string, updates <-chan StatusUpdate) error {
	const pollTime = 5 * time.Millisecond

	host, port, err := splitHostPort(addr)
	if err != nil {
		return errors.New("bus: address " + addr + ": " + err.Error())
	}

	stack := r.Stack()
	rstack := stack.StackRetrying(pollTime)

	var brokerAddr netip.Addr
	if parsed, err := netip.ParseAddr(host); err == nil {
		brokerAddr = parsed
	} else {
		c.Logger.Info("bus:resolving broker", slog.String("host", host))
		addrs, err := rstack.DoLookupIP(host, 5*time.Second, 3)
		if err != nil {
			return errors.New("bus: dns lookup " + host + ": " + err.Error())
		}
		if len(addrs) == 0 {
			return errors.New("bus: dns lookup " + host + ": no addresses")
		}
		brokerAddr = addrs[0]
	}
	serverAddr := netip.AddrPortFrom(brokerAddr, parsePort(port))

	topic := c.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	pubFlags, _ := mqtt.NewPublishFlags(mqtt.QoS0, false, false)
	pubVar := mqtt.VariablesPublish{TopicName: []byte(topic)}

	cfg := mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: make([]byte, 4096)},
		OnPub: func(_ mqtt.Header, varPub mqtt.VariablesPublish, _ io.Reader) error {
			c.Logger.Info("bus:message", slog.String("topic", string(varPub.TopicName)))
			return nil
		},
	}
	var varconn mqtt.VariablesConnect
	varconn.SetDefaultMQTT([]byte(c.ID))
	if c.Username != "" {
		varconn.Username = []byte(c.Username)
		if c.Password != "" {
			varconn.Password = []byte(c.Password)
		}
	}
	client := mqtt.NewClient(cfg)

	var conn tcp.Conn
	err = conn.Configure(tcp.ConnConfig{
		RxBuf:             make([]byte, c.TCPBufSize),
		TxBuf:             make([]byte, c.TCPBufSize),
		TxPacketQueueSize: 3,
	})
	if err != nil {
		return errors.New("bus: tcp configure: " + err.Error())
	}

	closeConn := func(reason string) {
		c.Logger.Warn("bus:closing connection", slog.String("reason", reason))
		conn.Close()
		for i := 0; i < 50 && !conn.State().IsClosed(); i++ {
			time.Sleep(100 * time.Millisecond)
		}
		conn.Abort()
	}

	for {
		localPort := uint16(r.Prand32()>>17) + 1024
		c.Logger.Info("bus:dialing",
			slog.String("broker", serverAddr.String()),
			slog.Uint64("localPort", uint64(localPort)))

		err = rstack.DoDialTCP(&conn, localPort, serverAddr, 10*time.Second, 3)
		if err != nil {
			c.Logger.Error("bus:dial failed", slog.String("err", err.Error()))
			closeConn("dial failed")
			c.awaitRetry(2 * time.Second)
			continue
		}

		conn.SetDeadline(time.Now().Add(c.Timeout))
		if err := client.StartConnect(&conn, &varconn); err != nil {
			c.Logger.Error("bus:connect failed", slog.String("err", err.Error()))
			closeConn("connect failed")
			c.awaitRetry(2 * time.Second)
			continue
		}
		for retries := 50; retries > 0 && !client.IsConnected(); retries-- {
			time.Sleep(100 * time.Millisecond)
			if err := client.HandleNext(); err != nil {
				c.Logger.Error("bus:handle-next", slog.String("err", err.Error()))
			}
		}
		if !client.IsConnected() {
			c.Logger.Error("bus:connect timed out", slog.Any("reason", client.Err()))
			closeConn("connect timed out")
			c.awaitRetry(2 * time.Second)
			continue
		}
		c.Logger.Info("bus:connected")

		for client.IsConnected() {
			select {
			case st, ok := <-updates:
				if !ok {
					closeConn("shutting down")
					return nil
				}
				payload, err := json.Marshal(st)
				if err != nil {
					c.Logger.Error("bus:marshal", slog.String("err", err.Error()))
					continue
				}
				conn.SetDeadline(time.Now().Add(c.Timeout))
				pubVar.PacketIdentifier = uint16(r.Prand32())
				if err := client.PublishPayload(pubFlags, pubVar, payload); err != nil {
					c.Logger.Error("bus:publish", slog.String("err", err.Error()))
					continue
				}
				if err := client.HandleNext(); err != nil {
					c.Logger.Error("bus:handle-next", slog.String("err", err.Error()))
				}
			case <-c.nudge:
				// Already connected; the nudge is informational.
			default:
				// Single-core target: hand the scheduler to other
				// goroutines when idle.
				runtime.Gosched()
			}
		}

		c.Logger.Error("bus:disconnected", slog.Any("reason", client.Err()))
		closeConn("disconnected")
		c.awaitRetry(2 * time.Second)
	}
}

// awaitRetry sleeps out the backoff, returning early on a reconnect nudge.
func (c *NatiuClient) awaitRetry(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-c.nudge:
	case <-timer.C:
	}
}

func splitHostPort(addr string) (host, port string, err error) {
	colon := -1
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			colon = i
			break
		}
	}
	if colon == -1 {
		return "", "", errors.New("missing port")
	}
	host, port = addr[:colon], addr[colon+1:]
	if host == "" {
		return "", "", errors.New("empty host")
	}
	if port == "" {
		return "", "", errors.New("empty port")
	}
	return host, port, nil
}

func parsePort(s string) uint16 {
	var port uint16
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0
		}
		port = port*10 + uint16(s[i]-'0')
	}
	return port
}
