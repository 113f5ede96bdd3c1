//go:build !tinygo

package bus

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestDisabledClientIsInert(t *testing.T) {
	c := NewClient(Config{Enabled: false, BrokerURL: "mqtt://localhost:1883"}, nil)

	if err := c.Connect(); err != nil {
		t.Errorf("Connect on disabled client: %v", err)
	}
	c.TriggerReconnect() // must not panic or spawn work
	if c.IsConnected() {
		t.Error("disabled client reports connected")
	}
	if err := c.PublishStatus(StatusUpdate{State: "associated"}); err == nil {
		t.Error("PublishStatus on disabled client should fail")
	}
	c.Disconnect()
}

func TestStatusUpdateOmitsZeroTime(t *testing.T) {
	// The hosted daemon publishes before the clock is ever set; the document
	// should carry no bogus epoch timestamp.
	st := StatusUpdate{
		State:  "awaiting-association",
		Uptime: time.Minute,
	}
	payload, err := json.Marshal(st)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(payload), `"time"`) {
		t.Errorf("payload carries an unset time: %s", payload)
	}
}
