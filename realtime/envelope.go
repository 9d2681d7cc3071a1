// Package realtime holds the live-connection layer: the per-connection
// Client, the address-keyed Registry, and the websocket Gateway.
package realtime

import (
	"encoding/json"
	"time"

	"github.com/layer-3/herald/core"
)

// Envelope is the framing for every message on a realtime connection.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	TS      time.Time       `json:"ts"`
}

const (
	TypeHello        = "hello"
	TypeHelloAck     = "hello.ack"
	TypeNotification = "notification"
	TypeError        = "error"
)

// HelloPayload is the client's authentication payload, sent as the first
// envelope after the upgrade.
type HelloPayload struct {
	UserAddress string `json:"userAddress"`
	Ticket      string `json:"ticket"`
}

// HelloAckPayload acknowledges a successful handshake.
type HelloAckPayload struct {
	ConnectionID string `json:"connectionId"`
	UserAddress  string `json:"userAddress"`
}

// ErrorPayload carries an opaque error code to the client.
type ErrorPayload struct {
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}

// NewEnvelope wraps a payload struct into an envelope of the given type.
func NewEnvelope(typ string, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: typ, Payload: raw, TS: time.Now().UTC()}, nil
}

// NotificationEnvelope wraps one notification for server-to-client push.
// One notification per emission.
func NotificationEnvelope(n core.Notification) (Envelope, error) {
	return NewEnvelope(TypeNotification, n)
}
