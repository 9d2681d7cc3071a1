package core

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Notification is one durable message for one recipient address.
// IsSent transitions false -> true exactly once and never reverses.
type Notification struct {
	ID          string          `json:"id"`
	UserAddress string          `json:"userAddress"`
	Payload     json.RawMessage `json:"payload"`
	IsSent      bool            `json:"isSent"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Incoming is a producer-supplied notification before it has been
// appended to the log.
type Incoming struct {
	UserAddress string          `json:"userAddress"`
	Payload     json.RawMessage `json:"payload"`
}

// PriceAlert is the canonical payload shape produced by the portfolio
// side of the application. The delivery path treats payloads as opaque;
// this type exists so producers and clients agree on the wire shape.
type PriceAlert struct {
	Asset     string          `json:"asset"`
	Price     decimal.Decimal `json:"price"`
	Change24h decimal.Decimal `json:"change24h"`
	Currency  string          `json:"currency"`
}

// PriceAlertPayload encodes a PriceAlert as a notification payload.
func PriceAlertPayload(a PriceAlert) (json.RawMessage, error) {
	return json.Marshal(a)
}
