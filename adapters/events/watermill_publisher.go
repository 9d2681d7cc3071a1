// Package events publishes auth and delivery events over Watermill so
// sibling services (analytics, audit) can react without coupling to the
// delivery core.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/layer-3/herald/ports"
)

const (
	TopicLogin     = "herald.auth.login"
	TopicLogout    = "herald.auth.logout"
	TopicDelivered = "herald.notification.delivered"
)

// AuthEvent is emitted on login and logout.
type AuthEvent struct {
	Address string    `json:"address"`
	At      time.Time `json:"at"`
}

// DeliveredEvent is emitted once per notification when it is marked sent.
type DeliveredEvent struct {
	Address        string    `json:"address"`
	NotificationID string    `json:"notification_id"`
	At             time.Time `json:"at"`
}

// WatermillPublisher implements ports.EventPublisher on top of any
// Watermill publisher (Redis Streams in production, gochannel in tests).
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill-backed publisher.
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishLogin publishes a login event.
func (p *WatermillPublisher) PublishLogin(ctx context.Context, address string) error {
	return p.publish(TopicLogin, AuthEvent{Address: address, At: time.Now().UTC()})
}

// PublishLogout publishes a logout event.
func (p *WatermillPublisher) PublishLogout(ctx context.Context, address string) error {
	return p.publish(TopicLogout, AuthEvent{Address: address, At: time.Now().UTC()})
}

// PublishDelivered publishes a delivered event for one notification.
func (p *WatermillPublisher) PublishDelivered(ctx context.Context, address, notificationID string) error {
	return p.publish(TopicDelivered, DeliveredEvent{
		Address:        address,
		NotificationID: notificationID,
		At:             time.Now().UTC(),
	})
}

func (p *WatermillPublisher) publish(topic string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
