package ports

import "context"

// EventPublisher publishes auth and delivery events for other services.
// Publish failures are logged by callers and never fail the operation
// that triggered them.
type EventPublisher interface {
	PublishLogin(ctx context.Context, address string) error
	PublishLogout(ctx context.Context, address string) error
	PublishDelivered(ctx context.Context, address, notificationID string) error
}
