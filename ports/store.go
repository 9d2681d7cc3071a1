package ports

import (
	"context"
	"encoding/json"

	"github.com/layer-3/herald/core"
)

// SessionStore holds per-client authentication state keyed by session id.
type SessionStore interface {
	// Load returns the session for sid, or the zero-value default when
	// none exists. It fails only on storage faults.
	Load(ctx context.Context, sid string) (core.Session, error)

	// Save persists the session under sid.
	Save(ctx context.Context, sid string, session core.Session) error

	// Destroy resets the session; a subsequent Load returns the default.
	Destroy(ctx context.Context, sid string) error
}

// UserDirectory owns the durable identity records keyed by address.
type UserDirectory interface {
	// EnsureUser looks the address up and creates a minimal record when
	// absent. Calling it twice with the same address yields exactly one
	// record and never errors on the second call.
	EnsureUser(ctx context.Context, address string) (core.User, error)
}

// NotificationLog is the durable append-and-update store of notifications.
type NotificationLog interface {
	// Append stores a new unsent notification for address.
	Append(ctx context.Context, address string, payload json.RawMessage) (core.Notification, error)

	// MarkSent claims the false->true transition for id. It reports
	// whether this call performed the transition; marking an already
	// sent notification is a no-op, not an error.
	MarkSent(ctx context.Context, id string) (bool, error)

	// PendingFor returns the unsent notifications for address, oldest
	// first.
	PendingFor(ctx context.Context, address string) ([]core.Notification, error)
}
