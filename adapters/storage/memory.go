package storage

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/herald/core"
	"github.com/layer-3/herald/ports"
)

// MemoryDirectory is an in-memory ports.UserDirectory for tests and
// single-process deployments.
type MemoryDirectory struct {
	mu    sync.Mutex
	users map[string]core.User
}

// NewMemoryDirectory creates a new in-memory user directory.
func NewMemoryDirectory() ports.UserDirectory {
	return &MemoryDirectory{users: make(map[string]core.User)}
}

// EnsureUser creates the record on first call and returns the existing
// one afterwards.
func (d *MemoryDirectory) EnsureUser(ctx context.Context, address string) (core.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if user, ok := d.users[address]; ok {
		return user, nil
	}
	user := core.User{Address: address, CreatedAt: time.Now().UTC()}
	d.users[address] = user
	return user, nil
}

// MemoryLog is an in-memory ports.NotificationLog with the same
// semantics as the Postgres adapter.
type MemoryLog struct {
	mu            sync.Mutex
	notifications []core.Notification
	index         map[string]int
	clock         func() time.Time
	seq           int64
}

// NewMemoryLog creates a new in-memory notification log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		index: make(map[string]int),
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// Append stores a new unsent notification for address.
func (l *MemoryLog) Append(ctx context.Context, address string, payload json.RawMessage) (core.Notification, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	n := core.Notification{
		ID:          uuid.New().String(),
		UserAddress: address,
		Payload:     payload,
		IsSent:      false,
		CreatedAt:   l.clock().Add(time.Duration(l.seq)), // strictly increasing
	}
	l.index[n.ID] = len(l.notifications)
	l.notifications = append(l.notifications, n)
	return n, nil
}

// MarkSent claims the false->true transition for id.
func (l *MemoryLog) MarkSent(ctx context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.index[id]
	if !ok || l.notifications[i].IsSent {
		return false, nil
	}
	l.notifications[i].IsSent = true
	return true, nil
}

// PendingFor returns the unsent notifications for address, oldest first.
func (l *MemoryLog) PendingFor(ctx context.Context, address string) ([]core.Notification, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var pending []core.Notification
	for _, n := range l.notifications {
		if n.UserAddress == address && !n.IsSent {
			pending = append(pending, n)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}

// All returns every notification for address regardless of sent state.
// Test helper.
func (l *MemoryLog) All(address string) []core.Notification {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []core.Notification
	for _, n := range l.notifications {
		if n.UserAddress == address {
			out = append(out, n)
		}
	}
	return out
}
