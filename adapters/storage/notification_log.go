package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/herald/core"
	"github.com/layer-3/herald/ports"
)

// NotificationLog is the Postgres implementation of
// ports.NotificationLog. Sent rows are retained for audit.
type NotificationLog struct {
	db *PostgresDB
}

// NewNotificationLog creates a new notification log backed by db.
func NewNotificationLog(db *PostgresDB) ports.NotificationLog {
	return &NotificationLog{db: db}
}

// Append stores a new unsent notification for address.
func (l *NotificationLog) Append(ctx context.Context, address string, payload json.RawMessage) (core.Notification, error) {
	n := core.Notification{
		ID:          uuid.New().String(),
		UserAddress: address,
		Payload:     payload,
		IsSent:      false,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := l.db.Pool().Exec(ctx,
		`INSERT INTO notifications (id, user_address, payload, is_sent, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		n.ID, n.UserAddress, []byte(n.Payload), n.IsSent, n.CreatedAt,
	)
	if err != nil {
		return core.Notification{}, core.NewFault(core.FaultUpstream, "failed to append notification", err)
	}

	return n, nil
}

// MarkSent claims the false->true transition for id. The WHERE clause is
// the single-writer rule: whichever caller flips the row first wins, any
// later call is a no-op.
func (l *NotificationLog) MarkSent(ctx context.Context, id string) (bool, error) {
	tag, err := l.db.Pool().Exec(ctx,
		`UPDATE notifications SET is_sent = TRUE WHERE id = $1 AND is_sent = FALSE`,
		id,
	)
	if err != nil {
		return false, core.NewFault(core.FaultUpstream, "failed to mark notification sent", err)
	}
	return tag.RowsAffected() > 0, nil
}

// PendingFor returns the unsent notifications for address, oldest first.
func (l *NotificationLog) PendingFor(ctx context.Context, address string) ([]core.Notification, error) {
	rows, err := l.db.Pool().Query(ctx,
		`SELECT id, user_address, payload, is_sent, created_at
		 FROM notifications
		 WHERE user_address = $1 AND is_sent = FALSE
		 ORDER BY created_at, id`,
		address,
	)
	if err != nil {
		return nil, core.NewFault(core.FaultUpstream, "failed to query pending notifications", err)
	}
	defer rows.Close()

	var pending []core.Notification
	for rows.Next() {
		var n core.Notification
		var payload []byte
		if err := rows.Scan(&n.ID, &n.UserAddress, &payload, &n.IsSent, &n.CreatedAt); err != nil {
			return nil, core.NewFault(core.FaultUpstream, "failed to scan notification", err)
		}
		n.Payload = json.RawMessage(payload)
		pending = append(pending, n)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewFault(core.FaultUpstream, "error iterating notifications", err)
	}

	return pending, nil
}
