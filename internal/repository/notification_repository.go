package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-gate-api/internal/models"
)

const notificationColumns = `id, user_id, type, title, message, read, event_key, created_at`

// NotificationRepository handles persistence of notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Insert writes the rows in one transaction. Rows whose (user_id, event_key) already exist
// are skipped, so replaying an event is harmless.
func (r *NotificationRepository) Insert(ctx context.Context, notifications []models.Notification) (int, error) {
	if len(notifications) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, mapError("begin notification insert", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO notifications (` + notificationColumns + `)
        VALUES (:id, :user_id, :type, :title, :message, :read, :event_key, :created_at)
        ON CONFLICT (user_id, event_key) DO NOTHING`

	now := time.Now().UTC()
	inserted := 0
	for i := range notifications {
		n := &notifications[i]
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}
		res, err := tx.NamedExecContext(ctx, query, n)
		if err != nil {
			return 0, mapError("insert notification", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("insert notification rows affected: %w", err)
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, mapError("commit notification insert", err)
	}
	return inserted, nil
}

// FindByID returns a notification by its ID.
func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	const query = `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	var notification models.Notification
	if err := r.db.GetContext(ctx, &notification, query, id); err != nil {
		return nil, mapError("find notification", err)
	}
	return &notification, nil
}

// List returns a user's notifications, newest first.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error) {
	var builder strings.Builder
	builder.WriteString("SELECT " + notificationColumns + " FROM notifications WHERE user_id = $1")
	args := []interface{}{filter.UserID}
	if filter.UnreadOnly {
		builder.WriteString(" AND read = FALSE")
	}
	builder.WriteString(" ORDER BY created_at DESC, id")
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d", limit))

	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, builder.String(), args...); err != nil {
		return nil, mapError("list notifications", err)
	}
	return notifications, nil
}

// MarkRead flags one notification as read; the row must belong to userID.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	const query = `UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return mapError("mark notification read", err)
	}
	return requireAffected("mark notification read", res)
}

// MarkAllRead flags every unread notification of userID and returns how many changed.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	const query = `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, mapError("mark all notifications read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read rows affected: %w", err)
	}
	return n, nil
}
