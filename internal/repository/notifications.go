package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/deppfellow/schoolhub/internal/model"
)

type NotificationRepository struct {
	store
}

func (r *NotificationRepository) Create(ctx context.Context, tenantID string, n model.NewNotification) (*model.Notification, error) {
	stmt := `
		INSERT INTO notifications (id, tenant_id, user_id, kind, title, body, link)
		VALUES (@id, @tenant_id, @user_id, @kind, @title, @body, @link)
		RETURNING *
	`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{
		"id":        uuid.NewString(),
		"tenant_id": tenantID,
		"user_id":   n.UserID,
		"kind":      n.Kind,
		"title":     n.Title,
		"body":      n.Body,
		"link":      n.Link,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute create notification query for user_id=%s: %w", n.UserID, err)
	}

	return collectOne[model.Notification](rows, "notifications")
}

// List returns unread notifications first, newest first within each group.
func (r *NotificationRepository) List(ctx context.Context, tenantID, userID string, q *model.ListNotificationsQuery) ([]model.Notification, int, error) {
	b := psql.Select().From("notifications").Where(sq.Eq{"tenant_id": tenantID, "user_id": userID})
	if q.UnreadOnly {
		b = b.Where(sq.Eq{"read_at": nil})
	}
	return selectPage[model.Notification](ctx, r.db(ctx), "notifications", "*", b, "(read_at IS NULL) DESC, created_at DESC, id", q.Pagination)
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, tenantID, userID string) (int, error) {
	var n int
	err := r.db(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE tenant_id = @tenant_id AND user_id = @user_id AND read_at IS NULL
	`, pgx.NamedArgs{"tenant_id": tenantID, "user_id": userID}).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications for user_id=%s: %w", userID, err)
	}
	return n, nil
}

// MarkRead marks one of the user's notifications read. Already read ones
// keep their original read_at.
func (r *NotificationRepository) MarkRead(ctx context.Context, tenantID, userID, id string) (*model.Notification, error) {
	stmt := `
		UPDATE notifications SET read_at = COALESCE(read_at, now())
		WHERE tenant_id = @tenant_id AND user_id = @user_id AND id = @id
		RETURNING *
	`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{"tenant_id": tenantID, "user_id": userID, "id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to execute mark read query for notification_id=%s: %w", id, err)
	}

	return collectOne[model.Notification](rows, "notifications")
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, tenantID, userID string) (int, error) {
	tag, err := r.db(ctx).Exec(ctx, `
		UPDATE notifications SET read_at = now()
		WHERE tenant_id = @tenant_id AND user_id = @user_id AND read_at IS NULL
	`, pgx.NamedArgs{"tenant_id": tenantID, "user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to mark all notifications read for user_id=%s: %w", userID, err)
	}
	return int(tag.RowsAffected()), nil
}
