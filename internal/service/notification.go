package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/deppfellow/schoolhub/internal/model"
)

type NotificationStore interface {
	Create(ctx context.Context, tenantID string, n model.NewNotification) (*model.Notification, error)
	List(ctx context.Context, tenantID, userID string, q *model.ListNotificationsQuery) ([]model.Notification, int, error)
	UnreadCount(ctx context.Context, tenantID, userID string) (int, error)
	MarkRead(ctx context.Context, tenantID, userID, id string) (*model.Notification, error)
	MarkAllRead(ctx context.Context, tenantID, userID string) (int, error)
}

// NotificationService manages the in-app inbox. Other services create
// notifications through Notify; users only read and acknowledge them.
type NotificationService struct {
	store  NotificationStore
	logger *zerolog.Logger
}

func NewNotificationService(store NotificationStore, logger *zerolog.Logger) *NotificationService {
	return &NotificationService{store: store, logger: logger}
}

func (s *NotificationService) Notify(ctx context.Context, tenantID string, n model.NewNotification) (*model.Notification, error) {
	if n.Kind == "" {
		n.Kind = model.NotificationSystem
	}
	return s.store.Create(ctx, tenantID, n)
}

func (s *NotificationService) List(ctx context.Context, actor model.Actor, q *model.ListNotificationsQuery) (*model.PaginatedResponse[model.Notification], error) {
	items, total, err := s.store.List(ctx, actor.TenantID, actor.UserID, q)
	if err != nil {
		return nil, err
	}
	return model.NewPage(items, q.Pagination, total), nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, actor model.Actor) (*model.UnreadCount, error) {
	n, err := s.store.UnreadCount(ctx, actor.TenantID, actor.UserID)
	if err != nil {
		return nil, err
	}
	return &model.UnreadCount{Count: n}, nil
}

// MarkRead acknowledges one notification. Another user's notification is
// reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, actor model.Actor, id string) (*model.Notification, error) {
	return s.store.MarkRead(ctx, actor.TenantID, actor.UserID, id)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, actor model.Actor) (*model.MarkAllReadResult, error) {
	n, err := s.store.MarkAllRead(ctx, actor.TenantID, actor.UserID)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("tenant_id", actor.TenantID).
		Str("user_id", actor.UserID).
		Int("updated", n).
		Msg("notifications marked read")

	return &model.MarkAllReadResult{Updated: n}, nil
}
