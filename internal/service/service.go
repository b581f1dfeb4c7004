// Package service contains the business logic.
//
// It sits between the handler and repository layers. It receives
// validated payloads and the authenticated actor from the handler,
// enforces the domain rules, and calls the repositories. Services depend
// on small interfaces so they can be tested without a database.
package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/deppfellow/schoolhub/internal/logger"
	"github.com/deppfellow/schoolhub/internal/model"
)

// TxRunner runs fn inside one database transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Mailer queues an email for background delivery.
type Mailer interface {
	Queue(ctx context.Context, tenantID string, msg model.OutgoingEmail) (*model.EmailMessage, error)
}

// Notifier stores an in-app notification.
type Notifier interface {
	Notify(ctx context.Context, tenantID string, n model.NewNotification) (*model.Notification, error)
}

// Clock is the time source of a service.
type Clock func() time.Time

func utcNow() time.Time {
	return time.Now().UTC()
}

// sideEffects sends the emails and notifications that follow a committed
// change. They are best effort: failures are logged and never undo the
// change.
type sideEffects struct {
	mailer   Mailer
	notifier Notifier
	logger   *zerolog.Logger
}

func (s sideEffects) mail(ctx context.Context, tenantID string, msg model.OutgoingEmail) {
	if s.mailer == nil || msg.To == "" {
		return
	}
	if _, err := s.mailer.Queue(ctx, tenantID, msg); err != nil {
		logger.FromContext(ctx, s.logger).Error().
			Err(err).
			Str("template", string(msg.Template)).
			Msg("failed to queue email")
	}
}

func (s sideEffects) notify(ctx context.Context, tenantID string, n model.NewNotification) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, tenantID, n); err != nil {
		logger.FromContext(ctx, s.logger).Error().
			Err(err).
			Str("user_id", n.UserID).
			Str("kind", string(n.Kind)).
			Msg("failed to create notification")
	}
}
