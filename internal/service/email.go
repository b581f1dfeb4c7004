package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/deppfellow/schoolhub/internal/errs"
	"github.com/deppfellow/schoolhub/internal/lib/email"
	"github.com/deppfellow/schoolhub/internal/lib/job"
	"github.com/deppfellow/schoolhub/internal/lib/metrics"
	"github.com/deppfellow/schoolhub/internal/logger"
	"github.com/deppfellow/schoolhub/internal/model"
	"github.com/deppfellow/schoolhub/internal/sqlerr"
)

// EmailWebhookSecretHeader carries the shared secret of the provider webhook.
const EmailWebhookSecretHeader = "X-Webhook-Secret"

type EmailStore interface {
	GetPreferences(ctx context.Context, tenantID, userID string) (email.Preferences, error)
	SavePreferences(ctx context.Context, tenantID, userID string, prefs email.Preferences) (email.Preferences, error)
	DisableMarketing(ctx context.Context, tenantID, userID string) error
	CreateMessage(ctx context.Context, m *model.EmailMessage) (*model.EmailMessage, error)
	GetMessage(ctx context.Context, tenantID, id string) (*model.EmailMessage, error)
	GetByProviderID(ctx context.Context, providerID string) (*model.EmailMessage, error)
	MarkSent(ctx context.Context, id, providerID string, at time.Time) error
	RecordFailure(ctx context.Context, id, reason string, final bool) error
	Advance(ctx context.Context, id string, from, to email.Status, at time.Time) (bool, error)
	List(ctx context.Context, tenantID string, q *model.ListEmailsQuery) ([]model.EmailMessage, int, error)
	StatusCounts(ctx context.Context, tenantID string, q *model.EmailAnalyticsQuery) (map[email.Status]int64, error)
}

// EmailSender is the delivery side of *email.Client.
type EmailSender interface {
	Provider() string
	SendEmail(ctx context.Context, id, to string, templateName email.Template, data map[string]any) (string, error)
}

// EmailService owns the lifecycle of outgoing mail: queueing with
// preference checks, delivery in the worker, and provider events.
type EmailService struct {
	store         EmailStore
	enqueuer      job.Enqueuer
	sender        EmailSender
	renderer      *email.Renderer
	metrics       *metrics.Metrics
	logger        *zerolog.Logger
	webhookSecret string
	now           Clock
}

func NewEmailService(
	store EmailStore,
	enqueuer job.Enqueuer,
	sender EmailSender,
	renderer *email.Renderer,
	m *metrics.Metrics,
	logger *zerolog.Logger,
	webhookSecret string,
) *EmailService {
	return &EmailService{
		store:         store,
		enqueuer:      enqueuer,
		sender:        sender,
		renderer:      renderer,
		metrics:       m,
		logger:        logger,
		webhookSecret: webhookSecret,
		now:           utcNow,
	}
}

// Queue stores the message and schedules its delivery. Mail the recipient
// opted out of is stored as suppressed and never sent.
func (s *EmailService) Queue(ctx context.Context, tenantID string, msg model.OutgoingEmail) (*model.EmailMessage, error) {
	defaultCategory, ok := email.Templates[msg.Template]
	if !ok {
		return nil, errors.Wrapf(email.ErrUnknownTemplate, "%q", string(msg.Template))
	}
	category := msg.Category
	if category == "" {
		category = defaultCategory
	}

	rendered, err := s.renderer.Render(msg.Template, msg.Data)
	if err != nil {
		return nil, err
	}

	status := email.StatusQueued
	if msg.UserID != nil && category != email.CategoryTransactional {
		prefs, err := s.store.GetPreferences(ctx, tenantID, *msg.UserID)
		if err != nil {
			return nil, err
		}
		if !prefs.Allows(category) {
			status = email.StatusSuppressed
		}
	}

	stored, err := s.store.CreateMessage(ctx, &model.EmailMessage{
		TenantID:  tenantID,
		UserID:    msg.UserID,
		ToAddress: msg.To,
		Category:  category,
		Template:  msg.Template,
		Subject:   rendered.Subject,
		Data:      msg.Data,
		Status:    status,
	})
	if err != nil {
		return nil, err
	}

	if status == email.StatusSuppressed {
		s.metrics.EmailsQueued.WithLabelValues(string(category), "suppressed").Inc()
		logger.FromContext(ctx, s.logger).Debug().
			Str("message_id", stored.ID).
			Str("category", string(category)).
			Msg("email suppressed by recipient preferences")
		return stored, nil
	}

	task, err := job.NewEmailSendTask(job.EmailSendPayload{TenantID: tenantID, MessageID: stored.ID}, category.Queue())
	if err != nil {
		return nil, err
	}
	if _, err := s.enqueuer.EnqueueContext(ctx, task); err != nil {
		if ferr := s.store.RecordFailure(ctx, stored.ID, err.Error(), true); ferr != nil {
			logger.FromContext(ctx, s.logger).Error().Err(ferr).Str("message_id", stored.ID).Msg("failed to mark unqueued email failed")
		}
		s.metrics.EmailsQueued.WithLabelValues(string(category), "error").Inc()
		return nil, errors.Wrap(err, "failed to enqueue email task")
	}

	s.metrics.EmailsQueued.WithLabelValues(string(category), "queued").Inc()
	return stored, nil
}

// HandleSendTask is the email:send worker. Errors are retried by asynq;
// the last failed attempt marks the message failed.
func (s *EmailService) HandleSendTask(ctx context.Context, t *asynq.Task) error {
	p, err := job.ParseEmailSendPayload(t)
	if err != nil {
		return err
	}

	msg, err := s.store.GetMessage(ctx, p.TenantID, p.MessageID)
	if err != nil {
		if sqlerr.IsNotFound(err) {
			return fmt.Errorf("email message %s not found: %w", p.MessageID, asynq.SkipRetry)
		}
		return err
	}
	if msg.Status != email.StatusQueued {
		return nil
	}

	return s.deliver(ctx, msg, finalAttempt(ctx))
}

func (s *EmailService) deliver(ctx context.Context, msg *model.EmailMessage, final bool) error {
	log := logger.FromContext(ctx, s.logger).With().
		Str("message_id", msg.ID).
		Str("template", string(msg.Template)).
		Logger()

	providerID, err := s.sender.SendEmail(ctx, msg.ID, msg.ToAddress, msg.Template, msg.Data)
	if err != nil {
		permanent := errors.Is(err, email.ErrUnknownTemplate)
		if ferr := s.store.RecordFailure(ctx, msg.ID, err.Error(), final || permanent); ferr != nil {
			log.Error().Err(ferr).Msg("failed to record email failure")
		}
		s.metrics.EmailsDelivered.WithLabelValues(s.sender.Provider(), "error").Inc()

		if permanent {
			log.Error().Err(err).Msg("email template missing, giving up")
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		log.Warn().Err(err).Bool("final", final).Msg("email delivery attempt failed")
		return err
	}

	if err := s.store.MarkSent(ctx, msg.ID, providerID, s.now()); err != nil {
		return err
	}
	s.metrics.EmailsDelivered.WithLabelValues(s.sender.Provider(), "sent").Inc()
	log.Info().Str("provider_message_id", providerID).Msg("email sent")
	return nil
}

// finalAttempt reports whether the running task is on its last retry.
func finalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return false
	}
	return job.IsFinalAttempt(retried, maxRetry)
}

// HandleWebhook applies a provider delivery event. Events for unknown
// messages, and events that would move a message backwards, are ignored.
func (s *EmailService) HandleWebhook(ctx context.Context, secret string, body []byte) (*model.WebhookAck, error) {
	if s.webhookSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(s.webhookSecret)) != 1 {
		return nil, errs.NewUnauthorizedError("Invalid webhook secret", false)
	}

	var evt email.Event
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, errs.NewBadRequestError("Malformed webhook body", false, nil, nil, nil)
	}

	log := logger.FromContext(ctx, s.logger).With().
		Str("event", string(evt.Type)).
		Str("provider_message_id", evt.Data.EmailID).
		Logger()

	to, ok := evt.Type.Status()
	if !ok || evt.Data.EmailID == "" {
		log.Debug().Msg("ignoring email event")
		return &model.WebhookAck{Status: model.WebhookIgnored}, nil
	}
	s.metrics.EmailEvents.WithLabelValues(string(evt.Type)).Inc()

	msg, err := s.store.GetByProviderID(ctx, evt.Data.EmailID)
	if err != nil {
		if sqlerr.IsNotFound(err) {
			log.Warn().Msg("email event for unknown message")
			return &model.WebhookAck{Status: model.WebhookIgnored}, nil
		}
		return nil, err
	}

	at := evt.CreatedAt
	if at.IsZero() {
		at = s.now()
	}

	advanced := false
	if msg.Status.CanAdvanceTo(to) {
		advanced, err = s.store.Advance(ctx, msg.ID, msg.Status, to, at)
		if err != nil {
			return nil, err
		}
	}

	if evt.Type.DisablesMarketing() && msg.UserID != nil {
		if err := s.store.DisableMarketing(ctx, msg.TenantID, *msg.UserID); err != nil {
			return nil, err
		}
		log.Info().Str("user_id", *msg.UserID).Msg("marketing email disabled after bounce or complaint")
	}

	if !advanced {
		return &model.WebhookAck{Status: model.WebhookIgnored}, nil
	}
	return &model.WebhookAck{Status: model.WebhookProcessed}, nil
}

func (s *EmailService) List(ctx context.Context, tenantID string, q *model.ListEmailsQuery) (*model.PaginatedResponse[model.EmailMessage], error) {
	items, total, err := s.store.List(ctx, tenantID, q)
	if err != nil {
		return nil, err
	}
	return model.NewPage(items, q.Pagination, total), nil
}

func (s *EmailService) Analytics(ctx context.Context, tenantID string, q *model.EmailAnalyticsQuery) (*email.Analytics, error) {
	counts, err := s.store.StatusCounts(ctx, tenantID, q)
	if err != nil {
		return nil, err
	}
	a := email.ComputeAnalytics(counts)
	return &a, nil
}

func (s *EmailService) GetPreferences(ctx context.Context, actor model.Actor) (*email.Preferences, error) {
	prefs, err := s.store.GetPreferences(ctx, actor.TenantID, actor.UserID)
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}

func (s *EmailService) UpdatePreferences(ctx context.Context, actor model.Actor, p *model.UpdatePreferencesPayload) (*email.Preferences, error) {
	current, err := s.store.GetPreferences(ctx, actor.TenantID, actor.UserID)
	if err != nil {
		return nil, err
	}

	saved, err := s.store.SavePreferences(ctx, actor.TenantID, actor.UserID, p.Apply(current))
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// Preview renders a template with its sample data.
func (s *EmailService) Preview(name email.Template) ([]byte, error) {
	rendered, err := s.renderer.Render(name, email.PreviewData[name])
	if err != nil {
		if errors.Is(err, email.ErrUnknownTemplate) {
			return nil, errs.NewNotFoundError("Template not found", false, nil)
		}
		return nil, err
	}
	return []byte(rendered.HTML), nil
}
