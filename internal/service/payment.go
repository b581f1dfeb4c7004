package service

import (
	"context"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/deppfellow/schoolhub/internal/errs"
	"github.com/deppfellow/schoolhub/internal/lib/email"
	"github.com/deppfellow/schoolhub/internal/lib/metrics"
	"github.com/deppfellow/schoolhub/internal/lib/payment"
	"github.com/deppfellow/schoolhub/internal/logger"
	"github.com/deppfellow/schoolhub/internal/model"
)

type PaymentStore interface {
	RecordEvent(ctx context.Context, tenantID, eventID, eventType, reference string) (bool, error)
}

// PaymentEnrollments is the part of the enrollment store the webhook uses.
type PaymentEnrollments interface {
	GetByPaymentReference(ctx context.Context, reference string) (*model.Enrollment, error)
	Transition(ctx context.Context, tenantID, id string, from, to model.EnrollmentStatus) (*model.Enrollment, error)
}

// CouponReleaser gives back the coupon use held by an enrollment.
type CouponReleaser interface {
	Release(ctx context.Context, tenantID, enrollmentID string) error
}

// ReplayGuard remembers recently processed event ids so gateway retries
// short-circuit before touching the database.
type ReplayGuard interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Remember(ctx context.Context, eventID string) error
}

// RedisReplayGuard keeps processed event ids in Redis for ttl.
type RedisReplayGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisReplayGuard(client *redis.Client, ttl time.Duration) *RedisReplayGuard {
	return &RedisReplayGuard{client: client, ttl: ttl}
}

func replayKey(eventID string) string {
	return "webhooks:payments:" + eventID
}

func (g *RedisReplayGuard) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := g.client.Exists(ctx, replayKey(eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (g *RedisReplayGuard) Remember(ctx context.Context, eventID string) error {
	return g.client.Set(ctx, replayKey(eventID), 1, g.ttl).Err()
}

// PaymentService applies payment gateway webhooks to enrollments.
type PaymentService struct {
	tx          TxRunner
	verifier    *payment.Verifier
	events      PaymentStore
	enrollments PaymentEnrollments
	courses     CourseReader
	coupons     CouponReleaser
	users       UserReader
	replay      ReplayGuard
	effects     sideEffects
	metrics     *metrics.Metrics
	logger      *zerolog.Logger
}

type PaymentDeps struct {
	Tx          TxRunner
	Verifier    *payment.Verifier
	Events      PaymentStore
	Enrollments PaymentEnrollments
	Courses     CourseReader
	Coupons     CouponReleaser
	Users       UserReader
	Replay      ReplayGuard
	Mailer      Mailer
	Notifier    Notifier
	Metrics     *metrics.Metrics
	Logger      *zerolog.Logger
}

func NewPaymentService(d PaymentDeps) *PaymentService {
	return &PaymentService{
		tx:          d.Tx,
		verifier:    d.Verifier,
		events:      d.Events,
		enrollments: d.Enrollments,
		courses:     d.Courses,
		coupons:     d.Coupons,
		users:       d.Users,
		replay:      d.Replay,
		effects:     sideEffects{mailer: d.Mailer, notifier: d.Notifier, logger: d.Logger},
		metrics:     d.Metrics,
		logger:      d.Logger,
	}
}

// transitions maps an event to the enrollment statuses it moves from and
// the status it sets.
var transitions = map[payment.EventType]struct {
	from []model.EnrollmentStatus
	to   model.EnrollmentStatus
}{
	payment.EventSucceeded: {[]model.EnrollmentStatus{model.EnrollmentPendingPayment}, model.EnrollmentActive},
	payment.EventFailed:    {[]model.EnrollmentStatus{model.EnrollmentPendingPayment}, model.EnrollmentCancelled},
	payment.EventRefunded:  {[]model.EnrollmentStatus{model.EnrollmentActive, model.EnrollmentCompleted}, model.EnrollmentRefunded},
}

// HandleWebhook verifies and applies one gateway event. Each event id is
// applied at most once; redeliveries are acknowledged as duplicates.
func (s *PaymentService) HandleWebhook(ctx context.Context, signature string, body []byte) (*model.WebhookAck, error) {
	if err := s.verifier.Verify(signature, body); err != nil {
		return nil, errs.NewUnauthorizedError("Invalid webhook signature", false)
	}

	evt, err := payment.ParseEvent(body)
	if err != nil {
		return nil, errs.NewBadRequestError("Malformed webhook body", false, nil, nil, nil)
	}

	log := logger.FromContext(ctx, s.logger).With().
		Str("event_id", evt.ID).
		Str("event_type", string(evt.Type)).
		Str("payment_reference", evt.Data.PaymentReference).
		Logger()

	if !evt.Type.Known() {
		s.metrics.PaymentEvents.WithLabelValues(string(evt.Type), "ignored").Inc()
		log.Info().Msg("ignoring unknown payment event type")
		return &model.WebhookAck{Status: model.WebhookIgnored}, nil
	}

	if s.replay != nil {
		seen, err := s.replay.Seen(ctx, evt.ID)
		if err != nil {
			log.Warn().Err(err).Msg("replay guard unavailable, falling back to database")
		} else if seen {
			s.metrics.PaymentEvents.WithLabelValues(string(evt.Type), "duplicate").Inc()
			return &model.WebhookAck{Status: model.WebhookDuplicate}, nil
		}
	}

	enrollment, err := s.enrollments.GetByPaymentReference(ctx, evt.Data.PaymentReference)
	if err != nil {
		return nil, err
	}

	var (
		inserted bool
		updated  *model.Enrollment
	)
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		inserted, err = s.events.RecordEvent(ctx, enrollment.TenantID, evt.ID, string(evt.Type), evt.Data.PaymentReference)
		if err != nil || !inserted {
			return err
		}

		t := transitions[evt.Type]
		if !slices.Contains(t.from, enrollment.Status) {
			return nil
		}
		updated, err = s.enrollments.Transition(ctx, enrollment.TenantID, enrollment.ID, enrollment.Status, t.to)
		if err != nil {
			return err
		}
		if evt.Type == payment.EventFailed && enrollment.CouponID != nil {
			return s.coupons.Release(ctx, enrollment.TenantID, enrollment.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.replay != nil {
		if err := s.replay.Remember(ctx, evt.ID); err != nil {
			log.Warn().Err(err).Msg("failed to remember payment event")
		}
	}

	if !inserted {
		s.metrics.PaymentEvents.WithLabelValues(string(evt.Type), "duplicate").Inc()
		log.Info().Msg("duplicate payment event")
		return &model.WebhookAck{Status: model.WebhookDuplicate}, nil
	}
	if updated == nil {
		s.metrics.PaymentEvents.WithLabelValues(string(evt.Type), "ignored").Inc()
		log.Warn().Str("enrollment_status", string(enrollment.Status)).Msg("payment event does not apply to the enrollment status")
		return &model.WebhookAck{Status: model.WebhookIgnored}, nil
	}

	s.metrics.PaymentEvents.WithLabelValues(string(evt.Type), "applied").Inc()
	log.Info().
		Str("enrollment_id", updated.ID).
		Str("status", string(updated.Status)).
		Msg("payment event applied")

	s.afterTransition(ctx, evt, updated)
	return &model.WebhookAck{Status: model.WebhookProcessed}, nil
}

// afterTransition tells the student. The payment is already final, so
// failures are only logged.
func (s *PaymentService) afterTransition(ctx context.Context, evt *payment.Event, e *model.Enrollment) {
	log := logger.FromContext(ctx, s.logger)

	course, err := s.courses.GetByID(ctx, e.TenantID, e.CourseID)
	if err != nil {
		log.Error().Err(err).Str("course_id", e.CourseID).Msg("failed to load course for payment emails")
		return
	}

	title := map[payment.EventType]string{
		payment.EventSucceeded: "Payment received for " + course.Title,
		payment.EventFailed:    "Payment failed for " + course.Title,
		payment.EventRefunded:  "Refund issued for " + course.Title,
	}[evt.Type]
	s.effects.notify(ctx, e.TenantID, model.NewNotification{
		UserID: e.UserID,
		Kind:   model.NotificationPayment,
		Title:  title,
		Link:   "/courses/" + course.ID,
	})

	user, err := s.users.GetByID(ctx, e.TenantID, e.UserID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", e.UserID).Msg("no profile to send payment emails to")
		return
	}

	base := model.OutgoingEmail{UserID: &user.ID, To: user.Email}
	switch evt.Type {
	case payment.EventSucceeded:
		receipt := base
		receipt.Template = email.TemplatePaymentReceipt
		receipt.Data = map[string]any{
			"FirstName":        user.FirstName(),
			"CourseTitle":      course.Title,
			"PaymentReference": evt.Data.PaymentReference,
			"ListPrice":        e.ListPrice.StringFixed(2),
			"Discount":         e.DiscountAmount.StringFixed(2),
			"AmountPaid":       e.AmountDue.StringFixed(2),
			"Currency":         e.Currency,
		}
		s.effects.mail(ctx, e.TenantID, receipt)

		welcome := base
		welcome.Template = email.TemplateWelcome
		welcome.Data = map[string]any{
			"FirstName":   user.FirstName(),
			"CourseTitle": course.Title,
		}
		s.effects.mail(ctx, e.TenantID, welcome)

	case payment.EventFailed:
		failed := base
		failed.Template = email.TemplatePaymentFailed
		failed.Data = map[string]any{
			"FirstName":   user.FirstName(),
			"CourseTitle": course.Title,
			"Reason":      evt.Data.FailureReason,
		}
		s.effects.mail(ctx, e.TenantID, failed)
	}
}
