package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/deppfellow/schoolhub/internal/errs"
	"github.com/deppfellow/schoolhub/internal/lib/email"
	"github.com/deppfellow/schoolhub/internal/lib/metrics"
	"github.com/deppfellow/schoolhub/internal/lib/pricing"
	"github.com/deppfellow/schoolhub/internal/logger"
	"github.com/deppfellow/schoolhub/internal/model"
	"github.com/deppfellow/schoolhub/internal/repository"
	"github.com/deppfellow/schoolhub/internal/sqlerr"
)

// PaymentReferencePrefix starts every reference handed to the gateway.
const PaymentReferencePrefix = "pay_"

type EnrollmentStore interface {
	Create(ctx context.Context, e *model.Enrollment) (*model.Enrollment, error)
	GetByID(ctx context.Context, tenantID, id string) (*model.Enrollment, error)
	ListForUser(ctx context.Context, tenantID, userID string, q *model.ListEnrollmentsQuery) ([]model.Enrollment, int, error)
	ListForCourse(ctx context.Context, tenantID string, q *model.ListCourseEnrollmentsQuery) ([]model.Enrollment, int, error)
	Transition(ctx context.Context, tenantID, id string, from, to model.EnrollmentStatus) (*model.Enrollment, error)
	UpdateProgress(ctx context.Context, tenantID, id string, percent int) (*model.Enrollment, error)
}

// CouponResolver checks a coupon code against a course.
type CouponResolver interface {
	Resolve(ctx context.Context, actor model.Actor, code string, course *model.Course) (*model.Coupon, error)
}

// CouponRedeemer reserves a coupon use for an enrollment and gives it back
// when the enrollment falls through.
type CouponRedeemer interface {
	Redeem(ctx context.Context, tenantID, couponID, userID, enrollmentID string, discount decimal.Decimal) error
	Release(ctx context.Context, tenantID, enrollmentID string) error
}

// UserReader loads profiles to address emails.
type UserReader interface {
	GetByID(ctx context.Context, tenantID, id string) (*model.User, error)
}

// EnrollmentService is the checkout: it prices the course, applies the
// coupon and opens the enrollment, then tracks the student's progress.
type EnrollmentService struct {
	tx          TxRunner
	enrollments EnrollmentStore
	courses     CourseReader
	coupons     CouponResolver
	redeemer    CouponRedeemer
	users       UserReader
	effects     sideEffects
	metrics     *metrics.Metrics
	logger      *zerolog.Logger
	frontendURL string
	now         Clock
}

type EnrollmentDeps struct {
	Tx          TxRunner
	Enrollments EnrollmentStore
	Courses     CourseReader
	Coupons     CouponResolver
	Redeemer    CouponRedeemer
	Users       UserReader
	Mailer      Mailer
	Notifier    Notifier
	Metrics     *metrics.Metrics
	Logger      *zerolog.Logger
	FrontendURL string
}

func NewEnrollmentService(d EnrollmentDeps) *EnrollmentService {
	return &EnrollmentService{
		tx:          d.Tx,
		enrollments: d.Enrollments,
		courses:     d.Courses,
		coupons:     d.Coupons,
		redeemer:    d.Redeemer,
		users:       d.Users,
		effects:     sideEffects{mailer: d.Mailer, notifier: d.Notifier, logger: d.Logger},
		metrics:     d.Metrics,
		logger:      d.Logger,
		frontendURL: d.FrontendURL,
		now:         utcNow,
	}
}

// Enroll opens an enrollment for the actor and reserves the coupon use in
// the same transaction. Nothing to pay activates it at once; otherwise it
// waits for the payment webhook under a fresh payment reference.
func (s *EnrollmentService) Enroll(ctx context.Context, actor model.Actor, p *model.EnrollPayload) (*model.EnrollResult, error) {
	course, err := s.courses.GetByID(ctx, actor.TenantID, p.CourseID)
	if err != nil {
		return nil, err
	}
	if course.Status != model.CourseStatusPublished {
		return nil, errs.NewBadRequestError("This course is not open for enrollment", true, errs.Code(model.CodeCourseNotPublished), nil, nil)
	}

	var coupon *model.Coupon
	var discounter pricing.Discounter
	if p.CouponCode != nil {
		coupon, err = s.coupons.Resolve(ctx, actor, *p.CouponCode, course)
		if err != nil {
			return nil, err
		}
		discounter = coupon
	}

	quote := pricing.NewQuote(course.Pricing, discounter)

	e := &model.Enrollment{
		ID:             uuid.NewString(),
		TenantID:       actor.TenantID,
		UserID:         actor.UserID,
		CourseID:       course.ID,
		ListPrice:      quote.ListPrice,
		DiscountAmount: quote.Discount,
		AmountDue:      quote.AmountDue,
		Currency:       quote.Currency,
	}
	if coupon != nil {
		e.CouponID = &coupon.ID
	}
	if quote.IsFree() {
		now := s.now()
		e.Status = model.EnrollmentActive
		e.ActivatedAt = &now
	} else {
		ref := PaymentReferencePrefix + uuid.NewString()
		e.Status = model.EnrollmentPendingPayment
		e.PaymentReference = &ref
	}

	var created *model.Enrollment
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		created, err = s.enrollments.Create(ctx, e)
		if err != nil {
			if sqlerr.IsUniqueViolation(err, repository.UniqueOpenEnrollment) {
				return errs.NewConflictError("You are already enrolled in this course", true, errs.Code(model.CodeAlreadyEnrolled))
			}
			return err
		}
		if coupon != nil {
			return s.redeemer.Redeem(ctx, actor.TenantID, coupon.ID, actor.UserID, created.ID, quote.Discount)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Enrollments.WithLabelValues(string(created.Status)).Inc()
	if coupon != nil {
		s.metrics.CouponRedemptions.Inc()
	}

	logger.FromContext(ctx, s.logger).Info().
		Str("enrollment_id", created.ID).
		Str("course_id", course.ID).
		Str("status", string(created.Status)).
		Str("amount_due", quote.AmountDue.StringFixed(2)).
		Msg("enrollment created")

	if created.Status == model.EnrollmentActive {
		s.welcome(ctx, created, course)
	}

	return &model.EnrollResult{
		Enrollment:       created,
		Quote:            quote,
		PaymentReference: created.PaymentReference,
	}, nil
}

// welcome greets a newly active student by email and in the inbox.
func (s *EnrollmentService) welcome(ctx context.Context, e *model.Enrollment, course *model.Course) {
	s.effects.notify(ctx, e.TenantID, model.NewNotification{
		UserID: e.UserID,
		Kind:   model.NotificationEnrollment,
		Title:  "You're enrolled in " + course.Title,
		Link:   "/courses/" + course.ID,
	})

	user, err := s.users.GetByID(ctx, e.TenantID, e.UserID)
	if err != nil {
		logger.FromContext(ctx, s.logger).Warn().Err(err).Str("user_id", e.UserID).Msg("no profile to send the welcome email to")
		return
	}
	s.effects.mail(ctx, e.TenantID, model.OutgoingEmail{
		UserID:   &user.ID,
		To:       user.Email,
		Template: email.TemplateWelcome,
		Data: map[string]any{
			"FirstName":   user.FirstName(),
			"CourseTitle": course.Title,
			"CourseURL":   s.frontendURL + "/courses/" + course.ID,
		},
	})
}

// own loads an enrollment of the actor. Other students' enrollments are
// reported as not found.
func (s *EnrollmentService) own(ctx context.Context, actor model.Actor, id string) (*model.Enrollment, error) {
	e, err := s.enrollments.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if e.UserID != actor.UserID {
		return nil, sqlerr.NotFound("enrollments")
	}
	return e, nil
}

func (s *EnrollmentService) Get(ctx context.Context, actor model.Actor, id string) (*model.Enrollment, error) {
	return s.own(ctx, actor, id)
}

// UpdateProgress records progress on an active enrollment. Progress never
// goes down, and 100 completes the course.
func (s *EnrollmentService) UpdateProgress(ctx context.Context, actor model.Actor, p *model.UpdateProgressPayload) (*model.Enrollment, error) {
	e, err := s.own(ctx, actor, p.ID)
	if err != nil {
		return nil, err
	}
	if e.Status != model.EnrollmentActive {
		return nil, errs.NewConflictError("Progress can only be recorded on an active enrollment", true, errs.Code(model.CodeEnrollmentNotActive))
	}
	if *p.Percent < e.ProgressPercent {
		return nil, errs.NewBadRequestError("Progress cannot decrease", true, errs.Code(model.CodeProgressDecrease), []errs.FieldError{
			{Field: "percent", Error: "must not be lower than the current progress"},
		}, nil)
	}

	updated, err := s.enrollments.UpdateProgress(ctx, actor.TenantID, e.ID, *p.Percent)
	if err != nil {
		if sqlerr.IsNotFound(err) {
			return nil, errs.NewConflictError("The enrollment changed, reload and try again", true, errs.Code(model.CodeEnrollmentNotActive))
		}
		return nil, err
	}

	if updated.Status == model.EnrollmentCompleted {
		logger.FromContext(ctx, s.logger).Info().Str("enrollment_id", updated.ID).Msg("course completed")
	}
	return updated, nil
}

// Cancel drops an enrollment that is still waiting for payment and frees
// its coupon use.
func (s *EnrollmentService) Cancel(ctx context.Context, actor model.Actor, id string) (*model.Enrollment, error) {
	e, err := s.own(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	notOpen := errs.NewConflictError("Only enrollments awaiting payment can be cancelled", true, errs.Code(model.CodeEnrollmentNotOpen))
	if e.Status != model.EnrollmentPendingPayment {
		return nil, notOpen
	}

	var cancelled *model.Enrollment
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		cancelled, err = s.enrollments.Transition(ctx, actor.TenantID, e.ID, model.EnrollmentPendingPayment, model.EnrollmentCancelled)
		if err != nil {
			if sqlerr.IsNotFound(err) {
				return notOpen
			}
			return err
		}
		if e.CouponID != nil {
			return s.redeemer.Release(ctx, actor.TenantID, e.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func (s *EnrollmentService) ListMine(ctx context.Context, actor model.Actor, q *model.ListEnrollmentsQuery) (*model.PaginatedResponse[model.Enrollment], error) {
	items, total, err := s.enrollments.ListForUser(ctx, actor.TenantID, actor.UserID, q)
	if err != nil {
		return nil, err
	}
	return model.NewPage(items, q.Pagination, total), nil
}

func (s *EnrollmentService) ListForCourse(ctx context.Context, tenantID string, q *model.ListCourseEnrollmentsQuery) (*model.PaginatedResponse[model.Enrollment], error) {
	if _, err := s.courses.GetByID(ctx, tenantID, q.CourseID); err != nil {
		return nil, err
	}

	items, total, err := s.enrollments.ListForCourse(ctx, tenantID, q)
	if err != nil {
		return nil, err
	}
	return model.NewPage(items, q.Pagination, total), nil
}
