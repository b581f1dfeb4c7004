package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/deppfellow/schoolhub/internal/model"
)

// UniqueOpenEnrollment is the partial unique index that allows a single
// pending, active or completed enrollment per user and course.
const UniqueOpenEnrollment = "uq_enrollments_open"

type EnrollmentRepository struct {
	store
}

// Create inserts e. A second open enrollment for the same user and course
// fails with a unique violation on UniqueOpenEnrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, e *model.Enrollment) (*model.Enrollment, error) {
	stmt := `
		INSERT INTO enrollments (
			id, tenant_id, user_id, course_id, status, list_price, discount_amount, amount_due,
			currency, coupon_id, payment_reference, activated_at
		)
		VALUES (
			@id, @tenant_id, @user_id, @course_id, @status, @list_price, @discount_amount, @amount_due,
			@currency, @coupon_id, @payment_reference, @activated_at
		)
		RETURNING *
	`

	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{
		"id":                id,
		"tenant_id":         e.TenantID,
		"user_id":           e.UserID,
		"course_id":         e.CourseID,
		"status":            e.Status,
		"list_price":        e.ListPrice,
		"discount_amount":   e.DiscountAmount,
		"amount_due":        e.AmountDue,
		"currency":          e.Currency,
		"coupon_id":         e.CouponID,
		"payment_reference": e.PaymentReference,
		"activated_at":      e.ActivatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute create enrollment query for user_id=%s course_id=%s: %w", e.UserID, e.CourseID, err)
	}

	return collectOne[model.Enrollment](rows, "enrollments")
}

func (r *EnrollmentRepository) GetByID(ctx context.Context, tenantID, id string) (*model.Enrollment, error) {
	stmt := `SELECT * FROM enrollments WHERE tenant_id = @tenant_id AND id = @id`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{"tenant_id": tenantID, "id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to execute get enrollment query for enrollment_id=%s: %w", id, err)
	}

	return collectOne[model.Enrollment](rows, "enrollments")
}

// GetByPaymentReference is used by the payments webhook, which carries no
// tenant. The reference is unique across tenants.
func (r *EnrollmentRepository) GetByPaymentReference(ctx context.Context, reference string) (*model.Enrollment, error) {
	stmt := `SELECT * FROM enrollments WHERE payment_reference = @reference`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{"reference": reference})
	if err != nil {
		return nil, fmt.Errorf("failed to execute get enrollment query for payment_reference=%s: %w", reference, err)
	}

	return collectOne[model.Enrollment](rows, "enrollments")
}

func (r *EnrollmentRepository) ListForUser(ctx context.Context, tenantID, userID string, q *model.ListEnrollmentsQuery) ([]model.Enrollment, int, error) {
	b := psql.Select().From("enrollments").Where(sq.Eq{"tenant_id": tenantID, "user_id": userID})
	if q.Status != "" {
		b = b.Where(sq.Eq{"status": q.Status})
	}
	return selectPage[model.Enrollment](ctx, r.db(ctx), "enrollments", "*", b, "enrolled_at DESC, id", q.Pagination)
}

func (r *EnrollmentRepository) ListForCourse(ctx context.Context, tenantID string, q *model.ListCourseEnrollmentsQuery) ([]model.Enrollment, int, error) {
	b := psql.Select().From("enrollments").Where(sq.Eq{"tenant_id": tenantID, "course_id": q.CourseID})
	if q.Status != "" {
		b = b.Where(sq.Eq{"status": q.Status})
	}
	return selectPage[model.Enrollment](ctx, r.db(ctx), "enrollments", "*", b, "enrolled_at DESC, id", q.Pagination)
}

// Transition moves the enrollment from `from` to `to`, stamping
// activated_at on the first activation. Not found means the enrollment
// was no longer in `from`.
func (r *EnrollmentRepository) Transition(ctx context.Context, tenantID, id string, from, to model.EnrollmentStatus) (*model.Enrollment, error) {
	stmt := `
		UPDATE enrollments
		SET status = @to::text,
			activated_at = CASE WHEN @to::text = 'active' THEN COALESCE(activated_at, now()) ELSE activated_at END,
			updated_at = now()
		WHERE tenant_id = @tenant_id AND id = @id AND status = @from
		RETURNING *
	`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{"tenant_id": tenantID, "id": id, "from": from, "to": to})
	if err != nil {
		return nil, fmt.Errorf("failed to execute enrollment transition query for enrollment_id=%s %s->%s: %w", id, from, to, err)
	}

	return collectOne[model.Enrollment](rows, "enrollments")
}

// UpdateProgress raises progress on an active enrollment; 100 completes it.
// Not found means the enrollment is not active or the new value is lower.
func (r *EnrollmentRepository) UpdateProgress(ctx context.Context, tenantID, id string, percent int) (*model.Enrollment, error) {
	stmt := `
		UPDATE enrollments
		SET progress_percent = @percent::int,
			status = CASE WHEN @percent::int = 100 THEN 'completed' ELSE status END,
			completed_at = CASE WHEN @percent::int = 100 THEN now() ELSE completed_at END,
			updated_at = now()
		WHERE tenant_id = @tenant_id AND id = @id AND status = 'active' AND progress_percent <= @percent::int
		RETURNING *
	`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{"tenant_id": tenantID, "id": id, "percent": percent})
	if err != nil {
		return nil, fmt.Errorf("failed to execute update progress query for enrollment_id=%s: %w", id, err)
	}

	return collectOne[model.Enrollment](rows, "enrollments")
}

// ActiveStudents returns the users actively enrolled in a course.
func (r *EnrollmentRepository) ActiveStudents(ctx context.Context, tenantID, courseID string) ([]model.User, error) {
	stmt := `
		SELECT u.* FROM enrollments e
		JOIN users u ON u.tenant_id = e.tenant_id AND u.id = e.user_id
		WHERE e.tenant_id = @tenant_id AND e.course_id = @course_id AND e.status = 'active' AND u.status = 'active'
		ORDER BY u.id
	`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{"tenant_id": tenantID, "course_id": courseID})
	if err != nil {
		return nil, fmt.Errorf("failed to execute active students query for course_id=%s: %w", courseID, err)
	}

	return collectAll[model.User](rows, "users")
}

// ------------------------------------------------------------

type PaymentRepository struct {
	store
}

// RecordEvent stores a webhook event id. It returns false when the event
// was already processed.
func (r *PaymentRepository) RecordEvent(ctx context.Context, tenantID, eventID, eventType, reference string) (bool, error) {
	tag, err := r.db(ctx).Exec(ctx, `
		INSERT INTO payment_events (id, tenant_id, type, payment_reference)
		VALUES (@id, @tenant_id, @type, @reference)
		ON CONFLICT (id) DO NOTHING
	`, pgx.NamedArgs{"id": eventID, "tenant_id": tenantID, "type": eventType, "reference": reference})
	if err != nil {
		return false, fmt.Errorf("failed to record payment event id=%s: %w", eventID, err)
	}
	return tag.RowsAffected() == 1, nil
}
