package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/deppfellow/schoolhub/internal/lib/pricing"
	"github.com/deppfellow/schoolhub/internal/validation"
)

type EnrollmentStatus string

const (
	EnrollmentPendingPayment EnrollmentStatus = "pending_payment"
	EnrollmentActive         EnrollmentStatus = "active"
	EnrollmentCompleted      EnrollmentStatus = "completed"
	EnrollmentCancelled      EnrollmentStatus = "cancelled"
	EnrollmentRefunded       EnrollmentStatus = "refunded"
)

type Enrollment struct {
	ID               string           `json:"id" db:"id"`
	TenantID         string           `json:"-" db:"tenant_id"`
	UserID           string           `json:"user_id" db:"user_id"`
	CourseID         string           `json:"course_id" db:"course_id"`
	Status           EnrollmentStatus `json:"status" db:"status"`
	ListPrice        decimal.Decimal  `json:"list_price" db:"list_price"`
	DiscountAmount   decimal.Decimal  `json:"discount_amount" db:"discount_amount"`
	AmountDue        decimal.Decimal  `json:"amount_due" db:"amount_due"`
	Currency         string           `json:"currency" db:"currency"`
	CouponID         *string          `json:"coupon_id" db:"coupon_id"`
	PaymentReference *string          `json:"payment_reference" db:"payment_reference"`
	ProgressPercent  int              `json:"progress_percent" db:"progress_percent"`
	EnrolledAt       time.Time        `json:"enrolled_at" db:"enrolled_at"`
	ActivatedAt      *time.Time       `json:"activated_at" db:"activated_at"`
	CompletedAt      *time.Time       `json:"completed_at" db:"completed_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}

// Enrollment error codes returned to clients.
const (
	CodeAlreadyEnrolled     = "ALREADY_ENROLLED"
	CodeCourseNotPublished  = "COURSE_NOT_PUBLISHED"
	CodeEnrollmentNotActive = "ENROLLMENT_NOT_ACTIVE"
	CodeProgressDecrease    = "PROGRESS_CANNOT_DECREASE"
	CodeEnrollmentNotOpen   = "ENROLLMENT_NOT_PENDING"
)

// ------------------------------------------------------------

type EnrollPayload struct {
	CourseID   string  `param:"id" validate:"required,uuid"`
	CouponCode *string `json:"coupon_code" validate:"omitempty,max=64"`
}

func (p *EnrollPayload) Validate() error {
	if p.CouponCode != nil {
		code := NormalizeCode(*p.CouponCode)
		if code == "" {
			p.CouponCode = nil
		} else {
			p.CouponCode = &code
		}
	}
	return validation.Struct(p)
}

// EnrollResult is returned by checkout. PaymentReference is set when the
// student must still pay through the gateway's hosted checkout.
type EnrollResult struct {
	Enrollment       *Enrollment   `json:"enrollment"`
	Quote            pricing.Quote `json:"quote"`
	PaymentReference *string       `json:"payment_reference,omitempty"`
}

type UpdateProgressPayload struct {
	ID      string `param:"id" validate:"required,uuid"`
	Percent *int   `json:"percent" validate:"required,min=0,max=100"`
}

func (p *UpdateProgressPayload) Validate() error {
	return validation.Struct(p)
}

type ListEnrollmentsQuery struct {
	Pagination
	Status string `query:"status" validate:"omitempty,oneof=pending_payment active completed cancelled refunded"`
}

func (q *ListEnrollmentsQuery) Validate() error {
	return validation.Struct(q)
}

type ListCourseEnrollmentsQuery struct {
	Pagination
	CourseID string `param:"id" validate:"required,uuid"`
	Status   string `query:"status" validate:"omitempty,oneof=pending_payment active completed cancelled refunded"`
}

func (q *ListCourseEnrollmentsQuery) Validate() error {
	return validation.Struct(q)
}
