package model

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/deppfellow/schoolhub/internal/errs"
	"github.com/deppfellow/schoolhub/internal/lib/pricing"
	"github.com/deppfellow/schoolhub/internal/lib/rules"
	"github.com/deppfellow/schoolhub/internal/validation"
)

type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

var hundred = decimal.NewFromInt(100)

type Coupon struct {
	Base
	TenantID       string              `json:"-" db:"tenant_id"`
	Code           string              `json:"code" db:"code"`
	Description    string              `json:"description" db:"description"`
	DiscountType   DiscountType        `json:"discount_type" db:"discount_type"`
	DiscountValue  decimal.Decimal     `json:"discount_value" db:"discount_value"`
	Currency       *string             `json:"currency" db:"currency"`
	MaxUses        *int                `json:"max_uses" db:"max_uses"`
	MaxUsesPerUser *int                `json:"max_uses_per_user" db:"max_uses_per_user"`
	UsedCount      int                 `json:"used_count" db:"used_count"`
	MinSubtotal    decimal.NullDecimal `json:"min_subtotal" db:"min_subtotal"`
	CourseIDs      []string            `json:"course_ids" db:"course_ids"`
	Condition      string              `json:"condition" db:"condition"`
	ValidFrom      time.Time           `json:"valid_from" db:"valid_from"`
	ValidUntil     *time.Time          `json:"valid_until" db:"valid_until"`
	Active         bool                `json:"active" db:"active"`
}

// NormalizeCode trims and upper-cases a code as typed by a student.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// DiscountFor is the discount on amount: a percentage rounded half-up to
// cents, or the fixed value capped at amount.
func (c *Coupon) DiscountFor(amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}

	var d decimal.Decimal
	switch c.DiscountType {
	case DiscountPercent:
		d = amount.Mul(c.DiscountValue).Div(hundred).Round(2)
	case DiscountFixed:
		d = decimal.Min(c.DiscountValue, amount)
	}

	if d.GreaterThan(amount) {
		return amount
	}
	return d
}

// Redemption describes the checkout a coupon is applied to.
type Redemption struct {
	UserID          string
	CourseID        string
	CategoryID      string
	Pricing         pricing.Model
	UserRedemptions int
}

// Coupon error codes returned to clients.
const (
	CodeCouponNotFound       = "COUPON_NOT_FOUND"
	CodeCouponInactive       = "COUPON_INACTIVE"
	CodeCouponNotStarted     = "COUPON_NOT_STARTED"
	CodeCouponExpired        = "COUPON_EXPIRED"
	CodeCouponExhausted      = "COUPON_EXHAUSTED"
	CodeCouponUserLimit      = "COUPON_USER_LIMIT_REACHED"
	CodeCouponNotApplicable  = "COUPON_NOT_APPLICABLE"
	CodeCouponMinSubtotal    = "COUPON_BELOW_MIN_SUBTOTAL"
	CodeCouponCurrency       = "COUPON_CURRENCY_MISMATCH"
	CodeCouponConditionUnmet = "COUPON_CONDITION_NOT_MET"
)

// CheckRedeemable returns the first reason the coupon cannot be applied to
// r at now, or nil. An exhausted coupon is a 409, everything else a 400.
func (c *Coupon) CheckRedeemable(now time.Time, r Redemption, engine *rules.Engine) error {
	bad := func(code, msg string) error {
		return errs.NewBadRequestError(msg, true, errs.Code(code), nil, nil)
	}

	if !c.Active {
		return bad(CodeCouponInactive, "This coupon is no longer active")
	}
	if now.Before(c.ValidFrom) {
		return bad(CodeCouponNotStarted, "This coupon is not valid yet")
	}
	if c.ValidUntil != nil && !now.Before(*c.ValidUntil) {
		return bad(CodeCouponExpired, "This coupon has expired")
	}
	if c.MaxUses != nil && c.UsedCount >= *c.MaxUses {
		return errs.NewConflictError("This coupon has been fully redeemed", true, errs.Code(CodeCouponExhausted))
	}
	if c.MaxUsesPerUser != nil && r.UserRedemptions >= *c.MaxUsesPerUser {
		return bad(CodeCouponUserLimit, "You have already used this coupon")
	}
	if len(c.CourseIDs) > 0 && !slices.Contains(c.CourseIDs, r.CourseID) {
		return bad(CodeCouponNotApplicable, "This coupon does not apply to this course")
	}

	subtotal := r.Pricing.AmountDueNow()
	if c.MinSubtotal.Valid && subtotal.LessThan(c.MinSubtotal.Decimal) {
		return bad(CodeCouponMinSubtotal, "The course price is below the minimum for this coupon")
	}
	if c.DiscountType == DiscountFixed && c.Currency != nil && *c.Currency != r.Pricing.Currency {
		return bad(CodeCouponCurrency, "This coupon is not valid for the course currency")
	}

	if c.Condition != "" {
		ok, err := engine.Evaluate(c.Condition, rules.Facts{
			Subtotal:     subtotal.InexactFloat64(),
			Currency:     r.Pricing.Currency,
			CourseID:     r.CourseID,
			CategoryID:   r.CategoryID,
			PricingModel: string(r.Pricing.Type),
			UserID:       r.UserID,
		})
		if err != nil {
			return err
		}
		if !ok {
			return bad(CodeCouponConditionUnmet, "This coupon's conditions are not met")
		}
	}

	return nil
}

// ------------------------------------------------------------

type CreateCouponPayload struct {
	Code           string           `json:"code" validate:"required"`
	Description    *string          `json:"description" validate:"omitempty,max=500"`
	DiscountType   DiscountType     `json:"discount_type" validate:"required,oneof=percent fixed"`
	DiscountValue  decimal.Decimal  `json:"discount_value"`
	Currency       *string          `json:"currency" validate:"omitempty,currency"`
	MaxUses        *int             `json:"max_uses" validate:"omitempty,min=1"`
	MaxUsesPerUser *int             `json:"max_uses_per_user" validate:"omitempty,min=1"`
	MinSubtotal    *decimal.Decimal `json:"min_subtotal"`
	CourseIDs      []string         `json:"course_ids" validate:"omitempty,max=100,dive,uuid"`
	Condition      *string          `json:"condition" validate:"omitempty,max=1000"`
	ValidFrom      *time.Time       `json:"valid_from"`
	ValidUntil     *time.Time       `json:"valid_until"`
	Active         *bool            `json:"active"`
}

func (p *CreateCouponPayload) Validate() error {
	p.Code = NormalizeCode(p.Code)
	if err := validation.Struct(p); err != nil {
		return err
	}

	var v validation.CustomValidationErrors
	validateCode(&v, p.Code)
	validateDiscount(&v, p.DiscountType, p.DiscountValue, p.Currency)
	validateWindow(&v, p.ValidFrom, p.ValidUntil)
	validateMinSubtotal(&v, p.MinSubtotal)
	validateCondition(&v, p.Condition)
	return v.OrNil()
}

type UpdateCouponPayload struct {
	ID             string           `param:"id" validate:"required,uuid"`
	Description    *string          `json:"description" validate:"omitempty,max=500"`
	DiscountType   *DiscountType    `json:"discount_type" validate:"omitempty,oneof=percent fixed"`
	DiscountValue  *decimal.Decimal `json:"discount_value"`
	Currency       *string          `json:"currency" validate:"omitempty,currency"`
	MaxUses        *int             `json:"max_uses" validate:"omitempty,min=1"`
	MaxUsesPerUser *int             `json:"max_uses_per_user" validate:"omitempty,min=1"`
	MinSubtotal    *decimal.Decimal `json:"min_subtotal"`
	CourseIDs      []string         `json:"course_ids" validate:"omitempty,max=100,dive,uuid"`
	Condition      *string          `json:"condition" validate:"omitempty,max=1000"`
	ValidFrom      *time.Time       `json:"valid_from"`
	ValidUntil     *time.Time       `json:"valid_until"`
	Active         *bool            `json:"active"`
}

func (p *UpdateCouponPayload) Validate() error {
	if err := validation.Struct(p); err != nil {
		return err
	}

	var v validation.CustomValidationErrors
	if p.DiscountValue != nil && !p.DiscountValue.IsPositive() {
		v.Add("discount_value", "must be greater than 0")
	}
	validateWindow(&v, p.ValidFrom, p.ValidUntil)
	validateMinSubtotal(&v, p.MinSubtotal)
	validateCondition(&v, p.Condition)
	return v.OrNil()
}

// Apply merges the update into c and re-checks the rules that span
// fields, since the merged coupon may combine old and new values.
func (p *UpdateCouponPayload) Apply(c *Coupon) error {
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.DiscountType != nil {
		c.DiscountType = *p.DiscountType
	}
	if p.DiscountValue != nil {
		c.DiscountValue = *p.DiscountValue
	}
	if p.Currency != nil {
		c.Currency = p.Currency
	}
	if p.MaxUses != nil {
		c.MaxUses = p.MaxUses
	}
	if p.MaxUsesPerUser != nil {
		c.MaxUsesPerUser = p.MaxUsesPerUser
	}
	if p.MinSubtotal != nil {
		c.MinSubtotal = decimal.NewNullDecimal(*p.MinSubtotal)
	}
	if p.CourseIDs != nil {
		c.CourseIDs = p.CourseIDs
	}
	if p.Condition != nil {
		c.Condition = strings.TrimSpace(*p.Condition)
	}
	if p.ValidFrom != nil {
		c.ValidFrom = *p.ValidFrom
	}
	if p.ValidUntil != nil {
		c.ValidUntil = p.ValidUntil
	}
	if p.Active != nil {
		c.Active = *p.Active
	}

	var v validation.CustomValidationErrors
	validateDiscount(&v, c.DiscountType, c.DiscountValue, c.Currency)
	validateWindow(&v, &c.ValidFrom, c.ValidUntil)
	if c.MaxUses != nil && *c.MaxUses < c.UsedCount {
		v.Add("max_uses", "cannot be lower than the number of redemptions")
	}
	if err := v.OrNil(); err != nil {
		return err
	}
	return nil
}

var codeChars = func(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
}

func validateCode(v *validation.CustomValidationErrors, code string) {
	if len(code) < 3 || len(code) > 32 {
		v.Add("code", "must be between 3 and 32 characters")
		return
	}
	for _, r := range code {
		if !codeChars(r) {
			v.Add("code", "may only contain letters, digits, '_' and '-'")
			return
		}
	}
}

func validateDiscount(v *validation.CustomValidationErrors, t DiscountType, value decimal.Decimal, currency *string) {
	switch t {
	case DiscountPercent:
		if value.LessThan(decimal.NewFromInt(1)) || value.GreaterThan(hundred) || !value.IsInteger() {
			v.Add("discount_value", "must be a whole percentage between 1 and 100")
		}
	case DiscountFixed:
		if !value.IsPositive() {
			v.Add("discount_value", "must be greater than 0")
		} else if value.Exponent() < -2 && !value.Equal(value.Round(2)) {
			v.Add("discount_value", "must have at most 2 decimal places")
		}
		if currency == nil || *currency == "" {
			v.Add("currency", "is required for fixed discounts")
		}
	}
}

func validateWindow(v *validation.CustomValidationErrors, from, until *time.Time) {
	if from != nil && until != nil && !until.After(*from) {
		v.Add("valid_until", "must be after valid_from")
	}
}

func validateMinSubtotal(v *validation.CustomValidationErrors, min *decimal.Decimal) {
	if min != nil && min.IsNegative() {
		v.Add("min_subtotal", "must not be negative")
	}
}

func validateCondition(v *validation.CustomValidationErrors, cond *string) {
	if cond == nil {
		return
	}
	if err := rules.Default().Compile(*cond); err != nil {
		v.Add("condition", err.Error())
	}
}

// ------------------------------------------------------------

type ValidateCouponPayload struct {
	Code     string `json:"code" validate:"required,max=64"`
	CourseID string `json:"course_id" validate:"required,uuid"`
}

func (p *ValidateCouponPayload) Validate() error {
	p.Code = NormalizeCode(p.Code)
	return validation.Struct(p)
}

// CouponQuote is the preview of a coupon applied to a course.
type CouponQuote struct {
	Code  string        `json:"code"`
	Quote pricing.Quote `json:"quote"`
}

type ListCouponsQuery struct {
	Pagination
	Active *bool  `query:"active"`
	Search string `query:"search" validate:"omitempty,max=64"`
}

func (q *ListCouponsQuery) Validate() error {
	return validation.Struct(q)
}
