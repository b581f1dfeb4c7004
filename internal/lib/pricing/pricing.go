// Package pricing validates course pricing models and computes quotes.
package pricing

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/deppfellow/schoolhub/internal/validation"
)

type ModelType string

const (
	ModelFree         ModelType = "free"
	ModelOneTime      ModelType = "one_time"
	ModelSubscription ModelType = "subscription"
	ModelPaymentPlan  ModelType = "payment_plan"
)

const (
	IntervalMonth = "month"
	IntervalYear  = "year"

	MaxTrialDays    = 90
	MinInstallments = 2
	MaxInstallments = 12
)

// MaxPrice caps any single charge.
var MaxPrice = decimal.NewFromInt(100000)

var currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)

// Model is the pricing of a course, stored as JSONB.
type Model struct {
	Type     ModelType       `json:"model"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency,omitempty"`

	// subscription
	Interval  string `json:"interval,omitempty"`
	TrialDays int    `json:"trial_days,omitempty"`

	// payment_plan
	InstallmentPrice decimal.Decimal `json:"installment_price"`
	Installments     int             `json:"installments,omitempty"`
}

// Free is the zero-cost model.
func Free() Model {
	return Model{Type: ModelFree}
}

// IsPaid reports whether the model ever charges the student.
func (m Model) IsPaid() bool {
	return m.Type != ModelFree && m.Type != ""
}

// Validate returns field errors prefixed with prefix ("pricing" for courses).
func (m Model) Validate(prefix string) error {
	var v validation.CustomValidationErrors
	field := func(name string) string {
		if prefix == "" {
			return name
		}
		return prefix + "." + name
	}

	checkAmount := func(name string, amount decimal.Decimal) {
		switch {
		case !amount.IsPositive():
			v.Add(field(name), "must be greater than 0")
		case amount.GreaterThan(MaxPrice):
			v.Add(field(name), fmt.Sprintf("must not exceed %s", MaxPrice.String()))
		case !amount.Equal(amount.Round(2)):
			v.Add(field(name), "must have at most 2 decimal places")
		}
	}

	checkCurrency := func() {
		if !currencyRegex.MatchString(m.Currency) {
			v.Add(field("currency"), "must be a 3-letter ISO currency code")
		}
	}

	switch m.Type {
	case ModelFree:
		if !m.Price.IsZero() || !m.InstallmentPrice.IsZero() {
			v.Add(field("price"), "must be empty for free courses")
		}

	case ModelOneTime:
		checkAmount("price", m.Price)
		checkCurrency()

	case ModelSubscription:
		checkAmount("price", m.Price)
		checkCurrency()
		if m.Interval != IntervalMonth && m.Interval != IntervalYear {
			v.Add(field("interval"), "must be one of: month year")
		}
		if m.TrialDays < 0 || m.TrialDays > MaxTrialDays {
			v.Add(field("trial_days"), fmt.Sprintf("must be between 0 and %d", MaxTrialDays))
		}

	case ModelPaymentPlan:
		checkAmount("installment_price", m.InstallmentPrice)
		checkCurrency()
		if m.Installments < MinInstallments || m.Installments > MaxInstallments {
			v.Add(field("installments"), fmt.Sprintf("must be between %d and %d", MinInstallments, MaxInstallments))
		}
		if m.Interval != "" && m.Interval != IntervalMonth {
			v.Add(field("interval"), "must be month")
		}

	default:
		v.Add(field("model"), "must be one of: free one_time subscription payment_plan")
	}

	return v.OrNil()
}

// Normalize fills defaults: payment plans bill monthly, free carries no currency.
func (m Model) Normalize() Model {
	switch m.Type {
	case ModelPaymentPlan:
		if m.Interval == "" {
			m.Interval = IntervalMonth
		}
	case ModelFree:
		m.Currency = ""
		m.Interval = ""
		m.TrialDays = 0
		m.Installments = 0
	}
	return m
}

// AmountDueNow is what the student pays at enrollment.
func (m Model) AmountDueNow() decimal.Decimal {
	switch m.Type {
	case ModelOneTime:
		return m.Price
	case ModelSubscription:
		if m.TrialDays > 0 {
			return decimal.Zero
		}
		return m.Price
	case ModelPaymentPlan:
		return m.InstallmentPrice
	default:
		return decimal.Zero
	}
}

// Total is the full price: per interval for subscriptions, all installments for plans.
func (m Model) Total() decimal.Decimal {
	switch m.Type {
	case ModelOneTime, ModelSubscription:
		return m.Price
	case ModelPaymentPlan:
		return m.InstallmentPrice.Mul(decimal.NewFromInt(int64(m.Installments)))
	default:
		return decimal.Zero
	}
}

// Discounter computes the discount on an amount (a coupon).
type Discounter interface {
	DiscountFor(amount decimal.Decimal) decimal.Decimal
}

// Quote is the price breakdown shown before enrolling.
type Quote struct {
	Model     ModelType       `json:"model"`
	ListPrice decimal.Decimal `json:"list_price"`
	Discount  decimal.Decimal `json:"discount"`
	AmountDue decimal.Decimal `json:"amount_due"`
	Total     decimal.Decimal `json:"total"`
	Currency  string          `json:"currency"`
}

// IsFree reports whether nothing has to be paid now.
func (q Quote) IsFree() bool {
	return !q.AmountDue.IsPositive()
}

// NewQuote prices the amount due now, minus the discount when d is not nil.
func NewQuote(m Model, d Discounter) Quote {
	list := m.AmountDueNow()

	discount := decimal.Zero
	if d != nil && list.IsPositive() {
		discount = d.DiscountFor(list)
		if discount.GreaterThan(list) {
			discount = list
		}
		if discount.IsNegative() {
			discount = decimal.Zero
		}
	}

	return Quote{
		Model:     m.Type,
		ListPrice: list,
		Discount:  discount,
		AmountDue: list.Sub(discount),
		Total:     m.Total(),
		Currency:  m.Currency,
	}
}
