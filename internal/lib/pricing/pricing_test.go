package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/schoolhub/internal/validation"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fields(t *testing.T, err error) map[string]string {
	t.Helper()
	out := map[string]string{}
	if err == nil {
		return out
	}
	var v validation.CustomValidationErrors
	require.ErrorAs(t, err, &v)
	for _, e := range v {
		out[e.Field] = e.Message
	}
	return out
}

func TestModel_Validate(t *testing.T) {
	tests := []struct {
		name   string
		model  Model
		fields []string
	}{
		{name: "free", model: Free()},
		{name: "free with price", model: Model{Type: ModelFree, Price: d("10")}, fields: []string{"pricing.price"}},
		{name: "one time", model: Model{Type: ModelOneTime, Price: d("49.99"), Currency: "USD"}},
		{name: "one time zero price", model: Model{Type: ModelOneTime, Currency: "USD"}, fields: []string{"pricing.price"}},
		{name: "one time too expensive", model: Model{Type: ModelOneTime, Price: d("100000.01"), Currency: "USD"}, fields: []string{"pricing.price"}},
		{name: "one time fractional cents", model: Model{Type: ModelOneTime, Price: d("9.999"), Currency: "USD"}, fields: []string{"pricing.price"}},
		{name: "lowercase currency", model: Model{Type: ModelOneTime, Price: d("10"), Currency: "usd"}, fields: []string{"pricing.currency"}},
		{name: "subscription", model: Model{Type: ModelSubscription, Price: d("19"), Currency: "EUR", Interval: IntervalMonth, TrialDays: 14}},
		{name: "subscription bad interval and trial", model: Model{Type: ModelSubscription, Price: d("19"), Currency: "EUR", Interval: "week", TrialDays: 91}, fields: []string{"pricing.interval", "pricing.trial_days"}},
		{name: "payment plan", model: Model{Type: ModelPaymentPlan, InstallmentPrice: d("100"), Installments: 3, Currency: "GBP"}},
		{name: "payment plan one installment", model: Model{Type: ModelPaymentPlan, InstallmentPrice: d("100"), Installments: 1, Currency: "GBP"}, fields: []string{"pricing.installments"}},
		{name: "payment plan yearly", model: Model{Type: ModelPaymentPlan, InstallmentPrice: d("100"), Installments: 4, Currency: "GBP", Interval: IntervalYear}, fields: []string{"pricing.interval"}},
		{name: "unknown model", model: Model{Type: "barter"}, fields: []string{"pricing.model"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := fields(t, tc.model.Validate("pricing"))
			assert.Len(t, got, len(tc.fields))
			for _, f := range tc.fields {
				assert.Contains(t, got, f)
			}
		})
	}
}

func TestModel_Amounts(t *testing.T) {
	tests := []struct {
		name  string
		model Model
		now   string
		total string
	}{
		{"free", Free(), "0", "0"},
		{"one time", Model{Type: ModelOneTime, Price: d("49.99")}, "49.99", "49.99"},
		{"subscription", Model{Type: ModelSubscription, Price: d("19")}, "19", "19"},
		{"subscription with trial", Model{Type: ModelSubscription, Price: d("19"), TrialDays: 7}, "0", "19"},
		{"payment plan", Model{Type: ModelPaymentPlan, InstallmentPrice: d("33.34"), Installments: 3}, "33.34", "100.02"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, d(tc.now).Equal(tc.model.AmountDueNow()), "due now %s", tc.model.AmountDueNow())
			assert.True(t, d(tc.total).Equal(tc.model.Total()), "total %s", tc.model.Total())
		})
	}
}

type flat string

func (f flat) DiscountFor(amount decimal.Decimal) decimal.Decimal {
	return d(string(f))
}

func TestNewQuote(t *testing.T) {
	m := Model{Type: ModelOneTime, Price: d("50"), Currency: "USD"}

	q := NewQuote(m, nil)
	assert.True(t, d("50").Equal(q.AmountDue))
	assert.False(t, q.IsFree())

	q = NewQuote(m, flat("12.50"))
	assert.True(t, d("12.50").Equal(q.Discount))
	assert.True(t, d("37.50").Equal(q.AmountDue))
	assert.Equal(t, "USD", q.Currency)

	// discounts never push the amount below zero
	q = NewQuote(m, flat("80"))
	assert.True(t, d("50").Equal(q.Discount))
	assert.True(t, q.IsFree())

	// nothing due now means nothing to discount
	q = NewQuote(Model{Type: ModelSubscription, Price: d("20"), TrialDays: 14, Currency: "USD"}, flat("5"))
	assert.True(t, q.Discount.IsZero())
	assert.True(t, q.IsFree())
}

func TestNormalize(t *testing.T) {
	m := Model{Type: ModelPaymentPlan, InstallmentPrice: d("10"), Installments: 2, Currency: "USD"}.Normalize()
	assert.Equal(t, IntervalMonth, m.Interval)

	f := Model{Type: ModelFree, Currency: "USD", TrialDays: 3}.Normalize()
	assert.Empty(t, f.Currency)
	assert.Zero(t, f.TrialDays)
}
