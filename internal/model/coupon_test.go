package model

import (
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/schoolhub/internal/errs"
	"github.com/deppfellow/schoolhub/internal/lib/pricing"
	"github.com/deppfellow/schoolhub/internal/lib/rules"
	"github.com/deppfellow/schoolhub/internal/lib/utils"
	"github.com/deppfellow/schoolhub/internal/validation"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func oneTime(price string) pricing.Model {
	return pricing.Model{Type: pricing.ModelOneTime, Price: dec(price), Currency: "USD"}
}

func TestCoupon_DiscountFor(t *testing.T) {
	tests := []struct {
		name   string
		coupon Coupon
		amount string
		want   string
	}{
		{"percent", Coupon{DiscountType: DiscountPercent, DiscountValue: dec("20")}, "49.00", "9.8"},
		{"percent rounds half up", Coupon{DiscountType: DiscountPercent, DiscountValue: dec("15")}, "0.30", "0.05"},
		{"full percent", Coupon{DiscountType: DiscountPercent, DiscountValue: dec("100")}, "19.99", "19.99"},
		{"fixed", Coupon{DiscountType: DiscountFixed, DiscountValue: dec("10")}, "49.00", "10"},
		{"fixed capped at amount", Coupon{DiscountType: DiscountFixed, DiscountValue: dec("80")}, "49.00", "49"},
		{"zero amount", Coupon{DiscountType: DiscountFixed, DiscountValue: dec("10")}, "0", "0"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.coupon.DiscountFor(dec(tc.amount))
			assert.True(t, dec(tc.want).Equal(got), "want %s, got %s", tc.want, got)
		})
	}
}

func TestCoupon_QuoteNeverNegative(t *testing.T) {
	c := &Coupon{DiscountType: DiscountFixed, DiscountValue: dec("500")}
	q := pricing.NewQuote(oneTime("49.00"), c)
	assert.True(t, q.AmountDue.IsZero())
	assert.True(t, q.IsFree())
}

func validCoupon() *Coupon {
	return &Coupon{
		Code:          "SPRING20",
		DiscountType:  DiscountPercent,
		DiscountValue: dec("20"),
		ValidFrom:     now.Add(-24 * time.Hour),
		Active:        true,
	}
}

func TestCoupon_CheckRedeemable(t *testing.T) {
	engine := rules.MustNewEngine()
	redemption := Redemption{
		UserID:   "user_1",
		CourseID: "11111111-1111-4111-8111-111111111111",
		Pricing:  oneTime("49.00"),
	}

	tests := []struct {
		name       string
		mutate     func(c *Coupon, r *Redemption)
		wantCode   string
		wantStatus int
	}{
		{name: "ok", mutate: func(*Coupon, *Redemption) {}},
		{
			name:     "inactive wins over expired",
			mutate:   func(c *Coupon, _ *Redemption) { c.Active = false; c.ValidUntil = utils.Ptr(now.Add(-time.Hour)) },
			wantCode: CodeCouponInactive, wantStatus: http.StatusBadRequest,
		},
		{
			name:     "not started",
			mutate:   func(c *Coupon, _ *Redemption) { c.ValidFrom = now.Add(time.Hour) },
			wantCode: CodeCouponNotStarted, wantStatus: http.StatusBadRequest,
		},
		{
			name:     "expired at the boundary",
			mutate:   func(c *Coupon, _ *Redemption) { c.ValidUntil = utils.Ptr(now) },
			wantCode: CodeCouponExpired, wantStatus: http.StatusBadRequest,
		},
		{
			name:     "exhausted",
			mutate:   func(c *Coupon, _ *Redemption) { c.MaxUses = utils.Ptr(3); c.UsedCount = 3 },
			wantCode: CodeCouponExhausted, wantStatus: http.StatusConflict,
		},
		{
			name: "per user limit",
			mutate: func(c *Coupon, r *Redemption) {
				c.MaxUsesPerUser = utils.Ptr(1)
				r.UserRedemptions = 1
			},
			wantCode: CodeCouponUserLimit, wantStatus: http.StatusBadRequest,
		},
		{
			name:     "course out of scope",
			mutate:   func(c *Coupon, _ *Redemption) { c.CourseIDs = []string{"22222222-2222-4222-8222-222222222222"} },
			wantCode: CodeCouponNotApplicable, wantStatus: http.StatusBadRequest,
		},
		{
			name:     "below minimum subtotal",
			mutate:   func(c *Coupon, _ *Redemption) { c.MinSubtotal = decimal.NewNullDecimal(dec("50")) },
			wantCode: CodeCouponMinSubtotal, wantStatus: http.StatusBadRequest,
		},
		{
			name: "fixed currency mismatch",
			mutate: func(c *Coupon, _ *Redemption) {
				c.DiscountType = DiscountFixed
				c.DiscountValue = dec("5")
				c.Currency = utils.Ptr("EUR")
			},
			wantCode: CodeCouponCurrency, wantStatus: http.StatusBadRequest,
		},
		{
			name:     "condition false",
			mutate:   func(c *Coupon, _ *Redemption) { c.Condition = `pricing_model == "subscription"` },
			wantCode: CodeCouponConditionUnmet, wantStatus: http.StatusBadRequest,
		},
		{
			name:   "condition true",
			mutate: func(c *Coupon, _ *Redemption) { c.Condition = `subtotal >= 40.0 && currency == "USD"` },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := validCoupon()
			r := redemption
			tc.mutate(c, &r)

			err := c.CheckRedeemable(now, r, engine)
			if tc.wantCode == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.wantCode, errs.CodeOf(err))
			assert.Equal(t, tc.wantStatus, errs.StatusOf(err))
		})
	}
}

func TestCreateCouponPayload_Validate(t *testing.T) {
	base := func() *CreateCouponPayload {
		return &CreateCouponPayload{
			Code:          "  spring-20 ",
			DiscountType:  DiscountPercent,
			DiscountValue: dec("20"),
		}
	}

	t.Run("normalizes code", func(t *testing.T) {
		p := base()
		require.NoError(t, p.Validate())
		assert.Equal(t, "SPRING-20", p.Code)
	})

	fieldOf := func(t *testing.T, err error) string {
		t.Helper()
		var custom validation.CustomValidationErrors
		require.ErrorAs(t, err, &custom)
		require.NotEmpty(t, custom)
		return custom[0].Field
	}

	tests := []struct {
		name   string
		mutate func(p *CreateCouponPayload)
		field  string
	}{
		{"code too short", func(p *CreateCouponPayload) { p.Code = "ab" }, "code"},
		{"code bad chars", func(p *CreateCouponPayload) { p.Code = "SPRING 20" }, "code"},
		{"percent above 100", func(p *CreateCouponPayload) { p.DiscountValue = dec("101") }, "discount_value"},
		{"percent below 1", func(p *CreateCouponPayload) { p.DiscountValue = dec("0.5") }, "discount_value"},
		{"percent fractional", func(p *CreateCouponPayload) { p.DiscountValue = dec("12.5") }, "discount_value"},
		{"fixed without currency", func(p *CreateCouponPayload) {
			p.DiscountType = DiscountFixed
			p.DiscountValue = dec("5")
		}, "currency"},
		{"window reversed", func(p *CreateCouponPayload) {
			p.ValidFrom = utils.Ptr(now)
			p.ValidUntil = utils.Ptr(now.Add(-time.Hour))
		}, "valid_until"},
		{"condition not bool", func(p *CreateCouponPayload) { p.Condition = utils.Ptr("subtotal + 1.0") }, "condition"},
		{"condition syntax", func(p *CreateCouponPayload) { p.Condition = utils.Ptr("subtotal >>> 1") }, "condition"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := base()
			tc.mutate(p)
			assert.Equal(t, tc.field, fieldOf(t, p.Validate()))
		})
	}
}

func TestUpdateCouponPayload_Apply(t *testing.T) {
	c := validCoupon()
	c.UsedCount = 5

	p := &UpdateCouponPayload{MaxUses: utils.Ptr(3)}
	assert.Error(t, p.Apply(c), "max_uses below redemptions")

	c = validCoupon()
	p = &UpdateCouponPayload{DiscountType: utils.Ptr(DiscountFixed)}
	assert.Error(t, p.Apply(c), "fixed discount needs a currency")

	c = validCoupon()
	p = &UpdateCouponPayload{Active: utils.Ptr(false), Condition: utils.Ptr("  currency == \"USD\" ")}
	require.NoError(t, p.Apply(c))
	assert.False(t, c.Active)
	assert.Equal(t, `currency == "USD"`, c.Condition)
}
