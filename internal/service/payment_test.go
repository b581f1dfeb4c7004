package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/schoolhub/internal/errs"
	"github.com/deppfellow/schoolhub/internal/lib/email"
	"github.com/deppfellow/schoolhub/internal/lib/payment"
	"github.com/deppfellow/schoolhub/internal/model"
	"github.com/deppfellow/schoolhub/internal/sqlerr"
)

const webhookSecret = "whsec_test"

type memPaymentEvents struct {
	seen map[string]bool
}

func (m *memPaymentEvents) RecordEvent(_ context.Context, _, eventID, _, _ string) (bool, error) {
	if m.seen[eventID] {
		return false, nil
	}
	m.seen[eventID] = true
	return true, nil
}

type memReplayGuard struct {
	ids map[string]bool
	err error
}

func (g *memReplayGuard) Seen(_ context.Context, id string) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	return g.ids[id], nil
}

func (g *memReplayGuard) Remember(_ context.Context, id string) error {
	if g.err != nil {
		return g.err
	}
	g.ids[id] = true
	return nil
}

type paymentFixture struct {
	svc         *PaymentService
	enrollments *memEnrollments
	events      *memPaymentEvents
	replay      *memReplayGuard
	coupons     *recordingRedeemer
	mailer      *recordingMailer
	notifier    *recordingNotifier
}

func newPaymentFixture() *paymentFixture {
	f := &paymentFixture{
		enrollments: newMemEnrollments(),
		events:      &memPaymentEvents{seen: map[string]bool{}},
		replay:      &memReplayGuard{ids: map[string]bool{}},
		coupons:     &recordingRedeemer{},
		mailer:      &recordingMailer{},
		notifier:    &recordingNotifier{},
	}
	f.svc = NewPaymentService(PaymentDeps{
		Tx:          &inlineTx{},
		Verifier:    payment.NewVerifier(webhookSecret),
		Events:      f.events,
		Enrollments: f.enrollments,
		Courses:     catalog(),
		Coupons:     f.coupons,
		Users:       users(),
		Replay:      f.replay,
		Mailer:      f.mailer,
		Notifier:    f.notifier,
		Metrics:     testMetrics(),
		Logger:      nopLogger(),
	})
	return f
}

func pendingEnrollment(ref string, couponID *string) model.Enrollment {
	return model.Enrollment{
		ID:               "e-" + ref,
		TenantID:         tenant,
		UserID:           student.UserID,
		CourseID:         paidCourseID,
		Status:           model.EnrollmentPendingPayment,
		ListPrice:        decimal.NewFromInt(100),
		DiscountAmount:   decimal.NewFromInt(20),
		AmountDue:        decimal.NewFromInt(80),
		Currency:         "USD",
		CouponID:         couponID,
		PaymentReference: &ref,
	}
}

func deliver(t *testing.T, svc *PaymentService, body string) (*model.WebhookAck, error) {
	t.Helper()
	sig := payment.Sign(webhookSecret, time.Now(), []byte(body))
	return svc.HandleWebhook(context.Background(), sig, []byte(body))
}

func TestPaymentWebhook_SucceededActivatesEnrollment(t *testing.T) {
	f := newPaymentFixture()
	couponID := "coupon-1"
	f.enrollments.put(pendingEnrollment("pay_1", &couponID))

	ack, err := deliver(t, f.svc, `{"id":"evt_1","type":"payment.succeeded","data":{"payment_reference":"pay_1","amount":"80.00","currency":"USD"}}`)
	require.NoError(t, err)
	assert.Equal(t, model.WebhookProcessed, ack.Status)

	e, err := f.enrollments.GetByID(context.Background(), tenant, "e-pay_1")
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentActive, e.Status)

	assert.Empty(t, f.coupons.calls, "the use was reserved at checkout")
	assert.Empty(t, f.coupons.releases)

	assert.ElementsMatch(t,
		[]string{string(email.TemplatePaymentReceipt), string(email.TemplateWelcome)},
		f.mailer.templates(),
	)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, model.NotificationPayment, f.notifier.sent[0].Kind)
	assert.True(t, f.replay.ids["evt_1"])
}

func TestPaymentWebhook_RedeliveryIsDuplicate(t *testing.T) {
	f := newPaymentFixture()
	f.enrollments.put(pendingEnrollment("pay_1", nil))
	body := `{"id":"evt_1","type":"payment.succeeded","data":{"payment_reference":"pay_1"}}`

	ack, err := deliver(t, f.svc, body)
	require.NoError(t, err)
	assert.Equal(t, model.WebhookProcessed, ack.Status)

	ack, err = deliver(t, f.svc, body)
	require.NoError(t, err)
	assert.Equal(t, model.WebhookDuplicate, ack.Status)

	// Without the cache the event table still catches the replay.
	f.replay.ids = map[string]bool{}
	ack, err = deliver(t, f.svc, body)
	require.NoError(t, err)
	assert.Equal(t, model.WebhookDuplicate, ack.Status)

	assert.Len(t, f.mailer.sent, 2, "emails are sent once")
}

func TestPaymentWebhook_ReplayGuardDownFallsBackToDatabase(t *testing.T) {
	f := newPaymentFixture()
	f.replay.err = errors.New("redis: connection refused")
	f.enrollments.put(pendingEnrollment("pay_1", nil))

	ack, err := deliver(t, f.svc, `{"id":"evt_9","type":"payment.failed","data":{"payment_reference":"pay_1","failure_reason":"card_declined"}}`)
	require.NoError(t, err)
	assert.Equal(t, model.WebhookProcessed, ack.Status)

	e, err := f.enrollments.GetByID(context.Background(), tenant, "e-pay_1")
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentCancelled, e.Status)
	assert.Equal(t, []string{string(email.TemplatePaymentFailed)}, f.mailer.templates())
	assert.Equal(t, "card_declined", f.mailer.sent[0].Data["Reason"])
}

func TestPaymentWebhook_EventNotApplicable(t *testing.T) {
	f := newPaymentFixture()
	f.enrollments.put(pendingEnrollment("pay_1", nil))

	ack, err := deliver(t, f.svc, `{"id":"evt_2","type":"payment.refunded","data":{"payment_reference":"pay_1"}}`)
	require.NoError(t, err)
	assert.Equal(t, model.WebhookIgnored, ack.Status)

	e, err := f.enrollments.GetByID(context.Background(), tenant, "e-pay_1")
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentPendingPayment, e.Status)
	assert.Empty(t, f.mailer.sent)
}

func TestPaymentWebhook_Refund(t *testing.T) {
	f := newPaymentFixture()
	e := pendingEnrollment("pay_1", nil)
	e.Status = model.EnrollmentCompleted
	f.enrollments.put(e)

	ack, err := deliver(t, f.svc, `{"id":"evt_3","type":"payment.refunded","data":{"payment_reference":"pay_1"}}`)
	require.NoError(t, err)
	assert.Equal(t, model.WebhookProcessed, ack.Status)

	got, err := f.enrollments.GetByID(context.Background(), tenant, "e-pay_1")
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentRefunded, got.Status)
	assert.Empty(t, f.coupons.releases, "a refund keeps the coupon used")
}

func TestPaymentWebhook_FailedReleasesCoupon(t *testing.T) {
	f := newPaymentFixture()
	couponID := "coupon-1"
	f.enrollments.put(pendingEnrollment("pay_1", &couponID))
	f.enrollments.put(pendingEnrollment("pay_2", nil))

	ack, err := deliver(t, f.svc, `{"id":"evt_1","type":"payment.failed","data":{"payment_reference":"pay_1"}}`)
	require.NoError(t, err)
	assert.Equal(t, model.WebhookProcessed, ack.Status)
	assert.Equal(t, []string{"e-pay_1"}, f.coupons.releases)

	ack, err = deliver(t, f.svc, `{"id":"evt_1","type":"payment.failed","data":{"payment_reference":"pay_1"}}`)
	require.NoError(t, err)
	assert.Equal(t, model.WebhookDuplicate, ack.Status)

	_, err = deliver(t, f.svc, `{"id":"evt_2","type":"payment.failed","data":{"payment_reference":"pay_2"}}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"e-pay_1"}, f.coupons.releases, "released once, and only for coupon checkouts")
}

func TestPaymentWebhook_Rejections(t *testing.T) {
	f := newPaymentFixture()
	body := `{"id":"evt_1","type":"payment.succeeded","data":{"payment_reference":"pay_unknown"}}`

	_, err := f.svc.HandleWebhook(context.Background(), payment.Sign("wrong", time.Now(), []byte(body)), []byte(body))
	assert.Equal(t, http.StatusUnauthorized, errs.StatusOf(err))

	_, err = deliver(t, f.svc, `{"type":"payment.succeeded"}`)
	assert.Equal(t, http.StatusBadRequest, errs.StatusOf(err))

	_, err = deliver(t, f.svc, body)
	assert.True(t, sqlerr.IsNotFound(err))

	ack, err := deliver(t, f.svc, `{"id":"evt_x","type":"payment.disputed","data":{}}`)
	require.NoError(t, err)
	assert.Equal(t, model.WebhookIgnored, ack.Status)
}
