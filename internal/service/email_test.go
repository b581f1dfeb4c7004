package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/schoolhub/internal/errs"
	"github.com/deppfellow/schoolhub/internal/lib/email"
	"github.com/deppfellow/schoolhub/internal/lib/job"
	"github.com/deppfellow/schoolhub/internal/lib/utils"
	"github.com/deppfellow/schoolhub/internal/model"
	"github.com/deppfellow/schoolhub/internal/sqlerr"
)

type memEmails struct {
	prefs        map[string]email.Preferences
	messages     map[string]*model.EmailMessage
	marketingOff []string
	seq          int
}

func newMemEmails() *memEmails {
	return &memEmails{prefs: map[string]email.Preferences{}, messages: map[string]*model.EmailMessage{}}
}

func (m *memEmails) GetPreferences(_ context.Context, _, userID string) (email.Preferences, error) {
	if p, ok := m.prefs[userID]; ok {
		return p, nil
	}
	return email.DefaultPreferences(), nil
}

func (m *memEmails) SavePreferences(_ context.Context, _, userID string, prefs email.Preferences) (email.Preferences, error) {
	m.prefs[userID] = prefs
	return prefs, nil
}

func (m *memEmails) DisableMarketing(_ context.Context, _, userID string) error {
	m.marketingOff = append(m.marketingOff, userID)
	return nil
}

func (m *memEmails) CreateMessage(_ context.Context, msg *model.EmailMessage) (*model.EmailMessage, error) {
	m.seq++
	stored := *msg
	stored.ID = "msg-" + string(rune('0'+m.seq))
	stored.QueuedAt = fixedNow
	m.messages[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (m *memEmails) GetMessage(_ context.Context, tenantID, id string) (*model.EmailMessage, error) {
	msg, ok := m.messages[id]
	if !ok || msg.TenantID != tenantID {
		return nil, sqlerr.NotFound("email_messages")
	}
	out := *msg
	return &out, nil
}

func (m *memEmails) GetByProviderID(_ context.Context, providerID string) (*model.EmailMessage, error) {
	for _, msg := range m.messages {
		if msg.ProviderMessageID != nil && *msg.ProviderMessageID == providerID {
			out := *msg
			return &out, nil
		}
	}
	return nil, sqlerr.NotFound("email_messages")
}

func (m *memEmails) MarkSent(_ context.Context, id, providerID string, at time.Time) error {
	msg := m.messages[id]
	msg.Status = email.StatusSent
	msg.ProviderMessageID = &providerID
	msg.SentAt = &at
	msg.Attempts++
	return nil
}

func (m *memEmails) RecordFailure(_ context.Context, id, reason string, final bool) error {
	msg := m.messages[id]
	msg.Attempts++
	msg.LastError = &reason
	if final {
		msg.Status = email.StatusFailed
	}
	return nil
}

func (m *memEmails) Advance(_ context.Context, id string, from, to email.Status, _ time.Time) (bool, error) {
	msg := m.messages[id]
	if msg.Status != from {
		return false, nil
	}
	msg.Status = to
	return true, nil
}

func (m *memEmails) List(context.Context, string, *model.ListEmailsQuery) ([]model.EmailMessage, int, error) {
	return nil, 0, nil
}

func (m *memEmails) StatusCounts(context.Context, string, *model.EmailAnalyticsQuery) (map[email.Status]int64, error) {
	return map[email.Status]int64{email.StatusSent: 3, email.StatusDelivered: 1}, nil
}

type recordingEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

type failingSender struct{ err error }

func (f failingSender) Provider() string { return "failing" }

func (f failingSender) SendEmail(context.Context, string, string, email.Template, map[string]any) (string, error) {
	return "", f.err
}

type emailFixture struct {
	svc      *EmailService
	store    *memEmails
	enqueuer *recordingEnqueuer
	console  *email.ConsoleSender
}

func newEmailFixture() *emailFixture {
	renderer := email.MustNewRenderer()
	f := &emailFixture{
		store:    newMemEmails(),
		enqueuer: &recordingEnqueuer{},
		console:  email.NewConsoleSender(nil, "School", "no-reply@school.example.com"),
	}
	client := email.NewClientWithSender(f.console, renderer, nopLogger())
	f.svc = NewEmailService(f.store, f.enqueuer, client, renderer, testMetrics(), nopLogger(), "hook-secret")
	f.svc.now = clockAt(fixedNow)
	return f
}

func outgoing(template email.Template) model.OutgoingEmail {
	return model.OutgoingEmail{
		UserID:   utils.Ptr(student.UserID),
		To:       "ada@example.com",
		Template: template,
		Data:     email.PreviewData[template],
	}
}

func TestEmailQueue_EnqueuesOnCategoryQueue(t *testing.T) {
	f := newEmailFixture()

	msg, err := f.svc.Queue(context.Background(), tenant, outgoing(email.TemplateWelcome))
	require.NoError(t, err)
	assert.Equal(t, email.StatusQueued, msg.Status)
	assert.Equal(t, email.CategoryTransactional, msg.Category)
	assert.NotEmpty(t, msg.Subject)

	require.Len(t, f.enqueuer.tasks, 1)
	p, err := job.ParseEmailSendPayload(f.enqueuer.tasks[0])
	require.NoError(t, err)
	assert.Equal(t, msg.ID, p.MessageID)
	assert.Equal(t, tenant, p.TenantID)
}

func TestEmailQueue_RespectsPreferences(t *testing.T) {
	f := newEmailFixture()

	msg, err := f.svc.Queue(context.Background(), tenant, outgoing(email.TemplateAnnouncement))
	require.NoError(t, err)
	assert.Equal(t, email.StatusSuppressed, msg.Status, "marketing is opt-in")
	assert.Empty(t, f.enqueuer.tasks)

	f.store.prefs[student.UserID] = email.Preferences{Marketing: true}
	msg, err = f.svc.Queue(context.Background(), tenant, outgoing(email.TemplateAnnouncement))
	require.NoError(t, err)
	assert.Equal(t, email.StatusQueued, msg.Status)

	f.store.prefs[student.UserID] = email.Preferences{}
	msg, err = f.svc.Queue(context.Background(), tenant, outgoing(email.TemplatePaymentReceipt))
	require.NoError(t, err)
	assert.Equal(t, email.StatusQueued, msg.Status, "transactional mail ignores preferences")
}

func TestEmailQueue_Errors(t *testing.T) {
	f := newEmailFixture()

	_, err := f.svc.Queue(context.Background(), tenant, model.OutgoingEmail{To: "a@b.c", Template: "nope"})
	assert.True(t, errors.Is(err, email.ErrUnknownTemplate))

	f.enqueuer.err = errors.New("redis down")
	_, err = f.svc.Queue(context.Background(), tenant, outgoing(email.TemplateWelcome))
	require.Error(t, err)
	for _, msg := range f.store.messages {
		assert.Equal(t, email.StatusFailed, msg.Status)
	}
}

func TestEmailSendTask_DeliversQueuedMessage(t *testing.T) {
	ctx := context.Background()
	f := newEmailFixture()

	msg, err := f.svc.Queue(ctx, tenant, outgoing(email.TemplateWelcome))
	require.NoError(t, err)

	require.NoError(t, f.svc.HandleSendTask(ctx, f.enqueuer.tasks[0]))

	stored, err := f.store.GetMessage(ctx, tenant, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, email.StatusSent, stored.Status)
	require.NotNil(t, stored.ProviderMessageID)
	assert.True(t, strings.HasPrefix(*stored.ProviderMessageID, "console_"))
	require.Len(t, f.console.Sent(), 1)
	assert.Equal(t, "ada@example.com", f.console.Sent()[0].To)

	require.NoError(t, f.svc.HandleSendTask(ctx, f.enqueuer.tasks[0]), "already sent is a no-op")
	assert.Len(t, f.console.Sent(), 1)
}

func TestEmailSendTask_Failures(t *testing.T) {
	ctx := context.Background()
	f := newEmailFixture()

	msg, err := f.svc.Queue(ctx, tenant, outgoing(email.TemplateWelcome))
	require.NoError(t, err)

	f.svc.sender = failingSender{err: errors.New("provider timeout")}
	err = f.svc.HandleSendTask(ctx, f.enqueuer.tasks[0])
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))

	stored, _ := f.store.GetMessage(ctx, tenant, msg.ID)
	assert.Equal(t, email.StatusQueued, stored.Status, "retried while attempts remain")
	assert.Equal(t, 1, stored.Attempts)

	missing, err := job.NewEmailSendTask(job.EmailSendPayload{TenantID: tenant, MessageID: "gone"}, job.QueueDefault)
	require.NoError(t, err)
	err = f.svc.HandleSendTask(ctx, missing)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestEmailWebhook(t *testing.T) {
	ctx := context.Background()
	f := newEmailFixture()

	msg, err := f.svc.Queue(ctx, tenant, outgoing(email.TemplateWelcome))
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleSendTask(ctx, f.enqueuer.tasks[0]))
	stored, _ := f.store.GetMessage(ctx, tenant, msg.ID)
	providerID := *stored.ProviderMessageID

	event := func(kind string) []byte {
		return []byte(`{"type":"` + kind + `","created_at":"2026-03-02T09:05:00Z","data":{"email_id":"` + providerID + `"}}`)
	}

	_, err = f.svc.HandleWebhook(ctx, "wrong", event("email.delivered"))
	assert.Equal(t, http.StatusUnauthorized, errs.StatusOf(err))

	_, err = f.svc.HandleWebhook(ctx, "hook-secret", []byte("{"))
	assert.Equal(t, http.StatusBadRequest, errs.StatusOf(err))

	ack, err := f.svc.HandleWebhook(ctx, "hook-secret", event("email.opened"))
	require.NoError(t, err)
	assert.Equal(t, model.WebhookProcessed, ack.Status)

	ack, err = f.svc.HandleWebhook(ctx, "hook-secret", event("email.delivered"))
	require.NoError(t, err)
	assert.Equal(t, model.WebhookIgnored, ack.Status, "engagement never moves backwards")

	ack, err = f.svc.HandleWebhook(ctx, "hook-secret", event("email.bounced"))
	require.NoError(t, err)
	assert.Equal(t, model.WebhookProcessed, ack.Status)
	assert.Equal(t, []string{student.UserID}, f.store.marketingOff)

	stored, _ = f.store.GetMessage(ctx, tenant, msg.ID)
	assert.Equal(t, email.StatusBounced, stored.Status)

	ack, err = f.svc.HandleWebhook(ctx, "hook-secret", []byte(`{"type":"email.delivered","data":{"email_id":"unknown"}}`))
	require.NoError(t, err)
	assert.Equal(t, model.WebhookIgnored, ack.Status)
}

func TestEmailPreview(t *testing.T) {
	f := newEmailFixture()

	html, err := f.svc.Preview(email.TemplateLiveClassReminder)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<html")

	_, err = f.svc.Preview("missing")
	assert.Equal(t, http.StatusNotFound, errs.StatusOf(err))
}
