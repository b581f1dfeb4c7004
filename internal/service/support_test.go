package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/schoolhub/internal/errs"
	"github.com/deppfellow/schoolhub/internal/lib/email"
	"github.com/deppfellow/schoolhub/internal/lib/metrics"
	"github.com/deppfellow/schoolhub/internal/lib/sla"
	"github.com/deppfellow/schoolhub/internal/model"
	"github.com/deppfellow/schoolhub/internal/sqlerr"
)

type memTickets struct {
	tickets map[string]*model.Ticket
	replies []model.TicketReply
	seq     int
}

func newMemTickets() *memTickets {
	return &memTickets{tickets: map[string]*model.Ticket{}}
}

func (m *memTickets) Create(_ context.Context, t *model.Ticket) (*model.Ticket, error) {
	m.seq++
	stored := *t
	stored.ID = "t-" + string(rune('0'+m.seq))
	stored.Status = model.TicketOpen
	stored.CreatedAt = fixedNow
	m.tickets[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (m *memTickets) GetByID(_ context.Context, tenantID, id string) (*model.Ticket, error) {
	t, ok := m.tickets[id]
	if !ok || t.TenantID != tenantID {
		return nil, sqlerr.NotFound("tickets")
	}
	out := *t
	return &out, nil
}

func (m *memTickets) List(_ context.Context, tenantID string, q *model.ListTicketsQuery) ([]model.Ticket, int, error) {
	var out []model.Ticket
	for _, t := range m.tickets {
		if t.TenantID == tenantID && (q.RequesterID == "" || t.RequesterID == q.RequesterID) {
			out = append(out, *t)
		}
	}
	return out, len(out), nil
}

func (m *memTickets) Save(_ context.Context, t *model.Ticket) (*model.Ticket, error) {
	stored := *t
	m.tickets[t.ID] = &stored
	out := stored
	return &out, nil
}

func (m *memTickets) AddReply(_ context.Context, r *model.TicketReply) (*model.TicketReply, error) {
	stored := *r
	stored.ID = "r"
	stored.CreatedAt = fixedNow
	m.replies = append(m.replies, stored)
	return &stored, nil
}

func (m *memTickets) ListReplies(_ context.Context, _, ticketID string) ([]model.TicketReply, error) {
	var out []model.TicketReply
	for _, r := range m.replies {
		if r.TicketID == ticketID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memTickets) ListUnalerted(context.Context) ([]model.Ticket, error) {
	var out []model.Ticket
	for _, t := range m.tickets {
		if t.SLAAlertedAt == nil && t.Status != model.TicketClosed {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memTickets) ClaimSLAAlert(_ context.Context, id string, at time.Time) (bool, error) {
	t, ok := m.tickets[id]
	if !ok || t.SLAAlertedAt != nil {
		return false, nil
	}
	t.SLAAlertedAt = &at
	return true, nil
}

type supportFixture struct {
	svc      *SupportService
	tickets  *memTickets
	mailer   *recordingMailer
	notifier *recordingNotifier
	metrics  *metrics.Metrics
}

func newSupportFixture(now time.Time) *supportFixture {
	f := &supportFixture{
		tickets:  newMemTickets(),
		mailer:   &recordingMailer{},
		notifier: &recordingNotifier{},
		metrics:  testMetrics(),
	}
	f.svc = NewSupportService(SupportDeps{
		Tx:          &inlineTx{},
		Tickets:     f.tickets,
		Users:       users(),
		Mailer:      f.mailer,
		Notifier:    f.notifier,
		Metrics:     f.metrics,
		Logger:      nopLogger(),
		TeamEmail:   "support@school.example.com",
		FrontendURL: "https://school.example.com",
	})
	f.svc.now = clockAt(now)
	return f
}

func (f *supportFixture) open(t *testing.T, priority sla.Priority) *model.TicketWithSLA {
	t.Helper()
	ticket, err := f.svc.Create(context.Background(), student, &model.CreateTicketPayload{
		Subject:  "Cannot open lesson 3",
		Body:     "The video never loads.",
		Priority: &priority,
	})
	require.NoError(t, err)
	return ticket
}

func TestSupport_CreateComputesSLA(t *testing.T) {
	f := newSupportFixture(fixedNow)
	ticket := f.open(t, sla.PriorityUrgent)

	assert.Equal(t, model.TicketOpen, ticket.Status)
	assert.Equal(t, sla.StatusOnTrack, ticket.SLA.Overall)
	assert.True(t, fixedNow.Add(time.Hour).Equal(ticket.SLA.FirstResponse.Deadline))
	assert.True(t, fixedNow.Add(4*time.Hour).Equal(ticket.SLA.Resolution.Deadline))
}

func TestSupport_StaffReplyStopsFirstResponseClock(t *testing.T) {
	ctx := context.Background()
	f := newSupportFixture(fixedNow.Add(30 * time.Minute))
	ticket := f.open(t, sla.PriorityHigh)

	_, err := f.svc.Reply(ctx, instructor, &model.ReplyTicketPayload{ID: ticket.ID, Body: "Try reloading."})
	require.NoError(t, err)

	detail, err := f.svc.Get(ctx, student, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.FirstResponseAt)
	assert.True(t, detail.SLA.FirstResponse.Met)
	require.Len(t, detail.Replies, 1)
	assert.True(t, detail.Replies[0].IsStaff)

	assert.Equal(t, []string{string(email.TemplateTicketUpdate)}, f.mailer.templates())
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, student.UserID, f.notifier.sent[0].UserID)

	first := *detail.FirstResponseAt
	f.svc.now = clockAt(fixedNow.Add(2 * time.Hour))
	_, err = f.svc.Reply(ctx, admin, &model.ReplyTicketPayload{ID: ticket.ID, Body: "Any luck?"})
	require.NoError(t, err)

	detail, err = f.svc.Get(ctx, student, ticket.ID)
	require.NoError(t, err)
	assert.True(t, first.Equal(*detail.FirstResponseAt), "first response is stamped once")
}

func TestSupport_RequesterReplyReopensPendingTicket(t *testing.T) {
	ctx := context.Background()
	f := newSupportFixture(fixedNow)
	ticket := f.open(t, sla.PriorityLow)

	_, err := f.svc.UpdateStatus(ctx, instructor, &model.UpdateTicketStatusPayload{ID: ticket.ID, Status: model.TicketPending})
	require.NoError(t, err)

	_, err = f.svc.Reply(ctx, student, &model.ReplyTicketPayload{ID: ticket.ID, Body: "Still broken."})
	require.NoError(t, err)

	detail, err := f.svc.Get(ctx, student, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketOpen, detail.Status)
	assert.Nil(t, detail.FirstResponseAt, "a student reply is not a first response")
	assert.False(t, detail.Replies[0].IsStaff)
}

func TestSupport_StatusWorkflow(t *testing.T) {
	ctx := context.Background()
	f := newSupportFixture(fixedNow.Add(time.Hour))
	ticket := f.open(t, sla.PriorityMedium)

	resolved, err := f.svc.UpdateStatus(ctx, instructor, &model.UpdateTicketStatusPayload{ID: ticket.ID, Status: model.TicketResolved})
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)
	assert.True(t, resolved.SLA.Resolution.Met)

	reopened, err := f.svc.UpdateStatus(ctx, student, &model.UpdateTicketStatusPayload{ID: ticket.ID, Status: model.TicketOpen})
	require.NoError(t, err)
	assert.Nil(t, reopened.ResolvedAt)

	_, err = f.svc.UpdateStatus(ctx, instructor, &model.UpdateTicketStatusPayload{ID: ticket.ID, Status: model.TicketClosed})
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, instructor, &model.UpdateTicketStatusPayload{ID: ticket.ID, Status: model.TicketOpen})
	assert.Equal(t, http.StatusConflict, errs.StatusOf(err))
	assert.Equal(t, model.CodeInvalidTransition, errs.CodeOf(err))

	_, err = f.svc.Reply(ctx, student, &model.ReplyTicketPayload{ID: ticket.ID, Body: "hello?"})
	assert.Equal(t, http.StatusConflict, errs.StatusOf(err))
}

func TestSupport_RequesterCanOnlyReopenOrClose(t *testing.T) {
	ctx := context.Background()
	f := newSupportFixture(fixedNow.Add(time.Hour))
	ticket := f.open(t, sla.PriorityHigh)

	for _, status := range []model.TicketStatus{model.TicketResolved, model.TicketPending} {
		_, err := f.svc.UpdateStatus(ctx, student, &model.UpdateTicketStatusPayload{ID: ticket.ID, Status: status})
		require.Error(t, err, status)
		assert.Equal(t, http.StatusForbidden, errs.StatusOf(err), status)
	}

	detail, err := f.svc.Get(ctx, student, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketOpen, detail.Status)
	assert.Nil(t, detail.ResolvedAt, "the resolution clock keeps running")

	closed, err := f.svc.UpdateStatus(ctx, student, &model.UpdateTicketStatusPayload{ID: ticket.ID, Status: model.TicketClosed})
	require.NoError(t, err)
	assert.Equal(t, model.TicketClosed, closed.Status)
}

func TestSupport_StudentsOnlySeeTheirTickets(t *testing.T) {
	ctx := context.Background()
	f := newSupportFixture(fixedNow)
	ticket := f.open(t, sla.PriorityLow)

	other := model.Actor{TenantID: tenant, UserID: "user_other", Role: model.OrgRoleMember}
	_, err := f.svc.Get(ctx, other, ticket.ID)
	assert.True(t, sqlerr.IsNotFound(err))

	q := &model.ListTicketsQuery{RequesterID: student.UserID}
	page, err := f.svc.List(ctx, other, q)
	require.NoError(t, err)
	assert.Empty(t, page.Data, "requester filter is forced to the caller")

	page, err = f.svc.List(ctx, instructor, &model.ListTicketsQuery{})
	require.NoError(t, err)
	assert.Len(t, page.Data, 1)
}

func TestSupport_Assign(t *testing.T) {
	ctx := context.Background()
	f := newSupportFixture(fixedNow)
	ticket := f.open(t, sla.PriorityHigh)

	_, err := f.svc.Assign(ctx, admin, &model.AssignTicketPayload{ID: ticket.ID, AssigneeID: student.UserID})
	assert.Equal(t, CodeInvalidAssignee, errs.CodeOf(err))

	_, err = f.svc.Assign(ctx, admin, &model.AssignTicketPayload{ID: ticket.ID, AssigneeID: "user_ghost"})
	assert.Equal(t, http.StatusBadRequest, errs.StatusOf(err))

	assigned, err := f.svc.Assign(ctx, admin, &model.AssignTicketPayload{ID: ticket.ID, AssigneeID: instructor.UserID})
	require.NoError(t, err)
	require.NotNil(t, assigned.AssigneeID)
	assert.Equal(t, instructor.UserID, *assigned.AssigneeID)
}

func TestSupport_SLASweepAlertsOnce(t *testing.T) {
	ctx := context.Background()
	f := newSupportFixture(fixedNow)
	breached := f.open(t, sla.PriorityMedium)
	f.open(t, sla.PriorityLow)

	f.svc.now = clockAt(fixedNow.Add(10 * time.Hour))
	require.NoError(t, f.svc.HandleSLASweepTask(ctx, nil))

	require.Equal(t, []string{string(email.TemplateSLABreach)}, f.mailer.templates())
	assert.Equal(t, "support@school.example.com", f.mailer.sent[0].To)
	assert.Equal(t, breached.ID, f.mailer.sent[0].Data["TicketID"])
	assert.Equal(t, "first_response", f.mailer.sent[0].Data["Clocks"])
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SLABreaches.WithLabelValues("medium", "first_response")))

	require.NoError(t, f.svc.HandleSLASweepTask(ctx, nil))
	assert.Len(t, f.mailer.sent, 1, "a ticket raises a single alert")
}
