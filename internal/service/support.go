package service

import (
	"context"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/deppfellow/schoolhub/internal/errs"
	"github.com/deppfellow/schoolhub/internal/lib/email"
	"github.com/deppfellow/schoolhub/internal/lib/metrics"
	"github.com/deppfellow/schoolhub/internal/lib/sla"
	"github.com/deppfellow/schoolhub/internal/logger"
	"github.com/deppfellow/schoolhub/internal/model"
	"github.com/deppfellow/schoolhub/internal/sqlerr"
)

// CodeInvalidAssignee rejects assigning a ticket to a non-staff user.
const CodeInvalidAssignee = "INVALID_ASSIGNEE"

type TicketStore interface {
	Create(ctx context.Context, t *model.Ticket) (*model.Ticket, error)
	GetByID(ctx context.Context, tenantID, id string) (*model.Ticket, error)
	List(ctx context.Context, tenantID string, q *model.ListTicketsQuery) ([]model.Ticket, int, error)
	Save(ctx context.Context, t *model.Ticket) (*model.Ticket, error)
	AddReply(ctx context.Context, reply *model.TicketReply) (*model.TicketReply, error)
	ListReplies(ctx context.Context, tenantID, ticketID string) ([]model.TicketReply, error)
	ListUnalerted(ctx context.Context) ([]model.Ticket, error)
	ClaimSLAAlert(ctx context.Context, id string, at time.Time) (bool, error)
}

// SupportService runs the ticket workflow and watches SLA deadlines.
type SupportService struct {
	tx          TxRunner
	store       TicketStore
	users       UserReader
	policy      *sla.Policy
	effects     sideEffects
	metrics     *metrics.Metrics
	logger      *zerolog.Logger
	teamEmail   string
	frontendURL string
	now         Clock
}

type SupportDeps struct {
	Tx          TxRunner
	Tickets     TicketStore
	Users       UserReader
	Policy      *sla.Policy
	Mailer      Mailer
	Notifier    Notifier
	Metrics     *metrics.Metrics
	Logger      *zerolog.Logger
	TeamEmail   string
	FrontendURL string
}

func NewSupportService(d SupportDeps) *SupportService {
	policy := d.Policy
	if policy == nil {
		policy = sla.DefaultPolicy()
	}
	return &SupportService{
		tx:          d.Tx,
		store:       d.Tickets,
		users:       d.Users,
		policy:      policy,
		effects:     sideEffects{mailer: d.Mailer, notifier: d.Notifier, logger: d.Logger},
		metrics:     d.Metrics,
		logger:      d.Logger,
		teamEmail:   d.TeamEmail,
		frontendURL: d.FrontendURL,
		now:         utcNow,
	}
}

func (s *SupportService) Create(ctx context.Context, actor model.Actor, p *model.CreateTicketPayload) (*model.TicketWithSLA, error) {
	t, err := s.store.Create(ctx, &model.Ticket{
		TenantID:    actor.TenantID,
		RequesterID: actor.UserID,
		Subject:     p.Subject,
		Body:        p.Body,
		Priority:    p.PriorityOrDefault(),
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, s.logger).Info().
		Str("ticket_id", t.ID).
		Str("priority", string(t.Priority)).
		Msg("support ticket opened")

	return s.withSLA(t)
}

func (s *SupportService) withSLA(t *model.Ticket) (*model.TicketWithSLA, error) {
	report, err := s.policy.ForTicket(t.SLATicket(), s.now())
	if err != nil {
		return nil, err
	}
	return &model.TicketWithSLA{Ticket: *t, SLA: report}, nil
}

// visible loads a ticket the actor may see: staff see every ticket of the
// tenant, students only their own.
func (s *SupportService) visible(ctx context.Context, actor model.Actor, id string) (*model.Ticket, error) {
	t, err := s.store.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && t.RequesterID != actor.UserID {
		return nil, sqlerr.NotFound("tickets")
	}
	return t, nil
}

func (s *SupportService) List(ctx context.Context, actor model.Actor, q *model.ListTicketsQuery) (*model.PaginatedResponse[model.TicketWithSLA], error) {
	if !actor.IsStaff() {
		q.RequesterID = actor.UserID
	}

	tickets, total, err := s.store.List(ctx, actor.TenantID, q)
	if err != nil {
		return nil, err
	}

	items := make([]model.TicketWithSLA, 0, len(tickets))
	for i := range tickets {
		item, err := s.withSLA(&tickets[i])
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return model.NewPage(items, q.Pagination, total), nil
}

func (s *SupportService) Get(ctx context.Context, actor model.Actor, id string) (*model.TicketDetail, error) {
	t, err := s.visible(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	replies, err := s.store.ListReplies(ctx, actor.TenantID, t.ID)
	if err != nil {
		return nil, err
	}
	if replies == nil {
		replies = []model.TicketReply{}
	}

	report, err := s.policy.ForTicket(t.SLATicket(), s.now())
	if err != nil {
		return nil, err
	}
	return &model.TicketDetail{Ticket: *t, Replies: replies, SLA: report}, nil
}

// Reply adds a message to the conversation. The first staff reply stops
// the first response clock; a requester answering a pending ticket puts
// it back in the open queue.
func (s *SupportService) Reply(ctx context.Context, actor model.Actor, p *model.ReplyTicketPayload) (*model.TicketReply, error) {
	t, err := s.visible(ctx, actor, p.ID)
	if err != nil {
		return nil, err
	}
	if t.Status == model.TicketClosed {
		return nil, errs.NewConflictError("Closed tickets cannot receive replies", true, errs.Code(model.CodeInvalidTransition))
	}

	isStaff := actor.IsStaff() && actor.UserID != t.RequesterID

	var reply *model.TicketReply
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		reply, err = s.store.AddReply(ctx, &model.TicketReply{
			TicketID: t.ID,
			TenantID: t.TenantID,
			AuthorID: actor.UserID,
			Body:     p.Body,
			IsStaff:  isStaff,
		})
		if err != nil {
			return err
		}

		changed := false
		if isStaff && t.FirstResponseAt == nil {
			now := s.now()
			t.FirstResponseAt = &now
			changed = true
		}
		if !isStaff && actor.UserID == t.RequesterID && t.Status == model.TicketPending {
			t.Status = model.TicketOpen
			changed = true
		}
		if !changed {
			return nil
		}

		t, err = s.store.Save(ctx, t)
		return err
	})
	if err != nil {
		return nil, err
	}

	if isStaff {
		s.tellRequester(ctx, t, "A staff member replied", reply.Body)
	}
	return reply, nil
}

// UpdateStatus moves the ticket through the workflow. Resolving stamps
// resolved_at and reopening clears it. Requesters may only reopen or
// close their own tickets.
func (s *SupportService) UpdateStatus(ctx context.Context, actor model.Actor, p *model.UpdateTicketStatusPayload) (*model.TicketWithSLA, error) {
	t, err := s.visible(ctx, actor, p.ID)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && p.Status != model.TicketOpen && p.Status != model.TicketClosed {
		return nil, errs.NewForbiddenError("Only support staff can mark a ticket as "+string(p.Status), true)
	}
	if !t.Status.CanTransitionTo(p.Status) {
		return nil, errs.NewConflictError(
			"A "+string(t.Status)+" ticket cannot become "+string(p.Status),
			true,
			errs.Code(model.CodeInvalidTransition),
		)
	}

	from := t.Status
	t.Status = p.Status
	switch p.Status {
	case model.TicketResolved:
		now := s.now()
		t.ResolvedAt = &now
	case model.TicketOpen:
		t.ResolvedAt = nil
	}

	saved, err := s.store.Save(ctx, t)
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, s.logger).Info().
		Str("ticket_id", saved.ID).
		Str("from", string(from)).
		Str("to", string(saved.Status)).
		Msg("ticket status changed")

	if actor.UserID != saved.RequesterID {
		s.tellRequester(ctx, saved, "Your ticket is now "+string(saved.Status), "")
	}
	return s.withSLA(saved)
}

// Assign hands the ticket to a staff member of the school.
func (s *SupportService) Assign(ctx context.Context, actor model.Actor, p *model.AssignTicketPayload) (*model.TicketWithSLA, error) {
	t, err := s.visible(ctx, actor, p.ID)
	if err != nil {
		return nil, err
	}
	if t.Status == model.TicketClosed {
		return nil, errs.NewConflictError("Closed tickets cannot be reassigned", true, errs.Code(model.CodeInvalidTransition))
	}

	assignee, err := s.users.GetByID(ctx, actor.TenantID, p.AssigneeID)
	if err != nil {
		if sqlerr.IsNotFound(err) {
			return nil, errs.FieldValidationError("assignee_id", "does not exist")
		}
		return nil, err
	}
	if assignee.Role == model.UserRoleStudent || assignee.Status != model.UserStatusActive {
		return nil, errs.NewBadRequestError("Tickets can only be assigned to active staff", true, errs.Code(CodeInvalidAssignee), []errs.FieldError{
			{Field: "assignee_id", Error: "must be an active instructor or admin"},
		}, nil)
	}

	t.AssigneeID = &assignee.ID
	saved, err := s.store.Save(ctx, t)
	if err != nil {
		return nil, err
	}
	return s.withSLA(saved)
}

// tellRequester notifies the requester in the inbox and by email.
func (s *SupportService) tellRequester(ctx context.Context, t *model.Ticket, headline, reply string) {
	link := "/support/tickets/" + t.ID
	s.effects.notify(ctx, t.TenantID, model.NewNotification{
		UserID: t.RequesterID,
		Kind:   model.NotificationTicket,
		Title:  headline,
		Body:   t.Subject,
		Link:   link,
	})

	requester, err := s.users.GetByID(ctx, t.TenantID, t.RequesterID)
	if err != nil {
		logger.FromContext(ctx, s.logger).Warn().Err(err).Str("user_id", t.RequesterID).Msg("no profile to send the ticket update to")
		return
	}
	s.effects.mail(ctx, t.TenantID, model.OutgoingEmail{
		UserID:   &requester.ID,
		To:       requester.Email,
		Template: email.TemplateTicketUpdate,
		Data: map[string]any{
			"FirstName": requester.FirstName(),
			"Subject":   t.Subject,
			"Headline":  headline,
			"Reply":     reply,
			"Status":    string(t.Status),
			"TicketURL": s.frontendURL + link,
		},
	})
}

// HandleSLASweepTask is the support:sla_sweep worker. A ticket raises at
// most one alert, claimed through sla_alerted_at.
func (s *SupportService) HandleSLASweepTask(ctx context.Context, _ *asynq.Task) error {
	tickets, err := s.store.ListUnalerted(ctx)
	if err != nil {
		return err
	}

	log := logger.FromContext(ctx, s.logger)
	now := s.now()
	alerted := 0

	for i := range tickets {
		t := &tickets[i]

		report, err := s.policy.ForTicket(t.SLATicket(), now)
		if err != nil {
			log.Error().Err(err).Str("ticket_id", t.ID).Msg("failed to evaluate ticket SLA")
			continue
		}
		breaches := report.Breaches()
		if len(breaches) == 0 {
			continue
		}

		claimed, err := s.store.ClaimSLAAlert(ctx, t.ID, now)
		if err != nil {
			return err
		}
		if !claimed {
			continue
		}
		alerted++

		clocks := make([]string, 0, len(breaches))
		for _, c := range breaches {
			clocks = append(clocks, string(c))
			s.metrics.SLABreaches.WithLabelValues(string(t.Priority), string(c)).Inc()
		}

		log.Warn().
			Str("ticket_id", t.ID).
			Str("tenant_id", t.TenantID).
			Str("priority", string(t.Priority)).
			Strs("clocks", clocks).
			Msg("support ticket breached its SLA")

		if s.teamEmail == "" {
			continue
		}
		s.effects.mail(ctx, t.TenantID, model.OutgoingEmail{
			To:       s.teamEmail,
			Template: email.TemplateSLABreach,
			Data: map[string]any{
				"TicketID":  t.ID,
				"Subject":   t.Subject,
				"Priority":  string(t.Priority),
				"Clocks":    strings.Join(clocks, ", "),
				"CreatedAt": t.CreatedAt,
			},
		})
	}

	log.Info().Int("checked", len(tickets)).Int("alerted", alerted).Msg("sla sweep finished")
	return nil
}
