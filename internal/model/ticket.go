package model

import (
	"strings"
	"time"

	"github.com/deppfellow/schoolhub/internal/lib/sla"
	"github.com/deppfellow/schoolhub/internal/validation"
)

type TicketStatus string

const (
	TicketOpen     TicketStatus = "open"
	TicketPending  TicketStatus = "pending"
	TicketResolved TicketStatus = "resolved"
	TicketClosed   TicketStatus = "closed"
)

var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketOpen:     {TicketPending, TicketResolved, TicketClosed},
	TicketPending:  {TicketOpen, TicketResolved, TicketClosed},
	TicketResolved: {TicketOpen, TicketClosed},
}

// CanTransitionTo reports whether a ticket may move from s to next.
// Closed tickets never change.
func (s TicketStatus) CanTransitionTo(next TicketStatus) bool {
	for _, allowed := range ticketTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CodeInvalidTransition is returned for a status change the workflow does not allow.
const CodeInvalidTransition = "INVALID_STATUS_TRANSITION"

type Ticket struct {
	Base
	TenantID        string       `json:"-" db:"tenant_id"`
	RequesterID     string       `json:"requester_id" db:"requester_id"`
	Subject         string       `json:"subject" db:"subject"`
	Body            string       `json:"body" db:"body"`
	Priority        sla.Priority `json:"priority" db:"priority"`
	Status          TicketStatus `json:"status" db:"status"`
	AssigneeID      *string      `json:"assignee_id" db:"assignee_id"`
	FirstResponseAt *time.Time   `json:"first_response_at" db:"first_response_at"`
	ResolvedAt      *time.Time   `json:"resolved_at" db:"resolved_at"`
	SLAAlertedAt    *time.Time   `json:"sla_alerted_at,omitempty" db:"sla_alerted_at"`
}

// SLATicket is the view of t used for deadline arithmetic.
func (t *Ticket) SLATicket() sla.Ticket {
	return sla.Ticket{
		Priority:        t.Priority,
		CreatedAt:       t.CreatedAt,
		FirstResponseAt: t.FirstResponseAt,
		ResolvedAt:      t.ResolvedAt,
	}
}

type TicketReply struct {
	ID        string    `json:"id" db:"id"`
	TicketID  string    `json:"ticket_id" db:"ticket_id"`
	TenantID  string    `json:"-" db:"tenant_id"`
	AuthorID  string    `json:"author_id" db:"author_id"`
	Body      string    `json:"body" db:"body"`
	IsStaff   bool      `json:"is_staff" db:"is_staff"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TicketDetail is a ticket with its conversation and SLA state.
type TicketDetail struct {
	Ticket
	Replies []TicketReply `json:"replies"`
	SLA     sla.Report    `json:"sla"`
}

// TicketWithSLA is a list entry.
type TicketWithSLA struct {
	Ticket
	SLA sla.Report `json:"sla"`
}

// ------------------------------------------------------------

type CreateTicketPayload struct {
	Subject  string        `json:"subject" validate:"required,min=5,max=200"`
	Body     string        `json:"body" validate:"required,min=1,max=10000"`
	Priority *sla.Priority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
}

func (p *CreateTicketPayload) Validate() error {
	p.Subject = strings.TrimSpace(p.Subject)
	p.Body = strings.TrimSpace(p.Body)
	return validation.Struct(p)
}

// PriorityOrDefault is the requested priority, medium when none was given.
func (p *CreateTicketPayload) PriorityOrDefault() sla.Priority {
	if p.Priority == nil {
		return sla.PriorityMedium
	}
	return *p.Priority
}

type ReplyTicketPayload struct {
	ID   string `param:"id" validate:"required,uuid"`
	Body string `json:"body" validate:"required,min=1,max=10000"`
}

func (p *ReplyTicketPayload) Validate() error {
	p.Body = strings.TrimSpace(p.Body)
	return validation.Struct(p)
}

type UpdateTicketStatusPayload struct {
	ID     string       `param:"id" validate:"required,uuid"`
	Status TicketStatus `json:"status" validate:"required,oneof=open pending resolved closed"`
}

func (p *UpdateTicketStatusPayload) Validate() error {
	return validation.Struct(p)
}

type AssignTicketPayload struct {
	ID         string `param:"id" validate:"required,uuid"`
	AssigneeID string `json:"assignee_id" validate:"required,max=64"`
}

func (p *AssignTicketPayload) Validate() error {
	return validation.Struct(p)
}

type ListTicketsQuery struct {
	Pagination
	Status      string `query:"status" validate:"omitempty,oneof=open pending resolved closed"`
	Priority    string `query:"priority" validate:"omitempty,oneof=low medium high urgent"`
	RequesterID string `query:"requester_id" validate:"omitempty,max=64"`
}

func (q *ListTicketsQuery) Validate() error {
	return validation.Struct(q)
}
