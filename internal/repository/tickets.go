package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/deppfellow/schoolhub/internal/model"
)

type TicketRepository struct {
	store
}

func (r *TicketRepository) Create(ctx context.Context, t *model.Ticket) (*model.Ticket, error) {
	stmt := `
		INSERT INTO tickets (id, tenant_id, requester_id, subject, body, priority)
		VALUES (@id, @tenant_id, @requester_id, @subject, @body, @priority)
		RETURNING *
	`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{
		"id":           uuid.NewString(),
		"tenant_id":    t.TenantID,
		"requester_id": t.RequesterID,
		"subject":      t.Subject,
		"body":         t.Body,
		"priority":     t.Priority,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute create ticket query for requester_id=%s: %w", t.RequesterID, err)
	}

	return collectOne[model.Ticket](rows, "tickets")
}

func (r *TicketRepository) GetByID(ctx context.Context, tenantID, id string) (*model.Ticket, error) {
	stmt := `SELECT * FROM tickets WHERE tenant_id = @tenant_id AND id = @id`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{"tenant_id": tenantID, "id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to execute get ticket query for ticket_id=%s: %w", id, err)
	}

	return collectOne[model.Ticket](rows, "tickets")
}

func ticketFilter(tenantID string, q *model.ListTicketsQuery) sq.SelectBuilder {
	b := psql.Select().From("tickets").Where(sq.Eq{"tenant_id": tenantID})
	if q.Status != "" {
		b = b.Where(sq.Eq{"status": q.Status})
	}
	if q.Priority != "" {
		b = b.Where(sq.Eq{"priority": q.Priority})
	}
	if q.RequesterID != "" {
		b = b.Where(sq.Eq{"requester_id": q.RequesterID})
	}
	return b
}

// List filters by q; the caller sets q.RequesterID for non-staff users.
func (r *TicketRepository) List(ctx context.Context, tenantID string, q *model.ListTicketsQuery) ([]model.Ticket, int, error) {
	return selectPage[model.Ticket](ctx, r.db(ctx), "tickets", "*", ticketFilter(tenantID, q), "created_at DESC, id", q.Pagination)
}

// Save writes the workflow fields of t. first_response_at is only ever
// set once.
func (r *TicketRepository) Save(ctx context.Context, t *model.Ticket) (*model.Ticket, error) {
	stmt := `
		UPDATE tickets
		SET status = @status,
			assignee_id = @assignee_id,
			first_response_at = COALESCE(first_response_at, @first_response_at),
			resolved_at = @resolved_at,
			updated_at = now()
		WHERE tenant_id = @tenant_id AND id = @id
		RETURNING *
	`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{
		"tenant_id":         t.TenantID,
		"id":                t.ID,
		"status":            t.Status,
		"assignee_id":       t.AssigneeID,
		"first_response_at": t.FirstResponseAt,
		"resolved_at":       t.ResolvedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute save ticket query for ticket_id=%s: %w", t.ID, err)
	}

	return collectOne[model.Ticket](rows, "tickets")
}

func (r *TicketRepository) AddReply(ctx context.Context, reply *model.TicketReply) (*model.TicketReply, error) {
	stmt := `
		INSERT INTO ticket_replies (id, ticket_id, tenant_id, author_id, body, is_staff)
		VALUES (@id, @ticket_id, @tenant_id, @author_id, @body, @is_staff)
		RETURNING *
	`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{
		"id":        uuid.NewString(),
		"ticket_id": reply.TicketID,
		"tenant_id": reply.TenantID,
		"author_id": reply.AuthorID,
		"body":      reply.Body,
		"is_staff":  reply.IsStaff,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute add reply query for ticket_id=%s: %w", reply.TicketID, err)
	}

	return collectOne[model.TicketReply](rows, "ticket_replies")
}

func (r *TicketRepository) ListReplies(ctx context.Context, tenantID, ticketID string) ([]model.TicketReply, error) {
	stmt := `
		SELECT * FROM ticket_replies
		WHERE tenant_id = @tenant_id AND ticket_id = @ticket_id
		ORDER BY created_at, id
	`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{"tenant_id": tenantID, "ticket_id": ticketID})
	if err != nil {
		return nil, fmt.Errorf("failed to execute list replies query for ticket_id=%s: %w", ticketID, err)
	}

	return collectAll[model.TicketReply](rows, "ticket_replies")
}

// ListUnalerted returns, across tenants, the open and pending tickets that
// have not raised an SLA alert yet.
func (r *TicketRepository) ListUnalerted(ctx context.Context) ([]model.Ticket, error) {
	stmt := `
		SELECT * FROM tickets
		WHERE status IN ('open', 'pending') AND sla_alerted_at IS NULL
		ORDER BY created_at
	`

	rows, err := r.db(ctx).Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to execute unalerted tickets query: %w", err)
	}

	return collectAll[model.Ticket](rows, "tickets")
}

// ClaimSLAAlert stamps sla_alerted_at and reports whether this call set it.
func (r *TicketRepository) ClaimSLAAlert(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.db(ctx).Exec(ctx, `
		UPDATE tickets SET sla_alerted_at = @at
		WHERE id = @id AND sla_alerted_at IS NULL
	`, pgx.NamedArgs{"id": id, "at": at})
	if err != nil {
		return false, fmt.Errorf("failed to claim sla alert for ticket_id=%s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}
