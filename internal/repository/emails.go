package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/deppfellow/schoolhub/internal/lib/email"
	"github.com/deppfellow/schoolhub/internal/model"
	"github.com/deppfellow/schoolhub/internal/sqlerr"
)

type EmailRepository struct {
	store
}

// GetPreferences returns the saved opt-ins, or the defaults for users who
// never changed them.
func (r *EmailRepository) GetPreferences(ctx context.Context, tenantID, userID string) (email.Preferences, error) {
	stmt := `
		SELECT marketing, course_updates, live_class_reminders, support_updates
		FROM notification_preferences
		WHERE tenant_id = @tenant_id AND user_id = @user_id
	`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{"tenant_id": tenantID, "user_id": userID})
	if err != nil {
		return email.Preferences{}, fmt.Errorf("failed to execute get preferences query for user_id=%s: %w", userID, err)
	}

	prefs, err := collectOne[email.Preferences](rows, "notification_preferences")
	if err != nil {
		if sqlerr.IsNotFound(err) {
			return email.DefaultPreferences(), nil
		}
		return email.Preferences{}, err
	}
	return *prefs, nil
}

func (r *EmailRepository) SavePreferences(ctx context.Context, tenantID, userID string, prefs email.Preferences) (email.Preferences, error) {
	stmt := `
		INSERT INTO notification_preferences (tenant_id, user_id, marketing, course_updates, live_class_reminders, support_updates)
		VALUES (@tenant_id, @user_id, @marketing, @course_updates, @live_class_reminders, @support_updates)
		ON CONFLICT (tenant_id, user_id) DO UPDATE
		SET marketing = EXCLUDED.marketing,
			course_updates = EXCLUDED.course_updates,
			live_class_reminders = EXCLUDED.live_class_reminders,
			support_updates = EXCLUDED.support_updates,
			updated_at = now()
		RETURNING marketing, course_updates, live_class_reminders, support_updates
	`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{
		"tenant_id":            tenantID,
		"user_id":              userID,
		"marketing":            prefs.Marketing,
		"course_updates":       prefs.CourseUpdates,
		"live_class_reminders": prefs.LiveClassReminders,
		"support_updates":      prefs.SupportUpdates,
	})
	if err != nil {
		return email.Preferences{}, fmt.Errorf("failed to execute save preferences query for user_id=%s: %w", userID, err)
	}

	saved, err := collectOne[email.Preferences](rows, "notification_preferences")
	if err != nil {
		return email.Preferences{}, err
	}
	return *saved, nil
}

// DisableMarketing opts the user out of marketing, keeping other choices.
func (r *EmailRepository) DisableMarketing(ctx context.Context, tenantID, userID string) error {
	def := email.DefaultPreferences()

	_, err := r.db(ctx).Exec(ctx, `
		INSERT INTO notification_preferences (tenant_id, user_id, marketing, course_updates, live_class_reminders, support_updates)
		VALUES (@tenant_id, @user_id, FALSE, @course_updates, @live_class_reminders, @support_updates)
		ON CONFLICT (tenant_id, user_id) DO UPDATE SET marketing = FALSE, updated_at = now()
	`, pgx.NamedArgs{
		"tenant_id":            tenantID,
		"user_id":              userID,
		"course_updates":       def.CourseUpdates,
		"live_class_reminders": def.LiveClassReminders,
		"support_updates":      def.SupportUpdates,
	})
	if err != nil {
		return fmt.Errorf("failed to disable marketing for user_id=%s: %w", userID, err)
	}
	return nil
}

// ------------------------------------------------------------

func (r *EmailRepository) CreateMessage(ctx context.Context, m *model.EmailMessage) (*model.EmailMessage, error) {
	stmt := `
		INSERT INTO email_messages (id, tenant_id, user_id, to_address, category, template, subject, data, status)
		VALUES (@id, @tenant_id, @user_id, @to_address, @category, @template, @subject, @data, @status)
		RETURNING *
	`

	data := m.Data
	if data == nil {
		data = map[string]any{}
	}

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{
		"id":         uuid.NewString(),
		"tenant_id":  m.TenantID,
		"user_id":    m.UserID,
		"to_address": m.ToAddress,
		"category":   m.Category,
		"template":   m.Template,
		"subject":    m.Subject,
		"data":       data,
		"status":     m.Status,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute create email message query for template=%s: %w", m.Template, err)
	}

	return collectOne[model.EmailMessage](rows, "email_messages")
}

func (r *EmailRepository) GetMessage(ctx context.Context, tenantID, id string) (*model.EmailMessage, error) {
	stmt := `SELECT * FROM email_messages WHERE tenant_id = @tenant_id AND id = @id`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{"tenant_id": tenantID, "id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to execute get email message query for id=%s: %w", id, err)
	}

	return collectOne[model.EmailMessage](rows, "email_messages")
}

// GetByProviderID finds the message a provider webhook refers to.
func (r *EmailRepository) GetByProviderID(ctx context.Context, providerID string) (*model.EmailMessage, error) {
	stmt := `SELECT * FROM email_messages WHERE provider_message_id = @provider_id`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{"provider_id": providerID})
	if err != nil {
		return nil, fmt.Errorf("failed to execute get email message query for provider_id=%s: %w", providerID, err)
	}

	return collectOne[model.EmailMessage](rows, "email_messages")
}

// MarkSent records a successful hand-off to the provider. Only queued
// messages move to sent, so a retried task never rewinds a later status.
func (r *EmailRepository) MarkSent(ctx context.Context, id, providerID string, at time.Time) error {
	_, err := r.db(ctx).Exec(ctx, `
		UPDATE email_messages
		SET status = 'sent', provider_message_id = @provider_id, sent_at = @at,
			attempts = attempts + 1, last_error = NULL, updated_at = now()
		WHERE id = @id AND status = 'queued'
	`, pgx.NamedArgs{"id": id, "provider_id": providerID, "at": at})
	if err != nil {
		return fmt.Errorf("failed to mark email id=%s sent: %w", id, err)
	}
	return nil
}

// RecordFailure counts a failed attempt; final marks the message failed.
func (r *EmailRepository) RecordFailure(ctx context.Context, id, reason string, final bool) error {
	_, err := r.db(ctx).Exec(ctx, `
		UPDATE email_messages
		SET attempts = attempts + 1,
			last_error = @reason,
			status = CASE WHEN @final::bool THEN 'failed' ELSE status END,
			updated_at = now()
		WHERE id = @id AND status = 'queued'
	`, pgx.NamedArgs{"id": id, "reason": reason, "final": final})
	if err != nil {
		return fmt.Errorf("failed to record failure for email id=%s: %w", id, err)
	}
	return nil
}

// statusTimestamp is the column stamped when a message reaches the status.
var statusTimestamp = map[email.Status]string{
	email.StatusSent:       "sent_at",
	email.StatusDelivered:  "delivered_at",
	email.StatusOpened:     "opened_at",
	email.StatusClicked:    "clicked_at",
	email.StatusBounced:    "bounced_at",
	email.StatusComplained: "bounced_at",
}

func advanceStatement(id string, from, to email.Status, at time.Time) sq.UpdateBuilder {
	b := psql.Update("email_messages").
		Set("status", to).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id, "status": from})
	if col, ok := statusTimestamp[to]; ok {
		b = b.Set(col, sq.Expr("COALESCE("+col+", ?)", at))
	}
	return b
}

// Advance moves a message from `from` to `to` and stamps the matching
// timestamp. It reports false when the message changed in the meantime.
func (r *EmailRepository) Advance(ctx context.Context, id string, from, to email.Status, at time.Time) (bool, error) {
	stmt, args, err := advanceStatement(id, from, to, at).ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build advance email query: %w", err)
	}

	tag, err := r.db(ctx).Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("failed to advance email id=%s to %s: %w", id, to, err)
	}
	return tag.RowsAffected() == 1, nil
}

func emailFilter(tenantID string, q *model.ListEmailsQuery) sq.SelectBuilder {
	b := psql.Select().From("email_messages").Where(sq.Eq{"tenant_id": tenantID})
	if q.Status != "" {
		b = b.Where(sq.Eq{"status": q.Status})
	}
	if q.Template != "" {
		b = b.Where(sq.Eq{"template": q.Template})
	}
	if q.UserID != "" {
		b = b.Where(sq.Eq{"user_id": q.UserID})
	}
	return b
}

func (r *EmailRepository) List(ctx context.Context, tenantID string, q *model.ListEmailsQuery) ([]model.EmailMessage, int, error) {
	return selectPage[model.EmailMessage](ctx, r.db(ctx), "email_messages", "*", emailFilter(tenantID, q), "queued_at DESC, id", q.Pagination)
}

func statusCountsQuery(tenantID string, q *model.EmailAnalyticsQuery) sq.SelectBuilder {
	b := psql.Select("status", "COUNT(*)").
		From("email_messages").
		Where(sq.Eq{"tenant_id": tenantID}).
		GroupBy("status")
	if !q.From.IsZero() {
		b = b.Where(sq.GtOrEq{"queued_at": q.From})
	}
	if !q.To.IsZero() {
		b = b.Where(sq.Lt{"queued_at": q.To})
	}
	if q.Template != "" {
		b = b.Where(sq.Eq{"template": q.Template})
	}
	return b
}

// StatusCounts counts messages per status for the analytics report.
func (r *EmailRepository) StatusCounts(ctx context.Context, tenantID string, q *model.EmailAnalyticsQuery) (map[email.Status]int64, error) {
	stmt, args, err := statusCountsQuery(tenantID, q).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build email status counts query: %w", err)
	}

	rows, err := r.db(ctx).Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute email status counts query: %w", err)
	}
	defer rows.Close()

	counts := make(map[email.Status]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan email status count: %w", err)
		}
		counts[email.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate email status counts: %w", err)
	}

	return counts, nil
}
