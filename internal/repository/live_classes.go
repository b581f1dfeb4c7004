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

type LiveClassRepository struct {
	store
}

func (r *LiveClassRepository) Create(ctx context.Context, l *model.LiveClass) (*model.LiveClass, error) {
	stmt := `
		INSERT INTO live_classes (
			id, tenant_id, course_id, title, provider, meeting_id, join_url, passcode, starts_at, duration_minutes
		)
		VALUES (
			@id, @tenant_id, @course_id, @title, @provider, @meeting_id, @join_url, @passcode, @starts_at, @duration_minutes
		)
		RETURNING *
	`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{
		"id":               uuid.NewString(),
		"tenant_id":        l.TenantID,
		"course_id":        l.CourseID,
		"title":            l.Title,
		"provider":         l.Provider,
		"meeting_id":       l.MeetingID,
		"join_url":         l.JoinURL,
		"passcode":         l.Passcode,
		"starts_at":        l.StartsAt,
		"duration_minutes": l.DurationMinutes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute create live class query for course_id=%s: %w", l.CourseID, err)
	}

	return collectOne[model.LiveClass](rows, "live_classes")
}

func (r *LiveClassRepository) GetByID(ctx context.Context, tenantID, id string) (*model.LiveClass, error) {
	stmt := `SELECT * FROM live_classes WHERE tenant_id = @tenant_id AND id = @id`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{"tenant_id": tenantID, "id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to execute get live class query for live_class_id=%s: %w", id, err)
	}

	return collectOne[model.LiveClass](rows, "live_classes")
}

// Update writes the schedule and meeting fields. A rescheduled class gets
// a fresh reminder.
func (r *LiveClassRepository) Update(ctx context.Context, l *model.LiveClass) (*model.LiveClass, error) {
	stmt := `
		UPDATE live_classes
		SET title = @title,
			provider = @provider,
			meeting_id = @meeting_id,
			join_url = @join_url,
			passcode = @passcode,
			reminder_sent_at = CASE WHEN starts_at <> @starts_at THEN NULL ELSE reminder_sent_at END,
			starts_at = @starts_at,
			duration_minutes = @duration_minutes,
			updated_at = now()
		WHERE tenant_id = @tenant_id AND id = @id AND status = 'scheduled'
		RETURNING *
	`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{
		"tenant_id":        l.TenantID,
		"id":               l.ID,
		"title":            l.Title,
		"provider":         l.Provider,
		"meeting_id":       l.MeetingID,
		"join_url":         l.JoinURL,
		"passcode":         l.Passcode,
		"starts_at":        l.StartsAt,
		"duration_minutes": l.DurationMinutes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute update live class query for live_class_id=%s: %w", l.ID, err)
	}

	return collectOne[model.LiveClass](rows, "live_classes")
}

func (r *LiveClassRepository) Cancel(ctx context.Context, tenantID, id string) (*model.LiveClass, error) {
	stmt := `
		UPDATE live_classes SET status = 'cancelled', updated_at = now()
		WHERE tenant_id = @tenant_id AND id = @id AND status = 'scheduled'
		RETURNING *
	`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{"tenant_id": tenantID, "id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to execute cancel live class query for live_class_id=%s: %w", id, err)
	}

	return collectOne[model.LiveClass](rows, "live_classes")
}

// HasOverlap reports whether another scheduled class of the course
// intersects [start, end). excludeID skips the class being rescheduled.
func (r *LiveClassRepository) HasOverlap(ctx context.Context, tenantID, courseID string, start, end time.Time, excludeID string) (bool, error) {
	stmt := `
		SELECT EXISTS (
			SELECT 1 FROM live_classes
			WHERE tenant_id = @tenant_id AND course_id = @course_id AND status = 'scheduled'
				AND id::text <> @exclude_id
				AND starts_at < @end
				AND starts_at + make_interval(mins => duration_minutes) > @start
		)
	`

	var exists bool
	err := r.db(ctx).QueryRow(ctx, stmt, pgx.NamedArgs{
		"tenant_id":  tenantID,
		"course_id":  courseID,
		"exclude_id": excludeID,
		"start":      start,
		"end":        end,
	}).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check live class overlap for course_id=%s: %w", courseID, err)
	}
	return exists, nil
}

func liveClassFilter(tenantID string, q *model.ListCourseLiveClassesQuery, now time.Time) sq.SelectBuilder {
	b := psql.Select("*").From("live_classes").Where(sq.Eq{"tenant_id": tenantID, "course_id": q.CourseID})
	if !q.IncludeCancelled {
		b = b.Where(sq.NotEq{"status": model.LiveClassCancelled})
	}
	if !q.IncludePast {
		b = b.Where(sq.Expr("starts_at + make_interval(mins => duration_minutes) > ?", now))
	}
	return b.OrderBy("starts_at")
}

func (r *LiveClassRepository) ListForCourse(ctx context.Context, tenantID string, q *model.ListCourseLiveClassesQuery, now time.Time) ([]model.LiveClass, error) {
	stmt, args, err := liveClassFilter(tenantID, q, now).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list live classes query: %w", err)
	}

	rows, err := r.db(ctx).Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute list live classes query for course_id=%s: %w", q.CourseID, err)
	}

	return collectAll[model.LiveClass](rows, "live_classes")
}

// ListUpcomingForUser returns scheduled classes of the courses userID is
// actively enrolled in that have not ended yet.
func (r *LiveClassRepository) ListUpcomingForUser(ctx context.Context, tenantID, userID string, now time.Time) ([]model.LiveClass, error) {
	stmt := `
		SELECT l.* FROM live_classes l
		JOIN enrollments e ON e.tenant_id = l.tenant_id AND e.course_id = l.course_id
		WHERE l.tenant_id = @tenant_id AND e.user_id = @user_id AND e.status = 'active'
			AND l.status = 'scheduled'
			AND l.starts_at + make_interval(mins => l.duration_minutes) > @now
		ORDER BY l.starts_at
	`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{"tenant_id": tenantID, "user_id": userID, "now": now})
	if err != nil {
		return nil, fmt.Errorf("failed to execute upcoming live classes query for user_id=%s: %w", userID, err)
	}

	return collectAll[model.LiveClass](rows, "live_classes")
}

// DueReminders lists, across tenants, scheduled classes starting in
// [now, until) that have not been reminded yet.
func (r *LiveClassRepository) DueReminders(ctx context.Context, now, until time.Time) ([]model.LiveClass, error) {
	stmt := `
		SELECT * FROM live_classes
		WHERE status = 'scheduled' AND reminder_sent_at IS NULL
			AND starts_at >= @now AND starts_at < @until
		ORDER BY starts_at
	`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{"now": now, "until": until})
	if err != nil {
		return nil, fmt.Errorf("failed to execute due reminders query: %w", err)
	}

	return collectAll[model.LiveClass](rows, "live_classes")
}

// ClaimReminder marks the reminder as sent and reports whether this call
// claimed it, so concurrent sweeps remind once.
func (r *LiveClassRepository) ClaimReminder(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.db(ctx).Exec(ctx, `
		UPDATE live_classes SET reminder_sent_at = @at
		WHERE id = @id AND reminder_sent_at IS NULL AND status = 'scheduled'
	`, pgx.NamedArgs{"id": id, "at": at})
	if err != nil {
		return false, fmt.Errorf("failed to claim reminder for live_class_id=%s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}
