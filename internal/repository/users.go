package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/deppfellow/schoolhub/internal/model"
)

type UserRepository struct {
	store
}

// Upsert creates the profile on first sight and refreshes email and name
// afterwards. role only applies on insert.
func (r *UserRepository) Upsert(ctx context.Context, tenantID, userID string, role model.UserRole, payload *model.UpsertProfilePayload) (*model.User, error) {
	stmt := `
		INSERT INTO users (id, tenant_id, email, full_name, role)
		VALUES (@id, @tenant_id, @email, @full_name, @role)
		ON CONFLICT (tenant_id, id) DO UPDATE
		SET email = EXCLUDED.email,
			full_name = EXCLUDED.full_name,
			updated_at = now()
		RETURNING *
	`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{
		"id":        userID,
		"tenant_id": tenantID,
		"email":     payload.Email,
		"full_name": payload.FullName,
		"role":      role,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute upsert user query for user_id=%s: %w", userID, err)
	}

	return collectOne[model.User](rows, "users")
}

func (r *UserRepository) GetByID(ctx context.Context, tenantID, id string) (*model.User, error) {
	stmt := `SELECT * FROM users WHERE tenant_id = @tenant_id AND id = @id`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{"tenant_id": tenantID, "id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to execute get user query for user_id=%s: %w", id, err)
	}

	return collectOne[model.User](rows, "users")
}

func userFilter(tenantID string, q *model.ListUsersQuery) sq.SelectBuilder {
	b := psql.Select().From("users").Where(sq.Eq{"tenant_id": tenantID})
	if q.Role != "" {
		b = b.Where(sq.Eq{"role": q.Role})
	}
	if q.Status != "" {
		b = b.Where(sq.Eq{"status": q.Status})
	}
	if q.Search != "" {
		pattern := containsPattern(q.Search)
		b = b.Where(sq.Or{sq.ILike{"email": pattern}, sq.ILike{"full_name": pattern}})
	}
	return b
}

func (r *UserRepository) List(ctx context.Context, tenantID string, q *model.ListUsersQuery) ([]model.User, int, error) {
	return selectPage[model.User](ctx, r.db(ctx), "users", "*", userFilter(tenantID, q), "created_at DESC, id", q.Pagination)
}

// SetStatus changes the status of the listed users and returns how many changed.
func (r *UserRepository) SetStatus(ctx context.Context, tenantID string, ids []string, status model.UserStatus) (int, error) {
	stmt := `
		UPDATE users SET status = @status, updated_at = now()
		WHERE tenant_id = @tenant_id AND id = ANY(@ids) AND status <> @status
	`

	tag, err := r.db(ctx).Exec(ctx, stmt, pgx.NamedArgs{"tenant_id": tenantID, "ids": ids, "status": status})
	if err != nil {
		return 0, fmt.Errorf("failed to execute set user status query: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *UserRepository) SetRole(ctx context.Context, tenantID string, ids []string, role model.UserRole) (int, error) {
	stmt := `
		UPDATE users SET role = @role, updated_at = now()
		WHERE tenant_id = @tenant_id AND id = ANY(@ids) AND role <> @role
	`

	tag, err := r.db(ctx).Exec(ctx, stmt, pgx.NamedArgs{"tenant_id": tenantID, "ids": ids, "role": role})
	if err != nil {
		return 0, fmt.Errorf("failed to execute set user role query: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *UserRepository) Delete(ctx context.Context, tenantID string, ids []string) (int, error) {
	stmt := `DELETE FROM users WHERE tenant_id = @tenant_id AND id = ANY(@ids)`

	tag, err := r.db(ctx).Exec(ctx, stmt, pgx.NamedArgs{"tenant_id": tenantID, "ids": ids})
	if err != nil {
		return 0, fmt.Errorf("failed to execute delete users query: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
