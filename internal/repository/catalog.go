package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/deppfellow/schoolhub/internal/model"
	"github.com/deppfellow/schoolhub/internal/sqlerr"
)

type CategoryRepository struct {
	store
}

func (r *CategoryRepository) Create(ctx context.Context, tenantID, name, slug, description string) (*model.Category, error) {
	stmt := `
		INSERT INTO categories (id, tenant_id, name, slug, description)
		VALUES (@id, @tenant_id, @name, @slug, @description)
		RETURNING *
	`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{
		"id":          uuid.NewString(),
		"tenant_id":   tenantID,
		"name":        name,
		"slug":        slug,
		"description": description,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute create category query for slug=%s: %w", slug, err)
	}

	return collectOne[model.Category](rows, "categories")
}

func (r *CategoryRepository) GetByID(ctx context.Context, tenantID, id string) (*model.Category, error) {
	stmt := `SELECT * FROM categories WHERE tenant_id = @tenant_id AND id = @id`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{"tenant_id": tenantID, "id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to execute get category query for category_id=%s: %w", id, err)
	}

	return collectOne[model.Category](rows, "categories")
}

func (r *CategoryRepository) List(ctx context.Context, tenantID string) ([]model.Category, error) {
	stmt := `SELECT * FROM categories WHERE tenant_id = @tenant_id ORDER BY name`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{"tenant_id": tenantID})
	if err != nil {
		return nil, fmt.Errorf("failed to execute list categories query: %w", err)
	}

	return collectAll[model.Category](rows, "categories")
}

// Update changes the non-nil fields.
func (r *CategoryRepository) Update(ctx context.Context, tenantID string, p *model.UpdateCategoryPayload) (*model.Category, error) {
	stmt := `
		UPDATE categories
		SET name = COALESCE(@name, name),
			slug = COALESCE(@slug, slug),
			description = COALESCE(@description, description),
			updated_at = now()
		WHERE tenant_id = @tenant_id AND id = @id
		RETURNING *
	`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{
		"tenant_id":   tenantID,
		"id":          p.ID,
		"name":        p.Name,
		"slug":        p.Slug,
		"description": p.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute update category query for category_id=%s: %w", p.ID, err)
	}

	return collectOne[model.Category](rows, "categories")
}

// Delete fails with a foreign key violation while courses reference the category.
func (r *CategoryRepository) Delete(ctx context.Context, tenantID, id string) error {
	tag, err := r.db(ctx).Exec(ctx,
		`DELETE FROM categories WHERE tenant_id = @tenant_id AND id = @id`,
		pgx.NamedArgs{"tenant_id": tenantID, "id": id},
	)
	if err != nil {
		return fmt.Errorf("failed to execute delete category query for category_id=%s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return sqlerr.NotFound("categories")
	}
	return nil
}

// ------------------------------------------------------------

type CourseRepository struct {
	store
}

func (r *CourseRepository) Create(ctx context.Context, c *model.Course) (*model.Course, error) {
	stmt := `
		INSERT INTO courses (id, tenant_id, category_id, title, description, status, pricing, instructor_id)
		VALUES (@id, @tenant_id, @category_id, @title, @description, @status, @pricing, @instructor_id)
		RETURNING *
	`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{
		"id":            uuid.NewString(),
		"tenant_id":     c.TenantID,
		"category_id":   c.CategoryID,
		"title":         c.Title,
		"description":   c.Description,
		"status":        c.Status,
		"pricing":       c.Pricing,
		"instructor_id": c.InstructorID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute create course query for title=%s: %w", c.Title, err)
	}

	return collectOne[model.Course](rows, "courses")
}

func (r *CourseRepository) GetByID(ctx context.Context, tenantID, id string) (*model.Course, error) {
	stmt := `SELECT * FROM courses WHERE tenant_id = @tenant_id AND id = @id`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{"tenant_id": tenantID, "id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to execute get course query for course_id=%s: %w", id, err)
	}

	return collectOne[model.Course](rows, "courses")
}

// courseFilter builds the list filter. publishedOnly overrides q.Status.
func courseFilter(tenantID string, q *model.ListCoursesQuery, publishedOnly bool) sq.SelectBuilder {
	b := psql.Select().From("courses").Where(sq.Eq{"tenant_id": tenantID})
	switch {
	case publishedOnly:
		b = b.Where(sq.Eq{"status": model.CourseStatusPublished})
	case q.Status != "":
		b = b.Where(sq.Eq{"status": q.Status})
	}
	if q.CategoryID != "" {
		b = b.Where(sq.Eq{"category_id": q.CategoryID})
	}
	if q.Search != "" {
		b = b.Where(sq.ILike{"title": containsPattern(q.Search)})
	}
	return b
}

func (r *CourseRepository) List(ctx context.Context, tenantID string, q *model.ListCoursesQuery, publishedOnly bool) ([]model.Course, int, error) {
	return selectPage[model.Course](ctx, r.db(ctx), "courses", "*", courseFilter(tenantID, q, publishedOnly), "created_at DESC, id", q.Pagination)
}

// Update writes the editable fields of c.
func (r *CourseRepository) Update(ctx context.Context, c *model.Course) (*model.Course, error) {
	stmt := `
		UPDATE courses
		SET category_id = @category_id,
			title = @title,
			description = @description,
			pricing = @pricing,
			instructor_id = @instructor_id,
			updated_at = now()
		WHERE tenant_id = @tenant_id AND id = @id
		RETURNING *
	`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{
		"tenant_id":     c.TenantID,
		"id":            c.ID,
		"category_id":   c.CategoryID,
		"title":         c.Title,
		"description":   c.Description,
		"pricing":       c.Pricing,
		"instructor_id": c.InstructorID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute update course query for course_id=%s: %w", c.ID, err)
	}

	return collectOne[model.Course](rows, "courses")
}

// SetStatus moves the course from `from` to `to`. It reports not found when
// the course left `from` in the meantime.
func (r *CourseRepository) SetStatus(ctx context.Context, tenantID, id string, from, to model.CourseStatus) (*model.Course, error) {
	stmt := `
		UPDATE courses SET status = @to, updated_at = now()
		WHERE tenant_id = @tenant_id AND id = @id AND status = @from
		RETURNING *
	`

	rows, err := r.db(ctx).Query(ctx, stmt, pgx.NamedArgs{"tenant_id": tenantID, "id": id, "from": from, "to": to})
	if err != nil {
		return nil, fmt.Errorf("failed to execute set course status query for course_id=%s: %w", id, err)
	}

	return collectOne[model.Course](rows, "courses")
}

func (r *CourseRepository) Delete(ctx context.Context, tenantID, id string) error {
	tag, err := r.db(ctx).Exec(ctx,
		`DELETE FROM courses WHERE tenant_id = @tenant_id AND id = @id`,
		pgx.NamedArgs{"tenant_id": tenantID, "id": id},
	)
	if err != nil {
		return fmt.Errorf("failed to execute delete course query for course_id=%s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return sqlerr.NotFound("courses")
	}
	return nil
}
