package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/deppfellow/schoolhub/internal/errs"
	"github.com/deppfellow/schoolhub/internal/logger"
	"github.com/deppfellow/schoolhub/internal/model"
	"github.com/deppfellow/schoolhub/internal/sqlerr"
	"github.com/deppfellow/schoolhub/internal/validation"
)

type CategoryStore interface {
	Create(ctx context.Context, tenantID, name, slug, description string) (*model.Category, error)
	GetByID(ctx context.Context, tenantID, id string) (*model.Category, error)
	List(ctx context.Context, tenantID string) ([]model.Category, error)
	Update(ctx context.Context, tenantID string, p *model.UpdateCategoryPayload) (*model.Category, error)
	Delete(ctx context.Context, tenantID, id string) error
}

type CourseStore interface {
	Create(ctx context.Context, c *model.Course) (*model.Course, error)
	GetByID(ctx context.Context, tenantID, id string) (*model.Course, error)
	List(ctx context.Context, tenantID string, q *model.ListCoursesQuery, publishedOnly bool) ([]model.Course, int, error)
	Update(ctx context.Context, c *model.Course) (*model.Course, error)
	SetStatus(ctx context.Context, tenantID, id string, from, to model.CourseStatus) (*model.Course, error)
	Delete(ctx context.Context, tenantID, id string) error
}

// CatalogService manages categories and courses.
type CatalogService struct {
	categories CategoryStore
	courses    CourseStore
	logger     *zerolog.Logger
}

func NewCatalogService(categories CategoryStore, courses CourseStore, logger *zerolog.Logger) *CatalogService {
	return &CatalogService{categories: categories, courses: courses, logger: logger}
}

func (s *CatalogService) CreateCategory(ctx context.Context, tenantID string, p *model.CreateCategoryPayload) (*model.Category, error) {
	var description string
	if p.Description != nil {
		description = *p.Description
	}
	return s.categories.Create(ctx, tenantID, p.Name, p.ResolvedSlug(), description)
}

func (s *CatalogService) ListCategories(ctx context.Context, tenantID string) ([]model.Category, error) {
	items, err := s.categories.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Category{}
	}
	return items, nil
}

func (s *CatalogService) GetCategory(ctx context.Context, tenantID, id string) (*model.Category, error) {
	return s.categories.GetByID(ctx, tenantID, id)
}

func (s *CatalogService) UpdateCategory(ctx context.Context, tenantID string, p *model.UpdateCategoryPayload) (*model.Category, error) {
	return s.categories.Update(ctx, tenantID, p)
}

// DeleteCategory fails with a 400 while courses still use the category.
func (s *CatalogService) DeleteCategory(ctx context.Context, tenantID, id string) error {
	return s.categories.Delete(ctx, tenantID, id)
}

// ------------------------------------------------------------

// requireCategory turns a missing category into a field error.
func (s *CatalogService) requireCategory(ctx context.Context, tenantID, id string) error {
	if _, err := s.categories.GetByID(ctx, tenantID, id); err != nil {
		if sqlerr.IsNotFound(err) {
			return errs.FieldValidationError("category_id", "does not exist")
		}
		return err
	}
	return nil
}

// CreateCourse stores a draft course. The creator teaches it unless
// another instructor is named.
func (s *CatalogService) CreateCourse(ctx context.Context, actor model.Actor, p *model.CreateCoursePayload) (*model.Course, error) {
	if err := s.requireCategory(ctx, actor.TenantID, p.CategoryID); err != nil {
		return nil, err
	}

	c := &model.Course{
		TenantID:     actor.TenantID,
		CategoryID:   p.CategoryID,
		Title:        p.Title,
		Status:       model.CourseStatusDraft,
		Pricing:      p.PricingOrFree(),
		InstructorID: actor.UserID,
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.InstructorID != nil && *p.InstructorID != "" {
		c.InstructorID = *p.InstructorID
	}

	return s.courses.Create(ctx, c)
}

// GetCourse hides unpublished courses from students.
func (s *CatalogService) GetCourse(ctx context.Context, actor model.Actor, id string) (*model.Course, error) {
	c, err := s.courses.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CourseStatusPublished && !actor.IsStaff() {
		return nil, sqlerr.NotFound("courses")
	}
	return c, nil
}

// ListCourses shows students the published catalog; staff may filter by status.
func (s *CatalogService) ListCourses(ctx context.Context, actor model.Actor, q *model.ListCoursesQuery) (*model.PaginatedResponse[model.Course], error) {
	items, total, err := s.courses.List(ctx, actor.TenantID, q, !actor.IsStaff())
	if err != nil {
		return nil, err
	}
	return model.NewPage(items, q.Pagination, total), nil
}

func (s *CatalogService) UpdateCourse(ctx context.Context, tenantID string, p *model.UpdateCoursePayload) (*model.Course, error) {
	c, err := s.courses.GetByID(ctx, tenantID, p.ID)
	if err != nil {
		return nil, err
	}

	if p.CategoryID != nil && *p.CategoryID != c.CategoryID {
		if err := s.requireCategory(ctx, tenantID, *p.CategoryID); err != nil {
			return nil, err
		}
		c.CategoryID = *p.CategoryID
	}
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Pricing != nil {
		c.Pricing = p.Pricing.Normalize()
	}
	if p.InstructorID != nil && *p.InstructorID != "" {
		c.InstructorID = *p.InstructorID
	}

	return s.courses.Update(ctx, c)
}

// ChangeCourseStatus walks the course workflow. Publishing re-checks the
// pricing so a course never goes live with a broken price.
func (s *CatalogService) ChangeCourseStatus(ctx context.Context, tenantID string, p *model.ChangeCourseStatusPayload) (*model.Course, error) {
	c, err := s.courses.GetByID(ctx, tenantID, p.ID)
	if err != nil {
		return nil, err
	}

	if !c.Status.CanTransitionTo(p.Status) {
		return nil, errs.NewConflictError(
			"A "+string(c.Status)+" course cannot become "+string(p.Status),
			true,
			errs.Code(model.CodeInvalidTransition),
		)
	}

	if p.Status == model.CourseStatusPublished {
		if c.CategoryID == "" {
			return nil, errs.FieldValidationError("category_id", "is required to publish")
		}
		if err := c.Pricing.Validate("pricing"); err != nil {
			return nil, validation.ToHTTPError(err)
		}
	}

	updated, err := s.courses.SetStatus(ctx, tenantID, c.ID, c.Status, p.Status)
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, s.logger).Info().
		Str("course_id", c.ID).
		Str("from", string(c.Status)).
		Str("to", string(p.Status)).
		Msg("course status changed")

	return updated, nil
}

func (s *CatalogService) DeleteCourse(ctx context.Context, tenantID, id string) error {
	return s.courses.Delete(ctx, tenantID, id)
}
