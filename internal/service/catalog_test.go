package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/schoolhub/internal/errs"
	"github.com/deppfellow/schoolhub/internal/lib/pricing"
	"github.com/deppfellow/schoolhub/internal/model"
	"github.com/deppfellow/schoolhub/internal/sqlerr"
)

const categoryID = "0f7a2b1c-0000-4000-8000-00000000c001"

type memCategories struct{}

func (memCategories) Create(_ context.Context, tenantID, name, slug, description string) (*model.Category, error) {
	c := &model.Category{TenantID: tenantID, Name: name, Slug: slug, Description: description}
	c.ID = categoryID
	return c, nil
}

func (memCategories) GetByID(_ context.Context, tenantID, id string) (*model.Category, error) {
	if id != categoryID {
		return nil, sqlerr.NotFound("categories")
	}
	c := &model.Category{TenantID: tenantID, Name: "Programming", Slug: "programming"}
	c.ID = id
	return c, nil
}

func (memCategories) List(context.Context, string) ([]model.Category, error) {
	return nil, nil
}

func (memCategories) Update(context.Context, string, *model.UpdateCategoryPayload) (*model.Category, error) {
	return nil, sqlerr.NotFound("categories")
}

func (memCategories) Delete(context.Context, string, string) error {
	return nil
}

type memCourses struct {
	items map[string]*model.Course
}

func (m *memCourses) Create(_ context.Context, c *model.Course) (*model.Course, error) {
	stored := *c
	stored.ID = "course-" + c.Title
	m.items[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (m *memCourses) GetByID(_ context.Context, tenantID, id string) (*model.Course, error) {
	c, ok := m.items[id]
	if !ok || c.TenantID != tenantID {
		return nil, sqlerr.NotFound("courses")
	}
	out := *c
	return &out, nil
}

func (m *memCourses) List(context.Context, string, *model.ListCoursesQuery, bool) ([]model.Course, int, error) {
	return nil, 0, nil
}

func (m *memCourses) Update(_ context.Context, c *model.Course) (*model.Course, error) {
	stored := *c
	m.items[c.ID] = &stored
	return &stored, nil
}

func (m *memCourses) SetStatus(_ context.Context, tenantID, id string, from, to model.CourseStatus) (*model.Course, error) {
	c, ok := m.items[id]
	if !ok || c.TenantID != tenantID || c.Status != from {
		return nil, sqlerr.NotFound("courses")
	}
	c.Status = to
	out := *c
	return &out, nil
}

func (m *memCourses) Delete(context.Context, string, string) error {
	return nil
}

func TestCatalog_CourseLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := NewCatalogService(memCategories{}, &memCourses{items: map[string]*model.Course{}}, nopLogger())

	_, err := svc.CreateCourse(ctx, instructor, &model.CreateCoursePayload{Title: "Go", CategoryID: "missing"})
	assert.Equal(t, http.StatusBadRequest, errs.StatusOf(err))

	course, err := svc.CreateCourse(ctx, instructor, &model.CreateCoursePayload{Title: "Go", CategoryID: categoryID})
	require.NoError(t, err)
	assert.Equal(t, model.CourseStatusDraft, course.Status)
	assert.Equal(t, instructor.UserID, course.InstructorID)
	assert.Equal(t, pricing.ModelFree, course.Pricing.Type)

	_, err = svc.GetCourse(ctx, student, course.ID)
	assert.True(t, sqlerr.IsNotFound(err), "drafts are hidden from students")

	_, err = svc.ChangeCourseStatus(ctx, tenant, &model.ChangeCourseStatusPayload{ID: course.ID, Status: model.CourseStatusArchived})
	assert.Equal(t, http.StatusConflict, errs.StatusOf(err))

	// A price that slipped past validation blocks publishing.
	_, err = svc.UpdateCourse(ctx, tenant, &model.UpdateCoursePayload{ID: course.ID, Pricing: &pricing.Model{
		Type: pricing.ModelOneTime, Price: decimal.RequireFromString("10.001"), Currency: "USD",
	}})
	require.NoError(t, err)
	_, err = svc.ChangeCourseStatus(ctx, tenant, &model.ChangeCourseStatusPayload{ID: course.ID, Status: model.CourseStatusPublished})
	assert.Equal(t, http.StatusBadRequest, errs.StatusOf(err))

	_, err = svc.UpdateCourse(ctx, tenant, &model.UpdateCoursePayload{ID: course.ID, Pricing: &pricing.Model{
		Type: pricing.ModelOneTime, Price: decimal.NewFromInt(49), Currency: "USD",
	}})
	require.NoError(t, err)
	published, err := svc.ChangeCourseStatus(ctx, tenant, &model.ChangeCourseStatusPayload{ID: course.ID, Status: model.CourseStatusPublished})
	require.NoError(t, err)
	assert.Equal(t, model.CourseStatusPublished, published.Status)

	got, err := svc.GetCourse(ctx, student, course.ID)
	require.NoError(t, err)
	assert.Equal(t, "Go", got.Title)
}

func TestCatalog_ListCategoriesNeverNil(t *testing.T) {
	svc := NewCatalogService(memCategories{}, &memCourses{items: map[string]*model.Course{}}, nopLogger())

	items, err := svc.ListCategories(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, []model.Category{}, items)
}
