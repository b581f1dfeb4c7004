package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/schoolhub/internal/lib/utils"
)

func TestPagination_Normalized(t *testing.T) {
	page, limit := Pagination{}.Normalized()
	assert.Equal(t, 1, page)
	assert.Equal(t, DefaultPageLimit, limit)

	assert.Equal(t, 40, Pagination{Page: 3, Limit: 20}.Offset())

	resp := NewPage([]string(nil), Pagination{Page: 2, Limit: 10}, 25)
	assert.Equal(t, []string{}, resp.Data)
	assert.Equal(t, 3, resp.TotalPages)
	assert.Equal(t, 25, resp.PageTotal())
}

func TestCourseStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, CourseStatusDraft.CanTransitionTo(CourseStatusPublished))
	assert.True(t, CourseStatusPublished.CanTransitionTo(CourseStatusArchived))
	assert.True(t, CourseStatusArchived.CanTransitionTo(CourseStatusDraft))
	assert.False(t, CourseStatusDraft.CanTransitionTo(CourseStatusArchived))
	assert.False(t, CourseStatusPublished.CanTransitionTo(CourseStatusDraft))
}

func TestTicketStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, TicketOpen.CanTransitionTo(TicketPending))
	assert.True(t, TicketPending.CanTransitionTo(TicketOpen))
	assert.True(t, TicketResolved.CanTransitionTo(TicketOpen))
	assert.False(t, TicketResolved.CanTransitionTo(TicketPending))
	assert.False(t, TicketClosed.CanTransitionTo(TicketOpen))
	assert.False(t, TicketOpen.CanTransitionTo(TicketOpen))
}

func TestCreateCategoryPayload(t *testing.T) {
	p := &CreateCategoryPayload{Name: "  Web Development "}
	require.NoError(t, p.Validate())
	assert.Equal(t, "web-development", p.ResolvedSlug())

	p = &CreateCategoryPayload{Name: "Data", Slug: utils.Ptr("Data Science")}
	assert.Error(t, p.Validate())

	p = &CreateCategoryPayload{Name: "!!"}
	assert.Error(t, p.Validate())

	p = &CreateCategoryPayload{Name: "A"}
	assert.Error(t, p.Validate())
}

func TestBulkUsersPayload(t *testing.T) {
	p := &BulkUsersPayload{Action: BulkSetRole, UserIDs: []string{"u1"}}
	assert.Error(t, p.Validate(), "role required")

	p = &BulkUsersPayload{Action: BulkSuspend, UserIDs: []string{"u1"}, Role: utils.Ptr(UserRoleAdmin)}
	assert.Error(t, p.Validate(), "role not allowed")

	p = &BulkUsersPayload{Action: BulkSuspend, UserIDs: []string{}}
	assert.Error(t, p.Validate(), "ids required")

	p = &BulkUsersPayload{Action: BulkSuspend, UserIDs: []string{"u1", "u2", "u1"}}
	require.NoError(t, p.Validate())
	assert.Equal(t, []string{"u1", "u2"}, p.UniqueUserIDs())
}

func TestCreateCoursePayload_PricingErrors(t *testing.T) {
	p := &CreateCoursePayload{
		Title:      "Intro to Go",
		CategoryID: "11111111-1111-4111-8111-111111111111",
	}
	require.NoError(t, p.Validate())
	assert.Equal(t, "free", string(p.PricingOrFree().Type))

	p.Pricing = &oneTimeInvalid
	assert.Error(t, p.Validate())
}

var oneTimeInvalid = oneTime("-5")

func TestLiveClass_Overlaps(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	l := &LiveClass{StartsAt: start, DurationMinutes: 60}
	assert.Equal(t, start.Add(time.Hour), l.EndsAt())

	assert.True(t, Overlaps(start, l.EndsAt(), start.Add(30*time.Minute), start.Add(90*time.Minute)))
	assert.False(t, Overlaps(start, l.EndsAt(), l.EndsAt(), l.EndsAt().Add(time.Hour)), "back to back is fine")
}

func TestUser_FirstName(t *testing.T) {
	assert.Equal(t, "Ada", (&User{FullName: "Ada Lovelace"}).FirstName())
	assert.Equal(t, "Plato", (&User{FullName: "Plato"}).FirstName())
}
