package repository

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/schoolhub/internal/errs"
	"github.com/deppfellow/schoolhub/internal/lib/email"
	"github.com/deppfellow/schoolhub/internal/model"
)

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, "%go%", containsPattern("  go "))
	assert.Equal(t, `%50\%\_off%`, containsPattern("50%_off"))
	assert.Equal(t, `%a\\b%`, containsPattern(`a\b`))
}

func TestCourseFilter(t *testing.T) {
	q := &model.ListCoursesQuery{CategoryID: "c1", Search: "go_lang", Status: "draft"}

	t.Run("public listing forces published", func(t *testing.T) {
		stmt, args, err := courseFilter("t1", q, true).Columns("COUNT(*)").ToSql()
		require.NoError(t, err)
		assert.Equal(t, "SELECT COUNT(*) FROM courses WHERE tenant_id = $1 AND status = $2 AND category_id = $3 AND title ILIKE $4", stmt)
		assert.Equal(t, []any{"t1", model.CourseStatusPublished, "c1", `%go\_lang%`}, args)
	})

	t.Run("admin listing honours status", func(t *testing.T) {
		_, args, err := courseFilter("t1", q, false).Columns("*").ToSql()
		require.NoError(t, err)
		assert.Equal(t, "draft", args[1])
	})
}

func TestUserFilter(t *testing.T) {
	stmt, args, err := userFilter("t1", &model.ListUsersQuery{Search: "ada"}).Columns("*").ToSql()
	require.NoError(t, err)
	assert.Contains(t, stmt, "email ILIKE $2")
	assert.Contains(t, stmt, "full_name ILIKE $3")
	assert.Equal(t, []any{"t1", "%ada%", "%ada%"}, args)
}

func TestTicketFilter(t *testing.T) {
	stmt, args, err := ticketFilter("t1", &model.ListTicketsQuery{RequesterID: "user_1", Status: "open"}).Columns("*").ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM tickets WHERE tenant_id = $1 AND status = $2 AND requester_id = $3", stmt)
	assert.Equal(t, []any{"t1", "open", "user_1"}, args)
}

func TestLiveClassFilter(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	stmt, args, err := liveClassFilter("t1", &model.ListCourseLiveClassesQuery{CourseID: "c1"}, now).ToSql()
	require.NoError(t, err)
	assert.Contains(t, stmt, "status <> $3")
	assert.Contains(t, stmt, "make_interval(mins => duration_minutes) > $4")
	assert.Contains(t, stmt, "ORDER BY starts_at")
	assert.Len(t, args, 4)

	stmt, args, err = liveClassFilter("t1", &model.ListCourseLiveClassesQuery{CourseID: "c1", IncludePast: true, IncludeCancelled: true}, now).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, stmt, "status")
	assert.Len(t, args, 2)
}

func TestAdvanceStatement(t *testing.T) {
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	stmt, args, err := advanceStatement("m1", email.StatusDelivered, email.StatusOpened, at).ToSql()
	require.NoError(t, err)
	assert.Contains(t, stmt, "UPDATE email_messages SET status = $1, updated_at = now(), opened_at = COALESCE(opened_at, $2)")
	assert.Contains(t, stmt, "id = $3")
	assert.Contains(t, stmt, "status = $4")
	assert.Equal(t, []any{email.StatusOpened, at, "m1", email.StatusDelivered}, args)
}

func TestStatusCountsQuery(t *testing.T) {
	from := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	stmt, args, err := statusCountsQuery("t1", &model.EmailAnalyticsQuery{From: from, Template: "welcome"}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT status, COUNT(*) FROM email_messages WHERE tenant_id = $1 AND queued_at >= $2 AND template = $3 GROUP BY status", stmt)
	assert.Equal(t, []any{"t1", from, "welcome"}, args)
}

func TestCouponUsageCheck(t *testing.T) {
	one := 1
	two := 2

	tests := []struct {
		name     string
		usage    couponUsage
		userUses int
		code     string
	}{
		{name: "unlimited", usage: couponUsage{Active: true, UsedCount: 40}, userUses: 3},
		{name: "room left", usage: couponUsage{Active: true, UsedCount: 1, MaxUses: &two, MaxUsesPerUser: &one}},
		{name: "inactive", usage: couponUsage{Active: false}, code: model.CodeCouponInactive},
		{name: "exhausted", usage: couponUsage{Active: true, UsedCount: 2, MaxUses: &two}, code: model.CodeCouponExhausted},
		{name: "user limit", usage: couponUsage{Active: true, MaxUsesPerUser: &one}, userUses: 1, code: model.CodeCouponUserLimit},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.usage.check(tc.userUses)
			if tc.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, http.StatusConflict, errs.StatusOf(err))
			assert.Equal(t, tc.code, errs.CodeOf(err))
		})
	}
}
