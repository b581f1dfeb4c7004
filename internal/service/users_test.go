package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/schoolhub/internal/errs"
	"github.com/deppfellow/schoolhub/internal/lib/utils"
	"github.com/deppfellow/schoolhub/internal/model"
)

type bulkCall struct {
	op  string
	ids []string
	arg string
}

type recordingUsers struct {
	userStub
	calls    []bulkCall
	upserted model.UserRole
}

func (r *recordingUsers) Upsert(_ context.Context, tenantID, userID string, role model.UserRole, p *model.UpsertProfilePayload) (*model.User, error) {
	r.upserted = role
	return &model.User{ID: userID, TenantID: tenantID, Email: p.Email, FullName: p.FullName, Role: role, Status: model.UserStatusActive}, nil
}

func (r *recordingUsers) List(context.Context, string, *model.ListUsersQuery) ([]model.User, int, error) {
	return nil, 0, nil
}

func (r *recordingUsers) SetStatus(_ context.Context, _ string, ids []string, status model.UserStatus) (int, error) {
	r.calls = append(r.calls, bulkCall{op: "status", ids: ids, arg: string(status)})
	return len(ids), nil
}

func (r *recordingUsers) SetRole(_ context.Context, _ string, ids []string, role model.UserRole) (int, error) {
	r.calls = append(r.calls, bulkCall{op: "role", ids: ids, arg: string(role)})
	return len(ids), nil
}

func (r *recordingUsers) Delete(_ context.Context, _ string, ids []string) (int, error) {
	r.calls = append(r.calls, bulkCall{op: "delete", ids: ids})
	return len(ids) - 1, nil
}

func TestUpsertProfile_MapsOrganizationRole(t *testing.T) {
	store := &recordingUsers{userStub: users()}
	svc := NewUserService(store, nopLogger())
	payload := &model.UpsertProfilePayload{Email: "x@example.com", FullName: "X Y"}

	for actor, want := range map[model.Actor]model.UserRole{
		student:    model.UserRoleStudent,
		instructor: model.UserRoleInstructor,
		admin:      model.UserRoleAdmin,
	} {
		u, err := svc.UpsertProfile(context.Background(), actor, payload)
		require.NoError(t, err)
		assert.Equal(t, want, u.Role)
	}
}

func TestBulkUsers(t *testing.T) {
	ctx := context.Background()
	store := &recordingUsers{userStub: users()}
	svc := NewUserService(store, nopLogger())

	_, err := svc.Bulk(ctx, admin, &model.BulkUsersPayload{Action: model.BulkSuspend, UserIDs: []string{"u1", admin.UserID}})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, errs.StatusOf(err))
	assert.Equal(t, CodeBulkSelf, errs.CodeOf(err))
	assert.Empty(t, store.calls)

	res, err := svc.Bulk(ctx, admin, &model.BulkUsersPayload{Action: model.BulkSuspend, UserIDs: []string{"u1", "u2", "u1"}})
	require.NoError(t, err)
	assert.Equal(t, model.BulkUsersResult{Requested: 2, Affected: 2}, *res)
	assert.Equal(t, bulkCall{op: "status", ids: []string{"u1", "u2"}, arg: "suspended"}, store.calls[0])

	_, err = svc.Bulk(ctx, admin, &model.BulkUsersPayload{Action: model.BulkSetRole, UserIDs: []string{"u1"}, Role: utils.Ptr(model.UserRoleInstructor)})
	require.NoError(t, err)
	assert.Equal(t, "instructor", store.calls[1].arg)

	res, err = svc.Bulk(ctx, admin, &model.BulkUsersPayload{Action: model.BulkDelete, UserIDs: []string{"u1", "unknown"}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Requested)
	assert.Equal(t, 1, res.Affected, "unknown ids are skipped")
}

func TestUserList_EmptyPage(t *testing.T) {
	svc := NewUserService(&recordingUsers{userStub: users()}, nopLogger())

	page, err := svc.List(context.Background(), tenant, &model.ListUsersQuery{Pagination: model.Pagination{Limit: 500}})
	require.NoError(t, err)
	assert.Equal(t, []model.User{}, page.Data)
	assert.Equal(t, model.MaxPageLimit, page.Limit)
}
