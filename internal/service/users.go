package service

import (
	"context"
	"slices"

	"github.com/rs/zerolog"

	"github.com/deppfellow/schoolhub/internal/errs"
	"github.com/deppfellow/schoolhub/internal/logger"
	"github.com/deppfellow/schoolhub/internal/model"
)

// CodeBulkSelf rejects bulk actions that include the caller.
const CodeBulkSelf = "BULK_ACTION_ON_SELF"

type UserStore interface {
	Upsert(ctx context.Context, tenantID, userID string, role model.UserRole, payload *model.UpsertProfilePayload) (*model.User, error)
	GetByID(ctx context.Context, tenantID, id string) (*model.User, error)
	List(ctx context.Context, tenantID string, q *model.ListUsersQuery) ([]model.User, int, error)
	SetStatus(ctx context.Context, tenantID string, ids []string, status model.UserStatus) (int, error)
	SetRole(ctx context.Context, tenantID string, ids []string, role model.UserRole) (int, error)
	Delete(ctx context.Context, tenantID string, ids []string) (int, error)
}

type UserService struct {
	store  UserStore
	logger *zerolog.Logger
}

func NewUserService(store UserStore, logger *zerolog.Logger) *UserService {
	return &UserService{store: store, logger: logger}
}

// roleFor maps the Clerk organization role to the school role stored on
// first sync.
func roleFor(actor model.Actor) model.UserRole {
	switch actor.Role {
	case model.OrgRoleAdmin:
		return model.UserRoleAdmin
	case model.OrgRoleInstructor:
		return model.UserRoleInstructor
	default:
		return model.UserRoleStudent
	}
}

// UpsertProfile syncs the caller's profile into the current school.
func (s *UserService) UpsertProfile(ctx context.Context, actor model.Actor, p *model.UpsertProfilePayload) (*model.User, error) {
	return s.store.Upsert(ctx, actor.TenantID, actor.UserID, roleFor(actor), p)
}

func (s *UserService) GetProfile(ctx context.Context, actor model.Actor) (*model.User, error) {
	return s.store.GetByID(ctx, actor.TenantID, actor.UserID)
}

func (s *UserService) List(ctx context.Context, tenantID string, q *model.ListUsersQuery) (*model.PaginatedResponse[model.User], error) {
	items, total, err := s.store.List(ctx, tenantID, q)
	if err != nil {
		return nil, err
	}
	return model.NewPage(items, q.Pagination, total), nil
}

// Bulk applies one admin action to many users of the tenant. Unknown ids
// are skipped, so affected may be lower than requested.
func (s *UserService) Bulk(ctx context.Context, actor model.Actor, p *model.BulkUsersPayload) (*model.BulkUsersResult, error) {
	ids := p.UniqueUserIDs()
	if slices.Contains(ids, actor.UserID) {
		return nil, errs.NewBadRequestError("You cannot apply a bulk action to your own account", true, errs.Code(CodeBulkSelf), []errs.FieldError{
			{Field: "user_ids", Error: "must not include your own user id"},
		}, nil)
	}

	var (
		affected int
		err      error
	)
	switch p.Action {
	case model.BulkActivate:
		affected, err = s.store.SetStatus(ctx, actor.TenantID, ids, model.UserStatusActive)
	case model.BulkSuspend:
		affected, err = s.store.SetStatus(ctx, actor.TenantID, ids, model.UserStatusSuspended)
	case model.BulkDelete:
		affected, err = s.store.Delete(ctx, actor.TenantID, ids)
	case model.BulkSetRole:
		affected, err = s.store.SetRole(ctx, actor.TenantID, ids, *p.Role)
	default:
		return nil, errs.FieldValidationError("action", "is not supported")
	}
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, s.logger).Info().
		Str("action", string(p.Action)).
		Int("requested", len(ids)).
		Int("affected", affected).
		Msg("bulk user action applied")

	return &model.BulkUsersResult{Requested: len(ids), Affected: affected}, nil
}
