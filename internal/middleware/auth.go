package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/clerk/clerk-sdk-go/v2"
	clerkhttp "github.com/clerk/clerk-sdk-go/v2/http"
	"github.com/labstack/echo/v4"

	"github.com/deppfellow/schoolhub/internal/errs"
	"github.com/deppfellow/schoolhub/internal/model"
	"github.com/deppfellow/schoolhub/internal/server"
)

const (
	UserIDKey   = "user_id"
	UserRoleKey = "user_role"
	TenantIDKey = "tenant_id"
	ActorKey    = "actor"
)

type AuthMiddleware struct {
	server *server.Server
}

func NewAuthMiddleware(s *server.Server) *AuthMiddleware {
	return &AuthMiddleware{
		server: s,
	}
}

// RequireAuth verifies the Clerk session token and stores the caller as a
// model.Actor. The active organization of the session is the tenant.
func (auth *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return echo.WrapMiddleware(
		clerkhttp.WithHeaderAuthorization(
			clerkhttp.AuthorizationFailureHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				start := time.Now()

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)

				if err := json.NewEncoder(w).Encode(errs.NewUnauthorizedError("Unauthorized", false)); err != nil {
					auth.server.Logger.Error().
						Err(err).
						Str("function", "RequireAuth").
						Dur("duration", time.Since(start)).
						Msg("failed to write JSON response")
					return
				}
				auth.server.Logger.Warn().
					Str("function", "RequireAuth").
					Str("path", r.URL.Path).
					Dur("duration", time.Since(start)).
					Msg("rejected request with missing or invalid session token")
			}))))(
		func(c echo.Context) error {
			claims, ok := clerk.SessionClaimsFromContext(c.Request().Context())
			if !ok {
				auth.server.Logger.Error().
					Str("function", "RequireAuth").
					Str("request_id", GetRequestID(c)).
					Msg("could not get session claims from context")

				return errs.NewUnauthorizedError("Unauthorized", false)
			}

			setActor(c, model.Actor{
				TenantID: claims.ActiveOrganizationID,
				UserID:   claims.Subject,
				Role:     claims.ActiveOrganizationRole,
			})

			return next(c)
		})
}

func setActor(c echo.Context, actor model.Actor) {
	c.Set(ActorKey, actor)
	c.Set(UserIDKey, actor.UserID)
	c.Set(UserRoleKey, actor.Role)
	c.Set(TenantIDKey, actor.TenantID)
	withActor(c, actor)
}

// RequireTenant rejects sessions without an active organization. Every
// school resource belongs to one.
func (auth *AuthMiddleware) RequireTenant(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if GetActor(c).TenantID == "" {
			return errs.NewForbiddenError("Select a school before using this endpoint", true)
		}
		return next(c)
	}
}

// RequireStaff allows admins and instructors.
func (auth *AuthMiddleware) RequireStaff(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !GetActor(c).IsStaff() {
			return errs.NewForbiddenError("Only instructors and admins can do this", true)
		}
		return next(c)
	}
}

func (auth *AuthMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !GetActor(c).IsAdmin() {
			return errs.NewForbiddenError("Only school admins can do this", true)
		}
		return next(c)
	}
}

// GetActor returns the authenticated caller, or the zero Actor on public routes.
func GetActor(c echo.Context) model.Actor {
	if actor, ok := c.Get(ActorKey).(model.Actor); ok {
		return actor
	}
	return model.Actor{}
}

func GetUserID(c echo.Context) string {
	if userID, ok := c.Get(UserIDKey).(string); ok {
		return userID
	}
	return ""
}
