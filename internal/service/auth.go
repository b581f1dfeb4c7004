package service

import (
	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/rs/zerolog"

	"github.com/deppfellow/schoolhub/internal/config"
)

// AuthService configures the Clerk SDK used by the auth middleware to
// verify session tokens.
type AuthService struct {
	logger *zerolog.Logger
}

func NewAuthService(cfg config.AuthConfig, logger *zerolog.Logger) *AuthService {
	clerk.SetKey(cfg.SecretKey)
	logger.Debug().Msg("clerk sdk configured")
	return &AuthService{logger: logger}
}
