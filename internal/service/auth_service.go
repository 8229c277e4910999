package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/session"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// AuthService coordinates registration, login and the refresh-token
// session lifecycle. It is injected everywhere it is needed; there is no
// process-wide auth state.
type AuthService struct {
	users       repository.UserRepository
	sessions    session.Store
	tokenMgr    *auth.TokenManager
	bcryptCost  int
	minPassword int
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo     repository.UserRepository
	SessionStore session.Store
	TokenManager *auth.TokenManager
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	tm := deps.TokenManager
	if tm == nil {
		tm = auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL(), cfg.RefreshTokenTTL())
	}
	return &AuthService{
		users:       deps.UserRepo,
		sessions:    deps.SessionStore,
		tokenMgr:    tm,
		bcryptCost:  cfg.BcryptCost,
		minPassword: cfg.MinPasswordLength,
	}
}

// Register creates a customer account. The role is always customer; no
// session is issued, callers log in separately.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || password == "" {
		return nil, apperrors.NewValidationError("name, email, password required", nil)
	}
	if !strings.Contains(email, "@") {
		return nil, apperrors.NewValidationError("malformed email", nil)
	}
	if err := auth.CheckPasswordStrength(password, s.minPassword); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewValidationError("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewUpstreamError("database", err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleCustomer,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.NewUpstreamError("database", err)
	}
	return user, nil
}

// Login verifies credentials and issues a session. Unknown email and
// wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, domain.TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.TokenPair{}, apperrors.NewInvalidCredentials()
		}
		return nil, domain.TokenPair{}, apperrors.NewUpstreamError("database", err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, domain.TokenPair{}, apperrors.NewInvalidCredentials()
	}

	pair, _, err := s.tokenMgr.IssuePair(user.ID, user.Role)
	if err != nil {
		return nil, domain.TokenPair{}, apperrors.NewInternalError(err)
	}
	return user, pair, nil
}

// Refresh validates the refresh token against signature, expiry and the
// revocation store, then rotates it: a new pair is issued and the old
// token is revoked. Store unavailability denies the refresh.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	claims, err := s.tokenMgr.ParseRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return domain.TokenPair{}, apperrors.NewSessionExpired()
		}
		return domain.TokenPair{}, apperrors.NewUnauthorized("invalid refresh token")
	}

	revoked, err := s.sessions.IsRevoked(ctx, claims.ID)
	if err != nil {
		return domain.TokenPair{}, apperrors.NewUpstreamError("session store", err)
	}
	if revoked {
		return domain.TokenPair{}, apperrors.NewSessionRevoked()
	}

	// The role is re-read from the credential store rather than trusted
	// from the old token.
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TokenPair{}, apperrors.NewUnauthorized("account no longer exists")
		}
		return domain.TokenPair{}, apperrors.NewUpstreamError("database", err)
	}

	pair, _, err := s.tokenMgr.IssuePair(user.ID, user.Role)
	if err != nil {
		return domain.TokenPair{}, apperrors.NewInternalError(err)
	}
	if err := s.sessions.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return domain.TokenPair{}, apperrors.NewUpstreamError("session store", err)
	}
	return pair, nil
}

// Logout revokes the refresh token. Revoking an already-revoked or
// already-expired token is not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokenMgr.ParseRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil
		}
		return apperrors.NewUnauthorized("invalid refresh token")
	}
	if err := s.sessions.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return apperrors.NewUpstreamError("session store", err)
	}
	return nil
}

// GetUser loads an identity record by id.
func (s *AuthService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err, "user")
	}
	return user, nil
}

// ListUsers returns all identity records; admin only.
func (s *AuthService) ListUsers(ctx context.Context, principal *auth.Principal, limit, offset int) ([]domain.User, error) {
	if !auth.CanAccess(principal.UserID, principal.Role, auth.ActionListUsers, auth.Resource{}) {
		return nil, apperrors.NewForbidden("admin role required")
	}
	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.NewUpstreamError("database", err)
	}
	return users, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
