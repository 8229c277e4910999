package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/session"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

func domainCode(t *testing.T, err error) string {
	t.Helper()
	var de *apperrors.DomainError
	require.ErrorAs(t, err, &de)
	return de.Code
}

func TestRegisterCreatesCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.authSvc.Register(ctx, "Ada", "Ada@Example.com", "sturdy-pass1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCustomer, user.Role)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "sturdy-pass1", user.PasswordHash)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.authSvc.Register(ctx, "", "ada@example.com", "sturdy-pass1")
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))

	_, err = f.authSvc.Register(ctx, "Ada", "not-an-email", "sturdy-pass1")
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))

	_, err = f.authSvc.Register(ctx, "Ada", "ada@example.com", "short1")
	assert.Equal(t, "WEAK_PASSWORD", domainCode(t, err))
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.authSvc.Register(ctx, "Ada", "ada@example.com", "sturdy-pass1")
	require.NoError(t, err)

	// Case-insensitive duplicate.
	_, err = f.authSvc.Register(ctx, "Ada Again", "ADA@example.com", "sturdy-pass1")
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.authSvc.Register(ctx, "Ada", "ada@example.com", "sturdy-pass1")
	require.NoError(t, err)

	_, _, errWrongPassword := f.authSvc.Login(ctx, "ada@example.com", "wrong-pass1")
	_, _, errUnknownEmail := f.authSvc.Login(ctx, "nobody@example.com", "sturdy-pass1")

	var deWrong, deUnknown *apperrors.DomainError
	require.ErrorAs(t, errWrongPassword, &deWrong)
	require.ErrorAs(t, errUnknownEmail, &deUnknown)
	assert.Equal(t, deWrong.Code, deUnknown.Code)
	assert.Equal(t, deWrong.Message, deUnknown.Message)
	assert.Equal(t, deWrong.HTTPStatus, deUnknown.HTTPStatus)
	assert.Empty(t, deWrong.Details)
	assert.Empty(t, deUnknown.Details)
}

func TestLoginIssuesTokenPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.authSvc.Register(ctx, "Ada", "ada@example.com", "sturdy-pass1")
	require.NoError(t, err)

	user, pair, err := f.authSvc.Login(ctx, "ada@example.com", "sturdy-pass1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	claims, err := f.authSvc.TokenManager().ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, domain.RoleCustomer, claims.Role)
}

func TestRefreshRotatesAndRevokesOldToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.authSvc.Register(ctx, "Ada", "ada@example.com", "sturdy-pass1")
	require.NoError(t, err)
	_, pair, err := f.authSvc.Login(ctx, "ada@example.com", "sturdy-pass1")
	require.NoError(t, err)

	rotated, err := f.authSvc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// The old refresh token was revoked by the rotation.
	_, err = f.authSvc.Refresh(ctx, pair.RefreshToken)
	assert.Equal(t, "SESSION_REVOKED", domainCode(t, err))

	// The rotated one still works.
	_, err = f.authSvc.Refresh(ctx, rotated.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshFailsClosedOnStoreOutage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.authSvc.Register(ctx, "Ada", "ada@example.com", "sturdy-pass1")
	require.NoError(t, err)
	_, pair, err := f.authSvc.Login(ctx, "ada@example.com", "sturdy-pass1")
	require.NoError(t, err)

	f.sessions.FailWith = errors.Join(session.ErrStoreUnavailable, errors.New("connection refused"))
	_, err = f.authSvc.Refresh(ctx, pair.RefreshToken)
	assert.Equal(t, "UPSTREAM", domainCode(t, err))
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.authSvc.Register(ctx, "Ada", "ada@example.com", "sturdy-pass1")
	require.NoError(t, err)
	_, pair, err := f.authSvc.Login(ctx, "ada@example.com", "sturdy-pass1")
	require.NoError(t, err)

	require.NoError(t, f.authSvc.Logout(ctx, pair.RefreshToken))
	require.NoError(t, f.authSvc.Logout(ctx, pair.RefreshToken))

	_, err = f.authSvc.Refresh(ctx, pair.RefreshToken)
	assert.Equal(t, "SESSION_REVOKED", domainCode(t, err))
}

func TestListUsersAdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin := f.seedUser(t, "root", domain.RoleAdmin)
	staff := f.seedUser(t, "agent", domain.RoleStaff)

	users, err := f.authSvc.ListUsers(ctx, admin, 50, 0)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	_, err = f.authSvc.ListUsers(ctx, staff, 50, 0)
	assert.Equal(t, "FORBIDDEN", domainCode(t, err))
}
