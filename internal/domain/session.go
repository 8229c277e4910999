package domain

import "time"

// TokenType differentiates access from refresh tokens inside claims.
type TokenType string

const (
	TokenTypeAccess  TokenType = "ACCESS"
	TokenTypeRefresh TokenType = "REFRESH"
)

// TokenPair is the credential set issued on login and refresh. The access
// token is short-lived and validated statelessly; the refresh token is
// long-lived, revocable, and rotated on every use.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
