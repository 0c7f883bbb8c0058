package model

import (
	"time"

	"github.com/google/uuid"
)

// TokenClaims is the verified payload of an access or refresh token.
type TokenClaims struct {
	UserID    uuid.UUID
	Email     string
	Username  string
	TokenType string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IssuedToken is a signed token together with its identifying claims.
type IssuedToken struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// TokenPair is returned on login and refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenManager generates and validates access/refresh tokens.
type TokenManager interface {
	GenerateAccessToken(user User) (IssuedToken, error)
	GenerateRefreshToken(user User) (IssuedToken, error)
	ParseAccessToken(token string) (TokenClaims, error)
	ParseRefreshToken(token string) (TokenClaims, error)
}
