package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dtroode/rbac-server/internal/model"
)

// TypeRefresh marks refresh tokens. Access tokens carry no type.
const TypeRefresh = "refresh"

// Claims represents the signed token payload.
type Claims struct {
	jwt.RegisteredClaims
	Email     string `json:"email"`
	Username  string `json:"username"`
	TokenType string `json:"tokenType,omitempty"`
}

// Config contains signing parameters for both token kinds.
type Config struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
}

// JWT implements TokenManager backed by symmetric HMAC.
type JWT struct {
	cfg Config
	now func() time.Time
}

var _ model.TokenManager = (*JWT)(nil)

// NewJWT creates a new JWT token manager.
func NewJWT(cfg Config) *JWT {
	return &JWT{cfg: cfg, now: time.Now}
}

// WithClock replaces the time source, used to sign and validate.
func (j *JWT) WithClock(now func() time.Time) *JWT {
	j.now = now
	return j
}

// GenerateAccessToken creates an access token for user.
func (j *JWT) GenerateAccessToken(user model.User) (model.IssuedToken, error) {
	issued, err := j.sign(user, "", j.cfg.AccessSecret, j.cfg.AccessTTL)
	if err != nil {
		return model.IssuedToken{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return issued, nil
}

// GenerateRefreshToken creates a refresh token with a fresh JTI.
func (j *JWT) GenerateRefreshToken(user model.User) (model.IssuedToken, error) {
	issued, err := j.sign(user, TypeRefresh, j.cfg.RefreshSecret, j.cfg.RefreshTTL)
	if err != nil {
		return model.IssuedToken{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return issued, nil
}

// ParseAccessToken validates an access token and returns its claims.
func (j *JWT) ParseAccessToken(tokenString string) (model.TokenClaims, error) {
	claims, err := j.parse(tokenString, j.cfg.AccessSecret)
	if err != nil {
		return model.TokenClaims{}, fmt.Errorf("failed to parse access token: %w", err)
	}
	if claims.TokenType != "" {
		return model.TokenClaims{}, fmt.Errorf("%w: %s", model.ErrTokenType, claims.TokenType)
	}
	return claims, nil
}

// ParseRefreshToken validates a refresh token and returns its claims.
func (j *JWT) ParseRefreshToken(tokenString string) (model.TokenClaims, error) {
	claims, err := j.parse(tokenString, j.cfg.RefreshSecret)
	if err != nil {
		return model.TokenClaims{}, fmt.Errorf("failed to parse refresh token: %w", err)
	}
	if claims.TokenType != TypeRefresh {
		return model.TokenClaims{}, fmt.Errorf("%w: %q", model.ErrTokenType, claims.TokenType)
	}
	return claims, nil
}

func (j *JWT) sign(user model.User, tokenType, secret string, ttl time.Duration) (model.IssuedToken, error) {
	now := j.now()
	expiresAt := now.Add(ttl)
	jti := uuid.NewString()

	registered := jwt.RegisteredClaims{
		ID:        jti,
		Subject:   user.ID.String(),
		Issuer:    j.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	if j.cfg.Audience != "" {
		registered.Audience = jwt.ClaimStrings{j.cfg.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: registered,
		Email:            user.Email,
		Username:         user.Username,
		TokenType:        tokenType,
	})

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return model.IssuedToken{}, err
	}

	return model.IssuedToken{Token: signed, JTI: jti, ExpiresAt: expiresAt}, nil
}

func (j *JWT) parse(tokenString, secret string) (model.TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
		jwt.WithExpirationRequired(),
	}
	if j.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.cfg.Issuer))
	}
	if j.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(j.cfg.Audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return model.TokenClaims{}, err
	}
	if !token.Valid {
		return model.TokenClaims{}, fmt.Errorf("token is invalid")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.TokenClaims{}, fmt.Errorf("invalid subject: %w", err)
	}

	out := model.TokenClaims{
		UserID:    userID,
		Email:     claims.Email,
		Username:  claims.Username,
		TokenType: claims.TokenType,
		JTI:       claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
