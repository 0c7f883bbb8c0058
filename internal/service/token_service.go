package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/rbac-server/internal/apierror"
	"github.com/dtroode/rbac-server/internal/logger"
	"github.com/dtroode/rbac-server/internal/model"
)

// TokenService provides high-level operations for issuing, rotating,
// and revoking tokens. It composes the TokenManager and RefreshTokenStore.
type TokenService struct {
	manager model.TokenManager
	store   model.RefreshTokenStore
	logger  *logger.Logger
	now     func() time.Time
}

func NewTokenService(manager model.TokenManager, store model.RefreshTokenStore, logger *logger.Logger) *TokenService {
	return &TokenService{manager: manager, store: store, logger: logger, now: time.Now}
}

// Issue signs a new pair for user and persists the refresh half. A non-empty
// rotatedFrom links the new refresh token to the one it replaces.
func (s *TokenService) Issue(ctx context.Context, user model.User, rotatedFrom string) (model.TokenPair, error) {
	access, err := s.manager.GenerateAccessToken(user)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("issue access: %w", err)
	}

	refresh, err := s.manager.GenerateRefreshToken(user)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("issue refresh: %w", err)
	}

	now := s.now()
	rt := model.RefreshToken{
		ID:        uuid.New(),
		JTI:       refresh.JTI,
		UserID:    user.ID,
		TokenHash: hashRefresh(refresh.Token),
		IssuedAt:  now,
		ExpiresAt: refresh.ExpiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if rotatedFrom != "" {
		rt.RotatedFromJTI = &rotatedFrom
	}

	if err := s.store.Create(ctx, rt); err != nil {
		return model.TokenPair{}, fmt.Errorf("persist refresh: %w", err)
	}

	return model.TokenPair{AccessToken: access.Token, RefreshToken: refresh.Token}, nil
}

// Consume validates a presented refresh token against its stored record and
// revokes it, so each refresh token is accepted at most once.
func (s *TokenService) Consume(ctx context.Context, presentedRefresh string) (model.TokenClaims, error) {
	claims, err := s.manager.ParseRefreshToken(presentedRefresh)
	if err != nil {
		s.logger.Debug("Token service: refresh token rejected", "error", err.Error())
		return model.TokenClaims{}, apierror.NewErrInvalidToken()
	}

	rt, err := s.store.GetByJTI(ctx, claims.JTI)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.TokenClaims{}, apierror.NewErrInvalidToken()
		}
		return model.TokenClaims{}, fmt.Errorf("load refresh: %w", err)
	}

	if err := validateRecord(rt, claims.UserID, hashRefresh(presentedRefresh), s.now()); err != nil {
		s.logger.Warn("Token service: stored refresh token rejected",
			"jti", claims.JTI,
			"userID", claims.UserID,
			"error", err.Error())
		return model.TokenClaims{}, apierror.NewErrInvalidToken()
	}

	if err := s.store.RevokeByJTI(ctx, claims.JTI); err != nil {
		return model.TokenClaims{}, fmt.Errorf("revoke old refresh: %w", err)
	}

	return claims, nil
}

// RevokeByToken revokes a single refresh token.
func (s *TokenService) RevokeByToken(ctx context.Context, presentedRefresh string) error {
	claims, err := s.manager.ParseRefreshToken(presentedRefresh)
	if err != nil {
		return apierror.NewErrInvalidToken()
	}
	if err := s.store.RevokeByJTI(ctx, claims.JTI); err != nil {
		return fmt.Errorf("revoke refresh: %w", err)
	}
	return nil
}

func (s *TokenService) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.RevokeAllByUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

// VerifyAccess checks signature and expiry of an access token.
func (s *TokenService) VerifyAccess(token string) (model.TokenClaims, error) {
	return s.manager.ParseAccessToken(token)
}

func hashRefresh(token string) []byte {
	h := sha256.Sum256([]byte(token))
	return h[:]
}

func validateRecord(rt model.RefreshToken, userID uuid.UUID, presentedHash []byte, now time.Time) error {
	if rt.RevokedAt != nil {
		return model.ErrTokenRevoked
	}
	if now.After(rt.ExpiresAt) {
		return model.ErrTokenExpired
	}
	if rt.UserID != userID || !equalBytes(rt.TokenHash, presentedHash) {
		return model.ErrTokenMismatch
	}
	return nil
}

func equalBytes(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
