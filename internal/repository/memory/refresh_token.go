package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/dtroode/rbac-server/internal/model"
)

var _ model.RefreshTokenStore = (*RefreshTokenRepository)(nil)

type RefreshTokenRepository struct {
	scope scope
}

func (r *RefreshTokenRepository) Create(_ context.Context, token model.RefreshToken) error {
	return r.scope.write(func(st *state) error {
		if _, ok := st.refreshTokens[token.JTI]; ok {
			return &model.ConflictError{Entity: "refresh token", Field: "jti"}
		}
		if token.ID == uuid.Nil {
			token.ID = uuid.New()
		}
		now := r.scope.now()
		token.CreatedAt, token.UpdatedAt = now, now
		st.refreshTokens[token.JTI] = token
		return nil
	})
}

func (r *RefreshTokenRepository) GetByJTI(_ context.Context, jti string) (model.RefreshToken, error) {
	var out model.RefreshToken
	err := r.scope.read(func(st *state) error {
		rt, ok := st.refreshTokens[jti]
		if !ok {
			return model.ErrNotFound
		}
		out = rt
		return nil
	})
	return out, err
}

func (r *RefreshTokenRepository) RevokeByJTI(_ context.Context, jti string) error {
	return r.scope.write(func(st *state) error {
		rt, ok := st.refreshTokens[jti]
		if !ok || rt.RevokedAt != nil {
			return nil
		}
		now := r.scope.now()
		rt.RevokedAt = &now
		rt.UpdatedAt = now
		st.refreshTokens[jti] = rt
		return nil
	})
}

func (r *RefreshTokenRepository) RevokeAllByUser(_ context.Context, userID uuid.UUID) error {
	return r.scope.write(func(st *state) error {
		now := r.scope.now()
		for jti, rt := range st.refreshTokens {
			if rt.UserID == userID && rt.RevokedAt == nil {
				rt.RevokedAt = &now
				rt.UpdatedAt = now
				st.refreshTokens[jti] = rt
			}
		}
		return nil
	})
}
