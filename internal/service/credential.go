package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/rbac-server/internal/apierror"
	"github.com/dtroode/rbac-server/internal/logger"
	"github.com/dtroode/rbac-server/internal/model"
)

// DefaultResetTTL is how long a password-reset token stays usable.
const DefaultResetTTL = 24 * time.Hour

const resetTokenBytes = 32

// Credential handles passwords, sessions and password resets.
type Credential struct {
	users    model.UserStore
	hasher   model.PasswordHasher
	tokens   *TokenService
	notifier model.Notifier
	resetTTL time.Duration
	logger   *logger.Logger
	now      func() time.Time
}

func NewCredential(
	users model.UserStore,
	hasher model.PasswordHasher,
	tokens *TokenService,
	notifier model.Notifier,
	resetTTL time.Duration,
	logger *logger.Logger,
) *Credential {
	if resetTTL <= 0 {
		resetTTL = DefaultResetTTL
	}
	return &Credential{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		resetTTL: resetTTL,
		logger:   logger,
		now:      time.Now,
	}
}

func (c *Credential) HashPassword(plaintext string) (string, error) {
	return c.hasher.Hash(plaintext)
}

func (c *Credential) VerifyPassword(plaintext, hash string) bool {
	return c.hasher.Verify(plaintext, hash)
}

// Authenticate returns nil without error when the user is unknown, inactive,
// not local or the password does not match.
func (c *Credential) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	email = normalizeEmail(email)
	user, err := c.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, nil
		}
		c.logger.Error("Credential service: failed to get user by email",
			"email", email,
			"error", err.Error())
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	if !user.IsActive || user.AuthMethod != model.AuthMethodLocal {
		return nil, nil
	}
	if !c.hasher.Verify(password, user.PasswordHash) {
		c.logger.Info("Credential service: password mismatch", "userID", user.ID)
		return nil, nil
	}

	now := c.now().UTC()
	if err := c.users.SetLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	user.LastLogin = &now

	sanitized := user.Sanitized()
	return &sanitized, nil
}

// Login authenticates and issues a token pair.
func (c *Credential) Login(ctx context.Context, email, password string) (model.User, model.TokenPair, error) {
	user, err := c.Authenticate(ctx, email, password)
	if err != nil {
		return model.User{}, model.TokenPair{}, err
	}
	if user == nil {
		return model.User{}, model.TokenPair{}, apierror.NewErrUnauthenticated("invalid credentials")
	}

	pair, err := c.IssueTokens(ctx, *user)
	if err != nil {
		return model.User{}, model.TokenPair{}, err
	}

	c.logger.Info("Credential service: user logged in", "userID", user.ID)
	return *user, pair, nil
}

func (c *Credential) IssueTokens(ctx context.Context, user model.User) (model.TokenPair, error) {
	pair, err := c.tokens.Issue(ctx, user, "")
	if err != nil {
		c.logger.Error("Credential service: failed to issue tokens",
			"userID", user.ID,
			"error", err.Error())
		return model.TokenPair{}, fmt.Errorf("failed to issue tokens: %w", err)
	}
	return pair, nil
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued for the reloaded user.
func (c *Credential) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	claims, err := c.tokens.Consume(ctx, refreshToken)
	if err != nil {
		return model.TokenPair{}, err
	}

	user, err := c.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.TokenPair{}, apierror.NewErrInvalidToken()
		}
		return model.TokenPair{}, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsActive {
		return model.TokenPair{}, apierror.NewErrInvalidToken()
	}

	pair, err := c.tokens.Issue(ctx, user, claims.JTI)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("failed to rotate tokens: %w", err)
	}
	return pair, nil
}

// Logout revokes one refresh token.
func (c *Credential) Logout(ctx context.Context, refreshToken string) error {
	return c.tokens.RevokeByToken(ctx, refreshToken)
}

// RequestPasswordReset always succeeds for the caller. Known emails get a
// fresh token handed to the notifier.
func (c *Credential) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	user, err := c.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			c.logger.Debug("Credential service: password reset for unknown email")
			return nil
		}
		return fmt.Errorf("failed to get user by email: %w", err)
	}

	token, err := newResetToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}
	expires := c.now().Add(c.resetTTL).UTC()
	if err := c.users.SetPasswordResetToken(ctx, user.ID, token, expires); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	if err := c.notifier.SendPasswordReset(ctx, user.Email, token); err != nil {
		c.logger.Error("Credential service: failed to send password reset",
			"userID", user.ID,
			"error", err.Error())
	}
	return nil
}

// CompletePasswordReset sets a new password for the holder of a valid reset
// token. The store clears the token in the same write that checks it, so it
// works once even under concurrent use.
func (c *Credential) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	if newPassword == "" {
		return apierror.NewErrPasswordRequired()
	}

	hash, err := c.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	userID, err := c.users.ConsumeResetToken(ctx, token, c.now(), hash)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return apierror.NewErrInvalidOrExpiredToken()
		}
		return fmt.Errorf("failed to consume reset token: %w", err)
	}
	if err := c.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return err
	}

	c.logger.Info("Credential service: password reset completed", "userID", userID)
	return nil
}

// ChangePassword requires the current password of a local user.
func (c *Credential) ChangePassword(ctx context.Context, userID uuid.UUID, current, newPassword string) error {
	user, err := c.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return apierror.NewErrNotFound("user", "id", userID.String())
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user.AuthMethod != model.AuthMethodLocal || newPassword == "" {
		return apierror.NewErrPasswordRequired()
	}
	if !c.hasher.Verify(current, user.PasswordHash) {
		return apierror.NewErrInvalidArgument("current password is incorrect")
	}

	return c.setPassword(ctx, user.ID, newPassword)
}

// VerifyAccessToken checks an access token and returns its claims.
func (c *Credential) VerifyAccessToken(token string) (model.TokenClaims, error) {
	return c.tokens.VerifyAccess(token)
}

func (c *Credential) setPassword(ctx context.Context, userID uuid.UUID, password string) error {
	hash, err := c.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := c.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if err := c.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return err
	}
	return nil
}

func newResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
