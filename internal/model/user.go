package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserStore defines persistence operations for users.
type UserStore interface {
	Create(ctx context.Context, user User) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]User, error)
	CountByRole(ctx context.Context, roleID uuid.UUID) (int, error)
	Find(ctx context.Context, filter UserFilter) ([]User, error)
	FindPage(ctx context.Context, filter UserFilter, page PageRequest) (Page[User], error)
	Update(ctx context.Context, id uuid.UUID, patch UserPatch) (User, error)
	SetRoles(ctx context.Context, id uuid.UUID, roleIDs []uuid.UUID) (User, error)
	SetLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	SetPasswordResetToken(ctx context.Context, id uuid.UUID, token string, expires time.Time) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	// ConsumeResetToken sets passwordHash on the user holding token if it has
	// not expired at now, and clears the token in the same write. It returns
	// ErrNotFound when no live token matches.
	ConsumeResetToken(ctx context.Context, token string, now time.Time, passwordHash string) (uuid.UUID, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// AuthMethod is the way a user proves its identity.
type AuthMethod string

const (
	AuthMethodLocal     AuthMethod = "local"
	AuthMethodGoogle    AuthMethod = "google"
	AuthMethodFacebook  AuthMethod = "facebook"
	AuthMethodApple     AuthMethod = "apple"
	AuthMethodMicrosoft AuthMethod = "microsoft"
)

// Valid reports whether m is one of the known methods.
func (m AuthMethod) Valid() bool {
	switch m {
	case AuthMethodLocal, AuthMethodGoogle, AuthMethodFacebook, AuthMethodApple, AuthMethodMicrosoft:
		return true
	}
	return false
}

// ExternalAuth links a user to an identity at an external provider.
type ExternalAuth struct {
	Provider   string
	ProviderID string
}

// User is an account that acts on the system through its roles.
type User struct {
	ID                   uuid.UUID
	Email                string
	Username             string
	PasswordHash         string
	PersonID             *uuid.UUID
	RoleIDs              []uuid.UUID
	IsActive             bool
	IsEmailVerified      bool
	AuthMethod           AuthMethod
	ExternalAuth         *ExternalAuth
	PasswordResetToken   string
	PasswordResetExpires *time.Time
	LastLogin            *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Sanitized returns a copy without password and reset material.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
	return u
}

// UserPatch holds the user fields a store update may change.
type UserPatch struct {
	Email           *string
	Username        *string
	PasswordHash    *string
	PersonID        *uuid.UUID
	IsActive        *bool
	IsEmailVerified *bool
	AuthMethod      *AuthMethod
	ExternalAuth    *ExternalAuth
}

// UserFilter narrows user listings.
type UserFilter struct {
	IsActive   *bool
	RoleID     *uuid.UUID
	AuthMethod AuthMethod
	Search     string
}
