// Package guard decides whether an authenticated caller may run an action.
package guard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dtroode/rbac-server/internal/apierror"
	"github.com/dtroode/rbac-server/internal/logger"
	"github.com/dtroode/rbac-server/internal/model"
)

// Decision outcomes reported to the Recorder.
const (
	OutcomePublic          = "public"
	OutcomeAdmitted        = "admitted"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeForbidden       = "forbidden"
	OutcomeError           = "error"
)

// Policy is the access requirement of one action. Empty role and permission
// lists admit any authenticated user on that axis.
type Policy struct {
	RequiredRoles       []string
	RequiredPermissions []string
	Public              bool
}

// Authenticator verifies bearer tokens.
type Authenticator interface {
	VerifyAccessToken(token string) (model.TokenClaims, error)
}

// Authorizer resolves what a loaded user holds.
type Authorizer interface {
	RoleNames(ctx context.Context, user model.User) ([]string, error)
	GrantedKeys(ctx context.Context, user model.User) ([]string, error)
}

// Recorder counts decisions.
type Recorder interface {
	ObserveDecision(outcome string)
}

type Guard struct {
	authn    Authenticator
	users    model.UserStore
	authz    Authorizer
	recorder Recorder
	logger   *logger.Logger
}

// New creates a Guard. recorder may be nil.
func New(authn Authenticator, users model.UserStore, authz Authorizer, recorder Recorder, logger *logger.Logger) *Guard {
	return &Guard{authn: authn, users: users, authz: authz, recorder: recorder, logger: logger}
}

// Admit runs the decision procedure and returns the acting user. Public
// actions are admitted without a user.
func (g *Guard) Admit(ctx context.Context, policy Policy, bearer string) (*model.User, error) {
	user, outcome, err := g.admit(ctx, policy, bearer)
	if g.recorder != nil {
		g.recorder.ObserveDecision(outcome)
	}
	return user, err
}

func (g *Guard) admit(ctx context.Context, policy Policy, bearer string) (*model.User, string, error) {
	if policy.Public {
		return nil, OutcomePublic, nil
	}

	if bearer == "" {
		return nil, OutcomeUnauthenticated, apierror.NewErrUnauthenticated("missing bearer token")
	}
	claims, err := g.authn.VerifyAccessToken(bearer)
	if err != nil {
		g.logger.Debug("Guard: token rejected", "error", err.Error())
		return nil, OutcomeUnauthenticated, apierror.NewErrUnauthenticated("invalid or expired token")
	}

	user, err := g.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, OutcomeUnauthenticated, apierror.NewErrUnauthenticated("user not found")
		}
		return nil, OutcomeError, fmt.Errorf("failed to load acting user: %w", err)
	}
	if !user.IsActive {
		return nil, OutcomeUnauthenticated, apierror.NewErrUnauthenticated("user is inactive")
	}

	if len(policy.RequiredRoles) > 0 {
		names, err := g.authz.RoleNames(ctx, user)
		if err != nil {
			return nil, OutcomeError, err
		}
		if !anyRole(names, policy.RequiredRoles) {
			g.deny(user.ID, "role")
			return nil, OutcomeForbidden, apierror.NewErrUnauthorized("insufficient role")
		}
	}

	if len(policy.RequiredPermissions) > 0 {
		keys, err := g.authz.GrantedKeys(ctx, user)
		if err != nil {
			return nil, OutcomeError, err
		}
		if !anyKey(keys, policy.RequiredPermissions) {
			g.deny(user.ID, "permission")
			return nil, OutcomeForbidden, apierror.NewErrUnauthorized("insufficient permissions")
		}
	}

	sanitized := user.Sanitized()
	return &sanitized, OutcomeAdmitted, nil
}

func (g *Guard) deny(userID uuid.UUID, axis string) {
	g.logger.Info("Guard: access denied", "userID", userID, "axis", axis)
}

func anyRole(held, required []string) bool {
	for _, want := range required {
		for _, have := range held {
			if strings.EqualFold(want, have) {
				return true
			}
		}
	}
	return false
}

func anyKey(held, required []string) bool {
	set := make(map[string]struct{}, len(held))
	for _, k := range held {
		set[k] = struct{}{}
	}
	for _, want := range required {
		if _, ok := set[want]; ok {
			return true
		}
	}
	return false
}
