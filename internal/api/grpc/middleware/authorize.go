package middleware

import (
	"context"
	"errors"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/rbac-server/internal/apierror"
	"github.com/dtroode/rbac-server/internal/guard"
	"github.com/dtroode/rbac-server/internal/logger"
	"github.com/dtroode/rbac-server/internal/model"
)

// Admitter decides whether a bearer may run an action under a policy.
type Admitter interface {
	Admit(ctx context.Context, policy guard.Policy, bearer string) (*model.User, error)
}

// Authorize runs the access guard for every call it is attached to and
// injects the acting user id into the context.
type Authorize struct {
	guard          Admitter
	policies       map[string]guard.Policy
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthorize creates the middleware. policies is keyed by full method
// name; a method without an entry requires authentication only.
func NewAuthorize(g Admitter, policies map[string]guard.Policy, contextManager model.ContextManager, logger *logger.Logger) *Authorize {
	return &Authorize{guard: g, policies: policies, contextManager: contextManager, logger: logger}
}

// AuthFunc reads the bearer token, looks up the method policy and admits
// or rejects the call.
func (m *Authorize) AuthFunc(ctx context.Context) (context.Context, error) {
	method, _ := grpc.Method(ctx)
	policy := m.policies[method]

	// A missing or malformed header leaves bearer empty; the guard rejects it.
	bearer, _ := auth.AuthFromMD(ctx, "bearer")

	user, err := m.guard.Admit(ctx, policy, bearer)
	if err != nil {
		return nil, toStatus(err)
	}
	if user == nil {
		return ctx, nil
	}
	return m.contextManager.SetUserIDToContext(ctx, user.ID), nil
}

func toStatus(err error) error {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		return status.Error(apiErr.GRPCCode, apiErr.Message)
	}
	return status.Error(codes.Internal, "internal server error")
}
