package handler

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/rbac-server/internal/api/grpc/rpc"
	"github.com/dtroode/rbac-server/internal/logger"
	"github.com/dtroode/rbac-server/internal/model"
)

// CredentialService defines login, token and password operations.
type CredentialService interface {
	Login(ctx context.Context, email, password string) (model.User, model.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	RequestPasswordReset(ctx context.Context, email string) error
	CompletePasswordReset(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, userID uuid.UUID, current, newPassword string) error
}

// AccessService resolves what a user holds.
type AccessService interface {
	RoleNames(ctx context.Context, user model.User) ([]string, error)
	GrantedKeys(ctx context.Context, user model.User) ([]string, error)
}

// UserReader loads users without credential fields.
type UserReader interface {
	GetUser(ctx context.Context, id uuid.UUID) (model.User, error)
}

var _ rpc.AuthServer = (*Auth)(nil)

// Auth handles gRPC endpoints for authentication.
type Auth struct {
	credentials    CredentialService
	access         AccessService
	users          UserReader
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuth creates a new Auth handler.
func NewAuth(
	credentials CredentialService,
	access AccessService,
	users UserReader,
	contextManager model.ContextManager,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		credentials:    credentials,
		access:         access,
		users:          users,
		contextManager: contextManager,
		logger:         logger,
	}
}

// Login checks credentials and returns a token pair.
func (h *Auth) Login(ctx context.Context, req *rpc.LoginRequest) (*rpc.LoginResponse, error) {
	h.logger.Debug("Auth handler: processing login request", "email", req.Email)

	if req.Email == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password are required")
	}

	user, pair, err := h.credentials.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.logger.Warn("Auth handler: login failed",
			"email", req.Email,
			"error", err.Error())
		return nil, handleError(err)
	}

	h.logger.Info("Auth handler: login completed", "userID", user.ID)

	return &rpc.LoginResponse{
		User:         rpc.FromUser(user),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// Refresh exchanges a refresh token for a new pair.
func (h *Auth) Refresh(ctx context.Context, req *rpc.RefreshRequest) (*rpc.TokenResponse, error) {
	h.logger.Debug("Auth handler: processing token refresh request")

	if req.RefreshToken == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh token is required")
	}

	pair, err := h.credentials.Refresh(ctx, req.RefreshToken)
	if err != nil {
		h.logger.Warn("Auth handler: token refresh failed", "error", err.Error())
		return nil, handleError(err)
	}

	h.logger.Info("Auth handler: token refresh successful")

	return &rpc.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// Logout revokes a refresh token.
func (h *Auth) Logout(ctx context.Context, req *rpc.RefreshRequest) (*rpc.Empty, error) {
	h.logger.Debug("Auth handler: processing logout request")

	if req.RefreshToken == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh token is required")
	}

	if err := h.credentials.Logout(ctx, req.RefreshToken); err != nil {
		h.logger.Warn("Auth handler: logout failed", "error", err.Error())
		return nil, handleError(err)
	}

	h.logger.Info("Auth handler: logout successful")
	return &rpc.Empty{}, nil
}

// RequestPasswordReset always succeeds for a well-formed request so that
// callers cannot probe which emails exist.
func (h *Auth) RequestPasswordReset(ctx context.Context, req *rpc.PasswordResetRequest) (*rpc.Empty, error) {
	if req.Email == "" {
		return nil, status.Error(codes.InvalidArgument, "email is required")
	}

	if err := h.credentials.RequestPasswordReset(ctx, req.Email); err != nil {
		h.logger.Error("Auth handler: password reset request failed", "error", err.Error())
		return nil, handleError(err)
	}
	return &rpc.Empty{}, nil
}

func (h *Auth) CompletePasswordReset(ctx context.Context, req *rpc.CompletePasswordResetRequest) (*rpc.Empty, error) {
	if req.Token == "" {
		return nil, status.Error(codes.InvalidArgument, "token is required")
	}

	if err := h.credentials.CompletePasswordReset(ctx, req.Token, req.NewPassword); err != nil {
		h.logger.Warn("Auth handler: password reset failed", "error", err.Error())
		return nil, handleError(err)
	}

	h.logger.Info("Auth handler: password reset completed")
	return &rpc.Empty{}, nil
}

// ChangePassword applies to the acting user only.
func (h *Auth) ChangePassword(ctx context.Context, req *rpc.ChangePasswordRequest) (*rpc.Empty, error) {
	userID, ok := h.contextManager.GetUserIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}

	if err := h.credentials.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword); err != nil {
		h.logger.Warn("Auth handler: password change failed",
			"userID", userID,
			"error", err.Error())
		return nil, handleError(err)
	}

	h.logger.Info("Auth handler: password changed", "userID", userID)
	return &rpc.Empty{}, nil
}

// Me returns the acting user with its role names and effective keys.
func (h *Auth) Me(ctx context.Context, _ *rpc.Empty) (*rpc.MeResponse, error) {
	userID, ok := h.contextManager.GetUserIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}

	user, err := h.users.GetUser(ctx, userID)
	if err != nil {
		return nil, handleError(err)
	}
	roles, err := h.access.RoleNames(ctx, user)
	if err != nil {
		return nil, handleError(err)
	}
	keys, err := h.access.GrantedKeys(ctx, user)
	if err != nil {
		return nil, handleError(err)
	}
	if roles == nil {
		roles = []string{}
	}
	if keys == nil {
		keys = []string{}
	}

	return &rpc.MeResponse{User: rpc.FromUser(user), Roles: roles, Permissions: keys}, nil
}
