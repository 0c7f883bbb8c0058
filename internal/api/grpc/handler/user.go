package handler

import (
	"context"

	"github.com/google/uuid"

	"github.com/dtroode/rbac-server/internal/api/grpc/rpc"
	"github.com/dtroode/rbac-server/internal/logger"
	"github.com/dtroode/rbac-server/internal/model"
	"github.com/dtroode/rbac-server/internal/service"
)

// UserDirectory defines user use cases.
type UserDirectory interface {
	CreateUser(ctx context.Context, in service.CreateUserInput) (model.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, in service.UpdateUserInput) (model.User, error)
	UpdateUserRoles(ctx context.Context, id uuid.UUID, roleIDs []uuid.UUID) (model.User, error)
	SetUserStatus(ctx context.Context, id uuid.UUID, active bool) (model.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	RecordLogin(ctx context.Context, id uuid.UUID) error
	GetUser(ctx context.Context, id uuid.UUID) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]model.User, error)
	UsersPage(ctx context.Context, filter model.UserFilter, page model.PageRequest) (model.Page[model.User], error)
}

// PermissionResolver answers permission and role questions about a user.
type PermissionResolver interface {
	EffectivePermissions(ctx context.Context, userID uuid.UUID) ([]model.Permission, error)
	HasPermission(ctx context.Context, userID uuid.UUID, key string) (bool, error)
	HasAllPermissions(ctx context.Context, userID uuid.UUID, keys []string) (bool, error)
	HasAnyPermission(ctx context.Context, userID uuid.UUID, keys []string) (bool, error)
	HasRole(ctx context.Context, userID uuid.UUID, role string) (bool, error)
	HasAllRoles(ctx context.Context, userID uuid.UUID, roles []string) (bool, error)
	HasAnyRole(ctx context.Context, userID uuid.UUID, roles []string) (bool, error)
}

var _ rpc.UsersServer = (*User)(nil)

// User handles gRPC endpoints for users.
type User struct {
	directory UserDirectory
	resolver  PermissionResolver
	logger    *logger.Logger
}

// NewUser creates a new User handler.
func NewUser(directory UserDirectory, resolver PermissionResolver, logger *logger.Logger) *User {
	return &User{directory: directory, resolver: resolver, logger: logger}
}

func (h *User) Create(ctx context.Context, req *rpc.CreateUserRequest) (*rpc.User, error) {
	roleIDs, err := parseIDs("roleId", req.RoleIDs)
	if err != nil {
		return nil, handleError(err)
	}
	personID, err := parseOptionalID("personId", &req.PersonID)
	if err != nil {
		return nil, handleError(err)
	}

	u, err := h.directory.CreateUser(ctx, service.CreateUserInput{
		Email:           req.Email,
		Username:        req.Username,
		Password:        req.Password,
		PersonID:        personID,
		RoleIDs:         roleIDs,
		IsActive:        req.IsActive,
		IsEmailVerified: req.IsEmailVerified,
		AuthMethod:      model.AuthMethod(req.AuthMethod),
		ExternalAuth:    rpc.ToExternalAuth(req.ExternalAuth),
	})
	if err != nil {
		h.logger.Warn("User handler: create failed",
			"username", req.Username,
			"error", err.Error())
		return nil, handleError(err)
	}
	out := rpc.FromUser(u)
	return &out, nil
}

func (h *User) Update(ctx context.Context, req *rpc.UpdateUserRequest) (*rpc.User, error) {
	id, err := parseID("id", req.ID)
	if err != nil {
		return nil, handleError(err)
	}
	personID, err := parseOptionalID("personId", req.PersonID)
	if err != nil {
		return nil, handleError(err)
	}

	in := service.UpdateUserInput{
		Email:           req.Email,
		Username:        req.Username,
		Password:        req.Password,
		PersonID:        personID,
		IsActive:        req.IsActive,
		IsEmailVerified: req.IsEmailVerified,
		ExternalAuth:    rpc.ToExternalAuth(req.ExternalAuth),
	}
	if req.RoleIDs != nil {
		roleIDs, err := parseIDs("roleId", *req.RoleIDs)
		if err != nil {
			return nil, handleError(err)
		}
		in.RoleIDs = &roleIDs
	}
	if req.AuthMethod != nil {
		method := model.AuthMethod(*req.AuthMethod)
		in.AuthMethod = &method
	}

	u, err := h.directory.UpdateUser(ctx, id, in)
	if err != nil {
		h.logger.Warn("User handler: update failed",
			"userID", id,
			"error", err.Error())
		return nil, handleError(err)
	}
	out := rpc.FromUser(u)
	return &out, nil
}

func (h *User) UpdateRoles(ctx context.Context, req *rpc.UpdateUserRolesRequest) (*rpc.User, error) {
	id, err := parseID("id", req.ID)
	if err != nil {
		return nil, handleError(err)
	}
	roleIDs, err := parseIDs("roleId", req.RoleIDs)
	if err != nil {
		return nil, handleError(err)
	}

	u, err := h.directory.UpdateUserRoles(ctx, id, roleIDs)
	if err != nil {
		h.logger.Warn("User handler: role update failed",
			"userID", id,
			"error", err.Error())
		return nil, handleError(err)
	}
	out := rpc.FromUser(u)
	return &out, nil
}

func (h *User) SetStatus(ctx context.Context, req *rpc.SetUserStatusRequest) (*rpc.User, error) {
	id, err := parseID("id", req.ID)
	if err != nil {
		return nil, handleError(err)
	}
	u, err := h.directory.SetUserStatus(ctx, id, req.IsActive)
	if err != nil {
		return nil, handleError(err)
	}
	out := rpc.FromUser(u)
	return &out, nil
}

func (h *User) Delete(ctx context.Context, req *rpc.IDRequest) (*rpc.Empty, error) {
	id, err := parseID("id", req.ID)
	if err != nil {
		return nil, handleError(err)
	}
	if err := h.directory.DeleteUser(ctx, id); err != nil {
		h.logger.Warn("User handler: delete failed",
			"userID", id,
			"error", err.Error())
		return nil, handleError(err)
	}
	return &rpc.Empty{}, nil
}

func (h *User) RecordLogin(ctx context.Context, req *rpc.IDRequest) (*rpc.Empty, error) {
	id, err := parseID("id", req.ID)
	if err != nil {
		return nil, handleError(err)
	}
	if err := h.directory.RecordLogin(ctx, id); err != nil {
		return nil, handleError(err)
	}
	return &rpc.Empty{}, nil
}

func (h *User) Get(ctx context.Context, req *rpc.IDRequest) (*rpc.User, error) {
	id, err := parseID("id", req.ID)
	if err != nil {
		return nil, handleError(err)
	}
	u, err := h.directory.GetUser(ctx, id)
	if err != nil {
		return nil, handleError(err)
	}
	out := rpc.FromUser(u)
	return &out, nil
}

func (h *User) GetByEmail(ctx context.Context, req *rpc.EmailRequest) (*rpc.User, error) {
	u, err := h.directory.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, handleError(err)
	}
	out := rpc.FromUser(u)
	return &out, nil
}

func (h *User) GetByUsername(ctx context.Context, req *rpc.UsernameRequest) (*rpc.User, error) {
	u, err := h.directory.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return nil, handleError(err)
	}
	out := rpc.FromUser(u)
	return &out, nil
}

func (h *User) GetByIDs(ctx context.Context, req *rpc.IDsRequest) (*rpc.UserList, error) {
	ids, err := parseIDs("id", req.IDs)
	if err != nil {
		return nil, handleError(err)
	}
	us, err := h.directory.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, handleError(err)
	}
	return &rpc.UserList{Users: rpc.FromUsers(us)}, nil
}

func (h *User) List(ctx context.Context, req *rpc.ListUsersRequest) (*rpc.UserPage, error) {
	roleID, err := parseOptionalID("roleId", &req.RoleID)
	if err != nil {
		return nil, handleError(err)
	}

	page, err := h.directory.UsersPage(ctx,
		model.UserFilter{
			IsActive:   req.IsActive,
			RoleID:     roleID,
			AuthMethod: model.AuthMethod(req.AuthMethod),
			Search:     req.Search,
		},
		model.PageRequest{Page: req.Page, Limit: req.Limit})
	if err != nil {
		return nil, handleError(err)
	}
	return &rpc.UserPage{Users: rpc.FromUsers(page.Data), PageInfo: rpc.FromPage(page)}, nil
}

// Permissions returns the effective permissions of a user.
func (h *User) Permissions(ctx context.Context, req *rpc.IDRequest) (*rpc.PermissionList, error) {
	id, err := parseID("id", req.ID)
	if err != nil {
		return nil, handleError(err)
	}
	ps, err := h.resolver.EffectivePermissions(ctx, id)
	if err != nil {
		return nil, handleError(err)
	}
	return &rpc.PermissionList{Permissions: rpc.FromPermissions(ps)}, nil
}

func (h *User) VerifyPermission(ctx context.Context, req *rpc.VerifyPermissionRequest) (*rpc.VerifyResponse, error) {
	id, err := parseID("userId", req.UserID)
	if err != nil {
		return nil, handleError(err)
	}
	return verified(h.resolver.HasPermission(ctx, id, req.Key))
}

func (h *User) VerifyAllPermissions(ctx context.Context, req *rpc.VerifyPermissionsRequest) (*rpc.VerifyResponse, error) {
	id, err := parseID("userId", req.UserID)
	if err != nil {
		return nil, handleError(err)
	}
	return verified(h.resolver.HasAllPermissions(ctx, id, req.Keys))
}

func (h *User) VerifyAnyPermission(ctx context.Context, req *rpc.VerifyPermissionsRequest) (*rpc.VerifyResponse, error) {
	id, err := parseID("userId", req.UserID)
	if err != nil {
		return nil, handleError(err)
	}
	return verified(h.resolver.HasAnyPermission(ctx, id, req.Keys))
}

func (h *User) VerifyRole(ctx context.Context, req *rpc.VerifyRoleRequest) (*rpc.VerifyResponse, error) {
	id, err := parseID("userId", req.UserID)
	if err != nil {
		return nil, handleError(err)
	}
	return verified(h.resolver.HasRole(ctx, id, req.Role))
}

func (h *User) VerifyAllRoles(ctx context.Context, req *rpc.VerifyRolesRequest) (*rpc.VerifyResponse, error) {
	id, err := parseID("userId", req.UserID)
	if err != nil {
		return nil, handleError(err)
	}
	return verified(h.resolver.HasAllRoles(ctx, id, req.Roles))
}

func (h *User) VerifyAnyRole(ctx context.Context, req *rpc.VerifyRolesRequest) (*rpc.VerifyResponse, error) {
	id, err := parseID("userId", req.UserID)
	if err != nil {
		return nil, handleError(err)
	}
	return verified(h.resolver.HasAnyRole(ctx, id, req.Roles))
}

func verified(granted bool, err error) (*rpc.VerifyResponse, error) {
	if err != nil {
		return nil, handleError(err)
	}
	return &rpc.VerifyResponse{Granted: granted}, nil
}
