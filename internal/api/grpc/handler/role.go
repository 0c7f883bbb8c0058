package handler

import (
	"context"

	"github.com/google/uuid"

	"github.com/dtroode/rbac-server/internal/api/grpc/rpc"
	"github.com/dtroode/rbac-server/internal/logger"
	"github.com/dtroode/rbac-server/internal/model"
	"github.com/dtroode/rbac-server/internal/service"
)

// RoleDirectory defines role use cases.
type RoleDirectory interface {
	CreateRole(ctx context.Context, in service.CreateRoleInput) (model.Role, error)
	UpdateRole(ctx context.Context, id uuid.UUID, patch model.RolePatch) (model.Role, error)
	AssignPermissionsToRole(ctx context.Context, id uuid.UUID, permissionIDs []uuid.UUID) (model.Role, error)
	DeleteRole(ctx context.Context, id uuid.UUID) error
	GetRole(ctx context.Context, id uuid.UUID) (model.Role, error)
	GetRoleByName(ctx context.Context, name string) (model.Role, error)
	GetRolesByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Role, error)
	RolesByPermission(ctx context.Context, permissionID uuid.UUID) ([]model.Role, error)
	RolesByPermissionKey(ctx context.Context, key string) ([]model.Role, error)
	SystemRoles(ctx context.Context) ([]model.Role, error)
	RolesPage(ctx context.Context, filter model.RoleFilter, page model.PageRequest) (model.Page[model.Role], error)
	RolePermissions(ctx context.Context, id uuid.UUID) ([]model.Permission, error)
}

var _ rpc.RolesServer = (*Role)(nil)

// Role handles gRPC endpoints for roles.
type Role struct {
	directory RoleDirectory
	logger    *logger.Logger
}

// NewRole creates a new Role handler.
func NewRole(directory RoleDirectory, logger *logger.Logger) *Role {
	return &Role{directory: directory, logger: logger}
}

func (h *Role) Create(ctx context.Context, req *rpc.CreateRoleRequest) (*rpc.Role, error) {
	permIDs, err := parseIDs("permissionId", req.PermissionIDs)
	if err != nil {
		return nil, handleError(err)
	}

	r, err := h.directory.CreateRole(ctx, service.CreateRoleInput{
		Name:          req.Name,
		Description:   req.Description,
		PermissionIDs: permIDs,
	})
	if err != nil {
		h.logger.Warn("Role handler: create failed",
			"name", req.Name,
			"error", err.Error())
		return nil, handleError(err)
	}
	out := rpc.FromRole(r)
	return &out, nil
}

func (h *Role) Update(ctx context.Context, req *rpc.UpdateRoleRequest) (*rpc.Role, error) {
	id, err := parseID("id", req.ID)
	if err != nil {
		return nil, handleError(err)
	}

	r, err := h.directory.UpdateRole(ctx, id, model.RolePatch{Name: req.Name, Description: req.Description})
	if err != nil {
		h.logger.Warn("Role handler: update failed",
			"roleID", id,
			"error", err.Error())
		return nil, handleError(err)
	}
	out := rpc.FromRole(r)
	return &out, nil
}

func (h *Role) AssignPermissions(ctx context.Context, req *rpc.AssignPermissionsRequest) (*rpc.Role, error) {
	id, err := parseID("id", req.ID)
	if err != nil {
		return nil, handleError(err)
	}
	permIDs, err := parseIDs("permissionId", req.PermissionIDs)
	if err != nil {
		return nil, handleError(err)
	}

	r, err := h.directory.AssignPermissionsToRole(ctx, id, permIDs)
	if err != nil {
		h.logger.Warn("Role handler: permission assignment failed",
			"roleID", id,
			"error", err.Error())
		return nil, handleError(err)
	}
	out := rpc.FromRole(r)
	return &out, nil
}

func (h *Role) Delete(ctx context.Context, req *rpc.IDRequest) (*rpc.Empty, error) {
	id, err := parseID("id", req.ID)
	if err != nil {
		return nil, handleError(err)
	}
	if err := h.directory.DeleteRole(ctx, id); err != nil {
		h.logger.Warn("Role handler: delete failed",
			"roleID", id,
			"error", err.Error())
		return nil, handleError(err)
	}
	return &rpc.Empty{}, nil
}

func (h *Role) Get(ctx context.Context, req *rpc.IDRequest) (*rpc.Role, error) {
	id, err := parseID("id", req.ID)
	if err != nil {
		return nil, handleError(err)
	}
	r, err := h.directory.GetRole(ctx, id)
	if err != nil {
		return nil, handleError(err)
	}
	out := rpc.FromRole(r)
	return &out, nil
}

func (h *Role) GetByName(ctx context.Context, req *rpc.NameRequest) (*rpc.Role, error) {
	r, err := h.directory.GetRoleByName(ctx, req.Name)
	if err != nil {
		return nil, handleError(err)
	}
	out := rpc.FromRole(r)
	return &out, nil
}

func (h *Role) GetByIDs(ctx context.Context, req *rpc.IDsRequest) (*rpc.RoleList, error) {
	ids, err := parseIDs("id", req.IDs)
	if err != nil {
		return nil, handleError(err)
	}
	rs, err := h.directory.GetRolesByIDs(ctx, ids)
	if err != nil {
		return nil, handleError(err)
	}
	return &rpc.RoleList{Roles: rpc.FromRoles(rs)}, nil
}

func (h *Role) List(ctx context.Context, req *rpc.ListRolesRequest) (*rpc.RolePage, error) {
	page, err := h.directory.RolesPage(ctx,
		model.RoleFilter{IsSystem: req.IsSystem, Search: req.Search},
		model.PageRequest{Page: req.Page, Limit: req.Limit})
	if err != nil {
		return nil, handleError(err)
	}
	return &rpc.RolePage{Roles: rpc.FromRoles(page.Data), PageInfo: rpc.FromPage(page)}, nil
}

func (h *Role) ListByPermission(ctx context.Context, req *rpc.IDRequest) (*rpc.RoleList, error) {
	id, err := parseID("id", req.ID)
	if err != nil {
		return nil, handleError(err)
	}
	rs, err := h.directory.RolesByPermission(ctx, id)
	if err != nil {
		return nil, handleError(err)
	}
	return &rpc.RoleList{Roles: rpc.FromRoles(rs)}, nil
}

func (h *Role) ListByPermissionKey(ctx context.Context, req *rpc.KeyRequest) (*rpc.RoleList, error) {
	rs, err := h.directory.RolesByPermissionKey(ctx, req.Key)
	if err != nil {
		return nil, handleError(err)
	}
	return &rpc.RoleList{Roles: rpc.FromRoles(rs)}, nil
}

func (h *Role) ListSystem(ctx context.Context, _ *rpc.Empty) (*rpc.RoleList, error) {
	rs, err := h.directory.SystemRoles(ctx)
	if err != nil {
		return nil, handleError(err)
	}
	return &rpc.RoleList{Roles: rpc.FromRoles(rs)}, nil
}

func (h *Role) Permissions(ctx context.Context, req *rpc.IDRequest) (*rpc.PermissionList, error) {
	id, err := parseID("id", req.ID)
	if err != nil {
		return nil, handleError(err)
	}
	ps, err := h.directory.RolePermissions(ctx, id)
	if err != nil {
		return nil, handleError(err)
	}
	return &rpc.PermissionList{Permissions: rpc.FromPermissions(ps)}, nil
}
