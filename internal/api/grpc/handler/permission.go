package handler

import (
	"context"

	"github.com/google/uuid"

	"github.com/dtroode/rbac-server/internal/api/grpc/rpc"
	"github.com/dtroode/rbac-server/internal/logger"
	"github.com/dtroode/rbac-server/internal/model"
	"github.com/dtroode/rbac-server/internal/service"
)

// PermissionDirectory defines permission use cases.
type PermissionDirectory interface {
	CreatePermission(ctx context.Context, in service.CreatePermissionInput) (model.Permission, error)
	UpdatePermission(ctx context.Context, id uuid.UUID, patch model.PermissionPatch) (model.Permission, error)
	DeletePermission(ctx context.Context, id uuid.UUID) error
	GetPermission(ctx context.Context, id uuid.UUID) (model.Permission, error)
	GetPermissionByKey(ctx context.Context, key string) (model.Permission, error)
	GetPermissionsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Permission, error)
	GetPermissionsByGroup(ctx context.Context, group string) ([]model.Permission, error)
	PermissionGroups(ctx context.Context) ([]string, error)
	SystemPermissions(ctx context.Context) ([]model.Permission, error)
	PermissionsPage(ctx context.Context, filter model.PermissionFilter, page model.PageRequest) (model.Page[model.Permission], error)
}

var _ rpc.PermissionsServer = (*Permission)(nil)

// Permission handles gRPC endpoints for permissions.
type Permission struct {
	directory PermissionDirectory
	logger    *logger.Logger
}

// NewPermission creates a new Permission handler.
func NewPermission(directory PermissionDirectory, logger *logger.Logger) *Permission {
	return &Permission{directory: directory, logger: logger}
}

func (h *Permission) Create(ctx context.Context, req *rpc.CreatePermissionRequest) (*rpc.Permission, error) {
	p, err := h.directory.CreatePermission(ctx, service.CreatePermissionInput{
		Key:         req.Key,
		Name:        req.Name,
		Description: req.Description,
		Group:       req.Group,
	})
	if err != nil {
		h.logger.Warn("Permission handler: create failed",
			"key", req.Key,
			"error", err.Error())
		return nil, handleError(err)
	}
	out := rpc.FromPermission(p)
	return &out, nil
}

func (h *Permission) Update(ctx context.Context, req *rpc.UpdatePermissionRequest) (*rpc.Permission, error) {
	id, err := parseID("id", req.ID)
	if err != nil {
		return nil, handleError(err)
	}

	p, err := h.directory.UpdatePermission(ctx, id, model.PermissionPatch{
		Name:        req.Name,
		Description: req.Description,
		Group:       req.Group,
	})
	if err != nil {
		h.logger.Warn("Permission handler: update failed",
			"permissionID", id,
			"error", err.Error())
		return nil, handleError(err)
	}
	out := rpc.FromPermission(p)
	return &out, nil
}

func (h *Permission) Delete(ctx context.Context, req *rpc.IDRequest) (*rpc.Empty, error) {
	id, err := parseID("id", req.ID)
	if err != nil {
		return nil, handleError(err)
	}
	if err := h.directory.DeletePermission(ctx, id); err != nil {
		h.logger.Warn("Permission handler: delete failed",
			"permissionID", id,
			"error", err.Error())
		return nil, handleError(err)
	}
	return &rpc.Empty{}, nil
}

func (h *Permission) Get(ctx context.Context, req *rpc.IDRequest) (*rpc.Permission, error) {
	id, err := parseID("id", req.ID)
	if err != nil {
		return nil, handleError(err)
	}
	p, err := h.directory.GetPermission(ctx, id)
	if err != nil {
		return nil, handleError(err)
	}
	out := rpc.FromPermission(p)
	return &out, nil
}

func (h *Permission) GetByKey(ctx context.Context, req *rpc.KeyRequest) (*rpc.Permission, error) {
	p, err := h.directory.GetPermissionByKey(ctx, req.Key)
	if err != nil {
		return nil, handleError(err)
	}
	out := rpc.FromPermission(p)
	return &out, nil
}

func (h *Permission) GetByIDs(ctx context.Context, req *rpc.IDsRequest) (*rpc.PermissionList, error) {
	ids, err := parseIDs("id", req.IDs)
	if err != nil {
		return nil, handleError(err)
	}
	ps, err := h.directory.GetPermissionsByIDs(ctx, ids)
	if err != nil {
		return nil, handleError(err)
	}
	return &rpc.PermissionList{Permissions: rpc.FromPermissions(ps)}, nil
}

func (h *Permission) List(ctx context.Context, req *rpc.ListPermissionsRequest) (*rpc.PermissionPage, error) {
	page, err := h.directory.PermissionsPage(ctx,
		model.PermissionFilter{Group: req.Group, IsSystem: req.IsSystem, Search: req.Search},
		model.PageRequest{Page: req.Page, Limit: req.Limit})
	if err != nil {
		return nil, handleError(err)
	}
	return &rpc.PermissionPage{Permissions: rpc.FromPermissions(page.Data), PageInfo: rpc.FromPage(page)}, nil
}

func (h *Permission) ListByGroup(ctx context.Context, req *rpc.GroupRequest) (*rpc.PermissionList, error) {
	ps, err := h.directory.GetPermissionsByGroup(ctx, req.Group)
	if err != nil {
		return nil, handleError(err)
	}
	return &rpc.PermissionList{Permissions: rpc.FromPermissions(ps)}, nil
}

func (h *Permission) ListSystem(ctx context.Context, _ *rpc.Empty) (*rpc.PermissionList, error) {
	ps, err := h.directory.SystemPermissions(ctx)
	if err != nil {
		return nil, handleError(err)
	}
	return &rpc.PermissionList{Permissions: rpc.FromPermissions(ps)}, nil
}

func (h *Permission) Groups(ctx context.Context, _ *rpc.Empty) (*rpc.GroupList, error) {
	groups, err := h.directory.PermissionGroups(ctx)
	if err != nil {
		return nil, handleError(err)
	}
	if groups == nil {
		groups = []string{}
	}
	return &rpc.GroupList{Groups: groups}, nil
}
