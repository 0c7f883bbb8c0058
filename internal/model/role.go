package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RoleStore defines persistence operations for roles.
type RoleStore interface {
	Create(ctx context.Context, role Role) (Role, error)
	GetByID(ctx context.Context, id uuid.UUID) (Role, error)
	GetByName(ctx context.Context, name string) (Role, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Role, error)
	GetByPermission(ctx context.Context, permissionID uuid.UUID) ([]Role, error)
	CountByPermission(ctx context.Context, permissionID uuid.UUID) (int, error)
	Find(ctx context.Context, filter RoleFilter) ([]Role, error)
	FindPage(ctx context.Context, filter RoleFilter, page PageRequest) (Page[Role], error)
	Update(ctx context.Context, id uuid.UUID, patch RolePatch) (Role, error)
	SetPermissions(ctx context.Context, id uuid.UUID, permissionIDs []uuid.UUID) (Role, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Role groups permissions under a unique name.
type Role struct {
	ID            uuid.UUID
	Name          string
	Description   string
	PermissionIDs []uuid.UUID
	IsSystem      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasPermission reports whether the role lists the permission id directly.
func (r Role) HasPermission(id uuid.UUID) bool {
	for _, pid := range r.PermissionIDs {
		if pid == id {
			return true
		}
	}
	return false
}

// RolePatch holds the mutable role fields.
type RolePatch struct {
	Name        *string
	Description *string
}

// RoleFilter narrows role listings.
type RoleFilter struct {
	IsSystem *bool
	Search   string
}
