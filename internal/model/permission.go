package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PermissionStore defines persistence operations for permissions.
type PermissionStore interface {
	Create(ctx context.Context, permission Permission) (Permission, error)
	GetByID(ctx context.Context, id uuid.UUID) (Permission, error)
	GetByKey(ctx context.Context, key string) (Permission, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Permission, error)
	GetByGroup(ctx context.Context, group string) ([]Permission, error)
	Groups(ctx context.Context) ([]string, error)
	Find(ctx context.Context, filter PermissionFilter) ([]Permission, error)
	FindPage(ctx context.Context, filter PermissionFilter, page PageRequest) (Page[Permission], error)
	Update(ctx context.Context, id uuid.UUID, patch PermissionPatch) (Permission, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Permission is a flat capability key granted to users through roles.
type Permission struct {
	ID          uuid.UUID
	Key         string
	Name        string
	Description string
	Group       string
	IsSystem    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PermissionPatch holds the mutable permission fields. Key and IsSystem are
// intentionally absent.
type PermissionPatch struct {
	Name        *string
	Description *string
	Group       *string
}

// PermissionFilter narrows permission listings. Zero values match everything.
type PermissionFilter struct {
	Group    string
	IsSystem *bool
	Search   string
}
