package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dtroode/rbac-server/internal/apierror"
	"github.com/dtroode/rbac-server/internal/model"
)

// CreatePermissionInput holds the fields of a new permission.
type CreatePermissionInput struct {
	Key         string
	Name        string
	Description string
	Group       string
}

// CreatePermission normalizes the key and persists a non-system permission.
func (d *Directory) CreatePermission(ctx context.Context, in CreatePermissionInput) (model.Permission, error) {
	key := NormalizeKey(in.Key)
	if key == "" {
		return model.Permission{}, apierror.NewErrInvalidArgument("permission key is required")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Permission{}, apierror.NewErrInvalidArgument("permission name is required")
	}

	if _, err := d.permissions.GetByKey(ctx, key); err == nil {
		return model.Permission{}, apierror.NewErrDuplicateKey(key)
	} else if !errors.Is(err, model.ErrNotFound) {
		return model.Permission{}, fmt.Errorf("failed to check permission key: %w", err)
	}

	var created model.Permission
	err := d.tx.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		var err error
		created, err = tx.Permissions().Create(ctx, model.Permission{
			Key:         key,
			Name:        name,
			Description: in.Description,
			Group:       strings.TrimSpace(in.Group),
		})
		return err
	})
	if err != nil {
		if dup := conflictError(err, map[string]string{"key": key}); dup != nil {
			return model.Permission{}, dup
		}
		d.logger.Error("Directory service: failed to create permission",
			"key", key,
			"error", err.Error())
		return model.Permission{}, fmt.Errorf("failed to create permission: %w", err)
	}

	d.logger.Info("Directory service: permission created", "permissionID", created.ID, "key", key)
	return created, nil
}

// UpdatePermission patches name, description and group. Key and IsSystem
// cannot change.
func (d *Directory) UpdatePermission(ctx context.Context, id uuid.UUID, patch model.PermissionPatch) (model.Permission, error) {
	current, err := d.GetPermission(ctx, id)
	if err != nil {
		return model.Permission{}, err
	}
	if current.IsSystem {
		return model.Permission{}, apierror.NewErrSystemImmutable("permission", id.String())
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return model.Permission{}, apierror.NewErrInvalidArgument("permission name cannot be empty")
		}
		patch.Name = &name
	}

	var updated model.Permission
	err = d.tx.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		updated, err = tx.Permissions().Update(ctx, id, patch)
		return err
	})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Permission{}, apierror.NewErrNotFound("permission", "id", id.String())
		}
		d.logger.Error("Directory service: failed to update permission",
			"permissionID", id,
			"error", err.Error())
		return model.Permission{}, fmt.Errorf("failed to update permission: %w", err)
	}
	return updated, nil
}

// DeletePermission removes a permission no role references.
func (d *Directory) DeletePermission(ctx context.Context, id uuid.UUID) error {
	current, err := d.GetPermission(ctx, id)
	if err != nil {
		return err
	}
	if current.IsSystem {
		return apierror.NewErrSystemImmutable("permission", id.String())
	}

	count, err := d.roles.CountByPermission(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count roles by permission: %w", err)
	}
	if count > 0 {
		return apierror.NewErrInUse("permission "+current.Key, count, "role")
	}

	err = d.tx.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		return tx.Permissions().Delete(ctx, id)
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrNotFound):
			return apierror.NewErrNotFound("permission", "id", id.String())
		case errors.Is(err, model.ErrReferenced):
			count, _ = d.roles.CountByPermission(ctx, id)
			return apierror.NewErrInUse("permission "+current.Key, count, "role")
		}
		d.logger.Error("Directory service: failed to delete permission",
			"permissionID", id,
			"error", err.Error())
		return fmt.Errorf("failed to delete permission: %w", err)
	}

	d.invalidateAll(ctx)
	d.logger.Info("Directory service: permission deleted", "permissionID", id)
	return nil
}

func (d *Directory) GetPermission(ctx context.Context, id uuid.UUID) (model.Permission, error) {
	p, err := d.permissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Permission{}, apierror.NewErrNotFound("permission", "id", id.String())
		}
		return model.Permission{}, fmt.Errorf("failed to get permission: %w", err)
	}
	return p, nil
}

// GetPermissionByKey looks the key up after normalizing it.
func (d *Directory) GetPermissionByKey(ctx context.Context, key string) (model.Permission, error) {
	key = NormalizeKey(key)
	p, err := d.permissions.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Permission{}, apierror.NewErrNotFound("permission", "key", key)
		}
		return model.Permission{}, fmt.Errorf("failed to get permission by key: %w", err)
	}
	return p, nil
}

func (d *Directory) GetPermissionsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Permission, error) {
	ps, err := d.permissions.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get permissions by ids: %w", err)
	}
	return ps, nil
}

func (d *Directory) GetPermissionsByGroup(ctx context.Context, group string) ([]model.Permission, error) {
	ps, err := d.permissions.GetByGroup(ctx, strings.TrimSpace(group))
	if err != nil {
		return nil, fmt.Errorf("failed to get permissions by group: %w", err)
	}
	return ps, nil
}

// PermissionGroups lists the distinct non-empty groups in order.
func (d *Directory) PermissionGroups(ctx context.Context) ([]string, error) {
	groups, err := d.permissions.Groups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list permission groups: %w", err)
	}
	return groups, nil
}

func (d *Directory) SystemPermissions(ctx context.Context) ([]model.Permission, error) {
	system := true
	return d.FindPermissions(ctx, model.PermissionFilter{IsSystem: &system})
}

func (d *Directory) FindPermissions(ctx context.Context, filter model.PermissionFilter) ([]model.Permission, error) {
	ps, err := d.permissions.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find permissions: %w", err)
	}
	return ps, nil
}

func (d *Directory) PermissionsPage(ctx context.Context, filter model.PermissionFilter, page model.PageRequest) (model.Page[model.Permission], error) {
	p, err := d.permissions.FindPage(ctx, filter, page.Normalize())
	if err != nil {
		return model.Page[model.Permission]{}, fmt.Errorf("failed to page permissions: %w", err)
	}
	return p, nil
}
