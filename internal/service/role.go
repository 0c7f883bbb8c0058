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

// CreateRoleInput holds the fields of a new role.
type CreateRoleInput struct {
	Name          string
	Description   string
	PermissionIDs []uuid.UUID
}

func (d *Directory) CreateRole(ctx context.Context, in CreateRoleInput) (model.Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Role{}, apierror.NewErrInvalidArgument("role name is required")
	}

	if _, err := d.roles.GetByName(ctx, name); err == nil {
		return model.Role{}, apierror.NewErrDuplicateName(name)
	} else if !errors.Is(err, model.ErrNotFound) {
		return model.Role{}, fmt.Errorf("failed to check role name: %w", err)
	}

	if err := d.checkPermissionsExist(ctx, in.PermissionIDs); err != nil {
		return model.Role{}, err
	}

	var created model.Role
	err := d.tx.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		var err error
		created, err = tx.Roles().Create(ctx, model.Role{
			Name:          name,
			Description:   in.Description,
			PermissionIDs: in.PermissionIDs,
		})
		return err
	})
	if err != nil {
		if dup := conflictError(err, map[string]string{"name": name}); dup != nil {
			return model.Role{}, dup
		}
		if errors.Is(err, model.ErrDanglingReference) {
			return model.Role{}, apierror.NewErrDanglingReference("permission", idStrings(in.PermissionIDs))
		}
		d.logger.Error("Directory service: failed to create role",
			"name", name,
			"error", err.Error())
		return model.Role{}, fmt.Errorf("failed to create role: %w", err)
	}

	d.logger.Info("Directory service: role created", "roleID", created.ID, "name", name)
	return created, nil
}

// UpdateRole patches name and description. The name uniqueness check runs
// only when the name actually changes.
func (d *Directory) UpdateRole(ctx context.Context, id uuid.UUID, patch model.RolePatch) (model.Role, error) {
	current, err := d.GetRole(ctx, id)
	if err != nil {
		return model.Role{}, err
	}
	if current.IsSystem {
		return model.Role{}, apierror.NewErrSystemImmutable("role", id.String())
	}

	var name string
	if patch.Name != nil {
		name = strings.TrimSpace(*patch.Name)
		if name == "" {
			return model.Role{}, apierror.NewErrInvalidArgument("role name cannot be empty")
		}
		patch.Name = &name
		if name != current.Name {
			if _, err := d.roles.GetByName(ctx, name); err == nil {
				return model.Role{}, apierror.NewErrDuplicateName(name)
			} else if !errors.Is(err, model.ErrNotFound) {
				return model.Role{}, fmt.Errorf("failed to check role name: %w", err)
			}
		}
	}

	var updated model.Role
	err = d.tx.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		updated, err = tx.Roles().Update(ctx, id, patch)
		return err
	})
	if err != nil {
		if dup := conflictError(err, map[string]string{"name": name}); dup != nil {
			return model.Role{}, dup
		}
		if errors.Is(err, model.ErrNotFound) {
			return model.Role{}, apierror.NewErrNotFound("role", "id", id.String())
		}
		d.logger.Error("Directory service: failed to update role",
			"roleID", id,
			"error", err.Error())
		return model.Role{}, fmt.Errorf("failed to update role: %w", err)
	}
	return updated, nil
}

// AssignPermissionsToRole replaces the role's permission set.
func (d *Directory) AssignPermissionsToRole(ctx context.Context, id uuid.UUID, permissionIDs []uuid.UUID) (model.Role, error) {
	current, err := d.GetRole(ctx, id)
	if err != nil {
		return model.Role{}, err
	}
	if current.IsSystem {
		return model.Role{}, apierror.NewErrSystemImmutable("role", id.String())
	}
	if err := d.checkPermissionsExist(ctx, permissionIDs); err != nil {
		return model.Role{}, err
	}

	var updated model.Role
	err = d.tx.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		updated, err = tx.Roles().SetPermissions(ctx, id, permissionIDs)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrNotFound):
			return model.Role{}, apierror.NewErrNotFound("role", "id", id.String())
		case errors.Is(err, model.ErrDanglingReference):
			return model.Role{}, apierror.NewErrDanglingReference("permission", idStrings(permissionIDs))
		}
		d.logger.Error("Directory service: failed to assign role permissions",
			"roleID", id,
			"error", err.Error())
		return model.Role{}, fmt.Errorf("failed to assign role permissions: %w", err)
	}

	d.invalidateAll(ctx)
	return updated, nil
}

// DeleteRole removes a role no user holds.
func (d *Directory) DeleteRole(ctx context.Context, id uuid.UUID) error {
	current, err := d.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if current.IsSystem {
		return apierror.NewErrSystemImmutable("role", id.String())
	}

	count, err := d.users.CountByRole(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count users by role: %w", err)
	}
	if count > 0 {
		return apierror.NewErrInUse("role "+current.Name, count, "user")
	}

	err = d.tx.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		return tx.Roles().Delete(ctx, id)
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrNotFound):
			return apierror.NewErrNotFound("role", "id", id.String())
		case errors.Is(err, model.ErrReferenced):
			count, _ = d.users.CountByRole(ctx, id)
			return apierror.NewErrInUse("role "+current.Name, count, "user")
		}
		d.logger.Error("Directory service: failed to delete role",
			"roleID", id,
			"error", err.Error())
		return fmt.Errorf("failed to delete role: %w", err)
	}

	d.invalidateAll(ctx)
	d.logger.Info("Directory service: role deleted", "roleID", id)
	return nil
}

func (d *Directory) GetRole(ctx context.Context, id uuid.UUID) (model.Role, error) {
	r, err := d.roles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Role{}, apierror.NewErrNotFound("role", "id", id.String())
		}
		return model.Role{}, fmt.Errorf("failed to get role: %w", err)
	}
	return r, nil
}

func (d *Directory) GetRoleByName(ctx context.Context, name string) (model.Role, error) {
	name = strings.TrimSpace(name)
	r, err := d.roles.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Role{}, apierror.NewErrNotFound("role", "name", name)
		}
		return model.Role{}, fmt.Errorf("failed to get role by name: %w", err)
	}
	return r, nil
}

func (d *Directory) GetRolesByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Role, error) {
	rs, err := d.roles.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get roles by ids: %w", err)
	}
	return rs, nil
}

func (d *Directory) RolesByPermission(ctx context.Context, permissionID uuid.UUID) ([]model.Role, error) {
	rs, err := d.roles.GetByPermission(ctx, permissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get roles by permission: %w", err)
	}
	return rs, nil
}

// RolesByPermissionKey fails NotFound when the key itself is unknown.
func (d *Directory) RolesByPermissionKey(ctx context.Context, key string) ([]model.Role, error) {
	p, err := d.GetPermissionByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	return d.RolesByPermission(ctx, p.ID)
}

func (d *Directory) SystemRoles(ctx context.Context) ([]model.Role, error) {
	system := true
	return d.FindRoles(ctx, model.RoleFilter{IsSystem: &system})
}

func (d *Directory) FindRoles(ctx context.Context, filter model.RoleFilter) ([]model.Role, error) {
	rs, err := d.roles.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find roles: %w", err)
	}
	return rs, nil
}

func (d *Directory) RolesPage(ctx context.Context, filter model.RoleFilter, page model.PageRequest) (model.Page[model.Role], error) {
	p, err := d.roles.FindPage(ctx, filter, page.Normalize())
	if err != nil {
		return model.Page[model.Role]{}, fmt.Errorf("failed to page roles: %w", err)
	}
	return p, nil
}

// RolePermissions returns the permissions the role lists directly.
func (d *Directory) RolePermissions(ctx context.Context, id uuid.UUID) ([]model.Permission, error) {
	r, err := d.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(r.PermissionIDs) == 0 {
		return []model.Permission{}, nil
	}
	return d.GetPermissionsByIDs(ctx, r.PermissionIDs)
}

func (d *Directory) checkPermissionsExist(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := d.permissions.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to resolve permissions: %w", err)
	}
	set := make(map[uuid.UUID]struct{}, len(found))
	for _, p := range found {
		set[p.ID] = struct{}{}
	}
	if missing := missingIDs(ids, set); len(missing) > 0 {
		return apierror.NewErrDanglingReference("permission", idStrings(missing))
	}
	return nil
}

func (d *Directory) checkRolesExist(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := d.roles.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to resolve roles: %w", err)
	}
	set := make(map[uuid.UUID]struct{}, len(found))
	for _, r := range found {
		set[r.ID] = struct{}{}
	}
	if missing := missingIDs(ids, set); len(missing) > 0 {
		return apierror.NewErrDanglingReference("role", idStrings(missing))
	}
	return nil
}
