package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/dtroode/rbac-server/internal/model"
)

var _ model.RoleStore = (*RoleRepository)(nil)

type RoleRepository struct {
	scope scope
}

func (r *RoleRepository) Create(_ context.Context, role model.Role) (model.Role, error) {
	role = cloneRole(role)
	role.PermissionIDs = dedupIDs(role.PermissionIDs)
	err := r.scope.write(func(st *state) error {
		for _, existing := range st.roles {
			if existing.Name == role.Name {
				return &model.ConflictError{Entity: "role", Field: "name"}
			}
		}
		if err := checkPermissionsExist(st, role.PermissionIDs); err != nil {
			return err
		}
		if role.ID == uuid.Nil {
			role.ID = uuid.New()
		}
		now := r.scope.now()
		role.CreatedAt, role.UpdatedAt = now, now
		st.roles[role.ID] = cloneRole(role)
		return nil
	})
	if err != nil {
		return model.Role{}, err
	}
	return role, nil
}

func (r *RoleRepository) GetByID(_ context.Context, id uuid.UUID) (model.Role, error) {
	var out model.Role
	err := r.scope.read(func(st *state) error {
		role, ok := st.roles[id]
		if !ok {
			return model.ErrNotFound
		}
		out = cloneRole(role)
		return nil
	})
	return out, err
}

func (r *RoleRepository) GetByName(_ context.Context, name string) (model.Role, error) {
	var out model.Role
	err := r.scope.read(func(st *state) error {
		for _, role := range st.roles {
			if role.Name == name {
				out = cloneRole(role)
				return nil
			}
		}
		return model.ErrNotFound
	})
	return out, err
}

func (r *RoleRepository) GetByIDs(_ context.Context, ids []uuid.UUID) ([]model.Role, error) {
	out := make([]model.Role, 0, len(ids))
	err := r.scope.read(func(st *state) error {
		for _, id := range dedupIDs(ids) {
			if role, ok := st.roles[id]; ok {
				out = append(out, cloneRole(role))
			}
		}
		return nil
	})
	sortRoles(out)
	return out, err
}

func (r *RoleRepository) GetByPermission(_ context.Context, permissionID uuid.UUID) ([]model.Role, error) {
	out := []model.Role{}
	err := r.scope.read(func(st *state) error {
		for _, role := range st.roles {
			if role.HasPermission(permissionID) {
				out = append(out, cloneRole(role))
			}
		}
		return nil
	})
	sortRoles(out)
	return out, err
}

func (r *RoleRepository) CountByPermission(ctx context.Context, permissionID uuid.UUID) (int, error) {
	roles, err := r.GetByPermission(ctx, permissionID)
	return len(roles), err
}

func (r *RoleRepository) Find(_ context.Context, filter model.RoleFilter) ([]model.Role, error) {
	out := []model.Role{}
	err := r.scope.read(func(st *state) error {
		for _, role := range st.roles {
			if matchRole(role, filter) {
				out = append(out, cloneRole(role))
			}
		}
		return nil
	})
	sortRoles(out)
	return out, err
}

func (r *RoleRepository) FindPage(ctx context.Context, filter model.RoleFilter, page model.PageRequest) (model.Page[model.Role], error) {
	all, err := r.Find(ctx, filter)
	if err != nil {
		return model.Page[model.Role]{}, err
	}
	return paginate(all, page), nil
}

func (r *RoleRepository) Update(_ context.Context, id uuid.UUID, patch model.RolePatch) (model.Role, error) {
	var out model.Role
	err := r.scope.write(func(st *state) error {
		role, ok := st.roles[id]
		if !ok {
			return model.ErrNotFound
		}
		if patch.Name != nil && *patch.Name != role.Name {
			for otherID, other := range st.roles {
				if otherID != id && other.Name == *patch.Name {
					return &model.ConflictError{Entity: "role", Field: "name"}
				}
			}
			role.Name = *patch.Name
		}
		if patch.Description != nil {
			role.Description = *patch.Description
		}
		role.UpdatedAt = r.scope.now()
		st.roles[id] = role
		out = cloneRole(role)
		return nil
	})
	return out, err
}

func (r *RoleRepository) SetPermissions(_ context.Context, id uuid.UUID, permissionIDs []uuid.UUID) (model.Role, error) {
	ids := dedupIDs(permissionIDs)
	var out model.Role
	err := r.scope.write(func(st *state) error {
		role, ok := st.roles[id]
		if !ok {
			return model.ErrNotFound
		}
		if err := checkPermissionsExist(st, ids); err != nil {
			return err
		}
		role.PermissionIDs = ids
		role.UpdatedAt = r.scope.now()
		st.roles[id] = role
		out = cloneRole(role)
		return nil
	})
	return out, err
}

func (r *RoleRepository) Delete(_ context.Context, id uuid.UUID) error {
	return r.scope.write(func(st *state) error {
		if _, ok := st.roles[id]; !ok {
			return model.ErrNotFound
		}
		for _, u := range st.users {
			for _, rid := range u.RoleIDs {
				if rid == id {
					return model.ErrReferenced
				}
			}
		}
		delete(st.roles, id)
		return nil
	})
}

func checkPermissionsExist(st *state, ids []uuid.UUID) error {
	for _, id := range ids {
		if _, ok := st.permissions[id]; !ok {
			return model.ErrDanglingReference
		}
	}
	return nil
}

func matchRole(role model.Role, f model.RoleFilter) bool {
	if f.IsSystem != nil && role.IsSystem != *f.IsSystem {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(role.Name), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

func sortRoles(rs []model.Role) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].Name < rs[j].Name })
}
