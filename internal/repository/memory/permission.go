package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/dtroode/rbac-server/internal/model"
)

var _ model.PermissionStore = (*PermissionRepository)(nil)

type PermissionRepository struct {
	scope scope
}

func (r *PermissionRepository) Create(_ context.Context, p model.Permission) (model.Permission, error) {
	err := r.scope.write(func(st *state) error {
		for _, existing := range st.permissions {
			if existing.Key == p.Key {
				return &model.ConflictError{Entity: "permission", Field: "key"}
			}
		}
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		now := r.scope.now()
		p.CreatedAt, p.UpdatedAt = now, now
		st.permissions[p.ID] = p
		return nil
	})
	if err != nil {
		return model.Permission{}, err
	}
	return p, nil
}

func (r *PermissionRepository) GetByID(_ context.Context, id uuid.UUID) (model.Permission, error) {
	var out model.Permission
	err := r.scope.read(func(st *state) error {
		p, ok := st.permissions[id]
		if !ok {
			return model.ErrNotFound
		}
		out = p
		return nil
	})
	return out, err
}

func (r *PermissionRepository) GetByKey(_ context.Context, key string) (model.Permission, error) {
	var out model.Permission
	err := r.scope.read(func(st *state) error {
		for _, p := range st.permissions {
			if p.Key == key {
				out = p
				return nil
			}
		}
		return model.ErrNotFound
	})
	return out, err
}

func (r *PermissionRepository) GetByIDs(_ context.Context, ids []uuid.UUID) ([]model.Permission, error) {
	out := make([]model.Permission, 0, len(ids))
	err := r.scope.read(func(st *state) error {
		for _, id := range dedupIDs(ids) {
			if p, ok := st.permissions[id]; ok {
				out = append(out, p)
			}
		}
		return nil
	})
	sortPermissions(out)
	return out, err
}

func (r *PermissionRepository) GetByGroup(ctx context.Context, group string) ([]model.Permission, error) {
	return r.Find(ctx, model.PermissionFilter{Group: group})
}

func (r *PermissionRepository) Groups(_ context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	err := r.scope.read(func(st *state) error {
		for _, p := range st.permissions {
			if p.Group != "" {
				seen[p.Group] = struct{}{}
			}
		}
		return nil
	})
	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups, err
}

func (r *PermissionRepository) Find(_ context.Context, filter model.PermissionFilter) ([]model.Permission, error) {
	var out []model.Permission
	err := r.scope.read(func(st *state) error {
		for _, p := range st.permissions {
			if matchPermission(p, filter) {
				out = append(out, p)
			}
		}
		return nil
	})
	sortPermissions(out)
	if out == nil {
		out = []model.Permission{}
	}
	return out, err
}

func (r *PermissionRepository) FindPage(ctx context.Context, filter model.PermissionFilter, page model.PageRequest) (model.Page[model.Permission], error) {
	all, err := r.Find(ctx, filter)
	if err != nil {
		return model.Page[model.Permission]{}, err
	}
	return paginate(all, page), nil
}

func (r *PermissionRepository) Update(_ context.Context, id uuid.UUID, patch model.PermissionPatch) (model.Permission, error) {
	var out model.Permission
	err := r.scope.write(func(st *state) error {
		p, ok := st.permissions[id]
		if !ok {
			return model.ErrNotFound
		}
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.Description != nil {
			p.Description = *patch.Description
		}
		if patch.Group != nil {
			p.Group = *patch.Group
		}
		p.UpdatedAt = r.scope.now()
		st.permissions[id] = p
		out = p
		return nil
	})
	return out, err
}

func (r *PermissionRepository) Delete(_ context.Context, id uuid.UUID) error {
	return r.scope.write(func(st *state) error {
		if _, ok := st.permissions[id]; !ok {
			return model.ErrNotFound
		}
		for _, role := range st.roles {
			if role.HasPermission(id) {
				return model.ErrReferenced
			}
		}
		delete(st.permissions, id)
		return nil
	})
}

func matchPermission(p model.Permission, f model.PermissionFilter) bool {
	if f.Group != "" && p.Group != f.Group {
		return false
	}
	if f.IsSystem != nil && p.IsSystem != *f.IsSystem {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(p.Key, q) && !strings.Contains(strings.ToLower(p.Name), q) {
			return false
		}
	}
	return true
}

func sortPermissions(ps []model.Permission) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].Key < ps[j].Key })
}
