package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/dtroode/rbac-server/internal/apierror"
	"github.com/dtroode/rbac-server/internal/logger"
	"github.com/dtroode/rbac-server/internal/model"
)

// Resolver answers what a user may do through its roles.
type Resolver struct {
	permissions model.PermissionStore
	roles       model.RoleStore
	users       model.UserStore
	cache       model.PermissionCache
	logger      *logger.Logger
}

// NewResolver creates a Resolver. cache may be nil.
func NewResolver(stores Stores, cache model.PermissionCache, logger *logger.Logger) *Resolver {
	return &Resolver{
		permissions: stores.Permissions,
		roles:       stores.Roles,
		users:       stores.Users,
		cache:       cache,
		logger:      logger,
	}
}

// EffectivePermissions is the union of the permissions of all the user's
// roles, deduplicated by id and ordered by key. Roles that no longer exist
// are skipped.
func (r *Resolver) EffectivePermissions(ctx context.Context, userID uuid.UUID) ([]model.Permission, error) {
	user, err := r.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	return r.permissionsOf(ctx, user)
}

func (r *Resolver) permissionsOf(ctx context.Context, user model.User) ([]model.Permission, error) {
	if len(user.RoleIDs) == 0 {
		return []model.Permission{}, nil
	}

	roles, err := r.roles.GetByIDs(ctx, user.RoleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load user roles: %w", err)
	}

	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	for _, role := range roles {
		for _, id := range role.PermissionIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []model.Permission{}, nil
	}

	perms, err := r.permissions.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load role permissions: %w", err)
	}
	byID := make(map[uuid.UUID]model.Permission, len(perms))
	for _, p := range perms {
		byID[p.ID] = p
	}
	out := make([]model.Permission, 0, len(byID))
	for _, p := range byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// HasPermission is false for inactive users and users without roles. An
// unknown key fails NotFound.
func (r *Resolver) HasPermission(ctx context.Context, userID uuid.UUID, key string) (bool, error) {
	user, err := r.user(ctx, userID)
	if err != nil {
		return false, err
	}
	return r.userHasPermission(ctx, user, key)
}

func (r *Resolver) userHasPermission(ctx context.Context, user model.User, key string) (bool, error) {
	if !user.IsActive || len(user.RoleIDs) == 0 {
		return false, nil
	}

	key = NormalizeKey(key)
	p, err := r.permissions.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return false, apierror.NewErrNotFound("permission", "key", key)
		}
		return false, fmt.Errorf("failed to get permission by key: %w", err)
	}

	roles, err := r.roles.GetByIDs(ctx, user.RoleIDs)
	if err != nil {
		return false, fmt.Errorf("failed to load user roles: %w", err)
	}
	for _, role := range roles {
		if role.HasPermission(p.ID) {
			return true, nil
		}
	}
	return false, nil
}

// HasAllPermissions is true when every key is held. An empty list is true.
func (r *Resolver) HasAllPermissions(ctx context.Context, userID uuid.UUID, keys []string) (bool, error) {
	user, err := r.user(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, key := range keys {
		ok, err := r.userHasPermission(ctx, user, key)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// HasAnyPermission is true when at least one key is held.
func (r *Resolver) HasAnyPermission(ctx context.Context, userID uuid.UUID, keys []string) (bool, error) {
	user, err := r.user(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, key := range keys {
		ok, err := r.userHasPermission(ctx, user, key)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// HasRole accepts a role id or a role name. An unknown role fails NotFound.
func (r *Resolver) HasRole(ctx context.Context, userID uuid.UUID, role string) (bool, error) {
	user, err := r.user(ctx, userID)
	if err != nil {
		return false, err
	}
	return r.userHasRole(ctx, user, role)
}

func (r *Resolver) userHasRole(ctx context.Context, user model.User, ref string) (bool, error) {
	if !user.IsActive || len(user.RoleIDs) == 0 {
		return false, nil
	}
	role, err := r.lookupRole(ctx, ref)
	if err != nil {
		return false, err
	}
	for _, id := range user.RoleIDs {
		if id == role.ID {
			return true, nil
		}
	}
	return false, nil
}

func (r *Resolver) HasAnyRole(ctx context.Context, userID uuid.UUID, roles []string) (bool, error) {
	user, err := r.user(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, ref := range roles {
		ok, err := r.userHasRole(ctx, user, ref)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (r *Resolver) HasAllRoles(ctx context.Context, userID uuid.UUID, roles []string) (bool, error) {
	user, err := r.user(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, ref := range roles {
		ok, err := r.userHasRole(ctx, user, ref)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// RoleNames returns the names of the user's existing roles.
func (r *Resolver) RoleNames(ctx context.Context, user model.User) ([]string, error) {
	if len(user.RoleIDs) == 0 {
		return nil, nil
	}
	roles, err := r.roles.GetByIDs(ctx, user.RoleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load user roles: %w", err)
	}
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	return names, nil
}

// GrantedKeys returns the effective permission keys of an active user,
// going through the cache when one is configured. Inactive users get none.
func (r *Resolver) GrantedKeys(ctx context.Context, user model.User) ([]string, error) {
	if !user.IsActive {
		return nil, nil
	}
	var (
		stamp model.CacheStamp
		fill  bool
	)
	if r.cache != nil {
		keys, st, ok, err := r.cache.Get(ctx, user.ID)
		switch {
		case err != nil:
			r.logger.Warn("Resolver service: permission cache read failed",
				"userID", user.ID,
				"error", err.Error())
		case ok:
			return keys, nil
		default:
			stamp, fill = st, true
		}
	}

	perms, err := r.permissionsOf(ctx, user)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(perms))
	for _, p := range perms {
		keys = append(keys, p.Key)
	}

	// the stamp was read before computing, so a concurrent invalidation
	// leaves this entry unservable
	if fill {
		if err := r.cache.Set(ctx, user.ID, stamp, keys); err != nil {
			r.logger.Warn("Resolver service: permission cache write failed",
				"userID", user.ID,
				"error", err.Error())
		}
	}
	return keys, nil
}

func (r *Resolver) lookupRole(ctx context.Context, ref string) (model.Role, error) {
	ref = strings.TrimSpace(ref)
	var (
		role model.Role
		err  error
	)
	field := "name"
	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		field = "id"
		role, err = r.roles.GetByID(ctx, id)
	} else {
		role, err = r.roles.GetByName(ctx, ref)
	}
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Role{}, apierror.NewErrNotFound("role", field, ref)
		}
		return model.Role{}, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

func (r *Resolver) user(ctx context.Context, id uuid.UUID) (model.User, error) {
	u, err := r.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.User{}, apierror.NewErrNotFound("user", "id", id.String())
		}
		return model.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}
