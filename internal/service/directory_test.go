package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/rbac-server/internal/apierror"
	"github.com/dtroode/rbac-server/internal/mocks"
	"github.com/dtroode/rbac-server/internal/model"
)

func TestNormalizeKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "users:create", want: "users:create"},
		{in: "  Users:Create ", want: "users:create"},
		{in: "reports   export\tall", want: "reports:export:all"},
		{in: "   ", want: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeKey(tt.in))
		})
	}
}

func TestConflictError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		field string
		kind  apierror.Kind
	}{
		{field: "key", kind: apierror.KindDuplicateKey},
		{field: "name", kind: apierror.KindDuplicateName},
		{field: "email", kind: apierror.KindDuplicateEmail},
		{field: "username", kind: apierror.KindDuplicateUsername},
		{field: "jti", kind: apierror.KindInvalidArgument},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.field, func(t *testing.T) {
			t.Parallel()
			err := conflictError(&model.ConflictError{Entity: "x", Field: tt.field}, map[string]string{tt.field: "v"})
			assert.True(t, apierror.IsKind(err, tt.kind))
		})
	}

	assert.Nil(t, conflictError(assert.AnError, nil))
}

func TestDirectory_CreatePermission(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, stores := newTestDirectory(t, nil)

	p, err := d.CreatePermission(ctx, CreatePermissionInput{Key: " Reports Export ", Name: "Export", Group: "reports"})
	require.NoError(t, err)
	assert.Equal(t, "reports:export", p.Key)
	assert.False(t, p.IsSystem)

	_, err = d.CreatePermission(ctx, CreatePermissionInput{Key: "REPORTS:EXPORT", Name: "Again"})
	assert.True(t, apierror.IsKind(err, apierror.KindDuplicateKey))

	_, err = d.CreatePermission(ctx, CreatePermissionInput{Key: "  ", Name: "Blank"})
	assert.True(t, apierror.IsKind(err, apierror.KindInvalidArgument))

	all, err := stores.Permissions.Find(ctx, model.PermissionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDirectory_SystemEntitiesAreImmutable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, stores := newTestDirectory(t, nil)

	sysPerm, err := stores.Permissions.Create(ctx, model.Permission{Key: "system:admin", Name: "Admin", IsSystem: true})
	require.NoError(t, err)
	sysRole, err := stores.Roles.Create(ctx, model.Role{Name: "admin", IsSystem: true})
	require.NoError(t, err)

	_, err = d.UpdatePermission(ctx, sysPerm.ID, model.PermissionPatch{Name: strPtr("x")})
	assert.True(t, apierror.IsKind(err, apierror.KindSystemImmutable))
	assert.True(t, apierror.IsKind(d.DeletePermission(ctx, sysPerm.ID), apierror.KindSystemImmutable))

	_, err = d.UpdateRole(ctx, sysRole.ID, model.RolePatch{Description: strPtr("x")})
	assert.True(t, apierror.IsKind(err, apierror.KindSystemImmutable))
	_, err = d.AssignPermissionsToRole(ctx, sysRole.ID, []uuid.UUID{sysPerm.ID})
	assert.True(t, apierror.IsKind(err, apierror.KindSystemImmutable))
	assert.True(t, apierror.IsKind(d.DeleteRole(ctx, sysRole.ID), apierror.KindSystemImmutable))

	got, err := d.GetPermission(ctx, sysPerm.ID)
	require.NoError(t, err)
	assert.Equal(t, "Admin", got.Name)
	_, err = d.GetRole(ctx, sysRole.ID)
	require.NoError(t, err)
}

func TestDirectory_UpdatePermission(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, _ := newTestDirectory(t, nil)
	p := mustPermission(t, d, "reports:read")

	updated, err := d.UpdatePermission(ctx, p.ID, model.PermissionPatch{Name: strPtr(" Read reports "), Group: strPtr("reports")})
	require.NoError(t, err)
	assert.Equal(t, "Read reports", updated.Name)
	assert.Equal(t, "reports", updated.Group)
	assert.Equal(t, "reports:read", updated.Key)

	_, err = d.UpdatePermission(ctx, uuid.New(), model.PermissionPatch{})
	assert.True(t, apierror.IsKind(err, apierror.KindNotFound))
}

func TestDirectory_DeletePermissionInUse(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, _ := newTestDirectory(t, nil)
	p := mustPermission(t, d, "reports:read")
	r1 := mustRole(t, d, "r1", p)
	mustRole(t, d, "r2", p)

	err := d.DeletePermission(ctx, p.ID)
	require.True(t, apierror.IsKind(err, apierror.KindInUse))
	assert.Contains(t, err.Error(), "2 role(s)")

	_, err = d.AssignPermissionsToRole(ctx, r1.ID, nil)
	require.NoError(t, err)
	roles, err := d.RolesByPermission(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	_, err = d.AssignPermissionsToRole(ctx, roles[0].ID, []uuid.UUID{})
	require.NoError(t, err)

	require.NoError(t, d.DeletePermission(ctx, p.ID))
	_, err = d.GetPermission(ctx, p.ID)
	assert.True(t, apierror.IsKind(err, apierror.KindNotFound))
}

func TestDirectory_CreateRole(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, stores := newTestDirectory(t, nil)
	p := mustPermission(t, d, "users:read")

	tests := []struct {
		name string
		in   CreateRoleInput
		kind apierror.Kind
	}{
		{name: "blank name", in: CreateRoleInput{Name: " "}, kind: apierror.KindInvalidArgument},
		{name: "dangling permission", in: CreateRoleInput{Name: "ghost", PermissionIDs: []uuid.UUID{p.ID, uuid.New()}}, kind: apierror.KindDanglingReference},
	}
	for _, tt := range tests {
		_, err := d.CreateRole(ctx, tt.in)
		assert.True(t, apierror.IsKind(err, tt.kind), tt.name)
	}

	role, err := d.CreateRole(ctx, CreateRoleInput{Name: " editor ", PermissionIDs: []uuid.UUID{p.ID, p.ID}})
	require.NoError(t, err)
	assert.Equal(t, "editor", role.Name)
	assert.Equal(t, []uuid.UUID{p.ID}, role.PermissionIDs)

	_, err = d.CreateRole(ctx, CreateRoleInput{Name: "editor"})
	assert.True(t, apierror.IsKind(err, apierror.KindDuplicateName))

	all, err := stores.Roles.Find(ctx, model.RoleFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDirectory_UpdateRole(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, _ := newTestDirectory(t, nil)
	editor := mustRole(t, d, "editor")
	mustRole(t, d, "viewer")

	same, err := d.UpdateRole(ctx, editor.ID, model.RolePatch{Name: strPtr("editor"), Description: strPtr("edits")})
	require.NoError(t, err)
	assert.Equal(t, "edits", same.Description)

	_, err = d.UpdateRole(ctx, editor.ID, model.RolePatch{Name: strPtr("viewer")})
	assert.True(t, apierror.IsKind(err, apierror.KindDuplicateName))

	renamed, err := d.UpdateRole(ctx, editor.ID, model.RolePatch{Name: strPtr("writer")})
	require.NoError(t, err)
	assert.Equal(t, "writer", renamed.Name)
}

func TestDirectory_AssignPermissionsReplaces(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cache := mocks.NewPermissionCache(t)
	cache.On("InvalidateAll", mock.Anything).Return(nil).Once()
	d, _ := newTestDirectory(t, cache)

	p1 := mustPermission(t, d, "a:one")
	p2 := mustPermission(t, d, "a:two")
	role := mustRole(t, d, "r", p1)

	updated, err := d.AssignPermissionsToRole(ctx, role.ID, []uuid.UUID{p2.ID})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{p2.ID}, updated.PermissionIDs)

	_, err = d.AssignPermissionsToRole(ctx, role.ID, []uuid.UUID{uuid.New()})
	assert.True(t, apierror.IsKind(err, apierror.KindDanglingReference))

	perms, err := d.RolePermissions(ctx, role.ID)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, "a:two", perms[0].Key)
}

func TestDirectory_DeleteRoleInUse(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, _ := newTestDirectory(t, nil)
	role := mustRole(t, d, "editor")
	u := mustUser(t, d, "alice", role)

	err := d.DeleteRole(ctx, role.ID)
	require.True(t, apierror.IsKind(err, apierror.KindInUse))
	assert.Contains(t, err.Error(), "1 user(s)")

	_, err = d.UpdateUserRoles(ctx, u.ID, nil)
	require.NoError(t, err)
	require.NoError(t, d.DeleteRole(ctx, role.ID))

	assert.True(t, apierror.IsKind(d.DeleteRole(ctx, role.ID), apierror.KindNotFound))
}

func TestDirectory_CreateUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, stores := newTestDirectory(t, nil)
	mustUser(t, d, "alice")

	tests := []struct {
		name string
		in   CreateUserInput
		kind apierror.Kind
	}{
		{
			name: "duplicate email ignores case",
			in:   CreateUserInput{Email: " ALICE@Example.com", Username: "other", Password: "x"},
			kind: apierror.KindDuplicateEmail,
		},
		{
			name: "duplicate username",
			in:   CreateUserInput{Email: "new@example.com", Username: "alice", Password: "x"},
			kind: apierror.KindDuplicateUsername,
		},
		{
			name: "local without password",
			in:   CreateUserInput{Email: "bob@example.com", Username: "bob"},
			kind: apierror.KindPasswordRequired,
		},
		{
			name: "unknown auth method",
			in:   CreateUserInput{Email: "bob@example.com", Username: "bob", AuthMethod: "ldap"},
			kind: apierror.KindInvalidArgument,
		},
		{
			name: "dangling role",
			in:   CreateUserInput{Email: "bob@example.com", Username: "bob", Password: "x", RoleIDs: []uuid.UUID{uuid.New()}},
			kind: apierror.KindDanglingReference,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.CreateUser(ctx, tt.in)
			assert.True(t, apierror.IsKind(err, tt.kind), "got %v", err)
		})
	}

	all, err := stores.Users.Find(ctx, model.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDirectory_CreateUserExternal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, stores := newTestDirectory(t, nil)

	u, err := d.CreateUser(ctx, CreateUserInput{
		Email:        "Ext@Example.com",
		Username:     "ext",
		AuthMethod:   model.AuthMethodGoogle,
		ExternalAuth: &model.ExternalAuth{Provider: "google", ProviderID: "g-1"},
		IsActive:     boolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "ext@example.com", u.Email)
	assert.False(t, u.IsActive)
	assert.Empty(t, u.PasswordHash)

	stored, err := stores.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.PasswordHash)
	require.NotNil(t, stored.ExternalAuth)
	assert.Equal(t, "g-1", stored.ExternalAuth.ProviderID)
}

func TestDirectory_CreateUserHashesPassword(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, stores := newTestDirectory(t, nil)

	u := mustUser(t, d, "alice")
	assert.Empty(t, u.PasswordHash)

	stored, err := stores.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "secret-alice", stored.PasswordHash)
	assert.True(t, d.hasher.Verify("secret-alice", stored.PasswordHash))
	assert.True(t, stored.IsActive)
	assert.Equal(t, model.AuthMethodLocal, stored.AuthMethod)
}

func TestDirectory_UpdateUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cache := mocks.NewPermissionCache(t)
	d, _ := newTestDirectory(t, cache)

	role := mustRole(t, d, "editor")
	alice := mustUser(t, d, "alice")
	mustUser(t, d, "bob")

	_, err := d.UpdateUser(ctx, alice.ID, UpdateUserInput{Email: strPtr("BOB@example.com")})
	assert.True(t, apierror.IsKind(err, apierror.KindDuplicateEmail))

	_, err = d.UpdateUser(ctx, alice.ID, UpdateUserInput{Username: strPtr("bob")})
	assert.True(t, apierror.IsKind(err, apierror.KindDuplicateUsername))

	same, err := d.UpdateUser(ctx, alice.ID, UpdateUserInput{Email: strPtr("Alice@Example.com"), Username: strPtr("alice")})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", same.Email)

	cache.On("Invalidate", mock.Anything, alice.ID).Return(nil).Once()
	roles := []uuid.UUID{role.ID}
	updated, err := d.UpdateUser(ctx, alice.ID, UpdateUserInput{RoleIDs: &roles, IsEmailVerified: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, roles, updated.RoleIDs)
	assert.True(t, updated.IsEmailVerified)

	_, err = d.UpdateUser(ctx, uuid.New(), UpdateUserInput{})
	assert.True(t, apierror.IsKind(err, apierror.KindNotFound))
}

func TestDirectory_SetUserStatusInvalidatesCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cache := mocks.NewPermissionCache(t)
	d, _ := newTestDirectory(t, cache)
	alice := mustUser(t, d, "alice")

	cache.On("Invalidate", mock.Anything, alice.ID).Return(assert.AnError).Once()
	u, err := d.SetUserStatus(ctx, alice.ID, false)
	require.NoError(t, err)
	assert.False(t, u.IsActive)
}

func TestDirectory_DeleteUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, _ := newTestDirectory(t, nil)
	role := mustRole(t, d, "editor")
	alice := mustUser(t, d, "alice", role)

	require.NoError(t, d.DeleteUser(ctx, alice.ID))
	_, err := d.GetUser(ctx, alice.ID)
	assert.True(t, apierror.IsKind(err, apierror.KindNotFound))
	assert.True(t, apierror.IsKind(d.DeleteUser(ctx, alice.ID), apierror.KindNotFound))

	require.NoError(t, d.DeleteRole(ctx, role.ID))
}

func TestDirectory_Lookups(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, stores := newTestDirectory(t, nil)

	p1, err := d.CreatePermission(ctx, CreatePermissionInput{Key: "users:read", Name: "r", Group: "users"})
	require.NoError(t, err)
	_, err = d.CreatePermission(ctx, CreatePermissionInput{Key: "roles:read", Name: "r", Group: "roles"})
	require.NoError(t, err)
	_, err = stores.Permissions.Create(ctx, model.Permission{Key: "system:settings", Name: "s", Group: "system", IsSystem: true})
	require.NoError(t, err)
	editor := mustRole(t, d, "editor", p1)
	alice := mustUser(t, d, "alice", editor)

	groups, err := d.PermissionGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"roles", "system", "users"}, groups)

	byGroup, err := d.GetPermissionsByGroup(ctx, "users")
	require.NoError(t, err)
	require.Len(t, byGroup, 1)
	assert.Equal(t, p1.ID, byGroup[0].ID)

	system, err := d.SystemPermissions(ctx)
	require.NoError(t, err)
	require.Len(t, system, 1)

	byKey, err := d.GetPermissionByKey(ctx, " USERS:READ ")
	require.NoError(t, err)
	assert.Equal(t, p1.ID, byKey.ID)

	roles, err := d.RolesByPermissionKey(ctx, "users:read")
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, editor.ID, roles[0].ID)

	_, err = d.RolesByPermissionKey(ctx, "nope:nope")
	assert.True(t, apierror.IsKind(err, apierror.KindNotFound))

	byEmail, err := d.GetUserByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byEmail.ID)
	assert.Empty(t, byEmail.PasswordHash)

	byName, err := d.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byName.ID)

	users, err := d.GetUsersByIDs(ctx, []uuid.UUID{alice.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, d.RecordLogin(ctx, alice.ID))
	stored, err := stores.Users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLogin)
}

func TestDirectory_Pagination(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, _ := newTestDirectory(t, nil)
	for _, key := range []string{"a:1", "a:2", "a:3", "a:4", "a:5", "a:6", "a:7"} {
		mustPermission(t, d, key)
	}

	tests := []struct {
		name      string
		req       model.PageRequest
		wantLen   int
		wantPages int
		wantLimit int
	}{
		{name: "first page", req: model.PageRequest{Page: 1, Limit: 3}, wantLen: 3, wantPages: 3, wantLimit: 3},
		{name: "last page", req: model.PageRequest{Page: 3, Limit: 3}, wantLen: 1, wantPages: 3, wantLimit: 3},
		{name: "past the end", req: model.PageRequest{Page: 9, Limit: 3}, wantLen: 0, wantPages: 3, wantLimit: 3},
		{name: "defaults", req: model.PageRequest{}, wantLen: 7, wantPages: 1, wantLimit: model.DefaultLimit},
		{name: "huge page", req: model.PageRequest{Page: 1e17, Limit: 100}, wantLen: 0, wantPages: 1, wantLimit: 100},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			page, err := d.PermissionsPage(ctx, model.PermissionFilter{}, tt.req)
			require.NoError(t, err)
			assert.Len(t, page.Data, tt.wantLen)
			assert.Equal(t, 7, page.Total)
			assert.Equal(t, tt.wantPages, page.TotalPages)
			assert.Equal(t, tt.wantLimit, page.Limit)
			assert.LessOrEqual(t, len(page.Data), page.Limit)
		})
	}
}
