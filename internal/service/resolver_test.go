package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/rbac-server/internal/apierror"
	"github.com/dtroode/rbac-server/internal/cache"
	"github.com/dtroode/rbac-server/internal/mocks"
	"github.com/dtroode/rbac-server/internal/model"
	"github.com/dtroode/rbac-server/internal/testutil"
)

func keysOf(perms []model.Permission) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, p.Key)
	}
	return out
}

func TestResolver_EffectivePermissionsUnion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, stores := newTestDirectory(t, nil)
	r := NewResolver(stores, nil, testutil.MakeNoopLogger())

	p1 := mustPermission(t, d, "p:1")
	p2 := mustPermission(t, d, "p:2")
	p3 := mustPermission(t, d, "p:3")
	mustPermission(t, d, "p:4")
	r1 := mustRole(t, d, "r1", p1, p2)
	r2 := mustRole(t, d, "r2", p2, p3)
	u := mustUser(t, d, "alice", r1, r2)

	perms, err := r.EffectivePermissions(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"p:1", "p:2", "p:3"}, keysOf(perms))

	bare := mustUser(t, d, "bob")
	perms, err = r.EffectivePermissions(ctx, bare.ID)
	require.NoError(t, err)
	assert.Empty(t, perms)

	_, err = r.EffectivePermissions(ctx, uuid.New())
	assert.True(t, apierror.IsKind(err, apierror.KindNotFound))
}

func TestResolver_HasPermissionScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, stores := newTestDirectory(t, nil)
	r := NewResolver(stores, nil, testutil.MakeNoopLogger())

	create := mustPermission(t, d, "users:create")
	mustPermission(t, d, "users:delete")
	editor := mustRole(t, d, "editor", create)
	u := mustUser(t, d, "alice", editor)

	tests := []struct {
		name    string
		key     string
		want    bool
		errKind apierror.Kind
	}{
		{name: "granted", key: "users:create", want: true},
		{name: "granted after normalization", key: " USERS:CREATE ", want: true},
		{name: "not granted", key: "users:delete", want: false},
		{name: "unknown key", key: "users:fly", errKind: apierror.KindNotFound},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := r.HasPermission(ctx, u.ID, tt.key)
			if tt.errKind != "" {
				assert.True(t, apierror.IsKind(err, tt.errKind))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_InactiveUserHoldsNothing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, stores := newTestDirectory(t, nil)
	r := NewResolver(stores, nil, testutil.MakeNoopLogger())

	p := mustPermission(t, d, "users:create")
	editor := mustRole(t, d, "editor", p)
	u := mustUser(t, d, "alice", editor)
	_, err := d.SetUserStatus(ctx, u.ID, false)
	require.NoError(t, err)

	ok, err := r.HasPermission(ctx, u.ID, "users:create")
	require.NoError(t, err)
	assert.False(t, ok)

	// the short-circuit happens before the key lookup
	ok, err = r.HasPermission(ctx, u.ID, "does:not-exist")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.HasRole(ctx, u.ID, "editor")
	require.NoError(t, err)
	assert.False(t, ok)

	keys, err := r.GrantedKeys(ctx, model.User{ID: u.ID, RoleIDs: u.RoleIDs})
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestResolver_AllAndAny(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, stores := newTestDirectory(t, nil)
	r := NewResolver(stores, nil, testutil.MakeNoopLogger())

	read := mustPermission(t, d, "users:read")
	mustPermission(t, d, "users:update")
	viewer := mustRole(t, d, "viewer", read)
	mustRole(t, d, "manager")
	u := mustUser(t, d, "alice", viewer)

	ok, err := r.HasAllPermissions(ctx, u.ID, []string{"users:read", "users:update"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.HasAllPermissions(ctx, u.ID, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.HasAnyPermission(ctx, u.ID, []string{"users:update", "users:read"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.HasAnyPermission(ctx, u.ID, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.HasRole(ctx, u.ID, viewer.ID.String())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.HasAnyRole(ctx, u.ID, []string{"manager", "viewer"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.HasAllRoles(ctx, u.ID, []string{"manager", "viewer"})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = r.HasRole(ctx, u.ID, "ghost")
	assert.True(t, apierror.IsKind(err, apierror.KindNotFound))

	names, err := r.RoleNames(ctx, model.User{RoleIDs: u.RoleIDs})
	require.NoError(t, err)
	assert.Equal(t, []string{"viewer"}, names)
}

func TestResolver_SkipsDeletedRoles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, stores := newTestDirectory(t, nil)
	r := NewResolver(stores, nil, testutil.MakeNoopLogger())

	p := mustPermission(t, d, "a:b")
	role := mustRole(t, d, "r", p)

	// a user record still pointing at a role id that no longer resolves
	u, err := stores.Users.Create(ctx, model.User{Email: "x@example.com", Username: "x", IsActive: true, RoleIDs: []uuid.UUID{role.ID}})
	require.NoError(t, err)
	u.RoleIDs = append(u.RoleIDs, uuid.New())

	keys, err := r.GrantedKeys(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, []string{"a:b"}, keys)
}

func TestResolver_GrantedKeysCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, stores := newTestDirectory(t, nil)
	p := mustPermission(t, d, "users:read")
	role := mustRole(t, d, "viewer", p)
	u := mustUser(t, d, "alice", role)
	u.IsActive = true

	t.Run("miss fills the cache with the read stamp", func(t *testing.T) {
		t.Parallel()
		stamp := model.CacheStamp{All: 2, User: 5}
		cache := mocks.NewPermissionCache(t)
		cache.On("Get", mock.Anything, u.ID).Return(nil, stamp, false, nil).Once()
		cache.On("Set", mock.Anything, u.ID, stamp, []string{"users:read"}).Return(nil).Once()

		keys, err := NewResolver(stores, cache, testutil.MakeNoopLogger()).GrantedKeys(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, []string{"users:read"}, keys)
	})

	t.Run("hit skips the store", func(t *testing.T) {
		t.Parallel()
		cache := mocks.NewPermissionCache(t)
		cache.On("Get", mock.Anything, u.ID).Return([]string{"cached:key"}, model.CacheStamp{}, true, nil).Once()

		keys, err := NewResolver(stores, cache, testutil.MakeNoopLogger()).GrantedKeys(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, []string{"cached:key"}, keys)
	})

	t.Run("read error skips the fill", func(t *testing.T) {
		t.Parallel()
		cache := mocks.NewPermissionCache(t)
		cache.On("Get", mock.Anything, u.ID).Return(nil, model.CacheStamp{}, false, assert.AnError).Once()

		keys, err := NewResolver(stores, cache, testutil.MakeNoopLogger()).GrantedKeys(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, []string{"users:read"}, keys)
		cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("write error falls back", func(t *testing.T) {
		t.Parallel()
		cache := mocks.NewPermissionCache(t)
		cache.On("Get", mock.Anything, u.ID).Return(nil, model.CacheStamp{}, false, nil).Once()
		cache.On("Set", mock.Anything, u.ID, mock.Anything, mock.Anything).Return(assert.AnError).Once()

		keys, err := NewResolver(stores, cache, testutil.MakeNoopLogger()).GrantedKeys(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, []string{"users:read"}, keys)
	})
}

// revokingCache invalidates the user between computing and storing, the way
// a concurrent role change would.
type revokingCache struct {
	*cache.LRU
}

func (c revokingCache) Set(ctx context.Context, userID uuid.UUID, stamp model.CacheStamp, keys []string) error {
	if err := c.LRU.Invalidate(ctx, userID); err != nil {
		return err
	}
	return c.LRU.Set(ctx, userID, stamp, keys)
}

func TestResolver_GrantedKeysIgnoresRacedFill(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, stores := newTestDirectory(t, nil)
	p := mustPermission(t, d, "users:read")
	role := mustRole(t, d, "viewer", p)
	u := mustUser(t, d, "alice", role)
	u.IsActive = true

	c := revokingCache{LRU: cache.NewLRU(8, time.Minute)}
	keys, err := NewResolver(stores, c, testutil.MakeNoopLogger()).GrantedKeys(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, []string{"users:read"}, keys)

	_, _, ok, err := c.LRU.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
