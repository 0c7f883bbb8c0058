package seed

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dtroode/rbac-server/internal/apierror"
	"github.com/dtroode/rbac-server/internal/model"
	"github.com/dtroode/rbac-server/internal/password"
	"github.com/dtroode/rbac-server/internal/repository/memory"
	"github.com/dtroode/rbac-server/internal/service"
	"github.com/dtroode/rbac-server/internal/testutil"
)

func newSeeder() (*Seeder, service.Stores, *service.Directory) {
	st := memory.New()
	stores := service.Stores{
		Permissions: st.Permissions(), Roles: st.Roles(), Users: st.Users(),
		RefreshTokens: st.RefreshTokens(), Tx: st,
	}
	lg := testutil.MakeNoopLogger()
	dir := service.NewDirectory(stores, password.NewBcrypt(bcrypt.MinCost), nil, lg)
	return New(stores, dir, lg), stores, dir
}

func TestCatalogue(t *testing.T) {
	t.Parallel()
	assert.Len(t, Permissions, 25)
	assert.Len(t, Roles, 6)

	keys := map[string]bool{}
	for _, p := range Permissions {
		assert.Equal(t, service.NormalizeKey(p.Key), p.Key)
		assert.False(t, keys[p.Key], "duplicate key %s", p.Key)
		keys[p.Key] = true
	}
	for _, r := range Roles {
		for _, k := range r.PermissionKeys {
			assert.True(t, keys[k], "role %s references %s", r.Name, k)
		}
	}
}

func TestSeeder_RunIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, stores, dir := newSeeder()
	admin := Admin{Email: "admin@example.com", Username: "admin", Password: "admin-pass"}

	res, err := s.Run(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, Result{Permissions: 25, Roles: 6, AdminUser: true}, res)

	res, err = s.Run(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	adminRole, err := stores.Roles.GetByName(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, adminRole.IsSystem)
	assert.Len(t, adminRole.PermissionIDs, 25)

	u, err := stores.Users.GetByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{adminRole.ID}, u.RoleIDs)
	assert.True(t, u.IsEmailVerified)

	// seeded entities are system entities
	err = dir.DeleteRole(ctx, adminRole.ID)
	assert.True(t, apierror.IsKind(err, apierror.KindSystemImmutable))

	system, err := dir.SystemPermissions(ctx)
	require.NoError(t, err)
	assert.Len(t, system, 25)
}

func TestSeeder_FillsGaps(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, stores, _ := newSeeder()

	_, err := stores.Permissions.Create(ctx, model.Permission{Key: "users:read", Name: "pre-existing"})
	require.NoError(t, err)

	res, err := s.Run(ctx, Admin{})
	require.NoError(t, err)
	assert.Equal(t, 24, res.Permissions)
	assert.False(t, res.AdminUser)

	p, err := stores.Permissions.GetByKey(ctx, "users:read")
	require.NoError(t, err)
	assert.Equal(t, "pre-existing", p.Name)
}
