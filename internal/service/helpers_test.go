package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dtroode/rbac-server/internal/model"
	"github.com/dtroode/rbac-server/internal/password"
	"github.com/dtroode/rbac-server/internal/repository/memory"
	"github.com/dtroode/rbac-server/internal/testutil"
)

func memoryStores() Stores {
	st := memory.New()
	return Stores{
		Permissions:   st.Permissions(),
		Roles:         st.Roles(),
		Users:         st.Users(),
		RefreshTokens: st.RefreshTokens(),
		Tx:            st,
	}
}

func newTestDirectory(t *testing.T, cache model.PermissionCache) (*Directory, Stores) {
	t.Helper()
	stores := memoryStores()
	return NewDirectory(stores, password.NewBcrypt(bcrypt.MinCost), cache, testutil.MakeNoopLogger()), stores
}

func mustPermission(t *testing.T, d *Directory, key string) model.Permission {
	t.Helper()
	p, err := d.CreatePermission(context.Background(), CreatePermissionInput{Key: key, Name: key})
	require.NoError(t, err)
	return p
}

func mustRole(t *testing.T, d *Directory, name string, perms ...model.Permission) model.Role {
	t.Helper()
	ids := make([]uuid.UUID, 0, len(perms))
	for _, p := range perms {
		ids = append(ids, p.ID)
	}
	r, err := d.CreateRole(context.Background(), CreateRoleInput{Name: name, PermissionIDs: ids})
	require.NoError(t, err)
	return r
}

func mustUser(t *testing.T, d *Directory, username string, roles ...model.Role) model.User {
	t.Helper()
	ids := make([]uuid.UUID, 0, len(roles))
	for _, r := range roles {
		ids = append(ids, r.ID)
	}
	u, err := d.CreateUser(context.Background(), CreateUserInput{
		Email:    username + "@example.com",
		Username: username,
		Password: "secret-" + username,
		RoleIDs:  ids,
	})
	require.NoError(t, err)
	return u
}

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }
