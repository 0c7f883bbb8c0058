package postgres

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/dtroode/rbac-server/internal/model"
)

func TestWhere_Empty(t *testing.T) {
	w := &where{}
	assert.Equal(t, "", w.String())

	limit, args := w.limit(10, 20)
	assert.Equal(t, " LIMIT $1 OFFSET $2", limit)
	assert.Equal(t, []any{10, 20}, args)
}

func TestPermissionWhere(t *testing.T) {
	sys := true
	w := permissionWhere(model.PermissionFilter{Group: "users", IsSystem: &sys, Search: "Read"})

	assert.Equal(t, " WHERE group_name = $1 AND is_system = $2 AND (key LIKE $3 OR lower(name) LIKE $4)", w.String())
	assert.Equal(t, []any{"users", true, "%read%", "%read%"}, w.args)

	limit, args := w.limit(5, 0)
	assert.Equal(t, " LIMIT $5 OFFSET $6", limit)
	assert.Len(t, args, 6)
	assert.Len(t, w.args, 4, "limit must not grow the filter arguments")
}

func TestUserWhere(t *testing.T) {
	active := false
	roleID := uuid.New()
	w := userWhere(model.UserFilter{IsActive: &active, RoleID: &roleID, AuthMethod: model.AuthMethodGoogle})

	assert.Equal(t,
		" WHERE u.is_active = $1 AND u.auth_method = $2 AND EXISTS (SELECT 1 FROM user_roles ur WHERE ur.user_id = u.id AND ur.role_id = $3)",
		w.String())
	assert.Equal(t, []any{false, "google", roleID}, w.args)
}

func TestRoleWhere(t *testing.T) {
	w := roleWhere(model.RoleFilter{Search: "Edit"})
	assert.Equal(t, " WHERE lower(r.name) LIKE $1", w.String())
	assert.Equal(t, []any{"%edit%"}, w.args)
}

func TestNewRepositories(t *testing.T) {
	db := &Connection{}

	assert.Equal(t, Querier(db), NewPermissionRepository(db).db)
	assert.Equal(t, Querier(db), NewRoleRepository(db).db)
	assert.Equal(t, Querier(db), NewUserRepository(db).db)
	assert.Equal(t, Querier(db), NewRefreshTokenRepository(db).db)
}
