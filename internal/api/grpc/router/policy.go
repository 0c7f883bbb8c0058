package router

import (
	"github.com/dtroode/rbac-server/internal/api/grpc/rpc"
	"github.com/dtroode/rbac-server/internal/guard"
)

const (
	roleAdmin       = "admin"
	roleUserManager = "user-manager"
)

func admin(keys ...string) guard.Policy {
	return guard.Policy{RequiredRoles: []string{roleAdmin}, RequiredPermissions: keys}
}

// Policies maps every full method name to its access requirement. Methods
// not listed require an authenticated active user only.
func Policies() map[string]guard.Policy {
	p := make(map[string]guard.Policy)
	set := func(service string, policy guard.Policy, methods ...string) {
		for _, m := range methods {
			p[rpc.FullMethod(service, m)] = policy
		}
	}

	set(rpc.AuthService, guard.Policy{Public: true},
		"Login", "Refresh", "Logout", "RequestPasswordReset", "CompletePasswordReset")

	set(rpc.PermissionsService, admin("permissions:read"),
		"Get", "GetByKey", "GetByIDs", "List", "ListByGroup", "ListSystem", "Groups")
	set(rpc.PermissionsService, admin("permissions:create"), "Create")
	set(rpc.PermissionsService, admin("permissions:update"), "Update")
	set(rpc.PermissionsService, admin("permissions:delete"), "Delete")

	set(rpc.RolesService, admin("roles:read"),
		"Get", "GetByName", "GetByIDs", "List", "ListByPermission", "ListByPermissionKey", "ListSystem", "Permissions")
	set(rpc.RolesService, admin("roles:create"), "Create")
	set(rpc.RolesService, admin("roles:update"), "Update", "AssignPermissions")
	set(rpc.RolesService, admin("roles:delete"), "Delete")

	set(rpc.UsersService, guard.Policy{
		RequiredRoles:       []string{roleAdmin, roleUserManager},
		RequiredPermissions: []string{"users:read"},
	},
		"Get", "GetByEmail", "GetByUsername", "GetByIDs", "List", "Permissions",
		"VerifyPermission", "VerifyAllPermissions", "VerifyAnyPermission",
		"VerifyRole", "VerifyAllRoles", "VerifyAnyRole")
	set(rpc.UsersService, admin("users:create"), "Create")
	set(rpc.UsersService, admin("users:update"), "Update", "UpdateRoles", "SetStatus", "RecordLogin")
	set(rpc.UsersService, admin("users:delete"), "Delete")

	return p
}

// throttled reports whether a method is a public auth call subject to the
// per-peer rate limit.
func throttled(policies map[string]guard.Policy, fullMethod string) bool {
	return policies[fullMethod].Public
}
