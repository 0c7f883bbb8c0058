// Package seed creates the system permissions and roles on startup.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtroode/rbac-server/internal/logger"
	"github.com/dtroode/rbac-server/internal/model"
	"github.com/dtroode/rbac-server/internal/service"
)

// PermissionDef describes one system permission.
type PermissionDef struct {
	Key         string
	Name        string
	Description string
	Group       string
}

// RoleDef describes one system role by the keys it grants.
type RoleDef struct {
	Name           string
	Description    string
	PermissionKeys []string
}

// Permissions is the system permission catalogue.
var Permissions = []PermissionDef{
	{Key: "users:read", Name: "Read users", Description: "View users and their details", Group: "users"},
	{Key: "users:create", Name: "Create users", Description: "Create new users", Group: "users"},
	{Key: "users:update", Name: "Update users", Description: "Modify user data", Group: "users"},
	{Key: "users:delete", Name: "Delete users", Description: "Delete users", Group: "users"},

	{Key: "roles:read", Name: "Read roles", Description: "View roles and their details", Group: "roles"},
	{Key: "roles:create", Name: "Create roles", Description: "Create new roles", Group: "roles"},
	{Key: "roles:update", Name: "Update roles", Description: "Modify roles", Group: "roles"},
	{Key: "roles:delete", Name: "Delete roles", Description: "Delete roles", Group: "roles"},

	{Key: "permissions:read", Name: "Read permissions", Description: "View permissions", Group: "permissions"},
	{Key: "permissions:create", Name: "Create permissions", Description: "Create new permissions", Group: "permissions"},
	{Key: "permissions:update", Name: "Update permissions", Description: "Modify existing permissions", Group: "permissions"},
	{Key: "permissions:delete", Name: "Delete permissions", Description: "Delete permissions", Group: "permissions"},
	{Key: "permissions:assign", Name: "Assign permissions", Description: "Assign permissions to roles", Group: "permissions"},

	{Key: "persons:read", Name: "Read persons", Description: "View persons and their details", Group: "persons"},
	{Key: "persons:create", Name: "Create persons", Description: "Create new persons", Group: "persons"},
	{Key: "persons:update", Name: "Update persons", Description: "Modify person data", Group: "persons"},
	{Key: "persons:delete", Name: "Delete persons", Description: "Delete persons", Group: "persons"},

	{Key: "businesses:read", Name: "Read businesses", Description: "View businesses and their details", Group: "businesses"},
	{Key: "businesses:create", Name: "Create businesses", Description: "Create new businesses", Group: "businesses"},
	{Key: "businesses:update", Name: "Update businesses", Description: "Modify business data", Group: "businesses"},
	{Key: "businesses:delete", Name: "Delete businesses", Description: "Delete businesses", Group: "businesses"},

	{Key: "system:read", Name: "Read settings", Description: "View system settings", Group: "system"},
	{Key: "system:update", Name: "Update settings", Description: "Modify system settings", Group: "system"},
	{Key: "system:logs", Name: "Read logs", Description: "View system logs", Group: "system"},
	{Key: "system:backup", Name: "Run backups", Description: "Run and restore backups", Group: "system"},
}

// Roles is the system role catalogue. The admin role is granted every
// permission in Permissions.
var Roles = []RoleDef{
	{Name: "admin", Description: "Full system access"},
	{
		Name:           "user-manager",
		Description:    "Manages users but not roles or permissions",
		PermissionKeys: []string{"users:read", "users:create", "users:update", "roles:read", "permissions:read"},
	},
	{
		Name:           "business-manager",
		Description:    "Manages businesses",
		PermissionKeys: []string{"businesses:read", "businesses:create", "businesses:update", "persons:read"},
	},
	{
		Name:           "data-manager",
		Description:    "Manages persons and businesses",
		PermissionKeys: []string{"persons:read", "persons:create", "persons:update", "businesses:read", "businesses:create", "businesses:update"},
	},
	{
		Name:           "user",
		Description:    "Standard user with basic access",
		PermissionKeys: []string{"persons:read", "persons:create", "persons:update", "businesses:read"},
	},
	{
		Name:           "viewer",
		Description:    "Read-only access",
		PermissionKeys: []string{"users:read", "roles:read", "permissions:read", "persons:read", "businesses:read", "system:read", "system:logs"},
	},
}

// Admin describes the optional bootstrap administrator. An empty Password
// skips it.
type Admin struct {
	Email    string
	Username string
	Password string
}

// Result counts what a run created.
type Result struct {
	Permissions int
	Roles       int
	AdminUser   bool
}

// Seeder creates whatever part of the catalogue is missing.
type Seeder struct {
	stores    service.Stores
	directory *service.Directory
	logger    *logger.Logger
}

func New(stores service.Stores, directory *service.Directory, logger *logger.Logger) *Seeder {
	return &Seeder{stores: stores, directory: directory, logger: logger}
}

// Run is idempotent: existing permissions, roles and users are left alone.
func (s *Seeder) Run(ctx context.Context, admin Admin) (Result, error) {
	var res Result

	ids := make(map[string]uuid.UUID, len(Permissions))
	for _, def := range Permissions {
		p, created, err := s.ensurePermission(ctx, def)
		if err != nil {
			return res, err
		}
		ids[p.Key] = p.ID
		if created {
			res.Permissions++
		}
	}

	var adminRole model.Role
	for _, def := range Roles {
		keys := def.PermissionKeys
		if def.Name == "admin" {
			keys = allKeys()
		}
		permIDs := make([]uuid.UUID, 0, len(keys))
		for _, k := range keys {
			id, ok := ids[k]
			if !ok {
				return res, fmt.Errorf("role %s references unknown permission %s", def.Name, k)
			}
			permIDs = append(permIDs, id)
		}
		role, created, err := s.ensureRole(ctx, def, permIDs)
		if err != nil {
			return res, err
		}
		if def.Name == "admin" {
			adminRole = role
		}
		if created {
			res.Roles++
		}
	}

	if admin.Password != "" {
		created, err := s.ensureAdmin(ctx, admin, adminRole.ID)
		if err != nil {
			return res, err
		}
		res.AdminUser = created
	}

	s.logger.Info("Seeder: catalogue ensured",
		"permissionsCreated", res.Permissions,
		"rolesCreated", res.Roles,
		"adminCreated", res.AdminUser)
	return res, nil
}

func (s *Seeder) ensurePermission(ctx context.Context, def PermissionDef) (model.Permission, bool, error) {
	p, err := s.stores.Permissions.GetByKey(ctx, def.Key)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return model.Permission{}, false, fmt.Errorf("failed to get permission %s: %w", def.Key, err)
	}

	err = s.stores.Tx.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		p, err = tx.Permissions().Create(ctx, model.Permission{
			Key:         def.Key,
			Name:        def.Name,
			Description: def.Description,
			Group:       def.Group,
			IsSystem:    true,
		})
		return err
	})
	if err != nil {
		return model.Permission{}, false, fmt.Errorf("failed to seed permission %s: %w", def.Key, err)
	}
	return p, true, nil
}

func (s *Seeder) ensureRole(ctx context.Context, def RoleDef, permIDs []uuid.UUID) (model.Role, bool, error) {
	r, err := s.stores.Roles.GetByName(ctx, def.Name)
	if err == nil {
		return r, false, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return model.Role{}, false, fmt.Errorf("failed to get role %s: %w", def.Name, err)
	}

	err = s.stores.Tx.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		r, err = tx.Roles().Create(ctx, model.Role{
			Name:          def.Name,
			Description:   def.Description,
			PermissionIDs: permIDs,
			IsSystem:      true,
		})
		return err
	})
	if err != nil {
		return model.Role{}, false, fmt.Errorf("failed to seed role %s: %w", def.Name, err)
	}
	return r, true, nil
}

func (s *Seeder) ensureAdmin(ctx context.Context, admin Admin, roleID uuid.UUID) (bool, error) {
	if _, err := s.stores.Users.GetByUsername(ctx, admin.Username); err == nil {
		return false, nil
	} else if !errors.Is(err, model.ErrNotFound) {
		return false, fmt.Errorf("failed to get admin user: %w", err)
	}

	_, err := s.directory.CreateUser(ctx, service.CreateUserInput{
		Email:           admin.Email,
		Username:        admin.Username,
		Password:        admin.Password,
		RoleIDs:         []uuid.UUID{roleID},
		IsEmailVerified: true,
	})
	if err != nil {
		return false, fmt.Errorf("failed to seed admin user: %w", err)
	}
	return true, nil
}

func allKeys() []string {
	keys := make([]string, 0, len(Permissions))
	for _, p := range Permissions {
		keys = append(keys, p.Key)
	}
	return keys
}
