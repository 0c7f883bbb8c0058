package rpc

import (
	"github.com/google/uuid"

	"github.com/dtroode/rbac-server/internal/model"
)

func FromPermission(p model.Permission) Permission {
	return Permission{
		ID:          p.ID.String(),
		Key:         p.Key,
		Name:        p.Name,
		Description: p.Description,
		Group:       p.Group,
		IsSystem:    p.IsSystem,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func FromPermissions(ps []model.Permission) []Permission {
	out := make([]Permission, 0, len(ps))
	for _, p := range ps {
		out = append(out, FromPermission(p))
	}
	return out
}

func FromRole(r model.Role) Role {
	return Role{
		ID:            r.ID.String(),
		Name:          r.Name,
		Description:   r.Description,
		PermissionIDs: idStrings(r.PermissionIDs),
		IsSystem:      r.IsSystem,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func FromRoles(rs []model.Role) []Role {
	out := make([]Role, 0, len(rs))
	for _, r := range rs {
		out = append(out, FromRole(r))
	}
	return out
}

// FromUser drops every credential field of u.
func FromUser(u model.User) User {
	out := User{
		ID:              u.ID.String(),
		Email:           u.Email,
		Username:        u.Username,
		RoleIDs:         idStrings(u.RoleIDs),
		IsActive:        u.IsActive,
		IsEmailVerified: u.IsEmailVerified,
		AuthMethod:      string(u.AuthMethod),
		LastLogin:       u.LastLogin,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
	if u.PersonID != nil {
		out.PersonID = u.PersonID.String()
	}
	if u.ExternalAuth != nil {
		out.ExternalAuth = &ExternalAuth{Provider: u.ExternalAuth.Provider, ProviderID: u.ExternalAuth.ProviderID}
	}
	return out
}

func FromUsers(us []model.User) []User {
	out := make([]User, 0, len(us))
	for _, u := range us {
		out = append(out, FromUser(u))
	}
	return out
}

func FromPage[T any](p model.Page[T]) PageInfo {
	return PageInfo{Total: p.Total, Page: p.Page, Limit: p.Limit, TotalPages: p.TotalPages}
}

// ToExternalAuth returns nil for a nil message.
func ToExternalAuth(e *ExternalAuth) *model.ExternalAuth {
	if e == nil {
		return nil
	}
	return &model.ExternalAuth{Provider: e.Provider, ProviderID: e.ProviderID}
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
