package rpc

import "time"

type Empty struct{}

type IDRequest struct {
	ID string `json:"id"`
}

type IDsRequest struct {
	IDs []string `json:"ids"`
}

type KeyRequest struct {
	Key string `json:"key"`
}

type NameRequest struct {
	Name string `json:"name"`
}

type GroupRequest struct {
	Group string `json:"group"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type UsernameRequest struct {
	Username string `json:"username"`
}

// PageInfo echoes the normalized page request and the totals.
type PageInfo struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

type Permission struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Group       string    `json:"group,omitempty"`
	IsSystem    bool      `json:"isSystem"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Role struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	PermissionIDs []string  `json:"permissionIds"`
	IsSystem      bool      `json:"isSystem"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type ExternalAuth struct {
	Provider   string `json:"provider"`
	ProviderID string `json:"providerId"`
}

// User never carries password or reset material.
type User struct {
	ID              string        `json:"id"`
	Email           string        `json:"email"`
	Username        string        `json:"username"`
	PersonID        string        `json:"personId,omitempty"`
	RoleIDs         []string      `json:"roleIds"`
	IsActive        bool          `json:"isActive"`
	IsEmailVerified bool          `json:"isEmailVerified"`
	AuthMethod      string        `json:"authMethod"`
	ExternalAuth    *ExternalAuth `json:"externalAuth,omitempty"`
	LastLogin       *time.Time    `json:"lastLogin,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// Auth

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

type CompletePasswordResetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type MeResponse struct {
	User        User     `json:"user"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// Permissions

type CreatePermissionRequest struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Group       string `json:"group"`
}

type UpdatePermissionRequest struct {
	ID          string  `json:"id"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Group       *string `json:"group,omitempty"`
}

type ListPermissionsRequest struct {
	Group    string `json:"group,omitempty"`
	IsSystem *bool  `json:"isSystem,omitempty"`
	Search   string `json:"search,omitempty"`
	Page     int    `json:"page,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type PermissionList struct {
	Permissions []Permission `json:"permissions"`
}

type PermissionPage struct {
	Permissions []Permission `json:"permissions"`
	PageInfo
}

type GroupList struct {
	Groups []string `json:"groups"`
}

// Roles

type CreateRoleRequest struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	PermissionIDs []string `json:"permissionIds"`
}

type UpdateRoleRequest struct {
	ID          string  `json:"id"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type AssignPermissionsRequest struct {
	ID            string   `json:"id"`
	PermissionIDs []string `json:"permissionIds"`
}

type ListRolesRequest struct {
	IsSystem *bool  `json:"isSystem,omitempty"`
	Search   string `json:"search,omitempty"`
	Page     int    `json:"page,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type RoleList struct {
	Roles []Role `json:"roles"`
}

type RolePage struct {
	Roles []Role `json:"roles"`
	PageInfo
}

// Users

type CreateUserRequest struct {
	Email           string        `json:"email"`
	Username        string        `json:"username"`
	Password        string        `json:"password,omitempty"`
	PersonID        string        `json:"personId,omitempty"`
	RoleIDs         []string      `json:"roleIds"`
	IsActive        *bool         `json:"isActive,omitempty"`
	IsEmailVerified bool          `json:"isEmailVerified"`
	AuthMethod      string        `json:"authMethod,omitempty"`
	ExternalAuth    *ExternalAuth `json:"externalAuth,omitempty"`
}

// UpdateUserRequest leaves roles untouched when RoleIDs is absent; an
// explicit empty list clears them.
type UpdateUserRequest struct {
	ID              string        `json:"id"`
	Email           *string       `json:"email,omitempty"`
	Username        *string       `json:"username,omitempty"`
	Password        *string       `json:"password,omitempty"`
	PersonID        *string       `json:"personId,omitempty"`
	RoleIDs         *[]string     `json:"roleIds,omitempty"`
	IsActive        *bool         `json:"isActive,omitempty"`
	IsEmailVerified *bool         `json:"isEmailVerified,omitempty"`
	AuthMethod      *string       `json:"authMethod,omitempty"`
	ExternalAuth    *ExternalAuth `json:"externalAuth,omitempty"`
}

type UpdateUserRolesRequest struct {
	ID      string   `json:"id"`
	RoleIDs []string `json:"roleIds"`
}

type SetUserStatusRequest struct {
	ID       string `json:"id"`
	IsActive bool   `json:"isActive"`
}

type ListUsersRequest struct {
	IsActive   *bool  `json:"isActive,omitempty"`
	RoleID     string `json:"roleId,omitempty"`
	AuthMethod string `json:"authMethod,omitempty"`
	Search     string `json:"search,omitempty"`
	Page       int    `json:"page,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type UserList struct {
	Users []User `json:"users"`
}

type UserPage struct {
	Users []User `json:"users"`
	PageInfo
}

type VerifyPermissionRequest struct {
	UserID string `json:"userId"`
	Key    string `json:"key"`
}

type VerifyPermissionsRequest struct {
	UserID string   `json:"userId"`
	Keys   []string `json:"keys"`
}

type VerifyRoleRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

type VerifyRolesRequest struct {
	UserID string   `json:"userId"`
	Roles  []string `json:"roles"`
}

type VerifyResponse struct {
	Granted bool `json:"granted"`
}
