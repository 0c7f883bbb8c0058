package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/rbac-server/internal/apierror"
	"github.com/dtroode/rbac-server/internal/model"
)

// CreateUserInput holds the fields of a new user. A nil IsActive means active;
// an empty AuthMethod means local.
type CreateUserInput struct {
	Email           string
	Username        string
	Password        string
	PersonID        *uuid.UUID
	RoleIDs         []uuid.UUID
	IsActive        *bool
	IsEmailVerified bool
	AuthMethod      model.AuthMethod
	ExternalAuth    *model.ExternalAuth
}

// UpdateUserInput holds the optional user changes. A nil RoleIDs leaves the
// roles untouched; a non-nil empty slice clears them.
type UpdateUserInput struct {
	Email           *string
	Username        *string
	Password        *string
	PersonID        *uuid.UUID
	RoleIDs         *[]uuid.UUID
	IsActive        *bool
	IsEmailVerified *bool
	AuthMethod      *model.AuthMethod
	ExternalAuth    *model.ExternalAuth
}

func (d *Directory) CreateUser(ctx context.Context, in CreateUserInput) (model.User, error) {
	email := normalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)
	if email == "" || username == "" {
		return model.User{}, apierror.NewErrInvalidArgument("email and username are required")
	}
	method := in.AuthMethod
	if method == "" {
		method = model.AuthMethodLocal
	}
	if !method.Valid() {
		return model.User{}, apierror.NewErrInvalidArgument("unknown auth method %q", method)
	}
	if method == model.AuthMethodLocal && in.Password == "" {
		return model.User{}, apierror.NewErrPasswordRequired()
	}

	if err := d.checkEmailFree(ctx, email); err != nil {
		return model.User{}, err
	}
	if err := d.checkUsernameFree(ctx, username); err != nil {
		return model.User{}, err
	}
	if err := d.checkRolesExist(ctx, in.RoleIDs); err != nil {
		return model.User{}, err
	}

	var hash string
	if in.Password != "" {
		var err error
		if hash, err = d.hasher.Hash(in.Password); err != nil {
			return model.User{}, fmt.Errorf("failed to hash password: %w", err)
		}
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	var created model.User
	err := d.tx.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		var err error
		created, err = tx.Users().Create(ctx, model.User{
			Email:           email,
			Username:        username,
			PasswordHash:    hash,
			PersonID:        in.PersonID,
			RoleIDs:         in.RoleIDs,
			IsActive:        active,
			IsEmailVerified: in.IsEmailVerified,
			AuthMethod:      method,
			ExternalAuth:    in.ExternalAuth,
		})
		return err
	})
	if err != nil {
		if dup := conflictError(err, map[string]string{"email": email, "username": username}); dup != nil {
			return model.User{}, dup
		}
		if errors.Is(err, model.ErrDanglingReference) {
			return model.User{}, apierror.NewErrDanglingReference("role", idStrings(in.RoleIDs))
		}
		d.logger.Error("Directory service: failed to create user",
			"username", username,
			"error", err.Error())
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	d.logger.Info("Directory service: user created", "userID", created.ID, "username", username)
	return created.Sanitized(), nil
}

// UpdateUser applies the patch and, when given, replaces the roles in the
// same transaction. Email and username are re-checked only when they change.
func (d *Directory) UpdateUser(ctx context.Context, id uuid.UUID, in UpdateUserInput) (model.User, error) {
	current, err := d.getUser(ctx, id)
	if err != nil {
		return model.User{}, err
	}

	patch := model.UserPatch{
		PersonID:        in.PersonID,
		IsActive:        in.IsActive,
		IsEmailVerified: in.IsEmailVerified,
		AuthMethod:      in.AuthMethod,
		ExternalAuth:    in.ExternalAuth,
	}
	conflictValues := map[string]string{}

	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if email == "" {
			return model.User{}, apierror.NewErrInvalidArgument("email cannot be empty")
		}
		if email != normalizeEmail(current.Email) {
			if err := d.checkEmailFree(ctx, email); err != nil {
				return model.User{}, err
			}
		}
		patch.Email = &email
		conflictValues["email"] = email
	}
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username == "" {
			return model.User{}, apierror.NewErrInvalidArgument("username cannot be empty")
		}
		if username != current.Username {
			if err := d.checkUsernameFree(ctx, username); err != nil {
				return model.User{}, err
			}
		}
		patch.Username = &username
		conflictValues["username"] = username
	}

	method := current.AuthMethod
	if in.AuthMethod != nil {
		if !in.AuthMethod.Valid() {
			return model.User{}, apierror.NewErrInvalidArgument("unknown auth method %q", *in.AuthMethod)
		}
		method = *in.AuthMethod
	}
	if in.Password != nil && *in.Password != "" {
		hash, err := d.hasher.Hash(*in.Password)
		if err != nil {
			return model.User{}, fmt.Errorf("failed to hash password: %w", err)
		}
		patch.PasswordHash = &hash
	} else if method == model.AuthMethodLocal && current.PasswordHash == "" {
		return model.User{}, apierror.NewErrPasswordRequired()
	}

	if in.RoleIDs != nil {
		if err := d.checkRolesExist(ctx, *in.RoleIDs); err != nil {
			return model.User{}, err
		}
	}

	var updated model.User
	err = d.tx.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		updated, err = tx.Users().Update(ctx, id, patch)
		if err != nil {
			return err
		}
		if in.RoleIDs != nil {
			updated, err = tx.Users().SetRoles(ctx, id, *in.RoleIDs)
		}
		return err
	})
	if err != nil {
		return model.User{}, d.userWriteError(err, id, conflictValues, in.RoleIDs)
	}

	if in.RoleIDs != nil || in.IsActive != nil {
		d.invalidateUser(ctx, id)
	}
	return updated.Sanitized(), nil
}

// UpdateUserRoles replaces the user's roles.
func (d *Directory) UpdateUserRoles(ctx context.Context, id uuid.UUID, roleIDs []uuid.UUID) (model.User, error) {
	if _, err := d.getUser(ctx, id); err != nil {
		return model.User{}, err
	}
	if err := d.checkRolesExist(ctx, roleIDs); err != nil {
		return model.User{}, err
	}

	var updated model.User
	err := d.tx.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		var err error
		updated, err = tx.Users().SetRoles(ctx, id, roleIDs)
		return err
	})
	if err != nil {
		return model.User{}, d.userWriteError(err, id, nil, &roleIDs)
	}

	d.invalidateUser(ctx, id)
	return updated.Sanitized(), nil
}

// SetUserStatus activates or deactivates the user.
func (d *Directory) SetUserStatus(ctx context.Context, id uuid.UUID, active bool) (model.User, error) {
	return d.UpdateUser(ctx, id, UpdateUserInput{IsActive: &active})
}

// DeleteUser removes the user. Users are leaves of the graph, so nothing
// blocks the delete.
func (d *Directory) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if _, err := d.getUser(ctx, id); err != nil {
		return err
	}

	err := d.tx.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		return tx.Users().Delete(ctx, id)
	})
	if err != nil {
		return d.userWriteError(err, id, nil, nil)
	}

	d.invalidateUser(ctx, id)
	d.logger.Info("Directory service: user deleted", "userID", id)
	return nil
}

// RecordLogin stamps the last login time.
func (d *Directory) RecordLogin(ctx context.Context, id uuid.UUID) error {
	if err := d.users.SetLastLogin(ctx, id, time.Now().UTC()); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return apierror.NewErrNotFound("user", "id", id.String())
		}
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

func (d *Directory) GetUser(ctx context.Context, id uuid.UUID) (model.User, error) {
	u, err := d.getUser(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	return u.Sanitized(), nil
}

func (d *Directory) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	email = normalizeEmail(email)
	u, err := d.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.User{}, apierror.NewErrNotFound("user", "email", email)
		}
		return model.User{}, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u.Sanitized(), nil
}

func (d *Directory) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	username = strings.TrimSpace(username)
	u, err := d.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.User{}, apierror.NewErrNotFound("user", "username", username)
		}
		return model.User{}, fmt.Errorf("failed to get user by username: %w", err)
	}
	return u.Sanitized(), nil
}

func (d *Directory) GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]model.User, error) {
	us, err := d.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get users by ids: %w", err)
	}
	return sanitizeAll(us), nil
}

func (d *Directory) FindUsers(ctx context.Context, filter model.UserFilter) ([]model.User, error) {
	us, err := d.users.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	return sanitizeAll(us), nil
}

func (d *Directory) UsersPage(ctx context.Context, filter model.UserFilter, page model.PageRequest) (model.Page[model.User], error) {
	p, err := d.users.FindPage(ctx, filter, page.Normalize())
	if err != nil {
		return model.Page[model.User]{}, fmt.Errorf("failed to page users: %w", err)
	}
	p.Data = sanitizeAll(p.Data)
	return p, nil
}

func (d *Directory) getUser(ctx context.Context, id uuid.UUID) (model.User, error) {
	u, err := d.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.User{}, apierror.NewErrNotFound("user", "id", id.String())
		}
		return model.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (d *Directory) checkEmailFree(ctx context.Context, email string) error {
	if _, err := d.users.GetByEmail(ctx, email); err == nil {
		return apierror.NewErrDuplicateEmail(email)
	} else if !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("failed to check email: %w", err)
	}
	return nil
}

func (d *Directory) checkUsernameFree(ctx context.Context, username string) error {
	if _, err := d.users.GetByUsername(ctx, username); err == nil {
		return apierror.NewErrDuplicateUsername(username)
	} else if !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("failed to check username: %w", err)
	}
	return nil
}

func (d *Directory) userWriteError(err error, id uuid.UUID, values map[string]string, roleIDs *[]uuid.UUID) error {
	if dup := conflictError(err, values); dup != nil {
		return dup
	}
	switch {
	case errors.Is(err, model.ErrNotFound):
		return apierror.NewErrNotFound("user", "id", id.String())
	case errors.Is(err, model.ErrDanglingReference) && roleIDs != nil:
		return apierror.NewErrDanglingReference("role", idStrings(*roleIDs))
	}
	d.logger.Error("Directory service: failed to write user",
		"userID", id,
		"error", err.Error())
	return fmt.Errorf("failed to write user: %w", err)
}

func sanitizeAll(us []model.User) []model.User {
	out := make([]model.User, len(us))
	for i, u := range us {
		out[i] = u.Sanitized()
	}
	return out
}
