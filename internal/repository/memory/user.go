package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/rbac-server/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

type UserRepository struct {
	scope scope
}

func (r *UserRepository) Create(_ context.Context, u model.User) (model.User, error) {
	u = cloneUser(u)
	u.RoleIDs = dedupIDs(u.RoleIDs)
	err := r.scope.write(func(st *state) error {
		if err := checkUserUnique(st, uuid.Nil, u.Email, u.Username); err != nil {
			return err
		}
		if err := checkRolesExist(st, u.RoleIDs); err != nil {
			return err
		}
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
		now := r.scope.now()
		u.CreatedAt, u.UpdatedAt = now, now
		st.users[u.ID] = cloneUser(u)
		return nil
	})
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

func (r *UserRepository) GetByID(_ context.Context, id uuid.UUID) (model.User, error) {
	return r.findOne(func(u model.User) bool { return u.ID == id })
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (model.User, error) {
	return r.findOne(func(u model.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *UserRepository) GetByUsername(_ context.Context, username string) (model.User, error) {
	return r.findOne(func(u model.User) bool { return u.Username == username })
}

func (r *UserRepository) GetByIDs(_ context.Context, ids []uuid.UUID) ([]model.User, error) {
	out := make([]model.User, 0, len(ids))
	err := r.scope.read(func(st *state) error {
		for _, id := range dedupIDs(ids) {
			if u, ok := st.users[id]; ok {
				out = append(out, cloneUser(u))
			}
		}
		return nil
	})
	sortUsers(out)
	return out, err
}

func (r *UserRepository) CountByRole(ctx context.Context, roleID uuid.UUID) (int, error) {
	users, err := r.Find(ctx, model.UserFilter{RoleID: &roleID})
	return len(users), err
}

func (r *UserRepository) Find(_ context.Context, filter model.UserFilter) ([]model.User, error) {
	out := []model.User{}
	err := r.scope.read(func(st *state) error {
		for _, u := range st.users {
			if matchUser(u, filter) {
				out = append(out, cloneUser(u))
			}
		}
		return nil
	})
	sortUsers(out)
	return out, err
}

func (r *UserRepository) FindPage(ctx context.Context, filter model.UserFilter, page model.PageRequest) (model.Page[model.User], error) {
	all, err := r.Find(ctx, filter)
	if err != nil {
		return model.Page[model.User]{}, err
	}
	return paginate(all, page), nil
}

func (r *UserRepository) Update(_ context.Context, id uuid.UUID, patch model.UserPatch) (model.User, error) {
	return r.mutate(id, func(st *state, u *model.User) error {
		email, username := u.Email, u.Username
		if patch.Email != nil {
			email = *patch.Email
		}
		if patch.Username != nil {
			username = *patch.Username
		}
		if err := checkUserUnique(st, id, email, username); err != nil {
			return err
		}
		u.Email, u.Username = email, username
		if patch.PasswordHash != nil {
			u.PasswordHash = *patch.PasswordHash
		}
		if patch.PersonID != nil {
			pid := *patch.PersonID
			u.PersonID = &pid
		}
		if patch.IsActive != nil {
			u.IsActive = *patch.IsActive
		}
		if patch.IsEmailVerified != nil {
			u.IsEmailVerified = *patch.IsEmailVerified
		}
		if patch.AuthMethod != nil {
			u.AuthMethod = *patch.AuthMethod
		}
		if patch.ExternalAuth != nil {
			ea := *patch.ExternalAuth
			u.ExternalAuth = &ea
		}
		return nil
	})
}

func (r *UserRepository) SetRoles(_ context.Context, id uuid.UUID, roleIDs []uuid.UUID) (model.User, error) {
	ids := dedupIDs(roleIDs)
	return r.mutate(id, func(st *state, u *model.User) error {
		if err := checkRolesExist(st, ids); err != nil {
			return err
		}
		u.RoleIDs = ids
		return nil
	})
}

func (r *UserRepository) SetLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.mutate(id, func(_ *state, u *model.User) error {
		t := at
		u.LastLogin = &t
		return nil
	})
	return err
}

func (r *UserRepository) SetPasswordResetToken(_ context.Context, id uuid.UUID, token string, expires time.Time) error {
	_, err := r.mutate(id, func(_ *state, u *model.User) error {
		t := expires
		u.PasswordResetToken = token
		u.PasswordResetExpires = &t
		return nil
	})
	return err
}

func (r *UserRepository) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	_, err := r.mutate(id, func(_ *state, u *model.User) error {
		u.PasswordHash = passwordHash
		u.PasswordResetToken = ""
		u.PasswordResetExpires = nil
		return nil
	})
	return err
}

func (r *UserRepository) ConsumeResetToken(_ context.Context, token string, now time.Time, passwordHash string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, model.ErrNotFound
	}
	var id uuid.UUID
	err := r.scope.write(func(st *state) error {
		for uid, u := range st.users {
			if u.PasswordResetToken != token {
				continue
			}
			if u.PasswordResetExpires == nil || u.PasswordResetExpires.Before(now) {
				return model.ErrNotFound
			}
			u = cloneUser(u)
			u.PasswordHash = passwordHash
			u.PasswordResetToken = ""
			u.PasswordResetExpires = nil
			u.UpdatedAt = r.scope.now()
			st.users[uid] = u
			id = uid
			return nil
		}
		return model.ErrNotFound
	})
	return id, err
}

func (r *UserRepository) Delete(_ context.Context, id uuid.UUID) error {
	return r.scope.write(func(st *state) error {
		if _, ok := st.users[id]; !ok {
			return model.ErrNotFound
		}
		delete(st.users, id)
		return nil
	})
}

func (r *UserRepository) findOne(match func(model.User) bool) (model.User, error) {
	var out model.User
	err := r.scope.read(func(st *state) error {
		for _, u := range st.users {
			if match(u) {
				out = cloneUser(u)
				return nil
			}
		}
		return model.ErrNotFound
	})
	return out, err
}

// mutate applies fn to a copy of the user and stores it only if fn succeeds.
func (r *UserRepository) mutate(id uuid.UUID, fn func(st *state, u *model.User) error) (model.User, error) {
	var out model.User
	err := r.scope.write(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return model.ErrNotFound
		}
		u = cloneUser(u)
		if err := fn(st, &u); err != nil {
			return err
		}
		u.UpdatedAt = r.scope.now()
		st.users[id] = u
		out = cloneUser(u)
		return nil
	})
	return out, err
}

func checkUserUnique(st *state, self uuid.UUID, email, username string) error {
	for id, other := range st.users {
		if id == self {
			continue
		}
		if strings.EqualFold(other.Email, email) {
			return &model.ConflictError{Entity: "user", Field: "email"}
		}
		if other.Username == username {
			return &model.ConflictError{Entity: "user", Field: "username"}
		}
	}
	return nil
}

func checkRolesExist(st *state, ids []uuid.UUID) error {
	for _, id := range ids {
		if _, ok := st.roles[id]; !ok {
			return model.ErrDanglingReference
		}
	}
	return nil
}

func matchUser(u model.User, f model.UserFilter) bool {
	if f.IsActive != nil && u.IsActive != *f.IsActive {
		return false
	}
	if f.AuthMethod != "" && u.AuthMethod != f.AuthMethod {
		return false
	}
	if f.RoleID != nil {
		found := false
		for _, rid := range u.RoleIDs {
			if rid == *f.RoleID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(u.Email), q) && !strings.Contains(strings.ToLower(u.Username), q) {
			return false
		}
	}
	return true
}

func sortUsers(us []model.User) {
	sort.Slice(us, func(i, j int) bool { return us[i].Username < us[j].Username })
}
