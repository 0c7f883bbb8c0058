package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dtroode/rbac-server/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

const userColumns = `u.id, u.email, u.username, u.password_hash, u.person_id, u.is_active, u.is_email_verified,
        u.auth_method, u.external_provider, u.external_provider_id, u.password_reset_token,
        u.password_reset_expires, u.last_login, u.created_at, u.updated_at,
        ARRAY(SELECT ur.role_id::text FROM user_roles ur WHERE ur.user_id = u.id ORDER BY ur.role_id)`

type UserRepository struct {
	db Querier
}

func NewUserRepository(db Querier) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

func scanUser(row scanner) (model.User, error) {
	var (
		u                  model.User
		passwordHash       *string
		authMethod         string
		externalProvider   *string
		externalProviderID *string
		resetToken         *string
		roleIDs            []string
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &passwordHash, &u.PersonID, &u.IsActive, &u.IsEmailVerified,
		&authMethod, &externalProvider, &externalProviderID, &resetToken,
		&u.PasswordResetExpires, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt, &roleIDs,
	)
	if err != nil {
		return model.User{}, err
	}

	u.AuthMethod = model.AuthMethod(authMethod)
	if passwordHash != nil {
		u.PasswordHash = *passwordHash
	}
	if resetToken != nil {
		u.PasswordResetToken = *resetToken
	}
	if externalProvider != nil {
		u.ExternalAuth = &model.ExternalAuth{Provider: *externalProvider}
		if externalProviderID != nil {
			u.ExternalAuth.ProviderID = *externalProviderID
		}
	}
	if u.RoleIDs, err = parseUUIDs(roleIDs); err != nil {
		return model.User{}, fmt.Errorf("invalid role id: %w", err)
	}
	return u, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Create inserts the user and its role links in one statement.
func (r *UserRepository) Create(ctx context.Context, u model.User) (model.User, error) {
	const query = `
        WITH u AS (
            INSERT INTO users (
                id, email, username, password_hash, person_id, is_active, is_email_verified,
                auth_method, external_provider, external_provider_id, created_at, updated_at
            ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
            RETURNING id
        ), links AS (
            INSERT INTO user_roles (user_id, role_id)
            SELECT u.id, unnest($11::uuid[]) FROM u
        )
        SELECT id FROM u`

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.AuthMethod == "" {
		u.AuthMethod = model.AuthMethodLocal
	}

	var provider, providerID *string
	if u.ExternalAuth != nil {
		provider, providerID = nullString(u.ExternalAuth.Provider), nullString(u.ExternalAuth.ProviderID)
	}

	var id uuid.UUID
	err := r.db.QueryRow(ctx, query,
		u.ID, u.Email, u.Username, nullString(u.PasswordHash), u.PersonID, u.IsActive, u.IsEmailVerified,
		string(u.AuthMethod), provider, providerID, uuidStrings(u.RoleIDs),
	).Scan(&id)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to create user: %w", mapWriteError(err, "user", model.ErrDanglingReference))
	}

	return r.GetByID(ctx, id)
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1`
	return r.getOne(ctx, "id", query, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users u WHERE lower(u.email) = lower($1)`
	return r.getOne(ctx, "email", query, email)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users u WHERE u.username = $1`
	return r.getOne(ctx, "username", query, username)
}

func (r *UserRepository) getOne(ctx context.Context, by, query string, arg any) (model.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by %s: %w", by, err)
	}
	return u, nil
}

func (r *UserRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.User, error) {
	if len(ids) == 0 {
		return []model.User{}, nil
	}
	const query = `SELECT ` + userColumns + ` FROM users u WHERE u.id = ANY($1::uuid[]) ORDER BY u.username`
	return r.list(ctx, query, uuidStrings(ids))
}

func (r *UserRepository) CountByRole(ctx context.Context, roleID uuid.UUID) (int, error) {
	const query = `SELECT count(*) FROM user_roles WHERE role_id = $1`

	var n int
	if err := r.db.QueryRow(ctx, query, roleID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users by role: %w", err)
	}
	return n, nil
}

func (r *UserRepository) Find(ctx context.Context, filter model.UserFilter) ([]model.User, error) {
	w := userWhere(filter)
	return r.list(ctx, `SELECT `+userColumns+` FROM users u`+w.String()+` ORDER BY u.username`, w.args...)
}

func (r *UserRepository) FindPage(ctx context.Context, filter model.UserFilter, page model.PageRequest) (model.Page[model.User], error) {
	page = page.Normalize()
	w := userWhere(filter)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM users u`+w.String(), w.args...).Scan(&total); err != nil {
		return model.Page[model.User]{}, fmt.Errorf("failed to count users: %w", err)
	}

	limit, args := w.limit(page.Limit, page.Offset())
	data, err := r.list(ctx, `SELECT `+userColumns+` FROM users u`+w.String()+` ORDER BY u.username`+limit, args...)
	if err != nil {
		return model.Page[model.User]{}, err
	}
	return model.NewPage(data, total, page), nil
}

func (r *UserRepository) Update(ctx context.Context, id uuid.UUID, patch model.UserPatch) (model.User, error) {
	const query = `
        UPDATE users SET
            email = COALESCE($2, email),
            username = COALESCE($3, username),
            password_hash = COALESCE($4, password_hash),
            person_id = COALESCE($5, person_id),
            is_active = COALESCE($6, is_active),
            is_email_verified = COALESCE($7, is_email_verified),
            auth_method = COALESCE($8, auth_method),
            external_provider = CASE WHEN $9 THEN $10 ELSE external_provider END,
            external_provider_id = CASE WHEN $9 THEN $11 ELSE external_provider_id END,
            updated_at = NOW()
        WHERE id = $1`

	var authMethod *string
	if patch.AuthMethod != nil {
		s := string(*patch.AuthMethod)
		authMethod = &s
	}
	var provider, providerID *string
	if patch.ExternalAuth != nil {
		provider, providerID = nullString(patch.ExternalAuth.Provider), nullString(patch.ExternalAuth.ProviderID)
	}

	tag, err := r.db.Exec(ctx, query,
		id, patch.Email, patch.Username, patch.PasswordHash, patch.PersonID, patch.IsActive, patch.IsEmailVerified,
		authMethod, patch.ExternalAuth != nil, provider, providerID,
	)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to update user: %w", mapWriteError(err, "user", nil))
	}
	if tag.RowsAffected() == 0 {
		return model.User{}, model.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// SetRoles replaces the user's role set. It issues several statements, so
// callers run it inside a transaction.
func (r *UserRepository) SetRoles(ctx context.Context, id uuid.UUID, roleIDs []uuid.UUID) (model.User, error) {
	const (
		touch = `UPDATE users SET updated_at = NOW() WHERE id = $1`
		prune = `DELETE FROM user_roles WHERE user_id = $1 AND NOT (role_id = ANY($2::uuid[]))`
		link  = `
            INSERT INTO user_roles (user_id, role_id)
            SELECT $1, unnest($2::uuid[])
            ON CONFLICT DO NOTHING`
	)

	tag, err := r.db.Exec(ctx, touch, id)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to touch user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.User{}, model.ErrNotFound
	}

	ids := uuidStrings(roleIDs)
	if _, err := r.db.Exec(ctx, prune, id, ids); err != nil {
		return model.User{}, fmt.Errorf("failed to prune user roles: %w", err)
	}
	if _, err := r.db.Exec(ctx, link, id, ids); err != nil {
		return model.User{}, fmt.Errorf("failed to link user roles: %w", mapWriteError(err, "user", model.ErrDanglingReference))
	}

	return r.GetByID(ctx, id)
}

func (r *UserRepository) SetLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	const query = `UPDATE users SET last_login = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, "record last login", query, id, at)
}

func (r *UserRepository) SetPasswordResetToken(ctx context.Context, id uuid.UUID, token string, expires time.Time) error {
	const query = `
        UPDATE users SET password_reset_token = $2, password_reset_expires = $3, updated_at = NOW()
        WHERE id = $1`
	return r.execOne(ctx, "store reset token", query, id, token, expires)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	const query = `
        UPDATE users SET password_hash = $2, password_reset_token = NULL, password_reset_expires = NULL, updated_at = NOW()
        WHERE id = $1`
	return r.execOne(ctx, "update password", query, id, passwordHash)
}

func (r *UserRepository) ConsumeResetToken(ctx context.Context, token string, now time.Time, passwordHash string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, model.ErrNotFound
	}
	const query = `
        UPDATE users SET password_hash = $3, password_reset_token = NULL, password_reset_expires = NULL, updated_at = NOW()
        WHERE password_reset_token = $1 AND password_reset_expires >= $2
        RETURNING id`
	var id uuid.UUID
	if err := r.db.QueryRow(ctx, query, token, now, passwordHash).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, model.ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to consume reset token: %w", err)
	}
	return id, nil
}

func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM users WHERE id = $1`
	return r.execOne(ctx, "delete user", query, id)
}

func (r *UserRepository) execOne(ctx context.Context, op, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *UserRepository) list(ctx context.Context, query string, args ...any) ([]model.User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return out, nil
}

func userWhere(f model.UserFilter) *where {
	w := &where{}
	if f.IsActive != nil {
		w.add("u.is_active = ?", *f.IsActive)
	}
	if f.AuthMethod != "" {
		w.add("u.auth_method = ?", string(f.AuthMethod))
	}
	if f.RoleID != nil {
		w.add("EXISTS (SELECT 1 FROM user_roles ur WHERE ur.user_id = u.id AND ur.role_id = ?)", *f.RoleID)
	}
	if f.Search != "" {
		p := likePattern(f.Search)
		w.add("(lower(u.email) LIKE ? OR lower(u.username) LIKE ?)", p, p)
	}
	return w
}
