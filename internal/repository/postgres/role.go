package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dtroode/rbac-server/internal/model"
)

var _ model.RoleStore = (*RoleRepository)(nil)

const roleColumns = `r.id, r.name, r.description, r.is_system, r.created_at, r.updated_at,
        ARRAY(SELECT rp.permission_id::text FROM role_permissions rp WHERE rp.role_id = r.id ORDER BY rp.permission_id)`

type RoleRepository struct {
	db Querier
}

func NewRoleRepository(db Querier) *RoleRepository {
	return &RoleRepository{db: db}
}

func scanRole(row scanner) (model.Role, error) {
	var (
		role          model.Role
		permissionIDs []string
	)
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt, &permissionIDs); err != nil {
		return model.Role{}, err
	}
	ids, err := parseUUIDs(permissionIDs)
	if err != nil {
		return model.Role{}, fmt.Errorf("invalid permission id: %w", err)
	}
	role.PermissionIDs = ids
	return role, nil
}

// Create inserts the role and its permission links in one statement.
func (r *RoleRepository) Create(ctx context.Context, role model.Role) (model.Role, error) {
	const query = `
        WITH r AS (
            INSERT INTO roles (id, name, description, is_system, created_at, updated_at)
            VALUES ($1, $2, $3, $4, NOW(), NOW())
            RETURNING id, name, description, is_system, created_at, updated_at
        ), links AS (
            INSERT INTO role_permissions (role_id, permission_id)
            SELECT r.id, unnest($5::uuid[]) FROM r
        )
        SELECT id, name, description, is_system, created_at, updated_at FROM r`

	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	permissionIDs := uuidStrings(role.PermissionIDs)

	var saved model.Role
	err := r.db.QueryRow(ctx, query, role.ID, role.Name, role.Description, role.IsSystem, permissionIDs).Scan(
		&saved.ID, &saved.Name, &saved.Description, &saved.IsSystem, &saved.CreatedAt, &saved.UpdatedAt,
	)
	if err != nil {
		return model.Role{}, fmt.Errorf("failed to create role: %w", mapWriteError(err, "role", model.ErrDanglingReference))
	}

	saved.PermissionIDs, _ = parseUUIDs(permissionIDs)
	return saved, nil
}

func (r *RoleRepository) GetByID(ctx context.Context, id uuid.UUID) (model.Role, error) {
	const query = `SELECT ` + roleColumns + ` FROM roles r WHERE r.id = $1`
	return r.getOne(ctx, "id", query, id)
}

func (r *RoleRepository) GetByName(ctx context.Context, name string) (model.Role, error) {
	const query = `SELECT ` + roleColumns + ` FROM roles r WHERE r.name = $1`
	return r.getOne(ctx, "name", query, name)
}

func (r *RoleRepository) getOne(ctx context.Context, by, query string, arg any) (model.Role, error) {
	role, err := scanRole(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Role{}, model.ErrNotFound
		}
		return model.Role{}, fmt.Errorf("failed to get role by %s: %w", by, err)
	}
	return role, nil
}

func (r *RoleRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Role, error) {
	if len(ids) == 0 {
		return []model.Role{}, nil
	}
	const query = `SELECT ` + roleColumns + ` FROM roles r WHERE r.id = ANY($1::uuid[]) ORDER BY r.name`
	return r.list(ctx, query, uuidStrings(ids))
}

func (r *RoleRepository) GetByPermission(ctx context.Context, permissionID uuid.UUID) ([]model.Role, error) {
	const query = `
        SELECT ` + roleColumns + ` FROM roles r
        WHERE EXISTS (SELECT 1 FROM role_permissions rp WHERE rp.role_id = r.id AND rp.permission_id = $1)
        ORDER BY r.name`
	return r.list(ctx, query, permissionID)
}

func (r *RoleRepository) CountByPermission(ctx context.Context, permissionID uuid.UUID) (int, error) {
	const query = `SELECT count(*) FROM role_permissions WHERE permission_id = $1`

	var n int
	if err := r.db.QueryRow(ctx, query, permissionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count roles by permission: %w", err)
	}
	return n, nil
}

func (r *RoleRepository) Find(ctx context.Context, filter model.RoleFilter) ([]model.Role, error) {
	w := roleWhere(filter)
	return r.list(ctx, `SELECT `+roleColumns+` FROM roles r`+w.String()+` ORDER BY r.name`, w.args...)
}

func (r *RoleRepository) FindPage(ctx context.Context, filter model.RoleFilter, page model.PageRequest) (model.Page[model.Role], error) {
	page = page.Normalize()
	w := roleWhere(filter)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM roles r`+w.String(), w.args...).Scan(&total); err != nil {
		return model.Page[model.Role]{}, fmt.Errorf("failed to count roles: %w", err)
	}

	limit, args := w.limit(page.Limit, page.Offset())
	data, err := r.list(ctx, `SELECT `+roleColumns+` FROM roles r`+w.String()+` ORDER BY r.name`+limit, args...)
	if err != nil {
		return model.Page[model.Role]{}, err
	}
	return model.NewPage(data, total, page), nil
}

func (r *RoleRepository) Update(ctx context.Context, id uuid.UUID, patch model.RolePatch) (model.Role, error) {
	const query = `
        UPDATE roles SET
            name = COALESCE($2, name),
            description = COALESCE($3, description),
            updated_at = NOW()
        WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, patch.Name, patch.Description)
	if err != nil {
		return model.Role{}, fmt.Errorf("failed to update role: %w", mapWriteError(err, "role", nil))
	}
	if tag.RowsAffected() == 0 {
		return model.Role{}, model.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// SetPermissions replaces the role's permission set. It issues several
// statements, so callers run it inside a transaction.
func (r *RoleRepository) SetPermissions(ctx context.Context, id uuid.UUID, permissionIDs []uuid.UUID) (model.Role, error) {
	const (
		touch = `UPDATE roles SET updated_at = NOW() WHERE id = $1`
		prune = `DELETE FROM role_permissions WHERE role_id = $1 AND NOT (permission_id = ANY($2::uuid[]))`
		link  = `
            INSERT INTO role_permissions (role_id, permission_id)
            SELECT $1, unnest($2::uuid[])
            ON CONFLICT DO NOTHING`
	)

	tag, err := r.db.Exec(ctx, touch, id)
	if err != nil {
		return model.Role{}, fmt.Errorf("failed to touch role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.Role{}, model.ErrNotFound
	}

	ids := uuidStrings(permissionIDs)
	if _, err := r.db.Exec(ctx, prune, id, ids); err != nil {
		return model.Role{}, fmt.Errorf("failed to prune role permissions: %w", err)
	}
	if _, err := r.db.Exec(ctx, link, id, ids); err != nil {
		return model.Role{}, fmt.Errorf("failed to link role permissions: %w", mapWriteError(err, "role", model.ErrDanglingReference))
	}

	return r.GetByID(ctx, id)
}

func (r *RoleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM roles WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", mapWriteError(err, "role", model.ErrReferenced))
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *RoleRepository) list(ctx context.Context, query string, args ...any) ([]model.Role, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	out := []model.Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		out = append(out, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}
	return out, nil
}

func roleWhere(f model.RoleFilter) *where {
	w := &where{}
	if f.IsSystem != nil {
		w.add("r.is_system = ?", *f.IsSystem)
	}
	if f.Search != "" {
		w.add("lower(r.name) LIKE ?", likePattern(f.Search))
	}
	return w
}
