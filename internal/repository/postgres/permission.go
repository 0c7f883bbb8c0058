package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dtroode/rbac-server/internal/model"
)

var _ model.PermissionStore = (*PermissionRepository)(nil)

const permissionColumns = `id, key, name, description, group_name, is_system, created_at, updated_at`

type PermissionRepository struct {
	db Querier
}

func NewPermissionRepository(db Querier) *PermissionRepository {
	return &PermissionRepository{db: db}
}

func scanPermission(row scanner) (model.Permission, error) {
	var p model.Permission
	err := row.Scan(&p.ID, &p.Key, &p.Name, &p.Description, &p.Group, &p.IsSystem, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *PermissionRepository) Create(ctx context.Context, p model.Permission) (model.Permission, error) {
	const query = `
        INSERT INTO permissions (id, key, name, description, group_name, is_system, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
        RETURNING ` + permissionColumns

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	saved, err := scanPermission(r.db.QueryRow(ctx, query, p.ID, p.Key, p.Name, p.Description, p.Group, p.IsSystem))
	if err != nil {
		return model.Permission{}, fmt.Errorf("failed to create permission: %w", mapWriteError(err, "permission", nil))
	}
	return saved, nil
}

func (r *PermissionRepository) GetByID(ctx context.Context, id uuid.UUID) (model.Permission, error) {
	const query = `SELECT ` + permissionColumns + ` FROM permissions WHERE id = $1`
	return r.getOne(ctx, "id", query, id)
}

func (r *PermissionRepository) GetByKey(ctx context.Context, key string) (model.Permission, error) {
	const query = `SELECT ` + permissionColumns + ` FROM permissions WHERE key = $1`
	return r.getOne(ctx, "key", query, key)
}

func (r *PermissionRepository) getOne(ctx context.Context, by, query string, arg any) (model.Permission, error) {
	p, err := scanPermission(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Permission{}, model.ErrNotFound
		}
		return model.Permission{}, fmt.Errorf("failed to get permission by %s: %w", by, err)
	}
	return p, nil
}

func (r *PermissionRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Permission, error) {
	if len(ids) == 0 {
		return []model.Permission{}, nil
	}
	const query = `SELECT ` + permissionColumns + ` FROM permissions WHERE id = ANY($1::uuid[]) ORDER BY key`
	return r.list(ctx, query, uuidStrings(ids))
}

func (r *PermissionRepository) GetByGroup(ctx context.Context, group string) ([]model.Permission, error) {
	return r.Find(ctx, model.PermissionFilter{Group: group})
}

func (r *PermissionRepository) Groups(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT group_name FROM permissions WHERE group_name <> '' ORDER BY group_name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list permission groups: %w", err)
	}
	groups, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan permission groups: %w", err)
	}
	return groups, nil
}

func (r *PermissionRepository) Find(ctx context.Context, filter model.PermissionFilter) ([]model.Permission, error) {
	w := permissionWhere(filter)
	return r.list(ctx, `SELECT `+permissionColumns+` FROM permissions`+w.String()+` ORDER BY key`, w.args...)
}

func (r *PermissionRepository) FindPage(ctx context.Context, filter model.PermissionFilter, page model.PageRequest) (model.Page[model.Permission], error) {
	page = page.Normalize()
	w := permissionWhere(filter)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM permissions`+w.String(), w.args...).Scan(&total); err != nil {
		return model.Page[model.Permission]{}, fmt.Errorf("failed to count permissions: %w", err)
	}

	limit, args := w.limit(page.Limit, page.Offset())
	data, err := r.list(ctx, `SELECT `+permissionColumns+` FROM permissions`+w.String()+` ORDER BY key`+limit, args...)
	if err != nil {
		return model.Page[model.Permission]{}, err
	}
	return model.NewPage(data, total, page), nil
}

func (r *PermissionRepository) Update(ctx context.Context, id uuid.UUID, patch model.PermissionPatch) (model.Permission, error) {
	const query = `
        UPDATE permissions SET
            name = COALESCE($2, name),
            description = COALESCE($3, description),
            group_name = COALESCE($4, group_name),
            updated_at = NOW()
        WHERE id = $1
        RETURNING ` + permissionColumns

	p, err := scanPermission(r.db.QueryRow(ctx, query, id, patch.Name, patch.Description, patch.Group))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Permission{}, model.ErrNotFound
		}
		return model.Permission{}, fmt.Errorf("failed to update permission: %w", err)
	}
	return p, nil
}

func (r *PermissionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM permissions WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete permission: %w", mapWriteError(err, "permission", model.ErrReferenced))
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *PermissionRepository) list(ctx context.Context, query string, args ...any) ([]model.Permission, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query permissions: %w", err)
	}
	defer rows.Close()

	out := []model.Permission{}
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate permissions: %w", err)
	}
	return out, nil
}

func permissionWhere(f model.PermissionFilter) *where {
	w := &where{}
	if f.Group != "" {
		w.add("group_name = ?", f.Group)
	}
	if f.IsSystem != nil {
		w.add("is_system = ?", *f.IsSystem)
	}
	if f.Search != "" {
		p := likePattern(f.Search)
		w.add("(key LIKE ? OR lower(name) LIKE ?)", p, p)
	}
	return w
}
