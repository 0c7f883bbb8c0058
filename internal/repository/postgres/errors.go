package postgres

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dtroode/rbac-server/internal/model"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

var constraintFields = map[string]string{
	"permissions_key_key":    "key",
	"roles_name_key":         "name",
	"users_email_lower_key":  "email",
	"users_username_key":     "username",
	"refresh_tokens_jti_key": "jti",
}

// mapWriteError turns constraint violations into model errors. onForeignKey
// is returned for 23503 since its meaning depends on the statement: a dangling
// reference on insert, a live reference on delete.
func mapWriteError(err error, entity string, onForeignKey error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgErrUniqueViolation:
		field, ok := constraintFields[pgErr.ConstraintName]
		if !ok {
			field = strings.TrimPrefix(pgErr.ConstraintName, entity+"s_")
		}
		return &model.ConflictError{Entity: entity, Field: field}
	case pgErrForeignKeyViolation:
		if onForeignKey != nil {
			return onForeignKey
		}
	}
	return err
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id.String())
	}
	return out
}

func parseUUIDs(ss []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(ss))
	for _, s := range ss {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}
