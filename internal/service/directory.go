package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/dtroode/rbac-server/internal/apierror"
	"github.com/dtroode/rbac-server/internal/logger"
	"github.com/dtroode/rbac-server/internal/model"
)

// Stores groups the committed-state stores and the transaction boundary.
type Stores struct {
	Permissions   model.PermissionStore
	Roles         model.RoleStore
	Users         model.UserStore
	RefreshTokens model.RefreshTokenStore
	Tx            model.TxManager
}

// Directory owns every write to permissions, roles and users. Existence,
// uniqueness and immutability are checked before the transaction opens; the
// store constraints stay authoritative for races between the check and the
// write.
type Directory struct {
	permissions model.PermissionStore
	roles       model.RoleStore
	users       model.UserStore
	tx          model.TxManager
	hasher      model.PasswordHasher
	cache       model.PermissionCache
	logger      *logger.Logger
}

// NewDirectory creates a Directory. cache may be nil.
func NewDirectory(stores Stores, hasher model.PasswordHasher, cache model.PermissionCache, logger *logger.Logger) *Directory {
	return &Directory{
		permissions: stores.Permissions,
		roles:       stores.Roles,
		users:       stores.Users,
		tx:          stores.Tx,
		hasher:      hasher,
		cache:       cache,
		logger:      logger,
	}
}

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeKey trims and lowercases a permission key and joins inner
// whitespace runs with a colon.
func NormalizeKey(key string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(key)), ":")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// conflictError turns a store uniqueness violation into its business error.
func conflictError(err error, value map[string]string) error {
	var conflict *model.ConflictError
	if !errors.As(err, &conflict) {
		return nil
	}
	v := value[conflict.Field]
	switch conflict.Field {
	case "key":
		return apierror.NewErrDuplicateKey(v)
	case "name":
		return apierror.NewErrDuplicateName(v)
	case "email":
		return apierror.NewErrDuplicateEmail(v)
	case "username":
		return apierror.NewErrDuplicateUsername(v)
	}
	return apierror.NewErrInvalidArgument("%s", conflict.Error())
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

// missingIDs returns the requested ids absent from found, in request order.
func missingIDs(requested []uuid.UUID, found map[uuid.UUID]struct{}) []uuid.UUID {
	var missing []uuid.UUID
	seen := make(map[uuid.UUID]struct{}, len(requested))
	for _, id := range requested {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func (d *Directory) invalidateUser(ctx context.Context, userID uuid.UUID) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Invalidate(ctx, userID); err != nil {
		d.logger.Warn("Directory service: failed to invalidate permission cache",
			"userID", userID,
			"error", err.Error())
	}
}

func (d *Directory) invalidateAll(ctx context.Context) {
	if d.cache == nil {
		return
	}
	if err := d.cache.InvalidateAll(ctx); err != nil {
		d.logger.Warn("Directory service: failed to flush permission cache",
			"error", err.Error())
	}
}
