// Package memory is an in-process identity store. It enforces the same
// uniqueness and reference constraints as the postgres schema and gives
// transactions snapshot semantics: a transaction works on a private copy
// that replaces the committed state only when the callback succeeds.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/rbac-server/internal/model"
)

type state struct {
	permissions   map[uuid.UUID]model.Permission
	roles         map[uuid.UUID]model.Role
	users         map[uuid.UUID]model.User
	refreshTokens map[string]model.RefreshToken
}

func newState() *state {
	return &state{
		permissions:   make(map[uuid.UUID]model.Permission),
		roles:         make(map[uuid.UUID]model.Role),
		users:         make(map[uuid.UUID]model.User),
		refreshTokens: make(map[string]model.RefreshToken),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, p := range s.permissions {
		c.permissions[id] = p
	}
	for id, r := range s.roles {
		c.roles[id] = cloneRole(r)
	}
	for id, u := range s.users {
		c.users[id] = cloneUser(u)
	}
	for jti, rt := range s.refreshTokens {
		c.refreshTokens[jti] = rt
	}
	return c
}

// Store holds the committed state. writeMu serializes writers, so at most
// one transaction is open at a time; mu guards the state pointer for readers.
type Store struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	st      *state
	now     func() time.Time
}

var (
	_ model.TxManager = (*Store)(nil)
	_ model.Tx        = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{st: newState(), now: time.Now}
}

// Permissions returns a store operating on committed state.
func (s *Store) Permissions() model.PermissionStore {
	return &PermissionRepository{scope: scope{db: s}}
}

// Roles returns a store operating on committed state.
func (s *Store) Roles() model.RoleStore {
	return &RoleRepository{scope: scope{db: s}}
}

// Users returns a store operating on committed state.
func (s *Store) Users() model.UserStore {
	return &UserRepository{scope: scope{db: s}}
}

// RefreshTokens returns the refresh token store.
func (s *Store) RefreshTokens() model.RefreshTokenStore {
	return &RefreshTokenRepository{scope: scope{db: s}}
}

// WithinTx runs fn against a snapshot and publishes it if fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx model.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	work := s.st.clone()
	s.mu.RUnlock()

	if err := fn(ctx, &tx{scope: scope{db: s, tx: work}}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = work
	s.mu.Unlock()
	return nil
}

type tx struct {
	scope scope
}

func (t *tx) Permissions() model.PermissionStore { return &PermissionRepository{scope: t.scope} }
func (t *tx) Roles() model.RoleStore             { return &RoleRepository{scope: t.scope} }
func (t *tx) Users() model.UserStore             { return &UserRepository{scope: t.scope} }

// scope binds a repository either to committed state or to an open transaction.
type scope struct {
	db *Store
	tx *state
}

func (s scope) read(fn func(st *state) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return fn(s.db.st)
}

func (s scope) write(fn func(st *state) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.db.writeMu.Lock()
	defer s.db.writeMu.Unlock()
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return fn(s.db.st)
}

func (s scope) now() time.Time {
	return s.db.now().UTC()
}

func cloneRole(r model.Role) model.Role {
	r.PermissionIDs = append([]uuid.UUID(nil), r.PermissionIDs...)
	return r
}

func cloneUser(u model.User) model.User {
	u.RoleIDs = append([]uuid.UUID(nil), u.RoleIDs...)
	if u.PersonID != nil {
		id := *u.PersonID
		u.PersonID = &id
	}
	if u.ExternalAuth != nil {
		ea := *u.ExternalAuth
		u.ExternalAuth = &ea
	}
	if u.PasswordResetExpires != nil {
		t := *u.PasswordResetExpires
		u.PasswordResetExpires = &t
	}
	if u.LastLogin != nil {
		t := *u.LastLogin
		u.LastLogin = &t
	}
	return u
}

func dedupIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func paginate[T any](all []T, page model.PageRequest) model.Page[T] {
	page = page.Normalize()
	total := len(all)
	start := page.Offset()
	if start < 0 || start > total {
		start = total
	}
	end := start + page.Limit
	if end > total {
		end = total
	}
	return model.NewPage(append([]T(nil), all[start:end]...), total, page)
}
