package model

import "context"

// Tx exposes stores bound to one open transaction.
type Tx interface {
	Permissions() PermissionStore
	Roles() RoleStore
	Users() UserStore
}

// TxManager runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise. Stores obtained from tx must not be
// used after fn returns.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
