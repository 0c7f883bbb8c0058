package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dtroode/rbac-server/internal/logger"
	"github.com/dtroode/rbac-server/internal/model"
)

var _ model.TxManager = (*TxManager)(nil)

// TxManager opens one pgx transaction per WithinTx call.
type TxManager struct {
	db     *Connection
	logger *logger.Logger
}

func NewTxManager(db *Connection, logger *logger.Logger) *TxManager {
	return &TxManager{db: db, logger: logger}
}

// WithinTx commits when fn returns nil and rolls back otherwise.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx model.Tx) error) (err error) {
	tx, err := m.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			m.logger.Error("Transaction: rollback failed", "error", rbErr.Error())
		}
	}()

	if err = fn(ctx, txStores{q: tx}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txStores struct {
	q Querier
}

func (t txStores) Permissions() model.PermissionStore { return NewPermissionRepository(t.q) }
func (t txStores) Roles() model.RoleStore             { return NewRoleRepository(t.q) }
func (t txStores) Users() model.UserStore             { return NewUserRepository(t.q) }
