package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// DBTX is the subset of pgx shared by pools and transactions. Repositories
// only talk to this interface, so the same repository code runs inside or
// outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// ConnFromCtx returns the transaction bound to the context, or the pool
// when no transaction is active.
func ConnFromCtx(ctx context.Context, pool *pgxpool.Pool) DBTX {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// TxManager runs functions inside database transactions. Every transaction
// gets a hard deadline so a stuck reconciliation cannot hold row locks
// indefinitely.
type TxManager struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewTxManager creates a transaction manager
func NewTxManager(pool *pgxpool.Pool, timeout time.Duration) *TxManager {
	return &TxManager{pool: pool, timeout: timeout}
}

// WithTransaction runs fn inside a transaction. The transaction is bound to
// the context passed to fn, so repository calls made with that context
// automatically join it. Commit happens only if fn returns nil.
func (m *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		// already inside a transaction, just join it
		return fn(ctx)
	}

	txCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	tx, err := m.pool.Begin(txCtx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(txCtx)); rbErr != nil {
				log.Error().Err(rbErr).Msg("rollback after panic failed")
			}
			panic(p)
		}
	}()

	if err := fn(context.WithValue(txCtx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(txCtx)); rbErr != nil && rbErr != pgx.ErrTxClosed {
			log.Error().Err(rbErr).Msg("transaction rollback failed")
		}
		return err
	}

	if err := tx.Commit(txCtx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
