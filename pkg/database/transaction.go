package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
)

// TxContextKey is the context key holding the open transaction
type TxContextKey string

const txKey = TxContextKey("tx-context-key")

// Tx is a transaction that can be committed or rolled back once
type Tx interface {
	Querier
	IsOpen() bool
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Transaction wraps sqlx.Tx and tracks whether it has been closed.
type Transaction struct {
	*sqlx.Tx
	logger   ectologger.Logger
	isClosed bool
	owner    bool
}

// NewTx wraps a sqlx transaction
func NewTx(tx *sqlx.Tx, logger ectologger.Logger) Tx {
	return &Transaction{
		Tx:     tx,
		logger: logger,
		owner:  true,
	}
}

// GetTx joins the transaction already carried by ctx or begins a new one on b.
// Only the call that began a transaction may commit or roll it back; joined
// callers get a handle whose Commit and Rollback are no-ops.
func GetTx(ctx context.Context, logger ectologger.Logger, b Beginner, opts *sql.TxOptions) (context.Context, Tx, error) {
	if ctxTx, ok := ctx.Value(txKey).(*Transaction); ok && ctxTx != nil && ctxTx.IsOpen() {
		return ctx, &Transaction{Tx: ctxTx.Tx, logger: logger}, nil
	}

	tx, err := b.BeginTxx(ctx, opts)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Errorf("error while beginning transaction")
		return ctx, nil, fmt.Errorf("error while beginning transaction: %w", err)
	}

	newTx := &Transaction{Tx: tx, logger: logger, owner: true}
	return context.WithValue(ctx, txKey, newTx), newTx, nil
}

// IsOpen reports whether the transaction is still usable
func (t *Transaction) IsOpen() bool {
	return !t.isClosed
}

// Rollback rolls back the transaction
func (t *Transaction) Rollback(ctx context.Context) error {
	if t.isClosed || !t.owner {
		return nil
	}

	if err := t.Tx.Rollback(); err != nil {
		t.logger.WithContext(ctx).WithError(err).Errorf("error while rolling back transaction")
		return fmt.Errorf("error while rolling back transaction: %w", err)
	}

	t.isClosed = true
	return nil
}

// Commit commits the transaction
func (t *Transaction) Commit(ctx context.Context) error {
	if t.isClosed || !t.owner {
		return nil
	}

	if err := t.Tx.Commit(); err != nil {
		t.logger.WithContext(ctx).WithError(err).Errorf("error while committing transaction")
		return fmt.Errorf("error while committing transaction: %w", err)
	}

	t.isClosed = true
	return nil
}
