// Package storage provides the atomic commit boundary shared by the account
// store and the ledger. A transfer's balance mutations and ledger appends all
// run inside a single TxScope so that either everything persists or nothing
// does.
package storage

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx operations shared by pools and transactions.
// Repositories issue statements through it so the same code path works inside
// and outside a transaction scope.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxScope executes fn within one atomic storage boundary: commit on nil
// return, rollback on error or panic.
type TxScope interface {
	Within(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// PostgresScope implements TxScope with a database transaction.
type PostgresScope struct {
	pool *pgxpool.Pool
}

// NewPostgresScope builds a TxScope over a pgx connection pool.
func NewPostgresScope(pool *pgxpool.Pool) *PostgresScope {
	return &PostgresScope{pool: pool}
}

// Within begins a transaction, binds it to the context for repositories to
// pick up, and commits or rolls back depending on the outcome of fn.
func (s *PostgresScope) Within(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// QuerierFrom returns the transaction bound to ctx, or fallback when no scope
// is active.
func QuerierFrom(ctx context.Context, fallback Querier) Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return fallback
}

// InTx reports whether ctx carries an open database transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(pgx.Tx)
	return ok
}

type undoKey struct{}

type undoLog struct {
	mu    sync.Mutex
	undos []func()
}

func (l *undoLog) add(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.undos = append(l.undos, fn)
}

func (l *undoLog) rollback() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.undos) - 1; i >= 0; i-- {
		l.undos[i]()
	}
	l.undos = nil
}

// MemoryScope implements TxScope for the in-memory backends using an undo
// log: each mutation registers a compensation via OnRollback, and a failing
// scope replays them in reverse.
type MemoryScope struct{}

// NewMemoryScope builds the in-memory TxScope.
func NewMemoryScope() MemoryScope {
	return MemoryScope{}
}

// Within runs fn and unwinds registered compensations when it fails.
func (MemoryScope) Within(ctx context.Context, fn func(ctx context.Context) error) error {
	log := &undoLog{}
	if err := fn(context.WithValue(ctx, undoKey{}, log)); err != nil {
		log.rollback()
		return err
	}
	return nil
}

// OnRollback registers fn to run if the memory scope in ctx unwinds with an
// error. Outside a scope it is a no-op.
func OnRollback(ctx context.Context, fn func()) {
	if log, ok := ctx.Value(undoKey{}).(*undoLog); ok {
		log.add(fn)
	}
}
