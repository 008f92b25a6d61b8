package sqlstore

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql the repositories use.
// Both *sql.DB and *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// handle pairs a DBTX with the dialect whose placeholders it speaks.
// Every repository goes through it, so no query reaches the driver
// without being rewritten.
type handle struct {
	db      DBTX
	dialect Dialect
}

func (h handle) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return h.db.ExecContext(ctx, h.dialect.Rewrite(query), args...)
}

func (h handle) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return h.db.QueryContext(ctx, h.dialect.Rewrite(query), args...)
}

func (h handle) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return h.db.QueryRowContext(ctx, h.dialect.Rewrite(query), args...)
}

// withTx begins a transaction, runs fn with it, and commits on success or
// rolls back on error or panic. Panics are rethrown.
func withTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}
