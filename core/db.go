package core

import (
	"context"
	"database/sql"
)

type (
	DBExecutor interface {
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	// Transactor runs fn inside a single unit of work.
	// Repositories receive the DBExecutor handed to fn so their statements join the transaction.
	Transactor interface {
		WithinTx(ctx context.Context, fn func(exec DBExecutor) error) error
	}
)
