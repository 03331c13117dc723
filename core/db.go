package core

import (
	"context"
	"database/sql"
)

// DBExecutor is what repositories run statements on: the pool or an open transaction (*sql.Tx).
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// DB is a connection pool able to start transactions.
type DB interface {
	DBExecutor
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Transactor runs fn inside a single transaction.
// fn's executor must be handed to every repository call that belongs to the transaction.
// The transaction is rolled back if fn returns an error.
type Transactor interface {
	InTx(ctx context.Context, fn func(exec DBExecutor) error) error
}

// DBOrdering is one ORDER BY term; descending unless Ascending.
type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	if ord.Ascending {
		return ord.Field + " ASC"
	}
	return ord.Field + " DESC"
}
