package db

import "context"

// Database is the unified interface over a SQL database connection pool.
// It mirrors database/sql semantics but returns our own row/result wrappers
// so repositories stay independent of the concrete driver.
type Database interface {
	Querier

	// Transaction executes fn inside a transaction, committing on nil error
	// and rolling back otherwise.
	Transaction(ctx context.Context, fn func(tx Transaction) error) error

	// BeginTx starts a new transaction.
	BeginTx(ctx context.Context) (Transaction, error)

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error

	// Close closes the underlying pool.
	Close() error
}

// Transaction represents an in-flight database transaction.
type Transaction interface {
	Querier

	Commit() error
	Rollback() error
}

// Querier abstracts query operations shared by Database and Transaction.
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
}

// Rows wraps a streaming query result set.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close() error
}

// Row wraps a single-row query result.
type Row interface {
	Scan(dest ...interface{}) error
}

// Result wraps the outcome of an Exec call.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}
