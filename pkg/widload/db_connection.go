package widload

import (
	"context"
	"io"

	"github.com/jackc/pgx/v5/pgconn"
)

// DBConnection abstracts the database operations the load services need.
// It decouples the services from pgx pool types so they can be tested with mocks.
//
// Implementations backed by a pool are safe for concurrent use; every call
// may run on a different pooled connection.
type DBConnection interface {
	// Exec executes a statement in autocommit mode.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	// QueryRow executes a query that is expected to return at most one row.
	// Errors are deferred until Row's Scan method is called.
	QueryRow(ctx context.Context, sql string, args ...any) Row

	// CopyFrom streams r to the server as the input of a COPY ... FROM STDIN
	// statement and returns the number of rows copied.
	CopyFrom(ctx context.Context, r io.Reader, sql string) (int64, error)

	// Begin starts a transaction on a dedicated connection.
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a transaction started by DBConnection.Begin.
type Tx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	// CopyRows bulk-inserts rows into table using the binary COPY protocol.
	CopyRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	Commit(ctx context.Context) error

	// Rollback is a no-op after a successful Commit.
	Rollback(ctx context.Context) error
}

// Row represents a single row returned by QueryRow.
type Row interface {
	Scan(dest ...any) error
}
