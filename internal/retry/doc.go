// Package retry re-runs operations that fail with transient PostgreSQL or
// network errors, waiting between attempts according to a backoff strategy.
//
// It wraps two kinds of work in the loader: opening the connection pool, and
// the individual statements of a partition unit (CREATE, CREATE INDEX, COPY,
// CLUSTER). A statement that fails with a deadlock or a dropped connection is
// retried; a syntax error or a constraint violation is returned immediately.
//
// # Example Usage
//
//	executor := retry.NewExecutor(
//	    retry.NewPostgreSQLErrorClassifier(),
//	    retry.NewExponentialBackoff(3),
//	)
//
//	rows, err := retry.Value(ctx, executor, func(ctx context.Context) (int64, error) {
//	    return copyPartition(ctx, code)
//	})
//
// # Thread Safety
//
// Executor instances are immutable once built and safe for concurrent use.
// WithOnRetry returns a configured copy.
package retry
