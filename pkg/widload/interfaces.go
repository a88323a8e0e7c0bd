package widload

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connector opens the connection pool for a run. Implementations differ in
// how they authenticate: static credentials, cloud IAM tokens, or the Cloud
// SQL dialer. The caller closes the pool.
type Connector interface {
	Connect(ctx context.Context) (*pgxpool.Pool, error)
}

// Logger receives progress and diagnostics. Partition workers share one
// instance, so implementations must be safe for concurrent use.
type Logger interface {
	// Verbose is dropped unless verbose output was requested.
	Verbose(format string, args ...interface{})
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// ErrorClassifier reports whether a failed statement may succeed on retry.
type ErrorClassifier interface {
	IsTransient(err error) bool
}

// BackoffStrategy paces retries.
type BackoffStrategy interface {
	// NextDelay is the wait before retry number attempt, counting from 0.
	NextDelay(attempt int) time.Duration

	// MaxAttempts is the retry budget: 0 disables retries, -1 is unlimited.
	MaxAttempts() int
}
