package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/widload/internal/retry"
	"github.com/vvka-141/widload/pkg/widload"
)

// Connection pool configuration constants
const (
	// DefaultMaxConns holds one connection per partition worker plus one spare.
	DefaultMaxConns = 5

	// DefaultMinConns maintains at least one connection in the pool.
	DefaultMinConns = 1

	// DefaultMaxConnIdleTime keeps connections open across long COPY and CLUSTER runs.
	DefaultMaxConnIdleTime = 30 * time.Minute

	// DefaultAppName identifies loader sessions in pg_stat_activity.
	DefaultAppName = "widload"
)

// PoolOptions tunes the pools built by every connector.
type PoolOptions struct {
	// MaxConns overrides DefaultMaxConns when positive.
	MaxConns int32

	// Logger receives server notices at verbose level. Nil discards them.
	Logger widload.Logger
}

// PoolSizeForWorkers returns a pool size leaving one connection beyond the workers.
func PoolSizeForWorkers(workers int) int32 {
	if workers < 1 {
		workers = 1
	}
	if n := int32(workers + 1); n > DefaultMaxConns {
		return n
	}
	return DefaultMaxConns
}

func configurePool(poolConfig *pgxpool.Config, opts PoolOptions) {
	poolConfig.MaxConns = DefaultMaxConns
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = opts.MaxConns
	}
	poolConfig.MinConns = DefaultMinConns
	poolConfig.MaxConnIdleTime = DefaultMaxConnIdleTime
	if _, ok := poolConfig.ConnConfig.RuntimeParams["application_name"]; !ok {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = DefaultAppName
	}
	logger := opts.Logger
	poolConfig.ConnConfig.OnNotice = func(_ *pgconn.PgConn, notice *pgconn.Notice) {
		if logger != nil {
			logger.Verbose("server notice: %s", notice.Message)
		}
	}
}

// openPool parses connStr, builds a pool and pings it.
func openPool(ctx context.Context, connStr string, cfg *widload.ConnectionConfig, opts PoolOptions) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}
	configurePool(poolConfig, opts)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, wrapConnectionError(err, cfg.Host, cfg.Port, cfg.Database)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, wrapConnectionError(err, cfg.Host, cfg.Port, cfg.Database)
	}
	return pool, nil
}

// StandardConnector implements the Connector interface for standard
// username/password authentication with automatic retry on transient failures.
type StandardConnector struct {
	config        *widload.ConnectionConfig
	opts          PoolOptions
	retryExecutor *retry.Executor
}

// NewStandardConnector creates a new StandardConnector with the given configuration.
// Retry behavior uses the widload defaults.
func NewStandardConnector(config *widload.ConnectionConfig, opts PoolOptions) *StandardConnector {
	return &StandardConnector{
		config:        config,
		opts:          opts,
		retryExecutor: connectExecutor(opts.Logger),
	}
}

// Connect establishes a connection pool using standard authentication with automatic retry.
func (c *StandardConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	connStr := BuildConnectionString(c.config)
	return retry.Value(ctx, c.retryExecutor, func(ctx context.Context) (*pgxpool.Pool, error) {
		return openPool(ctx, connStr, c.config, c.opts)
	})
}

func connectExecutor(logger widload.Logger) *retry.Executor {
	executor := retry.NewDefaultExecutor()
	if logger == nil {
		return executor
	}
	return executor.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		logger.Verbose("connection attempt %d failed, retrying in %v: %v", attempt+1, delay, err)
	})
}

// NewConnector is a factory function that creates the appropriate Connector
// based on the ConnectionConfig's AuthMethod.
func NewConnector(config *widload.ConnectionConfig, opts PoolOptions) (widload.Connector, error) {
	switch config.AuthMethod {
	case widload.AuthMethodStandard:
		return NewStandardConnector(config, opts), nil
	case widload.AuthMethodAWSIAM:
		return newAWSConnector(config, opts)
	case widload.AuthMethodGoogleIAM:
		return newGoogleConnector(config, opts)
	case widload.AuthMethodAzureEntraID:
		return newAzureConnector(config, opts)
	default:
		return nil, fmt.Errorf("unsupported auth method %v: %w", config.AuthMethod, widload.ErrUnsupportedAuthMethod)
	}
}

// wrapConnectionError wraps raw pgx connection errors with actionable guidance.
// Every returned error wraps widload.ErrConnectionFailed.
func wrapConnectionError(err error, host string, port int, database string) error {
	errStr := strings.ToLower(err.Error())
	addr := fmt.Sprintf("%s:%d", host, port)

	var hint string
	switch {
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "actively refused"):
		hint = fmt.Sprintf(`connection refused to %s

Possible causes:
  - PostgreSQL is not running (check: pg_isready -h %s -p %d)
  - Wrong host or port`, addr, host, port)

	case strings.Contains(errStr, "no such host"):
		hint = fmt.Sprintf(`cannot resolve host "%s"

Possible causes:
  - Hostname is misspelled
  - DNS is not configured or reachable`, host)

	case strings.Contains(errStr, "password authentication failed"):
		hint = fmt.Sprintf(`password authentication failed for database "%s"

Possible causes:
  - Wrong password (check $DB_PW, $PGPASSWORD or ~/.pgpass)
  - Wrong username (check $DB_USER or $PGUSER)`, database)

	case strings.Contains(errStr, "does not exist"):
		hint = fmt.Sprintf(`database "%s" does not exist

To create it:
  createdb %s`, database, database)

	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out"):
		hint = fmt.Sprintf(`connection timed out to %s

Possible causes:
  - Server is overloaded or unresponsive
  - Firewall silently dropping packets`, addr)

	case strings.Contains(errStr, "too many connections"):
		hint = fmt.Sprintf(`too many connections to database "%s"

Lower --workers or raise max_connections on the server.`, database)

	default:
		return fmt.Errorf("failed to connect to database: %w: %w", widload.ErrConnectionFailed, err)
	}

	return fmt.Errorf("%s\n\nOriginal error: %w: %w", hint, widload.ErrConnectionFailed, err)
}

// newAWSConnector creates a token-based connector with the AWS IAM token provider.
func newAWSConnector(config *widload.ConnectionConfig, opts PoolOptions) (widload.Connector, error) {
	endpoint := fmt.Sprintf("%s:%d", config.Host, config.Port)
	provider, err := NewAWSIAMTokenProvider(endpoint, config.AWSRegion, config.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS IAM token provider: %w", err)
	}
	return NewTokenBasedConnector(config, provider, opts), nil
}

// newGoogleConnector creates a GoogleCloudSQLConnector for Google Cloud SQL IAM authentication.
func newGoogleConnector(config *widload.ConnectionConfig, opts PoolOptions) (widload.Connector, error) {
	if config.GoogleInstance == "" {
		return nil, fmt.Errorf("Google Cloud SQL IAM auth requires --google-instance (project:region:instance): %w", widload.ErrInvalidConfig)
	}
	if config.Username == "" {
		return nil, fmt.Errorf("Google Cloud SQL IAM auth requires username (-U): %w", widload.ErrInvalidConfig)
	}
	return NewGoogleCloudSQLConnector(config, opts), nil
}

// newAzureConnector picks Service Principal credentials when tenant, client
// and secret are all set, otherwise the DefaultAzureCredential chain.
func newAzureConnector(config *widload.ConnectionConfig, opts PoolOptions) (widload.Connector, error) {
	var provider TokenProvider
	var err error
	if config.AzureTenantID != "" && config.AzureClientID != "" && config.AzureClientSecret != "" {
		provider, err = NewAzureServicePrincipalProvider(config.AzureTenantID, config.AzureClientID, config.AzureClientSecret)
	} else {
		provider, err = NewAzureDefaultCredentialProvider()
	}
	if err != nil {
		return nil, err
	}
	return NewTokenBasedConnector(config, provider, opts), nil
}
