package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/widload/internal/retry"
	"github.com/vvka-141/widload/pkg/widload"
)

// tokenExpiryWarning is the remaining lifetime below which a token triggers a warning.
// A partition run that outlives the token keeps working; only new connections fail.
const tokenExpiryWarning = 5 * time.Minute

// TokenBasedConnector implements the Connector interface for cloud providers
// that authenticate via short-lived tokens (AWS IAM, Azure Entra ID).
type TokenBasedConnector struct {
	config        *widload.ConnectionConfig
	tokenProvider TokenProvider
	opts          PoolOptions
	retryExecutor *retry.Executor
}

// NewTokenBasedConnector creates a connector that uses a TokenProvider for authentication.
func NewTokenBasedConnector(config *widload.ConnectionConfig, tokenProvider TokenProvider, opts PoolOptions) *TokenBasedConnector {
	return &TokenBasedConnector{
		config:        config,
		tokenProvider: tokenProvider,
		opts:          opts,
		retryExecutor: connectExecutor(opts.Logger),
	}
}

// Connect acquires a fresh token for every attempt and uses it as the password.
func (c *TokenBasedConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	return retry.Value(ctx, c.retryExecutor, func(ctx context.Context) (*pgxpool.Pool, error) {
		token, expiresOn, err := c.tokenProvider.GetToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire token from %s: %w: %w", c.tokenProvider, widload.ErrConnectionFailed, err)
		}
		if remaining := time.Until(expiresOn); remaining < tokenExpiryWarning && c.opts.Logger != nil {
			c.opts.Logger.Info("Warning: %s token expires in %v", c.tokenProvider, remaining.Round(time.Second))
		}

		withToken := *c.config
		withToken.Password = token
		return openPool(ctx, BuildConnectionString(&withToken), c.config, c.opts)
	})
}
