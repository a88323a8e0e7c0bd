// Package testinfra starts the disposable PostgreSQL server used by
// integration tests.
package testinfra

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// DefaultImage is the server image; WIDLOAD_TEST_IMAGE overrides it.
const DefaultImage = "postgres:17-alpine"

const (
	superuser          = "postgres"
	superuserPassword  = "postgres"
	maintenanceDB      = "postgres"
	readyLogLine       = "database system is ready to accept connections"
	startupGracePeriod = 60 * time.Second
)

// Server is a running container plus a superuser connection string for its
// maintenance database. Test databases are created from it per test.
type Server struct {
	*postgres.PostgresContainer
	ConnString string
}

func image() string {
	if img := os.Getenv("WIDLOAD_TEST_IMAGE"); img != "" {
		return img
	}
	return DefaultImage
}

// StartPostgres starts a server without TLS and waits until it accepts
// connections. The ready line is logged twice: once by the init run, once by
// the real start.
func StartPostgres(ctx context.Context) (*Server, error) {
	ctr, err := postgres.Run(ctx,
		image(),
		postgres.WithUsername(superuser),
		postgres.WithPassword(superuserPassword),
		postgres.WithDatabase(maintenanceDB),
		testcontainers.WithWaitStrategy(
			wait.ForLog(readyLogLine).
				WithOccurrence(2).
				WithStartupTimeout(startupGracePeriod),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", image(), err)
	}

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("container connection string: %w", err)
	}
	return &Server{PostgresContainer: ctr, ConnString: connStr}, nil
}
