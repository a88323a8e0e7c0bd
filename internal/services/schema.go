package services

import (
	"context"
	"fmt"

	"github.com/vvka-141/widload/internal/retry"
	"github.com/vvka-141/widload/pkg/widload"
)

// SchemaManager owns the partitioned parent fact table.
type SchemaManager struct {
	conn     widload.DBConnection
	fact     string
	executor *retry.Executor
	logger   widload.Logger
}

// NewSchemaManager creates a SchemaManager for the fact table named fact.
// Panics on nil dependencies.
func NewSchemaManager(conn widload.DBConnection, fact string, executor *retry.Executor, logger widload.Logger) *SchemaManager {
	if conn == nil {
		panic("conn cannot be nil")
	}
	if executor == nil {
		panic("executor cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &SchemaManager{conn: conn, fact: fact, executor: executor, logger: logger}
}

// ResetFactSchema drops the fact table with every partition and recreates it
// empty, partitioned by LIST (country). Any failure wraps widload.ErrSchemaFatal.
func (m *SchemaManager) ResetFactSchema(ctx context.Context) error {
	for _, sql := range []string{dropTableSQL(m.fact), createFactTableSQL(m.fact)} {
		m.logger.Verbose("%s", sql)
		err := m.executor.Execute(ctx, func(ctx context.Context) error {
			_, err := m.conn.Exec(ctx, sql)
			return err
		})
		if err != nil {
			return fmt.Errorf("reset fact table %s: %w: %w", m.fact, widload.ErrSchemaFatal, err)
		}
	}
	m.logger.Info("Fact table %s recreated", m.fact)
	return nil
}
