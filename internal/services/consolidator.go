package services

import (
	"context"
	"fmt"

	"github.com/vvka-141/widload/internal/retry"
	"github.com/vvka-141/widload/pkg/widload"
)

// MetadataConsolidator derives the enriched fact table and the deduplicated
// dimension table from the staging relation.
type MetadataConsolidator struct {
	conn     widload.DBConnection
	tables   widload.TableNames
	executor *retry.Executor
	logger   widload.Logger
}

// NewMetadataConsolidator panics on nil dependencies.
func NewMetadataConsolidator(conn widload.DBConnection, tables widload.TableNames, executor *retry.Executor, logger widload.Logger) *MetadataConsolidator {
	if conn == nil {
		panic("conn cannot be nil")
	}
	if executor == nil {
		panic("executor cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &MetadataConsolidator{conn: conn, tables: tables, executor: executor, logger: logger}
}

// BuildEnrichedFacts recreates the enriched table as the fact table left
// joined with staging on (country, variable, age, pop), and returns its row
// count. Facts without metadata keep NULL unit, source and method.
func (c *MetadataConsolidator) BuildEnrichedFacts(ctx context.Context) (int64, error) {
	enriched := c.tables.Enriched
	if err := c.rebuild(ctx, enriched, createEnrichedSQL(enriched, c.tables.Fact, c.tables.Staging())); err != nil {
		return 0, err
	}
	n, err := c.count(ctx, enriched)
	if err != nil {
		return 0, err
	}
	c.logger.Info("✓ Enriched table %s: %d rows", enriched, n)
	return n, nil
}

// BuildDeduplicatedMetadata recreates the dimension table as the distinct
// projection of staging without the country and enrichment columns, and
// returns its row count.
func (c *MetadataConsolidator) BuildDeduplicatedMetadata(ctx context.Context) (int64, error) {
	dim := c.tables.Metadata
	if err := c.rebuild(ctx, dim, createDimensionSQL(dim, c.tables.Staging())); err != nil {
		return 0, err
	}
	n, err := c.count(ctx, dim)
	if err != nil {
		return 0, err
	}
	c.logger.Info("✓ Metadata table %s: %d rows", dim, n)
	return n, nil
}

// CheckDimensionConsistency counts dimension rows whose staging sources carry
// more than one (unit, source, method). The count is logged, never enforced.
func (c *MetadataConsolidator) CheckDimensionConsistency(ctx context.Context) (int64, error) {
	sql := inconsistentKeysSQL(c.tables.Staging())
	n, err := retry.Value(ctx, c.executor, func(ctx context.Context) (int64, error) {
		var n int64
		err := c.conn.QueryRow(ctx, sql).Scan(&n)
		return n, err
	})
	if err != nil {
		return 0, fmt.Errorf("check dimension consistency: %w", err)
	}
	if n > 0 {
		c.logger.Info("Warning: %d metadata key(s) have conflicting unit/source/method across countries", n)
	}
	return n, nil
}

func (c *MetadataConsolidator) rebuild(ctx context.Context, table, createSQL string) error {
	for _, sql := range []string{dropTableSQL(table), createSQL} {
		c.logger.Verbose("%s", sql)
		err := c.executor.Execute(ctx, func(ctx context.Context) error {
			_, err := c.conn.Exec(ctx, sql)
			return err
		})
		if err != nil {
			return fmt.Errorf("build %s: %w", table, err)
		}
	}
	return nil
}

func (c *MetadataConsolidator) count(ctx context.Context, table string) (int64, error) {
	sql := countRowsSQL(table)
	return retry.Value(ctx, c.executor, func(ctx context.Context) (int64, error) {
		var n int64
		if err := c.conn.QueryRow(ctx, sql).Scan(&n); err != nil {
			return 0, fmt.Errorf("count %s: %w", table, err)
		}
		return n, nil
	})
}
