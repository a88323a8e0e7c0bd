package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/vvka-141/widload/pkg/widload"
)

const (
	queryTableExists = "SELECT to_regclass($1) IS NOT NULL"

	queryPartitions = `
		SELECT coalesce(array_agg(c.relname::text ORDER BY c.relname), '{}')
		FROM pg_inherits i
		JOIN pg_class c ON c.oid = i.inhrelid
		WHERE i.inhparent = to_regclass($1)
	`

	queryIsPartitioned = `
		SELECT EXISTS(SELECT 1 FROM pg_partitioned_table WHERE partrelid = to_regclass($1))
	`

	queryIsClustered = `
		SELECT coalesce((SELECT indisclustered FROM pg_index WHERE indexrelid = to_regclass($1)), false)
	`
)

// Catalog answers questions about loader-created relations.
// Stateless and safe for concurrent use.
type Catalog struct{}

func New() *Catalog {
	return &Catalog{}
}

// TableExists reports whether a relation named name is visible.
func (c *Catalog) TableExists(ctx context.Context, conn widload.DBConnection, name string) (bool, error) {
	var exists bool
	if err := conn.QueryRow(ctx, queryTableExists, quoted(name)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check relation %q: %w", name, err)
	}
	return exists, nil
}

// IsPartitioned reports whether name is a partitioned parent table.
func (c *Catalog) IsPartitioned(ctx context.Context, conn widload.DBConnection, name string) (bool, error) {
	var partitioned bool
	if err := conn.QueryRow(ctx, queryIsPartitioned, quoted(name)).Scan(&partitioned); err != nil {
		return false, fmt.Errorf("failed to inspect %q: %w", name, err)
	}
	return partitioned, nil
}

// Partitions returns the names of the partitions attached to parent, sorted.
func (c *Catalog) Partitions(ctx context.Context, conn widload.DBConnection, parent string) ([]string, error) {
	var names []string
	if err := conn.QueryRow(ctx, queryPartitions, quoted(parent)).Scan(&names); err != nil {
		return nil, fmt.Errorf("failed to list partitions of %q: %w", parent, err)
	}
	return names, nil
}

// IsClustered reports whether index was last used by CLUSTER on its table.
func (c *Catalog) IsClustered(ctx context.Context, conn widload.DBConnection, index string) (bool, error) {
	var clustered bool
	if err := conn.QueryRow(ctx, queryIsClustered, quoted(index)).Scan(&clustered); err != nil {
		return false, fmt.Errorf("failed to inspect index %q: %w", index, err)
	}
	return clustered, nil
}

// RowCount returns the exact number of rows in table. The load never calls it;
// it is for inspecting a finished load.
func (c *Catalog) RowCount(ctx context.Context, conn widload.DBConnection, table string) (int64, error) {
	var n int64
	sql := "SELECT count(*) FROM " + quoted(table)
	if err := conn.QueryRow(ctx, sql).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows of %q: %w", table, err)
	}
	return n, nil
}

// quoted returns name as a quoted identifier, which to_regclass resolves case-sensitively.
func quoted(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
