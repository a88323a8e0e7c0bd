// Package catalog inspects the PostgreSQL system catalogs for the tables the
// loader creates.
//
// The loader uses it after provisioning to confirm which partitions are
// attached to the fact table and whether each was clustered:
//
//	cat := catalog.New()
//	attached, err := cat.Partitions(ctx, conn, "global_data")
//	clustered, err := cat.IsClustered(ctx, conn, "global_data_fr_year_idx")
//
// Object names are passed as bind parameters and resolved with to_regclass,
// so unsafe names cannot alter the queries.
package catalog
