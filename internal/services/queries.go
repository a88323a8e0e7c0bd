package services

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/vvka-141/widload/pkg/widload"
)

// SQL builders for the load pipeline. Identifiers are configurable, so every
// statement is assembled here with quoted identifiers and literals; no other
// file concatenates SQL.

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func identList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = ident(n)
	}
	return strings.Join(quoted, ", ")
}

// literal renders s as a standard-conforming string literal.
func literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func dropTableSQL(table string) string {
	return "DROP TABLE IF EXISTS " + ident(table) + " CASCADE"
}

func createFactTableSQL(fact string) string {
	defs := make([]string, len(widload.FactColumns))
	for i, c := range widload.FactColumns {
		defs[i] = ident(c.Name) + " " + c.SQLType
	}
	return fmt.Sprintf("CREATE TABLE %s (%s) PARTITION BY LIST (%s)",
		ident(fact), strings.Join(defs, ", "), ident("country"))
}

func createPartitionSQL(fact string, p widload.Partition) string {
	return fmt.Sprintf("CREATE TABLE %s PARTITION OF %s FOR VALUES IN (%s)",
		ident(p.Table), ident(fact), literal(p.SourceCode))
}

func createIndexSQL(p widload.Partition) string {
	return fmt.Sprintf("CREATE INDEX %s ON %s (%s)", ident(p.Index), ident(p.Table), ident("year"))
}

func copyPartitionSQL(p widload.Partition, columns []string) string {
	return fmt.Sprintf("COPY %s (%s) FROM STDIN WITH (FORMAT csv, DELIMITER %s)",
		ident(p.Table), identList(columns), literal(string(widload.FieldDelimiter)))
}

func clusterSQL(p widload.Partition) string {
	return fmt.Sprintf("CLUSTER %s USING %s", ident(p.Table), ident(p.Index))
}

func analyzeSQL(table string) string {
	return "ANALYZE " + ident(table)
}

// loadOrderColumn records ingestion order in the staging relation.
const loadOrderColumn = "load_order"

func createStagingSQL(staging string) string {
	defs := make([]string, 0, len(widload.MetadataColumns)+1)
	for _, c := range widload.MetadataColumns {
		defs = append(defs, ident(c)+" TEXT NOT NULL DEFAULT ''")
	}
	defs = append(defs, ident(loadOrderColumn)+" BIGINT GENERATED ALWAYS AS IDENTITY")
	return fmt.Sprintf("CREATE TABLE %s (%s)", ident(staging), strings.Join(defs, ", "))
}

// dedupStagingSQL keeps, per key, the row with the lowest load_order.
func dedupStagingSQL(staging string) string {
	conds := make([]string, len(widload.SampleDedupColumns))
	for i, c := range widload.SampleDedupColumns {
		conds[i] = fmt.Sprintf("a.%s = b.%s", ident(c), ident(c))
	}
	return fmt.Sprintf("DELETE FROM %s a USING %s b WHERE %s AND a.%s > b.%s",
		ident(staging), ident(staging), strings.Join(conds, " AND "),
		ident(loadOrderColumn), ident(loadOrderColumn))
}

func createEnrichedSQL(enriched, fact, staging string) string {
	selects := make([]string, 0, len(widload.JoinKeyColumns)+len(widload.EnrichmentColumns))
	conds := make([]string, len(widload.JoinKeyColumns))
	for i, c := range widload.JoinKeyColumns {
		selects = append(selects, "d."+ident(c))
		conds[i] = fmt.Sprintf("d.%s = m.%s", ident(c), ident(c))
	}
	for _, c := range widload.EnrichmentColumns {
		selects = append(selects, "m."+ident(c))
	}
	return fmt.Sprintf("CREATE TABLE %s AS SELECT %s FROM %s d LEFT JOIN %s m ON %s",
		ident(enriched), strings.Join(selects, ", "), ident(fact), ident(staging),
		strings.Join(conds, " AND "))
}

func createDimensionSQL(metadata, staging string) string {
	return fmt.Sprintf("CREATE TABLE %s AS SELECT DISTINCT %s FROM %s",
		ident(metadata), identList(widload.DimensionColumns()), ident(staging))
}

func countRowsSQL(table string) string {
	return "SELECT count(*) FROM " + ident(table)
}

// inconsistentKeysSQL counts dimension rows whose staging sources disagree
// on the enrichment columns.
func inconsistentKeysSQL(staging string) string {
	return fmt.Sprintf(
		"SELECT count(*) FROM (SELECT 1 FROM %s GROUP BY %s HAVING count(DISTINCT (%s)) > 1) k",
		ident(staging), identList(widload.DimensionColumns()), identList(widload.EnrichmentColumns))
}
