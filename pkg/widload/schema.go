package widload

// Column is a column of a table the loader creates.
type Column struct {
	Name    string
	SQLType string
}

// FactColumns is the layout of the partitioned fact table.
var FactColumns = []Column{
	{"country", "TEXT NOT NULL"},
	{"variable", "TEXT NOT NULL"},
	{"percentile", "TEXT NOT NULL"},
	{"year", "INTEGER NOT NULL"},
	{"value", "NUMERIC"},
	{"age", "TEXT"},
	{"pop", "TEXT"},
}

// RequiredFactColumns must appear in every data file header.
var RequiredFactColumns = []string{"country", "variable", "percentile", "year"}

// MetadataColumns is the fixed projection read from every metadata file, in
// staging column order. Every staging column is TEXT.
var MetadataColumns = []string{
	"country", "variable", "age", "pop",
	"countryname", "shortname", "simpledes", "technicaldes",
	"shorttype", "longtype", "shortpop", "longpop",
	"shortage", "longage", "unit", "source", "method",
}

// JoinKeyColumns relate a fact row to its metadata row.
var JoinKeyColumns = []string{"country", "variable", "age", "pop"}

// EnrichmentColumns are copied from metadata onto each enriched fact row.
var EnrichmentColumns = []string{"unit", "source", "method"}

// DimensionExcludedColumns are dropped from the deduplicated dimension table.
var DimensionExcludedColumns = []string{"country", "countryname", "unit", "source", "method"}

// SampleDedupColumns key the deduplication applied after a sampled metadata load.
var SampleDedupColumns = []string{"variable", "age", "pop"}

// DimensionColumns returns MetadataColumns minus DimensionExcludedColumns, in order.
func DimensionColumns() []string {
	excluded := make(map[string]bool, len(DimensionExcludedColumns))
	for _, c := range DimensionExcludedColumns {
		excluded[c] = true
	}
	var cols []string
	for _, c := range MetadataColumns {
		if !excluded[c] {
			cols = append(cols, c)
		}
	}
	return cols
}

// FactColumnNames returns the names of FactColumns in order.
func FactColumnNames() []string {
	names := make([]string, len(FactColumns))
	for i, c := range FactColumns {
		names[i] = c.Name
	}
	return names
}
