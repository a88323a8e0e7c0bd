package widload

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // Every partition and metadata file loaded
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitPartialFailure  = 4  // Run finished but some units failed
	ExitConfigError     = 10 // Invalid configuration or parameters
	ExitConnectionError = 11 // Failed to connect to database
	ExitSchemaFailed    = 13 // Fact schema reset failed
	ExitSourceMissing   = 14 // Country reference file not found
)

const (
	// DefaultRetryInitialDelay is the default initial delay before the first retry attempt.
	DefaultRetryInitialDelay = 100 * time.Millisecond

	// DefaultRetryMaxDelay is the default maximum delay between retry attempts.
	DefaultRetryMaxDelay = 1 * time.Minute

	// DefaultRetryMaxAttempts is the default maximum number of retry attempts.
	DefaultRetryMaxAttempts = 3

	// DefaultDatabase is the database used when none is configured.
	DefaultDatabase = "wid"

	// DefaultFactTable is the partitioned parent table. It doubles as the partition name prefix.
	DefaultFactTable = "global_data"

	// DefaultMetadataTable is the deduplicated dimension table.
	// Its staging relation is DefaultMetadataTable + StagingSuffix.
	DefaultMetadataTable = "variable_metadata"

	// DefaultEnrichedTable is the fact table joined with unit, source and method.
	DefaultEnrichedTable = "wid_global_data"

	// StagingSuffix is appended to the metadata table name to form the staging relation.
	StagingSuffix = "_raw"

	// IndexSuffix is appended to a partition table name to form its year index name.
	IndexSuffix = "_year_idx"

	// FieldDelimiter separates fields in every source file.
	FieldDelimiter = ';'

	// CountryCodeColumn is the column of the country reference file holding partition codes.
	CountryCodeColumn = "alpha2"

	// DefaultCountriesFile is the country reference file name.
	DefaultCountriesFile = "WID_countries.csv"

	// DefaultDataFilePattern is the fact file name for a country code; %s is the source code.
	DefaultDataFilePattern = "WID_data_%s.csv"

	// DefaultMetadataGlob matches metadata files in the input directory.
	DefaultMetadataGlob = "WID_metadata_*.csv"

	// CompressedSuffix marks a gzip-compressed source file.
	CompressedSuffix = ".gz"

	// MaxIdentifierLength is PostgreSQL's NAMEDATALEN-1; longer names are truncated by the server.
	MaxIdentifierLength = 63
)
