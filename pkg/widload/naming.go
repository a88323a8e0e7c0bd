package widload

import (
	"fmt"
	"strings"
)

// NormalizePartitionKey derives the partition key for a country code:
// lowercase, with every '-' replaced by '_'.
//
//	NormalizePartitionKey("US-WA") // "us_wa"
//	NormalizePartitionKey("FR")    // "fr"
func NormalizePartitionKey(code string) string {
	return strings.ReplaceAll(strings.ToLower(code), "-", "_")
}

// PartitionTableName returns "{prefix}_{key}".
func PartitionTableName(prefix, key string) string {
	return prefix + "_" + key
}

// PartitionIndexName returns "{prefix}_{key}_year_idx".
func PartitionIndexName(prefix, key string) string {
	return PartitionTableName(prefix, key) + IndexSuffix
}

// DataFileName returns the fact file name for a source country code.
func DataFileName(pattern, code string) string {
	return fmt.Sprintf(pattern, code)
}

// ValidateIdentifier rejects names the server would silently truncate.
func ValidateIdentifier(name string) error {
	if len(name) > MaxIdentifierLength {
		return fmt.Errorf("identifier %q exceeds %d bytes: %w", name, MaxIdentifierLength, ErrInvalidConfig)
	}
	return nil
}

// ValidateDataPattern checks that pattern has exactly one %s verb and no other verbs.
func ValidateDataPattern(pattern string) error {
	rest := strings.ReplaceAll(pattern, "%%", "")
	if strings.Count(rest, "%s") != 1 || strings.Count(rest, "%") != 1 {
		return fmt.Errorf("data file pattern %q must contain exactly one %%s: %w", pattern, ErrInvalidConfig)
	}
	return nil
}

// Partition is one planned child partition of the fact table.
type Partition struct {
	// SourceCode is the code exactly as it appears in the country reference
	// file. It is the LIST discriminator and selects the data file.
	SourceCode string

	// Key is the normalized code used in object names.
	Key string

	Table string
	Index string
}
