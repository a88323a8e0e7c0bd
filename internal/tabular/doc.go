// Package tabular reads the ';'-delimited source files of a load run.
//
// Files ending in ".gz" are decompressed on the fly. Headers are normalized
// (byte order mark and surrounding space removed, lowercased) before columns
// are matched by name.
package tabular
