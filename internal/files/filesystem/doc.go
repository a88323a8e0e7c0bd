// Package filesystem abstracts the read-only file access the loader needs:
// listing the input directory, statting files, and streaming their content.
//
// Implementations:
//   - OSFileSystem: production implementation backed by the os package
//   - MemoryFileSystem: in-memory implementation for tests
package filesystem
