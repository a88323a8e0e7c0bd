// Package scanner locates the input files of a load run in the input directory.
//
// The scanner package is responsible for:
//   - Resolving the country reference file and per-country data files,
//     accepting a gzip-compressed ".gz" variant when the plain file is absent
//   - Listing metadata files matching a glob, in lexical name order
//   - Ranking metadata files by size for sampled loads
//
// It works through filesystem.FileSystemProvider so tests can run against
// an in-memory filesystem.
package scanner
