// Package files groups the input-side file access of a load run.
//
// Sub-packages:
//   - filesystem: read-only filesystem abstraction (OS and in-memory)
//   - scanner: resolves country, data and metadata files in the input directory
//
// # Usage
//
//	import (
//	    "github.com/vvka-141/widload/internal/files/filesystem"
//	    "github.com/vvka-141/widload/internal/files/scanner"
//	)
//
//	fileScanner := scanner.NewScannerWithFS(filesystem.NewOSFileSystem())
//	countries, err := fileScanner.Resolve("./wid_all_data", widload.DefaultCountriesFile)
//	metadata, err := fileScanner.MetadataFiles("./wid_all_data", widload.DefaultMetadataGlob)
//
// Parsing the files is the job of the tabular package.
package files
