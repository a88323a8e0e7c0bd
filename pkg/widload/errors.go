package widload

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the load pipeline.
// Callers distinguish failure kinds using errors.Is().
//
// Example usage:
//
//	report, err := loader.Run(ctx, cfg)
//	if errors.Is(err, widload.ErrPartialFailure) {
//	    // some partitions or metadata files were not loaded
//	}
var (
	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates database connection failed.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrUnsupportedAuthMethod indicates the requested authentication method is not supported.
	ErrUnsupportedAuthMethod = errors.New("unsupported authentication method")

	// ErrSchemaFatal indicates the parent fact table could not be dropped or created.
	// Nothing downstream runs after it.
	ErrSchemaFatal = errors.New("fact schema reset failed")

	// ErrSourceNotFound indicates a required input file is missing or unreadable.
	ErrSourceNotFound = errors.New("source file not found")

	// ErrPartitionFailed is wrapped by every PartitionError.
	ErrPartitionFailed = errors.New("partition provisioning failed")

	// ErrNamingCollision indicates two distinct country codes normalize to the same partition key.
	ErrNamingCollision = errors.New("partition naming collision")

	// ErrMetadataIO is wrapped by every MetadataFileError.
	ErrMetadataIO = errors.New("metadata file load failed")

	// ErrNotStarted is wrapped, together with the context error, by partition
	// units that were skipped because the run was cancelled first.
	ErrNotStarted = errors.New("not started")

	// ErrPartialFailure indicates the run completed but at least one unit failed.
	ErrPartialFailure = errors.New("run completed with failures")
)

// Partition provisioning stages, in execution order.
const (
	StagePlan    = "plan"
	StageCreate  = "create"
	StageIndex   = "index"
	StageLoad    = "load"
	StageCluster = "cluster"
)

// PartitionError records the failure of a single partition unit.
type PartitionError struct {
	Code  string // source country code
	Key   string // normalized partition key
	Stage string // stage that failed
	Err   error
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("partition %s (%s) failed at %s: %v", e.Key, e.Code, e.Stage, e.Err)
}

// Unwrap exposes both the cause and ErrPartitionFailed to errors.Is.
func (e *PartitionError) Unwrap() []error {
	return []error{ErrPartitionFailed, e.Err}
}

// MetadataFileError records the failure of a single metadata file.
type MetadataFileError struct {
	File string
	Err  error
}

func (e *MetadataFileError) Error() string {
	return fmt.Sprintf("metadata file %s: %v", e.File, e.Err)
}

func (e *MetadataFileError) Unwrap() []error {
	return []error{ErrMetadataIO, e.Err}
}

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Partial failure is checked first: per-unit causes it wraps must not
	// mask the overall status.
	switch {
	case errors.Is(err, ErrPartialFailure):
		return ExitPartialFailure
	case errors.Is(err, ErrInvalidConfig):
		return ExitConfigError
	case errors.Is(err, ErrUnsupportedAuthMethod):
		return ExitConfigError
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrSchemaFatal):
		return ExitSchemaFailed
	case errors.Is(err, ErrSourceNotFound):
		return ExitSourceMissing
	}

	errStr := err.Error()
	if isUsageError(errStr) {
		return ExitUsageError
	}
	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}

// isUsageError matches the messages cobra produces for bad invocations.
func isUsageError(msg string) bool {
	for _, prefix := range []string{
		"unknown flag",
		"unknown shorthand flag",
		"unknown command",
		"accepts ",
		"requires at least",
		"required flag",
		"invalid argument",
		"missing required argument",
	} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}
