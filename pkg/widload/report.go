package widload

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PartitionResult is the outcome of one partition unit.
type PartitionResult struct {
	Partition Partition
	Rows      int64
	Duration  time.Duration

	// Err is nil on success, otherwise a *PartitionError.
	Err error
}

// ProvisionReport lists partition outcomes in plan order.
type ProvisionReport struct {
	Results []PartitionResult
}

// Succeeded returns the source codes of partitions that completed every stage.
func (r *ProvisionReport) Succeeded() []string {
	var codes []string
	for _, res := range r.Results {
		if res.Err == nil {
			codes = append(codes, res.Partition.SourceCode)
		}
	}
	return codes
}

// Failed returns the error of every failed partition.
func (r *ProvisionReport) Failed() []*PartitionError {
	var failed []*PartitionError
	for _, res := range r.Results {
		var pe *PartitionError
		if errors.As(res.Err, &pe) {
			failed = append(failed, pe)
		} else if res.Err != nil {
			failed = append(failed, &PartitionError{
				Code: res.Partition.SourceCode, Key: res.Partition.Key, Stage: StageLoad, Err: res.Err,
			})
		}
	}
	return failed
}

// TotalRows sums rows loaded across successful partitions.
func (r *ProvisionReport) TotalRows() int64 {
	var total int64
	for _, res := range r.Results {
		if res.Err == nil {
			total += res.Rows
		}
	}
	return total
}

// MetadataFileResult is the outcome of loading one metadata file.
type MetadataFileResult struct {
	File string
	Size int64
	Rows int64

	// Err is nil on success, otherwise a *MetadataFileError.
	Err error
}

// MetadataLoadReport lists metadata file outcomes in processing order.
type MetadataLoadReport struct {
	Files []MetadataFileResult

	// Sampled is set when only the largest files were loaded.
	Sampled bool

	// DuplicatesRemoved counts staging rows dropped by the (variable, age, pop) dedup.
	DuplicatesRemoved int64
}

// Failed returns the error of every failed file.
func (r *MetadataLoadReport) Failed() []*MetadataFileError {
	var failed []*MetadataFileError
	for _, f := range r.Files {
		var fe *MetadataFileError
		if errors.As(f.Err, &fe) {
			failed = append(failed, fe)
		}
	}
	return failed
}

// TotalRows sums rows committed across files.
func (r *MetadataLoadReport) TotalRows() int64 {
	var total int64
	for _, f := range r.Files {
		if f.Err == nil {
			total += f.Rows
		}
	}
	return total
}

// ConsolidationReport holds the row counts of the derived tables.
type ConsolidationReport struct {
	EnrichedRows  int64
	DimensionRows int64

	// InconsistentKeys counts dimension keys whose staging rows disagree on
	// unit, source or method. The dimension table keeps one row per variant.
	InconsistentKeys int64
}

// PhaseTiming records how long one pipeline phase took.
type PhaseTiming struct {
	Phase    string
	Duration time.Duration
}

// Report summarizes a complete run.
type Report struct {
	RunID     uuid.UUID
	StartedAt time.Time
	Duration  time.Duration
	Phases    []PhaseTiming

	// Nil when the corresponding phase was skipped.
	Partitions    *ProvisionReport
	Metadata      *MetadataLoadReport
	Consolidation *ConsolidationReport
}

// Err returns an error wrapping ErrPartialFailure when any partition or
// metadata file failed, or nil.
func (r *Report) Err() error {
	var failures int
	var errs []error
	if r.Partitions != nil {
		for _, pe := range r.Partitions.Failed() {
			failures++
			errs = append(errs, pe)
		}
	}
	if r.Metadata != nil {
		for _, fe := range r.Metadata.Failed() {
			failures++
			errs = append(errs, fe)
		}
	}
	if failures == 0 {
		return nil
	}
	return fmt.Errorf("%d unit(s) failed: %w", failures, errors.Join(append([]error{ErrPartialFailure}, errs...)...))
}

// PhaseRecorder receives pipeline telemetry. Implementations must be safe for
// concurrent use.
type PhaseRecorder interface {
	ObservePartition(result PartitionResult)
	ObserveMetadataFile(result MetadataFileResult)
	ObservePhase(phase string, d time.Duration)
}
