// Package metrics exposes load run telemetry as Prometheus metrics, written
// to a node_exporter textfile at the end of a run.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vvka-141/widload/pkg/widload"
)

const (
	statusOK     = "ok"
	statusFailed = "failed"
)

// Recorder implements widload.PhaseRecorder on a dedicated registry.
type Recorder struct {
	registry *prometheus.Registry

	PartitionsTotal    *prometheus.CounterVec
	PartitionRows      prometheus.Counter
	PartitionDuration  prometheus.Histogram
	MetadataFilesTotal *prometheus.CounterVec
	MetadataRows       prometheus.Counter
	PhaseDuration      *prometheus.GaugeVec
	LastRunTimestamp   prometheus.Gauge
}

// NewRecorder creates a recorder with its metrics registered on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		PartitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "widload_partitions_total",
			Help: "Partition units by outcome and failing stage",
		}, []string{"status", "stage"}),
		PartitionRows: factory.NewCounter(prometheus.CounterOpts{
			Name: "widload_partition_rows_total",
			Help: "Fact rows copied into successful partitions",
		}),
		PartitionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "widload_partition_duration_seconds",
			Help:    "Time spent provisioning one partition",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		}),
		MetadataFilesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "widload_metadata_files_total",
			Help: "Metadata files by outcome",
		}, []string{"status"}),
		MetadataRows: factory.NewCounter(prometheus.CounterOpts{
			Name: "widload_metadata_rows_total",
			Help: "Metadata rows committed to staging",
		}),
		PhaseDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "widload_phase_duration_seconds",
			Help: "Duration of the last run of each phase",
		}, []string{"phase"}),
		LastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "widload_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
}

func (r *Recorder) ObservePartition(result widload.PartitionResult) {
	r.PartitionDuration.Observe(result.Duration.Seconds())
	if result.Err == nil {
		r.PartitionsTotal.WithLabelValues(statusOK, "").Inc()
		r.PartitionRows.Add(float64(result.Rows))
		return
	}
	stage := widload.StageLoad
	var pe *widload.PartitionError
	if errors.As(result.Err, &pe) {
		stage = pe.Stage
	}
	r.PartitionsTotal.WithLabelValues(statusFailed, stage).Inc()
}

func (r *Recorder) ObserveMetadataFile(result widload.MetadataFileResult) {
	if result.Err != nil {
		r.MetadataFilesTotal.WithLabelValues(statusFailed).Inc()
		return
	}
	r.MetadataFilesTotal.WithLabelValues(statusOK).Inc()
	r.MetadataRows.Add(float64(result.Rows))
}

func (r *Recorder) ObservePhase(phase string, d time.Duration) {
	r.PhaseDuration.WithLabelValues(phase).Set(d.Seconds())
}

// WriteTextfile stamps the run completion time and writes every metric to
// path atomically.
func (r *Recorder) WriteTextfile(path string, finished time.Time) error {
	r.LastRunTimestamp.Set(float64(finished.Unix()))
	return prometheus.WriteToTextfile(path, r.registry)
}

// Gatherer exposes the registry, mainly for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

var _ widload.PhaseRecorder = (*Recorder)(nil)
