package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/vvka-141/widload/internal/db"
	"github.com/vvka-141/widload/internal/db/catalog"
	"github.com/vvka-141/widload/internal/files/scanner"
	"github.com/vvka-141/widload/internal/retry"
	"github.com/vvka-141/widload/internal/tabular"
	"github.com/vvka-141/widload/pkg/widload"
)

// Phase names reported in widload.Report.Phases.
const (
	PhaseSchema        = "schema"
	PhasePartitions    = "partitions"
	PhaseMetadata      = "metadata"
	PhaseConsolidation = "consolidation"
)

// ConnectorFactory builds a Connector for a resolved connection config.
type ConnectorFactory func(*widload.ConnectionConfig, db.PoolOptions) (widload.Connector, error)

type connectFunc func(ctx context.Context, connConfig *widload.ConnectionConfig, workers int) (widload.DBConnection, func(), error)

// LoadService runs the complete load: fact schema, partitions, metadata
// staging and the derived tables.
// Thread-Safety: NOT safe for concurrent Run() calls on the same instance.
type LoadService struct {
	connectorFactory ConnectorFactory
	scanner          *scanner.Scanner
	catalog          *catalog.Catalog
	executor         *retry.Executor
	logger           widload.Logger
	recorder         widload.PhaseRecorder
	connect          connectFunc
}

// NewLoadService creates a LoadService. Panics on nil dependencies; recorder may be nil.
func NewLoadService(
	connectorFactory ConnectorFactory,
	fileScanner *scanner.Scanner,
	executor *retry.Executor,
	logger widload.Logger,
	recorder widload.PhaseRecorder,
) *LoadService {
	if connectorFactory == nil {
		panic("connectorFactory cannot be nil")
	}
	if fileScanner == nil {
		panic("fileScanner cannot be nil")
	}
	if executor == nil {
		panic("executor cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	svc := &LoadService{
		connectorFactory: connectorFactory,
		scanner:          fileScanner,
		catalog:          catalog.New(),
		executor:         executor,
		logger:           logger,
		recorder:         recorder,
	}
	svc.connect = svc.defaultConnect
	return svc
}

func (s *LoadService) defaultConnect(ctx context.Context, connConfig *widload.ConnectionConfig, workers int) (widload.DBConnection, func(), error) {
	connector, err := s.connectorFactory(connConfig, db.PoolOptions{
		MaxConns: db.PoolSizeForWorkers(workers),
		Logger:   s.logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create connector: %w", err)
	}
	closeConnector := func() {
		if c, ok := connector.(io.Closer); ok {
			c.Close() //nolint:errcheck
		}
	}

	pool, err := connector.Connect(ctx)
	if err != nil {
		closeConnector()
		return nil, nil, err
	}
	cleanup := func() {
		pool.Close()
		closeConnector()
	}
	return db.NewPoolAdapter(pool), cleanup, nil
}

// Run executes a load. The returned report is non-nil once the connection
// is established, even when err is non-nil. If every phase ran but some
// partitions or metadata files failed, err wraps widload.ErrPartialFailure.
func (s *LoadService) Run(ctx context.Context, cfg widload.LoadConfig) (*widload.Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	connConfig, err := connectionConfig(cfg)
	if err != nil {
		return nil, err
	}

	report := &widload.Report{RunID: uuid.New(), StartedAt: time.Now()}
	s.logger.Verbose("Run %s: loading %s into %s", report.RunID, cfg.InputDir, db.RedactConnectionString(connConfig))

	conn, cleanup, err := s.connect(ctx, connConfig, cfg.Workers)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	if !cfg.SkipFacts {
		if err := s.runFacts(ctx, conn, cfg, report); err != nil {
			return report, err
		}
	}
	if !cfg.SkipMetadata {
		if err := s.runMetadata(ctx, conn, cfg, report); err != nil {
			return report, err
		}
	}

	if err := report.Err(); err != nil {
		return report, err
	}
	s.logger.Info("✓ Load completed successfully")
	return report, nil
}

func connectionConfig(cfg widload.LoadConfig) (*widload.ConnectionConfig, error) {
	connConfig, err := db.ParseConnectionString(cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %v: %w", err, widload.ErrInvalidConfig)
	}
	if connConfig.AppName == "" {
		connConfig.AppName = db.DefaultAppName
	}
	connConfig.AuthMethod = cfg.AuthMethod
	connConfig.AWSRegion = cfg.AWSRegion
	connConfig.GoogleInstance = cfg.GoogleInstance
	connConfig.AzureTenantID = cfg.AzureTenantID
	connConfig.AzureClientID = cfg.AzureClientID
	connConfig.AzureClientSecret = cfg.AzureClientSecret
	return connConfig, nil
}

// phase times fn and records it on report.
func (s *LoadService) phase(report *widload.Report, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)
	report.Phases = append(report.Phases, widload.PhaseTiming{Phase: name, Duration: d})
	s.recorder.ObservePhase(name, d)
	s.logger.Verbose("Phase %s finished in %s", name, d.Round(time.Millisecond))
	return err
}

func (s *LoadService) runFacts(ctx context.Context, conn widload.DBConnection, cfg widload.LoadConfig, report *widload.Report) error {
	var codes []string
	err := s.phase(report, PhaseSchema, func() error {
		schema := NewSchemaManager(conn, cfg.Tables.Fact, s.executor, s.logger)
		if err := schema.ResetFactSchema(ctx); err != nil {
			return err
		}
		var err error
		codes, err = s.readCountryCodes(cfg)
		return err
	})
	if err != nil {
		return err
	}
	s.logger.Info("Found %d country codes", len(codes))

	return s.phase(report, PhasePartitions, func() error {
		provisioner := NewPartitionProvisioner(conn, s.scanner, s.executor, s.logger, s.recorder, ProvisionerConfig{
			InputDir:    cfg.InputDir,
			DataPattern: cfg.Files.DataPattern,
			FactTable:   cfg.Tables.Fact,
			Workers:     cfg.Workers,
		})
		report.Partitions = provisioner.Provision(ctx, provisioner.Plan(codes))
		s.verifyPartitions(ctx, conn, cfg.Tables.Fact, report.Partitions)
		if err := ctx.Err(); err != nil {
			return err
		}
		s.logger.Info("Partitions: %d succeeded, %d failed, %d rows",
			len(report.Partitions.Succeeded()), len(report.Partitions.Failed()), report.Partitions.TotalRows())
		return nil
	})
}

// readCountryCodes returns the partition codes of the reference file.
// An unreadable file wraps widload.ErrSourceNotFound.
func (s *LoadService) readCountryCodes(cfg widload.LoadConfig) ([]string, error) {
	src, err := s.scanner.Resolve(cfg.InputDir, cfg.Files.Countries)
	if err != nil {
		return nil, err
	}
	r, err := tabular.Open(s.scanner.FS(), src.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %v: %w", src.Name, err, widload.ErrSourceNotFound)
	}
	defer r.Close()

	codes, err := tabular.ReadCountryCodes(r, widload.CountryCodeColumn)
	if err != nil {
		return nil, fmt.Errorf("read %s: %v: %w", src.Name, err, widload.ErrSourceNotFound)
	}
	return codes, nil
}

// verifyPartitions logs successful partitions that the catalog shows as
// detached from the fact table or not clustered on their year index.
func (s *LoadService) verifyPartitions(ctx context.Context, conn widload.DBConnection, fact string, report *widload.ProvisionReport) {
	attached, err := s.catalog.Partitions(ctx, conn, fact)
	if err != nil {
		s.logger.Verbose("Skipping partition verification: %v", err)
		return
	}
	present := make(map[string]bool, len(attached))
	for _, name := range attached {
		present[name] = true
	}
	for _, res := range report.Results {
		if res.Err != nil {
			continue
		}
		if !present[res.Partition.Table] {
			s.logger.Error("Partition %s loaded but is not attached to %s", res.Partition.Table, fact)
			continue
		}
		clustered, err := s.catalog.IsClustered(ctx, conn, res.Partition.Index)
		if err != nil {
			s.logger.Verbose("Skipping cluster check of %s: %v", res.Partition.Table, err)
			continue
		}
		if !clustered {
			s.logger.Error("Partition %s is not clustered on %s", res.Partition.Table, res.Partition.Index)
		}
	}
}

func (s *LoadService) runMetadata(ctx context.Context, conn widload.DBConnection, cfg widload.LoadConfig, report *widload.Report) error {
	exists, err := s.catalog.TableExists(ctx, conn, cfg.Tables.Fact)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("fact table %s does not exist, load facts first: %w", cfg.Tables.Fact, widload.ErrInvalidConfig)
	}
	partitioned, err := s.catalog.IsPartitioned(ctx, conn, cfg.Tables.Fact)
	if err != nil {
		return err
	}
	if !partitioned {
		return fmt.Errorf("fact table %s is not partitioned by country: %w", cfg.Tables.Fact, widload.ErrInvalidConfig)
	}

	err = s.phase(report, PhaseMetadata, func() error {
		loader := NewMetadataLoader(conn, s.scanner, s.executor, s.logger, s.recorder, MetadataLoaderConfig{
			Glob:    cfg.Files.MetadataGlob,
			Staging: cfg.Tables.Staging(),
		})
		var err error
		if cfg.MetadataSample > 0 {
			report.Metadata, err = loader.LoadLargest(ctx, cfg.InputDir, cfg.MetadataSample)
		} else {
			report.Metadata, err = loader.LoadAll(ctx, cfg.InputDir)
		}
		if err != nil {
			return err
		}
		s.logger.Info("Metadata: %d files, %d failed, %d rows",
			len(report.Metadata.Files), len(report.Metadata.Failed()), report.Metadata.TotalRows())
		return nil
	})
	if err != nil {
		return err
	}

	return s.phase(report, PhaseConsolidation, func() error {
		consolidator := NewMetadataConsolidator(conn, cfg.Tables, s.executor, s.logger)
		result := &widload.ConsolidationReport{}
		report.Consolidation = result

		var err error
		if result.EnrichedRows, err = consolidator.BuildEnrichedFacts(ctx); err != nil {
			return err
		}
		if result.DimensionRows, err = consolidator.BuildDeduplicatedMetadata(ctx); err != nil {
			return err
		}
		result.InconsistentKeys, err = consolidator.CheckDimensionConsistency(ctx)
		if err != nil {
			s.logger.Error("%v", err)
		}
		return nil
	})
}
