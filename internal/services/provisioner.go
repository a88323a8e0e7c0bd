package services

import (
	"context"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/vvka-141/widload/internal/files/scanner"
	"github.com/vvka-141/widload/internal/retry"
	"github.com/vvka-141/widload/internal/tabular"
	"github.com/vvka-141/widload/pkg/widload"
)

// ProvisionerConfig locates the fact files and names the partitions.
type ProvisionerConfig struct {
	InputDir    string
	DataPattern string

	// FactTable is the parent table and the partition name prefix.
	FactTable string

	// Workers above 1 provisions partitions concurrently.
	Workers int
}

// PartitionProvisioner creates, indexes, loads and clusters one child
// partition of the fact table per country code.
//
// Every partition is an independent unit: a failure at any stage is recorded
// in the report and the remaining partitions still run.
type PartitionProvisioner struct {
	conn     widload.DBConnection
	scanner  *scanner.Scanner
	executor *retry.Executor
	logger   widload.Logger
	recorder widload.PhaseRecorder
	cfg      ProvisionerConfig
}

// NewPartitionProvisioner panics on nil dependencies. recorder may be nil.
func NewPartitionProvisioner(
	conn widload.DBConnection,
	fileScanner *scanner.Scanner,
	executor *retry.Executor,
	logger widload.Logger,
	recorder widload.PhaseRecorder,
	cfg ProvisionerConfig,
) *PartitionProvisioner {
	if conn == nil {
		panic("conn cannot be nil")
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
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &PartitionProvisioner{
		conn:     conn,
		scanner:  fileScanner,
		executor: executor,
		logger:   logger,
		recorder: recorder,
		cfg:      cfg,
	}
}

// Plan derives one partition per code, in input order.
func (p *PartitionProvisioner) Plan(codes []string) []widload.Partition {
	return PlanPartitions(p.cfg.FactTable, codes)
}

// PlanPartitions derives one partition per code, in input order. Codes that
// normalize to the same key yield partitions with the same names; Provision
// rejects all but the first of them.
func PlanPartitions(prefix string, codes []string) []widload.Partition {
	plan := make([]widload.Partition, 0, len(codes))
	for _, code := range codes {
		key := widload.NormalizePartitionKey(code)
		plan = append(plan, widload.Partition{
			SourceCode: code,
			Key:        key,
			Table:      widload.PartitionTableName(prefix, key),
			Index:      widload.PartitionIndexName(prefix, key),
		})
	}
	return plan
}

// Provision runs every partition unit and reports outcomes in plan order.
// It never returns early: failures are carried in the report.
func (p *PartitionProvisioner) Provision(ctx context.Context, plan []widload.Partition) *widload.ProvisionReport {
	results := make([]widload.PartitionResult, len(plan))
	var runnable []int

	owner := make(map[string]string, len(plan))
	for i, part := range plan {
		if err := planError(part, owner); err != nil {
			results[i] = widload.PartitionResult{Partition: part, Err: err}
			p.logger.Error("Partition %s: %v", part.SourceCode, err)
			p.recorder.ObservePartition(results[i])
			continue
		}
		runnable = append(runnable, i)
	}

	if p.cfg.Workers == 1 || len(runnable) < 2 {
		for _, i := range runnable {
			if err := ctx.Err(); err != nil {
				results[i] = p.notStarted(plan[i], err)
				continue
			}
			results[i] = p.provisionOne(ctx, plan[i])
		}
	} else {
		p.provisionConcurrently(ctx, plan, runnable, results)
	}
	return &widload.ProvisionReport{Results: results}
}

// planError rejects a partition whose key was taken by an earlier code or
// whose names the server would truncate.
func planError(part widload.Partition, owner map[string]string) error {
	if first, taken := owner[part.Key]; taken {
		return &widload.PartitionError{
			Code:  part.SourceCode,
			Key:   part.Key,
			Stage: widload.StagePlan,
			Err:   fmt.Errorf("key already used by %q: %w", first, widload.ErrNamingCollision),
		}
	}
	owner[part.Key] = part.SourceCode

	if err := widload.ValidateIdentifier(part.Index); err != nil {
		return &widload.PartitionError{Code: part.SourceCode, Key: part.Key, Stage: widload.StagePlan, Err: err}
	}
	return nil
}

func (p *PartitionProvisioner) provisionConcurrently(ctx context.Context, plan []widload.Partition, runnable []int, results []widload.PartitionResult) {
	pool := pond.NewResultPool[widload.PartitionResult](p.cfg.Workers)

	group := pool.NewGroupContext(ctx)
	for _, i := range runnable {
		part := plan[i]
		group.Submit(func() widload.PartitionResult {
			if err := ctx.Err(); err != nil {
				results[i] = p.notStarted(part, err)
			} else {
				results[i] = p.provisionOne(ctx, part)
			}
			return results[i]
		})
	}

	done, err := group.Wait()
	pool.StopAndWait()
	if err == nil {
		for n, i := range runnable {
			results[i] = done[n]
		}
		return
	}

	// Units skipped after cancellation never wrote a result.
	for _, i := range runnable {
		if results[i].Partition.Table == "" {
			results[i] = p.notStarted(plan[i], err)
		}
	}
}

// notStarted records a unit that never ran because cause cancelled the run.
// It is attributed to the first stage.
func (p *PartitionProvisioner) notStarted(part widload.Partition, cause error) widload.PartitionResult {
	result := widload.PartitionResult{
		Partition: part,
		Err: &widload.PartitionError{
			Code: part.SourceCode, Key: part.Key, Stage: widload.StageCreate,
			Err: fmt.Errorf("%w: %w", widload.ErrNotStarted, cause),
		},
	}
	p.recorder.ObservePartition(result)
	return result
}

func (p *PartitionProvisioner) provisionOne(ctx context.Context, part widload.Partition) widload.PartitionResult {
	start := time.Now()
	result := widload.PartitionResult{Partition: part}

	fail := func(stage string, err error) widload.PartitionResult {
		result.Duration = time.Since(start)
		result.Err = &widload.PartitionError{Code: part.SourceCode, Key: part.Key, Stage: stage, Err: err}
		p.logger.Error("%v", result.Err)
		p.recorder.ObservePartition(result)
		return result
	}

	p.logger.Verbose("Provisioning partition %s for %q", part.Table, part.SourceCode)

	if err := p.exec(ctx, createPartitionSQL(p.cfg.FactTable, part)); err != nil {
		return fail(widload.StageCreate, err)
	}
	if err := p.exec(ctx, createIndexSQL(part)); err != nil {
		return fail(widload.StageIndex, err)
	}

	rows, err := p.load(ctx, part)
	if err != nil {
		return fail(widload.StageLoad, err)
	}
	result.Rows = rows

	if err := p.exec(ctx, clusterSQL(part)); err != nil {
		return fail(widload.StageCluster, err)
	}
	if err := p.exec(ctx, analyzeSQL(part.Table)); err != nil {
		return fail(widload.StageCluster, err)
	}

	result.Duration = time.Since(start)
	p.logger.Info("✓ Partition %s: %d rows in %s", part.Table, rows, result.Duration.Round(time.Millisecond))
	p.recorder.ObservePartition(result)
	return result
}

func (p *PartitionProvisioner) exec(ctx context.Context, sql string) error {
	p.logger.Verbose("%s", sql)
	return p.executor.Execute(ctx, func(ctx context.Context) error {
		_, err := p.conn.Exec(ctx, sql)
		return err
	})
}

// load streams the partition's data file through COPY. The file is reopened
// on every attempt.
func (p *PartitionProvisioner) load(ctx context.Context, part widload.Partition) (int64, error) {
	src, err := p.scanner.DataFile(p.cfg.InputDir, p.cfg.DataPattern, part.SourceCode)
	if err != nil {
		return 0, err
	}

	return retry.Value(ctx, p.executor, func(ctx context.Context) (int64, error) {
		f, err := tabular.Open(p.scanner.FS(), src.Path)
		if err != nil {
			return 0, err
		}
		defer f.Close()

		header, body, err := tabular.SplitHeader(f)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", src.Name, err)
		}
		if err := tabular.ValidateFactHeader(header, widload.FactColumnNames(), widload.RequiredFactColumns); err != nil {
			return 0, fmt.Errorf("%s: %w", src.Name, err)
		}
		return p.conn.CopyFrom(ctx, body, copyPartitionSQL(part, header))
	})
}

type nopRecorder struct{}

func (nopRecorder) ObservePartition(widload.PartitionResult)      {}
func (nopRecorder) ObserveMetadataFile(widload.MetadataFileResult) {}
func (nopRecorder) ObservePhase(string, time.Duration)            {}
