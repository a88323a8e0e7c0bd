package services

import (
	"context"
	"fmt"
	"time"

	"github.com/vvka-141/widload/internal/files/scanner"
	"github.com/vvka-141/widload/internal/retry"
	"github.com/vvka-141/widload/internal/tabular"
	"github.com/vvka-141/widload/pkg/widload"
)

// MetadataLoaderConfig names the metadata inputs and the staging relation.
type MetadataLoaderConfig struct {
	Glob    string
	Staging string
}

// MetadataLoader materializes metadata files into the staging relation, one
// transaction per file.
type MetadataLoader struct {
	conn     widload.DBConnection
	scanner  *scanner.Scanner
	executor *retry.Executor
	logger   widload.Logger
	recorder widload.PhaseRecorder
	cfg      MetadataLoaderConfig
}

// NewMetadataLoader panics on nil dependencies. recorder may be nil.
func NewMetadataLoader(
	conn widload.DBConnection,
	fileScanner *scanner.Scanner,
	executor *retry.Executor,
	logger widload.Logger,
	recorder widload.PhaseRecorder,
	cfg MetadataLoaderConfig,
) *MetadataLoader {
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
	return &MetadataLoader{
		conn:     conn,
		scanner:  fileScanner,
		executor: executor,
		logger:   logger,
		recorder: recorder,
		cfg:      cfg,
	}
}

// LoadAll recreates the staging relation and loads every metadata file in
// dir, in name order. A failing file is rolled back and recorded; the error
// return is reserved for failures that stop the whole phase.
func (l *MetadataLoader) LoadAll(ctx context.Context, dir string) (*widload.MetadataLoadReport, error) {
	files, err := l.scanner.MetadataFiles(dir, l.cfg.Glob)
	if err != nil {
		return nil, err
	}
	return l.load(ctx, files, false)
}

// LoadLargest loads only the n largest metadata files, largest first with
// ties broken by name, then removes rows repeating an earlier
// (variable, age, pop).
func (l *MetadataLoader) LoadLargest(ctx context.Context, dir string, n int) (*widload.MetadataLoadReport, error) {
	if n < 1 {
		return nil, fmt.Errorf("metadata sample must be positive, got %d: %w", n, widload.ErrInvalidConfig)
	}
	files, err := l.scanner.MetadataFiles(dir, l.cfg.Glob)
	if err != nil {
		return nil, err
	}
	report, err := l.load(ctx, scanner.LargestFirst(files, n), true)
	if err != nil {
		return nil, err
	}

	sql := dedupStagingSQL(l.cfg.Staging)
	l.logger.Verbose("%s", sql)
	removed, err := retry.Value(ctx, l.executor, func(ctx context.Context) (int64, error) {
		tag, err := l.conn.Exec(ctx, sql)
		return tag.RowsAffected(), err
	})
	if err != nil {
		return report, fmt.Errorf("deduplicate %s: %w", l.cfg.Staging, err)
	}
	report.DuplicatesRemoved = removed
	l.logger.Verbose("Removed %d duplicate metadata rows", removed)
	return report, nil
}

func (l *MetadataLoader) load(ctx context.Context, files []scanner.SourceFile, sampled bool) (*widload.MetadataLoadReport, error) {
	if err := l.resetStaging(ctx); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		l.logger.Info("No metadata files match %s", l.cfg.Glob)
	}

	report := &widload.MetadataLoadReport{Sampled: sampled}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result := l.loadFile(ctx, f)
		report.Files = append(report.Files, result)
		l.recorder.ObserveMetadataFile(result)
	}
	return report, nil
}

func (l *MetadataLoader) resetStaging(ctx context.Context) error {
	for _, sql := range []string{dropTableSQL(l.cfg.Staging), createStagingSQL(l.cfg.Staging)} {
		l.logger.Verbose("%s", sql)
		err := l.executor.Execute(ctx, func(ctx context.Context) error {
			_, err := l.conn.Exec(ctx, sql)
			return err
		})
		if err != nil {
			return fmt.Errorf("reset staging table %s: %w: %w", l.cfg.Staging, widload.ErrSchemaFatal, err)
		}
	}
	return nil
}

func (l *MetadataLoader) loadFile(ctx context.Context, f scanner.SourceFile) widload.MetadataFileResult {
	start := time.Now()
	result := widload.MetadataFileResult{File: f.Name, Size: f.Size}

	rows, err := l.readFile(ctx, f)
	if err == nil {
		result.Rows, err = retry.Value(ctx, l.executor, func(ctx context.Context) (int64, error) {
			return l.insert(ctx, rows)
		})
	}
	if err != nil {
		result.Err = &widload.MetadataFileError{File: f.Name, Err: err}
		l.logger.Error("%v", result.Err)
		return result
	}

	l.logger.Info("✓ Metadata %s: %d rows in %s", f.Name, result.Rows, time.Since(start).Round(time.Millisecond))
	return result
}

func (l *MetadataLoader) readFile(ctx context.Context, f scanner.SourceFile) ([][]any, error) {
	r, err := tabular.Open(l.scanner.FS(), f.Path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return tabular.ReadProjected(ctx, r, widload.MetadataColumns)
}

// insert copies rows into staging inside one transaction.
func (l *MetadataLoader) insert(ctx context.Context, rows [][]any) (int64, error) {
	tx, err := l.conn.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	n, err := tx.CopyRows(ctx, l.cfg.Staging, widload.MetadataColumns, rows)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return n, nil
}
