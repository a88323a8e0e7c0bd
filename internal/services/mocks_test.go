package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/klauspost/compress/gzip"
	"github.com/vvka-141/widload/internal/files/filesystem"
	"github.com/vvka-141/widload/internal/files/scanner"
	"github.com/vvka-141/widload/internal/retry"
	"github.com/vvka-141/widload/pkg/widload"
)

// mockDBConnection records statements and fails those containing a
// registered substring. Safe for concurrent use.
type mockDBConnection struct {
	mu sync.Mutex

	execs  []string
	copies map[string]string // COPY statement -> body
	failOn map[string]error

	// committed holds staging rows per committed transaction, in commit order.
	committed [][][]any
	copyErrs  []error // consumed by successive CopyRows calls

	queryRowFunc func(sql string, args ...any) widload.Row
	deleteTag    string
}

func newMockDB() *mockDBConnection {
	return &mockDBConnection{
		copies: make(map[string]string),
		failOn: make(map[string]error),
	}
}

func (m *mockDBConnection) failWhen(substr string, err error) {
	m.failOn[substr] = err
}

func (m *mockDBConnection) check(sql string) error {
	for substr, err := range m.failOn {
		if strings.Contains(sql, substr) {
			return err
		}
	}
	return nil
}

func (m *mockDBConnection) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execs = append(m.execs, sql)
	if err := m.check(sql); err != nil {
		return pgconn.CommandTag{}, err
	}
	if strings.HasPrefix(sql, "DELETE") && m.deleteTag != "" {
		return pgconn.NewCommandTag(m.deleteTag), nil
	}
	return pgconn.CommandTag{}, nil
}

func (m *mockDBConnection) QueryRow(_ context.Context, sql string, args ...any) widload.Row {
	if m.queryRowFunc != nil {
		return m.queryRowFunc(sql, args...)
	}
	return m.defaultRow()
}

// defaultRow answers catalog queries as if every relation exists and every
// created partition is attached.
func (m *mockDBConnection) defaultRow() widload.Row {
	return mockRow{scanFunc: func(dest ...any) error {
		switch d := dest[0].(type) {
		case *bool:
			*d = true
		case *int64:
			*d = 0
		case *[]string:
			*d = m.createdPartitions()
		default:
			return fmt.Errorf("unexpected scan target %T", d)
		}
		return nil
	}}
}

func (m *mockDBConnection) CopyFrom(_ context.Context, r io.Reader, sql string) (int64, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(sql); err != nil {
		return 0, err
	}
	m.copies[sql] = string(body)
	var rows int64
	for _, line := range strings.Split(string(body), "\n") {
		if strings.TrimSpace(line) != "" {
			rows++
		}
	}
	return rows, nil
}

func (m *mockDBConnection) Begin(_ context.Context) (widload.Tx, error) {
	return &mockTx{db: m}, nil
}

// createdPartitions lists tables created with PARTITION OF.
func (m *mockDBConnection) createdPartitions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for _, sql := range m.execs {
		if rest, ok := strings.CutPrefix(sql, "CREATE TABLE "); ok && strings.Contains(rest, " PARTITION OF ") {
			names = append(names, strings.Trim(strings.Fields(rest)[0], `"`))
		}
	}
	return names
}

// execsMatching returns recorded statements containing substr, in order.
func (m *mockDBConnection) execsMatching(substr string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, sql := range m.execs {
		if strings.Contains(sql, substr) {
			out = append(out, sql)
		}
	}
	return out
}

type mockTx struct {
	db      *mockDBConnection
	pending [][]any
	done    bool
}

func (t *mockTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.db.Exec(ctx, sql, args...)
}

func (t *mockTx) CopyRows(_ context.Context, _ string, _ []string, rows [][]any) (int64, error) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if len(t.db.copyErrs) > 0 {
		err := t.db.copyErrs[0]
		t.db.copyErrs = t.db.copyErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	t.pending = append(t.pending, rows...)
	return int64(len(rows)), nil
}

func (t *mockTx) Commit(_ context.Context) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if t.done {
		return errors.New("tx closed")
	}
	t.done = true
	t.db.committed = append(t.db.committed, t.pending)
	return nil
}

func (t *mockTx) Rollback(_ context.Context) error {
	t.done = true
	t.pending = nil
	return nil
}

type mockRow struct {
	scanFunc func(dest ...any) error
}

func (r mockRow) Scan(dest ...any) error {
	return r.scanFunc(dest...)
}

// mockLogger keeps error messages for assertions.
type mockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (m *mockLogger) Verbose(_ string, _ ...interface{}) {}
func (m *mockLogger) Info(_ string, _ ...interface{})    {}
func (m *mockLogger) Error(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, fmt.Sprintf(format, args...))
}

// recordingRecorder captures telemetry callbacks.
type recordingRecorder struct {
	mu         sync.Mutex
	partitions []widload.PartitionResult
	files      []widload.MetadataFileResult
	phases     []string
}

func (r *recordingRecorder) ObservePartition(res widload.PartitionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.partitions = append(r.partitions, res)
}

func (r *recordingRecorder) ObserveMetadataFile(res widload.MetadataFileResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, res)
}

func (r *recordingRecorder) ObservePhase(phase string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = append(r.phases, phase)
}

// noRetry never retries.
func noRetry() *retry.Executor {
	return retry.NewExecutor(retry.NewPostgreSQLErrorClassifier(), retry.NewExponentialBackoff(0))
}

// inputDir is the directory of the in-memory fixtures.
const inputDir = "/in"

func memScanner(files map[string]string) *scanner.Scanner {
	fsys := filesystem.NewMemoryFileSystem()
	for name, content := range files {
		fsys.AddFile(inputDir+"/"+name, []byte(content))
	}
	return scanner.NewScannerWithFS(fsys)
}

func gzipped(s string) string {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte(s)) //nolint:errcheck
	zw.Close()          //nolint:errcheck
	return buf.String()
}

const factHeader = "country;variable;percentile;year;value;age;pop\n"

func metadataHeader() string {
	return strings.Join(widload.MetadataColumns, ";") + "\n"
}

// metadataRow builds a row in MetadataColumns order from overrides.
func metadataRow(values map[string]string) string {
	fields := make([]string, len(widload.MetadataColumns))
	for i, c := range widload.MetadataColumns {
		fields[i] = values[c]
	}
	return strings.Join(fields, ";") + "\n"
}
