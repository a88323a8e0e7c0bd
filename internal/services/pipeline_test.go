package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/widload/internal/db"
	"github.com/vvka-141/widload/internal/files/scanner"
	"github.com/vvka-141/widload/pkg/widload"
)

func unusedFactory(*widload.ConnectionConfig, db.PoolOptions) (widload.Connector, error) {
	return nil, errors.New("connector factory must not be called")
}

// newTestService returns a LoadService wired to conn. closed reports whether
// the connection cleanup ran.
func newTestService(conn widload.DBConnection, sc *scanner.Scanner, rec widload.PhaseRecorder) (*LoadService, *bool) {
	svc := NewLoadService(unusedFactory, sc, noRetry(), &mockLogger{}, rec)
	closed := new(bool)
	svc.connect = func(context.Context, *widload.ConnectionConfig, int) (widload.DBConnection, func(), error) {
		return conn, func() { *closed = true }, nil
	}
	return svc, closed
}

func testLoadConfig() widload.LoadConfig {
	return widload.LoadConfig{
		InputDir:         inputDir,
		ConnectionString: "postgresql://loader@localhost:5432/wid",
		Tables:           widload.TableNames{}.WithDefaults(),
		Files:            widload.SourceFiles{}.WithDefaults(),
		Workers:          1,
	}
}

func scenarioFiles() map[string]string {
	return map[string]string{
		"WID_countries.csv":      "alpha2;titlename\nFR;France\nUS-WA;Washington\n",
		"WID_data_FR.csv":        factHeader + "FR;sptinc;p0p100;2020;0.5;992;j\n",
		"WID_data_US-WA.csv":     factHeader + "US-WA;sptinc;p0p100;2020;0.4;992;j\n",
		"WID_metadata_FR.csv":    metadataFile(map[string]string{"country": "FR", "variable": "sptinc", "age": "992", "pop": "j", "unit": "share"}),
		"WID_metadata_US-WA.csv": metadataFile(map[string]string{"country": "US-WA", "variable": "sptinc", "age": "992", "pop": "j", "unit": "share"}),
	}
}

func TestRun_FullScenario(t *testing.T) {
	conn := newMockDB()
	rec := &recordingRecorder{}
	svc, closed := newTestService(conn, memScanner(scenarioFiles()), rec)

	report, err := svc.Run(context.Background(), testLoadConfig())
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.True(t, *closed)
	assert.NotEqual(t, uuid.Nil, report.RunID)
	assert.Equal(t, []string{"FR", "US-WA"}, report.Partitions.Succeeded())
	assert.EqualValues(t, 2, report.Partitions.TotalRows())
	assert.EqualValues(t, 2, report.Metadata.TotalRows())
	require.NotNil(t, report.Consolidation)
	assert.Equal(t, []string{PhaseSchema, PhasePartitions, PhaseMetadata, PhaseConsolidation}, rec.phases)
	assert.Len(t, report.Phases, 4)

	assert.Equal(t, `DROP TABLE IF EXISTS "global_data" CASCADE`, conn.execs[0])
	assert.Len(t, conn.execsMatching("PARTITION OF"), 2)
	assert.Len(t, conn.execsMatching(`CREATE TABLE "wid_global_data" AS`), 1)
	assert.Len(t, conn.execsMatching(`CREATE TABLE "variable_metadata" AS SELECT DISTINCT`), 1)
}

func TestRun_ReportsUnclusteredPartition(t *testing.T) {
	conn := newMockDB()
	conn.queryRowFunc = func(sql string, args ...any) widload.Row {
		if strings.Contains(sql, "indisclustered") && args[0] == `"global_data_us_wa_year_idx"` {
			return mockRow{scanFunc: func(dest ...any) error {
				*dest[0].(*bool) = false
				return nil
			}}
		}
		return conn.defaultRow()
	}
	logger := &mockLogger{}
	svc, _ := newTestService(conn, memScanner(scenarioFiles()), nil)
	svc.logger = logger

	report, err := svc.Run(context.Background(), testLoadConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{"FR", "US-WA"}, report.Partitions.Succeeded())
	assert.Equal(t, []string{"Partition global_data_us_wa is not clustered on global_data_us_wa_year_idx"}, logger.errors)
}

func TestRun_PartialFailure(t *testing.T) {
	files := scenarioFiles()
	delete(files, "WID_data_US-WA.csv")
	conn := newMockDB()
	svc, _ := newTestService(conn, memScanner(files), nil)

	report, err := svc.Run(context.Background(), testLoadConfig())

	require.ErrorIs(t, err, widload.ErrPartialFailure)
	assert.ErrorIs(t, err, widload.ErrPartitionFailed)
	assert.Equal(t, widload.ExitPartialFailure, widload.ExitCodeForError(err))
	require.NotNil(t, report)
	assert.Equal(t, []string{"FR"}, report.Partitions.Succeeded())
	require.NotNil(t, report.Consolidation, "metadata still runs after a partition failure")
}

func TestRun_SchemaFailureIsFatal(t *testing.T) {
	conn := newMockDB()
	conn.failWhen("PARTITION BY LIST", errors.New("permission denied"))
	svc, closed := newTestService(conn, memScanner(scenarioFiles()), nil)

	report, err := svc.Run(context.Background(), testLoadConfig())

	require.ErrorIs(t, err, widload.ErrSchemaFatal)
	assert.Equal(t, widload.ExitSchemaFailed, widload.ExitCodeForError(err))
	assert.Nil(t, report.Partitions)
	assert.Nil(t, report.Metadata)
	assert.Empty(t, conn.execsMatching("PARTITION OF"))
	assert.True(t, *closed)
}

func TestRun_MissingCountriesFile(t *testing.T) {
	files := scenarioFiles()
	delete(files, "WID_countries.csv")
	svc, _ := newTestService(newMockDB(), memScanner(files), nil)

	_, err := svc.Run(context.Background(), testLoadConfig())

	require.ErrorIs(t, err, widload.ErrSourceNotFound)
	assert.Equal(t, widload.ExitSourceMissing, widload.ExitCodeForError(err))
}

func TestRun_CountriesWithoutCodeColumn(t *testing.T) {
	files := scenarioFiles()
	files["WID_countries.csv"] = "code;name\nFR;France\n"
	svc, _ := newTestService(newMockDB(), memScanner(files), nil)

	_, err := svc.Run(context.Background(), testLoadConfig())
	assert.ErrorIs(t, err, widload.ErrSourceNotFound)
}

func TestRun_SkipFacts(t *testing.T) {
	conn := newMockDB()
	svc, _ := newTestService(conn, memScanner(scenarioFiles()), nil)
	cfg := testLoadConfig()
	cfg.SkipFacts = true

	report, err := svc.Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Nil(t, report.Partitions)
	assert.NotNil(t, report.Metadata)
	assert.Empty(t, conn.execsMatching(`DROP TABLE IF EXISTS "global_data"`))
}

func TestRun_SkipFactsRequiresExistingFactTable(t *testing.T) {
	conn := newMockDB()
	conn.queryRowFunc = func(string, ...any) widload.Row {
		return mockRow{scanFunc: func(dest ...any) error {
			*dest[0].(*bool) = false
			return nil
		}}
	}
	svc, _ := newTestService(conn, memScanner(scenarioFiles()), nil)
	cfg := testLoadConfig()
	cfg.SkipFacts = true

	_, err := svc.Run(context.Background(), cfg)
	assert.ErrorIs(t, err, widload.ErrInvalidConfig)
}

func TestRun_SkipFactsRequiresPartitionedFactTable(t *testing.T) {
	conn := newMockDB()
	conn.queryRowFunc = func(sql string, args ...any) widload.Row {
		if strings.Contains(sql, "pg_partitioned_table") {
			return mockRow{scanFunc: func(dest ...any) error {
				*dest[0].(*bool) = false
				return nil
			}}
		}
		return conn.defaultRow()
	}
	svc, _ := newTestService(conn, memScanner(scenarioFiles()), nil)
	cfg := testLoadConfig()
	cfg.SkipFacts = true

	report, err := svc.Run(context.Background(), cfg)
	assert.ErrorIs(t, err, widload.ErrInvalidConfig)
	assert.ErrorContains(t, err, "is not partitioned")
	assert.Nil(t, report.Metadata)
	assert.Empty(t, conn.execsMatching("CREATE TABLE"))
}

func TestRun_SampledMetadata(t *testing.T) {
	conn := newMockDB()
	svc, _ := newTestService(conn, memScanner(scenarioFiles()), nil)
	cfg := testLoadConfig()
	cfg.SkipFacts = true
	cfg.MetadataSample = 1

	report, err := svc.Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.True(t, report.Metadata.Sampled)
	require.Len(t, report.Metadata.Files, 1)
	assert.Equal(t, "WID_metadata_US-WA.csv", report.Metadata.Files[0].File, "largest file wins")
}

func TestRun_InvalidConfig(t *testing.T) {
	svc, _ := newTestService(newMockDB(), memScanner(nil), nil)
	cfg := testLoadConfig()
	cfg.Workers = 0

	report, err := svc.Run(context.Background(), cfg)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, widload.ErrInvalidConfig)
}

func TestRun_ConnectionFailure(t *testing.T) {
	svc := NewLoadService(unusedFactory, memScanner(nil), noRetry(), &mockLogger{}, nil)
	svc.connect = func(context.Context, *widload.ConnectionConfig, int) (widload.DBConnection, func(), error) {
		return nil, nil, widload.ErrConnectionFailed
	}

	_, err := svc.Run(context.Background(), testLoadConfig())
	assert.ErrorIs(t, err, widload.ErrConnectionFailed)
}

func TestConnectionConfig_CarriesAuth(t *testing.T) {
	cfg := testLoadConfig()
	cfg.AuthMethod = widload.AuthMethodAWSIAM
	cfg.AWSRegion = "eu-west-1"

	connConfig, err := connectionConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, widload.AuthMethodAWSIAM, connConfig.AuthMethod)
	assert.Equal(t, "eu-west-1", connConfig.AWSRegion)
	assert.Equal(t, db.DefaultAppName, connConfig.AppName)
	assert.Equal(t, "loader", connConfig.Username)
}
