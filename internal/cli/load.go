package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vvka-141/widload/internal/config"
	"github.com/vvka-141/widload/internal/db"
	"github.com/vvka-141/widload/internal/files/scanner"
	"github.com/vvka-141/widload/internal/logging"
	"github.com/vvka-141/widload/internal/metrics"
	"github.com/vvka-141/widload/internal/report"
	"github.com/vvka-141/widload/internal/retry"
	"github.com/vvka-141/widload/internal/services"
	"github.com/vvka-141/widload/pkg/widload"
)

type loadFlagValues struct {
	connection, host, username, database, sslMode string
	port                                          int

	aws            bool
	awsRegion      string
	azure          bool
	googleInstance string

	workers, metadataSample int
	skipFacts, skipMetadata bool

	envFiles    []string
	metricsFile string
	timeout     time.Duration
}

var loadFlags loadFlagValues

func registerLoadFlags(cmd *cobra.Command) {
	f := cmd.Flags()

	f.StringVar(&loadFlags.connection, "connection", "",
		"PostgreSQL connection string (URI or ADO.NET format).\n"+
			"Mutually exclusive with --host, --port, --username and --sslmode.\n"+
			"Alternative: DATABASE_URL environment variable.")
	f.StringVarP(&loadFlags.host, "host", "h", "",
		"PostgreSQL server host\n"+
			"Precedence: --host > $PGHOST > widload.yaml > localhost")
	f.IntVarP(&loadFlags.port, "port", "p", 0,
		"PostgreSQL server port\n"+
			"Precedence: --port > $PGPORT > widload.yaml > 5432")
	f.StringVarP(&loadFlags.username, "username", "U", "",
		"PostgreSQL user (default: $PGUSER, $DB_USER or current OS user)")
	f.StringVarP(&loadFlags.database, "database", "d", "",
		"Target database (default: $PGDATABASE or wid).\n"+
			"Overrides the database of a connection string.")
	f.StringVar(&loadFlags.sslMode, "sslmode", "",
		"SSL mode: disable|allow|prefer|require|verify-ca|verify-full\n"+
			"(default: prefer, or $PGSSLMODE)")

	f.BoolVar(&loadFlags.aws, "aws", false,
		"Enable AWS RDS IAM authentication")
	f.StringVar(&loadFlags.awsRegion, "aws-region", "",
		"AWS region for the IAM token (overrides $AWS_REGION)")
	f.BoolVar(&loadFlags.azure, "azure", false,
		"Enable Azure Entra ID authentication\n"+
			"Uses a Service Principal when $AZURE_TENANT_ID, $AZURE_CLIENT_ID and\n"+
			"$AZURE_CLIENT_SECRET are set, otherwise DefaultAzureCredential")
	f.StringVar(&loadFlags.googleInstance, "google-instance", "",
		"Enable Google Cloud SQL IAM authentication for project:region:instance")

	f.IntVar(&loadFlags.workers, "workers", 1,
		"Partitions provisioned concurrently (default 1, or workers in widload.yaml)")
	f.IntVar(&loadFlags.metadataSample, "metadata-sample", 0,
		"Load only the N largest metadata files and deduplicate on (variable, age, pop).\n"+
			"0 loads every metadata file.")
	f.BoolVar(&loadFlags.skipFacts, "skip-facts", false,
		"Skip the fact table and partitions; requires an existing fact table")
	f.BoolVar(&loadFlags.skipMetadata, "skip-metadata", false,
		"Skip metadata staging and consolidation")

	f.StringSliceVar(&loadFlags.envFiles, "env-file", nil,
		"Additional .env files to load after ./.env (can be specified multiple times).\n"+
			"Variables already set in the environment are not overridden.")
	f.StringVar(&loadFlags.metricsFile, "metrics-file", "",
		"Write Prometheus run metrics to this file (node_exporter textfile format)")
	f.DurationVar(&loadFlags.timeout, "timeout", 0,
		"Abort the run after this duration (default 0, no timeout)\n"+
			"Examples: 30m, 2h")
}

// loadEnvFiles loads ./.env when present, then every file in envFiles.
// Only the explicitly named files must exist.
func loadEnvFiles(envFiles []string) error {
	_ = godotenv.Load()
	if len(envFiles) == 0 {
		return nil
	}
	if err := godotenv.Load(envFiles...); err != nil {
		return fmt.Errorf("failed to load env file: %v: %w", err, widload.ErrInvalidConfig)
	}
	return nil
}

// buildLoadConfig merges flags, environment, widload.yaml and defaults into a
// LoadConfig. Flags win over widload.yaml, which wins over built-in defaults.
func buildLoadConfig(cmd *cobra.Command, inputDir string, verbose bool) (widload.LoadConfig, error) {
	info, err := os.Stat(inputDir)
	if err != nil {
		return widload.LoadConfig{}, fmt.Errorf("input directory %s: %w: %w", inputDir, widload.ErrSourceNotFound, err)
	}
	if !info.IsDir() {
		return widload.LoadConfig{}, fmt.Errorf("input path %s is not a directory: %w", inputDir, widload.ErrInvalidConfig)
	}

	if err := loadEnvFiles(loadFlags.envFiles); err != nil {
		return widload.LoadConfig{}, err
	}

	projectCfg, err := config.LoadOptional(inputDir)
	if err != nil {
		return widload.LoadConfig{}, fmt.Errorf("failed to load %s: %w", config.ConfigFileName, err)
	}

	connConfig, err := db.ResolveConnectionParams(
		loadFlags.connection,
		&db.GranularConnFlags{
			Host:     loadFlags.host,
			Port:     loadFlags.port,
			Username: loadFlags.username,
			Database: loadFlags.database,
			SSLMode:  loadFlags.sslMode,
		},
		&db.CloudFlags{
			AWS:            loadFlags.aws,
			AWSRegion:      loadFlags.awsRegion,
			Azure:          loadFlags.azure,
			GoogleInstance: loadFlags.googleInstance,
		},
		db.LoadFromEnvironment(),
		&projectCfg.Connection,
	)
	if err != nil {
		return widload.LoadConfig{}, err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "[VERBOSE] Connection resolved:\n")
		fmt.Fprintf(os.Stderr, "  Host: %s\n", connConfig.Host)
		fmt.Fprintf(os.Stderr, "  Port: %d\n", connConfig.Port)
		fmt.Fprintf(os.Stderr, "  User: %s\n", connConfig.Username)
		fmt.Fprintf(os.Stderr, "  Database: %s\n", connConfig.Database)
		fmt.Fprintf(os.Stderr, "  SSL Mode: %s\n", connConfig.SSLMode)
		fmt.Fprintf(os.Stderr, "  Auth Method: %s\n", connConfig.AuthMethod)
	}

	workers := loadFlags.workers
	if !cmd.Flags().Changed("workers") && projectCfg.Workers > 0 {
		workers = projectCfg.Workers
	}
	sample := loadFlags.metadataSample
	if !cmd.Flags().Changed("metadata-sample") && projectCfg.MetadataSample > 0 {
		sample = projectCfg.MetadataSample
	}
	timeout := loadFlags.timeout
	if !cmd.Flags().Changed("timeout") {
		parsed, err := projectCfg.TimeoutDuration()
		if err != nil {
			return widload.LoadConfig{}, err
		}
		if parsed > 0 {
			timeout = parsed
		}
	}

	return widload.LoadConfig{
		InputDir:          inputDir,
		ConnectionString:  db.BuildConnectionString(connConfig),
		AuthMethod:        connConfig.AuthMethod,
		AWSRegion:         connConfig.AWSRegion,
		GoogleInstance:    connConfig.GoogleInstance,
		AzureTenantID:     connConfig.AzureTenantID,
		AzureClientID:     connConfig.AzureClientID,
		AzureClientSecret: connConfig.AzureClientSecret,
		Tables:            projectCfg.Tables.WithDefaults(),
		Files:             projectCfg.Files.WithDefaults(),
		Workers:           workers,
		MetadataSample:    sample,
		SkipFacts:         loadFlags.skipFacts,
		SkipMetadata:      loadFlags.skipMetadata,
		Timeout:           timeout,
		Verbose:           verbose,
	}, nil
}

func runLoad(cmd *cobra.Command, args []string) error {
	inputDir := args[0]
	verbose := getVerboseFlag(cmd)

	cfg, err := buildLoadConfig(cmd, inputDir, verbose)
	if err != nil {
		return err
	}

	logger := logging.NewConsoleLogger(verbose)
	recorder := metrics.NewRecorder()
	executor := retry.NewDefaultExecutor().WithOnRetry(func(attempt int, err error, delay time.Duration) {
		logger.Verbose("attempt %d failed, retrying in %v: %v", attempt+1, delay, err)
	})
	loader := services.NewLoadService(db.NewConnector, scanner.NewScanner(), executor, logger, recorder)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := loader.Run(ctx, cfg)
	if errors.Is(ctx.Err(), context.Canceled) {
		fmt.Fprintln(os.Stderr, "\n[INTERRUPT] Load cancelled by signal")
	}
	if result != nil {
		report.Render(cmd.OutOrStdout(), result)
	}

	if loadFlags.metricsFile != "" {
		if err := recorder.WriteTextfile(loadFlags.metricsFile, time.Now()); err != nil {
			logger.Error("failed to write metrics file %s: %v", loadFlags.metricsFile, err)
		}
	}

	if runErr != nil {
		return fmt.Errorf("load failed: %w", runErr)
	}
	return nil
}
