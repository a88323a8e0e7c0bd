package db

import (
	"fmt"
	"os"
	"strconv"

	"github.com/vvka-141/widload/internal/config"
	"github.com/vvka-141/widload/pkg/widload"
)

// GranularConnFlags represents connection parameters from CLI flags.
// These follow PostgreSQL standard flag conventions (-h, -p, -U, -d).
//
// Password is deliberately not a flag. Use $DB_PW, $PGPASSWORD, ~/.pgpass
// or a connection string.
type GranularConnFlags struct {
	Host     string
	Port     int
	Username string
	Database string
	SSLMode  string
}

// IsEmpty reports whether no server-identifying flag was given.
// Database is excluded: -d may override the database of a connection string.
func (g *GranularConnFlags) IsEmpty() bool {
	return g.Host == "" && g.Port == 0 && g.Username == "" && g.SSLMode == ""
}

// CloudFlags selects a cloud IAM authentication method.
type CloudFlags struct {
	AWS       bool
	AWSRegion string

	Azure         bool
	AzureTenantID string
	AzureClientID string

	// GoogleInstance enables Cloud SQL IAM auth when set.
	GoogleInstance string
}

// EnvVars holds the environment variables that take part in resolution.
type EnvVars struct {
	PGHOST       string
	PGPORT       string
	PGUSER       string
	PGPASSWORD   string
	PGDATABASE   string
	PGSSLMODE    string
	DATABASE_URL string

	// DB_USER and DB_PW are fallbacks for PGUSER and PGPASSWORD.
	DB_USER string
	DB_PW   string

	AWS_REGION string

	AZURE_TENANT_ID     string
	AZURE_CLIENT_ID     string
	AZURE_CLIENT_SECRET string
}

// LoadFromEnvironment reads EnvVars from the process environment.
func LoadFromEnvironment() *EnvVars {
	return &EnvVars{
		PGHOST:              os.Getenv("PGHOST"),
		PGPORT:              os.Getenv("PGPORT"),
		PGUSER:              os.Getenv("PGUSER"),
		PGPASSWORD:          os.Getenv("PGPASSWORD"),
		PGDATABASE:          os.Getenv("PGDATABASE"),
		PGSSLMODE:           os.Getenv("PGSSLMODE"),
		DATABASE_URL:        os.Getenv("DATABASE_URL"),
		DB_USER:             os.Getenv("DB_USER"),
		DB_PW:               os.Getenv("DB_PW"),
		AWS_REGION:          os.Getenv("AWS_REGION"),
		AZURE_TENANT_ID:     os.Getenv("AZURE_TENANT_ID"),
		AZURE_CLIENT_ID:     os.Getenv("AZURE_CLIENT_ID"),
		AZURE_CLIENT_SECRET: os.Getenv("AZURE_CLIENT_SECRET"),
	}
}

// ResolveConnectionParams resolves connection parameters with this precedence:
//
//  1. --connection flag, parsed as a whole
//  2. DATABASE_URL, when no granular flag is given
//  3. per field: granular flag > PG* variable > DB_USER/DB_PW > widload.yaml > default
//
// The -d flag overrides the database in every path. Conflicting
// --connection and granular flags are rejected.
func ResolveConnectionParams(
	connStringFlag string,
	flags *GranularConnFlags,
	cloud *CloudFlags,
	env *EnvVars,
	project *config.ConnectionConfig,
) (*widload.ConnectionConfig, error) {
	if flags == nil {
		flags = &GranularConnFlags{}
	}
	if cloud == nil {
		cloud = &CloudFlags{}
	}
	if env == nil {
		env = &EnvVars{}
	}
	if project == nil {
		project = &config.ConnectionConfig{}
	}

	if connStringFlag != "" && !flags.IsEmpty() {
		return nil, fmt.Errorf("cannot specify both --connection and granular flags (-h, -p, -U, --sslmode): %w", widload.ErrInvalidConfig)
	}

	var cfg *widload.ConnectionConfig
	var err error
	switch {
	case connStringFlag != "":
		cfg, err = fromConnectionString(connStringFlag, env)
	case flags.IsEmpty() && env.DATABASE_URL != "":
		cfg, err = fromConnectionString(env.DATABASE_URL, env)
	default:
		cfg, err = fromGranular(flags, env, project)
	}
	if err != nil {
		return nil, err
	}

	if flags.Database != "" {
		cfg.Database = flags.Database
	}

	if err := applyCloudAuth(cfg, cloud, env); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromConnectionString(connStr string, env *EnvVars) (*widload.ConnectionConfig, error) {
	cfg, err := ParseConnectionString(connStr)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %v: %w", err, widload.ErrInvalidConfig)
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = firstNonEmpty(env.PGSSLMODE, "prefer")
	}
	if cfg.Password == "" {
		cfg.Password = firstNonEmpty(env.PGPASSWORD, env.DB_PW)
	}
	return cfg, nil
}

func fromGranular(flags *GranularConnFlags, env *EnvVars, project *config.ConnectionConfig) (*widload.ConnectionConfig, error) {
	cfg := &widload.ConnectionConfig{
		AuthMethod:       widload.AuthMethodStandard,
		AdditionalParams: make(map[string]string),
	}

	cfg.Host = firstNonEmpty(flags.Host, env.PGHOST, project.Host, "localhost")

	switch {
	case flags.Port != 0:
		cfg.Port = flags.Port
	case env.PGPORT != "":
		port, err := strconv.Atoi(env.PGPORT)
		if err != nil {
			return nil, fmt.Errorf("invalid $PGPORT value '%s': must be an integer: %w", env.PGPORT, widload.ErrInvalidConfig)
		}
		cfg.Port = port
	case project.Port != 0:
		cfg.Port = project.Port
	default:
		cfg.Port = defaultPort
	}

	cfg.Username = firstNonEmpty(flags.Username, env.PGUSER, env.DB_USER, project.Username, os.Getenv("USER"), os.Getenv("USERNAME"))
	cfg.Password = firstNonEmpty(env.PGPASSWORD, env.DB_PW)
	cfg.Database = firstNonEmpty(flags.Database, env.PGDATABASE, project.Database, widload.DefaultDatabase)
	cfg.SSLMode = firstNonEmpty(flags.SSLMode, env.PGSSLMODE, project.SSLMode, "prefer")
	return cfg, nil
}

// applyCloudAuth switches the auth method when a cloud flag is set.
// At most one cloud method may be selected.
func applyCloudAuth(cfg *widload.ConnectionConfig, cloud *CloudFlags, env *EnvVars) error {
	selected := 0
	if cloud.AWS {
		selected++
	}
	if cloud.Azure || cloud.AzureTenantID != "" || cloud.AzureClientID != "" {
		selected++
	}
	if cloud.GoogleInstance != "" {
		selected++
	}
	if selected > 1 {
		return fmt.Errorf("choose at most one of --aws, --azure, --google-instance: %w", widload.ErrInvalidConfig)
	}

	switch {
	case cloud.AWS:
		cfg.AuthMethod = widload.AuthMethodAWSIAM
		cfg.AWSRegion = firstNonEmpty(cloud.AWSRegion, env.AWS_REGION)
		if cfg.SSLMode == "prefer" {
			cfg.SSLMode = "require"
		}
	case cloud.GoogleInstance != "":
		cfg.AuthMethod = widload.AuthMethodGoogleIAM
		cfg.GoogleInstance = cloud.GoogleInstance
	case selected == 1:
		cfg.AuthMethod = widload.AuthMethodAzureEntraID
		cfg.AzureTenantID = firstNonEmpty(cloud.AzureTenantID, env.AZURE_TENANT_ID)
		cfg.AzureClientID = firstNonEmpty(cloud.AzureClientID, env.AZURE_CLIENT_ID)
		cfg.AzureClientSecret = env.AZURE_CLIENT_SECRET
		if cfg.SSLMode == "prefer" {
			cfg.SSLMode = "require"
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
