package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/widload/internal/config"
	"github.com/vvka-141/widload/pkg/widload"
)

func TestGranularConnFlags_IsEmpty(t *testing.T) {
	assert.True(t, (&GranularConnFlags{}).IsEmpty())
	assert.True(t, (&GranularConnFlags{Database: "wid"}).IsEmpty())
	assert.False(t, (&GranularConnFlags{Host: "db"}).IsEmpty())
	assert.False(t, (&GranularConnFlags{Port: 5433}).IsEmpty())
	assert.False(t, (&GranularConnFlags{SSLMode: "require"}).IsEmpty())
}

func TestResolveConnectionParams_Defaults(t *testing.T) {
	t.Setenv("USER", "analyst")

	cfg, err := ResolveConnectionParams("", nil, nil, &EnvVars{}, nil)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "wid", cfg.Database)
	assert.Equal(t, "analyst", cfg.Username)
	assert.Equal(t, "prefer", cfg.SSLMode)
	assert.Equal(t, widload.AuthMethodStandard, cfg.AuthMethod)
}

func TestResolveConnectionParams_LegacyCredentialVariables(t *testing.T) {
	cfg, err := ResolveConnectionParams("", nil, nil, &EnvVars{DB_USER: "wid_user", DB_PW: "wid_pw"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "wid_user", cfg.Username)
	assert.Equal(t, "wid_pw", cfg.Password)

	cfg, err = ResolveConnectionParams("", nil, nil, &EnvVars{PGUSER: "pg", DB_USER: "legacy", PGPASSWORD: "a", DB_PW: "b"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "pg", cfg.Username, "PGUSER wins over DB_USER")
	assert.Equal(t, "a", cfg.Password, "PGPASSWORD wins over DB_PW")
}

func TestResolveConnectionParams_Precedence(t *testing.T) {
	project := &config.ConnectionConfig{Host: "yaml-host", Port: 6000, Username: "yaml-user", Database: "yaml-db", SSLMode: "disable"}

	t.Run("yaml over defaults", func(t *testing.T) {
		cfg, err := ResolveConnectionParams("", nil, nil, &EnvVars{}, project)
		require.NoError(t, err)
		assert.Equal(t, "yaml-host", cfg.Host)
		assert.Equal(t, 6000, cfg.Port)
		assert.Equal(t, "yaml-user", cfg.Username)
		assert.Equal(t, "yaml-db", cfg.Database)
		assert.Equal(t, "disable", cfg.SSLMode)
	})

	t.Run("env over yaml", func(t *testing.T) {
		env := &EnvVars{PGHOST: "env-host", PGPORT: "7000", PGDATABASE: "env-db"}
		cfg, err := ResolveConnectionParams("", nil, nil, env, project)
		require.NoError(t, err)
		assert.Equal(t, "env-host", cfg.Host)
		assert.Equal(t, 7000, cfg.Port)
		assert.Equal(t, "env-db", cfg.Database)
	})

	t.Run("flags over env", func(t *testing.T) {
		env := &EnvVars{PGHOST: "env-host", PGPORT: "7000"}
		flags := &GranularConnFlags{Host: "flag-host", Port: 8000, Database: "flag-db"}
		cfg, err := ResolveConnectionParams("", flags, nil, env, project)
		require.NoError(t, err)
		assert.Equal(t, "flag-host", cfg.Host)
		assert.Equal(t, 8000, cfg.Port)
		assert.Equal(t, "flag-db", cfg.Database)
	})

	t.Run("invalid PGPORT", func(t *testing.T) {
		_, err := ResolveConnectionParams("", nil, nil, &EnvVars{PGPORT: "x"}, nil)
		assert.True(t, errors.Is(err, widload.ErrInvalidConfig))
	})
}

func TestResolveConnectionParams_ConnectionString(t *testing.T) {
	cfg, err := ResolveConnectionParams("postgresql://u@db:5433/stats", &GranularConnFlags{Database: "wid"}, nil,
		&EnvVars{DB_PW: "pw", PGSSLMODE: "require"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "db", cfg.Host)
	assert.Equal(t, "wid", cfg.Database, "-d overrides the connection string database")
	assert.Equal(t, "pw", cfg.Password)
	assert.Equal(t, "require", cfg.SSLMode)

	cfg, err = ResolveConnectionParams("", nil, nil, &EnvVars{DATABASE_URL: "postgres://env@envhost/wid"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "envhost", cfg.Host)

	_, err = ResolveConnectionParams("postgresql://db/wid", &GranularConnFlags{Host: "other"}, nil, nil, nil)
	assert.True(t, errors.Is(err, widload.ErrInvalidConfig))

	_, err = ResolveConnectionParams("nonsense", nil, nil, nil, nil)
	assert.True(t, errors.Is(err, widload.ErrInvalidConfig))
}

func TestResolveConnectionParams_CloudAuth(t *testing.T) {
	env := &EnvVars{AWS_REGION: "eu-west-1", AZURE_TENANT_ID: "tenant", AZURE_CLIENT_SECRET: "secret"}

	cfg, err := ResolveConnectionParams("", nil, &CloudFlags{AWS: true}, env, nil)
	require.NoError(t, err)
	assert.Equal(t, widload.AuthMethodAWSIAM, cfg.AuthMethod)
	assert.Equal(t, "eu-west-1", cfg.AWSRegion)
	assert.Equal(t, "require", cfg.SSLMode)

	cfg, err = ResolveConnectionParams("", nil, &CloudFlags{Azure: true, AzureClientID: "client"}, env, nil)
	require.NoError(t, err)
	assert.Equal(t, widload.AuthMethodAzureEntraID, cfg.AuthMethod)
	assert.Equal(t, "tenant", cfg.AzureTenantID)
	assert.Equal(t, "client", cfg.AzureClientID)
	assert.Equal(t, "secret", cfg.AzureClientSecret)

	cfg, err = ResolveConnectionParams("", nil, &CloudFlags{GoogleInstance: "p:r:i"}, env, nil)
	require.NoError(t, err)
	assert.Equal(t, widload.AuthMethodGoogleIAM, cfg.AuthMethod)
	assert.Equal(t, "p:r:i", cfg.GoogleInstance)

	_, err = ResolveConnectionParams("", nil, &CloudFlags{AWS: true, GoogleInstance: "p:r:i"}, env, nil)
	assert.True(t, errors.Is(err, widload.ErrInvalidConfig))
}
