package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	t.Chdir(dir)
}

func TestLoad_Defaults(t *testing.T) {
	writeConfig(t, "{}\n")

	cfg, err := Load("1.2.3")
	require.NoError(t, err)

	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, "8488", cfg.Port)
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "migrations", cfg.Database.MigrationsPath)
	assert.Empty(t, cfg.Redis.Host)
	assert.Equal(t, 30*time.Second, cfg.Sandbox.Timeout())
}

func TestLoad_YAMLValues(t *testing.T) {
	writeConfig(t, `
port: "9000"
database:
  host: "db.internal"
  database: "shelfmark"
sandbox:
  timeout_seconds: 5
`)

	cfg, err := Load("dev")
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5*time.Second, cfg.Sandbox.Timeout())
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	writeConfig(t, "port: \"9000\"\n")
	t.Setenv("PORT", "7777")
	t.Setenv("SANDBOX_TIMEOUT_SECONDS", "10")

	cfg, err := Load("dev")
	require.NoError(t, err)

	assert.Equal(t, "7777", cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.Sandbox.Timeout())
}

func TestLoad_RejectsNonPositiveTimeout(t *testing.T) {
	writeConfig(t, "sandbox:\n  timeout_seconds: -1\n")

	_, err := Load("dev")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout_seconds")
}

func TestConnectionString(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "shelfmark",
		Password: "secret",
		Database: "shelfmark_engine",
		SSLMode:  "disable",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=shelfmark password=secret dbname=shelfmark_engine sslmode=disable",
		cfg.ConnectionString())
}
