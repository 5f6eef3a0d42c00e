package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv_ProcessEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv(EnvBaseURL, "http://api.example/api")
	t.Setenv(EnvRequestTimeout, "15")
	t.Setenv(EnvHealthInterval, "1m")
	t.Setenv(EnvCredentialSecret, "s3cr3t")
	t.Setenv(EnvS3Endpoint, "http://minio:9000")

	cfg := defaults()
	parseEnv(cfg)

	assert.Equal(t, "http://api.example/api", cfg.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, time.Minute, cfg.HealthCheckInterval)
	assert.Equal(t, "s3cr3t", cfg.CredentialSecret)
	assert.Equal(t, "http://minio:9000", cfg.S3.Endpoint)
	assert.Equal(t, "docmark.db", cfg.DatabasePath)
}

func TestParseEnv_DotenvDoesNotOverrideProcessEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("DOCMARK_DB=from-dotenv.db\nDOCMARK_DOWNLOAD_DIR=dotenv-out\n"), 0o600))
	t.Setenv(EnvDatabasePath, "from-process.db")

	cfg := defaults()
	parseEnv(cfg)

	assert.Equal(t, "from-process.db", cfg.DatabasePath)
	assert.Equal(t, "dotenv-out", cfg.DownloadDir)
}

func TestParseEnv_BadDurationPanics(t *testing.T) {
	isolate(t)
	t.Setenv(EnvRequestTimeout, "soon")

	require.Panics(t, func() { parseEnv(defaults()) })
}
