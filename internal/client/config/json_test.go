package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	t.Setenv("DOCMARK_CONFIG", "")
	dir := t.TempDir()
	path := writeTempJSON(t, dir, "cfg.json", map[string]any{
		"base_url":              "https://docmark.example/api",
		"request_timeout":       "30s",
		"health_check_interval": 2000000000,
		"database_path":         "/var/lib/docmark.db",
		"s3": map[string]any{
			"bucket": "exports",
			"region": "eu-central-1",
		},
	})

	t.Run("loads from -config", func(t *testing.T) {
		cfg := defaults()
		parseJson(cfg, []string{"-config", path})

		assert.Equal(t, "https://docmark.example/api", cfg.BaseURL)
		assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
		assert.Equal(t, 2*time.Second, cfg.HealthCheckInterval)
		assert.Equal(t, "/var/lib/docmark.db", cfg.DatabasePath)
		assert.Equal(t, "exports", cfg.S3.Bucket)
		assert.Equal(t, "eu-central-1", cfg.S3.Region)
		assert.Equal(t, "downloads", cfg.DownloadDir, "absent keys keep their value")
	})

	t.Run("loads from DOCMARK_CONFIG", func(t *testing.T) {
		t.Setenv("DOCMARK_CONFIG", path)
		cfg := defaults()
		parseJson(cfg, nil)
		assert.Equal(t, "https://docmark.example/api", cfg.BaseURL)
	})

	t.Run("no file, no changes", func(t *testing.T) {
		cfg := defaults()
		parseJson(cfg, []string{"-a", "x"})
		assert.Equal(t, defaults(), cfg)
	})

	t.Run("invalid JSON panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))
		require.Panics(t, func() { parseJson(defaults(), []string{"-c", bad}) })
	})

	t.Run("missing file panics", func(t *testing.T) {
		require.Panics(t, func() { parseJson(defaults(), []string{"-c", filepath.Join(dir, "nope.json")}) })
	})
}
