package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/docmark/internal/flagx"
	"github.com/dmitrijs2005/docmark/internal/timex"
)

// JsonConfig is a DTO used only for JSON unmarshalling. Durations use
// timex.Duration so the file may say "10s" or give integer nanoseconds.
// Zero values leave the current setting untouched.
type JsonConfig struct {
	BaseURL             string         `json:"base_url"`
	RequestTimeout      timex.Duration `json:"request_timeout"`
	HealthCheckInterval timex.Duration `json:"health_check_interval"`
	DatabasePath        string         `json:"database_path"`
	DownloadDir         string         `json:"download_dir"`
	CredentialSecret    string         `json:"credential_secret"`
	LogLevel            string         `json:"log_level"`
	S3                  struct {
		Bucket    string `json:"bucket"`
		Region    string `json:"region"`
		Endpoint  string `json:"endpoint"`
		Prefix    string `json:"prefix"`
		AccessKey string `json:"access_key"`
		SecretKey string `json:"secret_key"`
	} `json:"s3"`
}

// parseJson overlays cfg with the JSON file named by -c/-config (or
// DOCMARK_CONFIG). No file means no changes. Read or decode errors panic.
func parseJson(cfg *Config, args []string) {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	overlay(&cfg.BaseURL, jc.BaseURL)
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.HealthCheckInterval.Duration > 0 {
		cfg.HealthCheckInterval = jc.HealthCheckInterval.Duration
	}
	overlay(&cfg.DatabasePath, jc.DatabasePath)
	overlay(&cfg.DownloadDir, jc.DownloadDir)
	overlay(&cfg.CredentialSecret, jc.CredentialSecret)
	overlay(&cfg.LogLevel, jc.LogLevel)
	overlay(&cfg.S3.Bucket, jc.S3.Bucket)
	overlay(&cfg.S3.Region, jc.S3.Region)
	overlay(&cfg.S3.Endpoint, jc.S3.Endpoint)
	overlay(&cfg.S3.Prefix, jc.S3.Prefix)
	overlay(&cfg.S3.AccessKey, jc.S3.AccessKey)
	overlay(&cfg.S3.SecretKey, jc.S3.SecretKey)
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func osArgs() []string {
	if len(os.Args) < 2 {
		return nil
	}
	return os.Args[1:]
}
