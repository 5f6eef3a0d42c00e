package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables understood by parseEnv.
const (
	EnvBaseURL          = "DOCMARK_BASE_URL"
	EnvRequestTimeout   = "DOCMARK_REQUEST_TIMEOUT"
	EnvHealthInterval   = "DOCMARK_HEALTH_INTERVAL"
	EnvDatabasePath     = "DOCMARK_DB"
	EnvDownloadDir      = "DOCMARK_DOWNLOAD_DIR"
	EnvCredentialSecret = "DOCMARK_SECRET"
	EnvLogLevel         = "DOCMARK_LOG_LEVEL"
	EnvS3Bucket         = "DOCMARK_S3_BUCKET"
	EnvS3Region         = "DOCMARK_S3_REGION"
	EnvS3Endpoint       = "DOCMARK_S3_ENDPOINT"
	EnvS3Prefix         = "DOCMARK_S3_PREFIX"
	EnvS3AccessKey      = "DOCMARK_S3_ACCESS_KEY"
	EnvS3SecretKey      = "DOCMARK_S3_SECRET_KEY"
)

var dotenvFile = ".env"

// parseEnv overlays cfg with DOCMARK_* variables. A .env file in the working
// directory is loaded first; it never overrides variables already set in the
// process environment. Durations accept time.ParseDuration syntax or plain
// seconds. Malformed values panic, like malformed flags do.
func parseEnv(cfg *Config) {
	if err := godotenv.Load(dotenvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	setString(&cfg.BaseURL, EnvBaseURL)
	setDuration(&cfg.RequestTimeout, EnvRequestTimeout)
	setDuration(&cfg.HealthCheckInterval, EnvHealthInterval)
	setString(&cfg.DatabasePath, EnvDatabasePath)
	setString(&cfg.DownloadDir, EnvDownloadDir)
	setString(&cfg.CredentialSecret, EnvCredentialSecret)
	setString(&cfg.LogLevel, EnvLogLevel)
	setString(&cfg.S3.Bucket, EnvS3Bucket)
	setString(&cfg.S3.Region, EnvS3Region)
	setString(&cfg.S3.Endpoint, EnvS3Endpoint)
	setString(&cfg.S3.Prefix, EnvS3Prefix)
	setString(&cfg.S3.AccessKey, EnvS3AccessKey)
	setString(&cfg.S3.SecretKey, EnvS3SecretKey)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	*dst = d
}
