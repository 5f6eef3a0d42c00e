package config

import "time"

// Config holds runtime settings for the docmark CLI.
type Config struct {
	// BaseURL is the API root every gateway path is appended to.
	BaseURL        string
	RequestTimeout time.Duration
	// HealthCheckInterval is how often the CLI probes GET /health.
	HealthCheckInterval time.Duration
	DatabasePath        string
	DownloadDir         string
	// CredentialSecret, when set, seals the stored token and user snapshot.
	CredentialSecret string
	LogLevel         string
	S3               S3Config
}

// S3Config selects the bucket used by the "download -s3" export. An empty
// Bucket disables the S3 sink.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	Prefix    string
	AccessKey string
	SecretKey string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.BaseURL = "http://localhost:8000/api"
	c.RequestTimeout = 10 * time.Second
	c.HealthCheckInterval = 5 * time.Second
	c.DatabasePath = "docmark.db"
	c.DownloadDir = "downloads"
	c.LogLevel = "info"
	c.S3.Region = "us-east-1"
}

// LoadConfig builds a Config from defaults, the environment (including a
// .env file), an optional JSON file and finally command-line flags. Later
// sources override earlier ones.
func LoadConfig() *Config {
	return load(osArgs())
}

func load(args []string) *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg, args)
	parseFlags(cfg, args)
	return cfg
}
