// Package config loads runtime configuration for the docmark CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment: DOCMARK_* variables, with a .env file in the working
//     directory loaded through godotenv.
//  3. Optional JSON file selected via -c/-config or DOCMARK_CONFIG.
//  4. Command-line flags, which override everything else.
//
// Supported flags
//
//	-a string   API base URL (default http://localhost:8000/api)
//	-t int      request timeout in seconds (default 10)
//	-d string   local SQLite database path
//	-o string   download directory
//	-l string   log level
//
// # JSON schema
//
//	{
//	  "base_url": "https://docmark.example.com/api",
//	  "request_timeout": "10s",
//	  "health_check_interval": "5s",
//	  "database_path": "/var/lib/docmark/client.db",
//	  "download_dir": "downloads",
//	  "credential_secret": "change-me",
//	  "log_level": "debug",
//	  "s3": {"bucket": "exports", "region": "eu-central-1", "prefix": "docmark/"}
//	}
//
// Malformed input at any layer panics; cmd/cli lets that crash the process
// before anything else starts.
package config
