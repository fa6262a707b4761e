package config

import (
	"strings"
	"time"
)

// DevSecret is the token secret used when none is configured. It is only
// fit for single-host experiments; InitConfig writes a random one.
const DevSecret = "dittodir-insecure-development-secret"

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Store-specific defaults are handled by the store factories
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyTokenDefaults(&cfg.Token)
	applyDirectoryDefaults(&cfg.Directory)
	applyFilesDefaults(&cfg.Files)
	applyUsersDefaults(&cfg.Users)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 64 << 20 // 64MiB
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
	if cfg.RateLimit.RequestsPerSecond > 0 && cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = cfg.RateLimit.RequestsPerSecond * 2
	}
}

func applyTokenDefaults(cfg *TokenConfig) {
	if cfg.Secret == "" {
		cfg.Secret = DevSecret
	}
	if cfg.Window == 0 {
		cfg.Window = 10 * time.Second
	}
}

func applyDirectoryDefaults(cfg *DirectoryConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if len(cfg.FilesBackends) == 0 {
		cfg.FilesBackends = []string{"http://localhost:8081"}
	}
	if cfg.UsersURL == "" {
		cfg.UsersURL = "http://localhost:8082"
	}

	if cfg.Replication.Replicas == 0 {
		cfg.Replication.Replicas = 2
	}
	if cfg.Replication.Candidates == 0 {
		cfg.Replication.Candidates = 3
	}

	if cfg.UserCache.TTL == 0 {
		cfg.UserCache.TTL = 3 * time.Second
	}
	if cfg.UserCache.SweepInterval == 0 {
		cfg.UserCache.SweepInterval = 30 * time.Second
	}

	if cfg.Cleanup.Workers == 0 {
		cfg.Cleanup.Workers = 4
	}
	if cfg.Cleanup.QueueSize == 0 {
		cfg.Cleanup.QueueSize = 1024
	}
	if cfg.Cleanup.JobTimeout == 0 {
		cfg.Cleanup.JobTimeout = 30 * time.Second
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.MaxBackoff == 0 {
		cfg.Retry.MaxBackoff = 200 * time.Millisecond
	}
	if cfg.Retry.Timeout == 0 {
		cfg.Retry.Timeout = 5 * time.Second
	}
}

func applyFilesDefaults(cfg *FilesConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8081
	}
	applyStoreDefaults(&cfg.Store)
}

// applyStoreDefaults selects the memory store and fills every type's
// options so generated config files document them.
func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}

	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}

	if _, ok := cfg.Filesystem["path"]; !ok {
		cfg.Filesystem["path"] = "/tmp/dittodir-files"
	}
	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = "/tmp/dittodir-badger"
	}
}

func applyUsersDefaults(cfg *UsersConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8082
	}
	if cfg.DirectoryURL == "" {
		cfg.DirectoryURL = "http://localhost:8080"
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 10
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
