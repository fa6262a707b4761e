package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete DittoDir configuration.
//
// One file configures every process of a deployment: the Directory, the
// Files backends and the Users backend each read their own section plus the
// shared logging, server and token settings.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DITTODIR_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Store Configuration Pattern:
// The Files backend store is selected by files.store.type. Each store type
// has its own options map decoded by its factory, and only the map matching
// the selected type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains settings shared by every process
	Server ServerConfig `mapstructure:"server"`

	// Token configures the short-lived tokens exchanged between services
	Token TokenConfig `mapstructure:"token"`

	// Directory configures the Directory service
	Directory DirectoryConfig `mapstructure:"directory"`

	// Files configures a Files backend
	Files FilesConfig `mapstructure:"files"`

	// Users configures the Users backend
	Users UsersConfig `mapstructure:"users"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains process-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// MaxBodyBytes bounds uploaded file content
	MaxBodyBytes int64 `mapstructure:"max_body_bytes" validate:"gt=0"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`

	// RateLimit throttles inbound REST requests per client address
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// MetricsConfig configures Prometheus metrics collection.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
}

// RateLimitConfig configures the per-client token bucket. A zero rate
// disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond uint `mapstructure:"requests_per_second"`
	Burst             uint `mapstructure:"burst"`
}

// TokenConfig configures token signing. Every process of a deployment must
// share the same secret.
type TokenConfig struct {
	Secret string        `mapstructure:"secret" validate:"required,min=16"`
	Window time.Duration `mapstructure:"window" validate:"required,gt=0"`
}

// DirectoryConfig configures the Directory service.
type DirectoryConfig struct {
	Port int `mapstructure:"port" validate:"min=1,max=65535"`

	// FilesBackends lists the base URLs of the Files backends, in
	// placement preference order
	FilesBackends []string `mapstructure:"files_backends" validate:"min=1,dive,url"`

	// UsersURL is the base URL of the Users backend
	UsersURL string `mapstructure:"users_url" validate:"required,url"`

	Replication ReplicationConfig `mapstructure:"replication"`
	UserCache   UserCacheConfig   `mapstructure:"user_cache"`
	Cleanup     CleanupConfig     `mapstructure:"cleanup"`
	Retry       RetryConfig       `mapstructure:"retry"`
}

// ReplicationConfig controls replica placement.
type ReplicationConfig struct {
	// Replicas is the number of copies written per file
	Replicas int `mapstructure:"replicas" validate:"min=1"`

	// Candidates is the number of least-loaded backends offered per write
	Candidates int `mapstructure:"candidates" validate:"min=1"`
}

// UserCacheConfig controls credential caching.
type UserCacheConfig struct {
	TTL           time.Duration `mapstructure:"ttl" validate:"gt=0"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
}

// CleanupConfig sizes the background replica cleanup pool.
type CleanupConfig struct {
	Workers    int           `mapstructure:"workers" validate:"min=1"`
	QueueSize  int           `mapstructure:"queue_size" validate:"min=1"`
	JobTimeout time.Duration `mapstructure:"job_timeout" validate:"gt=0"`
}

// RetryConfig bounds the retries of backend calls.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff" validate:"gt=0"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// FilesConfig configures one Files backend.
type FilesConfig struct {
	Port  int         `mapstructure:"port" validate:"min=1,max=65535"`
	Store StoreConfig `mapstructure:"store"`
}

// StoreConfig specifies the blob store behind a Files backend.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type StoreConfig struct {
	// Type specifies which blob store implementation to use
	// Valid values: memory, filesystem, s3, badger
	Type string `mapstructure:"type" validate:"required,oneof=memory filesystem s3 badger"`

	// Memory has no options; the map is accepted for symmetry
	Memory map[string]any `mapstructure:"memory"`

	// Filesystem contains filesystem-specific configuration
	// Only used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`
}

// UsersConfig configures the Users backend.
type UsersConfig struct {
	Port int `mapstructure:"port" validate:"min=1,max=65535"`

	// DirectoryURL is where account deletions cascade to. Empty disables
	// the cascade.
	DirectoryURL string `mapstructure:"directory_url" validate:"omitempty,url"`

	// BcryptCost is the password hashing cost
	BcryptCost int `mapstructure:"bcrypt_cost" validate:"min=4,max=31"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: DITTODIR_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DITTODIR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// bindEnvKeys makes every scalar key overridable from the environment even
// when the config file does not mention it. AutomaticEnv alone only covers
// keys viper already knows about.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"logging.level", "logging.format", "logging.output",
		"server.shutdown_timeout", "server.max_body_bytes",
		"server.metrics.enabled", "server.metrics.port",
		"server.rate_limit.requests_per_second", "server.rate_limit.burst",
		"token.secret", "token.window",
		"directory.port", "directory.users_url", "directory.files_backends",
		"directory.replication.replicas", "directory.replication.candidates",
		"directory.user_cache.ttl", "directory.user_cache.sweep_interval",
		"directory.cleanup.workers", "directory.cleanup.queue_size", "directory.cleanup.job_timeout",
		"directory.retry.max_attempts", "directory.retry.max_backoff", "directory.retry.timeout",
		"files.port", "files.store.type",
		"users.port", "users.directory_url", "users.bcrypt_cost",
	} {
		_ = v.BindEnv(key)
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittodir")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittodir")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
