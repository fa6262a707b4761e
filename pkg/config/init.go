package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// InitConfig writes a default configuration file to the default location.
//
// Returns the path of the written file. Unless force is set, an existing
// file is left untouched and an error is returned.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file to path, creating
// parent directories as needed. The generated file carries a random token
// secret.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	cfg := GetDefaultConfig()
	secret, err := randomSecret()
	if err != nil {
		return err
	}
	cfg.Token.Secret = secret

	content, err := generateYAMLWithComments(cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	// The file holds the token secret.
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

const configHeader = `# DittoDir Configuration File
#
# Every process of a deployment (directory, files, users) reads this file.
# Values can be overridden with DITTODIR_* environment variables, for
# example DITTODIR_LOGGING_LEVEL=DEBUG or DITTODIR_FILES_PORT=9081.

`

// generateYAMLWithComments renders cfg as a commented YAML document.
func generateYAMLWithComments(cfg *Config) (string, error) {
	doc := mapping(
		field("logging", "Log output: level (DEBUG, INFO, WARN, ERROR), format (text, json), output (stdout, stderr or a file path)", mapping(
			field("level", "", scalar(cfg.Logging.Level)),
			field("format", "", scalar(cfg.Logging.Format)),
			field("output", "", scalar(cfg.Logging.Output)),
		)),
		field("server", "Settings shared by every process", mapping(
			field("shutdown_timeout", "Maximum time to wait for graceful shutdown", scalar(cfg.Server.ShutdownTimeout)),
			field("max_body_bytes", "Largest accepted file upload", scalar(cfg.Server.MaxBodyBytes)),
			field("metrics", "Prometheus endpoint (/metrics)", mapping(
				field("enabled", "", scalar(cfg.Server.Metrics.Enabled)),
				field("port", "", scalar(cfg.Server.Metrics.Port)),
			)),
			field("rate_limit", "Per-client request rate limit; 0 disables it", mapping(
				field("requests_per_second", "", scalar(cfg.Server.RateLimit.RequestsPerSecond)),
				field("burst", "", scalar(cfg.Server.RateLimit.Burst)),
			)),
		)),
		field("token", "Service-to-service tokens. The secret must be identical on every process.", mapping(
			field("secret", "", scalar(cfg.Token.Secret)),
			field("window", "Validity window of a token", scalar(cfg.Token.Window)),
		)),
		field("directory", "Directory service", mapping(
			field("port", "", scalar(cfg.Directory.Port)),
			field("files_backends", "Files backend base URLs, in placement preference order", list(cfg.Directory.FilesBackends)),
			field("users_url", "Users backend base URL", scalar(cfg.Directory.UsersURL)),
			field("replication", "Copies per file, and least-loaded backends offered per write", mapping(
				field("replicas", "", scalar(cfg.Directory.Replication.Replicas)),
				field("candidates", "", scalar(cfg.Directory.Replication.Candidates)),
			)),
			field("user_cache", "How long credential checks are reused", mapping(
				field("ttl", "", scalar(cfg.Directory.UserCache.TTL)),
				field("sweep_interval", "", scalar(cfg.Directory.UserCache.SweepInterval)),
			)),
			field("cleanup", "Background replica deletion", mapping(
				field("workers", "", scalar(cfg.Directory.Cleanup.Workers)),
				field("queue_size", "", scalar(cfg.Directory.Cleanup.QueueSize)),
				field("job_timeout", "", scalar(cfg.Directory.Cleanup.JobTimeout)),
			)),
			field("retry", "Retries of calls to the Files and Users backends", mapping(
				field("max_attempts", "", scalar(cfg.Directory.Retry.MaxAttempts)),
				field("max_backoff", "", scalar(cfg.Directory.Retry.MaxBackoff)),
				field("timeout", "", scalar(cfg.Directory.Retry.Timeout)),
			)),
		)),
		field("files", "Files backend", mapping(
			field("port", "", scalar(cfg.Files.Port)),
			field("store", "Blob store: memory, filesystem, s3 or badger. Only the section matching type is used.\n"+
				"s3 options: region, bucket, key_prefix, endpoint, access_key_id, secret_access_key, max_retries", mapping(
				field("type", "", scalar(cfg.Files.Store.Type)),
				field("filesystem", "", scalar(cfg.Files.Store.Filesystem)),
				field("badger", "", scalar(cfg.Files.Store.Badger)),
			)),
		)),
		field("users", "Users backend", mapping(
			field("port", "", scalar(cfg.Users.Port)),
			field("directory_url", "Directory to notify when an account is deleted; empty disables it", scalar(cfg.Users.DirectoryURL)),
			field("bcrypt_cost", "", scalar(cfg.Users.BcryptCost)),
		)),
	)

	out, err := yaml.Marshal(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{doc}})
	if err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	return configHeader + string(out), nil
}

type entry struct {
	key     string
	comment string
	value   *yaml.Node
}

func field(key, comment string, value *yaml.Node) entry {
	return entry{key: key, comment: comment, value: value}
}

func mapping(entries ...entry) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range entries {
		k := &yaml.Node{Kind: yaml.ScalarNode, Value: e.key, HeadComment: e.comment}
		n.Content = append(n.Content, k, e.value)
	}
	return n
}

func list(values []string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.SequenceNode}
	for _, v := range values {
		n.Content = append(n.Content, scalar(v))
	}
	return n
}

// scalar encodes v, rendering durations in their string form so viper
// reads them back.
func scalar(v any) *yaml.Node {
	if d, ok := v.(time.Duration); ok {
		v = d.String()
	}
	n := &yaml.Node{}
	if err := n.Encode(v); err != nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Value: fmt.Sprint(v)}
	}
	return n
}
