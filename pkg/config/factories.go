package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/dittodir/internal/logger"
	"github.com/marmos91/dittodir/pkg/cleanup"
	"github.com/marmos91/dittodir/pkg/client"
	"github.com/marmos91/dittodir/pkg/store/blob"
	blobBadger "github.com/marmos91/dittodir/pkg/store/blob/badger"
	blobFs "github.com/marmos91/dittodir/pkg/store/blob/fs"
	blobMemory "github.com/marmos91/dittodir/pkg/store/blob/memory"
	blobS3 "github.com/marmos91/dittodir/pkg/store/blob/s3"
	"github.com/marmos91/dittodir/pkg/token"
	"github.com/mitchellh/mapstructure"
)

// CreateBlobStore creates the blob store behind a Files backend.
//
// The Type field selects the implementation; the matching options map is
// decoded into that store's configuration. A non-nil metrics instruments
// the returned store.
//
// Supported types:
//   - "memory": pkg/store/blob/memory (ephemeral)
//   - "filesystem": pkg/store/blob/fs (one file per blob)
//   - "s3": pkg/store/blob/s3 (Amazon S3 or compatible storage)
//   - "badger": pkg/store/blob/badger (embedded BadgerDB)
func CreateBlobStore(ctx context.Context, cfg *StoreConfig, metrics blob.Metrics) (blob.Store, error) {
	var (
		store blob.Store
		err   error
	)
	switch cfg.Type {
	case "memory":
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		store = blobMemory.New()
	case "filesystem":
		store, err = createFilesystemStore(ctx, cfg.Filesystem)
	case "s3":
		store, err = createS3Store(ctx, cfg.S3)
	case "badger":
		store, err = createBadgerStore(ctx, cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown blob store type: %q (supported: memory, filesystem, s3, badger)", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return blob.Instrument(store, cfg.Type, metrics), nil
}

func createFilesystemStore(ctx context.Context, options map[string]any) (blob.Store, error) {
	type FilesystemStoreConfig struct {
		Path string `mapstructure:"path"`
	}

	var storeCfg FilesystemStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem store config: %w", err)
	}
	if storeCfg.Path == "" {
		return nil, fmt.Errorf("filesystem store: path is required")
	}

	store, err := blobFs.New(ctx, storeCfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem store: %w", err)
	}
	logger.Info("Filesystem blob store initialized: path=%s", storeCfg.Path)
	return store, nil
}

func createS3Store(ctx context.Context, options map[string]any) (blob.Store, error) {
	type S3StoreConfig struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var storeCfg S3StoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 store config: %w", err)
	}
	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 store: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 store: region is required")
	}

	configOptions := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(storeCfg.Region),
	}

	// Static credentials if provided, otherwise the default chain.
	if storeCfg.AccessKeyID != "" && storeCfg.SecretAccessKey != "" {
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(storeCfg.AccessKeyID, storeCfg.SecretAccessKey, ""),
		))
	}

	maxRetries := storeCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// MinIO and Localstack need a custom endpoint and path-style addressing.
		if storeCfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(storeCfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	store, err := blobS3.New(ctx, blobS3.Config{
		Client:    s3Client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 store: %w", err)
	}

	logger.Info("S3 blob store initialized: bucket=%s, region=%s, prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)
	return store, nil
}

func createBadgerStore(ctx context.Context, options map[string]any) (blob.Store, error) {
	type BadgerStoreConfig struct {
		DBPath           string `mapstructure:"db_path"`
		InMemory         bool   `mapstructure:"in_memory"`
		BlockCacheSizeMB int64  `mapstructure:"block_cache_mb"`
	}

	var storeCfg BadgerStoreConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &storeCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(options); err != nil {
		return nil, fmt.Errorf("failed to decode badger store config: %w", err)
	}
	if storeCfg.DBPath == "" && !storeCfg.InMemory {
		return nil, fmt.Errorf("badger store: db_path is required")
	}

	store, err := blobBadger.New(ctx, blobBadger.Config{
		DBPath:           storeCfg.DBPath,
		InMemory:         storeCfg.InMemory,
		BlockCacheSizeMB: storeCfg.BlockCacheSizeMB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger store: %w", err)
	}
	logger.Info("Badger blob store initialized: path=%s, in_memory=%v", storeCfg.DBPath, storeCfg.InMemory)
	return store, nil
}

// CreateTokenSigner builds the signer shared by every service.
func CreateTokenSigner(cfg *TokenConfig) (*token.Signer, error) {
	if cfg.Secret == DevSecret {
		logger.Warn("Using the built-in development token secret; set token.secret for any shared deployment")
	}
	signer, err := token.New(cfg.Secret, cfg.Window)
	if err != nil {
		return nil, fmt.Errorf("failed to create token signer: %w", err)
	}
	return signer, nil
}

// RetryPolicy converts the retry section into a client.Policy.
func RetryPolicy(cfg *RetryConfig) client.Policy {
	return client.Policy{
		MaxAttempts: cfg.MaxAttempts,
		MaxBackoff:  cfg.MaxBackoff,
		Timeout:     cfg.Timeout,
	}
}

// CleanupPoolConfig converts the cleanup section into a cleanup.Config.
func CleanupPoolConfig(cfg *CleanupConfig) cleanup.Config {
	return cleanup.Config{
		Workers:    cfg.Workers,
		QueueSize:  cfg.QueueSize,
		JobTimeout: cfg.JobTimeout,
	}
}
