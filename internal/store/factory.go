package store

import (
	"context"
	"fmt"

	"modq/internal/config"
	"modq/internal/database"
	"modq/internal/modq"
)

// NewStoreFromConfig opens the store named by cfg.Type.
func NewStoreFromConfig(ctx context.Context, cfg config.StoreConfig, clock modq.Clock) (modq.Store, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "filesystem":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("dir required for filesystem store")
		}
		return NewFileSystemStore(cfg.Dir)
	case "sqlite", "":
		if cfg.Path == "" {
			return nil, fmt.Errorf("path required for sqlite store")
		}
		return database.NewSQLiteStore(cfg.Path, clock)
	case "redis":
		if cfg.URL == "" {
			return nil, fmt.Errorf("url required for redis store")
		}
		prefix := cfg.KeyPrefix
		if prefix == "" {
			prefix = DefaultRedisKeyPrefix
		}
		return NewRedisStoreFromURL(cfg.URL, prefix)
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("bucket required for s3 store")
		}
		return NewS3Store(ctx, S3Options{
			Bucket:    cfg.Bucket,
			Prefix:    cfg.Prefix,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		})
	default:
		return nil, fmt.Errorf("unknown store type: %q", cfg.Type)
	}
}

// WithEncryption wraps s when an encryptor is configured and returns s unchanged otherwise.
func WithEncryption(s modq.Store, encryptor modq.Encryptor, dec modq.DecryptionContext) modq.Store {
	if encryptor == nil {
		return s
	}
	return NewEncryptedStore(s, encryptor, dec)
}
