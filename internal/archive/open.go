package archive

import (
	"context"
	"fmt"

	"seqtrack/internal/archive/core"
	fsblob "seqtrack/internal/infra/blob/fs"
	memblob "seqtrack/internal/infra/blob/memory"
	s3blob "seqtrack/internal/infra/blob/s3"
)

// S3Config configures the s3 driver.
type S3Config struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PathStyle       bool   `mapstructure:"path_style"`
}

// Config selects and configures the object store behind the archive.
type Config struct {
	Driver core.Driver `mapstructure:"driver"`
	FSRoot string      `mapstructure:"fs_root"`
	S3     S3Config    `mapstructure:"s3"`
}

// OpenStore builds the object store named by cfg.Driver (fs when empty).
func OpenStore(ctx context.Context, cfg Config) (core.Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = core.DriverFilesystem
	}
	switch driver {
	case core.DriverFilesystem:
		return fsblob.New(cfg.FSRoot)
	case core.DriverMemory:
		return memblob.New(), nil
	case core.DriverS3:
		return s3blob.New(ctx, s3blob.Config{
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PathStyle:       cfg.S3.PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown archive driver %q", driver)
	}
}

// Open returns an Archive over the store named by cfg.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Archive, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(store, opts...), nil
}
