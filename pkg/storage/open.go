package storage

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"github.com/greenbasket/storefront/internal/config"
	"github.com/greenbasket/storefront/internal/errors"
)

// Open builds the backend selected by cfg. A non-empty cfg.Prefix wraps it
// with WithPrefix; closing the returned store closes the backend.
func Open(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	var (
		s   Storage
		err error
	)
	switch cfg.Driver {
	case config.DriverMemory:
		s = NewMemoryStore()
	case config.DriverFile, "":
		dir := cfg.Dir
		if dir == "" {
			dir = config.DefaultStorageDir
		}
		s, err = NewFileStore(dir)
	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err = client.Ping(ctx).Err(); err != nil {
			client.Close()
			break
		}
		s = NewRedisStore(client)
	case config.DriverS3:
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.S3.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.S3.Region))
		}
		awsCfg, loadErr := awsconfig.LoadDefaultConfig(ctx, opts...)
		if loadErr != nil {
			err = loadErr
			break
		}
		s = NewS3Store(s3.NewFromConfig(awsCfg), cfg.S3.Bucket, "storefront/")
	default:
		return nil, errors.New("E121").WithDetail("unknown storage driver " + cfg.Driver)
	}
	if err != nil {
		return nil, errors.New("E011").WithDetail(cfg.Driver + " storage: " + err.Error()).Wrap(err)
	}
	if cfg.Prefix != "" {
		return &prefixed{inner: s, prefix: cfg.Prefix, owns: true}, nil
	}
	return s, nil
}
