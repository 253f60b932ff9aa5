// Package config loads server configuration from the environment and builds
// the upload service components from it.
package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clipstream/simple-upload/pkg/simpleupload"
	repomemory "github.com/clipstream/simple-upload/pkg/simpleupload/repo/memory"
	repopg "github.com/clipstream/simple-upload/pkg/simpleupload/repo/postgres"
	storagememory "github.com/clipstream/simple-upload/pkg/simpleupload/storage/memory"
	s3storage "github.com/clipstream/simple-upload/pkg/simpleupload/storage/s3"
	cachememory "github.com/clipstream/simple-upload/pkg/simpleupload/urlcache/memory"
	cacheredis "github.com/clipstream/simple-upload/pkg/simpleupload/urlcache/redis"
)

// ServerConfig is the environment-driven configuration for the upload server.
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`

	DatabaseType string `env:"DATABASE_TYPE" env-default:"memory"`
	DatabaseURL  string `env:"DATABASE_URL"`
	DBSchema     string `env:"UPLOAD_DB_SCHEMA" env-default:"upload"`

	StorageType string `env:"STORAGE_TYPE" env-default:"memory"`
	S3          S3Config

	CacheType string `env:"CACHE_TYPE" env-default:"memory"`
	Redis     RedisConfig

	CleanupWorkers     int `env:"CLEANUP_WORKERS" env-default:"4"`
	CleanupMaxAttempts int `env:"CLEANUP_MAX_ATTEMPTS" env-default:"10"`

	PartURLTTLSeconds     int `env:"PART_URL_TTL" env-default:"120"`
	DownloadURLTTLSeconds int `env:"DOWNLOAD_URL_TTL" env-default:"3600"`
}

// S3Config carries S3/MinIO connection settings.
type S3Config struct {
	Region                 string `env:"AWS_S3_REGION" env-default:"us-east-1"`
	Bucket                 string `env:"AWS_S3_BUCKET"`
	AccessKeyID            string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey        string `env:"AWS_SECRET_ACCESS_KEY"`
	Endpoint               string `env:"AWS_S3_ENDPOINT"`
	UsePathStyle           bool   `env:"AWS_S3_USE_PATH_STYLE" env-default:"false"`
	CreateBucketIfNotExist bool   `env:"AWS_S3_CREATE_BUCKET" env-default:"false"`
}

// RedisConfig carries Redis connection settings for the URL cache.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

// Load reads configuration from the environment and validates it.
func Load() (*ServerConfig, error) {
	var cfg ServerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for invalid combinations.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DatabaseType {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("database_url is required when using postgres")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}

	switch c.StorageType {
	case "memory":
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("s3 bucket is required when using s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.StorageType)
	}

	switch c.CacheType {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported cache type: %s", c.CacheType)
	}

	if c.CleanupWorkers < 1 {
		return errors.New("cleanup_workers must be at least 1")
	}
	if c.CleanupMaxAttempts < 1 {
		return errors.New("cleanup_max_attempts must be at least 1")
	}

	return nil
}

// PartURLTTL returns the presigned part URL lifetime.
func (c *ServerConfig) PartURLTTL() time.Duration {
	return time.Duration(c.PartURLTTLSeconds) * time.Second
}

// DownloadURLTTL returns the presigned download URL lifetime.
func (c *ServerConfig) DownloadURLTTL() time.Duration {
	return time.Duration(c.DownloadURLTTLSeconds) * time.Second
}

// BuildRepository creates the upload record repository from the
// configuration.
func (c *ServerConfig) BuildRepository(ctx context.Context) (simpleupload.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return repomemory.New(), nil
	case "postgres":
		cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		schema := c.DBSchema
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if schema == "" {
				return nil
			}
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", schema))
			return err
		}
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("database ping failed: %w", err)
		}
		return repopg.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// BuildObjectStore creates the object store from the configuration.
func (c *ServerConfig) BuildObjectStore() (simpleupload.ObjectStore, error) {
	switch c.StorageType {
	case "memory":
		return storagememory.New(), nil
	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 c.S3.Bucket,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			CreateBucketIfNotExist: c.S3.CreateBucketIfNotExist,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.StorageType)
	}
}

// BuildURLCache creates the presigned URL cache from the configuration.
func (c *ServerConfig) BuildURLCache() (simpleupload.URLCache, error) {
	switch c.CacheType {
	case "memory":
		return cachememory.New(), nil
	case "redis":
		return cacheredis.New(cacheredis.Config{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", c.CacheType)
	}
}
