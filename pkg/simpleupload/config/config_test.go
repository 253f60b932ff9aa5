package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.DatabaseType)
	assert.Equal(t, "memory", cfg.StorageType)
	assert.Equal(t, "memory", cfg.CacheType)
	assert.Equal(t, 4, cfg.CleanupWorkers)
	assert.Equal(t, 10, cfg.CleanupMaxAttempts)
	assert.Equal(t, 120*time.Second, cfg.PartURLTTL())
	assert.Equal(t, 3600*time.Second, cfg.DownloadURLTTL())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE_TYPE", "s3")
	t.Setenv("AWS_S3_BUCKET", "media-bucket")
	t.Setenv("PART_URL_TTL", "60")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "s3", cfg.StorageType)
	assert.Equal(t, "media-bucket", cfg.S3.Bucket)
	assert.Equal(t, time.Minute, cfg.PartURLTTL())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *ServerConfig) {},
		},
		{
			name:    "postgres without url",
			mutate:  func(c *ServerConfig) { c.DatabaseType = "postgres" },
			wantErr: "database_url is required",
		},
		{
			name:    "unknown database type",
			mutate:  func(c *ServerConfig) { c.DatabaseType = "sqlite" },
			wantErr: "unsupported database type",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *ServerConfig) { c.StorageType = "s3" },
			wantErr: "s3 bucket is required",
		},
		{
			name:    "unknown cache type",
			mutate:  func(c *ServerConfig) { c.CacheType = "memcached" },
			wantErr: "unsupported cache type",
		},
		{
			name:    "zero workers",
			mutate:  func(c *ServerConfig) { c.CleanupWorkers = 0 },
			wantErr: "cleanup_workers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestBuildMemoryComponents(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	repo, err := cfg.BuildRepository(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, repo)

	store, err := cfg.BuildObjectStore()
	require.NoError(t, err)
	assert.NotNil(t, store)

	cache, err := cfg.BuildURLCache()
	require.NoError(t, err)
	assert.NotNil(t, cache)
}
