package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "localhost", cfg.Qdrant.Host)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.Equal(t, "vibe_reviews", cfg.Qdrant.CollectionName)
	assert.Equal(t, 1536, cfg.Qdrant.VectorSize)
	assert.Equal(t, 30, cfg.Pipeline.ReviewsPerMapBatch)
	assert.Equal(t, 100, cfg.Pipeline.EmbedBatchSize)
	assert.Equal(t, 5, cfg.Pipeline.MinReviewTokens)
	assert.Equal(t, 15, cfg.Pipeline.MaxReviewsPerLocation)
	assert.Equal(t, 2, cfg.Scrape.MaxResultsPerRun)

	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid defaults",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "bad server port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "bad shutdown timeout",
			mutate:  func(c *Config) { c.Server.ShutdownTimeout = 0 },
			wantErr: "shutdown timeout",
		},
		{
			name:    "missing store path",
			mutate:  func(c *Config) { c.Store.Path = "" },
			wantErr: "store path",
		},
		{
			name:    "missing qdrant host",
			mutate:  func(c *Config) { c.Qdrant.Host = "" },
			wantErr: "qdrant host",
		},
		{
			name:    "zero vector size",
			mutate:  func(c *Config) { c.Qdrant.VectorSize = 0 },
			wantErr: "vector size",
		},
		{
			name:    "zero map batch",
			mutate:  func(c *Config) { c.Pipeline.ReviewsPerMapBatch = 0 },
			wantErr: "map batch",
		},
		{
			name:    "zero embed batch",
			mutate:  func(c *Config) { c.Pipeline.EmbedBatchSize = 0 },
			wantErr: "embed batch",
		},
		{
			name:    "negative review tokens",
			mutate:  func(c *Config) { c.Pipeline.MinReviewTokens = -1 },
			wantErr: "review tokens",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadWithFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  http_port: 9191
qdrant:
  collection_name: test_reviews
  vector_size: 384
pipeline:
  reviews_per_map_batch: 10
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "test_reviews", cfg.Qdrant.CollectionName)
	assert.Equal(t, 384, cfg.Qdrant.VectorSize)
	assert.Equal(t, 10, cfg.Pipeline.ReviewsPerMapBatch)
	// Untouched fields fall back to defaults.
	assert.Equal(t, 100, cfg.Pipeline.EmbedBatchSize)
}

func TestLoadWithFileEnvOverride(t *testing.T) {
	t.Setenv("VIBENAVD_SERVER_HTTP_PORT", "7777")
	t.Setenv("VIBENAVD_QDRANT_HOST", "qdrant.internal")

	cfg, err := LoadWithFile("")
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "qdrant.internal", cfg.Qdrant.Host)
}

func TestLoadWithFileMissingFileIsIgnored(t *testing.T) {
	cfg, err := LoadWithFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}
