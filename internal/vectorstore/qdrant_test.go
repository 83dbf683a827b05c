package vectorstore

import (
	"errors"
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func validConfig() QdrantConfig {
	return QdrantConfig{
		Host:           "localhost",
		Port:           6334,
		CollectionName: "vibe_reviews",
		VectorSize:     1536,
	}
}

func TestQdrantConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*QdrantConfig)
		wantErr bool
	}{
		{
			name:   "valid config",
			mutate: func(c *QdrantConfig) {},
		},
		{
			name:    "missing host",
			mutate:  func(c *QdrantConfig) { c.Host = "" },
			wantErr: true,
		},
		{
			name:    "zero port",
			mutate:  func(c *QdrantConfig) { c.Port = 0 },
			wantErr: true,
		},
		{
			name:    "negative port",
			mutate:  func(c *QdrantConfig) { c.Port = -1 },
			wantErr: true,
		},
		{
			name:    "port out of range",
			mutate:  func(c *QdrantConfig) { c.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "missing collection name",
			mutate:  func(c *QdrantConfig) { c.CollectionName = "" },
			wantErr: true,
		},
		{
			name:    "zero vector size",
			mutate:  func(c *QdrantConfig) { c.VectorSize = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestQdrantConfigApplyDefaults(t *testing.T) {
	cfg := QdrantConfig{}
	cfg.ApplyDefaults()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 6334, cfg.Port)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryBackoff)
	assert.Equal(t, 50*1024*1024, cfg.MaxMessageSize)
	assert.Equal(t, 5, cfg.CircuitBreakerThreshold)
	assert.Equal(t, qdrant.Distance_Cosine, cfg.Distance)
}

func TestQdrantConfigApplyDefaultsPreservesSetValues(t *testing.T) {
	cfg := QdrantConfig{
		Host:       "qdrant.internal",
		Port:       7000,
		MaxRetries: 10,
		Distance:   qdrant.Distance_Dot,
	}
	cfg.ApplyDefaults()

	assert.Equal(t, "qdrant.internal", cfg.Host)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, 10, cfg.MaxRetries)
	assert.Equal(t, qdrant.Distance_Dot, cfg.Distance)
}

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid lowercase", input: "vibe_reviews"},
		{name: "valid with digits", input: "reviews_v2"},
		{name: "empty", input: "", wantErr: true},
		{name: "uppercase", input: "VibeReviews", wantErr: true},
		{name: "spaces", input: "vibe reviews", wantErr: true},
		{name: "path traversal", input: "../etc/passwd", wantErr: true},
		{name: "hyphen", input: "vibe-reviews", wantErr: true},
		{name: "too long", input: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCollectionName(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidCollectionName)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "unavailable", err: status.Error(grpccodes.Unavailable, "down"), want: true},
		{name: "deadline exceeded", err: status.Error(grpccodes.DeadlineExceeded, "timeout"), want: true},
		{name: "aborted", err: status.Error(grpccodes.Aborted, "aborted"), want: true},
		{name: "resource exhausted", err: status.Error(grpccodes.ResourceExhausted, "quota"), want: true},
		{name: "invalid argument", err: status.Error(grpccodes.InvalidArgument, "bad"), want: false},
		{name: "not found", err: status.Error(grpccodes.NotFound, "missing"), want: false},
		{name: "permission denied", err: status.Error(grpccodes.PermissionDenied, "no"), want: false},
		{name: "unauthenticated", err: status.Error(grpccodes.Unauthenticated, "who"), want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransientError(tt.err))
		})
	}
}

func TestPointIDDeterministic(t *testing.T) {
	a := PointID("loc-123#0")
	b := PointID("loc-123#0")
	c := PointID("loc-123#1")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	// Valid UUID shape: 8-4-4-4-12.
	assert.Len(t, a, 36)
}

func TestNewQdrantIndexRejectsInvalidConfig(t *testing.T) {
	_, err := NewQdrantIndex(QdrantConfig{CollectionName: "Bad Name", VectorSize: 8}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCollectionName)
}
