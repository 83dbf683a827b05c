package genai

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{APIKey: "sk-test"}
	cfg.ApplyDefaults()

	assert.Equal(t, "gpt-4o-mini", cfg.ChatModel)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, defaultQueryInstruction, cfg.QueryInstruction)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, float64(10), cfg.RateLimit)
	assert.Equal(t, 5, cfg.Burst)
}

func TestConfigApplyDefaultsPreservesSetValues(t *testing.T) {
	cfg := Config{
		APIKey:         "sk-test",
		ChatModel:      "gpt-4o",
		EmbeddingModel: "text-embedding-3-large",
		MaxRetries:     7,
	}
	cfg.ApplyDefaults()

	assert.Equal(t, "gpt-4o", cfg.ChatModel)
	assert.Equal(t, "text-embedding-3-large", cfg.EmbeddingModel)
	assert.Equal(t, 7, cfg.MaxRetries)
}

func TestConfigValidate(t *testing.T) {
	err := Config{}.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	require.NoError(t, Config{APIKey: "sk-test"}.Validate())
}

func TestNewOpenAIClientRejectsMissingKey(t *testing.T) {
	_, err := NewOpenAIClient(Config{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestEmbedDocumentsEmptyInput(t *testing.T) {
	c, err := NewOpenAIClient(Config{APIKey: "sk-test"}, nil)
	require.NoError(t, err)

	vectors, err := c.EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}
