// Package config provides configuration loading for vibenavd.
//
// Configuration is loaded from an optional YAML file, overridden by
// environment variables, with hardcoded defaults for everything else.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete vibenavd configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Store    StoreConfig    `koanf:"store"`
	Qdrant   QdrantConfig   `koanf:"qdrant"`
	GenAI    GenAIConfig    `koanf:"genai"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Nats     NatsConfig     `koanf:"nats"`
	Scrape   ScrapeConfig   `koanf:"scrape"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig selects the logger profile.
type LoggingConfig struct {
	Development bool `koanf:"development"`
}

// StoreConfig holds document store configuration.
type StoreConfig struct {
	// Path is the SQLite database file. ":memory:" is accepted for tests.
	Path string `koanf:"path"`
}

// QdrantConfig holds Qdrant gRPC client configuration.
type QdrantConfig struct {
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`
	CollectionName string `koanf:"collection_name"`
	VectorSize     int    `koanf:"vector_size"`
	UseTLS         bool   `koanf:"use_tls"`
}

// GenAIConfig holds generation and embedding model configuration.
// Any OpenAI-compatible endpoint works; BaseURL selects the provider.
type GenAIConfig struct {
	BaseURL        string        `koanf:"base_url"`
	APIKey         string        `koanf:"api_key"`
	ChatModel      string        `koanf:"chat_model"`
	EmbeddingModel string        `koanf:"embedding_model"`
	Timeout        time.Duration `koanf:"timeout"`
	MaxRetries     int           `koanf:"max_retries"`
}

// PipelineConfig holds ingestion pipeline tuning knobs.
type PipelineConfig struct {
	// ReviewsPerMapBatch bounds the number of reviews sent to one map call.
	ReviewsPerMapBatch int `koanf:"reviews_per_map_batch"`

	// EmbedBatchSize bounds the number of texts per embedding call.
	EmbedBatchSize int `koanf:"embed_batch_size"`

	// MinReviewTokens is the indexing threshold; shorter reviews are
	// never embedded.
	MinReviewTokens int `koanf:"min_review_tokens"`

	// MaxReviewsPerLocation caps reviews kept at ingestion.
	MaxReviewsPerLocation int `koanf:"max_reviews_per_location"`

	// ReprocessOnStart runs catch-up summarization over locations still
	// at status "new" when the daemon starts.
	ReprocessOnStart bool `koanf:"reprocess_on_start"`
}

// NatsConfig holds stage-handoff queue configuration.
type NatsConfig struct {
	URL string `koanf:"url"`

	// Embedded starts an in-process NATS server for single-binary runs.
	Embedded bool `koanf:"embedded"`
}

// ScrapeConfig holds the seed-file scraper configuration.
type ScrapeConfig struct {
	// SeedDir is the directory the seed scraper reads raw location
	// documents from.
	SeedDir string `koanf:"seed_dir"`

	// MaxResultsPerRun caps locations taken from one discover run.
	MaxResultsPerRun int `koanf:"max_results_per_run"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Store.Path == "" {
		return errors.New("store path required")
	}
	if c.Qdrant.Host == "" {
		return errors.New("qdrant host required")
	}
	if c.Qdrant.Port < 1 || c.Qdrant.Port > 65535 {
		return fmt.Errorf("invalid qdrant port: %d", c.Qdrant.Port)
	}
	if c.Qdrant.VectorSize <= 0 {
		return errors.New("qdrant vector size must be positive")
	}
	if c.Pipeline.ReviewsPerMapBatch <= 0 {
		return errors.New("reviews per map batch must be positive")
	}
	if c.Pipeline.EmbedBatchSize <= 0 {
		return errors.New("embed batch size must be positive")
	}
	if c.Pipeline.MinReviewTokens < 0 {
		return errors.New("min review tokens cannot be negative")
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = "vibenavd.db"
	}

	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = "localhost"
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334
	}
	if cfg.Qdrant.CollectionName == "" {
		cfg.Qdrant.CollectionName = "vibe_reviews"
	}
	if cfg.Qdrant.VectorSize == 0 {
		cfg.Qdrant.VectorSize = 1536 // text-embedding-3-small dimensions
	}

	if cfg.GenAI.BaseURL == "" {
		cfg.GenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.GenAI.ChatModel == "" {
		cfg.GenAI.ChatModel = "gpt-4o-mini"
	}
	if cfg.GenAI.EmbeddingModel == "" {
		cfg.GenAI.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.GenAI.Timeout == 0 {
		cfg.GenAI.Timeout = 60 * time.Second
	}
	if cfg.GenAI.MaxRetries == 0 {
		cfg.GenAI.MaxRetries = 3
	}

	if cfg.Pipeline.ReviewsPerMapBatch == 0 {
		cfg.Pipeline.ReviewsPerMapBatch = 30
	}
	if cfg.Pipeline.EmbedBatchSize == 0 {
		cfg.Pipeline.EmbedBatchSize = 100
	}
	if cfg.Pipeline.MinReviewTokens == 0 {
		cfg.Pipeline.MinReviewTokens = 5
	}
	if cfg.Pipeline.MaxReviewsPerLocation == 0 {
		cfg.Pipeline.MaxReviewsPerLocation = 15
	}

	if cfg.Nats.URL == "" {
		cfg.Nats.URL = "nats://localhost:4222"
	}

	if cfg.Scrape.SeedDir == "" {
		cfg.Scrape.SeedDir = "seeds"
	}
	if cfg.Scrape.MaxResultsPerRun == 0 {
		cfg.Scrape.MaxResultsPerRun = 2
	}
}
