// Package pipeline implements the three-stage ingestion pipeline:
// scrape results are upserted into the document store, summarized into vibe
// cards with a Map-Reduce pass, and their reviews embedded into the vector
// index. Stages hand off to each other through a Dispatcher and never wait
// for downstream completion.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vibenavd/internal/docstore"
	"github.com/fyrsmithlabs/vibenavd/internal/genai"
	"github.com/fyrsmithlabs/vibenavd/internal/vectorstore"
)

// ErrInvalidConfig indicates invalid pipeline configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the pipeline tuning knobs.
type Config struct {
	// MapBatchSize is the number of reviews per map-summarization call.
	// Default: 30
	MapBatchSize int

	// EmbedBatchSize is the number of review texts per embedding call.
	// Default: 100
	EmbedBatchSize int

	// MinReviewTokens is the minimum whitespace-token count for a review
	// to be embedded. Shorter reviews add noise without retrieval value.
	// Default: 5
	MinReviewTokens int

	// MaxReviewsPerLocation caps the reviews kept per ingested location.
	// Default: 15
	MaxReviewsPerLocation int
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.MapBatchSize <= 0 {
		return fmt.Errorf("%w: map batch size must be positive", ErrInvalidConfig)
	}
	if c.EmbedBatchSize <= 0 {
		return fmt.Errorf("%w: embed batch size must be positive", ErrInvalidConfig)
	}
	if c.MinReviewTokens <= 0 {
		return fmt.Errorf("%w: min review tokens must be positive", ErrInvalidConfig)
	}
	if c.MaxReviewsPerLocation <= 0 {
		return fmt.Errorf("%w: max reviews per location must be positive", ErrInvalidConfig)
	}
	return nil
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.MapBatchSize == 0 {
		c.MapBatchSize = 30
	}
	if c.EmbedBatchSize == 0 {
		c.EmbedBatchSize = 100
	}
	if c.MinReviewTokens == 0 {
		c.MinReviewTokens = 5
	}
	if c.MaxReviewsPerLocation == 0 {
		c.MaxReviewsPerLocation = 15
	}
}

// Service runs the pipeline stages. Stage failures are contained at the
// smallest enclosing unit (one batch, one location) and logged; they never
// abort sibling units or cross stage boundaries.
type Service struct {
	store      docstore.Store
	index      vectorstore.Index
	generation genai.GenerationModel
	embedding  genai.EmbeddingModel
	dispatcher Dispatcher
	config     Config
	logger     *zap.Logger
}

// NewService creates the pipeline service.
func NewService(
	store docstore.Store,
	index vectorstore.Index,
	generation genai.GenerationModel,
	embedding genai.EmbeddingModel,
	dispatcher Dispatcher,
	config Config,
	logger *zap.Logger,
) (*Service, error) {
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: store required", ErrInvalidConfig)
	}
	if index == nil {
		return nil, fmt.Errorf("%w: vector index required", ErrInvalidConfig)
	}
	if generation == nil {
		return nil, fmt.Errorf("%w: generation model required", ErrInvalidConfig)
	}
	if embedding == nil {
		return nil, fmt.Errorf("%w: embedding model required", ErrInvalidConfig)
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("%w: dispatcher required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		store:      store,
		index:      index,
		generation: generation,
		embedding:  embedding,
		dispatcher: dispatcher,
		config:     config,
		logger:     logger,
	}, nil
}

// HandleTask runs one dispatched stage task. Stage errors are logged, never
// returned: the dispatcher owns no retry policy and the publishing stage has
// already moved on.
func (s *Service) HandleTask(ctx context.Context, task Task) {
	switch task.Stage {
	case StageSummarize:
		if _, err := s.Summarize(ctx, task.LocationIDs); err != nil {
			s.logger.Error("summarize task failed", zap.Error(err))
		}
	case StageIndex:
		if err := s.Index(ctx, task.LocationIDs); err != nil {
			s.logger.Error("index task failed", zap.Error(err))
		}
	default:
		s.logger.Error("dropping task for unknown stage", zap.String("stage", string(task.Stage)))
	}
}
