package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vibenavd/internal/docstore"
	"github.com/fyrsmithlabs/vibenavd/internal/model"
	"github.com/fyrsmithlabs/vibenavd/internal/vectorstore"
)

// candidate is one review selected for embedding.
type candidate struct {
	vectorID string
	text     string
	metadata map[string]interface{}
}

// Index embeds eligible reviews for the given locations and upserts them into
// the vector index. A review is eligible when its text has at least
// MinReviewTokens whitespace tokens. Embedding runs in batches; a failed
// batch is logged and skipped while the others proceed, which is safe because
// the composite vector id makes re-runs idempotent.
//
// After all batches have been attempted the requested locations are marked
// "indexed" regardless of per-batch failures: the status records that the
// pipeline ran, not that every review embedded. Failed batch counts are
// logged so the undercount stays observable.
func (s *Service) Index(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	start := time.Now()
	defer func() { StageDuration.WithLabelValues("index").Observe(time.Since(start).Seconds()) }()

	locations, err := s.store.List(ctx, docstore.Find{IDs: ids})
	if err != nil {
		StageRunsTotal.WithLabelValues("index", "error").Inc()
		return fmt.Errorf("listing locations: %w", err)
	}
	if len(locations) == 0 {
		s.logger.Info("no locations found for indexing", zap.Int("requested", len(ids)))
		StageRunsTotal.WithLabelValues("index", "success").Inc()
		return nil
	}

	candidates := s.collectCandidates(locations)
	if len(candidates) == 0 {
		s.logger.Info("no eligible reviews to index", zap.Int("locations", len(locations)))
	}

	failedBatches := 0
	for i := 0; i < len(candidates); i += s.config.EmbedBatchSize {
		end := i + s.config.EmbedBatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		if err := s.indexBatch(ctx, candidates[i:end]); err != nil {
			s.logger.Error("index batch failed, skipping",
				zap.Int("batch", i/s.config.EmbedBatchSize+1),
				zap.Error(err))
			failedBatches++
		}
	}

	if err := s.store.SetStatus(ctx, ids, model.StatusIndexed); err != nil {
		StageRunsTotal.WithLabelValues("index", "error").Inc()
		return fmt.Errorf("marking locations indexed: %w", err)
	}

	if failedBatches > 0 {
		s.logger.Warn("locations marked indexed despite failed batches",
			zap.Int("failed_batches", failedBatches),
			zap.Int("locations", len(ids)))
	}
	s.logger.Info("indexing complete",
		zap.Int("locations", len(ids)),
		zap.Int("candidates", len(candidates)),
		zap.Int("failed_batches", failedBatches))
	StageRunsTotal.WithLabelValues("index", "success").Inc()
	for range locations {
		LocationsProcessedTotal.WithLabelValues("index", "success").Inc()
	}

	return nil
}

// collectCandidates walks each location's reviews in order and keeps those
// meeting the token threshold. The candidate set is deterministic for a given
// store state, so re-running indexing reproduces the same vector ids.
func (s *Service) collectCandidates(locations []*model.Location) []candidate {
	var candidates []candidate
	for _, loc := range locations {
		for i, review := range loc.RawReviews {
			if review.TokenCount() < s.config.MinReviewTokens {
				continue
			}

			meta := map[string]interface{}{
				"location_id": loc.ID,
				"name":        loc.Name,
				"city":        loc.City,
				"category":    loc.Category,
			}
			if loc.AIAnalysis != nil && len(loc.AIAnalysis.VibeTags) > 0 {
				meta["tags"] = loc.AIAnalysis.VibeTags
			}

			candidates = append(candidates, candidate{
				vectorID: model.VectorID(loc.ID, i),
				text:     review.Text,
				metadata: meta,
			})
		}
	}
	return candidates
}

// indexBatch embeds one batch of candidates and upserts the records. The
// embedding response is positionally aligned with the input texts; that
// alignment is what binds each vector to its composite id.
func (s *Service) indexBatch(ctx context.Context, batch []candidate) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.text
	}

	vectors, err := s.embedding.EmbedDocuments(ctx, texts)
	if err != nil {
		ModelCallsTotal.WithLabelValues("embed", "error").Inc()
		return fmt.Errorf("embedding batch: %w", err)
	}
	if len(vectors) != len(batch) {
		ModelCallsTotal.WithLabelValues("embed", "error").Inc()
		return fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(batch))
	}
	ModelCallsTotal.WithLabelValues("embed", "success").Inc()

	records := make([]vectorstore.Record, len(batch))
	for i, c := range batch {
		records[i] = vectorstore.Record{
			ID:       c.vectorID,
			Vector:   vectors[i],
			Metadata: c.metadata,
		}
	}

	if err := s.index.Upsert(ctx, records); err != nil {
		return fmt.Errorf("upserting batch: %w", err)
	}
	return nil
}
