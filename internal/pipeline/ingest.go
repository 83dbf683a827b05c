package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vibenavd/internal/model"
	"github.com/fyrsmithlabs/vibenavd/internal/scrape"
)

// Ingest upserts scraped results into the document store and returns the ids
// of newly created locations. Results with zero usable reviews are dropped
// before reaching the store. A failed upsert is logged and skipped; the rest
// of the batch continues.
//
// Newly created ids are handed to the summarization stage through the
// dispatcher. Updated locations are not re-summarized: their existing vibe
// card stands until an explicit reprocess run.
func (s *Service) Ingest(ctx context.Context, results []scrape.RawLocation) ([]string, error) {
	start := time.Now()
	defer func() { StageDuration.WithLabelValues("ingest").Observe(time.Since(start).Seconds()) }()

	var newIDs []string
	for _, raw := range results {
		loc := s.normalize(raw)
		if len(loc.RawReviews) == 0 {
			s.logger.Info("skipping location with no reviews", zap.String("name", raw.Name))
			LocationsProcessedTotal.WithLabelValues("ingest", "skipped").Inc()
			continue
		}

		id, created, err := s.store.UpsertByNaturalKey(ctx, loc)
		if err != nil {
			s.logger.Error("upsert failed, skipping location",
				zap.String("name", loc.Name),
				zap.String("city", loc.City),
				zap.Error(err))
			LocationsProcessedTotal.WithLabelValues("ingest", "error").Inc()
			continue
		}

		LocationsProcessedTotal.WithLabelValues("ingest", "success").Inc()
		if created {
			newIDs = append(newIDs, id)
		}
	}

	s.logger.Info("ingest complete",
		zap.Int("scraped", len(results)),
		zap.Int("new", len(newIDs)))
	StageRunsTotal.WithLabelValues("ingest", "success").Inc()

	if len(newIDs) > 0 {
		if err := s.dispatcher.Publish(ctx, Task{Stage: StageSummarize, LocationIDs: newIDs}); err != nil {
			s.logger.Error("failed to dispatch summarize task", zap.Error(err))
		}
	}

	return newIDs, nil
}

// normalize converts a raw scrape result into a store-ready location:
// city and category are lowercased, empty-text reviews dropped, and the
// review count capped.
func (s *Service) normalize(raw scrape.RawLocation) *model.Location {
	reviews := make([]model.Review, 0, len(raw.Reviews))
	for _, r := range raw.Reviews {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		reviews = append(reviews, model.Review{
			Text:   r.Text,
			Source: r.Source,
			Author: r.Author,
		})
		if len(reviews) >= s.config.MaxReviewsPerLocation {
			break
		}
	}

	return &model.Location{
		Name:     raw.Name,
		City:     strings.ToLower(raw.City),
		Category: strings.ToLower(raw.Category),
		Address:  raw.Address,
		Coordinates: model.Coordinates{
			Lat: raw.Coordinates.Lat,
			Lon: raw.Coordinates.Lon,
		},
		RawReviews:       reviews,
		ProcessingStatus: model.StatusNew,
	}
}
