package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vibenavd/internal/docstore"
	"github.com/fyrsmithlabs/vibenavd/internal/genai"
	"github.com/fyrsmithlabs/vibenavd/internal/model"
)

const mapPromptTemplate = `Analyze the following batch of reviews for %q.
Identify key themes, vibes, and standout points (e.g., "fast service", "great coffee", "noisy", "aesthetic decor").
Do not write a long summary. List the key points as a concise bulleted list.

Reviews:
%s

Key points from this batch:`

const reducePromptTemplate = `You are a witty and insightful city guide. You have been given a list of key points summarized from different batches of reviews for a location.
Your task is to synthesize these points into a final, polished vibe card analysis.

Location Name: %q

Summarized Key Points from all reviews:
%s

Based ONLY on the key points provided, respond with ONLY a valid JSON object with these fields:
1. "vibe_summary": a final, playful, 1-2 sentence summary of the location's overall vibe.
2. "vibe_tags": a list of the 4-5 most important, one-word, lowercase tags.
3. "emojis": the 3 emojis that best represent the final vibe, as a single string.

Example output:
{"vibe_summary": "A bustling paradise for book lovers with mountains of books. The smell of old paper is a treat!", "vibe_tags": ["cozy", "crowded", "books"], "emojis": "📚❤️✨"}`

// Summarize runs Map-Reduce summarization for the given locations and
// returns the ids that gained a vibe card. Each location is processed
// independently: a failed batch drops out of the reduce input, a failed
// location keeps its status, and the rest of the run continues.
//
// Analyzed ids are handed to the indexing stage through the dispatcher.
func (s *Service) Summarize(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.summarize(ctx, docstore.Find{IDs: ids})
}

// SummarizeAllPending is the catch-up mode: it analyzes every stored location
// still lacking a vibe card.
func (s *Service) SummarizeAllPending(ctx context.Context) ([]string, error) {
	return s.summarize(ctx, docstore.Find{MissingAnalysis: true})
}

func (s *Service) summarize(ctx context.Context, find docstore.Find) ([]string, error) {
	start := time.Now()
	defer func() { StageDuration.WithLabelValues("summarize").Observe(time.Since(start).Seconds()) }()

	locations, err := s.store.List(ctx, find)
	if err != nil {
		StageRunsTotal.WithLabelValues("summarize", "error").Inc()
		return nil, fmt.Errorf("listing locations: %w", err)
	}

	var analyzedIDs []string
	for _, loc := range locations {
		analysis, ok := s.analyzeLocation(ctx, loc)
		if !ok {
			LocationsProcessedTotal.WithLabelValues("summarize", "skipped").Inc()
			continue
		}

		if err := s.store.SetAnalysis(ctx, loc.ID, analysis); err != nil {
			s.logger.Error("failed to persist vibe card",
				zap.String("location_id", loc.ID),
				zap.Error(err))
			LocationsProcessedTotal.WithLabelValues("summarize", "error").Inc()
			continue
		}

		s.logger.Info("vibe card persisted",
			zap.String("location_id", loc.ID),
			zap.String("name", loc.Name),
			zap.Strings("tags", analysis.VibeTags))
		LocationsProcessedTotal.WithLabelValues("summarize", "success").Inc()
		analyzedIDs = append(analyzedIDs, loc.ID)
	}

	s.logger.Info("summarization complete",
		zap.Int("requested", len(locations)),
		zap.Int("analyzed", len(analyzedIDs)))
	StageRunsTotal.WithLabelValues("summarize", "success").Inc()

	if len(analyzedIDs) > 0 {
		if err := s.dispatcher.Publish(ctx, Task{Stage: StageIndex, LocationIDs: analyzedIDs}); err != nil {
			s.logger.Error("failed to dispatch index task", zap.Error(err))
		}
	}

	return analyzedIDs, nil
}

// analyzeLocation runs the Map-Reduce pass for one location. Returns ok=false
// when no vibe card could be produced; the location keeps its status.
func (s *Service) analyzeLocation(ctx context.Context, loc *model.Location) (model.AIAnalysis, bool) {
	partials := s.mapReviews(ctx, loc)
	if len(partials) == 0 {
		s.logger.Warn("no partial summaries produced, abandoning analysis",
			zap.String("location_id", loc.ID),
			zap.String("name", loc.Name))
		return model.AIAnalysis{}, false
	}

	prompt := fmt.Sprintf(reducePromptTemplate, loc.Name, strings.Join(partials, "\n"))
	reply, err := s.generation.Complete(ctx, prompt)
	if err != nil {
		s.logger.Error("reduce call failed",
			zap.String("location_id", loc.ID),
			zap.Error(err))
		ModelCallsTotal.WithLabelValues("reduce", "error").Inc()
		return model.AIAnalysis{}, false
	}
	ModelCallsTotal.WithLabelValues("reduce", "success").Inc()

	analysis, ok := genai.ParseVibeCard(reply)
	if !ok {
		s.logger.Warn("unparseable vibe card response",
			zap.String("location_id", loc.ID))
		return model.AIAnalysis{}, false
	}
	return analysis, true
}

// mapReviews partitions the location's reviews into fixed-size batches and
// collects one partial summary per batch. Failed or empty batches contribute
// nothing; the order of the surviving summaries follows batch order.
func (s *Service) mapReviews(ctx context.Context, loc *model.Location) []string {
	var partials []string
	for i := 0; i < len(loc.RawReviews); i += s.config.MapBatchSize {
		end := i + s.config.MapBatchSize
		if end > len(loc.RawReviews) {
			end = len(loc.RawReviews)
		}

		var lines []string
		for _, r := range loc.RawReviews[i:end] {
			if strings.TrimSpace(r.Text) == "" {
				continue
			}
			lines = append(lines, "- "+r.Text)
		}
		if len(lines) == 0 {
			continue
		}

		prompt := fmt.Sprintf(mapPromptTemplate, loc.Name, strings.Join(lines, "\n"))
		partial, err := s.generation.Complete(ctx, prompt)
		if err != nil {
			s.logger.Error("map call failed, dropping batch",
				zap.String("location_id", loc.ID),
				zap.Int("batch", i/s.config.MapBatchSize+1),
				zap.Error(err))
			ModelCallsTotal.WithLabelValues("map", "error").Inc()
			continue
		}
		ModelCallsTotal.WithLabelValues("map", "success").Inc()
		partials = append(partials, partial)
	}
	return partials
}
