package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vibenavd/internal/genai"
)

// tourTopK is the retrieval depth per requested vibe tag.
const tourTopK = 3

// noSpotsReply is returned when no candidate locations survive retrieval.
const noSpotsReply = "I'm sorry, I couldn't find enough spots with those vibes to build a tour. Try a different combination!"

const tourPromptTemplate = `You are 'Vibe Navigator', an expert city tour guide for %s. Your personality is enthusiastic, creative, and a little poetic.
Your task is to create a personalized, story-driven tour plan for a user based on their desired vibes and a list of potential locations.

User's Desired Vibes: %s

Potential Locations (Your Ingredients):
%s

Your Mission:
1. Create a Narrative: Do not just list the places. Weave them into a coherent and exciting day plan (e.g., "Start your morning at...", "As evening approaches...").
2. Use the Ingredients: You MUST use at least 2-3 of the provided locations in your plan. You can decide the best order.
3. Justify Your Choices: When you recommend a place, briefly mention why it fits the vibe, using the information provided.
4. Keep it Conversational: Write as if you're excitedly telling a friend about this plan.

Now, generate the tour plan.`

// TourPlanner builds an itinerary from locations matching the requested vibes.
type TourPlanner struct {
	retriever  *Retriever
	generation genai.GenerationModel
	logger     *zap.Logger
}

// NewTourPlanner creates the tour planning engine.
func NewTourPlanner(retriever *Retriever, generation genai.GenerationModel, logger *zap.Logger) (*TourPlanner, error) {
	if retriever == nil {
		return nil, fmt.Errorf("%w: retriever required", ErrInvalidConfig)
	}
	if generation == nil {
		return nil, fmt.Errorf("%w: generation model required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TourPlanner{retriever: retriever, generation: generation, logger: logger}, nil
}

// PlanTour retrieves candidate locations per vibe tag and asks for one
// narrative itinerary. Candidates are deduplicated by location name with the
// first matching tag's rationale kept; later tags never override. Sources are
// deduplicated by review text, first occurrence wins.
func (t *TourPlanner) PlanTour(ctx context.Context, city string, vibeTags []string) Result {
	type candidate struct {
		name      string
		rationale string
	}
	var candidates []candidate
	seen := make(map[string]struct{})
	var allSources []Evidence

	for _, tag := range vibeTags {
		query := fmt.Sprintf("A place in %s with a '%s' vibe", city, tag)
		evidence := t.retriever.Retrieve(ctx, query, city, "", tourTopK)
		allSources = append(allSources, evidence...)

		for _, e := range evidence {
			if _, ok := seen[e.LocationName]; ok {
				continue
			}
			seen[e.LocationName] = struct{}{}
			candidates = append(candidates, candidate{
				name:      e.LocationName,
				rationale: fmt.Sprintf("It has a '%s' vibe, as one review mentions: %q", tag, e.ReviewText),
			})
		}
	}

	if len(candidates) == 0 {
		return Result{Reply: noSpotsReply, Sources: []Evidence{}}
	}

	var ingredients strings.Builder
	for _, c := range candidates {
		fmt.Fprintf(&ingredients, "- **%s**: %s\n", c.name, c.rationale)
	}

	prompt := fmt.Sprintf(tourPromptTemplate, city, strings.Join(vibeTags, ", "), strings.TrimRight(ingredients.String(), "\n"))

	reply, err := t.generation.Complete(ctx, prompt)
	if err != nil {
		t.logger.Error("tour generation failed, using fallback reply", zap.Error(err))
		GenerationFallbacksTotal.WithLabelValues("tour").Inc()
		reply = apologyReply
	}

	return Result{Reply: reply, Sources: dedupeByReviewText(allSources)}
}

// dedupeByReviewText keeps the first occurrence of each review text.
func dedupeByReviewText(evidence []Evidence) []Evidence {
	seen := make(map[string]struct{}, len(evidence))
	out := make([]Evidence, 0, len(evidence))
	for _, e := range evidence {
		if _, ok := seen[e.ReviewText]; ok {
			continue
		}
		seen[e.ReviewText] = struct{}{}
		out = append(out, e)
	}
	return out
}
