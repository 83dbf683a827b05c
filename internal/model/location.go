// Package model defines the core domain types shared across the pipeline.
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ProcessingStatus is the lifecycle stage of a Location.
//
// The lifecycle is linear: new -> analyzed -> indexed. Stages never move a
// location backwards; a location that cannot be processed keeps its current
// status.
type ProcessingStatus string

const (
	// StatusNew marks a freshly ingested location with no analysis yet.
	StatusNew ProcessingStatus = "new"

	// StatusAnalyzed marks a location with a persisted vibe card.
	StatusAnalyzed ProcessingStatus = "analyzed"

	// StatusIndexed marks a location whose reviews went through the
	// embedding/indexing stage.
	StatusIndexed ProcessingStatus = "indexed"
)

// Coordinates is a lat/lon pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Review is a single scraped review. Reviews are immutable once stored and
// are identified by their position within the owning location's review slice;
// that position is part of the composite vector id.
type Review struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Author string `json:"author,omitempty"`
}

// TokenCount returns the number of whitespace-separated tokens in the review
// text. Reviews below the indexing threshold are never embedded.
func (r Review) TokenCount() int {
	return len(strings.Fields(r.Text))
}

// AIAnalysis is the vibe card distilled from a location's reviews.
// It is produced wholesale by the reduce step and never partially updated.
type AIAnalysis struct {
	VibeSummary string   `json:"vibe_summary"`
	VibeTags    []string `json:"vibe_tags"`
	Emojis      string   `json:"emojis"`
}

// Location is a discovered place. The natural key is (Name, lower(City));
// the ID is assigned by the document store on first insert.
type Location struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	City             string           `json:"city"`
	Category         string           `json:"category"`
	Address          string           `json:"address,omitempty"`
	Coordinates      Coordinates      `json:"coordinates"`
	RawReviews       []Review         `json:"raw_reviews"`
	AIAnalysis       *AIAnalysis      `json:"ai_analysis,omitempty"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
}

// VectorID builds the composite vector id binding an embedding back to one
// review within one location.
func VectorID(locationID string, reviewIndex int) string {
	return fmt.Sprintf("%s#%d", locationID, reviewIndex)
}

// ParseVectorID splits a composite vector id into its location id and review
// index. Returns an error for ids that do not follow the "{id}#{index}"
// format, including negative indexes.
func ParseVectorID(id string) (locationID string, reviewIndex int, err error) {
	locationID, idx, ok := strings.Cut(id, "#")
	if !ok || locationID == "" {
		return "", 0, fmt.Errorf("malformed vector id %q", id)
	}
	reviewIndex, err = strconv.Atoi(idx)
	if err != nil || reviewIndex < 0 {
		return "", 0, fmt.Errorf("malformed review index in vector id %q", id)
	}
	return locationID, reviewIndex, nil
}
