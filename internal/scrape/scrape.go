// Package scrape defines the raw location source feeding the ingestion
// pipeline.
package scrape

import (
	"context"
	"errors"
)

// ErrInvalidConfig indicates invalid scraper configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// RawReview is a single scraped review before normalization.
type RawReview struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Author string `json:"author"`
}

// RawLocation is one scraped point of interest with its reviews.
type RawLocation struct {
	Name        string      `json:"name"`
	City        string      `json:"city"`
	Category    string      `json:"category"`
	Address     string      `json:"address"`
	Coordinates Coordinates `json:"coordinates"`
	Reviews     []RawReview `json:"reviews"`
}

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Scraper yields raw location documents for a discovery query.
type Scraper interface {
	// Discover returns raw locations matching the query in the given city.
	// Category narrows the search when non-empty. Implementations cap the
	// result count per run.
	Discover(ctx context.Context, query, city, category string) ([]RawLocation, error)
}
