// Package vectorstore defines the interface for the review vector index.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector index operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates gRPC connection issues.
	ErrConnectionFailed = errors.New("failed to connect to Qdrant")

	// ErrEmptyRecords indicates an empty or nil record batch.
	ErrEmptyRecords = errors.New("empty or nil records")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// Record is one embedded review bound for the index.
//
// ID is the composite vector id "{location_id}#{review_index}"; upserting the
// same id twice overwrites the previous vector, which is what makes indexing
// re-runs idempotent.
type Record struct {
	ID       string
	Vector   []float32
	Metadata map[string]interface{}
}

// Match is one ranked result from a similarity query.
type Match struct {
	// ID is the composite vector id stored with the record.
	ID string

	// Score is the similarity score (higher = more similar).
	Score float32

	// Metadata contains the record metadata.
	Metadata map[string]interface{}
}

// Index is the vector index interface consumed by the indexing stage and the
// retrieval engine. Vectors are computed by the caller; the index never
// embeds.
type Index interface {
	// Upsert writes records keyed by their composite ids.
	Upsert(ctx context.Context, records []Record) error

	// Query returns up to topK matches for the vector, most similar
	// first. Filters are exact keyword matches on record metadata; only
	// records matching ALL conditions are returned.
	Query(ctx context.Context, vector []float32, topK int, filters map[string]interface{}) ([]Match, error)

	// EnsureCollection creates the backing collection if absent.
	EnsureCollection(ctx context.Context) error

	// Close closes the index connection and releases resources.
	Close() error
}
