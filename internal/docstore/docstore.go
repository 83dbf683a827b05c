// Package docstore provides persistent storage for Location documents.
package docstore

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/vibenavd/internal/model"
)

// Sentinel errors for document store operations.
var (
	// ErrNotFound is returned when a location does not exist.
	ErrNotFound = errors.New("location not found")

	// ErrInvalidLocation indicates a location missing required fields.
	ErrInvalidLocation = errors.New("invalid location")
)

// Find filters a List call. Zero-valued fields are ignored.
type Find struct {
	// IDs restricts results to the given location ids.
	IDs []string

	// City matches the case-normalized city.
	City string

	// Category matches the case-normalized category.
	Category string

	// Status matches the processing status.
	Status model.ProcessingStatus

	// MissingAnalysis restricts results to locations without a vibe card.
	MissingAnalysis bool

	// Limit caps the number of results. Zero means no limit.
	Limit int
}

// Store is the document store interface consumed by the pipeline and the
// retrieval engine.
//
// Each call is an independent atomic operation; the store holds no cross-call
// state, which is what makes concurrent pipeline runs safe to overlap.
type Store interface {
	// UpsertByNaturalKey inserts or replaces a location keyed by
	// (name, lower(city)). On match the scraped fields are overwritten and
	// the processing status resets to "new"; an existing vibe card is kept
	// until the next analysis run replaces it. Returns the location id and
	// whether a new document was created.
	UpsertByNaturalKey(ctx context.Context, loc *model.Location) (id string, created bool, err error)

	// Get returns a location by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*model.Location, error)

	// List returns locations matching the filter.
	List(ctx context.Context, find Find) ([]*model.Location, error)

	// SetAnalysis persists a vibe card and advances the location to
	// "analyzed". Returns ErrNotFound for an unknown id.
	SetAnalysis(ctx context.Context, id string, analysis model.AIAnalysis) error

	// SetStatus updates the processing status of the given locations.
	SetStatus(ctx context.Context, ids []string, status model.ProcessingStatus) error

	// Close releases the underlying database handle.
	Close() error
}
