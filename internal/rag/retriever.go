package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vibenavd/internal/docstore"
	"github.com/fyrsmithlabs/vibenavd/internal/genai"
	"github.com/fyrsmithlabs/vibenavd/internal/model"
	"github.com/fyrsmithlabs/vibenavd/internal/vectorstore"
)

// DefaultTopK is the retrieval depth when the caller does not specify one.
const DefaultTopK = 5

// Retriever answers semantic queries over the indexed reviews.
type Retriever struct {
	store     docstore.Store
	index     vectorstore.Index
	embedding genai.EmbeddingModel
	logger    *zap.Logger
}

// NewRetriever creates a retriever.
func NewRetriever(store docstore.Store, index vectorstore.Index, embedding genai.EmbeddingModel, logger *zap.Logger) (*Retriever, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store required", ErrInvalidConfig)
	}
	if index == nil {
		return nil, fmt.Errorf("%w: vector index required", ErrInvalidConfig)
	}
	if embedding == nil {
		return nil, fmt.Errorf("%w: embedding model required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{store: store, index: index, embedding: embedding, logger: logger}, nil
}

// Retrieve returns up to topK reviews relevant to the query, most similar
// first, scoped to the given city (and category when non-empty). Every
// failure degrades to an empty result: retrieval produces "no evidence",
// never an error the caller must handle.
func (r *Retriever) Retrieve(ctx context.Context, query, city, category string, topK int) []Evidence {
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := r.embedding.EmbedQuery(ctx, query)
	if err != nil {
		r.logger.Error("query embedding failed, returning no evidence", zap.Error(err))
		RetrievalFailuresTotal.WithLabelValues("embed").Inc()
		return nil
	}

	filters := map[string]interface{}{"city": strings.ToLower(city)}
	if category != "" {
		filters["category"] = strings.ToLower(category)
	}

	matches, err := r.index.Query(ctx, vector, topK, filters)
	if err != nil {
		r.logger.Error("vector query failed, returning no evidence", zap.Error(err))
		RetrievalFailuresTotal.WithLabelValues("query").Inc()
		return nil
	}
	if len(matches) == 0 {
		return nil
	}

	// Resolve composite ids back to reviews. Malformed ids are skipped.
	type hit struct {
		locationID  string
		reviewIndex int
	}
	hits := make([]hit, 0, len(matches))
	idSet := make(map[string]struct{})
	for _, m := range matches {
		locID, idx, err := model.ParseVectorID(m.ID)
		if err != nil {
			r.logger.Warn("skipping malformed vector id", zap.String("id", m.ID))
			continue
		}
		hits = append(hits, hit{locationID: locID, reviewIndex: idx})
		idSet[locID] = struct{}{}
	}
	if len(hits) == 0 {
		return nil
	}

	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	locations, err := r.store.List(ctx, docstore.Find{IDs: ids})
	if err != nil {
		r.logger.Error("location fetch failed, returning no evidence", zap.Error(err))
		RetrievalFailuresTotal.WithLabelValues("store").Inc()
		return nil
	}
	byID := make(map[string]*model.Location, len(locations))
	for _, loc := range locations {
		byID[loc.ID] = loc
	}

	// Walk hits in match order so output stays ranked by similarity. A
	// stale vector can reference a review index that no longer exists
	// after a re-scrape; those hits are skipped silently.
	evidence := make([]Evidence, 0, len(hits))
	for _, h := range hits {
		loc, ok := byID[h.locationID]
		if !ok || h.reviewIndex >= len(loc.RawReviews) {
			continue
		}
		review := loc.RawReviews[h.reviewIndex]
		evidence = append(evidence, Evidence{
			LocationName: loc.Name,
			ReviewText:   review.Text,
			Author:       review.Author,
		})
	}
	return evidence
}
