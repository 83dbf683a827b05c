package docstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/vibenavd/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testLocation(name, city string) *model.Location {
	return &model.Location{
		Name:     name,
		City:     city,
		Category: "Cafe",
		Address:  "12 Main St",
		Coordinates: model.Coordinates{
			Lat: 18.52,
			Lon: 73.85,
		},
		RawReviews: []model.Review{
			{Text: "lovely quiet corner with great filter coffee", Source: "Google Maps", Author: "Asha"},
			{Text: "too crowded", Source: "Google Maps"},
		},
	}
}

func TestUpsertCreatesNewLocation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, created, err := store.UpsertByNaturalKey(ctx, testLocation("Cafe X", "Pune"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, id)

	loc, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Cafe X", loc.Name)
	assert.Equal(t, "pune", loc.City, "city is case-normalized")
	assert.Equal(t, "cafe", loc.Category, "category is case-normalized")
	assert.Equal(t, model.StatusNew, loc.ProcessingStatus)
	assert.Len(t, loc.RawReviews, 2)
	assert.Nil(t, loc.AIAnalysis)
}

func TestUpsertIsIdempotentByNaturalKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, created, err := store.UpsertByNaturalKey(ctx, testLocation("Cafe X", "Pune"))
	require.NoError(t, err)
	require.True(t, created)

	updated := testLocation("Cafe X", "PUNE")
	updated.Address = "99 New Rd"
	updated.RawReviews = []model.Review{{Text: "renovated and even better now honestly", Source: "Google Maps"}}

	second, created, err := store.UpsertByNaturalKey(ctx, updated)
	require.NoError(t, err)
	assert.False(t, created, "same natural key must update, not insert")
	assert.Equal(t, first, second)

	all, err := store.List(ctx, Find{City: "pune"})
	require.NoError(t, err)
	require.Len(t, all, 1, "no duplicate documents")
	assert.Equal(t, "99 New Rd", all[0].Address, "last write wins")
	require.Len(t, all[0].RawReviews, 1)
	assert.Equal(t, "renovated and even better now honestly", all[0].RawReviews[0].Text)
}

func TestUpsertResetsStatusButKeepsAnalysis(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, _, err := store.UpsertByNaturalKey(ctx, testLocation("Cafe X", "Pune"))
	require.NoError(t, err)

	require.NoError(t, store.SetAnalysis(ctx, id, model.AIAnalysis{
		VibeSummary: "A cozy nook.",
		VibeTags:    []string{"cozy", "quiet"},
		Emojis:      "☕🌿",
	}))

	_, _, err = store.UpsertByNaturalKey(ctx, testLocation("Cafe X", "Pune"))
	require.NoError(t, err)

	loc, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNew, loc.ProcessingStatus, "re-scrape resets the lifecycle")
	require.NotNil(t, loc.AIAnalysis, "existing vibe card survives until re-analysis")
	assert.Equal(t, "A cozy nook.", loc.AIAnalysis.VibeSummary)
}

func TestUpsertRejectsMissingNaturalKey(t *testing.T) {
	store := newTestStore(t)

	_, _, err := store.UpsertByNaturalKey(context.Background(), &model.Location{Name: "", City: "pune"})
	require.ErrorIs(t, err, ErrInvalidLocation)

	_, _, err = store.UpsertByNaturalKey(context.Background(), nil)
	require.ErrorIs(t, err, ErrInvalidLocation)
}

func TestGetNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "no-such-id")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	puneID, _, err := store.UpsertByNaturalKey(ctx, testLocation("Cafe X", "Pune"))
	require.NoError(t, err)
	_, _, err = store.UpsertByNaturalKey(ctx, testLocation("Bar Y", "Mumbai"))
	require.NoError(t, err)

	park := testLocation("Park Z", "Pune")
	park.Category = "park"
	parkID, _, err := store.UpsertByNaturalKey(ctx, park)
	require.NoError(t, err)

	require.NoError(t, store.SetAnalysis(ctx, parkID, model.AIAnalysis{VibeSummary: "green", VibeTags: []string{"calm"}}))

	t.Run("by city", func(t *testing.T) {
		locs, err := store.List(ctx, Find{City: "Pune"})
		require.NoError(t, err)
		assert.Len(t, locs, 2)
	})

	t.Run("by city and category", func(t *testing.T) {
		locs, err := store.List(ctx, Find{City: "pune", Category: "cafe"})
		require.NoError(t, err)
		require.Len(t, locs, 1)
		assert.Equal(t, puneID, locs[0].ID)
	})

	t.Run("by ids", func(t *testing.T) {
		locs, err := store.List(ctx, Find{IDs: []string{puneID, parkID}})
		require.NoError(t, err)
		assert.Len(t, locs, 2)
	})

	t.Run("missing analysis", func(t *testing.T) {
		locs, err := store.List(ctx, Find{MissingAnalysis: true})
		require.NoError(t, err)
		assert.Len(t, locs, 2)
		for _, loc := range locs {
			assert.Nil(t, loc.AIAnalysis)
		}
	})

	t.Run("by status", func(t *testing.T) {
		locs, err := store.List(ctx, Find{Status: model.StatusAnalyzed})
		require.NoError(t, err)
		require.Len(t, locs, 1)
		assert.Equal(t, parkID, locs[0].ID)
	})

	t.Run("limit", func(t *testing.T) {
		locs, err := store.List(ctx, Find{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, locs, 1)
	})
}

func TestReviewOrderIsStable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	loc := testLocation("Cafe X", "Pune")
	loc.RawReviews = []model.Review{
		{Text: "first", Source: "a"},
		{Text: "second", Source: "b"},
		{Text: "third", Source: "c"},
	}
	id, _, err := store.UpsertByNaturalKey(ctx, loc)
	require.NoError(t, err)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, got.RawReviews, 3)
	assert.Equal(t, "first", got.RawReviews[0].Text)
	assert.Equal(t, "second", got.RawReviews[1].Text)
	assert.Equal(t, "third", got.RawReviews[2].Text)
}

func TestSetAnalysisAdvancesStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, _, err := store.UpsertByNaturalKey(ctx, testLocation("Cafe X", "Pune"))
	require.NoError(t, err)

	analysis := model.AIAnalysis{
		VibeSummary: "Bustling but friendly.",
		VibeTags:    []string{"busy", "friendly", "coffee", "warm"},
		Emojis:      "🔥☕🎶",
	}
	require.NoError(t, store.SetAnalysis(ctx, id, analysis))

	loc, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAnalyzed, loc.ProcessingStatus)
	require.NotNil(t, loc.AIAnalysis)
	assert.Equal(t, analysis, *loc.AIAnalysis)
}

func TestSetAnalysisNotFound(t *testing.T) {
	store := newTestStore(t)
	err := store.SetAnalysis(context.Background(), "missing", model.AIAnalysis{VibeSummary: "x"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSetStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, _, err := store.UpsertByNaturalKey(ctx, testLocation("Cafe X", "Pune"))
	require.NoError(t, err)
	b, _, err := store.UpsertByNaturalKey(ctx, testLocation("Bar Y", "Pune"))
	require.NoError(t, err)

	require.NoError(t, store.SetStatus(ctx, []string{a, b}, model.StatusIndexed))

	locs, err := store.List(ctx, Find{Status: model.StatusIndexed})
	require.NoError(t, err)
	assert.Len(t, locs, 2)

	// Empty id set is a no-op.
	require.NoError(t, store.SetStatus(ctx, nil, model.StatusIndexed))
}
