package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/vibenavd/internal/model"
)

// schema is applied on open; idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS location (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	city TEXT NOT NULL,
	category TEXT NOT NULL,
	address TEXT NOT NULL DEFAULT '',
	lat REAL NOT NULL DEFAULT 0,
	lon REAL NOT NULL DEFAULT 0,
	raw_reviews TEXT NOT NULL DEFAULT '[]',
	ai_analysis TEXT,
	processing_status TEXT NOT NULL DEFAULT 'new',
	created_ts INTEGER NOT NULL,
	updated_ts INTEGER NOT NULL,
	UNIQUE (name, city)
);
CREATE INDEX IF NOT EXISTS idx_location_city_category ON location (city, category);
CREATE INDEX IF NOT EXISTS idx_location_status ON location (processing_status);
`

// SQLiteStore is a Store implementation backed by a SQLite database file.
// Reviews and the vibe card are stored as JSON columns; the natural-key
// uniqueness lives in the schema so concurrent upserts cannot duplicate a
// location.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the SQLite database at path and
// applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}

	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent stage runs.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertByNaturalKey inserts or replaces a location keyed by (name, lower(city)).
func (s *SQLiteStore) UpsertByNaturalKey(ctx context.Context, loc *model.Location) (string, bool, error) {
	if loc == nil || loc.Name == "" || loc.City == "" {
		return "", false, fmt.Errorf("%w: name and city required", ErrInvalidLocation)
	}

	city := strings.ToLower(loc.City)
	category := strings.ToLower(loc.Category)

	reviews, err := json.Marshal(loc.RawReviews)
	if err != nil {
		return "", false, fmt.Errorf("marshaling reviews: %w", err)
	}

	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existingID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM location WHERE name = ? AND city = ?`,
		loc.Name, city,
	).Scan(&existingID)

	switch {
	case err == sql.ErrNoRows:
		id := uuid.New().String()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO location (id, name, city, category, address, lat, lon, raw_reviews, processing_status, created_ts, updated_ts)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, loc.Name, city, category, loc.Address,
			loc.Coordinates.Lat, loc.Coordinates.Lon, string(reviews),
			string(model.StatusNew), now, now,
		)
		if err != nil {
			return "", false, fmt.Errorf("inserting location: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return "", false, fmt.Errorf("committing insert: %w", err)
		}
		return id, true, nil

	case err != nil:
		return "", false, fmt.Errorf("querying natural key: %w", err)

	default:
		// Last write wins on the scraped fields; the status resets so a
		// re-scraped location flows through analysis again. The existing
		// vibe card stays until that analysis replaces it.
		_, err = tx.ExecContext(ctx, `
			UPDATE location
			SET category = ?, address = ?, lat = ?, lon = ?, raw_reviews = ?, processing_status = ?, updated_ts = ?
			WHERE id = ?`,
			category, loc.Address, loc.Coordinates.Lat, loc.Coordinates.Lon,
			string(reviews), string(model.StatusNew), now, existingID,
		)
		if err != nil {
			return "", false, fmt.Errorf("updating location: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return "", false, fmt.Errorf("committing update: %w", err)
		}
		return existingID, false, nil
	}
}

// Get returns a location by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Location, error) {
	locs, err := s.List(ctx, Find{IDs: []string{id}})
	if err != nil {
		return nil, err
	}
	if len(locs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return locs[0], nil
}

// List returns locations matching the filter.
func (s *SQLiteStore) List(ctx context.Context, find Find) ([]*model.Location, error) {
	where, args := []string{"1 = 1"}, []any{}

	if len(find.IDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(find.IDs)), ", ")
		where = append(where, fmt.Sprintf("id IN (%s)", placeholders))
		for _, id := range find.IDs {
			args = append(args, id)
		}
	}
	if find.City != "" {
		where = append(where, "city = ?")
		args = append(args, strings.ToLower(find.City))
	}
	if find.Category != "" {
		where = append(where, "category = ?")
		args = append(args, strings.ToLower(find.Category))
	}
	if find.Status != "" {
		where = append(where, "processing_status = ?")
		args = append(args, string(find.Status))
	}
	if find.MissingAnalysis {
		where = append(where, "ai_analysis IS NULL")
	}

	query := fmt.Sprintf(`
		SELECT id, name, city, category, address, lat, lon, raw_reviews, ai_analysis, processing_status
		FROM location
		WHERE %s
		ORDER BY created_ts, id`, strings.Join(where, " AND "))
	if find.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", find.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}
	defer rows.Close()

	locations := []*model.Location{}
	for rows.Next() {
		var (
			loc      model.Location
			reviews  string
			analysis sql.NullString
			status   string
		)
		if err := rows.Scan(
			&loc.ID, &loc.Name, &loc.City, &loc.Category, &loc.Address,
			&loc.Coordinates.Lat, &loc.Coordinates.Lon,
			&reviews, &analysis, &status,
		); err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}

		if err := json.Unmarshal([]byte(reviews), &loc.RawReviews); err != nil {
			return nil, fmt.Errorf("unmarshaling reviews for %s: %w", loc.ID, err)
		}
		if analysis.Valid {
			var a model.AIAnalysis
			if err := json.Unmarshal([]byte(analysis.String), &a); err != nil {
				return nil, fmt.Errorf("unmarshaling analysis for %s: %w", loc.ID, err)
			}
			loc.AIAnalysis = &a
		}
		loc.ProcessingStatus = model.ProcessingStatus(status)

		locations = append(locations, &loc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return locations, nil
}

// SetAnalysis persists a vibe card and advances the location to "analyzed".
func (s *SQLiteStore) SetAnalysis(ctx context.Context, id string, analysis model.AIAnalysis) error {
	payload, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("marshaling analysis: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE location
		SET ai_analysis = ?, processing_status = ?, updated_ts = ?
		WHERE id = ?`,
		string(payload), string(model.StatusAnalyzed), time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("updating analysis: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// SetStatus updates the processing status of the given locations.
func (s *SQLiteStore) SetStatus(ctx context.Context, ids []string, status model.ProcessingStatus) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := []any{string(status), time.Now().Unix()}
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE location
		SET processing_status = ?, updated_ts = ?
		WHERE id IN (%s)`, placeholders),
		args...,
	)
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	return nil
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
