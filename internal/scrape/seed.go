package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const defaultMaxResults = 2

// SeedConfig configures the seed-file scraper.
type SeedConfig struct {
	// Dir is the directory holding raw location JSON files. Each file
	// contains a JSON array of raw locations.
	Dir string

	// MaxResults caps the number of locations returned per Discover call.
	// Default: 2
	MaxResults int
}

// Validate validates the configuration.
func (c SeedConfig) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("%w: seed directory required", ErrInvalidConfig)
	}
	return nil
}

// ApplyDefaults sets default values for unset fields.
func (c *SeedConfig) ApplyDefaults() {
	if c.MaxResults == 0 {
		c.MaxResults = defaultMaxResults
	}
}

// SeedScraper is a Scraper that reads raw location documents from JSON seed
// files instead of scraping the web. Browser automation stays out of this
// binary; any external scraper can drop its output into the seed directory.
type SeedScraper struct {
	config SeedConfig
	logger *zap.Logger
}

// NewSeedScraper creates a seed-file scraper.
func NewSeedScraper(config SeedConfig, logger *zap.Logger) (*SeedScraper, error) {
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SeedScraper{config: config, logger: logger}, nil
}

// Discover reads all seed files and returns locations matching the query,
// city, and category, capped at MaxResults. Files are read in lexical order
// so results are stable across runs. Unreadable or malformed files are logged
// and skipped.
func (s *SeedScraper) Discover(ctx context.Context, query, city, category string) ([]RawLocation, error) {
	entries, err := os.ReadDir(s.config.Dir)
	if err != nil {
		return nil, fmt.Errorf("reading seed directory %s: %w", s.config.Dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var results []RawLocation
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(s.config.Dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable seed file", zap.String("file", path), zap.Error(err))
			continue
		}

		var locations []RawLocation
		if err := json.Unmarshal(data, &locations); err != nil {
			s.logger.Warn("skipping malformed seed file", zap.String("file", path), zap.Error(err))
			continue
		}

		for _, loc := range locations {
			if !matches(loc, query, city, category) {
				continue
			}
			results = append(results, loc)
			if len(results) >= s.config.MaxResults {
				return results, nil
			}
		}
	}

	return results, nil
}

func matches(loc RawLocation, query, city, category string) bool {
	if city != "" && !strings.EqualFold(loc.City, city) {
		return false
	}
	if category != "" && !strings.EqualFold(loc.Category, category) {
		return false
	}
	if query != "" && !strings.Contains(strings.ToLower(loc.Name), strings.ToLower(query)) {
		return false
	}
	return true
}

var _ Scraper = (*SeedScraper)(nil)
