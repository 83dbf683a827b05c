// Package rag implements the query-time engines: semantic retrieval over
// indexed reviews, conversational answers, and tour planning. All generation
// stays grounded in retrieved review evidence.
package rag

import (
	"errors"
)

// ErrInvalidConfig indicates a missing dependency.
var ErrInvalidConfig = errors.New("invalid configuration")

// Evidence is one retrieved review bound to its owning location.
type Evidence struct {
	LocationName string `json:"location_name"`
	ReviewText   string `json:"review_text"`
	Author       string `json:"author,omitempty"`
}

// Result is a generated reply with the evidence it was grounded in. Sources
// are returned even when generation fails.
type Result struct {
	Reply   string     `json:"reply"`
	Sources []Evidence `json:"sources"`
}
