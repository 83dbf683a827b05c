// Package genai provides chat completion and embedding clients for the
// summarization and retrieval pipelines.
package genai

import (
	"context"
	"errors"
)

// Sentinel errors for model operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyResponse indicates the provider returned no content.
	ErrEmptyResponse = errors.New("empty model response")
)

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationModel produces text completions.
type GenerationModel interface {
	// Complete generates a completion for a single prompt.
	Complete(ctx context.Context, prompt string) (string, error)

	// Chat generates a reply given a system prompt, prior turns, and the
	// latest user message.
	Chat(ctx context.Context, system string, history []Message, user string) (string, error)
}

// EmbeddingModel converts text into vectors.
//
// Documents and queries are embedded differently: queries carry an
// instruction prefix so that short questions land near the longer review
// passages they should retrieve.
type EmbeddingModel interface {
	// EmbedDocuments embeds passages for indexing. The result is
	// positionally aligned with texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
