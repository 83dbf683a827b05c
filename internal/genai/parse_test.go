package genai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVibeCard(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantOK      bool
		wantSummary string
		wantTags    []string
		wantEmojis  string
	}{
		{
			name:        "plain json",
			content:     `{"vibe_summary": "Cozy cafe with jazz.", "vibe_tags": ["cozy", "jazz"], "emojis": "☕🎷"}`,
			wantOK:      true,
			wantSummary: "Cozy cafe with jazz.",
			wantTags:    []string{"cozy", "jazz"},
			wantEmojis:  "☕🎷",
		},
		{
			name: "json fenced block",
			content: "```json\n" +
				`{"vibe_summary": "Lively rooftop bar.", "vibe_tags": ["rooftop"], "emojis": "🍹"}` +
				"\n```",
			wantOK:      true,
			wantSummary: "Lively rooftop bar.",
			wantTags:    []string{"rooftop"},
			wantEmojis:  "🍹",
		},
		{
			name: "bare fenced block",
			content: "```\n" +
				`{"vibe_summary": "Quiet bookshop.", "vibe_tags": [], "emojis": ""}` +
				"\n```",
			wantOK:      true,
			wantSummary: "Quiet bookshop.",
			wantTags:    []string{},
		},
		{
			name:        "tags normalized and deduped",
			content:     `{"vibe_summary": "s", "vibe_tags": ["Cozy", " cozy ", "JAZZ", ""], "emojis": ""}`,
			wantOK:      true,
			wantSummary: "s",
			wantTags:    []string{"cozy", "jazz"},
		},
		{
			name:    "not json",
			content: "Sorry, I cannot help with that.",
			wantOK:  false,
		},
		{
			name:    "empty summary",
			content: `{"vibe_summary": "  ", "vibe_tags": ["cozy"], "emojis": ""}`,
			wantOK:  false,
		},
		{
			name:    "empty content",
			content: "",
			wantOK:  false,
		},
		{
			name:    "truncated json",
			content: `{"vibe_summary": "Cozy caf`,
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseVibeCard(tt.content)
			require.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.wantSummary, got.VibeSummary)
			assert.Equal(t, tt.wantTags, got.VibeTags)
			assert.Equal(t, tt.wantEmojis, got.Emojis)
		})
	}
}
