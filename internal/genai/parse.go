package genai

import (
	"encoding/json"
	"strings"

	"github.com/fyrsmithlabs/vibenavd/internal/model"
)

// vibeCardResponse mirrors the JSON object the reduce prompt asks for.
type vibeCardResponse struct {
	VibeSummary string   `json:"vibe_summary"`
	VibeTags    []string `json:"vibe_tags"`
	Emojis      string   `json:"emojis"`
}

// ParseVibeCard parses a model response into an AIAnalysis.
//
// Models sometimes wrap JSON in markdown code fences; those are stripped
// before parsing. Returns ok=false when the content is not valid JSON or the
// summary is empty, so a bad response never aborts a batch.
func ParseVibeCard(content string) (model.AIAnalysis, bool) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var resp vibeCardResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return model.AIAnalysis{}, false
	}
	if strings.TrimSpace(resp.VibeSummary) == "" {
		return model.AIAnalysis{}, false
	}

	return model.AIAnalysis{
		VibeSummary: strings.TrimSpace(resp.VibeSummary),
		VibeTags:    normalizeTags(resp.VibeTags),
		Emojis:      strings.TrimSpace(resp.Emojis),
	}, true
}

// normalizeTags lowercases, trims, and dedupes tags preserving order.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
