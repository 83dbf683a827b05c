package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vibenavd/internal/genai"
)

// conversationTopK is the retrieval depth for conversational answers.
const conversationTopK = 10

// apologyReply is returned when generation fails. Sources still accompany it.
const apologyReply = "I'm sorry, I'm having trouble putting my thoughts together right now. Please try again in a moment!"

const conversationSystemTemplate = `You are 'Vibe Navigator', a friendly, witty, and super knowledgeable friend who knows the city of %s inside out.
Your personality is casual, a bit poetic, and very enthusiastic.
Your main goal is to help the user plan a great day out by recommending spots in a fun, storytelling format.

Your instructions:
1. Use the chat history to understand the context of the conversation.
2. Use the "Retrieved Evidence" from real user reviews as the factual basis for your recommendations. NEVER make up details about a place.
3. If you make a recommendation, subtly weave in quotes or paraphrased points from the evidence.
4. If the user asks a follow-up question, answer it based on the history and new evidence if available.
5. Keep your responses conversational and engaging. Avoid just listing facts.`

// Conversation answers user queries grounded in retrieved review evidence.
type Conversation struct {
	retriever  *Retriever
	generation genai.GenerationModel
	logger     *zap.Logger
}

// NewConversation creates the conversation engine.
func NewConversation(retriever *Retriever, generation genai.GenerationModel, logger *zap.Logger) (*Conversation, error) {
	if retriever == nil {
		return nil, fmt.Errorf("%w: retriever required", ErrInvalidConfig)
	}
	if generation == nil {
		return nil, fmt.Errorf("%w: generation model required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Conversation{retriever: retriever, generation: generation, logger: logger}, nil
}

// Converse retrieves evidence for the query, replays prior turns, and asks
// for one completion. Generation failure yields the fixed apology; retrieved
// sources are returned either way.
func (c *Conversation) Converse(ctx context.Context, query, city, category string, history []genai.Message) Result {
	evidence := c.retriever.Retrieve(ctx, fmt.Sprintf("%s in %s", query, city), city, category, conversationTopK)

	system := fmt.Sprintf(conversationSystemTemplate, city) + evidenceSection(evidence)

	reply, err := c.generation.Chat(ctx, system, history, query)
	if err != nil {
		c.logger.Error("conversation generation failed, using fallback reply", zap.Error(err))
		GenerationFallbacksTotal.WithLabelValues("conversation").Inc()
		reply = apologyReply
	}

	return Result{Reply: reply, Sources: sources(evidence)}
}

// evidenceSection renders retrieved reviews as a bulleted quote list, or an
// explicit no-evidence notice when retrieval came back empty.
func evidenceSection(evidence []Evidence) string {
	if len(evidence) == 0 {
		return "\n\nRetrieved Evidence:\nNo specific reviews found for this query. Rely on the chat history, but state that you couldn't find a specific vibe."
	}

	var b strings.Builder
	b.WriteString("\n\nRetrieved Evidence to use for your response:\n")
	for _, e := range evidence {
		fmt.Fprintf(&b, "- From a review for '%s': %q\n", e.LocationName, e.ReviewText)
	}
	return strings.TrimRight(b.String(), "\n")
}

// sources normalizes nil evidence to an empty slice so responses always carry
// a well-formed list.
func sources(evidence []Evidence) []Evidence {
	if evidence == nil {
		return []Evidence{}
	}
	return evidence
}
