package genai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultChatModel      = "gpt-4o-mini"
	defaultEmbeddingModel = "text-embedding-3-small"
	defaultMaxRetries     = 3
	defaultTimeout        = 60 * time.Second
	defaultRateLimit      = 10 // requests per second
	defaultBurst          = 5

	// defaultQueryInstruction prefixes query text before embedding so short
	// questions embed close to full review passages.
	defaultQueryInstruction = "Represent this sentence for searching relevant passages: "
)

// Config holds the OpenAI-compatible provider configuration.
type Config struct {
	// APIKey authenticates against the provider.
	APIKey string

	// BaseURL overrides the API endpoint for OpenAI-compatible providers.
	BaseURL string

	// ChatModel is the completion model name.
	// Default: "gpt-4o-mini"
	ChatModel string

	// EmbeddingModel is the embedding model name.
	// Default: "text-embedding-3-small"
	EmbeddingModel string

	// QueryInstruction is prepended to query text before embedding.
	// Documents are embedded without it.
	QueryInstruction string

	// MaxRetries is the maximum number of retry attempts.
	// Default: 3
	MaxRetries int

	// Timeout is the per-request HTTP timeout.
	// Default: 60 seconds
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Default: 10
	RateLimit float64

	// Burst is the rate limiter burst size.
	// Default: 5
	Burst int
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: api key required", ErrInvalidConfig)
	}
	return nil
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.ChatModel == "" {
		c.ChatModel = defaultChatModel
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = defaultEmbeddingModel
	}
	if c.QueryInstruction == "" {
		c.QueryInstruction = defaultQueryInstruction
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = defaultRateLimit
	}
	if c.Burst == 0 {
		c.Burst = defaultBurst
	}
}

// OpenAIClient implements GenerationModel and EmbeddingModel against the
// OpenAI API or any OpenAI-compatible endpoint.
type OpenAIClient struct {
	client  *openai.Client
	config  Config
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewOpenAIClient creates a client with the given configuration.
func NewOpenAIClient(config Config, logger *zap.Logger) (*OpenAIClient, error) {
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(clientConfig),
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.Burst),
		logger:  logger,
	}, nil
}

// Complete generates a completion for a single prompt.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, "", nil, prompt)
}

// Chat generates a reply given a system prompt, prior turns, and the latest
// user message.
func (c *OpenAIClient) Chat(ctx context.Context, system string, history []Message, user string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, msg := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	var result string
	err := c.doWithRetry(ctx, func() error {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    c.config.ChatModel,
			Messages: messages,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return ErrEmptyResponse
		}
		result = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	return result, nil
}

// EmbedDocuments embeds passages for indexing.
func (c *OpenAIClient) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var result [][]float32
	err := c.doWithRetry(ctx, func() error {
		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts,
			Model: openai.EmbeddingModel(c.config.EmbeddingModel),
		})
		if err != nil {
			return err
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(texts))
		}
		vectors := make([][]float32, len(resp.Data))
		for i, d := range resp.Data {
			vectors[i] = d.Embedding
		}
		result = vectors
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embedding documents: %w", err)
	}

	return result, nil
}

// EmbedQuery embeds a search query with the instruction prefix.
func (c *OpenAIClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedDocuments(ctx, []string{c.config.QueryInstruction + text})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, ErrEmptyResponse
	}
	return vectors[0], nil
}

// doWithRetry executes a function with rate limiting and exponential backoff.
func (c *OpenAIClient) doWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	backoff := time.Second

	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt < c.config.MaxRetries-1 {
			c.logger.Debug("model request failed, retrying",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

var (
	_ GenerationModel = (*OpenAIClient)(nil)
	_ EmbeddingModel  = (*OpenAIClient)(nil)
)
