package summarize

import (
	"context"
	"errors"
	"fmt"

	"github.com/deusflow/newsai/internal/config"
)

// ErrEmptyResponse is returned when the backend answers without text.
var ErrEmptyResponse = errors.New("empty completion")

// Request is one completion call.
type Request struct {
	Model       string
	System      string
	Content     string
	Temperature float32
	MaxTokens   int
}

// Response carries the generated text and token usage.
type Response struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Client is a text-generation backend.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Close() error
}

// NewClient builds the backend selected by cfg.Provider.
func NewClient(ctx context.Context, cfg config.SummarizeConfig) (Client, error) {
	switch cfg.Provider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required")
		}
		return NewGeminiClient(ctx, cfg.GeminiAPIKey)
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required")
		}
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown summarization provider %q", cfg.Provider)
	}
}
