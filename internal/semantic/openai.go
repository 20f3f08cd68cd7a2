package semantic

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"webresearch/internal/ranking"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// DefaultOpenAIModel is used when Config.Model is empty.
const DefaultOpenAIModel = openai.GPT4oMini

// OpenAIScorer scores chunks with any OpenAI-compatible chat endpoint.
type OpenAIScorer struct {
	client      *openai.Client
	model       string
	temperature float32
	limiter     *rate.Limiter
	retry       RetryConfig
}

// NewOpenAIScorer creates an OpenAI scorer. BaseURL points it at a
// compatible server.
func NewOpenAIScorer(cfg Config) (*OpenAIScorer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
	}
	transportCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		transportCfg.BaseURL = cfg.BaseURL
	}
	transportCfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIScorer{
		client:      openai.NewClientWithConfig(transportCfg),
		model:       model,
		temperature: cfg.Temperature,
		limiter:     newLimiter(cfg),
		retry:       cfg.Retry,
	}, nil
}

// Score implements ranking.SemanticScorer.
func (o *OpenAIScorer) Score(ctx context.Context, req ranking.ScoreRequest) ([]ranking.ChunkScore, error) {
	return score(ctx, "openai", o.limiter, o.retry, req, o.complete)
}

func (o *OpenAIScorer) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: o.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: %w: no choices", ErrMalformedResponse)
	}
	return resp.Choices[0].Message.Content, nil
}
