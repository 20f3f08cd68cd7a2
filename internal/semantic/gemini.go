package semantic

import (
	"context"
	"fmt"

	"webresearch/internal/ranking"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when Config.Model is empty.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiScorer scores chunks with Google's Gemini API.
type GeminiScorer struct {
	client      *genai.Client
	model       string
	temperature float32
	limiter     *rate.Limiter
	retry       RetryConfig
}

// NewGeminiScorer creates a Gemini scorer.
func NewGeminiScorer(ctx context.Context, cfg Config) (*GeminiScorer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiScorer{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		limiter:     newLimiter(cfg),
		retry:       cfg.Retry,
	}, nil
}

// Score implements ranking.SemanticScorer.
func (g *GeminiScorer) Score(ctx context.Context, req ranking.ScoreRequest) ([]ranking.ChunkScore, error) {
	return score(ctx, "gemini", g.limiter, g.retry, req, g.complete)
}

func (g *GeminiScorer) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(user), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr(g.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini: %w: empty response", ErrMalformedResponse)
	}
	return text, nil
}
