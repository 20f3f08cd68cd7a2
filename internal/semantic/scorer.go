// Package semantic implements ranking.SemanticScorer on hosted language
// models. Both providers share one prompt and one tolerant response parser;
// requests are paced with a token-bucket limiter and retried with
// exponential backoff on transient failures.
package semantic

import (
	"context"
	"fmt"
	"strings"

	"webresearch/internal/logging"
	"webresearch/internal/ranking"

	"golang.org/x/time/rate"
)

// Provider names.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// Config selects and configures a scoring provider.
type Config struct {
	Provider          string
	APIKey            string
	Model             string // empty = provider default
	BaseURL           string // empty = provider default
	Temperature       float32
	RequestsPerSecond float64 // 0 = unlimited
	Burst             int
	Retry             RetryConfig
}

// DefaultConfig returns Gemini with conservative pacing.
func DefaultConfig() Config {
	return Config{
		Provider:          ProviderGemini,
		Temperature:       0.1,
		RequestsPerSecond: 2,
		Burst:             3,
		Retry:             DefaultRetryConfig(),
	}
}

// NewScorer builds the configured scorer. ProviderNone yields (nil, nil);
// the ranker then uses fallback scores.
func NewScorer(ctx context.Context, cfg Config) (ranking.SemanticScorer, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderNone:
		return nil, nil
	case ProviderGemini, "":
		g, err := NewGeminiScorer(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return g, nil
	case ProviderOpenAI:
		o, err := NewOpenAIScorer(cfg)
		if err != nil {
			return nil, err
		}
		return o, nil
	default:
		return nil, fmt.Errorf("unknown scoring provider %q", cfg.Provider)
	}
}

func newLimiter(cfg Config) *rate.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
}

// completeFunc sends one prompt pair and returns the raw model text.
type completeFunc func(ctx context.Context, system, user string) (string, error)

// score is the provider-independent scoring flow: pace, call with retry,
// parse. A malformed response counts as a failed attempt only once.
func score(ctx context.Context, provider string, limiter *rate.Limiter, retry RetryConfig, req ranking.ScoreRequest, complete completeFunc) ([]ranking.ChunkScore, error) {
	if len(req.Previews) == 0 {
		return nil, nil
	}
	user := BuildPrompt(req)
	op := fmt.Sprintf("%s scoring of %d chunks", provider, len(req.Previews))

	return withRetry(ctx, retry, op, func(ctx context.Context) ([]ranking.ChunkScore, error) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
		text, err := complete(ctx, systemPrompt, user)
		if err != nil {
			return nil, err
		}
		scores, err := ParseScores(text, req.Previews)
		if err != nil {
			logging.SemanticWarn("%s returned unparseable scores: %v", provider, err)
			return nil, err
		}
		logging.SemanticDebug("%s scored %d/%d chunks", provider, len(scores), len(req.Previews))
		return scores, nil
	})
}
