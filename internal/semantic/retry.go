package semantic

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"webresearch/internal/logging"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxRetries     int           // Maximum number of retry attempts
	InitialBackoff time.Duration // Initial backoff duration (doubles each retry)
	MaxBackoff     time.Duration // Maximum backoff duration
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     4 * time.Second,
	}
}

// ErrMaxRetriesExceeded indicates all retry attempts failed.
var ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")

// withRetry executes fn with exponential backoff. Errors that retrying
// cannot fix are returned immediately.
func withRetry[T any](ctx context.Context, config RetryConfig, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				logging.Semantic("Retry succeeded for %s on attempt %d", operation, attempt+1)
			}
			return result, nil
		}

		lastErr = err
		if !isRetryable(err) {
			return zero, err
		}
		logging.SemanticDebug("Attempt %d/%d for %s failed: %v", attempt+1, config.MaxRetries+1, operation, err)

		if attempt < config.MaxRetries {
			backoff := calculateBackoff(config, attempt)
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return zero, fmt.Errorf("%w for %s: %v", ErrMaxRetriesExceeded, operation, lastErr)
}

// calculateBackoff computes exponential backoff.
func calculateBackoff(config RetryConfig, attempt int) time.Duration {
	backoff := float64(config.InitialBackoff) * math.Pow(2, float64(attempt))
	if backoff > float64(config.MaxBackoff) {
		backoff = float64(config.MaxBackoff)
	}
	return time.Duration(backoff)
}

// isRetryable reports whether err may succeed on a later attempt: rate limits,
// server errors and transport failures. Malformed output and client errors
// are final.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrMissingAPIKey) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return retryableStatus(genaiErr.Code)
	}
	return true
}

func retryableStatus(code int) bool {
	return code == 0 || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
