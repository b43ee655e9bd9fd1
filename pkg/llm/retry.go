package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"halobot/pkg/llm/llmerrors"
	"halobot/pkg/logx"
)

// RetryableClient wraps an LLMClient with classification-aware retry logic.
// Retry budgets and backoff come from the classified error type, so rate
// limits back off longer than plain network blips.
type RetryableClient struct {
	client LLMClient
	logger *logx.Logger
}

// NewRetryableClient creates a new retryable LLM client.
func NewRetryableClient(client LLMClient) *RetryableClient {
	return &RetryableClient{
		client: client,
		logger: logx.NewLogger("llm-retry"),
	}
}

// Complete implements LLMClient with retry logic.
func (r *RetryableClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	var lastErr error

	attempt := 0
	for {
		resp, err := r.client.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		cfg := retryConfigFor(err)
		if cfg.MaxRetries == 0 || attempt >= cfg.MaxRetries {
			break
		}

		delay := calculateDelay(&cfg, attempt+1)
		r.logger.Warn("LLM call failed (%s), retry %d/%d in %v: %v",
			llmerrors.TypeOf(err).String(), attempt+1, cfg.MaxRetries, delay, err)

		select {
		case <-ctx.Done():
			return CompletionResponse{}, fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-time.After(delay):
		}
		attempt++
	}

	return CompletionResponse{}, fmt.Errorf("LLM call failed after %d attempts: %w", attempt+1, lastErr)
}

// GetModelName returns the wrapped client's model name.
func (r *RetryableClient) GetModelName() string {
	return r.client.GetModelName()
}

func retryConfigFor(err error) llmerrors.RetryConfig {
	var llmErr *llmerrors.Error
	if errors.As(err, &llmErr) {
		if !llmErr.IsRetryable() {
			return llmerrors.RetryConfig{MaxRetries: 0}
		}
		return llmErr.GetRetryConfig()
	}
	return llmerrors.DefaultRetryConfigs[llmerrors.ErrorTypeUnknown]
}

// calculateDelay computes the backoff delay for the given retry attempt.
func calculateDelay(cfg *llmerrors.RetryConfig, attempt int) time.Duration {
	delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.BackoffFactor, float64(attempt-1)))

	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}

	if cfg.Jitter {
		jitter := time.Duration(float64(delay) * 0.1 * jitterSign(time.Now().UnixNano()))
		delay += jitter
		if delay < 0 {
			delay = cfg.InitialDelay
		}
	}

	return delay
}

// jitterSign maps clock parity to a +/-1 jitter factor.
func jitterSign(nanos int64) float64 {
	if nanos%2 == 0 {
		return -1
	}
	return 1
}
