// Package utils provides token counting and phone normalization helpers.
package utils

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter provides accurate token counting for prompt budgeting.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a new token counter for the specified model.
// All supported providers approximate well with GPT-4 encoding.
func NewTokenCounter(model string) (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec for model %s: %w", model, err)
	}

	return &TokenCounter{codec: codec}, nil
}

// CountTokens returns the number of tokens in the given text.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc.codec == nil {
		// Fallback to character-based estimation (4 chars ≈ 1 token)
		return len(text) / 4
	}

	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}

	return count
}

// ValidateTokenLimit checks if text exceeds the specified token limit.
func (tc *TokenCounter) ValidateTokenLimit(text string, limit int) bool {
	return tc.CountTokens(text) <= limit
}

// TruncateToTokenLimit truncates text to fit within the specified token limit.
// This is a rough approximation - it truncates by characters, not perfect token boundaries.
func (tc *TokenCounter) TruncateToTokenLimit(text string, limit int) string {
	currentTokens := tc.CountTokens(text)
	if currentTokens <= limit {
		return text
	}

	ratio := float64(limit) / float64(currentTokens)
	charLimit := int(float64(len(text)) * ratio * 0.9) // 0.9 safety margin

	if charLimit >= len(text) {
		return text
	}

	return text[:charLimit] + "..."
}
