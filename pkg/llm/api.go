// Package llm provides interfaces and types for Large Language Model client implementations.
package llm

import (
	"context"
)

// CompletionRole represents the role of a message in a conversation.
type CompletionRole string

const (
	// RoleSystem indicates a system message that provides instructions or context.
	RoleSystem CompletionRole = "system"
	// RoleUser indicates a message from the human user.
	RoleUser CompletionRole = "user"
	// RoleAssistant indicates a message from the AI assistant.
	RoleAssistant CompletionRole = "assistant"
)

const (
	// TemperatureDefault is the default temperature for free-form customer replies.
	TemperatureDefault = 0.7

	// TemperatureDeterministic is the temperature for structured extraction tasks.
	// Uses slight randomness (0.2) to avoid degenerate loops while staying consistent.
	TemperatureDeterministic = 0.2
)

// CompletionMessage represents a message in a completion request.
type CompletionMessage struct {
	Content string
	Role    CompletionRole
}

// CompletionRequest represents a request to generate a completion.
type CompletionRequest struct {
	Messages    []CompletionMessage
	MaxTokens   int
	Temperature float32
}

// CompletionResponse represents a response from a completion request.
type CompletionResponse struct {
	Content    string // Main response text
	StopReason string // Why the response stopped: "end_turn", "max_tokens", etc.
}

// LLMClient defines the interface for language model interactions.
type LLMClient interface { //nolint:revive // Name mirrors the package for call-site clarity
	// Complete generates a completion synchronously.
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)

	// GetModelName returns the model name for this LLM client.
	GetModelName() string
}

// NewCompletionRequest creates a new completion request with default values.
func NewCompletionRequest(messages []CompletionMessage) CompletionRequest {
	return CompletionRequest{
		Messages:    messages,
		MaxTokens:   1024,
		Temperature: TemperatureDefault,
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) CompletionMessage {
	return CompletionMessage{
		Role:    RoleSystem,
		Content: content,
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) CompletionMessage {
	return CompletionMessage{
		Role:    RoleUser,
		Content: content,
	}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) CompletionMessage {
	return CompletionMessage{
		Role:    RoleAssistant,
		Content: content,
	}
}
