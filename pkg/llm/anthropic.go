package llm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"halobot/pkg/llm/llmerrors"
)

// ClaudeClient wraps the Anthropic API client to implement the LLMClient interface.
type ClaudeClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewClaudeClient creates a new Claude client with a specific model.
func NewClaudeClient(apiKey, model string) LLMClient {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &ClaudeClient{
		client: client,
		model:  anthropic.Model(model),
	}
}

// splitSystemPrompt extracts system messages to the top-level system parameter
// and merges consecutive user messages, since the Anthropic API requires strict
// user/assistant alternation starting and ending with a user message.
func splitSystemPrompt(messages []CompletionMessage) (string, []CompletionMessage, error) {
	if len(messages) == 0 {
		return "", nil, fmt.Errorf("message list cannot be empty")
	}

	var systemParts []string
	var rest []CompletionMessage

	for i := range messages {
		msg := &messages[i]
		if msg.Role == RoleSystem {
			systemParts = append(systemParts, msg.Content)
		} else {
			rest = append(rest, *msg)
		}
	}

	if len(rest) == 0 {
		return "", nil, fmt.Errorf("must have at least one non-system message")
	}

	// Merge consecutive same-role messages
	var merged []CompletionMessage
	for i := range rest {
		msg := &rest[i]
		if len(merged) > 0 && merged[len(merged)-1].Role == msg.Role {
			merged[len(merged)-1].Content += "\n\n" + msg.Content
			continue
		}
		merged = append(merged, *msg)
	}

	if merged[0].Role != RoleUser {
		return "", nil, fmt.Errorf("first message must be user role, got: %s", merged[0].Role)
	}
	if merged[len(merged)-1].Role != RoleUser {
		return "", nil, fmt.Errorf("last message must be user role, got: %s", merged[len(merged)-1].Role)
	}

	return strings.Join(systemParts, "\n\n"), merged, nil
}

// Complete implements the LLMClient interface.
func (c *ClaudeClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	systemPrompt, alternating, err := splitSystemPrompt(in.Messages)
	if err != nil {
		return CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, fmt.Sprintf("message alternation error: %v", err))
	}

	messages := make([]anthropic.MessageParam, 0, len(alternating))
	for i := range alternating {
		msg := &alternating[i]
		messages = append(messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRole(msg.Role),
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)},
		})
	}

	params := anthropic.MessageNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   int64(in.MaxTokens),
		Temperature: anthropic.Float(float64(in.Temperature)),
	}

	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{
			Text: systemPrompt,
			Type: "text",
		}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return CompletionResponse{}, classifyAnthropicError(err)
	}

	if resp == nil || len(resp.Content) == 0 {
		return CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "received empty or nil response from Claude API")
	}

	var responseText string
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			responseText += block.AsText().Text
		}
	}

	return CompletionResponse{
		Content:    responseText,
		StopReason: string(resp.StopReason),
	}, nil
}

// GetModelName returns the model name for this client.
func (c *ClaudeClient) GetModelName() string {
	return string(c.model)
}

// classifyAnthropicError maps Anthropic SDK errors to structured error types.
func classifyAnthropicError(err error) *llmerrors.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "request timeout")
	}
	if errors.Is(err, context.Canceled) {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "request canceled")
	}

	errStr := err.Error()
	statusCode := extractStatusCode(errStr)

	switch statusCode {
	case 401:
		return llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeAuth, statusCode, "authentication failed - check API key")
	case 403:
		return llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeAuth, statusCode, "permission denied - check API access")
	case 429:
		return llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeRateLimit, statusCode, "rate limit exceeded")
	case 400:
		return llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeBadPrompt, statusCode, "bad request - check prompt format and parameters")
	case 500, 502, 503, 504:
		return llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeTransient, statusCode, "server error")
	}

	lower := strings.ToLower(errStr)
	switch {
	case strings.Contains(lower, "timeout"),
		strings.Contains(lower, "connection"),
		strings.Contains(lower, "network"),
		strings.Contains(lower, "eof"),
		strings.Contains(lower, "reset"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "network or connection error")
	case strings.Contains(lower, "rate"), strings.Contains(lower, "quota"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeRateLimit, err, "rate limiting detected")
	case strings.Contains(lower, "auth"), strings.Contains(lower, "unauthorized"), strings.Contains(lower, "api key"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeAuth, err, "authentication error")
	case strings.Contains(lower, "invalid"), strings.Contains(lower, "malformed"), strings.Contains(lower, "too large"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "prompt or request error")
	}

	return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnknown, err, "unclassified error")
}

// extractStatusCode attempts to extract an HTTP status code from an error string.
// SDK errors typically include the status code in the message.
func extractStatusCode(errStr string) int {
	lower := strings.ToLower(errStr)
	patterns := []string{"status code: ", "status: ", "http "}

	for _, pattern := range patterns {
		idx := strings.Index(lower, pattern)
		if idx == -1 {
			continue
		}
		rest := lower[idx+len(pattern):]
		end := 0
		for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
			end++
		}
		if end == 3 {
			if code, err := strconv.Atoi(rest[:end]); err == nil {
				return code
			}
		}
	}
	return 0
}
