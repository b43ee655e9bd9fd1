package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"halobot/pkg/llm/llmerrors"
)

// OllamaClient wraps the Ollama API client to implement the LLMClient interface.
// Ollama is a local LLM runtime for running open-source models without API keys.
type OllamaClient struct {
	client *api.Client
	model  string
}

// NewOllamaClient creates a new Ollama client with a specific model.
// hostURL should be the Ollama server URL (e.g., "http://localhost:11434").
func NewOllamaClient(hostURL, model string) LLMClient {
	parsedURL, err := url.Parse(hostURL)
	if err != nil || hostURL == "" {
		parsedURL, _ = url.Parse("http://localhost:11434")
	}

	return &OllamaClient{
		client: api.NewClient(parsedURL, http.DefaultClient),
		model:  model,
	}
}

// Complete implements the LLMClient interface.
func (o *OllamaClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	if len(in.Messages) == 0 {
		return CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "message list cannot be empty")
	}

	messages := make([]api.Message, 0, len(in.Messages))
	for i := range in.Messages {
		msg := &in.Messages[i]
		messages = append(messages, api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": in.Temperature,
			"num_predict": in.MaxTokens,
		},
	}

	var response api.ChatResponse
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return CompletionResponse{}, classifyOllamaError(err)
	}

	if strings.TrimSpace(response.Message.Content) == "" {
		return CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "Ollama response contained no text content")
	}

	return CompletionResponse{
		Content:    response.Message.Content,
		StopReason: ollamaStopReason(&response),
	}, nil
}

// GetModelName returns the model name for this client.
func (o *OllamaClient) GetModelName() string {
	return o.model
}

// ollamaStopReason converts Ollama's done_reason to our stop reason format.
func ollamaStopReason(resp *api.ChatResponse) string {
	if !resp.Done {
		return "incomplete"
	}

	switch resp.DoneReason {
	case "stop", "":
		return "end_turn"
	case "length":
		return "max_tokens"
	default:
		return resp.DoneReason
	}
}

// classifyOllamaError converts Ollama errors to structured error types.
func classifyOllamaError(err error) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "connection refused"):
		return llmerrors.NewError(llmerrors.ErrorTypeTransient, fmt.Sprintf("Ollama server not reachable: %v", err))
	case strings.Contains(errStr, "model") && strings.Contains(errStr, "not found"):
		return llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, fmt.Sprintf("Ollama model not found: %v", err))
	case strings.Contains(errStr, "context canceled"), strings.Contains(errStr, "timeout"):
		return llmerrors.NewError(llmerrors.ErrorTypeTransient, fmt.Sprintf("request interrupted: %v", err))
	default:
		return llmerrors.NewError(llmerrors.ErrorTypeUnknown, fmt.Sprintf("Ollama API error: %v", err))
	}
}
