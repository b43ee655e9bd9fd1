package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"halobot/pkg/llm/llmerrors"
)

// OpenAIClient wraps the official OpenAI Go client to implement the LLMClient interface.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient creates a new OpenAI client with a specific model.
func NewOpenAIClient(apiKey, model string) LLMClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{
		client: client,
		model:  model,
	}
}

// Complete implements the LLMClient interface via the Chat Completions API.
func (o *OpenAIClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	if len(in.Messages) == 0 {
		return CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "message list cannot be empty")
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(in.Messages))
	for i := range in.Messages {
		msg := &in.Messages[i]
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		case RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		default:
			return CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, fmt.Sprintf("unsupported role %q", msg.Role))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(o.model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(in.MaxTokens)),
		Temperature:         openai.Float(float64(in.Temperature)),
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return CompletionResponse{}, classifyOpenAIError(err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "received empty response from OpenAI API")
	}

	choice := resp.Choices[0]
	if strings.TrimSpace(choice.Message.Content) == "" {
		return CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "OpenAI response contained no text content")
	}

	return CompletionResponse{
		Content:    choice.Message.Content,
		StopReason: string(choice.FinishReason),
	}, nil
}

// GetModelName returns the model name for this client.
func (o *OpenAIClient) GetModelName() string {
	return o.model
}

// classifyOpenAIError maps OpenAI SDK errors to structured error types.
// The SDK surfaces HTTP status codes in error strings, same as Anthropic's.
func classifyOpenAIError(err error) *llmerrors.Error {
	return classifyAnthropicError(err)
}
