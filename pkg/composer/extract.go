package composer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"halobot/pkg/conversation"
	"halobot/pkg/llm"
)

// OrderDraft holds the structured fields extracted from a purchase message.
// Empty string and zero mean the customer did not state that field.
type OrderDraft struct {
	ItemName        string `json:"item_name"`
	Fulfillment     string `json:"fulfillment"` // pickup or delivery
	DeliveryAddress string `json:"delivery_address"`
	Quantity        int    `json:"quantity"`
}

// MissingField names the first field still needed before the draft can become
// an order, or "" when the draft is complete. Quantity is never missing: an
// unstated quantity defaults to one at order creation.
func (d *OrderDraft) MissingField() string {
	switch {
	case d.ItemName == "":
		return "item"
	case d.Fulfillment == "":
		return "fulfillment"
	case d.Fulfillment == "delivery" && d.DeliveryAddress == "":
		return "delivery_address"
	}
	return ""
}

const extractSystemPrompt = `You extract order details from one customer message.
Respond with ONLY a JSON object, no prose, in exactly this shape:
{"item_name": "", "quantity": 0, "fulfillment": "", "delivery_address": ""}
fulfillment is "pickup", "delivery", or "" when not stated.
Use "" for any field the customer did not state and 0 for an unstated quantity. Never guess.`

// ExtractDraft pulls structured order fields out of a free-form purchase
// message at deterministic temperature. Returns nil when the model fails or
// its output cannot be parsed; callers then fall back to follow-up questions.
func (c *Composer) ExtractDraft(ctx context.Context, convo *conversation.Context) *OrderDraft {
	system := extractSystemPrompt + "\n\nMenu items:\n" + c.catalog.ListText(c.cfg.Business.CurrencySign)
	messages := []llm.CompletionMessage{
		llm.NewSystemMessage(system),
		llm.NewUserMessage(convo.Text),
	}

	req := llm.NewCompletionRequest(messages)
	req.Temperature = llm.TemperatureDeterministic
	req.MaxTokens = 256

	resp, err := c.complete(ctx, req, "extract")
	if err != nil {
		c.logger.Warn("order extraction failed: %v", err)
		return nil
	}

	draft, err := parseDraft(resp.Content)
	if err != nil {
		c.logger.Warn("order extraction produced unusable output: %v", err)
		return nil
	}
	return draft
}

// parseDraft decodes the first JSON object in the model output, tolerating
// prose or code fences around it.
func parseDraft(raw string) (*OrderDraft, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model output")
	}

	var draft OrderDraft
	if err := json.Unmarshal([]byte(raw[start:end+1]), &draft); err != nil {
		return nil, fmt.Errorf("failed to decode order draft: %w", err)
	}

	draft.ItemName = strings.TrimSpace(draft.ItemName)
	draft.DeliveryAddress = strings.TrimSpace(draft.DeliveryAddress)
	draft.Fulfillment = strings.ToLower(strings.TrimSpace(draft.Fulfillment))
	switch draft.Fulfillment {
	case "pick up", "pick-up":
		draft.Fulfillment = "pickup"
	case "", "pickup", "delivery":
	default:
		draft.Fulfillment = ""
	}
	if draft.Quantity < 0 {
		draft.Quantity = 0
	}
	return &draft, nil
}
