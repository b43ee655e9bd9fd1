package composer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"halobot/pkg/catalog"
	"halobot/pkg/config"
	"halobot/pkg/conversation"
	"halobot/pkg/intent"
	"halobot/pkg/limiter"
	"halobot/pkg/llm"
	"halobot/pkg/llm/llmerrors"
	"halobot/pkg/logx"
	"halobot/pkg/metrics"
	"halobot/pkg/proto"
)

const defaultLLMTimeout = 30 * time.Second

// Composer produces free-form replies through the LLM for messages that
// matched no deterministic intent.
type Composer struct {
	client  llm.LLMClient
	catalog *catalog.Catalog
	limits  *limiter.Limiter
	cfg     config.Config
	logger  *logx.Logger
}

// New creates a composer over the given LLM client and catalog. Usage caps
// come from the LLM config; zero caps mean unlimited.
func New(client llm.LLMClient, cat *catalog.Catalog, cfg config.Config) *Composer {
	return &Composer{
		client:  client,
		catalog: cat,
		limits:  limiter.New(cfg.LLM.MaxTokensPerMinute, cfg.LLM.DailyRequestBudget),
		cfg:     cfg,
		logger:  logx.NewLogger("composer"),
	}
}

// Reply composes a conversational answer to the customer's message. It never
// returns an error: when the model is unavailable the customer gets a canned
// reply in their own language instead of silence.
func (c *Composer) Reply(ctx context.Context, convo *conversation.Context, transcript string) string {
	messages := []llm.CompletionMessage{
		llm.NewSystemMessage(c.systemPrompt(convo)),
		llm.NewUserMessage(c.userPrompt(convo, transcript)),
	}

	req := llm.NewCompletionRequest(messages)
	if c.cfg.LLM.MaxTokens > 0 {
		req.MaxTokens = c.cfg.LLM.MaxTokens
	}
	req.Temperature = c.cfg.LLM.Temperature

	resp, err := c.complete(ctx, req, "reply")
	if err != nil {
		c.logger.Warn("reply composition failed, using canned fallback: %v", err)
		return intent.Translate("fallback", convo.Contact.Language)
	}

	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return intent.Translate("fallback", convo.Contact.Language)
	}
	return content
}

// complete runs one LLM call under the configured timeout and records metrics.
// Local usage caps are checked before the provider is touched.
func (c *Composer) complete(ctx context.Context, req llm.CompletionRequest, purpose string) (llm.CompletionResponse, error) {
	if err := c.limits.Reserve(req.MaxTokens); err != nil {
		errType := llmerrors.ErrorTypeRateLimit
		metrics.Default().ObserveLLMRequest(c.client.GetModelName(), purpose, false, errType.String(), 0)
		return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(errType, err, "local usage cap hit")
	}

	timeout := c.cfg.LLM.Timeout
	if timeout <= 0 {
		timeout = defaultLLMTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.Complete(ctx, req)

	errType := ""
	if err != nil {
		errType = llmerrors.TypeOf(err).String()
	}
	metrics.Default().ObserveLLMRequest(c.client.GetModelName(), purpose, err == nil, errType, time.Since(start))

	return resp, err
}

func (c *Composer) systemPrompt(convo *conversation.Context) string {
	biz := c.cfg.Business

	var b strings.Builder
	fmt.Fprintf(&b, "You are the customer assistant for %s, a small business selling over chat.\n", biz.Name)
	b.WriteString("Keep replies short, warm, and suitable for a messaging app. ")
	b.WriteString("Never invent prices, discounts, or order status. ")
	b.WriteString("If you don't know something, say so and offer to pass the question to the owner.\n")
	if biz.PickupAddress != "" {
		fmt.Fprintf(&b, "Pickup address: %s (%s).\n", biz.PickupAddress, biz.PickupHours)
	}

	b.WriteString("\nMenu:\n")
	b.WriteString(c.catalog.ListText(biz.CurrencySign))
	b.WriteString("\n")

	if len(convo.OpenOrders) > 0 {
		b.WriteString("\nThe customer's open orders:\n")
		for _, order := range convo.OpenOrders {
			fmt.Fprintf(&b, "- %s: %s (%s%.0f, status %s)\n",
				order.OrderNumber, order.ItemSummary(), biz.CurrencySign, order.TotalAmount, order.Status)
		}
	}

	if lang := languageName(convo.Contact.Language); lang != "" {
		fmt.Fprintf(&b, "\nThe customer prefers %s. Reply in %s.\n", lang, lang)
	}

	return b.String()
}

func (c *Composer) userPrompt(convo *conversation.Context, transcript string) string {
	var b strings.Builder
	if transcript != "" {
		b.WriteString("Conversation so far:\n")
		b.WriteString(transcript)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "The customer's new message: %s\n\nWrite the shop's reply.", convo.Text)
	return b.String()
}

func languageName(lang proto.Lang) string {
	switch lang {
	case proto.LangYoruba:
		return "Yoruba"
	case proto.LangHausa:
		return "Hausa"
	case proto.LangIgbo:
		return "Igbo"
	default:
		return ""
	}
}
