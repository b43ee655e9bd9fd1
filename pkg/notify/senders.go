package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"halobot/pkg/logx"
	"halobot/pkg/proto"
)

// GatewaySender posts messages to an external messaging gateway
// (a WhatsApp/SMS bridge) as JSON.
type GatewaySender struct {
	client   *http.Client
	endpoint string
	apiKey   string
	channel  proto.Channel
}

// NewGatewaySender creates a sender that POSTs to the given gateway endpoint.
func NewGatewaySender(endpoint, apiKey string, channel proto.Channel) *GatewaySender {
	return &GatewaySender{
		client:   &http.Client{},
		endpoint: endpoint,
		apiKey:   apiKey,
		channel:  channel,
	}
}

type gatewayPayload struct {
	// MessageID lets the gateway deduplicate retried sends.
	MessageID string `json:"message_id"`
	To        string `json:"to"`
	Body      string `json:"body"`
	Channel   string `json:"channel"`
}

// Send implements the Sender interface.
func (g *GatewaySender) Send(ctx context.Context, phone, content string) error {
	body, err := json.Marshal(gatewayPayload{
		MessageID: uuid.NewString(),
		To:        phone,
		Body:      content,
		Channel:   string(g.channel),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal gateway payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	return nil
}

// Channel implements the Sender interface.
func (g *GatewaySender) Channel() proto.Channel {
	return g.channel
}

// ConsoleSender logs messages instead of delivering them. Used in development
// and as the web-chat backend where replies return synchronously.
type ConsoleSender struct {
	logger  *logx.Logger
	channel proto.Channel
}

// NewConsoleSender creates a log-only sender for the given channel.
func NewConsoleSender(channel proto.Channel) *ConsoleSender {
	return &ConsoleSender{
		logger:  logx.NewLogger("console-sender"),
		channel: channel,
	}
}

// Send implements the Sender interface.
func (c *ConsoleSender) Send(_ context.Context, phone, content string) error {
	c.logger.Info("💬 [%s] -> %s: %s", c.channel, phone, content)
	return nil
}

// Channel implements the Sender interface.
func (c *ConsoleSender) Channel() proto.Channel {
	return c.channel
}
