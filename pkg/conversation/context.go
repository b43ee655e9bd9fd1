// Package conversation builds immutable per-message context snapshots.
//
// A Context is assembled once at the start of handling an inbound message and
// never mutated afterwards, so every decision in that handling pass sees the
// same view of history and open orders.
package conversation

import (
	"fmt"
	"strings"

	"halobot/pkg/persistence"
	"halobot/pkg/proto"
	"halobot/pkg/utils"
)

// Context is the immutable snapshot handed to the engine for one inbound message.
type Context struct {
	Contact    *persistence.Contact
	Recent     []*persistence.MessageLog // oldest first
	OpenOrders []*persistence.Order      // newest first
	Text       string
	Channel    proto.Channel
}

// Builder assembles Context snapshots from the store.
type Builder struct {
	store       *persistence.Store
	counter     *utils.TokenCounter
	turns       int
	tokenBudget int
}

// NewBuilder creates a context builder.
// turns bounds how many recent messages are loaded; tokenBudget caps the
// rendered transcript handed to the LLM.
func NewBuilder(store *persistence.Store, turns, tokenBudget int) *Builder {
	counter, err := utils.NewTokenCounter("gpt-4")
	if err != nil {
		counter = nil // CountTokens falls back to character estimation
	}
	return &Builder{
		store:       store,
		counter:     counter,
		turns:       turns,
		tokenBudget: tokenBudget,
	}
}

// Build loads the contact's recent history and open orders into a snapshot.
func (b *Builder) Build(contact *persistence.Contact, text string, channel proto.Channel) (*Context, error) {
	recent, err := b.store.RecentMessages(contact.ID, b.turns)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}

	openOrders, err := b.store.OpenOrdersByContact(contact.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load open orders: %w", err)
	}

	return &Context{
		Contact:    contact,
		Recent:     recent,
		OpenOrders: openOrders,
		Text:       text,
		Channel:    channel,
	}, nil
}

// Transcript renders the recent history as prompt text, oldest first,
// trimmed from the front to fit the token budget.
func (b *Builder) Transcript(ctx *Context) string {
	lines := make([]string, 0, len(ctx.Recent))
	for _, msg := range ctx.Recent {
		speaker := "Customer"
		if msg.Direction == proto.DirectionOut {
			speaker = "Shop"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", speaker, msg.Content))
	}

	transcript := strings.Join(lines, "\n")
	if b.tokenBudget <= 0 {
		return transcript
	}

	// Drop oldest lines until the transcript fits
	for len(lines) > 1 && b.countTokens(transcript) > b.tokenBudget {
		lines = lines[1:]
		transcript = strings.Join(lines, "\n")
	}
	return transcript
}

func (b *Builder) countTokens(text string) int {
	if b.counter == nil {
		return len(text) / 4
	}
	return b.counter.CountTokens(text)
}

// SingleOpenOrder returns the only open order, or nil when there are zero or
// several. Callers with several must disambiguate, never guess.
func (c *Context) SingleOpenOrder() *persistence.Order {
	if len(c.OpenOrders) == 1 {
		return c.OpenOrders[0]
	}
	return nil
}

// OrderByNumber finds an open order by its ORD-NNNN reference.
func (c *Context) OrderByNumber(number string) *persistence.Order {
	for _, order := range c.OpenOrders {
		if strings.EqualFold(order.OrderNumber, number) {
			return order
		}
	}
	return nil
}

// OrdersInStatus filters the open orders by lifecycle state.
func (c *Context) OrdersInStatus(status proto.OrderStatus) []*persistence.Order {
	var out []*persistence.Order
	for _, order := range c.OpenOrders {
		if order.Status == status {
			out = append(out, order)
		}
	}
	return out
}
