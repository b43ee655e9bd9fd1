package composer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"halobot/pkg/catalog"
	"halobot/pkg/config"
	"halobot/pkg/conversation"
	"halobot/pkg/llm"
	"halobot/pkg/persistence"
	"halobot/pkg/proto"
)

func testConfig() config.Config {
	return config.Config{
		Business: config.BusinessConfig{
			ID:            "biz_test",
			Name:          "Test Bakery",
			CurrencySign:  "₦",
			PickupAddress: "12 Allen Avenue, Ikeja",
			PickupHours:   "9am-6pm",
		},
		LLM: config.LLMConfig{
			Model:       "test-model",
			MaxTokens:   512,
			Temperature: 0.7,
			Timeout:     5 * time.Second,
		},
	}
}

func testCatalog() *catalog.Catalog {
	return catalog.New([]config.CatalogItem{
		{Name: "Chocolate Cake", Price: 20000, Available: true},
		{Name: "Meat Pie", Price: 1500, Available: true},
	})
}

func testConvo(lang proto.Lang, openOrders ...*persistence.Order) *conversation.Context {
	return &conversation.Context{
		Contact:    &persistence.Contact{ID: 1, Phone: "+2348011111111", Language: lang},
		OpenOrders: openOrders,
		Text:       "do you deliver on sundays?",
		Channel:    proto.ChannelWhatsApp,
	}
}

func TestReplyPassesMenuAndOrdersToModel(t *testing.T) {
	mock := llm.NewMockClient("Yes, we deliver on Sundays!")
	c := New(mock, testCatalog(), testConfig())

	order := &persistence.Order{
		OrderNumber: "ORD-0042",
		Status:      proto.StatusPaid,
		TotalAmount: 20000,
		Items:       []persistence.OrderItem{{ItemName: "Chocolate Cake", Quantity: 1}},
	}

	reply := c.Reply(context.Background(), testConvo(proto.LangEnglish, order), "Customer: hi\nShop: hello!")
	if reply != "Yes, we deliver on Sundays!" {
		t.Errorf("Unexpected reply: %q", reply)
	}

	req := mock.LastRequest()
	if req == nil {
		t.Fatal("Expected the mock to be called")
	}
	system := req.Messages[0].Content
	if !strings.Contains(system, "Chocolate Cake") {
		t.Error("System prompt should include the menu")
	}
	if !strings.Contains(system, "ORD-0042") {
		t.Error("System prompt should include the open order")
	}
	user := req.Messages[1].Content
	if !strings.Contains(user, "do you deliver on sundays?") {
		t.Error("User prompt should include the new message")
	}
	if !strings.Contains(user, "Shop: hello!") {
		t.Error("User prompt should include the transcript")
	}
}

func TestReplyFallsBackInContactLanguage(t *testing.T) {
	mock := llm.NewMockClientWithScript(nil, []error{errors.New("model down")})
	c := New(mock, testCatalog(), testConfig())

	reply := c.Reply(context.Background(), testConvo(proto.LangYoruba), "")
	if reply == "" {
		t.Fatal("Fallback reply must not be empty")
	}
	if !strings.Contains(reply, "Ma binu") {
		t.Errorf("Expected Yoruba fallback, got %q", reply)
	}
}

func TestReplyFallsBackOnEmptyContent(t *testing.T) {
	mock := llm.NewMockClient("   ")
	c := New(mock, testCatalog(), testConfig())

	reply := c.Reply(context.Background(), testConvo(proto.LangEnglish), "")
	if !strings.Contains(reply, "try again") {
		t.Errorf("Expected the canned fallback, got %q", reply)
	}
}

func TestReplyFallsBackWhenBudgetSpent(t *testing.T) {
	mock := llm.NewMockClient("a real reply")
	cfg := testConfig()
	cfg.LLM.DailyRequestBudget = 1
	c := New(mock, testCatalog(), cfg)

	first := c.Reply(context.Background(), testConvo(proto.LangEnglish), "")
	if first != "a real reply" {
		t.Fatalf("First reply should hit the model, got %q", first)
	}

	second := c.Reply(context.Background(), testConvo(proto.LangEnglish), "")
	if !strings.Contains(second, "try again") {
		t.Errorf("Expected the canned fallback once the budget is spent, got %q", second)
	}
	if mock.CallCount() != 1 {
		t.Errorf("Model called %d times, want 1", mock.CallCount())
	}
}

func TestExtractDraft(t *testing.T) {
	mock := llm.NewMockClient("Here you go:\n```json\n{\"item_name\": \"Chocolate Cake\", \"quantity\": 2, \"fulfillment\": \"Pick up\", \"delivery_address\": \"\"}\n```")
	c := New(mock, testCatalog(), testConfig())

	convo := testConvo(proto.LangEnglish)
	convo.Text = "I want 2 chocolate cakes for pickup"

	draft := c.ExtractDraft(context.Background(), convo)
	if draft == nil {
		t.Fatal("Expected a parsed draft")
	}
	if draft.ItemName != "Chocolate Cake" || draft.Quantity != 2 || draft.Fulfillment != "pickup" {
		t.Errorf("Unexpected draft: %+v", draft)
	}
	if got := draft.MissingField(); got != "" {
		t.Errorf("Draft should be complete, missing %q", got)
	}

	req := mock.LastRequest()
	if req.Temperature != llm.TemperatureDeterministic {
		t.Errorf("Extraction should run at deterministic temperature, got %v", req.Temperature)
	}
}

func TestExtractDraftUnparseable(t *testing.T) {
	mock := llm.NewMockClient("I think they want a cake?")
	c := New(mock, testCatalog(), testConfig())

	if draft := c.ExtractDraft(context.Background(), testConvo(proto.LangEnglish)); draft != nil {
		t.Errorf("Expected nil draft for prose output, got %+v", draft)
	}
}

func TestDraftMissingField(t *testing.T) {
	cases := []struct {
		name  string
		draft OrderDraft
		want  string
	}{
		{"no item", OrderDraft{}, "item"},
		{"unstated quantity is not missing", OrderDraft{ItemName: "Meat Pie", Fulfillment: "pickup"}, ""},
		{"no fulfillment", OrderDraft{ItemName: "Meat Pie", Quantity: 3}, "fulfillment"},
		{"delivery without address", OrderDraft{ItemName: "Meat Pie", Quantity: 3, Fulfillment: "delivery"}, "delivery_address"},
		{"pickup complete", OrderDraft{ItemName: "Meat Pie", Quantity: 3, Fulfillment: "pickup"}, ""},
		{"delivery complete", OrderDraft{ItemName: "Meat Pie", Quantity: 3, Fulfillment: "delivery", DeliveryAddress: "4 Marina Rd"}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.draft.MissingField(); got != tc.want {
				t.Errorf("MissingField() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseDraftNormalizesFulfillment(t *testing.T) {
	draft, err := parseDraft(`{"item_name": " Meat Pie ", "quantity": -1, "fulfillment": "COURIER"}`)
	if err != nil {
		t.Fatalf("parseDraft failed: %v", err)
	}
	if draft.ItemName != "Meat Pie" {
		t.Errorf("Item name not trimmed: %q", draft.ItemName)
	}
	if draft.Fulfillment != "" {
		t.Errorf("Unknown fulfillment should be cleared, got %q", draft.Fulfillment)
	}
	if draft.Quantity != 0 {
		t.Errorf("Negative quantity should be cleared, got %d", draft.Quantity)
	}
}
