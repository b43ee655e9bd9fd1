package intent

import (
	"testing"

	"halobot/pkg/catalog"
	"halobot/pkg/config"
	"halobot/pkg/proto"
)

func testClassifier() *Classifier {
	return NewClassifier(catalog.New([]config.CatalogItem{
		{Name: "Chocolate Cake", Price: 20000, Available: true},
		{Name: "Vanilla Cake", Price: 18000, Available: true},
		{Name: "Meat Pie", Price: 1500, Available: true},
	}))
}

func TestClassifyPriorities(t *testing.T) {
	c := testClassifier()

	tests := []struct {
		name       string
		text       string
		wantLabel  proto.IntentLabel
		wantRating int
		wantItem   string
	}{
		{"bare digit rating", "5", proto.IntentRatingFeedback, 5, ""},
		{"stars phrase", "I give you 5 stars", proto.IntentRatingFeedback, 5, ""},
		{"star word", "five stars, amazing!", proto.IntentRatingFeedback, 5, ""},
		{"one star", "1 star. terrible", proto.IntentRatingFeedback, 1, ""},

		{"paid claim", "I have paid", proto.IntentPaymentAttestation, 0, ""},
		{"sent money", "just sent the money now", proto.IntentPaymentAttestation, 0, ""},
		{"transfer done", "I transferred the money this morning", proto.IntentPaymentAttestation, 0, ""},
		{"payment done", "payment done", proto.IntentPaymentAttestation, 0, ""},

		{"picked it up", "I have picked it up", proto.IntentPickupConfirmation, 0, ""},
		{"collected", "collected my order, thanks", proto.IntentPickupConfirmation, 0, ""},
		{"got delivery", "got the delivery yesterday", proto.IntentPickupConfirmation, 0, ""},

		{"order with item", "I want one chocolate cake", proto.IntentOrder, 0, "Chocolate Cake"},
		{"buy item", "can I buy a meat pie", proto.IntentOrder, 0, "Meat Pie"},
		{"price query with item", "how much is vanilla cake", proto.IntentOrder, 0, "Vanilla Cake"},

		{"greeting", "hello, are you open?", proto.IntentNone, 0, ""},
		{"purchase verb without item", "I want to ask a question", proto.IntentNone, 0, ""},
		{"empty", "   ", proto.IntentNone, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.text)
			if got.Label != tt.wantLabel {
				t.Errorf("Classify(%q).Label = %s, want %s", tt.text, got.Label, tt.wantLabel)
			}
			if got.Rating != tt.wantRating {
				t.Errorf("Classify(%q).Rating = %d, want %d", tt.text, got.Rating, tt.wantRating)
			}
			if got.ItemName != tt.wantItem {
				t.Errorf("Classify(%q).ItemName = %q, want %q", tt.text, got.ItemName, tt.wantItem)
			}
		})
	}
}

// "I want vanilla cake" once misread as a payment attestation because broad
// purchase words leaked into the payment matcher. It must classify as an order.
func TestPurchaseWordsNeverAttestPayment(t *testing.T) {
	c := testClassifier()

	for _, text := range []string{
		"I want vanilla cake",
		"I want to buy chocolate cake",
		"can I get a meat pie",
	} {
		got := c.Classify(text)
		if got.Label == proto.IntentPaymentAttestation {
			t.Errorf("Classify(%q) misread purchase intent as payment attestation", text)
		}
		if got.Label != proto.IntentOrder {
			t.Errorf("Classify(%q) = %s, want order_intent", text, got.Label)
		}
	}
}

// "I have picked it up" once re-triggered order creation because the word
// "pickup" matched catalog fulfillment vocabulary. Receipt phrasing must win.
func TestReceiptPhrasingIsNotAnOrder(t *testing.T) {
	c := testClassifier()

	got := c.Classify("I have picked it up")
	if got.Label != proto.IntentPickupConfirmation {
		t.Errorf("Classify(receipt phrase) = %s, want pickup_confirmation", got.Label)
	}

	// Choosing pickup as fulfillment is not a receipt confirmation
	got = c.Classify("pickup please")
	if got.Label == proto.IntentPickupConfirmation {
		t.Error("Fulfillment choice 'pickup' must not classify as pickup_confirmation")
	}
}

// Rating phrasing outranks everything, even when an open order could make
// other matchers plausible.
func TestRatingOutranksOtherIntents(t *testing.T) {
	c := testClassifier()

	got := c.Classify("I give you 5 stars for the chocolate cake I ordered")
	if got.Label != proto.IntentRatingFeedback {
		t.Errorf("Classify(rating over order words) = %s, want rating_feedback", got.Label)
	}
	if got.Rating != 5 {
		t.Errorf("Expected rating 5, got %d", got.Rating)
	}
}

func TestOrderNumberSlot(t *testing.T) {
	c := testClassifier()

	got := c.Classify("I have paid for ord-0042")
	if got.Label != proto.IntentPaymentAttestation {
		t.Fatalf("Expected payment_attestation, got %s", got.Label)
	}
	if got.OrderNumber != "ORD-0042" {
		t.Errorf("Expected order number ORD-0042, got %q", got.OrderNumber)
	}
}
