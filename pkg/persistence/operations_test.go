package persistence

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"halobot/pkg/proto"
)

// Helper function to create a new database for each test.
func createTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := InitializeDatabase(dbPath)
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := NewStore(db)
	if err := store.UpsertBusiness(&Business{ID: "biz_test", Name: "Test Bakery", OwnerPhone: "+2348000000000"}); err != nil {
		t.Fatalf("Failed to upsert business: %v", err)
	}
	return store
}

func seedContact(t *testing.T, store *Store, phone string) *Contact {
	t.Helper()
	contact, created, err := store.ResolveOrCreateContact("biz_test", phone)
	if err != nil {
		t.Fatalf("Failed to create contact: %v", err)
	}
	if !created {
		t.Fatalf("Expected contact %s to be newly created", phone)
	}
	return contact
}

func seedOrder(t *testing.T, store *Store, contactID int64, status proto.OrderStatus) *Order {
	t.Helper()
	order := &Order{
		BusinessID:  "biz_test",
		ContactID:   contactID,
		TotalAmount: 20000,
		Fulfillment: proto.FulfillmentPickup,
		Status:      status,
		Channel:     proto.ChannelWhatsApp,
		Items: []OrderItem{
			{ItemName: "Chocolate Cake", Quantity: 1, UnitPrice: 20000},
		},
	}
	if err := store.CreateOrder(order); err != nil {
		t.Fatalf("Failed to create order: %v", err)
	}
	return order
}

func TestContactOperations(t *testing.T) {
	t.Run("ResolveOrCreate", func(t *testing.T) {
		store := createTestStore(t)

		first, created, err := store.ResolveOrCreateContact("biz_test", "+2348011111111")
		if err != nil {
			t.Fatalf("Failed to resolve contact: %v", err)
		}
		if !created {
			t.Error("Expected first resolution to create the contact")
		}
		if first.Language != proto.LangEnglish {
			t.Errorf("Expected default language en, got %s", first.Language)
		}

		second, created, err := store.ResolveOrCreateContact("biz_test", "+2348011111111")
		if err != nil {
			t.Fatalf("Failed to resolve contact again: %v", err)
		}
		if created {
			t.Error("Expected second resolution to reuse the contact")
		}
		if second.ID != first.ID {
			t.Errorf("Expected same contact ID, got %d and %d", first.ID, second.ID)
		}
	})

	t.Run("ConsentAndLanguage", func(t *testing.T) {
		store := createTestStore(t)
		contact := seedContact(t, store, "+2348022222222")

		if err := store.UpdateContactConsent(contact.ID, true); err != nil {
			t.Fatalf("Failed to update consent: %v", err)
		}
		if err := store.UpdateContactLanguage(contact.ID, proto.LangYoruba); err != nil {
			t.Fatalf("Failed to update language: %v", err)
		}

		updated, err := store.GetContact(contact.ID)
		if err != nil {
			t.Fatalf("Failed to reload contact: %v", err)
		}
		if !updated.OptIn {
			t.Error("Expected opt_in to be set")
		}
		if updated.ConsentAt == nil {
			t.Error("Expected consent_at to be stamped")
		}
		if updated.Language != proto.LangYoruba {
			t.Errorf("Expected language yo, got %s", updated.Language)
		}
	})

	t.Run("LoyaltyPoints", func(t *testing.T) {
		store := createTestStore(t)
		contact := seedContact(t, store, "+2348033333333")

		balance, err := store.AddLoyaltyPoints(contact.ID, 200)
		if err != nil {
			t.Fatalf("Failed to add loyalty points: %v", err)
		}
		if balance != 200 {
			t.Errorf("Expected balance 200, got %d", balance)
		}

		balance, err = store.AddLoyaltyPoints(contact.ID, 50)
		if err != nil {
			t.Fatalf("Failed to add more points: %v", err)
		}
		if balance != 250 {
			t.Errorf("Expected balance 250, got %d", balance)
		}
	})
}

func TestMessageLog(t *testing.T) {
	t.Run("AppendAndRecent", func(t *testing.T) {
		store := createTestStore(t)
		contact := seedContact(t, store, "+2348044444444")

		contents := []string{"hi", "I want a cake", "ok what flavor?"}
		for i, content := range contents {
			direction := proto.DirectionIn
			if i == 2 {
				direction = proto.DirectionOut
			}
			msg := &MessageLog{
				ContactID: contact.ID,
				Direction: direction,
				Channel:   proto.ChannelWhatsApp,
				Content:   content,
				Status:    "received",
			}
			if err := store.AppendMessage(msg); err != nil {
				t.Fatalf("Failed to append message %d: %v", i, err)
			}
		}

		recent, err := store.RecentMessages(contact.ID, 10)
		if err != nil {
			t.Fatalf("Failed to load recent messages: %v", err)
		}
		if len(recent) != 3 {
			t.Fatalf("Expected 3 messages, got %d", len(recent))
		}
		// Oldest first
		if recent[0].Content != "hi" || recent[2].Content != "ok what flavor?" {
			t.Errorf("Messages not in chronological order: %q ... %q", recent[0].Content, recent[2].Content)
		}
	})

	t.Run("TransportDedup", func(t *testing.T) {
		store := createTestStore(t)
		contact := seedContact(t, store, "+2348055555555")

		msg := &MessageLog{
			ContactID:      contact.ID,
			TransportMsgID: "wamid.ABC123",
			Direction:      proto.DirectionIn,
			Channel:        proto.ChannelWhatsApp,
			Content:        "I have paid",
			Status:         "received",
		}
		if err := store.AppendMessage(msg); err != nil {
			t.Fatalf("Failed to append message: %v", err)
		}

		dup := &MessageLog{
			ContactID:      contact.ID,
			TransportMsgID: "wamid.ABC123",
			Direction:      proto.DirectionIn,
			Channel:        proto.ChannelWhatsApp,
			Content:        "I have paid",
			Status:         "received",
		}
		err := store.AppendMessage(dup)
		if !errors.Is(err, ErrDuplicateMessage) {
			t.Errorf("Expected ErrDuplicateMessage, got %v", err)
		}

		seen, err := store.HasSeenTransportMsgID("wamid.ABC123")
		if err != nil {
			t.Fatalf("Failed to check transport id: %v", err)
		}
		if !seen {
			t.Error("Expected transport id to be marked as seen")
		}

		// Empty transport IDs never collide
		for i := 0; i < 2; i++ {
			if err := store.AppendMessage(&MessageLog{
				ContactID: contact.ID,
				Direction: proto.DirectionOut,
				Channel:   proto.ChannelWhatsApp,
				Content:   "reply",
				Status:    "sent",
			}); err != nil {
				t.Fatalf("Failed to append untracked message %d: %v", i, err)
			}
		}
	})
}

func TestOrderOperations(t *testing.T) {
	t.Run("CreateAndFetch", func(t *testing.T) {
		store := createTestStore(t)
		contact := seedContact(t, store, "+2348066666666")

		order := seedOrder(t, store, contact.ID, proto.StatusPendingPayment)
		if order.OrderNumber == "" {
			t.Fatal("Expected order number to be generated")
		}

		fetched, err := store.GetOrderByNumber("biz_test", order.OrderNumber)
		if err != nil {
			t.Fatalf("Failed to fetch order by number: %v", err)
		}
		if fetched.ID != order.ID {
			t.Errorf("Expected order ID %d, got %d", order.ID, fetched.ID)
		}
		if len(fetched.Items) != 1 || fetched.Items[0].ItemName != "Chocolate Cake" {
			t.Errorf("Expected one Chocolate Cake item, got %+v", fetched.Items)
		}

		reloaded, err := store.GetContact(contact.ID)
		if err != nil {
			t.Fatalf("Failed to reload contact: %v", err)
		}
		if reloaded.OrderCount != 1 {
			t.Errorf("Expected order count 1, got %d", reloaded.OrderCount)
		}
	})

	t.Run("OpenOrders", func(t *testing.T) {
		store := createTestStore(t)
		contact := seedContact(t, store, "+2348077777777")

		open := seedOrder(t, store, contact.ID, proto.StatusPendingPayment)
		done := seedOrder(t, store, contact.ID, proto.StatusPendingPayment)

		// Walk the second order to completion so it drops out of the open set
		chain := []proto.OrderStatus{
			proto.StatusAwaitingConfirmation,
			proto.StatusPaid,
			proto.StatusPreparing,
			proto.StatusReadyForPickup,
			proto.StatusCompleted,
		}
		from := proto.StatusPendingPayment
		for _, to := range chain {
			if err := store.TransitionOrder(done.ID, from, to); err != nil {
				t.Fatalf("Failed transition %s -> %s: %v", from, to, err)
			}
			from = to
		}

		orders, err := store.OpenOrdersByContact(contact.ID)
		if err != nil {
			t.Fatalf("Failed to list open orders: %v", err)
		}
		if len(orders) != 1 || orders[0].ID != open.ID {
			t.Errorf("Expected only order %d open, got %+v", open.ID, orders)
		}

		completed, err := store.GetOrder(done.ID)
		if err != nil {
			t.Fatalf("Failed to reload completed order: %v", err)
		}
		if completed.CompletedAt == nil || completed.ApprovedAt == nil || completed.ReadyAt == nil {
			t.Error("Expected lifecycle timestamps to be stamped")
		}
	})

	t.Run("TransitionGuard", func(t *testing.T) {
		store := createTestStore(t)
		contact := seedContact(t, store, "+2348088888888")
		order := seedOrder(t, store, contact.ID, proto.StatusPendingPayment)

		if err := store.TransitionOrder(order.ID, proto.StatusPendingPayment, proto.StatusAwaitingConfirmation); err != nil {
			t.Fatalf("Failed first transition: %v", err)
		}

		// Second identical attestation must hit the guard
		err := store.TransitionOrder(order.ID, proto.StatusPendingPayment, proto.StatusAwaitingConfirmation)
		if !errors.Is(err, ErrGuardFailed) {
			t.Errorf("Expected ErrGuardFailed, got %v", err)
		}

		// Invalid transitions are rejected before touching the database
		err = store.TransitionOrder(order.ID, proto.StatusAwaitingConfirmation, proto.StatusCompleted)
		if err == nil || errors.Is(err, ErrGuardFailed) {
			t.Errorf("Expected invalid transition error, got %v", err)
		}
	})

	t.Run("StalePendingOrders", func(t *testing.T) {
		store := createTestStore(t)
		contact := seedContact(t, store, "+2348099999999")
		order := seedOrder(t, store, contact.ID, proto.StatusPendingPayment)

		// Cutoff in the future makes the just-created order stale
		stale, err := store.StalePendingOrders("biz_test", time.Now().Add(time.Hour))
		if err != nil {
			t.Fatalf("Failed to query stale orders: %v", err)
		}
		if len(stale) != 1 || stale[0].ID != order.ID {
			t.Fatalf("Expected order %d stale, got %+v", order.ID, stale)
		}

		if err := store.MarkReminderSent(order.ID); err != nil {
			t.Fatalf("Failed to mark reminder sent: %v", err)
		}

		stale, err = store.StalePendingOrders("biz_test", time.Now().Add(time.Hour))
		if err != nil {
			t.Fatalf("Failed to re-query stale orders: %v", err)
		}
		if len(stale) != 0 {
			t.Errorf("Expected no stale orders after reminder, got %d", len(stale))
		}
	})
}

func TestFeedback(t *testing.T) {
	store := createTestStore(t)
	contact := seedContact(t, store, "+2348010101010")
	order := seedOrder(t, store, contact.ID, proto.StatusPendingPayment)

	good := &Feedback{ContactID: contact.ID, OrderID: order.ID, Rating: 5, Comment: "amazing cake"}
	if err := store.SaveFeedback(good); err != nil {
		t.Fatalf("Failed to save feedback: %v", err)
	}
	if good.Flagged {
		t.Error("5-star feedback should not be flagged")
	}

	bad := &Feedback{ContactID: contact.ID, Rating: 1}
	if err := store.SaveFeedback(bad); err != nil {
		t.Fatalf("Failed to save low rating: %v", err)
	}
	if !bad.Flagged {
		t.Error("1-star feedback should be flagged for follow-up")
	}
}

func TestGenerateOrderNumber(t *testing.T) {
	for i := 0; i < 50; i++ {
		num := GenerateOrderNumber()
		if len(num) != 8 || num[:4] != "ORD-" {
			t.Fatalf("Unexpected order number format: %q", num)
		}
	}
}
