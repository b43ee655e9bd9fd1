package orders

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"halobot/pkg/config"
	"halobot/pkg/loyalty"
	"halobot/pkg/notify"
	"halobot/pkg/persistence"
	"halobot/pkg/proto"
)

type recordedMessage struct {
	phone   string
	content string
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []recordedMessage
}

func (r *recordingSender) Send(_ context.Context, phone, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, recordedMessage{phone: phone, content: content})
	return nil
}

func (r *recordingSender) Channel() proto.Channel { return proto.ChannelWhatsApp }

func (r *recordingSender) sentTo(phone string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.msgs {
		if m.phone == phone {
			out = append(out, m.content)
		}
	}
	return out
}

const (
	testCustomerPhone = "+2348011111111"
	testOwnerPhone    = "+2348000000000"
)

func setup(t *testing.T) (*Service, *persistence.Store, *persistence.Contact, *recordingSender) {
	t.Helper()

	db, err := persistence.InitializeDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := persistence.NewStore(db)
	if err := store.UpsertBusiness(&persistence.Business{ID: "biz_test", Name: "Test Bakery", OwnerPhone: testOwnerPhone}); err != nil {
		t.Fatalf("Failed to upsert business: %v", err)
	}
	contact, _, err := store.ResolveOrCreateContact("biz_test", testCustomerPhone)
	if err != nil {
		t.Fatalf("Failed to create contact: %v", err)
	}

	cfg := config.Config{
		Business: config.BusinessConfig{
			ID:           "biz_test",
			Name:         "Test Bakery",
			OwnerPhone:   testOwnerPhone,
			CurrencySign: "₦",
			Bank:         config.BankDetails{BankName: "GTBank", AccountNumber: "0123456789", AccountName: "Test Bakery Ltd"},
		},
		Loyalty: config.LoyaltyConfig{PointsPerUnit: 0.01},
	}

	sender := &recordingSender{}
	dispatcher := notify.NewDispatcher(store)
	dispatcher.Register(sender)

	svc := NewService(store, dispatcher, loyalty.NewService(store, cfg.Loyalty), cfg)
	return svc, store, contact, sender
}

func createTestOrder(t *testing.T, svc *Service, contact *persistence.Contact) *persistence.Order {
	t.Helper()
	order, err := svc.Create(context.Background(), CreateParams{
		Contact:     contact,
		Item:        &config.CatalogItem{Name: "Chocolate Cake", Price: 20000, Available: true},
		Quantity:    1,
		Fulfillment: proto.FulfillmentPickup,
		Channel:     proto.ChannelWhatsApp,
	})
	if err != nil {
		t.Fatalf("Failed to create order: %v", err)
	}
	return order
}

func TestCreateSendsPaymentInstructions(t *testing.T) {
	svc, store, contact, sender := setup(t)

	order := createTestOrder(t, svc, contact)
	if order.Status != proto.StatusPendingPayment {
		t.Errorf("New order status = %s, want pending_payment", order.Status)
	}
	if order.OrderNumber == "" {
		t.Error("Order number was not assigned")
	}

	msgs := sender.sentTo(testCustomerPhone)
	if len(msgs) != 1 {
		t.Fatalf("Expected 1 message after create, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0], order.OrderNumber) || !strings.Contains(msgs[0], "GTBank") {
		t.Errorf("Payment instructions missing order ref or bank details: %q", msgs[0])
	}

	logged, err := store.RecentMessages(contact.ID, 10)
	if err != nil {
		t.Fatalf("Failed to load message log: %v", err)
	}
	if len(logged) != 1 || logged[0].Direction != proto.DirectionOut {
		t.Errorf("Expected 1 outbound log entry, got %+v", logged)
	}
}

func TestFullLifecycleNotifiesOncePerTransition(t *testing.T) {
	svc, store, contact, sender := setup(t)
	ctx := context.Background()

	order := createTestOrder(t, svc, contact)

	chain := []proto.OrderStatus{
		proto.StatusAwaitingConfirmation,
		proto.StatusPaid,
		proto.StatusPreparing,
		proto.StatusReadyForPickup,
		proto.StatusCompleted,
	}
	for _, next := range chain {
		if err := svc.Transition(ctx, order, next); err != nil {
			t.Fatalf("Transition to %s failed: %v", next, err)
		}
	}

	// 1 payment instruction + 1 notification per transition
	customerMsgs := sender.sentTo(testCustomerPhone)
	if len(customerMsgs) != 1+len(chain) {
		t.Fatalf("Expected %d customer messages, got %d: %v", 1+len(chain), len(customerMsgs), customerMsgs)
	}

	ownerMsgs := sender.sentTo(testOwnerPhone)
	if len(ownerMsgs) != 1 {
		t.Fatalf("Expected 1 owner alert, got %d", len(ownerMsgs))
	}
	if !strings.Contains(ownerMsgs[0], order.OrderNumber) {
		t.Errorf("Owner alert missing order ref: %q", ownerMsgs[0])
	}

	// 20000 at 0.01 points per unit
	final := customerMsgs[len(customerMsgs)-1]
	if !strings.Contains(final, "200 loyalty points") {
		t.Errorf("Completion message missing loyalty award: %q", final)
	}

	updated, err := store.GetContact(contact.ID)
	if err != nil {
		t.Fatalf("Failed to reload contact: %v", err)
	}
	if updated.LoyaltyPoints != 200 {
		t.Errorf("Loyalty balance = %d, want 200", updated.LoyaltyPoints)
	}

	stored, err := store.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("Failed to reload order: %v", err)
	}
	if stored.Status != proto.StatusCompleted {
		t.Errorf("Stored status = %s, want completed", stored.Status)
	}
	if stored.CompletedAt == nil {
		t.Error("CompletedAt was not stamped")
	}
}

func TestLostTransitionRaceSendsNothing(t *testing.T) {
	svc, store, contact, sender := setup(t)
	ctx := context.Background()

	order := createTestOrder(t, svc, contact)
	if err := svc.Transition(ctx, order, proto.StatusAwaitingConfirmation); err != nil {
		t.Fatalf("First attestation failed: %v", err)
	}
	before := len(sender.sentTo(testCustomerPhone))

	// Simulate a second attestation racing in with a stale view of the order.
	stale, err := store.GetOrder(order.ID)
	if err != nil {
		t.Fatalf("Failed to reload order: %v", err)
	}
	stale.Status = proto.StatusPendingPayment

	err = svc.Transition(ctx, stale, proto.StatusAwaitingConfirmation)
	if !errors.Is(err, persistence.ErrGuardFailed) {
		t.Fatalf("Expected ErrGuardFailed, got %v", err)
	}
	if after := len(sender.sentTo(testCustomerPhone)); after != before {
		t.Errorf("Guard failure must not notify: %d -> %d messages", before, after)
	}
}

func TestPaymentRejectionReturnsToPending(t *testing.T) {
	svc, _, contact, sender := setup(t)
	ctx := context.Background()

	order := createTestOrder(t, svc, contact)
	if err := svc.Transition(ctx, order, proto.StatusAwaitingConfirmation); err != nil {
		t.Fatalf("Attestation failed: %v", err)
	}
	if err := svc.Transition(ctx, order, proto.StatusPendingPayment); err != nil {
		t.Fatalf("Rejection failed: %v", err)
	}

	msgs := sender.sentTo(testCustomerPhone)
	last := msgs[len(msgs)-1]
	if !strings.Contains(last, "couldn't verify your payment") {
		t.Errorf("Rejection notice missing: %q", last)
	}
}

func TestCancelRejectsTerminalOrders(t *testing.T) {
	svc, _, contact, _ := setup(t)
	ctx := context.Background()

	order := createTestOrder(t, svc, contact)
	if err := svc.Cancel(ctx, order); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if err := svc.Cancel(ctx, order); err == nil {
		t.Error("Cancelling a cancelled order should fail")
	}
}
