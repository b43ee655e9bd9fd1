// Package orders drives the order lifecycle: creation, guarded state
// transitions, and the single customer notification each transition owes.
package orders

import (
	"context"
	"errors"
	"fmt"

	"halobot/pkg/composer"
	"halobot/pkg/config"
	"halobot/pkg/loyalty"
	"halobot/pkg/logx"
	"halobot/pkg/metrics"
	"halobot/pkg/notify"
	"halobot/pkg/persistence"
	"halobot/pkg/proto"
)

// Service owns the order lifecycle on top of the store's guarded transitions.
type Service struct {
	store      *persistence.Store
	dispatcher *notify.Dispatcher
	loyalty    *loyalty.Service
	cfg        config.Config
	logger     *logx.Logger
}

// NewService wires the order lifecycle service.
func NewService(store *persistence.Store, dispatcher *notify.Dispatcher, loyaltySvc *loyalty.Service, cfg config.Config) *Service {
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		loyalty:    loyaltySvc,
		cfg:        cfg,
		logger:     logx.NewLogger("orders"),
	}
}

// CreateParams carries the resolved fields for a new order.
type CreateParams struct {
	Contact         *persistence.Contact
	Item            *config.CatalogItem
	Quantity        int
	Fulfillment     proto.FulfillmentType
	DeliveryAddress string
	Channel         proto.Channel
}

// Create inserts a pending_payment order and sends the customer the bank
// transfer instructions.
func (s *Service) Create(ctx context.Context, p CreateParams) (*persistence.Order, error) {
	if p.Quantity <= 0 {
		return nil, fmt.Errorf("order quantity must be positive, got %d", p.Quantity)
	}

	order := &persistence.Order{
		BusinessID:      s.cfg.Business.ID,
		ContactID:       p.Contact.ID,
		Status:          proto.StatusPendingPayment,
		Fulfillment:     p.Fulfillment,
		DeliveryAddress: p.DeliveryAddress,
		Channel:         p.Channel,
		TotalAmount:     p.Item.Price * float64(p.Quantity),
		Items: []persistence.OrderItem{
			{ItemName: p.Item.Name, Quantity: p.Quantity, UnitPrice: p.Item.Price},
		},
	}

	if err := s.store.CreateOrder(order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.logger.Info("📦 Created order %s for contact %d: %s (%s%.0f)",
		order.OrderNumber, p.Contact.ID, order.ItemSummary(), s.cfg.Business.CurrencySign, order.TotalAmount)

	s.dispatcher.Notify(ctx, p.Contact, p.Channel, composer.PaymentInstructions(order, &s.cfg.Business))
	return order, nil
}

// Transition moves the order from its current status to the target status.
// The store guards against concurrent moves; a lost race surfaces as
// persistence.ErrGuardFailed and sends nothing. A successful transition sends
// exactly one customer notification, plus an owner alert on payment
// attestation and a loyalty award on completion.
func (s *Service) Transition(ctx context.Context, order *persistence.Order, to proto.OrderStatus) error {
	from := order.Status

	err := s.store.TransitionOrder(order.ID, from, to)
	switch {
	case errors.Is(err, persistence.ErrGuardFailed):
		metrics.Default().IncOrderTransition(string(from), string(to), "guard_failed")
		return err
	case err != nil:
		metrics.Default().IncOrderTransition(string(from), string(to), "invalid")
		return err
	}

	metrics.Default().IncOrderTransition(string(from), string(to), "applied")
	order.Status = to
	s.logger.Info("Order %s: %s -> %s", order.OrderNumber, from, to)

	contact, err := s.store.GetContact(order.ContactID)
	if err != nil {
		s.logger.Error("order %s transitioned but contact %d lookup failed: %v", order.OrderNumber, order.ContactID, err)
		return nil
	}

	content := composer.StatusNotification(to, order, &s.cfg.Business)

	switch to {
	case proto.StatusAwaitingConfirmation:
		s.dispatcher.NotifyOwner(ctx, s.cfg.Business.OwnerPhone, order.Channel,
			composer.OwnerPaymentAlert(order, contact, &s.cfg.Business))
	case proto.StatusCompleted:
		if line := s.awardCompletionPoints(contact, order); line != "" {
			content += "\n\n" + line
		}
	}

	if content != "" {
		s.dispatcher.Notify(ctx, contact, order.Channel, content)
	}
	return nil
}

// Cancel moves an open order to cancelled and notifies the customer.
func (s *Service) Cancel(ctx context.Context, order *persistence.Order) error {
	if order.Status.IsTerminal() {
		return fmt.Errorf("order %s is already %s", order.OrderNumber, order.Status)
	}
	return s.Transition(ctx, order, proto.StatusCancelled)
}

func (s *Service) awardCompletionPoints(contact *persistence.Contact, order *persistence.Order) string {
	points, balance, err := s.loyalty.AwardForOrder(contact.ID, order.TotalAmount)
	if err != nil {
		s.logger.Error("loyalty award for order %s failed: %v", order.OrderNumber, err)
		return ""
	}
	if points <= 0 {
		return ""
	}
	return fmt.Sprintf("⭐ You earned %d loyalty points! Your balance is now %d.", points, balance)
}
