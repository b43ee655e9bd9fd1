// Package proto defines the shared domain vocabulary: order lifecycle states,
// intent labels, fulfillment types, and message metadata used across packages.
package proto

import "fmt"

// OrderStatus represents a state in the order lifecycle.
type OrderStatus string

const (
	// StatusPendingPayment is the initial state: order placed, payment
	// instructions sent, waiting for the customer to pay.
	StatusPendingPayment OrderStatus = "pending_payment"

	// StatusAwaitingConfirmation means the customer attested payment and the
	// owner has not yet reviewed it.
	StatusAwaitingConfirmation OrderStatus = "awaiting_confirmation"

	// StatusPaid means the owner approved the payment.
	StatusPaid OrderStatus = "paid"

	// StatusPreparing means the owner started preparing the order.
	StatusPreparing OrderStatus = "preparing"

	// StatusReadyForPickup means the order is ready for pickup or out for
	// delivery, depending on the fulfillment type.
	StatusReadyForPickup OrderStatus = "ready_for_pickup"

	// StatusCompleted is terminal: the customer confirmed receipt.
	StatusCompleted OrderStatus = "completed"

	// StatusCancelled is terminal: owner or customer cancelled.
	StatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the status allows no further transitions.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// OrderTransitions is the authoritative transition table for the order
// lifecycle. A transition is legal only if the target appears in the source's
// list; cancellation is legal from every non-terminal state.
//
//nolint:gochecknoglobals // Shared transition table, read-only after init
var OrderTransitions = map[OrderStatus][]OrderStatus{
	StatusPendingPayment:       {StatusAwaitingConfirmation, StatusCancelled},
	StatusAwaitingConfirmation: {StatusPaid, StatusPendingPayment, StatusCancelled},
	StatusPaid:                 {StatusPreparing, StatusCancelled},
	StatusPreparing:            {StatusReadyForPickup, StatusCancelled},
	StatusReadyForPickup:       {StatusCompleted, StatusCancelled},
	StatusCompleted:            {},
	StatusCancelled:            {},
}

// IsValidTransition reports whether from -> to is legal per OrderTransitions.
func IsValidTransition(from, to OrderStatus) bool {
	for _, allowed := range OrderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidStatuses returns every lifecycle status, in flow order.
func ValidStatuses() []OrderStatus {
	return []OrderStatus{
		StatusPendingPayment,
		StatusAwaitingConfirmation,
		StatusPaid,
		StatusPreparing,
		StatusReadyForPickup,
		StatusCompleted,
		StatusCancelled,
	}
}

// ParseOrderStatus validates a raw status string.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	for _, s := range ValidStatuses() {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown order status %q", raw)
}

// FulfillmentType says how the customer receives the order.
type FulfillmentType string

const (
	FulfillmentPickup   FulfillmentType = "pickup"
	FulfillmentDelivery FulfillmentType = "delivery"
)

// ParseFulfillment validates a raw fulfillment string.
func ParseFulfillment(raw string) (FulfillmentType, error) {
	switch FulfillmentType(raw) {
	case FulfillmentPickup:
		return FulfillmentPickup, nil
	case FulfillmentDelivery:
		return FulfillmentDelivery, nil
	}
	return "", fmt.Errorf("unknown fulfillment type %q", raw)
}
