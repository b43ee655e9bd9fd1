// Package composer renders outbound replies: deterministic lifecycle
// notifications from templates, and free-form answers through the LLM with a
// canned fallback when the model is unavailable.
package composer

import (
	"fmt"
	"strings"

	"halobot/pkg/config"
	"halobot/pkg/persistence"
	"halobot/pkg/proto"
)

// PaymentInstructions renders the bank transfer details sent when an order is created.
func PaymentInstructions(order *persistence.Order, biz *config.BusinessConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🧾 Order %s placed: %s\n", order.OrderNumber, order.ItemSummary())
	fmt.Fprintf(&b, "Total: %s%.0f\n\n", biz.CurrencySign, order.TotalAmount)
	fmt.Fprintf(&b, "Please transfer to:\nBank: %s\nAccount: %s\nName: %s\n\n",
		biz.Bank.BankName, biz.Bank.AccountNumber, biz.Bank.AccountName)
	b.WriteString("Reply 'I have paid' once you've made the transfer.")
	return b.String()
}

// StatusNotification renders the single customer notification for a transition
// into the given status. Returns "" for statuses with no customer-facing text.
func StatusNotification(to proto.OrderStatus, order *persistence.Order, biz *config.BusinessConfig) string {
	ref := order.OrderNumber

	switch to {
	case proto.StatusAwaitingConfirmation:
		return fmt.Sprintf("Thanks! We've asked the owner to confirm your payment for order %s. You'll hear from us shortly.", ref)
	case proto.StatusPaid:
		return fmt.Sprintf("✅ Payment confirmed! Your order %s is now being prepared. We'll notify you when it's ready! 🎂", ref)
	case proto.StatusPreparing:
		return fmt.Sprintf("👨‍🍳 Your order %s is being prepared! We'll let you know when it's ready.", ref)
	case proto.StatusReadyForPickup:
		if order.Fulfillment == proto.FulfillmentDelivery {
			return fmt.Sprintf("🚚 Your order %s is out for delivery to %s! It should arrive soon.\n\nReply 'RECEIVED' when it gets to you.", ref, order.DeliveryAddress)
		}
		return fmt.Sprintf("🎉 Great news! Your order %s is ready for pickup!\n\n📍 Location: %s\n⏰ Pickup Hours: %s\n\nReply 'PICKED UP' when you collect it.",
			ref, biz.PickupAddress, biz.PickupHours)
	case proto.StatusCompleted:
		return fmt.Sprintf("✅ Order %s completed! Thank you for your business. How was your experience? (Reply with 1-5 stars)", ref)
	case proto.StatusCancelled:
		return fmt.Sprintf("Your order %s has been cancelled. We hope to see you again soon!", ref)
	case proto.StatusPendingPayment:
		// Rejected attestation sends the customer back to pending_payment
		return fmt.Sprintf("❌ We couldn't verify your payment for order %s. Please check the transfer and reply 'I have paid' again, or contact us.", ref)
	default:
		return ""
	}
}

// PaymentReminder nudges a customer whose order has sat unpaid.
func PaymentReminder(order *persistence.Order, biz *config.BusinessConfig) string {
	return fmt.Sprintf("👋 Just a reminder: your order %s (%s%.0f) is still awaiting payment.\n\nBank: %s\nAccount: %s\nName: %s\n\nReply 'I have paid' once you've transferred, or 'cancel' to cancel the order.",
		order.OrderNumber, biz.CurrencySign, order.TotalAmount,
		biz.Bank.BankName, biz.Bank.AccountNumber, biz.Bank.AccountName)
}

// OwnerPaymentAlert tells the owner a customer claims to have paid.
func OwnerPaymentAlert(order *persistence.Order, contact *persistence.Contact, biz *config.BusinessConfig) string {
	name := contact.Name
	if name == "" {
		name = contact.Phone
	}
	return fmt.Sprintf("💰 %s says they paid for order %s (%s, %s%.0f). Approve or reject in the dashboard.",
		name, order.OrderNumber, order.ItemSummary(), biz.CurrencySign, order.TotalAmount)
}

// RatingThanks acknowledges a star rating. Low ratings get the remediation line.
func RatingThanks(rating int) string {
	if rating <= 2 {
		return "I'm really sorry your experience wasn't great. The owner has been notified and will reach out to make it right. 🙏"
	}
	return fmt.Sprintf("Thank you for the %d-star rating! We're glad you enjoyed it. 🎉", rating)
}

// GuardClarification explains why a lifecycle claim didn't apply, based on the
// order's actual state, instead of mutating anything.
func GuardClarification(order *persistence.Order) string {
	ref := order.OrderNumber

	switch order.Status {
	case proto.StatusPendingPayment:
		return fmt.Sprintf("Order %s is still awaiting payment on our side. Once you've transferred, reply 'I have paid'.", ref)
	case proto.StatusAwaitingConfirmation:
		return fmt.Sprintf("We already have your payment note for order %s and the owner is confirming it now. We'll update you shortly!", ref)
	case proto.StatusPaid, proto.StatusPreparing:
		return fmt.Sprintf("Order %s is still being prepared. We'll message you the moment it's ready for pickup!", ref)
	case proto.StatusReadyForPickup:
		return fmt.Sprintf("Order %s is ready and waiting for you! Reply 'PICKED UP' once you've collected it.", ref)
	default:
		return fmt.Sprintf("Order %s is currently %s.", ref, order.Status)
	}
}

// NoClaimableOrder explains that no open order is in the state a lifecycle
// claim expects.
func NoClaimableOrder(want proto.OrderStatus) string {
	switch want {
	case proto.StatusPendingPayment:
		return "You don't have an order awaiting payment right now. Would you like to place a new order?"
	case proto.StatusReadyForPickup:
		return "None of your orders are ready for pickup yet. We'll message you the moment one is!"
	default:
		return "We couldn't find an open order for that. Could you check the order number?"
	}
}

// DisambiguationList asks the customer which open order they mean,
// listing number, items, and amount for each. Never guess.
func DisambiguationList(orders []*persistence.Order, biz *config.BusinessConfig) string {
	var b strings.Builder
	b.WriteString("You have more than one open order. Which one do you mean?\n")
	for _, order := range orders {
		fmt.Fprintf(&b, "• %s: %s (%s%.0f, %s)\n",
			order.OrderNumber, order.ItemSummary(), biz.CurrencySign, order.TotalAmount, order.Status)
	}
	b.WriteString("Reply with the order number, e.g. " + orders[0].OrderNumber)
	return b.String()
}

// FollowUpQuestion asks for the single missing order field.
func FollowUpQuestion(missing string) string {
	switch missing {
	case "item":
		return "What would you like to order? Here's our menu:"
	case "fulfillment":
		return "Would you like pickup or delivery?"
	case "delivery_address":
		return "What address should we deliver to?"
	default:
		return fmt.Sprintf("Could you tell me the %s for your order?", missing)
	}
}
