package persistence

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"halobot/pkg/proto"
)

// Business represents a configured business profile row.
type Business struct {
	CreatedAt  time.Time `json:"created_at"`
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	OwnerPhone string    `json:"owner_phone"`
}

// Contact represents a customer identity scoped to a business.
// Contacts are resolved by (business_id, phone) and created on first inbound message.
type Contact struct {
	CreatedAt     time.Time  `json:"created_at"`
	ConsentAt     *time.Time `json:"consent_at,omitempty"`
	BusinessID    string     `json:"business_id"`
	Phone         string     `json:"phone"`
	Name          string     `json:"name"`
	Language      proto.Lang `json:"language"`
	ID            int64      `json:"id"`
	LoyaltyPoints int        `json:"loyalty_points"`
	OrderCount    int        `json:"order_count"`
	OptIn         bool       `json:"opt_in"`
}

// Order represents a customer order and its lifecycle state.
type Order struct {
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	AttestedAt      *time.Time            `json:"attested_at,omitempty"`
	ApprovedAt      *time.Time            `json:"approved_at,omitempty"`
	ReadyAt         *time.Time            `json:"ready_at,omitempty"`
	CompletedAt     *time.Time            `json:"completed_at,omitempty"`
	BusinessID      string                `json:"business_id"`
	OrderNumber     string                `json:"order_number"`
	DeliveryAddress string                `json:"delivery_address,omitempty"`
	Status          proto.OrderStatus     `json:"status"`
	Fulfillment     proto.FulfillmentType `json:"fulfillment"`
	Channel         proto.Channel         `json:"channel"`
	Items           []OrderItem           `json:"items"`
	ID              int64                 `json:"id"`
	ContactID       int64                 `json:"contact_id"`
	TotalAmount     float64               `json:"total_amount"`
	ReminderSent    bool                  `json:"reminder_sent"`
}

// OrderItem is a single line item on an order.
type OrderItem struct {
	ItemName  string  `json:"item_name"`
	ID        int64   `json:"id"`
	OrderID   int64   `json:"order_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// MessageLog is one logged inbound or outbound message.
type MessageLog struct {
	CreatedAt      time.Time       `json:"created_at"`
	TransportMsgID string          `json:"transport_msg_id,omitempty"`
	Direction      proto.Direction `json:"direction"`
	Channel        proto.Channel   `json:"channel"`
	Content        string          `json:"content"`
	Status         string          `json:"status"`
	ID             int64           `json:"id"`
	ContactID      int64           `json:"contact_id"`
}

// Feedback is a post-completion rating left by a customer.
type Feedback struct {
	CreatedAt time.Time `json:"created_at"`
	Comment   string    `json:"comment"`
	ID        int64     `json:"id"`
	ContactID int64     `json:"contact_id"`
	OrderID   int64     `json:"order_id,omitempty"`
	Rating    int       `json:"rating"`
	Flagged   bool      `json:"flagged"`
}

// GenerateOrderNumber produces a short human-readable order number (ORD-NNNN).
// Uniqueness is enforced by the orders.order_number unique index; callers
// retry on conflict rather than coordinating generation.
func GenerateOrderNumber() string {
	var buf [2]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// Fall back to a time-derived suffix; collisions still caught by the unique index
		return fmt.Sprintf("ORD-%04d", time.Now().UnixNano()%10000)
	}
	n := binary.BigEndian.Uint16(buf[:]) % 10000
	return fmt.Sprintf("ORD-%04d", n)
}

// IsOpen reports whether the order is still in a live lifecycle state.
func (o *Order) IsOpen() bool {
	return !o.Status.IsTerminal()
}

// ItemSummary renders the order's line items as a short human-readable list.
func (o *Order) ItemSummary() string {
	if len(o.Items) == 0 {
		return "(no items)"
	}
	summary := ""
	for i, item := range o.Items {
		if i > 0 {
			summary += ", "
		}
		if item.Quantity > 1 {
			summary += fmt.Sprintf("%dx %s", item.Quantity, item.ItemName)
		} else {
			summary += item.ItemName
		}
	}
	return summary
}
