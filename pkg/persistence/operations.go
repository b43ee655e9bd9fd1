package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"halobot/pkg/proto"
)

// Store provides methods for database operations.
// All writes go through the single-writer SQLite connection.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store instance.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// UpsertBusiness inserts or updates the business profile row.
// Called once at startup from the loaded configuration.
func (s *Store) UpsertBusiness(b *Business) error {
	query := `
		INSERT INTO businesses (id, name, owner_phone)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			owner_phone = excluded.owner_phone
	`

	_, err := s.db.Exec(query, b.ID, b.Name, b.OwnerPhone)
	if err != nil {
		return fmt.Errorf("failed to upsert business %s: %w", b.ID, err)
	}
	return nil
}

// ResolveOrCreateContact finds the contact for (businessID, phone), creating it
// on first sight. Returns the contact and whether it was newly created.
func (s *Store) ResolveOrCreateContact(businessID, phone string) (*Contact, bool, error) {
	contact, err := s.GetContactByPhone(businessID, phone)
	if err == nil {
		return contact, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	result, err := s.db.Exec(
		"INSERT INTO contacts (business_id, phone) VALUES (?, ?)",
		businessID, phone,
	)
	if err != nil {
		// Lost a race with a concurrent insert; re-read
		if contact, rerr := s.GetContactByPhone(businessID, phone); rerr == nil {
			return contact, false, nil
		}
		return nil, false, fmt.Errorf("failed to create contact %s: %w", phone, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get contact id: %w", err)
	}

	contact, err = s.GetContact(id)
	if err != nil {
		return nil, false, err
	}
	return contact, true, nil
}

// GetContact returns a contact by primary key.
func (s *Store) GetContact(id int64) (*Contact, error) {
	row := s.db.QueryRow(`
		SELECT id, business_id, phone, name, language, opt_in, consent_at,
		       loyalty_points, order_count, created_at
		FROM contacts WHERE id = ?
	`, id)
	return scanContact(row)
}

// GetContactByPhone returns the contact for a phone number within a business.
func (s *Store) GetContactByPhone(businessID, phone string) (*Contact, error) {
	row := s.db.QueryRow(`
		SELECT id, business_id, phone, name, language, opt_in, consent_at,
		       loyalty_points, order_count, created_at
		FROM contacts WHERE business_id = ? AND phone = ?
	`, businessID, phone)
	return scanContact(row)
}

// UpdateContactConsent records an opt-in or opt-out decision.
func (s *Store) UpdateContactConsent(contactID int64, optIn bool) error {
	_, err := s.db.Exec(`
		UPDATE contacts
		SET opt_in = ?, consent_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
		WHERE id = ?
	`, boolToInt(optIn), contactID)
	if err != nil {
		return fmt.Errorf("failed to update consent for contact %d: %w", contactID, err)
	}
	return nil
}

// UpdateContactName sets the display name for a contact.
func (s *Store) UpdateContactName(contactID int64, name string) error {
	if _, err := s.db.Exec("UPDATE contacts SET name = ? WHERE id = ?", name, contactID); err != nil {
		return fmt.Errorf("failed to update name for contact %d: %w", contactID, err)
	}
	return nil
}

// UpdateContactLanguage sets the preferred reply language for a contact.
func (s *Store) UpdateContactLanguage(contactID int64, lang proto.Lang) error {
	if _, err := s.db.Exec("UPDATE contacts SET language = ? WHERE id = ?", string(lang), contactID); err != nil {
		return fmt.Errorf("failed to update language for contact %d: %w", contactID, err)
	}
	return nil
}

// AddLoyaltyPoints credits points to a contact and returns the new balance.
func (s *Store) AddLoyaltyPoints(contactID int64, points int) (int, error) {
	if _, err := s.db.Exec(
		"UPDATE contacts SET loyalty_points = loyalty_points + ? WHERE id = ?",
		points, contactID,
	); err != nil {
		return 0, fmt.Errorf("failed to add loyalty points for contact %d: %w", contactID, err)
	}

	var balance int
	if err := s.db.QueryRow("SELECT loyalty_points FROM contacts WHERE id = ?", contactID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("failed to read loyalty balance for contact %d: %w", contactID, err)
	}
	return balance, nil
}

// AppendMessage logs one inbound or outbound message.
// Returns ErrDuplicateMessage when the transport message ID was already logged.
func (s *Store) AppendMessage(msg *MessageLog) error {
	var transportID interface{}
	if msg.TransportMsgID != "" {
		transportID = msg.TransportMsgID
	}

	result, err := s.db.Exec(`
		INSERT INTO message_logs (contact_id, transport_msg_id, direction, channel, content, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ContactID, transportID, string(msg.Direction), string(msg.Channel), msg.Content, msg.Status)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateMessage
		}
		return fmt.Errorf("failed to append message for contact %d: %w", msg.ContactID, err)
	}

	msg.ID, _ = result.LastInsertId()
	return nil
}

// HasSeenTransportMsgID reports whether a transport message ID is already logged.
func (s *Store) HasSeenTransportMsgID(transportMsgID string) (bool, error) {
	if transportMsgID == "" {
		return false, nil
	}
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM message_logs WHERE transport_msg_id = ?",
		transportMsgID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check transport msg id: %w", err)
	}
	return n > 0, nil
}

// RecentMessages returns the latest messages for a contact, oldest first.
func (s *Store) RecentMessages(contactID int64, limit int) ([]*MessageLog, error) {
	rows, err := s.db.Query(`
		SELECT id, contact_id, transport_msg_id, direction, channel, content, status, created_at
		FROM message_logs WHERE contact_id = ?
		ORDER BY id DESC LIMIT ?
	`, contactID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages for contact %d: %w", contactID, err)
	}
	defer func() { _ = rows.Close() }()

	var messages []*MessageLog
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	// Reverse into chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// CreateOrder inserts an order with its line items in one transaction.
// Retries order number generation on the (rare) unique-index collision.
func (s *Store) CreateOrder(order *Order) error {
	const maxAttempts = 5

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if order.OrderNumber == "" || attempt > 0 {
			order.OrderNumber = GenerateOrderNumber()
		}

		err := s.insertOrderTx(order)
		if err == nil {
			return nil
		}
		if isUniqueViolation(err) {
			continue
		}
		return err
	}
	return fmt.Errorf("failed to allocate order number after %d attempts", maxAttempts)
}

func (s *Store) insertOrderTx(order *Order) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.Exec(`
		INSERT INTO orders (business_id, contact_id, order_number, total_amount,
			fulfillment, delivery_address, status, channel)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, order.BusinessID, order.ContactID, order.OrderNumber, order.TotalAmount,
		string(order.Fulfillment), order.DeliveryAddress, string(order.Status), string(order.Channel))
	if err != nil {
		return fmt.Errorf("failed to insert order %s: %w", order.OrderNumber, err)
	}

	orderID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get order id: %w", err)
	}
	order.ID = orderID

	for i := range order.Items {
		item := &order.Items[i]
		res, err := tx.Exec(`
			INSERT INTO order_items (order_id, item_name, quantity, unit_price)
			VALUES (?, ?, ?, ?)
		`, orderID, item.ItemName, item.Quantity, item.UnitPrice)
		if err != nil {
			return fmt.Errorf("failed to insert order item %s: %w", item.ItemName, err)
		}
		item.OrderID = orderID
		item.ID, _ = res.LastInsertId()
	}

	if _, err := tx.Exec(
		"UPDATE contacts SET order_count = order_count + 1 WHERE id = ?",
		order.ContactID,
	); err != nil {
		return fmt.Errorf("failed to bump order count for contact %d: %w", order.ContactID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order %s: %w", order.OrderNumber, err)
	}
	return nil
}

// GetOrder returns an order with its line items by primary key.
func (s *Store) GetOrder(id int64) (*Order, error) {
	row := s.db.QueryRow(orderSelect+" WHERE id = ?", id)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(order); err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrderByNumber returns an order by its human-readable order number.
func (s *Store) GetOrderByNumber(businessID, orderNumber string) (*Order, error) {
	row := s.db.QueryRow(orderSelect+" WHERE business_id = ? AND order_number = ?", businessID, orderNumber)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(order); err != nil {
		return nil, err
	}
	return order, nil
}

// OpenOrdersByContact returns a contact's non-terminal orders, newest first.
func (s *Store) OpenOrdersByContact(contactID int64) ([]*Order, error) {
	rows, err := s.db.Query(orderSelect+`
		 WHERE contact_id = ? AND status NOT IN (?, ?)
		 ORDER BY id DESC
	`, contactID, string(proto.StatusCompleted), string(proto.StatusCancelled))
	if err != nil {
		return nil, fmt.Errorf("failed to query open orders for contact %d: %w", contactID, err)
	}
	return s.collectOrders(rows)
}

// LatestCompletedOrder returns the contact's most recently completed order,
// or ErrNotFound when they have none. Used to attach post-completion ratings.
func (s *Store) LatestCompletedOrder(contactID int64) (*Order, error) {
	row := s.db.QueryRow(orderSelect+`
		 WHERE contact_id = ? AND status = ?
		 ORDER BY id DESC LIMIT 1
	`, contactID, string(proto.StatusCompleted))
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(order); err != nil {
		return nil, err
	}
	return order, nil
}

// OrdersByStatus returns all orders for a business in a given status, oldest first.
func (s *Store) OrdersByStatus(businessID string, status proto.OrderStatus) ([]*Order, error) {
	rows, err := s.db.Query(orderSelect+`
		 WHERE business_id = ? AND status = ?
		 ORDER BY id ASC
	`, businessID, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query orders by status %s: %w", status, err)
	}
	return s.collectOrders(rows)
}

// StalePendingOrders returns pending_payment orders older than cutoff that have
// not yet received a payment reminder.
func (s *Store) StalePendingOrders(businessID string, cutoff time.Time) ([]*Order, error) {
	rows, err := s.db.Query(orderSelect+`
		 WHERE business_id = ? AND status = ? AND reminder_sent = 0 AND created_at < ?
		 ORDER BY id ASC
	`, businessID, string(proto.StatusPendingPayment), cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query stale pending orders: %w", err)
	}
	return s.collectOrders(rows)
}

// MarkReminderSent flags an order as having received its payment reminder.
func (s *Store) MarkReminderSent(orderID int64) error {
	if _, err := s.db.Exec("UPDATE orders SET reminder_sent = 1 WHERE id = ?", orderID); err != nil {
		return fmt.Errorf("failed to mark reminder sent for order %d: %w", orderID, err)
	}
	return nil
}

// TransitionOrder moves an order from one status to another with a compare-and-swap
// guard: the update only applies if the order is still in the expected from status.
// Returns ErrGuardFailed when the order was in a different state.
//
// Status-specific timestamp columns are stamped as part of the same update.
func (s *Store) TransitionOrder(orderID int64, from, to proto.OrderStatus) error {
	if !proto.IsValidTransition(from, to) {
		return fmt.Errorf("invalid transition %s -> %s for order %d", from, to, orderID)
	}

	var timestampField string
	switch to {
	case proto.StatusAwaitingConfirmation:
		timestampField = "attested_at"
	case proto.StatusPaid:
		timestampField = "approved_at"
	case proto.StatusReadyForPickup:
		timestampField = "ready_at"
	case proto.StatusCompleted:
		timestampField = "completed_at"
	default:
		timestampField = ""
	}

	query := "UPDATE orders SET status = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')"
	if timestampField != "" {
		query += ", " + timestampField + " = strftime('%Y-%m-%dT%H:%M:%fZ','now')"
	}
	if to == proto.StatusPendingPayment {
		// Rejected attestation returns to pending_payment; clear the stale attestation
		query += ", attested_at = NULL"
	}
	query += " WHERE id = ? AND status = ?"

	result, err := s.db.Exec(query, string(to), orderID, string(from))
	if err != nil {
		return fmt.Errorf("failed to transition order %d to %s: %w", orderID, to, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check transition result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("order %d not in %s: %w", orderID, from, ErrGuardFailed)
	}
	return nil
}

// SaveFeedback stores a rating; ratings of 2 or below are flagged for follow-up.
func (s *Store) SaveFeedback(fb *Feedback) error {
	fb.Flagged = fb.Rating <= 2

	var orderID interface{}
	if fb.OrderID != 0 {
		orderID = fb.OrderID
	}

	result, err := s.db.Exec(`
		INSERT INTO feedback (contact_id, order_id, rating, comment, flagged)
		VALUES (?, ?, ?, ?, ?)
	`, fb.ContactID, orderID, fb.Rating, fb.Comment, boolToInt(fb.Flagged))
	if err != nil {
		return fmt.Errorf("failed to save feedback for contact %d: %w", fb.ContactID, err)
	}
	fb.ID, _ = result.LastInsertId()
	return nil
}

// --- scanning helpers ---

const orderSelect = `
	SELECT id, business_id, contact_id, order_number, total_amount, fulfillment,
	       delivery_address, status, channel, reminder_sent, created_at, updated_at,
	       attested_at, approved_at, ready_at, completed_at
	FROM orders`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanContact(row rowScanner) (*Contact, error) {
	var c Contact
	var lang string
	var optIn int
	var consentAt sql.NullString
	var createdAt string

	err := row.Scan(&c.ID, &c.BusinessID, &c.Phone, &c.Name, &lang, &optIn,
		&consentAt, &c.LoyaltyPoints, &c.OrderCount, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan contact: %w", err)
	}

	c.Language = proto.Lang(lang)
	c.OptIn = optIn != 0
	c.CreatedAt = parseDBTime(createdAt)
	c.ConsentAt = parseNullTime(consentAt)
	return &c, nil
}

func scanOrder(row rowScanner) (*Order, error) {
	var o Order
	var fulfillment, status, channel, createdAt, updatedAt string
	var reminderSent int
	var attestedAt, approvedAt, readyAt, completedAt sql.NullString

	err := row.Scan(&o.ID, &o.BusinessID, &o.ContactID, &o.OrderNumber, &o.TotalAmount,
		&fulfillment, &o.DeliveryAddress, &status, &channel, &reminderSent,
		&createdAt, &updatedAt, &attestedAt, &approvedAt, &readyAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	o.Fulfillment = proto.FulfillmentType(fulfillment)
	o.Status = proto.OrderStatus(status)
	o.Channel = proto.Channel(channel)
	o.ReminderSent = reminderSent != 0
	o.CreatedAt = parseDBTime(createdAt)
	o.UpdatedAt = parseDBTime(updatedAt)
	o.AttestedAt = parseNullTime(attestedAt)
	o.ApprovedAt = parseNullTime(approvedAt)
	o.ReadyAt = parseNullTime(readyAt)
	o.CompletedAt = parseNullTime(completedAt)
	return &o, nil
}

func scanMessage(row rowScanner) (*MessageLog, error) {
	var m MessageLog
	var transportID sql.NullString
	var direction, channel, createdAt string

	err := row.Scan(&m.ID, &m.ContactID, &transportID, &direction, &channel,
		&m.Content, &m.Status, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}

	m.TransportMsgID = transportID.String
	m.Direction = proto.Direction(direction)
	m.Channel = proto.Channel(channel)
	m.CreatedAt = parseDBTime(createdAt)
	return &m, nil
}

func (s *Store) collectOrders(rows *sql.Rows) ([]*Order, error) {
	defer func() { _ = rows.Close() }()

	var orders []*Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	for _, order := range orders {
		if err := s.loadItems(order); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (s *Store) loadItems(order *Order) error {
	rows, err := s.db.Query(`
		SELECT id, order_id, item_name, quantity, unit_price
		FROM order_items WHERE order_id = ? ORDER BY id ASC
	`, order.ID)
	if err != nil {
		return fmt.Errorf("failed to query items for order %d: %w", order.ID, err)
	}
	defer func() { _ = rows.Close() }()

	order.Items = nil
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ItemName, &item.Quantity, &item.UnitPrice); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate order items: %w", err)
	}
	return nil
}

func parseDBTime(value string) time.Time {
	for _, layout := range []string{"2006-01-02T15:04:05.999Z", time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseNullTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t := parseDBTime(value.String)
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}
