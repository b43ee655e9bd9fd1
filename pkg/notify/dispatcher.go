// Package notify delivers outbound messages to customers and the owner.
//
// Delivery is best effort: a send failure is logged and counted but never
// propagated, so a flaky transport can not wedge an order transition that
// already committed.
package notify

import (
	"context"
	"sync"
	"time"

	"halobot/pkg/logx"
	"halobot/pkg/metrics"
	"halobot/pkg/persistence"
	"halobot/pkg/proto"
)

// Sender delivers one message over a concrete transport.
// Implementations exist per channel (WhatsApp, SMS, web).
type Sender interface {
	Send(ctx context.Context, phone, content string) error
	Channel() proto.Channel
}

// Dispatcher fans outbound messages to the right transport and logs every
// attempt in message_logs.
type Dispatcher struct {
	mu      sync.RWMutex
	senders map[proto.Channel]Sender
	store   *persistence.Store
	logger  *logx.Logger
	timeout time.Duration
}

// NewDispatcher creates a dispatcher over the given store.
func NewDispatcher(store *persistence.Store) *Dispatcher {
	return &Dispatcher{
		senders: make(map[proto.Channel]Sender),
		store:   store,
		logger:  logx.NewLogger("notify"),
		timeout: 10 * time.Second,
	}
}

// Register adds a transport for its channel, replacing any previous one.
func (d *Dispatcher) Register(sender Sender) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.senders[sender.Channel()] = sender
	d.logger.Info("📮 Registered sender for channel %s", sender.Channel())
}

// Notify sends content to a contact over the given channel, best effort.
// The outbound message is always logged; delivery failures are recorded in
// the log status and metrics but never returned.
func (d *Dispatcher) Notify(ctx context.Context, contact *persistence.Contact, channel proto.Channel, content string) {
	status := "sent"
	if err := d.send(ctx, contact.Phone, channel, content); err != nil {
		status = "failed"
		d.logger.Error("notification to %s via %s failed: %v", contact.Phone, channel, err)
	}

	metrics.Default().IncNotificationSent(string(channel), status)

	if err := d.store.AppendMessage(&persistence.MessageLog{
		ContactID: contact.ID,
		Direction: proto.DirectionOut,
		Channel:   channel,
		Content:   content,
		Status:    status,
	}); err != nil {
		d.logger.Error("failed to log outbound message for contact %d: %v", contact.ID, err)
	}
}

// NotifyOwner sends an alert to the business owner's phone, best effort.
// Owner alerts are not tied to a contact row so they are not logged.
func (d *Dispatcher) NotifyOwner(ctx context.Context, ownerPhone string, channel proto.Channel, content string) {
	status := "sent"
	if err := d.send(ctx, ownerPhone, channel, content); err != nil {
		status = "failed"
		d.logger.Error("owner alert via %s failed: %v", channel, err)
	}
	metrics.Default().IncNotificationSent(string(channel), status)
}

func (d *Dispatcher) send(ctx context.Context, phone string, channel proto.Channel, content string) error {
	d.mu.RLock()
	sender, ok := d.senders[channel]
	d.mu.RUnlock()

	if !ok {
		return logx.Errorf("no sender registered for channel %s", channel)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	return sender.Send(sendCtx, phone, content)
}
