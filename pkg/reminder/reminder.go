// Package reminder nudges customers whose orders sat unpaid too long.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"halobot/pkg/composer"
	"halobot/pkg/config"
	"halobot/pkg/logx"
	"halobot/pkg/notify"
	"halobot/pkg/persistence"
)

// Scheduler runs the payment reminder sweep on a cron schedule.
// Each order gets at most one reminder; the reminder_sent flag is set as soon
// as the nudge goes out.
type Scheduler struct {
	store      *persistence.Store
	dispatcher *notify.Dispatcher
	cfg        config.Config
	cron       *cron.Cron
	logger     *logx.Logger
}

// NewScheduler creates a reminder scheduler. Call Start to begin sweeping.
func NewScheduler(store *persistence.Store, dispatcher *notify.Dispatcher, cfg config.Config) *Scheduler {
	return &Scheduler{
		store:      store,
		dispatcher: dispatcher,
		cfg:        cfg,
		cron:       cron.New(),
		logger:     logx.NewLogger("reminder"),
	}
}

// Start registers the sweep on the configured cron schedule and starts it.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.cfg.Reminder.Schedule, func() {
		if err := s.RunOnce(context.Background()); err != nil {
			s.logger.Error("reminder sweep failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", s.cfg.Reminder.Schedule, err)
	}

	s.cron.Start()
	s.logger.Info("⏰ Payment reminders scheduled (%s, stale after %s)", s.cfg.Reminder.Schedule, s.cfg.Reminder.StaleAge)
	return nil
}

// Stop halts the schedule and waits for any in-flight sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce sweeps pending_payment orders older than the stale age and sends
// each one its single payment reminder.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-s.cfg.Reminder.StaleAge)

	stale, err := s.store.StalePendingOrders(s.cfg.Business.ID, cutoff)
	if err != nil {
		return fmt.Errorf("failed to load stale orders: %w", err)
	}

	sent := 0
	for _, order := range stale {
		contact, err := s.store.GetContact(order.ContactID)
		if err != nil {
			s.logger.Error("reminder for order %s: contact lookup failed: %v", order.OrderNumber, err)
			continue
		}

		// Flag before sending so a crash mid-sweep can't double-nudge.
		if err := s.store.MarkReminderSent(order.ID); err != nil {
			s.logger.Error("failed to flag reminder for order %s: %v", order.OrderNumber, err)
			continue
		}

		s.dispatcher.Notify(ctx, contact, order.Channel, composer.PaymentReminder(order, &s.cfg.Business))
		sent++
	}

	if sent > 0 {
		s.logger.Info("📮 Sent %d payment reminders", sent)
	}
	return nil
}
