// Package loyalty awards points and computes customer tiers.
package loyalty

import (
	"fmt"

	"halobot/pkg/config"
	"halobot/pkg/logx"
	"halobot/pkg/persistence"
)

// Tier labels ordered by spending thresholds.
const (
	TierBronze = "Bronze"
	TierSilver = "Silver"
	TierGold   = "Gold"
)

// Service awards points on completed orders and answers balance queries.
type Service struct {
	store  *persistence.Store
	cfg    config.LoyaltyConfig
	logger *logx.Logger
}

// NewService creates a loyalty service with the given policy.
func NewService(store *persistence.Store, cfg config.LoyaltyConfig) *Service {
	return &Service{
		store:  store,
		cfg:    cfg,
		logger: logx.NewLogger("loyalty"),
	}
}

// AwardWelcomeBonus credits the signup bonus to a newly created contact.
func (s *Service) AwardWelcomeBonus(contactID int64) (int, error) {
	if s.cfg.WelcomeBonus <= 0 {
		return 0, nil
	}
	balance, err := s.store.AddLoyaltyPoints(contactID, s.cfg.WelcomeBonus)
	if err != nil {
		return 0, fmt.Errorf("failed to award welcome bonus: %w", err)
	}
	s.logger.Info("🎁 Welcome bonus of %d points for contact %d", s.cfg.WelcomeBonus, contactID)
	return balance, nil
}

// AwardForOrder credits points for a completed order's total and returns the
// points earned plus the new balance.
func (s *Service) AwardForOrder(contactID int64, totalAmount float64) (int, int, error) {
	points := s.PointsFor(totalAmount)
	if points <= 0 {
		balance, err := s.store.AddLoyaltyPoints(contactID, 0)
		return 0, balance, err
	}

	balance, err := s.store.AddLoyaltyPoints(contactID, points)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to award order points: %w", err)
	}
	s.logger.Info("⭐ Awarded %d points to contact %d (balance %d)", points, contactID, balance)
	return points, balance, nil
}

// PointsFor converts an order amount to loyalty points per the configured rate.
func (s *Service) PointsFor(amount float64) int {
	if amount <= 0 {
		return 0
	}
	return int(amount * s.cfg.PointsPerUnit)
}

// TierFor returns the loyalty tier for a customer's total spend.
func (s *Service) TierFor(totalSpent float64) string {
	switch {
	case totalSpent >= s.cfg.GoldAt:
		return TierGold
	case totalSpent >= s.cfg.SilverAt:
		return TierSilver
	default:
		return TierBronze
	}
}
