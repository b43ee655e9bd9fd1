package loyalty

import (
	"path/filepath"
	"testing"

	"halobot/pkg/config"
	"halobot/pkg/persistence"
)

func testService(t *testing.T) (*Service, *persistence.Contact) {
	t.Helper()

	db, err := persistence.InitializeDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := persistence.NewStore(db)
	if err := store.UpsertBusiness(&persistence.Business{ID: "biz_test", Name: "Test Bakery", OwnerPhone: "+2348000000000"}); err != nil {
		t.Fatalf("Failed to upsert business: %v", err)
	}
	contact, _, err := store.ResolveOrCreateContact("biz_test", "+2348011111111")
	if err != nil {
		t.Fatalf("Failed to create contact: %v", err)
	}

	svc := NewService(store, config.LoyaltyConfig{
		PointsPerUnit: 0.01,
		WelcomeBonus:  100,
		SilverAt:      50000,
		GoldAt:        100000,
	})
	return svc, contact
}

func TestAwardFlow(t *testing.T) {
	svc, contact := testService(t)

	balance, err := svc.AwardWelcomeBonus(contact.ID)
	if err != nil {
		t.Fatalf("Failed to award welcome bonus: %v", err)
	}
	if balance != 100 {
		t.Errorf("Expected balance 100 after welcome bonus, got %d", balance)
	}

	points, balance, err := svc.AwardForOrder(contact.ID, 20000)
	if err != nil {
		t.Fatalf("Failed to award order points: %v", err)
	}
	if points != 200 {
		t.Errorf("Expected 200 points for a 20000 order, got %d", points)
	}
	if balance != 300 {
		t.Errorf("Expected balance 300, got %d", balance)
	}
}

func TestPointsFor(t *testing.T) {
	svc, _ := testService(t)

	if got := svc.PointsFor(0); got != 0 {
		t.Errorf("PointsFor(0) = %d, want 0", got)
	}
	if got := svc.PointsFor(-500); got != 0 {
		t.Errorf("PointsFor(-500) = %d, want 0", got)
	}
	if got := svc.PointsFor(18000); got != 180 {
		t.Errorf("PointsFor(18000) = %d, want 180", got)
	}
}

func TestTierFor(t *testing.T) {
	svc, _ := testService(t)

	tests := []struct {
		spent float64
		want  string
	}{
		{0, TierBronze},
		{49999, TierBronze},
		{50000, TierSilver},
		{99999, TierSilver},
		{100000, TierGold},
		{250000, TierGold},
	}

	for _, tt := range tests {
		if got := svc.TierFor(tt.spent); got != tt.want {
			t.Errorf("TierFor(%.0f) = %s, want %s", tt.spent, got, tt.want)
		}
	}
}
