package limiter

import (
	"errors"
	"testing"
)

func TestReserveWithinLimits(t *testing.T) {
	l := New(50000, 100)
	defer l.Close()

	if err := l.Reserve(1024); err != nil {
		t.Errorf("Expected reserve to succeed, got error: %v", err)
	}

	tokens, requests := l.GetStatus()
	if tokens != 50000-1024 {
		t.Errorf("Remaining tokens = %d, want %d", tokens, 50000-1024)
	}
	if requests != 1 {
		t.Errorf("Requests today = %d, want 1", requests)
	}
}

func TestReserveExhaustsBucket(t *testing.T) {
	l := New(2000, 0)
	defer l.Close()

	if err := l.Reserve(1500); err != nil {
		t.Fatalf("First reserve failed: %v", err)
	}
	if err := l.Reserve(1500); !errors.Is(err, ErrRateLimit) {
		t.Errorf("Expected ErrRateLimit, got %v", err)
	}
}

func TestDailyRequestBudget(t *testing.T) {
	l := New(0, 2)
	defer l.Close()

	for i := 0; i < 2; i++ {
		if err := l.Reserve(100); err != nil {
			t.Fatalf("Reserve %d failed: %v", i, err)
		}
	}
	if err := l.Reserve(100); !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("Expected ErrBudgetExceeded, got %v", err)
	}

	l.ResetDaily()
	if err := l.Reserve(100); err != nil {
		t.Errorf("Reserve after daily reset failed: %v", err)
	}
}

func TestZeroLimitsDisableChecks(t *testing.T) {
	l := New(0, 0)
	defer l.Close()

	for i := 0; i < 10; i++ {
		if err := l.Reserve(1_000_000); err != nil {
			t.Fatalf("Unlimited reserve failed: %v", err)
		}
	}
}
