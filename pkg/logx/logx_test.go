package logx

import (
	"testing"
	"time"
)

func TestLoggerBasics(t *testing.T) {
	logger := NewLogger("test-component")

	if logger.GetComponent() != "test-component" {
		t.Errorf("Expected component 'test-component', got %s", logger.GetComponent())
	}

	logger.Info("test info message %d", 42)
	logger.Warn("test warn message")
	logger.Error("test error message")

	entries := GetRecentLogEntries("test-component", time.Time{})
	if len(entries) < 3 {
		t.Errorf("Expected at least 3 buffered entries, got %d", len(entries))
	}
}

func TestDebugDomainFiltering(t *testing.T) {
	SetDebug(true, []string{"intent"})
	defer SetDebug(false, nil)

	if !IsDebugEnabledForDomain("intent") {
		t.Error("Expected intent domain to be enabled")
	}
	if IsDebugEnabledForDomain("orders") {
		t.Error("Expected orders domain to be disabled")
	}

	// No domain filter enables everything.
	SetDebug(true, nil)
	if !IsDebugEnabledForDomain("orders") {
		t.Error("Expected all domains enabled when no filter set")
	}
}

func TestLogBufferEviction(t *testing.T) {
	buf := &InMemoryLogBuffer{maxSize: 3}
	for i := 0; i < 5; i++ {
		buf.AddLogEntry(&LogEntry{
			Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
			Component: "evict",
			Message:   "entry",
		})
	}

	entries := buf.GetLogEntries("evict", time.Time{})
	if len(entries) != 3 {
		t.Errorf("Expected buffer capped at 3 entries, got %d", len(entries))
	}
}

func TestErrorfReturnsError(t *testing.T) {
	err := Errorf("something failed: %s", "reason")
	if err == nil {
		t.Fatal("Expected non-nil error")
	}
	if err.Error() != "something failed: reason" {
		t.Errorf("Unexpected error text: %s", err.Error())
	}

	if Wrap(nil, "ignored") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}
