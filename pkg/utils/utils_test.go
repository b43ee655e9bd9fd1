package utils

import (
	"strings"
	"testing"
)

func TestTokenCounter(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4")
	if err != nil {
		t.Fatalf("Failed to create token counter: %v", err)
	}

	if got := counter.CountTokens(""); got != 0 {
		t.Errorf("Empty string should count 0 tokens, got %d", got)
	}

	count := counter.CountTokens("I want one chocolate cake please")
	if count < 4 || count > 12 {
		t.Errorf("Unexpected token count for short sentence: %d", count)
	}

	if !counter.ValidateTokenLimit("short", 10) {
		t.Error("Short text should fit a 10-token limit")
	}

	long := strings.Repeat("order status payment delivery ", 100)
	if counter.ValidateTokenLimit(long, 10) {
		t.Error("Long text should exceed a 10-token limit")
	}

	truncated := counter.TruncateToTokenLimit(long, 10)
	if len(truncated) >= len(long) {
		t.Error("Truncation should shorten the text")
	}
	if !strings.HasSuffix(truncated, "...") {
		t.Error("Truncated text should end with ellipsis")
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"08031234567", "+2348031234567", false},
		{"2348031234567", "+2348031234567", false},
		{"+234 803 123 4567", "+2348031234567", false},
		{"+1 (555) 010-9999", "+15550109999", false},
		{"hello", "", true},
		{"123", "", true},
	}

	for _, tt := range tests {
		got, err := NormalizePhone(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NormalizePhone(%q) expected error, got %q", tt.raw, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizePhone(%q) unexpected error: %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
