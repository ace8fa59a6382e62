package amqp

import (
	"testing"
	"time"
)

func TestTaxonomySyncMessageRoundTrip(t *testing.T) {
	msg := NewTaxonomySyncMessage(2, 5)
	if msg.Timestamp.IsZero() {
		t.Fatal("expected a timestamp")
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := TaxonomySyncMessageFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.GroupsUpdated != 2 || decoded.ItemsUpdated != 5 {
		t.Fatalf("counters lost in transit: %+v", decoded)
	}
	if !decoded.Timestamp.Equal(msg.Timestamp.Truncate(time.Nanosecond)) {
		t.Fatalf("timestamp lost in transit: got %v want %v", decoded.Timestamp, msg.Timestamp)
	}
}

func TestTaxonomySyncMessageFromInvalidJSON(t *testing.T) {
	if _, err := TaxonomySyncMessageFromJSON([]byte("{not-json")); err == nil {
		t.Fatal("expected an error for invalid JSON")
	}
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped at 30s
		{10, 30 * time.Second}, // capped at 30s
		{40, 30 * time.Second}, // capped at 30s
	}

	for _, tt := range tests {
		got := exponentialBackoff(tt.attempt)
		if got != tt.expected {
			t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
		}
	}
}
