package amqp

import (
	"encoding/json"
	"time"
)

// TaxonomySyncMessage signals that a taxonomy save was committed. It carries
// only counters and a timestamp; the worker reads the full taxonomy from the
// database, so stale messages are harmless.
type TaxonomySyncMessage struct {
	GroupsUpdated int       `json:"groups_updated"`
	ItemsUpdated  int       `json:"items_updated"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTaxonomySyncMessage creates a sync message for a completed save.
func NewTaxonomySyncMessage(groupsUpdated, itemsUpdated int) *TaxonomySyncMessage {
	return &TaxonomySyncMessage{
		GroupsUpdated: groupsUpdated,
		ItemsUpdated:  itemsUpdated,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TaxonomySyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TaxonomySyncMessageFromJSON creates a message from JSON bytes
func TaxonomySyncMessageFromJSON(data []byte) (*TaxonomySyncMessage, error) {
	var msg TaxonomySyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
