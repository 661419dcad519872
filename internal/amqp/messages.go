package amqp

import (
	"encoding/json"
	"time"

	"expenselog/internal/core"
)

const EventRecordSaved = "record.saved"

// RecordSavedMessage announces that the record for a date was created or had
// its items replaced. Consumers re-read the record from the store if they need
// the items themselves.
type RecordSavedMessage struct {
	Event     string    `json:"event"`
	Date      string    `json:"date"`
	Created   bool      `json:"created"`
	ItemCount int       `json:"item_count"`
	Total     float64   `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordSavedMessage(rec core.Record, created bool) *RecordSavedMessage {
	var total float64
	for _, it := range rec.Items {
		total += it.Cost
	}
	return &RecordSavedMessage{
		Event:     EventRecordSaved,
		Date:      rec.Date.String(),
		Created:   created,
		ItemCount: len(rec.Items),
		Total:     total,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordSavedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
