package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names what happened to a transaction.
type EventType string

const (
	TransactionCreated EventType = "created"
	TransactionUpdated EventType = "updated"
	TransactionDeleted EventType = "deleted"
)

func (t EventType) Valid() bool {
	switch t {
	case TransactionCreated, TransactionUpdated, TransactionDeleted:
		return true
	}
	return false
}

// TransactionEvent is a lightweight notification about a transaction write.
// Consumers fetch the full transaction themselves; deleted events carry the
// last known amount so a reversal can be written without a lookup.
type TransactionEvent struct {
	Type       EventType `json:"type"`
	ID         string    `json:"id"`
	UserEmail  string    `json:"userEmail"`
	Year       int       `json:"year"`
	Month      int       `json:"month"`
	CategoryID string    `json:"expenseTypeId,omitempty"`
	Amount     string    `json:"amount,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewTransactionEvent stamps an event with the current time.
func NewTransactionEvent(typ EventType, id, email string, year, month int) *TransactionEvent {
	return &TransactionEvent{
		Type:      typ,
		ID:        id,
		UserEmail: email,
		Year:      year,
		Month:     month,
		Timestamp: time.Now(),
	}
}

func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes and checks a message body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var e TransactionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if !e.Type.Valid() {
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.ID == "" || e.UserEmail == "" {
		return nil, fmt.Errorf("event missing id or user")
	}
	return &e, nil
}
