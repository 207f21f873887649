package events

import (
	"encoding/json"
	"time"
)

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// TransactionEvent describes a mutation the remote API has already
// confirmed. Consumers (the sheets export worker) only see committed
// transactions, never speculative ones.
type TransactionEvent struct {
	Action      string    `json:"action"`
	Kind        string    `json:"kind"`
	ID          int64     `json:"id"`
	Title       string    `json:"title,omitempty"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	Date        string    `json:"date,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func NewTransactionEvent(action, kind string, id int64) *TransactionEvent {
	return &TransactionEvent{
		Action:     action,
		Kind:       kind,
		ID:         id,
		OccurredAt: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON creates an event from JSON bytes
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var ev TransactionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
