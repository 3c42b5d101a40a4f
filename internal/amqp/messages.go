package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Entities a change message can refer to.
const (
	EntityAccount     = "account"
	EntityTransaction = "transaction"
	EntityGroup       = "group"
	EntitySettlement  = "settlement"
)

// ChangeMessage announces a successful write so other sessions can reload.
// It carries identifiers only; receivers re-read everything from the gateway.
type ChangeMessage struct {
	Source    string    `json:"source"`
	Entity    string    `json:"entity"`
	Operation string    `json:"operation"`
	ID        string    `json:"id,omitempty"`
	AccountID string    `json:"account_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChangeMessage creates a change message stamped with the current time.
func NewChangeMessage(source, entity, operation, id, accountID string) *ChangeMessage {
	return &ChangeMessage{
		Source:    source,
		Entity:    entity,
		Operation: operation,
		ID:        id,
		AccountID: accountID,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON parses and checks a message.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Entity == "" || msg.Operation == "" {
		return nil, fmt.Errorf("change message missing entity or operation")
	}
	return &msg, nil
}
