package amqp

import (
	"encoding/json"
	"time"
)

const (
	ReasonInsert      = "insert"
	ReasonDelete      = "delete"
	ReasonRecalculate = "recalculate"
)

// LedgerChangedMessage announces that the stored balances of some of an
// owner's sequences changed. It carries no balances; consumers read the
// current state from storage.
type LedgerChangedMessage struct {
	OwnerID   string    `json:"owner_id"`
	Sequences []string  `json:"sequences"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerChangedMessage(ownerID, reason string, sequences ...string) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		OwnerID:   ownerID,
		Sequences: sequences,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedMessageFromJSON decodes a message, rejecting ones without an owner.
func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.OwnerID == "" {
		return nil, errMissingOwner
	}
	return &msg, nil
}
