package events

import (
	"encoding/json"
	"time"
)

// Type identifies an event.
type Type string

const (
	TypeLMSSyncCompleted Type = "lms.sync_completed"
	TypeLMSSyncFailed    Type = "lms.sync_failed"
	TypeTasksBridged     Type = "tasks.bridged"
	TypeCalendarResynced Type = "calendar.resynced"
)

// Message is the envelope written to clients.
type Message struct {
	Type      Type      `json:"type"`
	OwnerID   string    `json:"-"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(ownerID string, typ Type, payload any) Message {
	return Message{
		Type:      typ,
		OwnerID:   ownerID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// Publisher is the sending side of the hub.
type Publisher interface {
	Publish(ownerID string, typ Type, payload any)
}

// Discard is a Publisher that drops every message.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(string, Type, any) {}
