package amqp

import (
	"encoding/json"
	"time"
)

const (
	ActionSync   = "sync"
	ActionDelete = "delete"
)

// EntrySyncMessage tells the export worker that an expense changed. It
// carries only the ID; the worker fetches the current row from the database
// so a stale message can never overwrite newer data.
type EntrySyncMessage struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEntrySyncMessage(id, action string) *EntrySyncMessage {
	return &EntrySyncMessage{
		ID:        id,
		Action:    action,
		Timestamp: time.Now(),
	}
}

func (m *EntrySyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EntrySyncMessageFromJSON(data []byte) (*EntrySyncMessage, error) {
	var msg EntrySyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
