package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"techbiz/internal/core"
)

// Operations carried by a RecordChangeMessage.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// RecordChangeMessage announces that a record was created, edited or deleted.
// Record carries a snapshot for upserts so a worker without database access
// can still mirror the change; workers with the database re-read it.
type RecordChangeMessage struct {
	ID        int64        `json:"id"`
	Op        string       `json:"op"`
	Version   int64        `json:"version"`
	Timestamp time.Time    `json:"timestamp"`
	Record    *core.Record `json:"record,omitempty"`
}

// NewRecordChangeMessage creates a change message stamped with the current time
func NewRecordChangeMessage(op string, r core.Record, version int64) *RecordChangeMessage {
	msg := &RecordChangeMessage{
		ID:        r.ID,
		Op:        op,
		Version:   version,
		Timestamp: time.Now().UTC(),
	}
	if op == OpUpsert {
		snapshot := r.Clone()
		msg.Record = &snapshot
	}
	return msg
}

// ToJSON converts the message to JSON bytes
func (m *RecordChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Validate checks the operation and id.
func (m *RecordChangeMessage) Validate() error {
	if m.ID <= 0 {
		return fmt.Errorf("invalid record id %d", m.ID)
	}
	switch m.Op {
	case OpUpsert, OpDelete:
		return nil
	}
	return fmt.Errorf("unknown operation %q", m.Op)
}

// RecordChangeMessageFromJSON decodes and validates a message
func RecordChangeMessageFromJSON(data []byte) (*RecordChangeMessage, error) {
	var msg RecordChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
