package events

import (
	"encoding/json"
	"time"
)

// Event types carried on a user's stream.
const (
	TypePing             = "ping"
	TypeDispatchStarted  = "dispatch_started"
	TypeDispatchProgress = "dispatch_progress"
	TypeDispatchFinished = "dispatch_finished"
)

// Version is bumped when a Data shape changes incompatibly.
const Version = 1

// Event is the envelope of every SSE message.
type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// MakeEvent renders one envelope. A payload that cannot be marshalled is
// left out and the envelope is still sent.
func MakeEvent(reqID, typ string, data any) string {
	e := Event{
		Type:      typ,
		Version:   Version,
		At:        time.Now().UTC(),
		RequestID: reqID,
	}
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			e.Data = b
		}
	}
	b, _ := json.Marshal(e)
	return string(b)
}
