package domain

import (
	"encoding/json"
	"time"
)

// StreamEvent is a chat event mirrored to the event stream and archived.
type StreamEvent struct {
	ID              string          `json:"event_id"`
	Kind            EventKind       `json:"kind"`
	Channel         string          `json:"channel"`
	ReceivedAt      time.Time       `json:"received_at"`
	Payload         json.RawMessage `json:"payload"`
	PIIRedacted     bool            `json:"pii_redacted,omitempty"`
	StreamMessageID string          `json:"-"`
}
