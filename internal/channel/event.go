package channel

import (
	"encoding/json"

	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/models"
)

// Event types carried on the push channel.
const (
	EventMessageCreated = "message.created"
	EventTyping         = "typing"
)

// Event is the wire format for all push-channel events. Typing events are
// ephemeral and never persisted; message events carry the stored message but
// the authoritative history stays in the room store.
type Event struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"room_id"`
	Message *models.Message `json:"message,omitempty"`
	UserID  string          `json:"user_id,omitempty"`
}

// Encode serializes the event for transport.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func decodeEvent(data []byte, ev *Event) error {
	return json.Unmarshal(data, ev)
}
