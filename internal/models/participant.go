package models

import (
	"time"

	"github.com/google/uuid"
)

// Participant is a user's presence entry within a room, unique per
// (room, user). Entries are created on first interaction and only ever
// touched afterwards, never deleted.
type Participant struct {
	RoomID     uuid.UUID `json:"room_id"`
	UserID     string    `json:"user_id"`
	JoinedAt   time.Time `json:"joined_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}
