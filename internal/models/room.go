package models

import (
	"time"

	"github.com/google/uuid"
)

// Room is the canonical discussion unit. At most one active room exists for
// any given course reference; ad hoc rooms keep the raw identifier they were
// first addressed by as their reference, distinguished by CourseScoped.
type Room struct {
	ID             uuid.UUID `json:"id"`
	CourseRef      *string   `json:"course_ref,omitempty"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Active         bool      `json:"active"`
	CourseScoped   bool      `json:"course_scoped"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// RoomSummary is the per-user view of a room used by room listings.
type RoomSummary struct {
	Room               Room      `json:"room"`
	LastMessagePreview string    `json:"last_message_preview,omitempty"`
	LastActivityAt     time.Time `json:"last_activity_at"`
	UnreadCount        int64     `json:"unread_count"`
}
