package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/models"
)

// ErrEmptyContent is returned by AppendMessage when the message content is
// empty or whitespace-only. It is rejected before anything is persisted.
var ErrEmptyContent = errors.New("message content is empty")

// ErrRoomNotFound is returned by operations that require an existing room.
var ErrRoomNotFound = errors.New("room not found")

// RoomStore defines the interface for persistent storage of rooms,
// participants and messages. PostgresStore, SQLiteStore and MemoryStore
// implement this interface.
//
// Point lookups return (nil, nil) when the record does not exist.
type RoomStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Room operations. CreateRoomIfAbsent is an atomic upsert on the course
	// reference: two concurrent calls for the same reference converge on one
	// room, and the initial participant is seeded on whichever room wins.
	CreateRoomIfAbsent(ctx context.Context, courseRef string, courseScoped bool, name, description, initialParticipant string) (*models.Room, error)
	GetRoomByID(ctx context.Context, id uuid.UUID) (*models.Room, error)
	GetRoomByCourse(ctx context.Context, courseRef string) (*models.Room, error)
	ListRoomsForParticipant(ctx context.Context, userID string) ([]models.RoomSummary, error)

	// Message operations. AppendMessage assigns the id and timestamp, extends
	// the room's log atomically and bumps last_activity_at. ListMessages
	// returns ascending (created_at, seq) order; before is an exclusive unix
	// ms upper bound, 0 meaning no bound.
	AppendMessage(ctx context.Context, roomID uuid.UUID, senderID, content string) (*models.Message, error)
	ListMessages(ctx context.Context, roomID uuid.UUID, limit int, before int64) ([]models.Message, error)

	// Participant operations. AddOrTouchParticipant inserts with
	// joined_at = last_seen_at = now when absent, else touches last_seen_at.
	AddOrTouchParticipant(ctx context.Context, roomID uuid.UUID, userID string) (*models.Participant, error)
	ListParticipants(ctx context.Context, roomID uuid.UUID) ([]models.Participant, error)

	// MarkRead records read receipts for every message in the room the user
	// has not yet read and did not send. Returns how many were marked.
	MarkRead(ctx context.Context, roomID uuid.UUID, userID string) (int64, error)

	// Aggregate stats
	CountRooms(ctx context.Context) (int64, error)
	CountMessages(ctx context.Context) (int64, error)
	MostRecentActivity(ctx context.Context) (*time.Time, error)
	TopActiveRooms(ctx context.Context, limit int) ([]models.Room, error)
}

// validateContent trims and checks message content. Shared by all backends so
// the validation contract cannot drift between them.
func validateContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", ErrEmptyContent
	}
	return trimmed, nil
}

// previewOf shortens message content for room listings.
func previewOf(content string) string {
	if len(content) > 80 {
		return content[:77] + "..."
	}
	return content
}
