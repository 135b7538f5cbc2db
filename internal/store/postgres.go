package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/models"
)

// PostgresStore is the production RoomStore backed by a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store and ensures the schema.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// initSchema creates tables if they don't exist. The partial unique index on
// course_ref is what makes CreateRoomIfAbsent safe under concurrency: the
// storage layer, not the resolver, arbitrates duplicate creation.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id UUID PRIMARY KEY,
		course_ref TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		course_scoped BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_activity_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_rooms_course_ref_active
		ON rooms(course_ref) WHERE active;

	CREATE TABLE IF NOT EXISTS participants (
		room_id UUID NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (room_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		room_id UUID NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		sender_id TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		seq BIGSERIAL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_room_order
		ON messages(room_id, created_at, seq);

	CREATE TABLE IF NOT EXISTS read_receipts (
		message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		read_at BIGINT NOT NULL,
		PRIMARY KEY (message_id, user_id)
	);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const roomColumns = `id, course_ref, name, description, active, course_scoped, created_at, last_activity_at`

func scanRoom(row pgx.Row) (*models.Room, error) {
	room := &models.Room{}
	var courseRef string
	err := row.Scan(
		&room.ID,
		&courseRef,
		&room.Name,
		&room.Description,
		&room.Active,
		&room.CourseScoped,
		&room.CreatedAt,
		&room.LastActivityAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	room.CourseRef = &courseRef
	return room, nil
}

// CreateRoomIfAbsent inserts a room unless an active room for the course
// reference already exists, and returns whichever room holds the reference
// afterwards. The initial participant is seeded on the winning room either
// way, so concurrent first-time resolutions all end up joined.
func (s *PostgresStore) CreateRoomIfAbsent(ctx context.Context, courseRef string, courseScoped bool, name, description, initialParticipant string) (*models.Room, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rooms (id, course_ref, name, description, course_scoped)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (course_ref) WHERE active DO NOTHING
	`, uuid.New(), courseRef, name, description, courseScoped)
	if err != nil {
		return nil, err
	}

	room, err := s.GetRoomByCourse(ctx, courseRef)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}

	if _, err := s.AddOrTouchParticipant(ctx, room.ID, initialParticipant); err != nil {
		return nil, err
	}
	return room, nil
}

// GetRoomByID retrieves a room by id.
func (s *PostgresStore) GetRoomByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	return scanRoom(s.pool.QueryRow(ctx, `
		SELECT `+roomColumns+` FROM rooms WHERE id = $1
	`, id))
}

// GetRoomByCourse retrieves the active room for a course reference.
func (s *PostgresStore) GetRoomByCourse(ctx context.Context, courseRef string) (*models.Room, error) {
	return scanRoom(s.pool.QueryRow(ctx, `
		SELECT `+roomColumns+` FROM rooms WHERE course_ref = $1 AND active
	`, courseRef))
}

// ListRoomsForParticipant returns room summaries for every active room the
// user participates in, newest activity first. Enrollment gating is the
// caller's concern; the store only knows participation.
func (s *PostgresStore) ListRoomsForParticipant(ctx context.Context, userID string) ([]models.RoomSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+prefixedRoomColumns("r")+`,
		       COALESCE(lm.content, ''),
		       COALESCE(un.unread, 0)
		FROM rooms r
		JOIN participants p ON p.room_id = r.id AND p.user_id = $1
		LEFT JOIN LATERAL (
			SELECT m.content FROM messages m
			WHERE m.room_id = r.id
			ORDER BY m.created_at DESC, m.seq DESC
			LIMIT 1
		) lm ON TRUE
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS unread FROM messages m
			WHERE m.room_id = r.id
			  AND m.sender_id <> $1
			  AND NOT EXISTS (
				SELECT 1 FROM read_receipts rr
				WHERE rr.message_id = m.id AND rr.user_id = $1
			  )
		) un ON TRUE
		WHERE r.active
		ORDER BY r.last_activity_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []models.RoomSummary
	for rows.Next() {
		var sum models.RoomSummary
		var courseRef string
		var preview string
		err := rows.Scan(
			&sum.Room.ID,
			&courseRef,
			&sum.Room.Name,
			&sum.Room.Description,
			&sum.Room.Active,
			&sum.Room.CourseScoped,
			&sum.Room.CreatedAt,
			&sum.Room.LastActivityAt,
			&preview,
			&sum.UnreadCount,
		)
		if err != nil {
			return nil, err
		}
		sum.Room.CourseRef = &courseRef
		sum.LastMessagePreview = previewOf(preview)
		sum.LastActivityAt = sum.Room.LastActivityAt
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

func prefixedRoomColumns(alias string) string {
	return alias + ".id, " + alias + ".course_ref, " + alias + ".name, " + alias + ".description, " +
		alias + ".active, " + alias + ".course_scoped, " + alias + ".created_at, " + alias + ".last_activity_at"
}

// AppendMessage validates and appends one message to the room's log. The id
// is a ULID and created_at is assigned here; the BIGSERIAL seq breaks
// same-millisecond ties, so ordering by (created_at, seq) is total.
func (s *PostgresStore) AppendMessage(ctx context.Context, roomID uuid.UUID, senderID, content string) (*models.Message, error) {
	trimmed, err := validateContent(content)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:        ulid.Make().String(),
		RoomID:    roomID.String(),
		SenderID:  senderID,
		Content:   trimmed,
		CreatedAt: time.Now().UnixMilli(),
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO messages (id, room_id, sender_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seq
	`, msg.ID, roomID, senderID, trimmed, msg.CreatedAt).Scan(&msg.Seq)
	if err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rooms SET last_activity_at = NOW() WHERE id = $1
	`, roomID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrRoomNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages retrieves messages in ascending (created_at, seq) order. When
// before > 0 only messages strictly older are returned; the most recent
// `limit` of those are kept.
func (s *PostgresStore) ListMessages(ctx context.Context, roomID uuid.UUID, limit int, before int64) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, room_id, sender_id, content, created_at, seq
		FROM messages
		WHERE room_id = $1 AND ($2 = 0 OR created_at < $2)
		ORDER BY created_at DESC, seq DESC
		LIMIT $3
	`, roomID, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.Content, &msg.CreatedAt, &msg.Seq); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Flip newest-first fetch order into log order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// AddOrTouchParticipant upserts the user's presence entry for the room.
func (s *PostgresStore) AddOrTouchParticipant(ctx context.Context, roomID uuid.UUID, userID string) (*models.Participant, error) {
	p := &models.Participant{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO participants (room_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (room_id, user_id) DO UPDATE SET last_seen_at = NOW()
		RETURNING room_id, user_id, joined_at, last_seen_at
	`, roomID, userID).Scan(&p.RoomID, &p.UserID, &p.JoinedAt, &p.LastSeenAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListParticipants returns the room's participants, earliest joiner first.
func (s *PostgresStore) ListParticipants(ctx context.Context, roomID uuid.UUID) ([]models.Participant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT room_id, user_id, joined_at, last_seen_at
		FROM participants WHERE room_id = $1
		ORDER BY joined_at
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.RoomID, &p.UserID, &p.JoinedAt, &p.LastSeenAt); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// MarkRead inserts read receipts for every message the user has not read and
// did not send.
func (s *PostgresStore) MarkRead(ctx context.Context, roomID uuid.UUID, userID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO read_receipts (message_id, user_id, read_at)
		SELECT m.id, $2, $3 FROM messages m
		WHERE m.room_id = $1 AND m.sender_id <> $2
		ON CONFLICT DO NOTHING
	`, roomID, userID, time.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountRooms returns the number of active rooms.
func (s *PostgresStore) CountRooms(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rooms WHERE active`).Scan(&count)
	return count, err
}

// CountMessages returns the total number of stored messages.
func (s *PostgresStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

// MostRecentActivity returns the most recent activity timestamp across rooms.
func (s *PostgresStore) MostRecentActivity(ctx context.Context) (*time.Time, error) {
	var t *time.Time
	err := s.pool.QueryRow(ctx, `SELECT MAX(last_activity_at) FROM rooms`).Scan(&t)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// TopActiveRooms returns the most message-heavy active rooms.
func (s *PostgresStore) TopActiveRooms(ctx context.Context, limit int) ([]models.Room, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+prefixedRoomColumns("r")+`
		FROM rooms r
		LEFT JOIN messages m ON m.room_id = r.id
		WHERE r.active
		GROUP BY r.id
		ORDER BY COUNT(m.id) DESC, r.last_activity_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		var room models.Room
		var courseRef string
		err := rows.Scan(
			&room.ID,
			&courseRef,
			&room.Name,
			&room.Description,
			&room.Active,
			&room.CourseScoped,
			&room.CreatedAt,
			&room.LastActivityAt,
		)
		if err != nil {
			return nil, err
		}
		room.CourseRef = &courseRef
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}
