package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/models"
)

// SQLiteStore is a single-node RoomStore for small deployments and local
// development. SQLite serializes writers at the database level, which
// trivially satisfies the per-room append atomicity guarantee.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/connectify.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/connectify.db"
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// initSchema creates tables if they don't exist. Messages use the implicit
// rowid as the insert sequence, so (created_at, rowid) gives the same total
// order the Postgres backend gets from its BIGSERIAL.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		course_ref TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		course_scoped INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		last_activity_at DATETIME NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_rooms_course_ref_active
		ON rooms(course_ref) WHERE active = 1;

	CREATE TABLE IF NOT EXISTS participants (
		room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		joined_at DATETIME NOT NULL,
		last_seen_at DATETIME NOT NULL,
		PRIMARY KEY (room_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		sender_id TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_room_order
		ON messages(room_id, created_at);

	CREATE TABLE IF NOT EXISTS read_receipts (
		message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		read_at INTEGER NOT NULL,
		PRIMARY KEY (message_id, user_id)
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) scanRoomRow(row *sql.Row) (*models.Room, error) {
	room := &models.Room{}
	var idStr, courseRef string
	var activeInt, scopedInt int
	err := row.Scan(
		&idStr,
		&courseRef,
		&room.Name,
		&room.Description,
		&activeInt,
		&scopedInt,
		&room.CreatedAt,
		&room.LastActivityAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	room.ID = uuid.MustParse(idStr)
	room.CourseRef = &courseRef
	room.Active = activeInt == 1
	room.CourseScoped = scopedInt == 1
	return room, nil
}

// CreateRoomIfAbsent inserts a room unless an active room for the course
// reference exists, then returns the winner with the participant seeded.
func (s *SQLiteStore) CreateRoomIfAbsent(ctx context.Context, courseRef string, courseScoped bool, name, description, initialParticipant string) (*models.Room, error) {
	now := time.Now()
	scopedInt := 0
	if courseScoped {
		scopedInt = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rooms (id, course_ref, name, description, active, course_scoped, created_at, last_activity_at)
		VALUES (?, ?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT (course_ref) WHERE active = 1 DO NOTHING
	`, uuid.New().String(), courseRef, name, description, scopedInt, now, now)
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
func (s *SQLiteStore) GetRoomByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	return s.scanRoomRow(s.db.QueryRowContext(ctx, `
		SELECT id, course_ref, name, description, active, course_scoped, created_at, last_activity_at
		FROM rooms WHERE id = ?
	`, id.String()))
}

// GetRoomByCourse retrieves the active room for a course reference.
func (s *SQLiteStore) GetRoomByCourse(ctx context.Context, courseRef string) (*models.Room, error) {
	return s.scanRoomRow(s.db.QueryRowContext(ctx, `
		SELECT id, course_ref, name, description, active, course_scoped, created_at, last_activity_at
		FROM rooms WHERE course_ref = ? AND active = 1
	`, courseRef))
}

// ListRoomsForParticipant returns room summaries for the user's rooms.
func (s *SQLiteStore) ListRoomsForParticipant(ctx context.Context, userID string) ([]models.RoomSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.course_ref, r.name, r.description, r.active, r.course_scoped,
		       r.created_at, r.last_activity_at,
		       COALESCE((
		           SELECT m.content FROM messages m
		           WHERE m.room_id = r.id
		           ORDER BY m.created_at DESC, m.rowid DESC
		           LIMIT 1
		       ), ''),
		       (
		           SELECT COUNT(*) FROM messages m
		           WHERE m.room_id = r.id
		             AND m.sender_id <> ?
		             AND NOT EXISTS (
		               SELECT 1 FROM read_receipts rr
		               WHERE rr.message_id = m.id AND rr.user_id = ?
		             )
		       )
		FROM rooms r
		JOIN participants p ON p.room_id = r.id AND p.user_id = ?
		WHERE r.active = 1
		ORDER BY r.last_activity_at DESC
	`, userID, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []models.RoomSummary
	for rows.Next() {
		var sum models.RoomSummary
		var idStr, courseRef, preview string
		var activeInt, scopedInt int
		err := rows.Scan(
			&idStr,
			&courseRef,
			&sum.Room.Name,
			&sum.Room.Description,
			&activeInt,
			&scopedInt,
			&sum.Room.CreatedAt,
			&sum.Room.LastActivityAt,
			&preview,
			&sum.UnreadCount,
		)
		if err != nil {
			return nil, err
		}
		sum.Room.ID = uuid.MustParse(idStr)
		sum.Room.CourseRef = &courseRef
		sum.Room.Active = activeInt == 1
		sum.Room.CourseScoped = scopedInt == 1
		sum.LastMessagePreview = previewOf(preview)
		sum.LastActivityAt = sum.Room.LastActivityAt
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// AppendMessage validates and appends one message to the room's log.
func (s *SQLiteStore) AppendMessage(ctx context.Context, roomID uuid.UUID, senderID, content string) (*models.Message, error) {
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, room_id, sender_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID, roomID.String(), senderID, trimmed, msg.CreatedAt)
	if err != nil {
		return nil, err
	}
	msg.Seq, err = res.LastInsertId()
	if err != nil {
		return nil, err
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE rooms SET last_activity_at = ? WHERE id = ?
	`, time.Now(), roomID.String())
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrRoomNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages retrieves messages in ascending (created_at, rowid) order.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID uuid.UUID, limit int, before int64) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, sender_id, content, created_at, rowid
		FROM messages
		WHERE room_id = ? AND (? = 0 OR created_at < ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, roomID.String(), before, before, limit)
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

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// AddOrTouchParticipant upserts the user's presence entry for the room.
func (s *SQLiteStore) AddOrTouchParticipant(ctx context.Context, roomID uuid.UUID, userID string) (*models.Participant, error) {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO participants (room_id, user_id, joined_at, last_seen_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (room_id, user_id) DO UPDATE SET last_seen_at = excluded.last_seen_at
	`, roomID.String(), userID, now, now)
	if err != nil {
		return nil, err
	}

	p := &models.Participant{}
	var idStr string
	err = s.db.QueryRowContext(ctx, `
		SELECT room_id, user_id, joined_at, last_seen_at
		FROM participants WHERE room_id = ? AND user_id = ?
	`, roomID.String(), userID).Scan(&idStr, &p.UserID, &p.JoinedAt, &p.LastSeenAt)
	if err != nil {
		return nil, err
	}
	p.RoomID = uuid.MustParse(idStr)
	return p, nil
}

// ListParticipants returns the room's participants, earliest joiner first.
func (s *SQLiteStore) ListParticipants(ctx context.Context, roomID uuid.UUID) ([]models.Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT room_id, user_id, joined_at, last_seen_at
		FROM participants WHERE room_id = ?
		ORDER BY joined_at
	`, roomID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var p models.Participant
		var idStr string
		if err := rows.Scan(&idStr, &p.UserID, &p.JoinedAt, &p.LastSeenAt); err != nil {
			return nil, err
		}
		p.RoomID = uuid.MustParse(idStr)
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// MarkRead inserts read receipts for unread messages not sent by the user.
func (s *SQLiteStore) MarkRead(ctx context.Context, roomID uuid.UUID, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO read_receipts (message_id, user_id, read_at)
		SELECT m.id, ?, ? FROM messages m
		WHERE m.room_id = ? AND m.sender_id <> ?
	`, userID, time.Now().UnixMilli(), roomID.String(), userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountRooms returns the number of active rooms.
func (s *SQLiteStore) CountRooms(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms WHERE active = 1`).Scan(&count)
	return count, err
}

// CountMessages returns the total number of stored messages.
func (s *SQLiteStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

// MostRecentActivity returns the most recent activity timestamp across rooms.
func (s *SQLiteStore) MostRecentActivity(ctx context.Context) (*time.Time, error) {
	var t *time.Time
	err := s.db.QueryRowContext(ctx, `SELECT MAX(last_activity_at) FROM rooms`).Scan(&t)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// TopActiveRooms returns the most message-heavy active rooms.
func (s *SQLiteStore) TopActiveRooms(ctx context.Context, limit int) ([]models.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.course_ref, r.name, r.description, r.active, r.course_scoped,
		       r.created_at, r.last_activity_at
		FROM rooms r
		LEFT JOIN messages m ON m.room_id = r.id
		WHERE r.active = 1
		GROUP BY r.id
		ORDER BY COUNT(m.id) DESC, r.last_activity_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		var room models.Room
		var idStr, courseRef string
		var activeInt, scopedInt int
		err := rows.Scan(
			&idStr,
			&courseRef,
			&room.Name,
			&room.Description,
			&activeInt,
			&scopedInt,
			&room.CreatedAt,
			&room.LastActivityAt,
		)
		if err != nil {
			return nil, err
		}
		room.ID = uuid.MustParse(idStr)
		room.CourseRef = &courseRef
		room.Active = activeInt == 1
		room.CourseScoped = scopedInt == 1
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}
