package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/models"
)

// MemoryStore is a goroutine-safe in-memory RoomStore. It backs development
// mode when no database is configured, and the unit tests.
//
// Appends contend on a per-room mutex only; the store-level lock is taken
// just to locate the room, so rooms never block each other.
type MemoryStore struct {
	mu       sync.RWMutex
	rooms    map[uuid.UUID]*memRoom
	byCourse map[string]uuid.UUID // active rooms only
	seq      atomic.Int64
}

type memRoom struct {
	mu           sync.Mutex
	room         models.Room
	participants map[string]*models.Participant
	messages     []models.Message
	receipts     map[string]map[string]int64 // message id -> user id -> read at
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:    make(map[uuid.UUID]*memRoom),
		byCourse: make(map[string]uuid.UUID),
	}
}

func (s *MemoryStore) Close() {}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// CreateRoomIfAbsent creates a room under the store lock, so two concurrent
// calls for the same course reference converge on one room.
func (s *MemoryStore) CreateRoomIfAbsent(ctx context.Context, courseRef string, courseScoped bool, name, description, initialParticipant string) (*models.Room, error) {
	s.mu.Lock()
	id, ok := s.byCourse[courseRef]
	if !ok {
		now := time.Now()
		ref := courseRef
		id = uuid.New()
		s.rooms[id] = &memRoom{
			room: models.Room{
				ID:             id,
				CourseRef:      &ref,
				Name:           name,
				Description:    description,
				Active:         true,
				CourseScoped:   courseScoped,
				CreatedAt:      now,
				LastActivityAt: now,
			},
			participants: make(map[string]*models.Participant),
			receipts:     make(map[string]map[string]int64),
		}
		s.byCourse[courseRef] = id
	}
	s.mu.Unlock()

	if _, err := s.AddOrTouchParticipant(ctx, id, initialParticipant); err != nil {
		return nil, err
	}
	return s.GetRoomByID(ctx, id)
}

func (s *MemoryStore) find(id uuid.UUID) *memRoom {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms[id]
}

// GetRoomByID retrieves a room by id.
func (s *MemoryStore) GetRoomByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	r := s.find(id)
	if r == nil {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	room := r.room
	return &room, nil
}

// GetRoomByCourse retrieves the active room for a course reference.
func (s *MemoryStore) GetRoomByCourse(ctx context.Context, courseRef string) (*models.Room, error) {
	s.mu.RLock()
	id, ok := s.byCourse[courseRef]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return s.GetRoomByID(ctx, id)
}

// ListRoomsForParticipant returns room summaries for the user's rooms,
// newest activity first.
func (s *MemoryStore) ListRoomsForParticipant(ctx context.Context, userID string) ([]models.RoomSummary, error) {
	s.mu.RLock()
	all := make([]*memRoom, 0, len(s.rooms))
	for _, r := range s.rooms {
		all = append(all, r)
	}
	s.mu.RUnlock()

	var summaries []models.RoomSummary
	for _, r := range all {
		r.mu.Lock()
		if !r.room.Active {
			r.mu.Unlock()
			continue
		}
		if _, ok := r.participants[userID]; !ok {
			r.mu.Unlock()
			continue
		}
		sum := models.RoomSummary{
			Room:           r.room,
			LastActivityAt: r.room.LastActivityAt,
		}
		if n := len(r.messages); n > 0 {
			sum.LastMessagePreview = previewOf(r.messages[n-1].Content)
		}
		for _, m := range r.messages {
			if m.SenderID == userID {
				continue
			}
			if _, read := r.receipts[m.ID][userID]; !read {
				sum.UnreadCount++
			}
		}
		r.mu.Unlock()
		summaries = append(summaries, sum)
	}

	sortSummaries(summaries)
	return summaries, nil
}

func sortSummaries(summaries []models.RoomSummary) {
	// Insertion sort; room lists are small.
	for i := 1; i < len(summaries); i++ {
		for j := i; j > 0 && summaries[j].LastActivityAt.After(summaries[j-1].LastActivityAt); j-- {
			summaries[j], summaries[j-1] = summaries[j-1], summaries[j]
		}
	}
}

// AppendMessage validates and appends one message to the room's log.
func (s *MemoryStore) AppendMessage(ctx context.Context, roomID uuid.UUID, senderID, content string) (*models.Message, error) {
	trimmed, err := validateContent(content)
	if err != nil {
		return nil, err
	}

	r := s.find(roomID)
	if r == nil {
		return nil, ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	msg := models.Message{
		ID:        ulid.Make().String(),
		RoomID:    roomID.String(),
		SenderID:  senderID,
		Content:   trimmed,
		CreatedAt: now.UnixMilli(),
		Seq:       s.seq.Add(1),
	}
	r.messages = append(r.messages, msg)
	r.room.LastActivityAt = now
	return &msg, nil
}

// ListMessages retrieves messages in log order.
func (s *MemoryStore) ListMessages(ctx context.Context, roomID uuid.UUID, limit int, before int64) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	r := s.find(roomID)
	if r == nil {
		return nil, ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Message
	for _, m := range r.messages {
		if before > 0 && m.CreatedAt >= before {
			continue
		}
		out = append(out, m)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// AddOrTouchParticipant upserts the user's presence entry for the room.
func (s *MemoryStore) AddOrTouchParticipant(ctx context.Context, roomID uuid.UUID, userID string) (*models.Participant, error) {
	r := s.find(roomID)
	if r == nil {
		return nil, ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	p, ok := r.participants[userID]
	if !ok {
		p = &models.Participant{
			RoomID:     roomID,
			UserID:     userID,
			JoinedAt:   now,
			LastSeenAt: now,
		}
		r.participants[userID] = p
	} else {
		p.LastSeenAt = now
	}
	out := *p
	return &out, nil
}

// ListParticipants returns the room's participants, earliest joiner first.
func (s *MemoryStore) ListParticipants(ctx context.Context, roomID uuid.UUID) ([]models.Participant, error) {
	r := s.find(roomID)
	if r == nil {
		return nil, ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, *p)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].JoinedAt.Before(out[j-1].JoinedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

// MarkRead records read receipts for unread messages not sent by the user.
func (s *MemoryStore) MarkRead(ctx context.Context, roomID uuid.UUID, userID string) (int64, error) {
	r := s.find(roomID)
	if r == nil {
		return 0, ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UnixMilli()
	var marked int64
	for _, m := range r.messages {
		if m.SenderID == userID {
			continue
		}
		if r.receipts[m.ID] == nil {
			r.receipts[m.ID] = make(map[string]int64)
		}
		if _, ok := r.receipts[m.ID][userID]; !ok {
			r.receipts[m.ID][userID] = now
			marked++
		}
	}
	return marked, nil
}

// CountRooms returns the number of active rooms.
func (s *MemoryStore) CountRooms(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.byCourse)), nil
}

// CountMessages returns the total number of stored messages.
func (s *MemoryStore) CountMessages(ctx context.Context) (int64, error) {
	s.mu.RLock()
	all := make([]*memRoom, 0, len(s.rooms))
	for _, r := range s.rooms {
		all = append(all, r)
	}
	s.mu.RUnlock()

	var count int64
	for _, r := range all {
		r.mu.Lock()
		count += int64(len(r.messages))
		r.mu.Unlock()
	}
	return count, nil
}

// MostRecentActivity returns the most recent activity timestamp across rooms.
func (s *MemoryStore) MostRecentActivity(ctx context.Context) (*time.Time, error) {
	s.mu.RLock()
	all := make([]*memRoom, 0, len(s.rooms))
	for _, r := range s.rooms {
		all = append(all, r)
	}
	s.mu.RUnlock()

	var latest *time.Time
	for _, r := range all {
		r.mu.Lock()
		t := r.room.LastActivityAt
		r.mu.Unlock()
		if latest == nil || t.After(*latest) {
			tt := t
			latest = &tt
		}
	}
	return latest, nil
}

// TopActiveRooms returns the most message-heavy active rooms.
func (s *MemoryStore) TopActiveRooms(ctx context.Context, limit int) ([]models.Room, error) {
	s.mu.RLock()
	all := make([]*memRoom, 0, len(s.rooms))
	for _, r := range s.rooms {
		all = append(all, r)
	}
	s.mu.RUnlock()

	type scored struct {
		room  models.Room
		count int
	}
	var rooms []scored
	for _, r := range all {
		r.mu.Lock()
		if r.room.Active {
			rooms = append(rooms, scored{room: r.room, count: len(r.messages)})
		}
		r.mu.Unlock()
	}
	for i := 1; i < len(rooms); i++ {
		for j := i; j > 0 && rooms[j].count > rooms[j-1].count; j-- {
			rooms[j], rooms[j-1] = rooms[j-1], rooms[j]
		}
	}
	if len(rooms) > limit {
		rooms = rooms[:limit]
	}
	out := make([]models.Room, len(rooms))
	for i, sc := range rooms {
		out[i] = sc.room
	}
	return out, nil
}
