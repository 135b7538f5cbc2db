package store

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	return NewMemoryStore()
}

func mustCreateRoom(t *testing.T, s *MemoryStore, courseRef, user string) uuid.UUID {
	t.Helper()
	room, err := s.CreateRoomIfAbsent(context.Background(), courseRef, true, "Test Room", "", user)
	if err != nil {
		t.Fatalf("CreateRoomIfAbsent: %v", err)
	}
	return room.ID
}

func TestCreateRoomIfAbsentIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateRoomIfAbsent(ctx, "course-101", true, "Algorithms", "", "alice")
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := s.CreateRoomIfAbsent(ctx, "course-101", true, "Other Name", "", "bob")
	if err != nil {
		t.Fatalf("second create: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("expected same room, got %s and %s", first.ID, second.ID)
	}
	if second.Name != "Algorithms" {
		t.Errorf("second create changed name to %q", second.Name)
	}

	// Both callers were seeded as participants on the surviving room
	participants, err := s.ListParticipants(ctx, first.ID)
	if err != nil {
		t.Fatalf("ListParticipants: %v", err)
	}
	if len(participants) != 2 {
		t.Errorf("expected 2 participants, got %d", len(participants))
	}
}

func TestCreateRoomIfAbsentConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const n = 32
	ids := make([]uuid.UUID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			room, err := s.CreateRoomIfAbsent(ctx, "course-202", true, "Databases", "", "user-"+strconv.Itoa(i))
			if err != nil {
				t.Errorf("create %d: %v", i, err)
				return
			}
			ids[i] = room.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("concurrent creates diverged: %s vs %s", ids[i], ids[0])
		}
	}

	count, err := s.CountRooms(ctx)
	if err != nil {
		t.Fatalf("CountRooms: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 room, got %d", count)
	}
}

func TestAppendMessageAssignsOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	roomID := mustCreateRoom(t, s, "course-303", "alice")

	for i := 0; i < 5; i++ {
		if _, err := s.AppendMessage(ctx, roomID, "alice", "message "+strconv.Itoa(i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	msgs, err := s.ListMessages(ctx, roomID, 50, 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		prev, cur := msgs[i-1], msgs[i]
		if cur.CreatedAt < prev.CreatedAt {
			t.Errorf("timestamp went backwards at %d: %d < %d", i, cur.CreatedAt, prev.CreatedAt)
		}
		if cur.Seq <= prev.Seq {
			t.Errorf("seq not increasing at %d: %d <= %d", i, cur.Seq, prev.Seq)
		}
		if cur.ID <= prev.ID {
			t.Errorf("ulid not increasing at %d: %s <= %s", i, cur.ID, prev.ID)
		}
	}
}

func TestAppendMessageConcurrentSendersTotalOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	roomID := mustCreateRoom(t, s, "course-404", "alice")

	const senders = 8
	const perSender = 20
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perSender; j++ {
				if _, err := s.AppendMessage(ctx, roomID, "user-"+strconv.Itoa(i), "hello"); err != nil {
					t.Errorf("append: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	msgs, err := s.ListMessages(ctx, roomID, senders*perSender, 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != senders*perSender {
		t.Fatalf("expected %d messages, got %d", senders*perSender, len(msgs))
	}

	// Every message got a distinct seq and the log is ordered by it
	seen := make(map[int64]bool, len(msgs))
	for i, m := range msgs {
		if seen[m.Seq] {
			t.Fatalf("duplicate seq %d", m.Seq)
		}
		seen[m.Seq] = true
		if i > 0 && m.Seq <= msgs[i-1].Seq {
			t.Fatalf("log not in seq order at %d", i)
		}
	}
}

func TestAppendMessageValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	roomID := mustCreateRoom(t, s, "course-505", "alice")

	cases := []string{"", "   ", "\n\t "}
	for _, content := range cases {
		if _, err := s.AppendMessage(ctx, roomID, "alice", content); err != ErrEmptyContent {
			t.Errorf("content %q: expected ErrEmptyContent, got %v", content, err)
		}
	}

	msg, err := s.AppendMessage(ctx, roomID, "alice", "  padded  ")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if msg.Content != "padded" {
		t.Errorf("expected trimmed content, got %q", msg.Content)
	}

	if _, err := s.AppendMessage(ctx, uuid.New(), "alice", "hi"); err != ErrRoomNotFound {
		t.Errorf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestListMessagesPaging(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	roomID := mustCreateRoom(t, s, "course-606", "alice")

	for i := 0; i < 10; i++ {
		if _, err := s.AppendMessage(ctx, roomID, "alice", "m"+strconv.Itoa(i)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	tail, err := s.ListMessages(ctx, roomID, 3, 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(tail) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(tail))
	}
	if tail[2].Content != "m9" {
		t.Errorf("expected newest message last, got %q", tail[2].Content)
	}

	// before excludes messages at or after the bound
	earlier, err := s.ListMessages(ctx, roomID, 50, tail[0].CreatedAt)
	if err != nil {
		t.Fatalf("ListMessages before: %v", err)
	}
	for _, m := range earlier {
		if m.CreatedAt >= tail[0].CreatedAt {
			t.Errorf("message %q at %d not before bound %d", m.Content, m.CreatedAt, tail[0].CreatedAt)
		}
	}
}

func TestParticipantUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	roomID := mustCreateRoom(t, s, "course-707", "alice")

	first, err := s.AddOrTouchParticipant(ctx, roomID, "bob")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	second, err := s.AddOrTouchParticipant(ctx, roomID, "bob")
	if err != nil {
		t.Fatalf("touch: %v", err)
	}

	if !second.JoinedAt.Equal(first.JoinedAt) {
		t.Errorf("touch changed JoinedAt")
	}
	if second.LastSeenAt.Before(first.LastSeenAt) {
		t.Errorf("touch did not advance LastSeenAt")
	}

	participants, err := s.ListParticipants(ctx, roomID)
	if err != nil {
		t.Fatalf("ListParticipants: %v", err)
	}
	if len(participants) != 2 { // alice from creation, bob
		t.Errorf("expected 2 participants, got %d", len(participants))
	}
}

func TestMarkReadAndUnreadCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	roomID := mustCreateRoom(t, s, "course-808", "alice")

	for i := 0; i < 3; i++ {
		if _, err := s.AppendMessage(ctx, roomID, "alice", "from alice"); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if _, err := s.AppendMessage(ctx, roomID, "bob", "from bob"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.AddOrTouchParticipant(ctx, roomID, "bob"); err != nil {
		t.Fatalf("add bob: %v", err)
	}

	// Bob has alice's 3 messages unread; his own does not count
	summaries, err := s.ListRoomsForParticipant(ctx, "bob")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	if summaries[0].UnreadCount != 3 {
		t.Errorf("expected 3 unread, got %d", summaries[0].UnreadCount)
	}

	marked, err := s.MarkRead(ctx, roomID, "bob")
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if marked != 3 {
		t.Errorf("expected 3 marked, got %d", marked)
	}

	// Marking again covers nothing new
	marked, err = s.MarkRead(ctx, roomID, "bob")
	if err != nil {
		t.Fatalf("MarkRead again: %v", err)
	}
	if marked != 0 {
		t.Errorf("expected 0 marked on repeat, got %d", marked)
	}

	summaries, _ = s.ListRoomsForParticipant(ctx, "bob")
	if summaries[0].UnreadCount != 0 {
		t.Errorf("expected 0 unread after MarkRead, got %d", summaries[0].UnreadCount)
	}
}

func TestListRoomsForParticipantOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	quiet := mustCreateRoom(t, s, "course-quiet", "alice")
	busy := mustCreateRoom(t, s, "course-busy", "alice")

	if _, err := s.AppendMessage(ctx, busy, "alice", "latest traffic here"); err != nil {
		t.Fatalf("append: %v", err)
	}

	summaries, err := s.ListRoomsForParticipant(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].Room.ID != busy {
		t.Errorf("expected busiest room first, got %s", summaries[0].Room.Name)
	}
	if summaries[0].LastMessagePreview == "" {
		t.Errorf("expected preview for busy room")
	}
	if summaries[1].Room.ID != quiet {
		t.Errorf("expected quiet room second")
	}

	// Outsiders see nothing
	other, err := s.ListRoomsForParticipant(ctx, "mallory")
	if err != nil {
		t.Fatalf("list outsider: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no rooms for non-participant, got %d", len(other))
	}
}

func TestAggregateStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustCreateRoom(t, s, "course-a", "alice")
	b := mustCreateRoom(t, s, "course-b", "alice")

	for i := 0; i < 3; i++ {
		if _, err := s.AppendMessage(ctx, b, "alice", "hi"); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if _, err := s.AppendMessage(ctx, a, "alice", "hi"); err != nil {
		t.Fatalf("append: %v", err)
	}

	rooms, _ := s.CountRooms(ctx)
	if rooms != 2 {
		t.Errorf("expected 2 rooms, got %d", rooms)
	}
	msgs, _ := s.CountMessages(ctx)
	if msgs != 4 {
		t.Errorf("expected 4 messages, got %d", msgs)
	}

	latest, err := s.MostRecentActivity(ctx)
	if err != nil || latest == nil {
		t.Fatalf("MostRecentActivity: %v, %v", latest, err)
	}

	top, err := s.TopActiveRooms(ctx, 1)
	if err != nil {
		t.Fatalf("TopActiveRooms: %v", err)
	}
	if len(top) != 1 || top[0].ID != b {
		t.Errorf("expected room b on top")
	}
}
