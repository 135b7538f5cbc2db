package rooms

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/channel"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/directory"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/store"
)

// capturePublisher records published events instead of fanning them out.
type capturePublisher struct {
	mu     sync.Mutex
	events []channel.Event
}

func (p *capturePublisher) MessageCreated(ctx context.Context, ev channel.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ev.Type = channel.EventMessageCreated
	p.events = append(p.events, ev)
}

func (p *capturePublisher) Typing(ctx context.Context, roomID, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, channel.Event{Type: channel.EventTyping, RoomID: roomID, UserID: userID})
}

func (p *capturePublisher) byType(eventType string) []channel.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []channel.Event
	for _, ev := range p.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func newTestService(t *testing.T) (*Service, *directory.StaticDirectory, *capturePublisher) {
	t.Helper()
	st := store.NewMemoryStore()
	dir := directory.NewStaticDirectory()
	pub := &capturePublisher{}
	return NewService(st, dir, pub, zerolog.Nop()), dir, pub
}

func TestSendMessageAppendsAndPublishes(t *testing.T) {
	svc, dir, pub := newTestService(t)
	ctx := context.Background()
	dir.AddCourse("cs-101", "Intro to CS")

	result, err := svc.SendMessage(ctx, "cs-101", "alice", "hello class")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if result.Message.Content != "hello class" {
		t.Errorf("unexpected content %q", result.Message.Content)
	}
	if result.RoomID == "" {
		t.Errorf("expected canonical room id in result")
	}

	events := pub.byType(channel.EventMessageCreated)
	if len(events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(events))
	}
	if events[0].RoomID != result.RoomID {
		t.Errorf("event room %s does not match result room %s", events[0].RoomID, result.RoomID)
	}
	if events[0].Message == nil || events[0].Message.ID != result.Message.ID {
		t.Errorf("event does not carry the stored message")
	}
}

func TestSendMessageEmptyContent(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, "room-x", "alice", "   ")
	if !errors.Is(err, store.ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
	if len(pub.byType(channel.EventMessageCreated)) != 0 {
		t.Errorf("rejected send must not publish")
	}
}

func TestGetMessagesDecoratesSenderNames(t *testing.T) {
	svc, dir, _ := newTestService(t)
	ctx := context.Background()
	dir.AddUser("alice", "Alice Chen")

	if _, err := svc.SendMessage(ctx, "seminar", "alice", "first"); err != nil {
		t.Fatalf("send: %v", err)
	}

	_, msgs, err := svc.GetMessages(ctx, "seminar", "bob", 50, 0)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].SenderName != "Alice Chen" {
		t.Errorf("expected display name, got %q", msgs[0].SenderName)
	}
}

func TestGetMessagesRecordsPresence(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.SendMessage(ctx, "seminar", "alice", "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, _, err := svc.GetMessages(ctx, "seminar", "bob", 50, 0); err != nil {
		t.Fatalf("GetMessages: %v", err)
	}

	// Reading made bob a participant, so the room shows up in his listing
	summaries, err := svc.ListMyRooms(ctx, "bob")
	if err != nil {
		t.Fatalf("ListMyRooms: %v", err)
	}
	if len(summaries) != 1 {
		t.Errorf("expected bob to be a participant after reading, got %d rooms", len(summaries))
	}
}

func TestListMyRoomsEnrollmentGate(t *testing.T) {
	svc, dir, _ := newTestService(t)
	ctx := context.Background()
	dir.AddCourse("cs-200", "Data Structures")
	dir.SetEnrollment("alice", "cs-200", true)

	if _, err := svc.SendMessage(ctx, "cs-200", "alice", "welcome"); err != nil {
		t.Fatalf("send course room: %v", err)
	}
	if _, err := svc.SendMessage(ctx, "reading-club", "alice", "chapter one"); err != nil {
		t.Fatalf("send ad hoc room: %v", err)
	}

	// Active enrollment: both rooms visible
	summaries, err := svc.ListMyRooms(ctx, "alice")
	if err != nil {
		t.Fatalf("ListMyRooms: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 rooms while enrolled, got %d", len(summaries))
	}

	// Dropped enrollment hides the course room but not the ad hoc room
	dir.SetEnrollment("alice", "cs-200", false)
	summaries, err = svc.ListMyRooms(ctx, "alice")
	if err != nil {
		t.Fatalf("ListMyRooms after drop: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 room after drop, got %d", len(summaries))
	}
	if summaries[0].Room.CourseScoped {
		t.Errorf("course room leaked past enrollment gate")
	}
}

func TestTypingPublishesEphemeralEvent(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()

	if err := svc.Typing(ctx, "seminar", "alice"); err != nil {
		t.Fatalf("Typing: %v", err)
	}

	events := pub.byType(channel.EventTyping)
	if len(events) != 1 {
		t.Fatalf("expected 1 typing event, got %d", len(events))
	}
	if events[0].UserID != "alice" {
		t.Errorf("expected typing attributed to alice, got %q", events[0].UserID)
	}
}

func TestMarkReadThroughService(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.SendMessage(ctx, "seminar", "alice", "one"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.SendMessage(ctx, "seminar", "alice", "two"); err != nil {
		t.Fatalf("send: %v", err)
	}

	marked, err := svc.MarkRead(ctx, "seminar", "bob")
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if marked != 2 {
		t.Errorf("expected 2 marked, got %d", marked)
	}
}
