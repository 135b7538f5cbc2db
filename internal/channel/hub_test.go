package channel

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/models"
)

func newTestHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(zerolog.Nop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	return hub, cancel
}

func newTestSubscriber(hub *Hub, userID string) *Subscriber {
	return &Subscriber{
		hub:    hub,
		userID: userID,
		send:   make(chan []byte, 64),
	}
}

func recvEvent(t *testing.T, sub *Subscriber) Event {
	t.Helper()
	select {
	case payload := <-sub.send:
		var ev Event
		if err := decodeEvent(payload, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func expectNoEvent(t *testing.T, sub *Subscriber) {
	t.Helper()
	select {
	case payload := <-sub.send:
		t.Fatalf("unexpected event: %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDeliversToRoomSubscribers(t *testing.T) {
	hub, cancel := newTestHub(t)
	defer cancel()

	inRoom := newTestSubscriber(hub, "alice")
	elsewhere := newTestSubscriber(hub, "bob")
	hub.register <- &subscription{sub: inRoom, roomID: "room-1"}
	hub.register <- &subscription{sub: elsewhere, roomID: "room-2"}

	msg := &models.Message{ID: "m1", RoomID: "room-1", SenderID: "carol", Content: "hi"}
	hub.MessageCreated(context.Background(), Event{RoomID: "room-1", Message: msg})

	ev := recvEvent(t, inRoom)
	if ev.Type != EventMessageCreated {
		t.Errorf("expected %s, got %s", EventMessageCreated, ev.Type)
	}
	if ev.Message == nil || ev.Message.ID != "m1" {
		t.Errorf("event lost the message payload")
	}

	expectNoEvent(t, elsewhere)
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub, cancel := newTestHub(t)
	defer cancel()

	sub := newTestSubscriber(hub, "alice")
	hub.register <- &subscription{sub: sub, roomID: "room-1"}
	hub.Typing(context.Background(), "room-1", "bob")
	recvEvent(t, sub)

	hub.unregister <- &subscription{sub: sub, roomID: "room-1"}
	hub.Typing(context.Background(), "room-1", "bob")
	expectNoEvent(t, sub)
}

func TestHubDetachClosesAndRemovesEverywhere(t *testing.T) {
	hub, cancel := newTestHub(t)
	defer cancel()

	sub := newTestSubscriber(hub, "alice")
	hub.register <- &subscription{sub: sub, roomID: "room-1"}
	hub.register <- &subscription{sub: sub, roomID: "room-2"}

	hub.detach <- sub

	// The send channel closes once the detach is processed
	select {
	case _, ok := <-sub.send:
		if ok {
			t.Fatal("expected closed channel, got event")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed after detach")
	}
}

func TestSubscriberCloseAfterShutdown(t *testing.T) {
	hub, cancel := newTestHub(t)

	sub := newTestSubscriber(hub, "alice")
	hub.register <- &subscription{sub: sub, roomID: "room-1"}

	cancel()
	<-hub.done

	// With the run loop gone, nothing drains detach; Close must still return.
	closed := make(chan struct{})
	go func() {
		sub.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked after hub shutdown")
	}
}

func TestHubTypingEvent(t *testing.T) {
	hub, cancel := newTestHub(t)
	defer cancel()

	sub := newTestSubscriber(hub, "alice")
	hub.register <- &subscription{sub: sub, roomID: "room-1"}

	hub.Typing(context.Background(), "room-1", "bob")

	ev := recvEvent(t, sub)
	if ev.Type != EventTyping {
		t.Errorf("expected typing event, got %s", ev.Type)
	}
	if ev.UserID != "bob" {
		t.Errorf("expected typist bob, got %q", ev.UserID)
	}
	if ev.Message != nil {
		t.Errorf("typing events must not carry a message")
	}
}
