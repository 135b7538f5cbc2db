package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/channel"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/config"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/directory"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/handlers"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/models"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/rooms"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *directory.StaticDirectory) {
	t.Helper()

	cfg := &config.Config{
		Env:            "development",
		AllowedOrigins: []string{"*"},
	}
	st := store.NewMemoryStore()
	dir := directory.NewStaticDirectory()
	svc := rooms.NewService(st, dir, nil, zerolog.Nop())
	h := handlers.NewHandler(svc, st, nil, dir, nil)

	srv := httptest.NewServer(NewRouter(cfg, zerolog.Nop(), h, nil))
	t.Cleanup(srv.Close)
	return srv, dir
}

func doRequest(t *testing.T, method, url, user string, body interface{}) (*http.Response, []byte) {
	t.Helper()

	var reqBody bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&reqBody).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &reqBody)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-Connectify-User", user)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func TestIdentityRequired(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doRequest(t, "GET", srv.URL+"/api/rooms", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without identity header, got %d", resp.StatusCode)
	}
}

func TestSendAndFetchMessages(t *testing.T) {
	srv, dir := newTestServer(t)
	dir.AddCourse("cs-101", "Intro to CS")
	dir.AddUser("alice", "Alice Chen")

	resp, body := doRequest(t, "POST", srv.URL+"/api/rooms/cs-101/messages", "alice",
		map[string]string{"content": "hello class", "clientId": "local-1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("send: expected 201, got %d: %s", resp.StatusCode, body)
	}

	var sent struct {
		RoomID   string         `json:"roomId"`
		Message  models.Message `json:"message"`
		ClientID string         `json:"clientId"`
	}
	if err := json.Unmarshal(body, &sent); err != nil {
		t.Fatalf("decode send response: %v", err)
	}
	if sent.RoomID == "" || sent.Message.ID == "" {
		t.Fatalf("send response incomplete: %s", body)
	}
	if sent.ClientID != "local-1" {
		t.Errorf("clientId not echoed, got %q", sent.ClientID)
	}

	// Fetch by course id
	resp, body = doRequest(t, "GET", srv.URL+"/api/rooms/cs-101/messages", "bob", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fetch: expected 200, got %d", resp.StatusCode)
	}

	var fetched struct {
		Room     models.Room `json:"room"`
		Messages []struct {
			models.Message
			SenderName string `json:"senderName"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(body, &fetched); err != nil {
		t.Fatalf("decode fetch response: %v", err)
	}
	if fetched.Room.ID.String() != sent.RoomID {
		t.Errorf("course id resolved to a different room")
	}
	if len(fetched.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(fetched.Messages))
	}
	if fetched.Messages[0].SenderName != "Alice Chen" {
		t.Errorf("expected decorated sender name, got %q", fetched.Messages[0].SenderName)
	}

	// Fetch by canonical room id lands in the same room
	resp, body = doRequest(t, "GET", srv.URL+"/api/rooms/"+sent.RoomID+"/messages", "bob", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fetch by id: expected 200, got %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &fetched); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(fetched.Messages) != 1 {
		t.Errorf("room id fetch returned %d messages", len(fetched.Messages))
	}
}

func TestSendEmptyContentRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doRequest(t, "POST", srv.URL+"/api/rooms/anything/messages", "alice",
		map[string]string{"content": "   "})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for empty content, got %d", resp.StatusCode)
	}
}

func TestListRoomsAndUnread(t *testing.T) {
	srv, dir := newTestServer(t)
	dir.AddCourse("cs-101", "Intro to CS")
	dir.SetEnrollment("bob", "cs-101", true)

	doRequest(t, "POST", srv.URL+"/api/rooms/cs-101/messages", "alice",
		map[string]string{"content": "first post"})
	// Reading joins bob to the room
	doRequest(t, "GET", srv.URL+"/api/rooms/cs-101/messages", "bob", nil)
	doRequest(t, "POST", srv.URL+"/api/rooms/cs-101/messages", "alice",
		map[string]string{"content": "second post"})

	resp, body := doRequest(t, "GET", srv.URL+"/api/rooms", "bob", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}

	var listing struct {
		Rooms []models.RoomSummary `json:"rooms"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listing.Rooms) != 1 {
		t.Fatalf("expected 1 room, got %d", len(listing.Rooms))
	}
	if listing.Rooms[0].UnreadCount != 2 {
		t.Errorf("expected 2 unread, got %d", listing.Rooms[0].UnreadCount)
	}

	// Mark read clears the counter
	resp, body = doRequest(t, "POST", srv.URL+"/api/rooms/cs-101/read", "bob", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("read: expected 200, got %d", resp.StatusCode)
	}
	var read struct {
		Marked int64 `json:"marked"`
	}
	if err := json.Unmarshal(body, &read); err != nil {
		t.Fatalf("decode read: %v", err)
	}
	if read.Marked != 2 {
		t.Errorf("expected 2 marked, got %d", read.Marked)
	}

	_, body = doRequest(t, "GET", srv.URL+"/api/rooms", "bob", nil)
	json.Unmarshal(body, &listing)
	if listing.Rooms[0].UnreadCount != 0 {
		t.Errorf("expected 0 unread after read, got %d", listing.Rooms[0].UnreadCount)
	}
}

func TestHealthAndStats(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doRequest(t, "GET", srv.URL+"/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health: expected 200, got %d: %s", resp.StatusCode, body)
	}

	doRequest(t, "POST", srv.URL+"/api/rooms/seminar/messages", "alice",
		map[string]string{"content": "hello"})

	resp, body = doRequest(t, "GET", srv.URL+"/api/stats", "alice", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", resp.StatusCode)
	}
	var stats struct {
		TotalRooms    int64 `json:"total_rooms"`
		TotalMessages int64 `json:"total_messages"`
	}
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalRooms != 1 || stats.TotalMessages != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func newTestServerWithHub(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		Env:            "development",
		AllowedOrigins: []string{"*"},
	}
	st := store.NewMemoryStore()
	dir := directory.NewStaticDirectory()

	hub := channel.NewHub(zerolog.Nop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	svc := rooms.NewService(st, dir, hub, zerolog.Nop())
	h := handlers.NewHandler(svc, st, nil, dir, hub)

	srv := httptest.NewServer(NewRouter(cfg, zerolog.Nop(), h, nil))
	t.Cleanup(srv.Close)
	return srv
}

// The websocket upgrade hijacks the connection, so every middleware wrapping
// the response writer has to keep http.Hijacker reachable.
func TestWebsocketUpgradeThroughRouter(t *testing.T) {
	srv := newTestServerWithHub(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{"X-Connectify-User": []string{"bob"}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("websocket dial failed (status %d): %v", status, err)
	}
	defer conn.Close()

	// Provision the room over REST first so we have its canonical id.
	_, body := doRequest(t, "POST", srv.URL+"/api/rooms/cs-101/messages", "alice",
		map[string]string{"content": "first"})
	var sent struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(body, &sent); err != nil || sent.RoomID == "" {
		t.Fatalf("provisioning send failed: %s", body)
	}

	// Control frames are handled in order, so once the typing event comes
	// back the subscription before it must have been registered.
	subscribe := map[string]string{"type": "subscribe", "room_id": sent.RoomID}
	if err := conn.WriteJSON(subscribe); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	typing := map[string]string{"type": "typing", "room_id": sent.RoomID}
	if err := conn.WriteJSON(typing); err != nil {
		t.Fatalf("typing: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev struct {
		Type    string          `json:"type"`
		RoomID  string          `json:"room_id"`
		UserID  string          `json:"user_id"`
		Message *models.Message `json:"message"`
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read typing event: %v", err)
	}
	if ev.Type != "typing" || ev.RoomID != sent.RoomID || ev.UserID != "bob" {
		t.Fatalf("unexpected first event: %+v", ev)
	}

	// A message sent over REST is pushed to room subscribers.
	doRequest(t, "POST", srv.URL+"/api/rooms/cs-101/messages", "alice",
		map[string]string{"content": "second"})

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read message event: %v", err)
	}
	if ev.Type != "message.created" || ev.Message == nil || ev.Message.Content != "second" {
		t.Fatalf("unexpected push event: %+v", ev)
	}
}

func TestTypingEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doRequest(t, "POST", srv.URL+"/api/rooms/seminar/typing", "alice", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("typing: expected 204, got %d", resp.StatusCode)
	}
}
