package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxFrame   = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients connect from the platform frontend; CORS policy is
		// enforced at the router, so the upgrade itself is open.
		return true
	},
}

// controlFrame is what subscribers send over the socket: room subscriptions
// and typing signals. Messages themselves are sent over the REST surface.
type controlFrame struct {
	Type   string `json:"type"` // "subscribe" | "unsubscribe" | "typing"
	RoomID string `json:"room_id"`
}

// Subscriber is one connected push-channel client. One long-lived connection
// per client session; rooms are joined and left with control frames.
type Subscriber struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte

	closeOnce sync.Once
}

// ServeWS upgrades the request and starts the subscriber's pumps.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub := &Subscriber{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 64),
	}

	metrics.WebsocketConnections.Inc()
	go sub.writePump()
	go sub.readPump()
}

// Close tears the subscriber down and removes it from all rooms.
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() {
		metrics.WebsocketConnections.Dec()
		select {
		case s.hub.detach <- s:
		case <-s.hub.done:
		}
		if s.conn != nil {
			s.conn.Close()
		}
	})
}

// readPump consumes control frames until the connection drops. Navigating
// away from a room arrives as an unsubscribe; a dropped connection detaches
// everything.
func (s *Subscriber) readPump() {
	defer s.Close()

	s.conn.SetReadLimit(maxFrame)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame controlFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.RoomID == "" {
			continue
		}

		switch frame.Type {
		case "subscribe":
			select {
			case s.hub.register <- &subscription{sub: s, roomID: frame.RoomID}:
			case <-s.hub.done:
				return
			}
		case "unsubscribe":
			select {
			case s.hub.unregister <- &subscription{sub: s, roomID: frame.RoomID}:
			case <-s.hub.done:
				return
			}
		case "typing":
			s.hub.Typing(context.Background(), frame.RoomID, s.userID)
		}
	}
}

// writePump pushes hub events to the connection and keeps it alive with
// pings.
func (s *Subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case payload, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
