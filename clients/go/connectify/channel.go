package connectify

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// ChannelState represents the push channel's connection state.
type ChannelState string

const (
	StateDisconnected ChannelState = "disconnected"
	StateConnecting   ChannelState = "connecting"
	StateConnected    ChannelState = "connected"
	StateReconnecting ChannelState = "reconnecting"
	// StateDegraded is terminal: reconnection attempts are exhausted and the
	// channel stays down until the caller connects again explicitly. REST
	// polling still works in this state.
	StateDegraded ChannelState = "degraded"
)

// ChannelEvent is the wire format for server pushes.
type ChannelEvent struct {
	Type    string   `json:"type"`
	RoomID  string   `json:"room_id,omitempty"`
	Message *Message `json:"message,omitempty"`
	UserID  string   `json:"user_id,omitempty"`
}

// ChannelConfig configures the push channel.
type ChannelConfig struct {
	AutoReconnect        bool
	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
}

func (c *ChannelConfig) defaults() {
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = 1 * time.Second
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 10
	}
}

// reconnector tracks backoff between connection attempts. Delay grows
// exponentially with jitter; a connection that held for over a minute resets
// the attempt count.
type reconnector struct {
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
	attempt     int
	connectedAt time.Time
}

func (r *reconnector) shouldReconnect() bool {
	return r.maxAttempts == 0 || r.attempt < r.maxAttempts
}

func (r *reconnector) markConnected() {
	r.connectedAt = time.Now()
}

func (r *reconnector) nextDelay() time.Duration {
	if !r.connectedAt.IsZero() && time.Since(r.connectedAt) > 60*time.Second {
		r.attempt = 0
	}
	jitter := time.Duration(rand.Float64() * float64(r.baseDelay) * 0.5)
	delay := time.Duration(math.Min(
		float64(r.baseDelay)*math.Pow(2, float64(r.attempt))+float64(jitter),
		float64(r.maxDelay),
	))
	r.attempt++
	return delay
}

func (r *reconnector) reset() {
	r.attempt = 0
	r.connectedAt = time.Time{}
}

// Channel is the client side of the push channel: a websocket with
// auto-reconnect, room subscriptions that survive reconnects, and typed
// event callbacks. Delivery is at most once; the message log over REST is
// the authority on history.
type Channel struct {
	baseURL string
	userID  string
	config  ChannelConfig
	recon   reconnector

	mu               sync.Mutex
	conn             *websocket.Conn
	state            ChannelState
	intentionalClose bool
	subscriptions    map[string]bool
	cancelFn         context.CancelFunc

	handlerMu        sync.RWMutex
	onMessageCreated []func(ChannelEvent)
	onTyping         []func(ChannelEvent)
	onStateChange    []func(ChannelState)

	typists *typingTracker
}

// NewChannel creates a push channel for the client's user. It does not
// connect; call Connect.
func NewChannel(client *Client, config ChannelConfig) *Channel {
	config.defaults()
	return &Channel{
		baseURL: client.BaseURL,
		userID:  client.UserID,
		config:  config,
		recon: reconnector{
			baseDelay:   config.ReconnectBaseDelay,
			maxDelay:    config.ReconnectMaxDelay,
			maxAttempts: config.MaxReconnectAttempts,
		},
		state:         StateDisconnected,
		subscriptions: make(map[string]bool),
		typists:       newTypingTracker(4 * time.Second),
	}
}

// OnMessageCreated registers a handler for new messages in subscribed rooms.
func (ch *Channel) OnMessageCreated(h func(ChannelEvent)) {
	ch.handlerMu.Lock()
	ch.onMessageCreated = append(ch.onMessageCreated, h)
	ch.handlerMu.Unlock()
}

// OnTyping registers a handler for typing signals.
func (ch *Channel) OnTyping(h func(ChannelEvent)) {
	ch.handlerMu.Lock()
	ch.onTyping = append(ch.onTyping, h)
	ch.handlerMu.Unlock()
}

// OnStateChange registers a handler for connection state transitions.
func (ch *Channel) OnStateChange(h func(ChannelState)) {
	ch.handlerMu.Lock()
	ch.onStateChange = append(ch.onStateChange, h)
	ch.handlerMu.Unlock()
}

// State returns the current connection state.
func (ch *Channel) State() ChannelState {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.state
}

// ActiveTypists returns the users currently typing in the room.
func (ch *Channel) ActiveTypists(roomID string) []string {
	return ch.typists.active(roomID)
}

func (ch *Channel) setState(state ChannelState) {
	ch.mu.Lock()
	if ch.state == state {
		ch.mu.Unlock()
		return
	}
	ch.state = state
	ch.mu.Unlock()

	ch.handlerMu.RLock()
	handlers := append([]func(ChannelState){}, ch.onStateChange...)
	ch.handlerMu.RUnlock()
	for _, h := range handlers {
		go h(state)
	}
}

// Connect establishes the websocket. Connecting from degraded starts a fresh
// attempt budget; while a connection or reconnection is already in flight the
// call is a no-op, so only one dial loop ever runs.
func (ch *Channel) Connect(ctx context.Context) error {
	ch.mu.Lock()
	switch ch.state {
	case StateConnected, StateConnecting, StateReconnecting:
		ch.mu.Unlock()
		return nil
	}
	ch.intentionalClose = false
	ch.recon.reset()
	ch.mu.Unlock()
	ch.setState(StateConnecting)

	if err := ch.dial(ctx); err != nil {
		ch.setState(StateDisconnected)
		return err
	}
	return nil
}

func (ch *Channel) dial(ctx context.Context) error {
	wsURL := strings.Replace(ch.baseURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL += "/ws"

	headers := http.Header{}
	headers.Set("X-Connectify-User", ch.userID)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	ch.mu.Lock()
	ch.conn = conn
	ch.recon.markConnected()
	rooms := make([]string, 0, len(ch.subscriptions))
	for roomID := range ch.subscriptions {
		rooms = append(rooms, roomID)
	}
	ch.mu.Unlock()

	ch.setState(StateConnected)

	// Re-establish room subscriptions on the new connection
	for _, roomID := range rooms {
		if err := ch.sendControl(ctx, "subscribe", roomID); err != nil {
			break
		}
	}

	connCtx, cancel := context.WithCancel(context.Background())
	ch.mu.Lock()
	ch.cancelFn = cancel
	ch.mu.Unlock()

	go ch.readLoop(connCtx, conn)
	return nil
}

// Disconnect closes the channel without triggering reconnection.
func (ch *Channel) Disconnect() error {
	ch.mu.Lock()
	ch.intentionalClose = true
	if ch.cancelFn != nil {
		ch.cancelFn()
		ch.cancelFn = nil
	}
	conn := ch.conn
	ch.conn = nil
	ch.mu.Unlock()

	ch.setState(StateDisconnected)
	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	return nil
}

// Subscribe joins the room's event stream. The subscription persists across
// reconnects until Unsubscribe.
func (ch *Channel) Subscribe(ctx context.Context, roomID string) error {
	ch.mu.Lock()
	ch.subscriptions[roomID] = true
	connected := ch.conn != nil
	ch.mu.Unlock()

	if !connected {
		return nil
	}
	return ch.sendControl(ctx, "subscribe", roomID)
}

// Unsubscribe leaves the room's event stream.
func (ch *Channel) Unsubscribe(ctx context.Context, roomID string) error {
	ch.mu.Lock()
	delete(ch.subscriptions, roomID)
	connected := ch.conn != nil
	ch.mu.Unlock()

	if !connected {
		return nil
	}
	return ch.sendControl(ctx, "unsubscribe", roomID)
}

// Typing signals typing over the socket.
func (ch *Channel) Typing(ctx context.Context, roomID string) error {
	return ch.sendControl(ctx, "typing", roomID)
}

func (ch *Channel) sendControl(ctx context.Context, frameType, roomID string) error {
	ch.mu.Lock()
	conn := ch.conn
	ch.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}

	data, err := json.Marshal(map[string]string{"type": frameType, "room_id": roomID})
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func (ch *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			ch.mu.Lock()
			intentional := ch.intentionalClose
			ch.conn = nil
			ch.mu.Unlock()
			if intentional {
				return
			}
			ch.reconnect(ctx)
			return
		}

		var ev ChannelEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		ch.dispatch(ev)
	}
}

// reconnect retries with exponential backoff until connected or the attempt
// budget runs out, at which point the channel degrades.
func (ch *Channel) reconnect(ctx context.Context) {
	if !ch.config.AutoReconnect {
		ch.setState(StateDisconnected)
		return
	}

	ch.setState(StateReconnecting)
	for {
		ch.mu.Lock()
		if !ch.recon.shouldReconnect() {
			ch.mu.Unlock()
			break
		}
		delay := ch.recon.nextDelay()
		ch.mu.Unlock()

		select {
		case <-ctx.Done():
			ch.setState(StateDisconnected)
			return
		case <-time.After(delay):
		}

		if err := ch.dial(ctx); err == nil {
			return
		}
	}
	ch.setState(StateDegraded)
}

func (ch *Channel) dispatch(ev ChannelEvent) {
	ch.handlerMu.RLock()
	var handlers []func(ChannelEvent)
	switch ev.Type {
	case "message.created":
		handlers = append(handlers, ch.onMessageCreated...)
	case "typing":
		ch.typists.mark(ev.RoomID, ev.UserID)
		handlers = append(handlers, ch.onTyping...)
	}
	ch.handlerMu.RUnlock()

	for _, h := range handlers {
		go h(ev)
	}
}

// typingTracker remembers who typed recently per room, expiring entries
// after a short window since typing signals carry no explicit stop.
type typingTracker struct {
	mu     sync.Mutex
	window time.Duration
	rooms  map[string]map[string]time.Time
}

func newTypingTracker(window time.Duration) *typingTracker {
	return &typingTracker{
		window: window,
		rooms:  make(map[string]map[string]time.Time),
	}
}

func (t *typingTracker) mark(roomID, userID string) {
	if roomID == "" || userID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	users, ok := t.rooms[roomID]
	if !ok {
		users = make(map[string]time.Time)
		t.rooms[roomID] = users
	}
	users[userID] = time.Now()
}

func (t *typingTracker) active(roomID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-t.window)
	var out []string
	for userID, seen := range t.rooms[roomID] {
		if seen.After(cutoff) {
			out = append(out, userID)
		} else {
			delete(t.rooms[roomID], userID)
		}
	}
	return out
}
