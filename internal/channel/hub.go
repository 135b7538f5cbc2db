package channel

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/metrics"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/store"
)

// redisChannel is the pub/sub channel bridging hub instances.
const redisChannel = "connectify:events"

type subscription struct {
	sub    *Subscriber
	roomID string
}

// Hub fans push events out to the subscribers of each room. Delivery is
// at-most-once to currently connected subscribers; a client that was away
// when an event fired catches up through the message log, not the hub.
//
// With Redis configured, publishes go through pub/sub so every instance
// broadcasts to its own subscribers; without it, events loop back locally.
type Hub struct {
	logger zerolog.Logger
	redis  *store.RedisStore

	register   chan *subscription
	unregister chan *subscription
	detach     chan *Subscriber
	broadcast  chan Event
	done       chan struct{}

	rooms map[string]map[*Subscriber]bool
	subs  map[*Subscriber]map[string]bool
}

// NewHub creates a hub. redis may be nil for single-instance deployments.
func NewHub(logger zerolog.Logger, redis *store.RedisStore) *Hub {
	return &Hub{
		logger:     logger.With().Str("component", "channel").Logger(),
		redis:      redis,
		register:   make(chan *subscription),
		unregister: make(chan *subscription),
		detach:     make(chan *Subscriber),
		broadcast:  make(chan Event, 64),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[*Subscriber]bool),
		subs:       make(map[*Subscriber]map[string]bool),
	}
}

// Run processes subscriptions and broadcasts until ctx is cancelled. Closing
// done on the way out unblocks subscribers tearing down after shutdown.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return

		case s := <-h.register:
			if h.rooms[s.roomID] == nil {
				h.rooms[s.roomID] = make(map[*Subscriber]bool)
			}
			h.rooms[s.roomID][s.sub] = true
			if h.subs[s.sub] == nil {
				h.subs[s.sub] = make(map[string]bool)
			}
			h.subs[s.sub][s.roomID] = true

		case s := <-h.unregister:
			h.dropFromRoom(s.sub, s.roomID)

		case sub := <-h.detach:
			for roomID := range h.subs[sub] {
				h.dropFromRoom(sub, roomID)
			}
			delete(h.subs, sub)
			close(sub.send)

		case ev := <-h.broadcast:
			h.deliver(ev)
		}
	}
}

func (h *Hub) dropFromRoom(sub *Subscriber, roomID string) {
	if set, ok := h.rooms[roomID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.rooms, roomID)
		}
	}
	if set, ok := h.subs[sub]; ok {
		delete(set, roomID)
	}
}

func (h *Hub) deliver(ev Event) {
	payload, err := ev.Encode()
	if err != nil {
		h.logger.Error().Err(err).Msg("encode event")
		return
	}
	for sub := range h.rooms[ev.RoomID] {
		select {
		case sub.send <- payload:
			metrics.EventsDelivered.WithLabelValues(ev.Type).Inc()
		default:
			// Slow consumer: drop the subscriber, not the hub.
			metrics.EventsDropped.Inc()
			go sub.Close()
		}
	}
}

// MessageCreated publishes a message.created event for a room.
func (h *Hub) MessageCreated(ctx context.Context, ev Event) {
	ev.Type = EventMessageCreated
	h.publish(ctx, ev)
}

// Typing publishes an ephemeral typing event for a room.
func (h *Hub) Typing(ctx context.Context, roomID, userID string) {
	h.publish(ctx, Event{Type: EventTyping, RoomID: roomID, UserID: userID})
}

func (h *Hub) publish(ctx context.Context, ev Event) {
	metrics.EventsPublished.WithLabelValues(ev.Type).Inc()

	if h.redis == nil {
		h.enqueue(ev)
		return
	}

	payload, err := ev.Encode()
	if err != nil {
		h.logger.Error().Err(err).Msg("encode event")
		return
	}
	if err := h.redis.PublishEvent(ctx, redisChannel, payload); err != nil {
		// Redis being down must not break sends; fall back to local fan-out.
		h.logger.Warn().Err(err).Msg("redis publish failed, delivering locally")
		h.enqueue(ev)
	}
}

// enqueue feeds the broadcast loop without blocking past shutdown.
func (h *Hub) enqueue(ev Event) {
	select {
	case h.broadcast <- ev:
	case <-h.done:
	}
}

// BridgeRedis consumes events published by any instance and feeds them into
// the local broadcast loop. Blocks until ctx is cancelled.
func (h *Hub) BridgeRedis(ctx context.Context) {
	if h.redis == nil {
		return
	}

	pubsub := h.redis.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := decodeEvent([]byte(msg.Payload), &ev); err != nil {
				h.logger.Warn().Err(err).Msg("bad event payload")
				continue
			}
			h.enqueue(ev)
		}
	}
}
