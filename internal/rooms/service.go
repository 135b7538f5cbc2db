package rooms

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/channel"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/directory"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/metrics"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/models"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/store"
)

// EventPublisher is the slice of the fan-out hub the service depends on.
type EventPublisher interface {
	MessageCreated(ctx context.Context, ev channel.Event)
	Typing(ctx context.Context, roomID, userID string)
}

// MessageView is a stored message decorated with the sender's display name.
type MessageView struct {
	models.Message
	SenderName string `json:"senderName"`
}

// SendResult reports a successful send along with the canonical room id, so
// a client that addressed the room by course reference learns its real id.
type SendResult struct {
	RoomID  string          `json:"roomId"`
	Message *models.Message `json:"message"`
}

// Service implements the room operations behind the HTTP surface. It owns
// identifier resolution, participant presence, enrollment gating on course
// rooms, and event publication after writes.
type Service struct {
	store    store.RoomStore
	dir      directory.Directory
	resolver *Resolver
	hub      EventPublisher
	logger   zerolog.Logger
}

// NewService wires the service. hub may be nil in tests that do not care
// about fan-out.
func NewService(st store.RoomStore, dir directory.Directory, hub EventPublisher, logger zerolog.Logger) *Service {
	return &Service{
		store:    st,
		dir:      dir,
		resolver: NewResolver(st, dir, logger),
		hub:      hub,
		logger:   logger.With().Str("component", "rooms").Logger(),
	}
}

// Resolver exposes the identifier resolver, mainly for the websocket
// subscribe path which needs canonical room ids without a full operation.
func (s *Service) Resolver() *Resolver { return s.resolver }

// access resolves the identifier and records the caller's presence in the
// room. Every room-scoped operation funnels through here.
func (s *Service) access(ctx context.Context, identifier, userID string) (*models.Room, error) {
	room, err := s.resolver.Resolve(ctx, identifier, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.AddOrTouchParticipant(ctx, room.ID, userID); err != nil {
		return nil, fmt.Errorf("touch participant: %w", err)
	}
	return room, nil
}

// ListMyRooms returns the rooms the user participates in, most recently
// active first. Course rooms are withheld when the user's enrollment has
// lapsed; ad hoc rooms are always visible to their participants.
func (s *Service) ListMyRooms(ctx context.Context, userID string) ([]models.RoomSummary, error) {
	summaries, err := s.store.ListRoomsForParticipant(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	visible := make([]models.RoomSummary, 0, len(summaries))
	for _, sum := range summaries {
		if sum.Room.CourseScoped && sum.Room.CourseRef != nil {
			active, err := s.dir.IsActivelyEnrolled(ctx, userID, *sum.Room.CourseRef)
			if err != nil {
				s.logger.Warn().Err(err).
					Str("user_id", userID).
					Str("course", *sum.Room.CourseRef).
					Msg("enrollment check failed, hiding room")
				continue
			}
			if !active {
				continue
			}
		}
		visible = append(visible, sum)
	}
	return visible, nil
}

// GetMessages resolves the identifier and returns up to limit messages in
// log order, each decorated with the sender's display name. before, when
// nonzero, pages backward: only messages created strictly earlier are
// returned.
func (s *Service) GetMessages(ctx context.Context, identifier, userID string, limit int, before int64) (*models.Room, []MessageView, error) {
	room, err := s.access(ctx, identifier, userID)
	if err != nil {
		return nil, nil, err
	}

	msgs, err := s.store.ListMessages(ctx, room.ID, limit, before)
	if err != nil {
		return nil, nil, fmt.Errorf("list messages: %w", err)
	}

	names := make(map[string]string)
	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		name, ok := names[m.SenderID]
		if !ok {
			name = s.displayName(ctx, m.SenderID)
			names[m.SenderID] = name
		}
		views = append(views, MessageView{Message: m, SenderName: name})
	}
	return room, views, nil
}

// SendMessage appends the message to the room's log and publishes it to
// connected subscribers. Publication is best effort: the append is the
// source of truth and a delivery failure never fails the send.
func (s *Service) SendMessage(ctx context.Context, identifier, userID, content string) (*SendResult, error) {
	room, err := s.access(ctx, identifier, userID)
	if err != nil {
		return nil, err
	}

	msg, err := s.store.AppendMessage(ctx, room.ID, userID, content)
	if err != nil {
		return nil, err
	}
	metrics.MessagesSent.Inc()

	if s.hub != nil {
		s.hub.MessageCreated(ctx, channel.Event{
			Type:    channel.EventMessageCreated,
			RoomID:  room.ID.String(),
			Message: msg,
		})
	}

	return &SendResult{RoomID: room.ID.String(), Message: msg}, nil
}

// MarkRead records that the user has read the room up to its current tail
// and returns how many messages that newly covered.
func (s *Service) MarkRead(ctx context.Context, identifier, userID string) (int64, error) {
	room, err := s.access(ctx, identifier, userID)
	if err != nil {
		return 0, err
	}
	n, err := s.store.MarkRead(ctx, room.ID, userID)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return n, nil
}

// Typing signals the user's typing state to the room's subscribers. Typing
// is ephemeral: it is never stored and is lost if nobody is listening.
func (s *Service) Typing(ctx context.Context, identifier, userID string) error {
	room, err := s.access(ctx, identifier, userID)
	if err != nil {
		return err
	}
	if s.hub != nil {
		s.hub.Typing(ctx, room.ID.String(), userID)
	}
	return nil
}

func (s *Service) displayName(ctx context.Context, userID string) string {
	user, err := s.dir.GetUser(ctx, userID)
	if err != nil || user == nil {
		return userID
	}
	return user.DisplayName
}
