package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/api/middleware"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/store"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 200
	maxContentBytes     = 4096
)

// ListRooms returns the caller's rooms, most recently active first.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserFromContext(r.Context())

	summaries, err := h.rooms.ListMyRooms(r.Context(), userID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to list rooms")
		return
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{"rooms": summaries})
}

// GetMessages returns a page of the room's message log. The identifier in
// the path may be a room id or a course id; unknown identifiers provision a
// room, so this never 404s.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserFromContext(r.Context())
	identifier := chi.URLParam(r, "identifier")

	limit := defaultMessageLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			h.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if n > maxMessageLimit {
			n = maxMessageLimit
		}
		limit = n
	}

	var before int64
	if s := r.URL.Query().Get("before"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			h.Error(w, http.StatusBadRequest, "invalid before timestamp")
			return
		}
		before = n
	}

	room, msgs, err := h.rooms.GetMessages(r.Context(), identifier, userID, limit, before)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{
		"room":     room,
		"messages": msgs,
	})
}

// sendRequest is the POST messages payload. ClientID is an optional
// client-generated idempotency tag, echoed back so the sender can match the
// confirmed message to its local copy.
type sendRequest struct {
	Content  string `json:"content"`
	ClientID string `json:"clientId,omitempty"`
}

// SendMessage appends a message to the room addressed by the path
// identifier.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserFromContext(r.Context())
	identifier := chi.URLParam(r, "identifier")

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Content) > maxContentBytes {
		h.Error(w, http.StatusBadRequest, "message too long")
		return
	}

	result, err := h.rooms.SendMessage(r.Context(), identifier, userID, req.Content)
	if err != nil {
		if errors.Is(err, store.ErrEmptyContent) {
			h.Error(w, http.StatusUnprocessableEntity, "message content is empty")
			return
		}
		h.Error(w, http.StatusInternalServerError, "failed to send message")
		return
	}

	h.JSON(w, http.StatusCreated, map[string]interface{}{
		"roomId":   result.RoomID,
		"message":  result.Message,
		"clientId": req.ClientID,
	})
}

// MarkRead records that the caller has read the room up to its current tail.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserFromContext(r.Context())
	identifier := chi.URLParam(r, "identifier")

	marked, err := h.rooms.MarkRead(r.Context(), identifier, userID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to mark read")
		return
	}

	h.JSON(w, http.StatusOK, map[string]int64{"marked": marked})
}

// Typing broadcasts an ephemeral typing signal to the room's subscribers.
func (h *Handler) Typing(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserFromContext(r.Context())
	identifier := chi.URLParam(r, "identifier")

	if err := h.rooms.Typing(r.Context(), identifier, userID); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to signal typing")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Participants lists the room's participants.
func (h *Handler) Participants(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserFromContext(r.Context())
	identifier := chi.URLParam(r, "identifier")

	room, err := h.rooms.Resolver().Resolve(r.Context(), identifier, userID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to resolve room")
		return
	}

	participants, err := h.store.ListParticipants(r.Context(), room.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to list participants")
		return
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{"participants": participants})
}
