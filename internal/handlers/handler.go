package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/channel"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/directory"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/rooms"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	rooms *rooms.Service
	store store.RoomStore
	redis *store.RedisStore
	dir   directory.Directory
	hub   *channel.Hub
}

// NewHandler creates a new Handler with the given dependencies. redis and
// hub may be nil when the deployment runs without them.
func NewHandler(svc *rooms.Service, st store.RoomStore, redis *store.RedisStore, dir directory.Directory, hub *channel.Hub) *Handler {
	return &Handler{rooms: svc, store: st, redis: redis, dir: dir, hub: hub}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}
