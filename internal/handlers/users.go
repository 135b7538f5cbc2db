package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// UserResponse represents the user profile response.
type UserResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// GetUser handles user profile lookup against the platform directory.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := h.dir.GetUser(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusBadGateway, "directory unavailable")
		return
	}
	if user == nil {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}

	h.JSON(w, http.StatusOK, UserResponse{
		ID:          user.ID,
		DisplayName: user.DisplayName,
	})
}
