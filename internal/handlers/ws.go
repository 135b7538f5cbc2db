package handlers

import (
	"net/http"

	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/api/middleware"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/channel"
)

// WS upgrades the connection to the push channel. One socket per client
// session; room subscriptions travel as control frames on the socket.
func (h *Handler) WS(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		h.Error(w, http.StatusServiceUnavailable, "push channel disabled")
		return
	}
	userID := middleware.GetUserFromContext(r.Context())
	channel.ServeWS(h.hub, w, r, userID)
}
