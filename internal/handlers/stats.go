package handlers

import (
	"net/http"
	"strconv"
	"time"
)

// RoomStats represents stats for a single room.
type RoomStats struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	LastActivity string `json:"last_activity"`
}

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalRooms    int64       `json:"total_rooms"`
	TotalMessages int64       `json:"total_messages"`
	LastActivity  string      `json:"last_activity"`
	TopRooms      []RoomStats `json:"top_rooms"`
}

// Stats returns aggregate service statistics.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalRooms, err := h.store.CountRooms(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count rooms")
		return
	}

	totalMessages, err := h.store.CountMessages(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count messages")
		return
	}

	lastActivityTime, err := h.store.MostRecentActivity(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to get last activity")
		return
	}

	lastActivity := "no activity yet"
	if lastActivityTime != nil {
		lastActivity = formatTimeAgo(*lastActivityTime)
	}

	topRooms, err := h.store.TopActiveRooms(ctx, 5)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to get top rooms")
		return
	}

	top := make([]RoomStats, 0, len(topRooms))
	for _, room := range topRooms {
		top = append(top, RoomStats{
			ID:           room.ID.String(),
			Name:         room.Name,
			LastActivity: formatTimeAgo(room.LastActivityAt),
		})
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		TotalRooms:    totalRooms,
		TotalMessages: totalMessages,
		LastActivity:  lastActivity,
		TopRooms:      top,
	})
}

// formatTimeAgo formats a time as a human-readable "X ago" string.
func formatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return strconv.Itoa(mins) + " minutes ago"
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return strconv.Itoa(hours) + " hours ago"
	default:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return strconv.Itoa(days) + " days ago"
	}
}
