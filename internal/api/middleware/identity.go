package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const UserContextKey contextKey = "user"

// Identity extracts the caller's platform user id from the X-Connectify-User
// header and places it on the request context. Authentication itself happens
// upstream at the platform gateway; by the time a request reaches this
// service the header is trusted.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get("X-Connectify-User"))
		if userID == "" {
			jsonError(w, http.StatusUnauthorized, "missing X-Connectify-User header")
			return
		}
		if len(userID) > 128 {
			jsonError(w, http.StatusUnauthorized, "user id too long")
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetUserFromContext retrieves the calling user id from the request context.
// Empty means the request did not pass through Identity.
func GetUserFromContext(ctx context.Context) string {
	userID, ok := ctx.Value(UserContextKey).(string)
	if !ok {
		return ""
	}
	return userID
}
