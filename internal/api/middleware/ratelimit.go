package middleware

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/metrics"
	"github.com/Vanamu-Sumalatha/Connectify-sub001/internal/store"
)

// SendLimiter throttles message sends per user over a sliding one-minute
// window backed by redis, so the limit holds across instances. When redis is
// absent or unreachable the limiter fails open: losing throttling is better
// than losing sends.
type SendLimiter struct {
	redis     *store.RedisStore
	perMinute int64
	logger    zerolog.Logger
}

// NewSendLimiter creates a limiter allowing perMinute sends per user. A nil
// redis store disables limiting.
func NewSendLimiter(redis *store.RedisStore, perMinute int64, logger zerolog.Logger) *SendLimiter {
	return &SendLimiter{
		redis:     redis,
		perMinute: perMinute,
		logger:    logger.With().Str("component", "ratelimit").Logger(),
	}
}

// Limit wraps a handler with the per-user send quota.
func (l *SendLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.redis == nil || l.perMinute <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		userID := GetUserFromContext(r.Context())
		count, err := l.redis.IncrSendWindow(r.Context(), userID)
		if err != nil {
			l.logger.Warn().Err(err).Str("user_id", userID).Msg("rate limit check failed, allowing")
			next.ServeHTTP(w, r)
			return
		}

		if count > l.perMinute {
			metrics.RateLimitHits.WithLabelValues("send").Inc()
			w.Header().Set("Retry-After", "60")
			jsonError(w, http.StatusTooManyRequests, "message rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
