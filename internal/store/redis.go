package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const sendWindowTTL = time.Minute

// RedisStore handles the cross-instance concerns that don't belong in the
// durable RoomStore: pub/sub fan-out for the push channel, and the per-user
// send rate limit counters.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client for components that need raw access.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// PublishEvent publishes a serialized channel event for other instances.
func (s *RedisStore) PublishEvent(ctx context.Context, channel string, payload []byte) error {
	return s.client.Publish(ctx, channel, payload).Err()
}

// Subscribe subscribes to a pub/sub channel. The caller owns the PubSub.
func (s *RedisStore) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return s.client.Subscribe(ctx, channel)
}

func sendWindowKey(userID string) string {
	return "sendlimit:" + userID
}

// IncrSendWindow bumps the user's send counter for the current window and
// returns the new count. The key expires with the window.
func (s *RedisStore) IncrSendWindow(ctx context.Context, userID string) (int64, error) {
	key := sendWindowKey(userID)

	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, sendWindowTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
