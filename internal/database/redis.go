package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/adedejiosvaldo/safecall/backend/internal/models"
	"github.com/redis/go-redis/v9"
)

// SessionChannel is the pub/sub channel carrying auth session changes.
const SessionChannel = "auth:sessions"

type RedisDB struct {
	client *redis.Client
}

func NewRedisDB(redisURL string) (*RedisDB, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisDB{client: client}, nil
}

// NewRedisDBWithClient wraps an existing client.
func NewRedisDBWithClient(client *redis.Client) *RedisDB {
	return &RedisDB{client: client}
}

func (r *RedisDB) Close() error {
	return r.client.Close()
}

// Rate limiting. The key is the caller-supplied bucket, e.g. "share:<user>".
func (r *RedisDB) CheckRateLimit(ctx context.Context, bucket string, window time.Duration, limit int) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s", bucket)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}

	// Set expiry on first request
	if count == 1 {
		r.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

// Revoked access tokens
func (r *RedisDB) RevokeToken(ctx context.Context, fingerprint string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	key := fmt.Sprintf("auth:revoked:%s", fingerprint)
	return r.client.Set(ctx, key, "1", ttl).Err()
}

func (r *RedisDB) IsTokenRevoked(ctx context.Context, fingerprint string) (bool, error) {
	key := fmt.Sprintf("auth:revoked:%s", fingerprint)
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// Login preferences. A device that never saved preferences gets RememberMe on.
func (r *RedisDB) GetLoginPreferences(ctx context.Context, deviceID string) (*models.LoginPreferences, error) {
	key := fmt.Sprintf("prefs:login:%s", deviceID)
	data, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return &models.LoginPreferences{RememberMe: true}, nil
	}
	if err != nil {
		return nil, err
	}

	var prefs models.LoginPreferences
	if err := json.Unmarshal([]byte(data), &prefs); err != nil {
		return nil, err
	}
	return &prefs, nil
}

func (r *RedisDB) SetLoginPreferences(ctx context.Context, deviceID string, prefs models.LoginPreferences) error {
	if !prefs.RememberMe {
		prefs.Email = ""
	}
	key := fmt.Sprintf("prefs:login:%s", deviceID)
	data, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, 0).Err()
}

// Session pub/sub
func (r *RedisDB) PublishSession(ctx context.Context, payload []byte) error {
	return r.client.Publish(ctx, SessionChannel, payload).Err()
}

// SubscribeSessions returns a channel of raw session payloads and a func that
// ends the subscription.
func (r *RedisDB) SubscribeSessions(ctx context.Context) (<-chan []byte, func() error, error) {
	sub := r.client.Subscribe(ctx, SessionChannel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to %s: %w", SessionChannel, err)
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, sub.Close, nil
}
