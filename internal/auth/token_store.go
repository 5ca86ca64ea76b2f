package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	csrfKeyPrefix = "csrf:" // one token per session: csrf:{session_id}
	csrfTokenTTL  = 30 * time.Minute
)

// RedisTokenStore keeps one anti-forgery token per session in redis.
// Issuing replaces the session's previous token.
type RedisTokenStore struct {
	client *redis.Client
}

func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func (s *RedisTokenStore) Issue(ctx context.Context, sessionID string) (string, error) {
	token := uuid.NewString()
	key := csrfKeyPrefix + sessionID
	if err := s.client.Set(ctx, key, token, csrfTokenTTL).Err(); err != nil {
		return "", fmt.Errorf("store anti-forgery token: %w", err)
	}
	return token, nil
}

func (s *RedisTokenStore) Validate(ctx context.Context, sessionID, token string) error {
	if token == "" {
		return ErrTokenMismatch
	}
	key := csrfKeyPrefix + sessionID
	stored, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return ErrTokenMismatch
	}
	if err != nil {
		return fmt.Errorf("load anti-forgery token: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(token)) != 1 {
		return ErrTokenMismatch
	}
	return nil
}
