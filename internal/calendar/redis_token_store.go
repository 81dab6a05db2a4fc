package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisTokenKey = "calendar:token"

// RedisTokenStore keeps the token as a JSON string under one key.
type RedisTokenStore struct {
	client *redis.Client
	key    string
}

func NewRedisTokenStore(client *redis.Client, key string) *RedisTokenStore {
	if key == "" {
		key = DefaultRedisTokenKey
	}
	return &RedisTokenStore{client: client, key: key}
}

func (s *RedisTokenStore) Get(ctx context.Context) (*Token, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("load calendar token: %w", err)
	}

	var t Token
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode calendar token: %w", err)
	}
	return &t, nil
}

func (s *RedisTokenStore) Set(ctx context.Context, t Token) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode calendar token: %w", err)
	}
	// No TTL: the refresh token outlives the access token expiry.
	if err := s.client.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("save calendar token: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) Delete(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("delete calendar token: %w", err)
	}
	return nil
}
