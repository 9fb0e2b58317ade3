package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions in Redis so they survive an API restart.
// Serialization of concurrent updates still relies on the caller's KeyedMutex.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore builds a store under prefix. A zero ttl keeps entries until cleared.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "attendance:session:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(identity string) string {
	return s.prefix + identity
}

// Get loads the state for identity.
func (s *RedisStore) Get(ctx context.Context, identity string) (State, bool, error) {
	raw, err := s.client.Get(ctx, s.key(identity)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("session get: %w", err)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, false, fmt.Errorf("session decode: %w", err)
	}
	return st, true, nil
}

// Set stores the state for identity.
func (s *RedisStore) Set(ctx context.Context, identity string, st State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(identity), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("session set: %w", err)
	}
	return nil
}

// Clear removes the state for identity.
func (s *RedisStore) Clear(ctx context.Context, identity string) error {
	if err := s.client.Del(ctx, s.key(identity)).Err(); err != nil {
		return fmt.Errorf("session clear: %w", err)
	}
	return nil
}
