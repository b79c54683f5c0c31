package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store over Redis with a TTL so abandoned
// dialogues expire on their own.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed session store from a URL.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{
		client: client,
		prefix: "editsession:",
		ttl:    ttl,
	}
}

func (s *RedisStore) key(reportID int64, operatorID string) string {
	return fmt.Sprintf("%s%d:%s", s.prefix, reportID, operatorID)
}

func (s *RedisStore) Get(ctx context.Context, reportID int64, operatorID string) (*State, error) {
	data, err := s.client.Get(ctx, s.key(reportID, operatorID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading edit session: %w", err)
	}

	var state State
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("unmarshaling edit session: %w", err)
	}
	return &state, nil
}

func (s *RedisStore) Save(ctx context.Context, state *State) error {
	state.UpdatedAt = time.Now()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling edit session: %w", err)
	}

	key := s.key(state.ReportID, state.OperatorID)
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving edit session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, reportID int64, operatorID string) error {
	if err := s.client.Del(ctx, s.key(reportID, operatorID)).Err(); err != nil {
		return fmt.Errorf("deleting edit session: %w", err)
	}
	return nil
}

// Close closes the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
