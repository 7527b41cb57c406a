package credentials

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisKey = "pt:credential"

	fieldAccess  = "access"
	fieldRefresh = "refresh"
)

// RedisStore persists the credential as a Redis hash so multiple processes
// can share one authenticated session.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisStore returns a store writing to the given key. An empty key
// selects the default.
func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisStore{
		client: client,
		key:    key,
	}
}

func (s *RedisStore) Get(ctx context.Context) (Credential, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return Credential{}, fmt.Errorf("redis get credential: %w", err)
	}
	if len(fields) == 0 {
		return Credential{}, ErrNotFound
	}

	return Credential{
		AccessToken:  fields[fieldAccess],
		RefreshToken: fields[fieldRefresh],
	}, nil
}

func (s *RedisStore) Set(ctx context.Context, cred Credential) error {
	err := s.client.HSet(ctx, s.key,
		fieldAccess, cred.AccessToken,
		fieldRefresh, cred.RefreshToken,
	).Err()
	if err != nil {
		return fmt.Errorf("redis set credential: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis clear credential: %w", err)
	}
	return nil
}
