package knownusers

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores the entry under a single key, for profiles shared
// between machines.
type RedisBackend struct {
	client redis.UniversalClient
	key    string
}

func NewRedisBackend(client redis.UniversalClient, key string) *RedisBackend {
	if key == "" {
		key = DefaultKey
	}
	return &RedisBackend{client: client, key: key}
}

func (b *RedisBackend) Load(ctx context.Context) ([]byte, error) {
	data, err := b.client.Get(ctx, b.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", b.key, err)
	}
	return data, nil
}

func (b *RedisBackend) Save(ctx context.Context, data []byte) error {
	if err := b.client.Set(ctx, b.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", b.key, err)
	}
	return nil
}
