package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hazz-dev/everwatch/internal/endpoint"
)

// DefaultRedisKey is the key the snapshot blob is stored under.
const DefaultRedisKey = "everwatch:snapshot"

// Redis stores the snapshot as one JSON blob under a single key.
type Redis struct {
	client *redis.Client
	key    string
}

// OpenRedis connects to addr and verifies the connection.
func OpenRedis(ctx context.Context, addr, key string) (*Redis, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	if key == "" {
		key = DefaultRedisKey
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %q: %w", addr, err)
	}
	return &Redis{client: client, key: key}, nil
}

// Load reads and decodes the blob.
func (r *Redis) Load(ctx context.Context) LoadResult {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return empty()
	}
	if err != nil {
		return unavailable(fmt.Errorf("reading %q: %w", r.key, err))
	}
	return Decode(data)
}

// Save overwrites the blob; a single SET is atomic.
func (r *Redis) Save(ctx context.Context, eps []endpoint.Endpoint) error {
	data, err := Encode(eps)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("writing %q: %w", r.key, err)
	}
	return nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
