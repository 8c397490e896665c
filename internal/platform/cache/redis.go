package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by GetJSON when the key is absent.
var ErrMiss = errors.New("platform/cache: miss")

// New creates a new Redis client.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}

// GetJSON loads key into target.
func GetJSON(ctx context.Context, client redis.Cmdable, key string, target any) error {
	raw, err := client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return fmt.Errorf("platform/cache: get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("platform/cache: decode %s: %w", key, err)
	}
	return nil
}

// SetJSON stores value under key with the given TTL.
func SetJSON(ctx context.Context, client redis.Cmdable, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("platform/cache: encode %s: %w", key, err)
	}
	if err := client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("platform/cache: set %s: %w", key, err)
	}
	return nil
}
