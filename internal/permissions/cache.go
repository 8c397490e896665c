package permissions

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agrohub/agrohub/internal/platform/cache"
)

// Entry is the cached outcome of an override lookup. Found=false records that
// the user has no row so the role default applies.
type Entry struct {
	Found  bool   `json:"found"`
	Record Record `json:"record"`
}

// Cache stores override lookups between requests.
type Cache interface {
	Get(ctx context.Context, userID int64) (Entry, bool, error)
	Set(ctx context.Context, userID int64, entry Entry) error
	Delete(ctx context.Context, userIDs ...int64) error
}

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(context.Context, int64) (Entry, bool, error) { return Entry{}, false, nil }
func (NopCache) Set(context.Context, int64, Entry) error         { return nil }
func (NopCache) Delete(context.Context, ...int64) error          { return nil }

// DefaultCacheTTL bounds how long a resolved override is reused.
const DefaultCacheTTL = time.Minute

// RedisCache keeps entries in redis with a bounded TTL.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisCache constructs a RedisCache. A non-positive ttl uses DefaultCacheTTL.
func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func cacheKey(userID int64) string {
	return "violations:perm:user:" + strconv.FormatInt(userID, 10)
}

// Get returns the cached entry, if any.
func (c *RedisCache) Get(ctx context.Context, userID int64) (Entry, bool, error) {
	var entry Entry
	if err := cache.GetJSON(ctx, c.client, cacheKey(userID), &entry); err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	return entry, true, nil
}

// Set stores entry for the configured TTL.
func (c *RedisCache) Set(ctx context.Context, userID int64, entry Entry) error {
	return cache.SetJSON(ctx, c.client, cacheKey(userID), entry, c.ttl)
}

// Delete evicts the given users.
func (c *RedisCache) Delete(ctx context.Context, userIDs ...int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = cacheKey(id)
	}
	return c.client.Del(ctx, keys...).Err()
}

var (
	_ Cache = NopCache{}
	_ Cache = (*RedisCache)(nil)
)
