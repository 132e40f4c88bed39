package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"schoolhub/internal/logger"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, prefix: "cache:"}
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	res, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return res, err
}

func (r *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+key, value, ttl).Err()
}

func (r *RedisCache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = r.prefix + key
	}
	return r.client.Del(ctx, prefixed...).Err()
}

// MemoryCache is a process-local TTL map used when Redis is not configured.
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]memItem
}

type memItem struct {
	value     string
	expiresAt time.Time
}

func NewMemory() *MemoryCache {
	return &MemoryCache{items: map[string]memItem{}}
}

func (m *MemoryCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[key]
	if !ok {
		return "", ErrMiss
	}
	if time.Now().After(item.expiresAt) {
		delete(m.items, key)
		return "", ErrMiss
	}
	return item.value, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupLocked()
	m.items[key] = memItem{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *MemoryCache) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.items, key)
	}
	return nil
}

func (m *MemoryCache) cleanupLocked() {
	now := time.Now()
	for k, v := range m.items {
		if now.After(v.expiresAt) {
			delete(m.items, k)
		}
	}
}

// New returns a Redis-backed cache when client is set, memory otherwise.
func New(client *redis.Client) Cache {
	if client != nil {
		return NewRedis(client)
	}
	return NewMemory()
}

// GetOrSet returns the cached JSON value for key, or calls load, stores the
// result for ttl and returns it. Cache failures never fail the request: a
// broken cache only costs a reload.
func GetOrSet[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var value T
	if c != nil {
		raw, err := c.Get(ctx, key)
		if err == nil {
			if jsonErr := json.Unmarshal([]byte(raw), &value); jsonErr == nil {
				return value, nil
			}
		} else if !errors.Is(err, ErrMiss) {
			logger.FromContext(ctx).WithError(err).WithField("key", key).Warn("cache get failed")
		}
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	if c != nil {
		data, err := json.Marshal(value)
		if err != nil {
			return value, fmt.Errorf("encode cache value: %w", err)
		}
		if err := c.Set(ctx, key, string(data), ttl); err != nil {
			logger.FromContext(ctx).WithError(err).WithField("key", key).Warn("cache set failed")
		}
	}
	return value, nil
}

// Invalidate drops keys, logging instead of failing.
func Invalidate(ctx context.Context, c Cache, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	if err := c.Del(ctx, keys...); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("cache invalidate failed")
	}
}

// SetCacheControl marks a response privately cacheable for ttl.
func SetCacheControl(w http.ResponseWriter, ttl time.Duration) {
	secs := int(ttl / time.Second)
	if secs <= 0 {
		w.Header().Set("Cache-Control", "no-store")
		return
	}
	w.Header().Set("Cache-Control", "private, max-age="+strconv.Itoa(secs))
}

func SchoolStatsKey(schoolID string) string {
	return "school:" + schoolID + ":stats"
}

func UnreadCountKey(userID string) string {
	return "user:" + userID + ":unread"
}
