package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores serialized provider responses keyed by rounded coordinates so
// repeated queries for the same site skip the external round-trips.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// New connects to Redis when redisURL is reachable, otherwise falls back to
// an in-process cache.
func New(redisURL string) Cache {
	if redisURL == "" {
		return NewMemory()
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return NewMemory()
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return NewMemory()
	}
	return &Redis{client: client}
}

// Redis is a go-redis backed Cache.
type Redis struct {
	client *redis.Client
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (r *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, val, ttl).Err()
}

// Memory is a mutex-guarded map cache with per-entry expiry.
type Memory struct {
	mu    sync.Mutex
	items map[string]memItem
}

type memItem struct {
	val []byte
	exp time.Time
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]memItem)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok {
		return nil, false
	}
	if !it.exp.IsZero() && time.Now().After(it.exp) {
		delete(m.items, key)
		return nil, false
	}
	return it.val, true
}

func (m *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp := time.Time{}
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	m.items[key] = memItem{val: val, exp: exp}
	return nil
}

// Marshal and Unmarshal keep the cache payload format in one place.
func Marshal(v any) ([]byte, error)   { return json.Marshal(v) }
func Unmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }
