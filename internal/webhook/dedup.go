package webhook

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers webhook event ids so redeliveries are handled once.
type Deduper interface {
	// Seen marks id and reports whether it had already been marked.
	Seen(ctx context.Context, id string) (bool, error)
}

// RedisDeduper shares seen ids across API instances.
type RedisDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisDeduper keeps ids for ttl.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisDeduper{client: client, prefix: "attendance:webhook:", ttl: ttl}
}

func (d *RedisDeduper) Seen(ctx context.Context, id string) (bool, error) {
	set, err := d.client.SetNX(ctx, d.prefix+id, 1, d.ttl).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}

// MemoryDeduper is a process-local Deduper.
type MemoryDeduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seen map[string]time.Time
}

// NewMemoryDeduper keeps ids for ttl.
func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &MemoryDeduper{ttl: ttl, now: time.Now, seen: make(map[string]time.Time)}
}

func (d *MemoryDeduper) Seen(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	for k, exp := range d.seen {
		if now.After(exp) {
			delete(d.seen, k)
		}
	}
	if _, ok := d.seen[id]; ok {
		return true, nil
	}
	d.seen[id] = now.Add(d.ttl)
	return false, nil
}
