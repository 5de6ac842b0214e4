// Package dedup provides trade-id deduplication so replayed bus messages
// never double-apply to positions.
package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Oracle answers whether a trade id has been applied before. Seen is a
// pure read; Mark is called only after the trade is durably persisted,
// so a failed persist leaves the id eligible for bus redelivery.
type Oracle interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
}

// RedisOracle keys applied ids under a TTL. Shared across instances,
// so a replayed batch is filtered even after a restart.
type RedisOracle struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisOracle creates a Redis-backed oracle. Ids expire after ttl;
// the bus retention must not exceed it.
func NewRedisOracle(rdb *redis.Client, ttl time.Duration) *RedisOracle {
	return &RedisOracle{rdb: rdb, ttl: ttl}
}

func (o *RedisOracle) Seen(ctx context.Context, id string) (bool, error) {
	n, err := o.rdb.Exists(ctx, tradeKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("dedup %s: %w", id, err)
	}
	return n > 0, nil
}

func (o *RedisOracle) Mark(ctx context.Context, id string) error {
	if err := o.rdb.Set(ctx, tradeKey(id), 1, o.ttl).Err(); err != nil {
		return fmt.Errorf("dedup mark %s: %w", id, err)
	}
	return nil
}

func tradeKey(id string) string { return fmt.Sprintf("trade:seen:%s", id) }

// MemoryOracle is an in-process oracle for tests and single-instance runs.
type MemoryOracle struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryOracle creates an in-memory oracle.
func NewMemoryOracle() *MemoryOracle {
	return &MemoryOracle{seen: make(map[string]struct{})}
}

func (o *MemoryOracle) Seen(_ context.Context, id string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	_, ok := o.seen[id]
	return ok, nil
}

func (o *MemoryOracle) Mark(_ context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.seen[id] = struct{}{}
	return nil
}
