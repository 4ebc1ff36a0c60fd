// Package counter keeps the global count of completed scans.
package counter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// Seed is the starting value reported before any scan is recorded.
const Seed int64 = 31847

// DefaultKey is the Redis key holding the number of scans since Seed.
const DefaultKey = "framerank:scans"

// Counter records completed scans. Increments are fire-and-forget; callers
// never read the count back for correctness.
type Counter interface {
	Increment(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
}

// Memory is a process-local Counter. It resets on restart.
type Memory struct {
	n atomic.Int64
}

// NewMemory creates an in-memory counter.
func NewMemory() *Memory { return &Memory{} }

// Increment adds one scan.
func (m *Memory) Increment(context.Context) error {
	m.n.Add(1)
	return nil
}

// Count returns Seed plus the scans recorded since start.
func (m *Memory) Count(context.Context) (int64, error) {
	return Seed + m.n.Load(), nil
}

// Redis is a Counter shared by every replica through a single Redis key.
type Redis struct {
	client redis.UniversalClient
	key    string
}

// NewRedis creates a Redis counter on key, or DefaultKey when key is empty.
func NewRedis(client redis.UniversalClient, key string) *Redis {
	if key == "" {
		key = DefaultKey
	}
	return &Redis{client: client, key: key}
}

// Increment adds one scan with INCR.
func (r *Redis) Increment(ctx context.Context) error {
	if err := r.client.Incr(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("incr %s: %w", r.key, err)
	}
	return nil
}

// Count returns Seed plus the stored value. A missing key counts as zero.
func (r *Redis) Count(ctx context.Context) (int64, error) {
	val, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return Seed, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", r.key, err)
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", r.key, err)
	}
	return Seed + n, nil
}
