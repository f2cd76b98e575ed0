// Package memory implements cache.Backend with a sharded in-process
// map, suitable for tests and single-process deployments. It is not
// shared across processes; multi-process deployments need a
// different Backend.
package memory

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/graphweave/fedgate/internal/cache"
)

const defaultShardCount = 16

// Backend is a sharded, in-memory cache.Backend. The zero value is
// not usable; construct with New.
type Backend struct {
	shards []*shard
	now    cache.Clock
}

// New constructs a Backend with the default shard count.
func New() *Backend { return NewWithShards(defaultShardCount) }

// NewWithShards constructs a Backend with a given shard count, mostly
// useful for tests that want to force key collisions into one shard.
func NewWithShards(shardCount int) *Backend {
	return NewWithClock(shardCount, time.Now)
}

// NewWithClock constructs a Backend driven by clock instead of
// time.Now, letting tests exercise the Fresh/Stale/evicted
// transitions (spec scenario 4) without sleeping.
func NewWithClock(shardCount int, clock cache.Clock) *Backend {
	if shardCount < 1 {
		shardCount = 1
	}
	b := &Backend{shards: make([]*shard, shardCount), now: clock}
	for i := range b.shards {
		b.shards[i] = newShard()
	}
	return b
}

// SetClock replaces the backend's clock, for tests that want to New()
// a backend and then advance time explicitly.
func (b *Backend) SetClock(clock cache.Clock) { b.now = clock }

func (b *Backend) shardFor(namespace, key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(namespace))
	h.Write([]byte{0})
	h.Write([]byte(key))
	return b.shards[h.Sum32()%uint32(len(b.shards))]
}

func (b *Backend) Get(ctx context.Context, namespace, key string) (cache.Entry, error) {
	return b.shardFor(namespace, key).get(namespace, key, b.now()), nil
}

func (b *Backend) Put(ctx context.Context, namespace, rayID, key string, state cache.EntryState, value cache.Cacheable, tags []string) error {
	b.shardFor(namespace, key).put(namespace, key, state, value, tags, b.now())
	return nil
}

func (b *Backend) PurgeByTags(ctx context.Context, tags []string) error {
	for _, s := range b.shards {
		s.purgeByTags(tags)
	}
	return nil
}

// Sweep evicts every expired entry across all shards without waiting
// for a Get to touch them. RunSweeper calls this on an interval; a
// deployment can also call it directly (e.g. from a test) to make TTL
// expiry deterministic without sleeping.
func (b *Backend) Sweep() {
	now := b.now()
	for _, s := range b.shards {
		s.mu.Lock()
		s.evictExpiredLocked(now)
		s.mu.Unlock()
	}
}

// RunSweeper runs Sweep on every tick until ctx is done.
func (b *Backend) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Sweep()
		}
	}
}
