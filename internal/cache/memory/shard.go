package memory

import (
	"container/heap"
	"sync"
	"time"

	"github.com/graphweave/fedgate/internal/cache"
)

// item is one cached entry plus the bookkeeping the shard needs to
// evict and purge it: staleAt marks the Fresh/Stale boundary,
// expiresAt the point at which the entry is dropped outright
// (max_age + stale_seconds, per Cacheable.TTLSeconds).
type item struct {
	namespace, key string
	value          cache.Cacheable
	state          cache.EntryState
	tags           []string
	staleAt        time.Time
	expiresAt      time.Time
	heapIndex      int
}

func compositeKey(namespace, key string) string { return namespace + "\x00" + key }

type shard struct {
	mu     sync.Mutex
	items  map[string]*item
	byTag  map[string]map[string]*item
	expiry expiryHeap
}

func newShard() *shard {
	return &shard{
		items: make(map[string]*item),
		byTag: make(map[string]map[string]*item),
	}
}

func (s *shard) get(namespace, key string, now time.Time) cache.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpiredLocked(now)

	it, ok := s.items[compositeKey(namespace, key)]
	if !ok {
		return cache.MissEntry()
	}
	if now.Before(it.staleAt) {
		return cache.HitEntry(it.value)
	}
	return cache.NewStaleEntry(it.value, it.state, false)
}

func (s *shard) put(namespace, key string, state cache.EntryState, value cache.Cacheable, tags []string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ck := compositeKey(namespace, key)
	existing, hadExisting := s.items[ck]

	// Fresh marks a newly-produced value: its freshness window starts
	// now. A put to Stale or UpdateInProgress is a state transition on
	// the same logical entry (update_stale re-announcing its existing
	// value before/after a failed revalidation), so it carries the
	// prior window forward instead of resetting it — otherwise the
	// in-flight-revalidation transition would itself make the entry
	// look freshly Hit again.
	staleAt := now.Add(time.Duration(value.MaxAgeSeconds()) * time.Second)
	expiresAt := now.Add(time.Duration(value.TTLSeconds()) * time.Second)
	if state != cache.Fresh && hadExisting {
		staleAt = existing.staleAt
		expiresAt = existing.expiresAt
	}

	if hadExisting {
		s.removeLocked(ck, existing)
	}

	it := &item{
		namespace: namespace,
		key:       key,
		value:     value,
		state:     state,
		tags:      tags,
		staleAt:   staleAt,
		expiresAt: expiresAt,
	}
	s.items[ck] = it
	heap.Push(&s.expiry, it)
	for _, tag := range tags {
		set, ok := s.byTag[tag]
		if !ok {
			set = make(map[string]*item)
			s.byTag[tag] = set
		}
		set[ck] = it
	}
}

func (s *shard) purgeByTags(tags []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tag := range tags {
		for ck, it := range s.byTag[tag] {
			s.removeLocked(ck, it)
		}
	}
}

// removeLocked drops it from every index. Callers hold s.mu.
func (s *shard) removeLocked(ck string, it *item) {
	delete(s.items, ck)
	if it.heapIndex >= 0 && it.heapIndex < len(s.expiry) && s.expiry[it.heapIndex] == it {
		heap.Remove(&s.expiry, it.heapIndex)
	}
	for _, tag := range it.tags {
		delete(s.byTag[tag], ck)
		if len(s.byTag[tag]) == 0 {
			delete(s.byTag, tag)
		}
	}
}

func (s *shard) evictExpiredLocked(now time.Time) {
	for {
		it, expired := s.expiry.peekExpired(now)
		if !expired {
			return
		}
		s.removeLocked(compositeKey(it.namespace, it.key), it)
	}
}
