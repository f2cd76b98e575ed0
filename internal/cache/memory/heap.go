package memory

import "time"

// expiryHeap is a container/heap min-heap ordering items by
// expiresAt, letting the sweep find the next item to evict without
// scanning the whole shard. No third-party TTL-cache library appears
// anywhere in the corpus, so this sweep is hand-rolled over the
// standard library's container/heap rather than reaching for one.
type expiryHeap []*item

func (h expiryHeap) Len() int { return len(h) }

func (h expiryHeap) Less(i, j int) bool { return h[i].expiresAt.Before(h[j].expiresAt) }

func (h expiryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *expiryHeap) Push(x interface{}) {
	it := x.(*item)
	it.heapIndex = len(*h)
	*h = append(*h, it)
}

func (h *expiryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.heapIndex = -1
	*h = old[:n-1]
	return it
}

func (h expiryHeap) peekExpired(now time.Time) (*item, bool) {
	if len(h) == 0 {
		return nil, false
	}
	if h[0].expiresAt.After(now) {
		return nil, false
	}
	return h[0], true
}
