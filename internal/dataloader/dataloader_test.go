package dataloader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDedupesConcurrentCallsForSameKey(t *testing.T) {
	var calls int32
	loader, err := New(context.Background(), Config[string, string]{
		Batch: func(ctx context.Context, keys []string) (map[string]string, map[string]error, error) {
			atomic.AddInt32(&calls, 1)
			out := make(map[string]string, len(keys))
			for _, k := range keys {
				out[k] = "v-" + k
			}
			return out, nil, nil
		},
		Delay: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]Result[string], 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := loader.Load(context.Background(), "a")
			require.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&calls), "ten concurrent loads for the same key must coalesce into one batch call")
	for _, r := range results {
		require.True(t, r.Found)
		require.Equal(t, "v-a", r.Value)
	}
}

func TestLoadBatchesDistinctKeysWithinDelayWindow(t *testing.T) {
	var batchSizes []int
	var mu sync.Mutex

	loader, err := New(context.Background(), Config[string, int]{
		Batch: func(ctx context.Context, keys []string) (map[string]int, map[string]error, error) {
			mu.Lock()
			batchSizes = append(batchSizes, len(keys))
			mu.Unlock()
			out := make(map[string]int, len(keys))
			for i, k := range keys {
				out[k] = i
			}
			return out, nil, nil
		},
		Delay: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, k := range []string{"x", "y", "z"} {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			_, err := loader.Load(context.Background(), k)
			require.NoError(t, err)
		}(k)
	}
	wg.Wait()

	require.Equal(t, []int{3}, batchSizes, "keys enqueued within the delay window share a single batch call")
}

func TestLoadDispatchesEarlyAtMaxBatchSize(t *testing.T) {
	var calls int32
	loader, err := New(context.Background(), Config[int, int]{
		Batch: func(ctx context.Context, keys []int) (map[int]int, map[int]error, error) {
			atomic.AddInt32(&calls, 1)
			out := make(map[int]int, len(keys))
			for _, k := range keys {
				out[k] = k * 2
			}
			return out, nil, nil
		},
		MaxBatchSize: 2,
		Delay:        time.Hour, // effectively disabled; only MaxBatchSize should trigger this test
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, k := range []int{1, 2} {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			r, err := loader.Load(context.Background(), k)
			require.NoError(t, err)
			require.True(t, r.Found)
			require.Equal(t, k*2, r.Value)
		}(k)
	}
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestLoadPartialSuccessDistinguishesMissingFromError(t *testing.T) {
	loader, err := New(context.Background(), Config[string, string]{
		Batch: func(ctx context.Context, keys []string) (map[string]string, map[string]error, error) {
			return map[string]string{"found": "value"}, map[string]error{"errored": errors.New("boom")}, nil
		},
		Delay: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	found, err := loader.Load(context.Background(), "found")
	require.NoError(t, err)
	require.True(t, found.Found)
	require.Equal(t, "value", found.Value)

	missing, err := loader.Load(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, missing.Found, "a key omitted from both maps resolves to Ok(None)")

	_, err = loader.Load(context.Background(), "errored")
	require.Error(t, err)
}

func TestLoadBatchLevelErrorFansOutToEveryWaiter(t *testing.T) {
	loader, err := New(context.Background(), Config[string, string]{
		Batch: func(ctx context.Context, keys []string) (map[string]string, map[string]error, error) {
			return nil, nil, errors.New("upstream unavailable")
		},
		Delay: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = loader.Load(context.Background(), "k")
		}(i)
	}
	wg.Wait()

	for _, e := range errs {
		require.Error(t, e)
	}
}

func TestLoadCachesAcrossBatches(t *testing.T) {
	var calls int32
	loader, err := New(context.Background(), Config[string, string]{
		Batch: func(ctx context.Context, keys []string) (map[string]string, map[string]error, error) {
			atomic.AddInt32(&calls, 1)
			return map[string]string{keys[0]: "cached"}, nil, nil
		},
		Delay: 5 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = loader.Load(context.Background(), "k")
	require.NoError(t, err)

	_, err = loader.Load(context.Background(), "k")
	require.NoError(t, err)

	require.Equal(t, int32(1), atomic.LoadInt32(&calls), "second load hits the memo cache, not a new batch")
}

func TestLoadCancellationDoesNotCancelSharedBatch(t *testing.T) {
	started := make(chan struct{})
	var startedOnce sync.Once
	loader, err := New(context.Background(), Config[string, string]{
		Batch: func(ctx context.Context, keys []string) (map[string]string, map[string]error, error) {
			startedOnce.Do(func() { close(started) })
			out := make(map[string]string, len(keys))
			for _, k := range keys {
				out[k] = "ok"
			}
			return out, nil, nil
		},
		Delay: 30 * time.Millisecond,
	})
	require.NoError(t, err)

	cancelCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := loader.Load(cancelCtx, "shared")
		require.ErrorIs(t, err, context.Canceled)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()
	wg.Wait()

	<-started // the batch still ran despite the cancellation above

	r, err := loader.Load(context.Background(), "shared")
	require.NoError(t, err)
	require.True(t, r.Found, "a later load of the same key still resolves")
}

func TestLoadManyReportsPerKeyOutcomes(t *testing.T) {
	loader, err := New(context.Background(), Config[string, string]{
		Batch: func(ctx context.Context, keys []string) (map[string]string, map[string]error, error) {
			out := map[string]string{}
			errs := map[string]error{}
			for _, k := range keys {
				if k == "bad" {
					errs[k] = errors.New("bad key")
					continue
				}
				out[k] = "v-" + k
			}
			return out, errs, nil
		},
		Delay: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	outcomes := loader.LoadMany(context.Background(), []string{"good", "bad"})
	require.Len(t, outcomes, 2)
	require.NoError(t, outcomes[0].Err)
	require.Equal(t, "v-good", outcomes[0].Value)
	require.Error(t, outcomes[1].Err)
}
