package cache

import (
	"context"

	"github.com/graphweave/fedgate/internal/telemetry"
	"github.com/graphweave/fedgate/logger"
)

// RequestContext is the per-request information the wrapper needs
// beyond the key and the backend: where to file background work, and
// the tags/namespace/control directives that come from the request
// rather than from the cached value itself.
type RequestContext interface {
	RayID() string
	Namespace() string
	CommonCacheTags() []string
	Control() Control
	CachingEnabled() bool

	// WaitUntilPush schedules fn to run after the response has been
	// sent, detached from the request's own cancellation. fn receives
	// a context independent of the request's.
	WaitUntilPush(fn func(ctx context.Context))
}

// Run produces the value for a cache key on a miss or a revalidation.
type Run func(ctx context.Context) (Cacheable, error)

// Result is what Execute returns: the value to serve, plus the read
// status if caching applied (it does not for a disabled-cache
// request, which has no header to report).
type Result struct {
	Value     Cacheable
	Status    ReadStatus
	HasStatus bool
}

// Wrapper wraps an executor with the response cache.
type Wrapper struct {
	Backend Backend

	// Logger receives one entry per cache decision (hit/stale/miss),
	// tagged with the request's ray id. Nil disables logging.
	Logger logger.Logger
}

func (w *Wrapper) log(rctx RequestContext, msg string, tags ...interface{}) {
	if w.Logger == nil {
		return
	}
	logger.WithRayID(w.Logger, rctx.RayID()).Debug(msg, tags...)
}

// Execute runs the cache-wrapped request: on a key-building bypass or
// caching-disabled request, run executes directly; otherwise the
// cache is consulted per the Hit/Stale/Miss policy in cached.
func (w *Wrapper) Execute(ctx context.Context, rctx RequestContext, scopes []ScopeDimension, fingerprint, variablesJSON string, req Request, run Run) (Result, error) {
	if !rctx.CachingEnabled() {
		v, err := run(ctx)
		if err != nil {
			return Result{}, err
		}
		return Result{Value: v}, nil
	}

	key, err := BuildKey(fingerprint, variablesJSON, scopes, req)
	if err != nil {
		v, err := run(ctx)
		if err != nil {
			return Result{}, err
		}
		return Result{Value: v, Status: BypassStatus(), HasStatus: true}, nil
	}

	return w.cached(ctx, rctx, key, run)
}

func (w *Wrapper) cached(ctx context.Context, rctx RequestContext, key string, run Run) (Result, error) {
	span, ctx := telemetry.StartSpan(ctx, telemetry.StageCacheGet)
	defer span.Finish()
	telemetry.Tag(span, "cache.namespace", rctx.Namespace())
	telemetry.Tag(span, "cache.key", key)

	namespace := rctx.Namespace()

	var entry Entry
	if rctx.Control().NoCache {
		entry = missEntry()
	} else if e, err := w.Backend.Get(ctx, namespace, key); err == nil {
		entry = e
	} else {
		entry = missEntry()
	}

	priorityTags := rctx.CommonCacheTags()

	switch {
	case entry.isStale():
		alreadyUpdating := entry.State == UpdateInProgress
		if !alreadyUpdating {
			w.log(rctx, "cache stale, revalidating", "namespace", namespace, "key", key)
			w.updateStale(rctx, namespace, key, entry.Value, priorityTags, run)
		}

		// an early-stale entry is still within its serving window from
		// the backend's perspective; report it as a hit to the client
		// even though a refresh was just kicked off.
		if entry.IsEarlyStale {
			return Result{Value: entry.Value, Status: HitStatus(), HasStatus: true}, nil
		}
		// the call that spawns the revalidation reports STALE; a call
		// that lands while one is already in flight reports UPDATING.
		return Result{Value: entry.Value, Status: StaleStatus(alreadyUpdating), HasStatus: true}, nil

	case entry.isHit():
		w.log(rctx, "cache hit", "namespace", namespace, "key", key)
		return Result{Value: entry.Value, Status: HitStatus(), HasStatus: true}, nil

	default:
		w.log(rctx, "cache miss", "namespace", namespace, "key", key)
		return w.miss(ctx, rctx, namespace, key, priorityTags, run)
	}
}

func (w *Wrapper) miss(ctx context.Context, rctx RequestContext, namespace, key string, priorityTags []string, run Run) (Result, error) {
	value, err := run(ctx)
	if err != nil {
		return Result{}, err
	}

	if value.ShouldPurgeRelated() {
		tags := value.CacheTags(priorityTags)
		rctx.WaitUntilPush(func(bgCtx context.Context) {
			_ = w.Backend.PurgeByTags(bgCtx, tags)
		})
	}

	if !value.ShouldCache() || rctx.Control().NoStore {
		return Result{Value: value, Status: BypassStatus(), HasStatus: true}, nil
	}

	tags := value.CacheTags(priorityTags)
	rayID := rctx.RayID()
	rctx.WaitUntilPush(func(bgCtx context.Context) {
		_ = w.Backend.Put(bgCtx, namespace, rayID, key, Fresh, value, tags)
	})
	return Result{Value: value, Status: MissStatus(value.MaxAgeSeconds()), HasStatus: true}, nil
}

// updateStale schedules the background revalidation for a stale
// entry not already being refreshed: the entry is marked
// UpdateInProgress, the origin is re-run, and the result replaces it
// as Fresh on success or reverts it to Stale (not UpdateInProgress,
// so a later reader may retry) on failure.
func (w *Wrapper) updateStale(rctx RequestContext, namespace, key string, existing Cacheable, priorityTags []string, run Run) {
	rayID := rctx.RayID()
	existingTags := existing.CacheTags(priorityTags)

	rctx.WaitUntilPush(func(bgCtx context.Context) {
		_ = w.Backend.Put(bgCtx, namespace, rayID, key, UpdateInProgress, existing, existingTags)

		fresh, err := run(bgCtx)
		if err != nil {
			_ = w.Backend.Put(bgCtx, namespace, rayID, key, Stale, existing, existingTags)
			return
		}

		freshTags := fresh.CacheTags(priorityTags)
		_ = w.Backend.Put(bgCtx, namespace, rayID, key, Fresh, fresh, freshTags)
	})
}
