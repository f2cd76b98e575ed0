package main

import (
	"github.com/graphweave/fedgate/internal/cache"
)

// renderedResponse is the cache.Cacheable the gateway's run function
// produces: the already-JSON-rendered response body plus the policy
// fields the wrapper reads (spec.md §4.7's "(response payload,
// max_age_seconds, stale_seconds, ttl_seconds, cache_tags,
// should_purge_related, should_cache, operation_type)" cache value
// tuple).
type renderedResponse struct {
	body []byte

	maxAgeSeconds int
	staleSeconds  int

	isMutation bool
	hasErrors  bool
}

func (r *renderedResponse) MaxAgeSeconds() int { return r.maxAgeSeconds }
func (r *renderedResponse) StaleSeconds() int  { return r.staleSeconds }
func (r *renderedResponse) TTLSeconds() int    { return r.maxAgeSeconds + r.staleSeconds }

// CacheTags reports the bulk-invalidation groups this response
// belongs to: always the request-common tags spec.md §4.7 requires,
// since the schema graph carries no per-field tag metadata to add to
// them.
func (r *renderedResponse) CacheTags(priorityTags []string) []string {
	return priorityTags
}

// ShouldPurgeRelated reports true for mutations, so a write's
// side effects invalidate whatever queries might now be stale (spec
// §4.7 "Purge").
func (r *renderedResponse) ShouldPurgeRelated() bool { return r.isMutation }

// ShouldCache reports false for mutations and for any response that
// carries execution errors, so a partially-failed read is never
// served back out of the cache on a later request.
func (r *renderedResponse) ShouldCache() bool { return !r.isMutation && !r.hasErrors }

var _ cache.Cacheable = (*renderedResponse)(nil)
