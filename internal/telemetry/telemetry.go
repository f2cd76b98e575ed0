// Package telemetry wraps opentracing-go spans around the executor,
// cache read and mutation planning stages (SPEC_FULL.md §0). It mirrors
// opentracingkit's MaybeStartSpanFromContext: when no parent span is on
// the context, callers still get a working span object back instead of
// nil, but it is never attached to the context or reported upstream, so
// a gateway run with no tracer configured pays no cost and downstream
// spans don't spuriously parent themselves off it.
package telemetry

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/opentracing/opentracing-go/log"
)

var noopTracer = &opentracing.NoopTracer{}

// Stage names for span call sites. The executor, the cache wrapper and
// the mutation planner use StageExecute, StageCacheGet and
// StageMutation; the other names have no call site. Kept as constants
// so span names can't drift between packages.
const (
	StagePlan     = "gateway.plan"
	StageExecute  = "gateway.execute"
	StagePartition = "gateway.partition"
	StageCacheGet = "gateway.cache.get"
	StageCacheSet = "gateway.cache.set"
	StageMutation = "gateway.mutation"
)

// StartSpan starts a child span named stage under ctx's active span, or
// a detached no-op span if ctx carries none.
func StartSpan(ctx context.Context, stage string, opts ...opentracing.StartSpanOption) (opentracing.Span, context.Context) {
	if span := opentracing.SpanFromContext(ctx); span != nil {
		return opentracing.StartSpanFromContext(ctx, stage, opts...)
	}
	return noopTracer.StartSpan(stage), ctx
}

// Tag sets a string tag on span if span is non-nil; a convenience for
// call sites that may be holding a no-op span.
func Tag(span opentracing.Span, key string, value interface{}) {
	if span != nil {
		span.SetTag(key, value)
	}
}

// LogError marks span as failed and attaches err, matching the
// teacher's opentracingkit.LogError.
func LogError(span opentracing.Span, err error) {
	if span == nil || err == nil {
		return
	}
	ext.Error.Set(span, true)
	span.LogFields(log.Error(err))
}
