package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/require"
)

func TestStartSpanWithoutParentIsDetachedNoop(t *testing.T) {
	span, ctx := StartSpan(context.Background(), StagePlan)
	require.NotNil(t, span)
	span.Finish()
	require.Nil(t, opentracing.SpanFromContext(ctx), "a no-op span must not attach itself to the returned context")
}

func TestStartSpanWithParentCreatesChild(t *testing.T) {
	tracer := mocktracer.New()
	parent := tracer.StartSpan("root")
	ctx := opentracing.ContextWithSpan(context.Background(), parent)

	span, _ := StartSpan(ctx, StageExecute)
	span.Finish()
	parent.Finish()

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 2)
	require.Equal(t, StageExecute, spans[0].OperationName)
}

func TestLogErrorTagsSpanAsError(t *testing.T) {
	tracer := mocktracer.New()
	span := tracer.StartSpan(StageMutation)
	LogError(span, errors.New("boom"))
	span.Finish()

	finished := tracer.FinishedSpans()[0]
	require.Equal(t, true, finished.Tag("error"))
}

func TestLogErrorIsNilSafe(t *testing.T) {
	require.NotPanics(t, func() {
		LogError(nil, errors.New("boom"))
		LogError(nil, nil)
	})
}
