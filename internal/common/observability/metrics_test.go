// internal/common/observability/metrics_test.go
package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingObservability() (*Observability, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return &Observability{tracerProvider: tp, tracer: tp.Tracer(instrumentationName)}, recorder
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestJobSpan_Completed(t *testing.T) {
	obs, recorder := newRecordingObservability()

	_, span := obs.StartJobSpan(context.Background(), "job-001", "assessment-001", 1)
	EndJobSpan(span, "completed", nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "processing.job", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)

	v, ok := attrValue(spans[0].Attributes(), "job.id")
	require.True(t, ok)
	assert.Equal(t, "job-001", v.AsString())
	v, ok = attrValue(spans[0].Attributes(), "job.retry_count")
	require.True(t, ok)
	assert.Equal(t, int64(1), v.AsInt64())
}

func TestJobSpan_Error(t *testing.T) {
	obs, recorder := newRecordingObservability()

	_, span := obs.StartJobSpan(context.Background(), "job-002", "assessment-002", 0)
	EndJobSpan(span, "error", errors.New("ASSESSMENT_NOT_FOUND"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "ASSESSMENT_NOT_FOUND", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)

	v, ok := attrValue(spans[0].Attributes(), "job.outcome")
	require.True(t, ok)
	assert.Equal(t, "error", v.AsString())
}

func TestNilObservabilityIsNoOp(t *testing.T) {
	var obs *Observability
	ctx := context.Background()

	obs.RecordJobProcessed(ctx, "completed")
	obs.RecordJobDuration(ctx, time.Second, "completed")

	_, span := obs.StartJobSpan(ctx, "job-003", "assessment-003", 0)
	EndJobSpan(span, "completed", nil)

	assert.NoError(t, obs.Shutdown(ctx))
}
