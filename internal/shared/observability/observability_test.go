package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestTracer_RecordsSpansOnceProviderInstalled(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := Tracer.Start(context.Background(), "Session.ResolveToStage",
		trace.WithAttributes(AttrPath.String("a.kt"), AttrStage.String("DECLARATIONS")))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "Session.ResolveToStage", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), AttrStage.String("DECLARATIONS"))
}

func TestMetrics_CountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(ClassScopeCache.WithLabelValues("hit"))
	ClassScopeCache.WithLabelValues("hit").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ClassScopeCache.WithLabelValues("hit")))

	stamped := testutil.ToFloat64(DeclarationsStamped.WithLabelValues("RAW"))
	DeclarationsStamped.WithLabelValues("RAW").Add(3)
	assert.Equal(t, stamped+3, testutil.ToFloat64(DeclarationsStamped.WithLabelValues("RAW")))
}
