package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan_NoTracer(t *testing.T) {
	SetTracer(nil)

	ctx, span := StartSpan(context.Background(), "tracing.Test")
	defer span.End()

	assert.Empty(t, GetTraceID(ctx))
}

func TestInstall(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := Install("clover-test", exporter)
	defer func() {
		SetTracer(nil)
		_ = provider.Shutdown(context.Background())
	}()

	ctx, span := StartSpan(context.Background(), "tracing.Test")
	assert.NotEmpty(t, GetTraceID(ctx))
	span.End()

	require.NoError(t, provider.ForceFlush(context.Background()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "tracing.Test", spans[0].Name)
}
