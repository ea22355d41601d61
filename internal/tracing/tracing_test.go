package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"tako/internal/config"
)

func TestSetup_DisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TracingConfig{}, "dev")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewProvider_ExportsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := NewProvider(exp, config.TracingConfig{ServiceName: "tako-test", SampleRatio: 1}, "1.2.3")

	_, span := tp.Tracer("test").Start(context.Background(), "dispatch")
	span.End()
	require.NoError(t, tp.ForceFlush(context.Background()))
	defer tp.Shutdown(context.Background())

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "dispatch", spans[0].Name)

	attrs := map[string]string{}
	for _, kv := range spans[0].Resource.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "tako-test", attrs["service.name"])
	assert.Equal(t, "1.2.3", attrs["service.version"])
}

func TestNewProvider_ZeroRatioSamplesNothing(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := NewProvider(exp, config.TracingConfig{SampleRatio: 0}, "dev")

	_, span := tp.Tracer("test").Start(context.Background(), "dropped")
	span.End()
	require.NoError(t, tp.ForceFlush(context.Background()))
	defer tp.Shutdown(context.Background())
	assert.Empty(t, exp.GetSpans())
}
