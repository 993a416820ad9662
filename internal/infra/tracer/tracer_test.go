package tracer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"

	"bluepulse/internal/infra/config"
)

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TracerConfig{Enabled: false})
	require.NoError(t, err)
	defer shutdown(context.Background())

	_, ok := otel.GetTracerProvider().(noop.TracerProvider)
	assert.True(t, ok, "expected noop provider, got %T", otel.GetTracerProvider())
}

func TestSetupNoopExporters(t *testing.T) {
	for _, exp := range []string{"noop", ""} {
		shutdown, err := Setup(context.Background(), config.TracerConfig{Enabled: true, Exporter: exp})
		require.NoError(t, err)
		_, ok := otel.GetTracerProvider().(noop.TracerProvider)
		assert.True(t, ok, exp)
		require.NoError(t, shutdown(context.Background()))
	}
}

func TestSetupStdoutToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces", "spans.json")
	shutdown, err := Setup(context.Background(), config.TracerConfig{Enabled: true, Exporter: "stdout", Output: path})
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "ble.connect")
	span.SetAttributes(StringAttr("ble.device", "aa:bb"))
	SetOK(span)
	span.End()
	require.NoError(t, shutdown(context.Background()))
	otel.SetTracerProvider(noop.NewTracerProvider())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ble.connect")
	assert.Contains(t, string(data), "aa:bb")
}

func TestSetupUnsupportedExporter(t *testing.T) {
	_, err := Setup(context.Background(), config.TracerConfig{Enabled: true, Exporter: "invalid"})
	assert.Error(t, err)
}

func TestStartSpanAndHelpers(t *testing.T) {
	otel.SetTracerProvider(noop.NewTracerProvider())

	ctx, span := StartSpan(context.Background(), "test-span")
	assert.NotNil(t, ctx)

	assert.NotPanics(t, func() {
		SetOK(span)
		RecordError(span, errors.New("test error"))
		span.End()
	})
}

func TestAttrHelpers(t *testing.T) {
	s := StringAttr("key", "value")
	assert.Equal(t, "key", string(s.Key))
	assert.Equal(t, "value", s.Value.AsString())

	i := IntAttr("count", 42)
	assert.Equal(t, "count", string(i.Key))
	assert.Equal(t, int64(42), i.Value.AsInt64())
}
