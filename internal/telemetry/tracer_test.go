// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{ServiceName: "sitekit", ExporterType: ExporterGRPC})
	require.NoError(t, err)
	assert.False(t, p.Enabled())

	_, span := otel.Tracer("test").Start(context.Background(), "noop")
	assert.False(t, span.IsRecording())
	span.End()

	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_UnsupportedExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ExporterType: "zipkin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported exporter type: "zipkin"`)
}

func TestNewProvider_HTTPExporter(t *testing.T) {
	t.Cleanup(func() { _, _ = NewProvider(context.Background(), Config{}) })

	// The exporter connects lazily, so no collector is needed here.
	p, err := NewProvider(context.Background(), Config{
		Enabled:        true,
		ServiceName:    "sitekit",
		ServiceVersion: "test",
		Environment:    "test",
		ExporterType:   ExporterHTTP,
		Endpoint:       "127.0.0.1:4318",
		SamplingRate:   1,
		Insecure:       true,
	})
	require.NoError(t, err)
	require.True(t, p.Enabled())

	_, span := Tracer("sitekit/test").Start(context.Background(), "recorded")
	assert.True(t, span.IsRecording())
	span.End()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Export fails against the cancelled context; shutdown still returns.
	_ = p.Shutdown(ctx)
}

func TestSamplerFor(t *testing.T) {
	for rate, want := range map[float64]string{
		1:    "AlwaysOnSampler",
		1.5:  "AlwaysOnSampler",
		0:    "AlwaysOffSampler",
		-1:   "AlwaysOffSampler",
		0.25: "TraceIDRatioBased{0.25}",
	} {
		assert.Equal(t, want, samplerFor(rate).Description(), "rate %v", rate)
	}
}

func TestProvider_NilSafe(t *testing.T) {
	var p *Provider
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()))
}
