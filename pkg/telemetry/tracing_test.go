package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
)

func TestInitTracerDisabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestGetSampler(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected trace.Sampler
	}{
		{"always", Config{SamplerType: "always"}, trace.AlwaysSample()},
		{"never", Config{SamplerType: "never"}, trace.NeverSample()},
		{"ratio", Config{SamplerType: "ratio", SamplerRatio: 0.25}, trace.ParentBased(trace.TraceIDRatioBased(0.25))},
		{"ratio clamped low", Config{SamplerType: "ratio", SamplerRatio: -1}, trace.ParentBased(trace.TraceIDRatioBased(0))},
		{"ratio clamped high", Config{SamplerType: "ratio", SamplerRatio: 7}, trace.ParentBased(trace.TraceIDRatioBased(1))},
		{"unknown falls back to always", Config{SamplerType: "sometimes"}, trace.AlwaysSample()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sampler := getSampler(tt.config)
			assert.Equal(t, tt.expected.Description(), sampler.Description())
		})
	}
}
