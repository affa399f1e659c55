package tracing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/Astemirdum/library-circulation/pkg/tracing"
)

// Not parallel: NewProvider replaces the global provider.
func TestNewProvider(t *testing.T) {
	tests := []struct {
		name        string
		ratio       float64
		wantSampled bool
	}{
		{name: "sample all", ratio: 1, wantSampled: true},
		{name: "sample none", ratio: 0, wantSampled: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tracing.Config{Enabled: true, Endpoint: "127.0.0.1:1", Insecure: true, SampleRatio: tt.ratio}
			tp, err := tracing.NewProvider(context.Background(), cfg, "circulation")
			require.NoError(t, err)
			require.Same(t, tp, otel.GetTracerProvider())

			_, span := otel.Tracer("test").Start(context.Background(), "op")
			require.Equal(t, tt.wantSampled, span.SpanContext().IsSampled())
			require.True(t, span.SpanContext().IsValid())

			// the span is left open so shutdown has nothing to export
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			require.NoError(t, tp.Shutdown(ctx))
		})
	}
}
