package tracing

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

type Config struct {
	Enabled     bool    `yaml:"enabled" envconfig:"TRACING_ENABLED" default:"false"`
	Endpoint    string  `yaml:"endpoint" envconfig:"TRACING_ENDPOINT" default:"localhost:4318"`
	Insecure    bool    `yaml:"insecure" envconfig:"TRACING_INSECURE" default:"true"`
	SampleRatio float64 `yaml:"sampleRatio" envconfig:"TRACING_SAMPLE_RATIO" default:"1"`
}

// NewProvider builds a tracer provider exporting over OTLP/HTTP and installs it
// as the global one. The caller shuts it down.
func NewProvider(ctx context.Context, cfg Config, service string) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "otlp exporter")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp, nil
}
