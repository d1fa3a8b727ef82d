package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability owns the OpenTelemetry meter and tracer providers of the process.
// The zero value records nothing and is safe to use.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracer         *Tracer
	reportCounter  otelmetric.Int64Counter
	upstreamTiming otelmetric.Float64Histogram
}

// Logger is the subset of the logger used during setup.
type Logger interface {
	Warn(msg string, fields map[string]interface{})
}

// New wires the OpenTelemetry Prometheus reader into the default registry and sets up
// tracing. Exporter failures degrade to no-op instruments.
func New(serviceName string, tracing TracingConfig, log Logger) *Observability {
	o := &Observability{tracer: NewNoopTracer(serviceName)}

	if tracing.JaegerEndpoint != "" {
		tracer, err := NewTracer(serviceName, tracing)
		if err != nil {
			log.Warn("Failed to create Jaeger exporter, tracing disabled", map[string]interface{}{
				"endpoint": tracing.JaegerEndpoint,
				"error":    err.Error(),
			})
		} else {
			o.tracer = tracer
		}
	}

	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("Failed to create Prometheus exporter", map[string]interface{}{"error": err.Error()})
		return o
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter(serviceName)

	o.meterProvider = provider
	o.reportCounter, _ = meter.Int64Counter(
		"soulverse.reports",
		otelmetric.WithDescription("Number of compatibility reports by outcome"),
	)
	o.upstreamTiming, _ = meter.Float64Histogram(
		"soulverse.upstream.duration",
		otelmetric.WithDescription("Model API call duration including the retry"),
		otelmetric.WithUnit("ms"),
	)

	return o
}

// Tracer returns the span factory. It is never nil.
func (o *Observability) Tracer() *Tracer {
	if o == nil || o.tracer == nil {
		return NewNoopTracer("soulverse")
	}
	return o.tracer
}

func (o *Observability) RecordReport(ctx context.Context, topic, outcome string) {
	if o == nil || o.reportCounter == nil {
		return
	}
	o.reportCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("topic", topic),
		attribute.String("outcome", outcome),
	))
}

func (o *Observability) RecordUpstreamDuration(ctx context.Context, duration time.Duration, result string) {
	if o == nil || o.upstreamTiming == nil {
		return
	}
	o.upstreamTiming.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("result", result),
	))
}

func (o *Observability) Shutdown(ctx context.Context) {
	if o == nil {
		return
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracer != nil {
		_ = o.tracer.Shutdown(ctx)
	}
}
