// Package tracing installs an OpenTelemetry tracer provider for scf spans.
package tracing

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"

	"github.com/go-lynx/scf/conf"
	"github.com/go-lynx/scf/log"
)

// ShutdownFunc flushes and stops a tracer provider.
type ShutdownFunc func(ctx context.Context) error

func noop(context.Context) error { return nil }

// Setup installs a global tracer provider exporting to c.Endpoint over
// OTLP/gRPC. Without an endpoint nothing is installed and the returned
// shutdown does nothing.
func Setup(ctx context.Context, service string, c conf.Tracing) (ShutdownFunc, error) {
	if c.Endpoint == "" {
		return noop, nil
	}
	tp, err := NewProvider(ctx, service, c)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	log.Infof("tracing enabled, exporting to %s", c.Endpoint)
	return func(ctx context.Context) error {
		if err := tp.ForceFlush(ctx); err != nil {
			log.Errorf("failed to flush tracer provider: %v", err)
		}
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown tracer provider: %w", err)
		}
		return nil
	}, nil
}

// NewProvider builds a tracer provider with an OTLP/gRPC batch exporter.
func NewProvider(ctx context.Context, service string, c conf.Tracing) (*sdktrace.TracerProvider, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(c.Endpoint),
		otlptracegrpc.WithDialOption(
			grpc.WithDefaultServiceConfig(`{"loadBalancingPolicy":"round_robin"}`),
		),
	}
	if c.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP gRPC exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(Sampler(c.Ratio)),
		sdktrace.WithResource(Resource(service)),
		sdktrace.WithBatcher(exp),
	), nil
}

// Sampler samples root spans at ratio and follows the parent otherwise.
// A ratio of 0 samples everything.
func Sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// Resource describes the process emitting spans.
func Resource(service string) *resource.Resource {
	host, _ := os.Hostname()
	return resource.NewSchemaless(
		attribute.String("service.name", service),
		attribute.String("service.instance.id", host),
	)
}
