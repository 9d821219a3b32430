package otel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/petal-labs/spellbook/bundle"
	"github.com/petal-labs/spellbook/store"
)

const (
	// DefaultServiceName is reported when no service name is configured.
	DefaultServiceName = "spellbook"

	instrumentationName = "github.com/petal-labs/spellbook"
)

// Config selects where telemetry goes. An empty Endpoint keeps the global
// no-op providers and only wires the observers.
type Config struct {
	Endpoint    string
	ServiceName string
}

// Telemetry is the installed telemetry pipeline.
type Telemetry struct {
	Observer *Observer
	provider *sdktrace.TracerProvider
}

// Setup installs an OTLP/HTTP span exporter when an endpoint is configured,
// then registers an Observer with the bundle and store packages.
func Setup(ctx context.Context, cfg Config) (*Telemetry, error) {
	t := &Telemetry{}

	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
		if err != nil {
			return nil, fmt.Errorf("otel: create otlp exporter: %w", err)
		}
		name := strings.TrimSpace(cfg.ServiceName)
		if name == "" {
			name = DefaultServiceName
		}
		t.provider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", name))),
		)
		otelapi.SetTracerProvider(t.provider)
	}

	observer, err := NewObserver(
		otelapi.GetMeterProvider().Meter(instrumentationName),
		otelapi.GetTracerProvider().Tracer(instrumentationName),
	)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("otel: create observer: %w", err), t.shutdownProvider(ctx))
	}
	t.Observer = observer
	bundle.SetObserver(observer)
	store.SetObserver(observer)
	return t, nil
}

// Shutdown detaches the observers and flushes pending spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	bundle.SetObserver(nil)
	store.SetObserver(nil)
	return t.shutdownProvider(ctx)
}

func (t *Telemetry) shutdownProvider(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
