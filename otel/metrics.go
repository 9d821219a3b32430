// Package otel records spellbook activity as OpenTelemetry metrics and spans.
package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/petal-labs/spellbook/bundle"
	"github.com/petal-labs/spellbook/store"
)

// Observer translates bundle and store observations into OpenTelemetry
// counters, histograms and spans.
type Observer struct {
	tracer trace.Tracer

	bundles        metric.Int64Counter
	bundleBytes    metric.Int64Counter
	bundleDuration metric.Float64Histogram
	storeOps       metric.Int64Counter
	storeSkipped   metric.Int64Counter
	storeDuration  metric.Float64Histogram
}

// NewObserver creates an observer bound to the provided meter and tracer.
// A nil tracer disables span creation.
func NewObserver(meter metric.Meter, tracer trace.Tracer) (*Observer, error) {
	bundles, err := meter.Int64Counter("spellbook.bundle.generations",
		metric.WithDescription("Number of bundle generations"),
	)
	if err != nil {
		return nil, err
	}
	bundleBytes, err := meter.Int64Counter("spellbook.bundle.bytes",
		metric.WithDescription("Bytes of generated bundle content"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}
	bundleDuration, err := meter.Float64Histogram("spellbook.bundle.duration",
		metric.WithDescription("Duration of bundle generation in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	storeOps, err := meter.Int64Counter("spellbook.store.operations",
		metric.WithDescription("Number of spell store operations"),
	)
	if err != nil {
		return nil, err
	}
	storeSkipped, err := meter.Int64Counter("spellbook.store.skipped",
		metric.WithDescription("Number of stored spells skipped as invalid"),
	)
	if err != nil {
		return nil, err
	}
	storeDuration, err := meter.Float64Histogram("spellbook.store.duration",
		metric.WithDescription("Duration of spell store operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Observer{
		tracer:         tracer,
		bundles:        bundles,
		bundleBytes:    bundleBytes,
		bundleDuration: bundleDuration,
		storeOps:       storeOps,
		storeSkipped:   storeSkipped,
		storeDuration:  storeDuration,
	}, nil
}

// ObserveGenerate records one bundle generation.
func (o *Observer) ObserveGenerate(observation bundle.Observation) {
	if o == nil {
		return
	}

	outcome := "ok"
	switch {
	case observation.Validation:
		outcome = "invalid"
	case !observation.Success:
		outcome = "error"
	}
	attrs := []attribute.KeyValue{
		attribute.String("outcome", outcome),
	}
	if observation.Kind != "" {
		attrs = append(attrs, attribute.String("action", string(observation.Kind)))
	}

	ctx := context.Background()
	options := metric.WithAttributes(attrs...)
	o.bundles.Add(ctx, 1, options)
	if observation.Validation {
		return
	}
	o.bundleBytes.Add(ctx, int64(observation.Bytes), options)
	o.bundleDuration.Record(ctx, seconds(observation.DurationMS), options)
}

// ObserveStore records one store operation and, when a tracer is set, a span
// for it.
func (o *Observer) ObserveStore(observation store.Observation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("driver", observation.Driver),
		attribute.String("operation", observation.Operation),
		attribute.Bool("success", observation.Success),
	}

	ctx := context.Background()
	options := metric.WithAttributes(attrs...)
	o.storeOps.Add(ctx, 1, options)
	o.storeDuration.Record(ctx, seconds(observation.DurationMS), options)
	if observation.Skipped > 0 {
		o.storeSkipped.Add(ctx, int64(observation.Skipped), metric.WithAttributes(
			attribute.String("driver", observation.Driver),
		))
	}

	if o.tracer == nil {
		return
	}
	end := time.Now()
	start := end.Add(-time.Duration(observation.DurationMS) * time.Millisecond)
	_, span := o.tracer.Start(ctx, "store."+observation.Operation,
		trace.WithTimestamp(start),
		trace.WithAttributes(append(attrs,
			attribute.Int("spells", observation.Spells),
			attribute.Int("skipped", observation.Skipped),
		)...),
	)
	if observation.Success {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, observation.Operation+" failed")
	}
	span.End(trace.WithTimestamp(end))
}

func seconds(ms int64) float64 {
	return float64(time.Duration(ms)*time.Millisecond) / float64(time.Second)
}

var (
	_ bundle.Observer = (*Observer)(nil)
	_ store.Observer  = (*Observer)(nil)
)
