package otel_test

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/petal-labs/spellbook/bundle"
	spellotel "github.com/petal-labs/spellbook/otel"
	"github.com/petal-labs/spellbook/spell"
	"github.com/petal-labs/spellbook/store"
)

// newTestMeter returns a meter backed by a manual reader for collecting metrics in tests.
func newTestMeter() (*metric.ManualReader, *metric.MeterProvider) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	return reader, mp
}

// collectMetrics reads all metrics from the reader.
func collectMetrics(t *testing.T, reader *metric.ManualReader) *metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return &rm
}

// findMetric searches for a metric by name in the collected data.
func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, scope := range rm.ScopeMetrics {
		for i := range scope.Metrics {
			if scope.Metrics[i].Name == name {
				return &scope.Metrics[i]
			}
		}
	}
	return nil
}

func sumByAttr(t *testing.T, m *metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: data type = %T, want Sum[int64]", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestObserveGenerateRecordsOutcomes(t *testing.T) {
	reader, mp := newTestMeter()
	o, err := spellotel.NewObserver(mp.Meter("test"), nil)
	if err != nil {
		t.Fatalf("NewObserver: %v", err)
	}

	o.ObserveGenerate(bundle.Observation{Spell: "a", Kind: spell.ActionHTTP, Files: 4, Bytes: 100, DurationMS: 20, Success: true})
	o.ObserveGenerate(bundle.Observation{Spell: "b", Kind: spell.ActionScript, Files: 4, Bytes: 50, DurationMS: 10, Success: true})
	o.ObserveGenerate(bundle.Observation{Spell: "c", Kind: spell.ActionHTTP, DurationMS: 1})
	o.ObserveGenerate(bundle.Observation{Validation: true})

	rm := collectMetrics(t, reader)

	gens := findMetric(rm, "spellbook.bundle.generations")
	if gens == nil {
		t.Fatal("spellbook.bundle.generations not recorded")
	}
	if got := sumByAttr(t, gens, "outcome", "ok"); got != 2 {
		t.Errorf("ok generations = %d, want 2", got)
	}
	if got := sumByAttr(t, gens, "outcome", "error"); got != 1 {
		t.Errorf("error generations = %d, want 1", got)
	}
	if got := sumByAttr(t, gens, "outcome", "invalid"); got != 1 {
		t.Errorf("invalid generations = %d, want 1", got)
	}

	bytes := findMetric(rm, "spellbook.bundle.bytes")
	if bytes == nil {
		t.Fatal("spellbook.bundle.bytes not recorded")
	}
	if bytes.Unit != "By" {
		t.Errorf("bytes unit = %q, want By", bytes.Unit)
	}
	if got := sumByAttr(t, bytes, "action", "http"); got != 100 {
		t.Errorf("http bytes = %d, want 100", got)
	}

	dur := findMetric(rm, "spellbook.bundle.duration")
	if dur == nil {
		t.Fatal("spellbook.bundle.duration not recorded")
	}
	hist, ok := dur.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("duration data type = %T, want Histogram[float64]", dur.Data)
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	// Validation failures never reach rendering, so they carry no duration.
	if count != 3 {
		t.Errorf("duration samples = %d, want 3", count)
	}
}

func TestObserveStoreRecordsOperations(t *testing.T) {
	reader, mp := newTestMeter()
	o, err := spellotel.NewObserver(mp.Meter("test"), nil)
	if err != nil {
		t.Fatalf("NewObserver: %v", err)
	}

	o.ObserveStore(store.Observation{Driver: store.DriverFile, Operation: store.OpLoad, Spells: 3, Skipped: 2, DurationMS: 5, Success: true})
	o.ObserveStore(store.Observation{Driver: store.DriverFile, Operation: store.OpSave, Spells: 3, DurationMS: 7, Success: true})
	o.ObserveStore(store.Observation{Driver: store.DriverSQLite, Operation: store.OpLoad, DurationMS: 1})

	rm := collectMetrics(t, reader)

	ops := findMetric(rm, "spellbook.store.operations")
	if ops == nil {
		t.Fatal("spellbook.store.operations not recorded")
	}
	if got := sumByAttr(t, ops, "operation", store.OpLoad); got != 2 {
		t.Errorf("load operations = %d, want 2", got)
	}
	if got := sumByAttr(t, ops, "driver", store.DriverSQLite); got != 1 {
		t.Errorf("sqlite operations = %d, want 1", got)
	}

	skipped := findMetric(rm, "spellbook.store.skipped")
	if skipped == nil {
		t.Fatal("spellbook.store.skipped not recorded")
	}
	if got := sumByAttr(t, skipped, "driver", store.DriverFile); got != 2 {
		t.Errorf("skipped = %d, want 2", got)
	}

	if findMetric(rm, "spellbook.store.duration") == nil {
		t.Fatal("spellbook.store.duration not recorded")
	}
}

func TestNilObserverIsSafe(t *testing.T) {
	var o *spellotel.Observer
	o.ObserveGenerate(bundle.Observation{Success: true})
	o.ObserveStore(store.Observation{Operation: store.OpClear})
}
