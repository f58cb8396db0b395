package observability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/persist/errors"
)

func useRecorder(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return exporter
}

func attr(kvs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range kvs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("test-service")

	if cfg.ServiceName != "test-service" {
		t.Errorf("expected ServiceName 'test-service', got %s", cfg.ServiceName)
	}
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("expected Endpoint 'localhost:4318', got %s", cfg.Endpoint)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected SampleRate 1.0, got %f", cfg.SampleRate)
	}
	if !cfg.Insecure {
		t.Error("expected Insecure to be true")
	}
	if cfg.Interval != 15*time.Second {
		t.Errorf("expected Interval 15s, got %v", cfg.Interval)
	}
	if cfg.ServiceVersion != "1.0.0" || cfg.Environment != "development" {
		t.Errorf("unexpected version/environment %q/%q", cfg.ServiceVersion, cfg.Environment)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled zero value", Config{}, false},
		{"enabled defaults", func() Config { c := DefaultConfig("svc"); c.Enabled = true; return c }(), false},
		{"enabled without name", Config{Enabled: true, Endpoint: "localhost:4318"}, true},
		{"bad sample rate", Config{SampleRate: 2}, true},
		{"bad endpoint", Config{Enabled: true, ServiceName: "svc", Endpoint: "not an endpoint"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.5, "TraceIDRatioBased{0.5}"},
	}
	for _, tc := range tests {
		if got := sampler(tc.rate).Description(); got != tc.want {
			t.Errorf("sampler(%v) = %s, want %s", tc.rate, got, tc.want)
		}
	}
}

func TestNewResource(t *testing.T) {
	res, err := newResource(DefaultConfig("svc"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := attr(res.Attributes(), "service.name"); !ok || v.AsString() != "svc" {
		t.Errorf("expected service.name=svc, got %v", v)
	}
}

func TestNewMetrics(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	metrics, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}
	if metrics == nil {
		t.Fatal("expected non-nil metrics")
	}

	ctx := context.Background()
	metrics.RecordBatch(ctx, "save", "ok", 3, 10*time.Millisecond)
	metrics.RecordError(ctx, "validation", "mapper")
}

func TestMetrics_Recorded(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	metrics.RecordBatch(ctx, "save", "ok", 2, time.Millisecond)
	metrics.RecordBatch(ctx, "save", "ok", 3, time.Millisecond)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatal(err)
	}

	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[m.Name] += dp.Value
				}
			}
		}
	}
	if totals["batch.total"] != 2 {
		t.Errorf("expected 2 batches, got %d", totals["batch.total"])
	}
	if totals["entities.total"] != 5 {
		t.Errorf("expected 5 entities, got %d", totals["entities.total"])
	}
}

func TestOperation_Span(t *testing.T) {
	exporter := useRecorder(t)

	ctx, op := StartOperation(context.Background(), SpanMapperSave, "save", "mapper", true, nil)
	op.Add(2)
	op.Add(1)
	op.End(ctx, nil)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name != SpanMapperSave {
		t.Errorf("expected span %s, got %s", SpanMapperSave, s.Name)
	}
	if v, ok := attr(s.Attributes, AttrBatchSize); !ok || v.AsInt64() != 3 {
		t.Errorf("expected batch.size=3, got %v", v)
	}
	if s.Status.Code == codes.Error {
		t.Error("successful operation must not mark the span failed")
	}
}

func TestOperation_Error(t *testing.T) {
	exporter := useRecorder(t)
	metrics, _ := NewMetrics(noop.NewMeterProvider().Meter("test"))

	ctx, op := StartOperation(context.Background(), SpanMapperDelete, "delete", "mapper", true, metrics)
	op.End(ctx, errors.PreconditionFailed("no persist stub"))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("expected error status, got %v", spans[0].Status.Code)
	}
	if v, _ := attr(spans[0].Attributes, AttrErrorCode); v.AsString() != string(errors.ErrCodePreconditionFailed) {
		t.Errorf("expected error.code attribute, got %v", v)
	}
	if errorType(fmt.Errorf("plain")) != "external" {
		t.Error("non-AppError should be reported as external")
	}
}

func TestOperation_NoTracing(t *testing.T) {
	exporter := useRecorder(t)

	ctx, op := StartOperation(context.Background(), SpanMapperSave, "save", "mapper", false, nil)
	op.Add(1)
	op.End(ctx, nil)

	if n := len(exporter.GetSpans()); n != 0 {
		t.Errorf("expected no spans with tracing off, got %d", n)
	}
	if op.Size() != 1 {
		t.Errorf("expected size 1, got %d", op.Size())
	}
}

func TestNewServiceHealth(t *testing.T) {
	sh := NewServiceHealth("my-service", "1.0.0")

	if sh.Service != "my-service" {
		t.Errorf("expected Service 'my-service', got %s", sh.Service)
	}
	if sh.Version != "1.0.0" {
		t.Errorf("expected Version '1.0.0', got %s", sh.Version)
	}
	if sh.Status != HealthStatusUp {
		t.Errorf("expected Status 'up', got %s", sh.Status)
	}
}

func TestServiceHealth_AddComponent(t *testing.T) {
	sh := NewServiceHealth("my-service", "1.0.0")

	sh.AddComponent(Health{Name: "memory", Status: HealthStatusUp})
	if sh.Status != HealthStatusUp {
		t.Errorf("expected status 'up' after healthy component, got %s", sh.Status)
	}

	sh.AddComponent(Health{Name: "redis", Status: HealthStatusDegraded, Message: "high latency"})
	if sh.Status != HealthStatusDegraded {
		t.Errorf("expected status 'degraded', got %s", sh.Status)
	}

	sh.AddComponent(Health{Name: "sqlite", Status: HealthStatusDown, Message: "database is locked"})
	if sh.Status != HealthStatusDown {
		t.Errorf("expected status 'down', got %s", sh.Status)
	}

	sh.AddComponent(Health{Name: "redis", Status: HealthStatusDegraded})
	if sh.Status != HealthStatusDown {
		t.Errorf("expected 'down' not overridden by 'degraded', got %s", sh.Status)
	}
}

type fixedChecker Health

func (f fixedChecker) CheckHealth(ctx context.Context) Health {
	if _, ok := ctx.Deadline(); !ok {
		return Health{Name: f.Name, Status: HealthStatusDown, Message: "no deadline"}
	}
	return Health(f)
}

func TestServiceHealth_Check(t *testing.T) {
	sh := NewServiceHealth("svc", "1.0.0").Check(context.Background(), time.Second,
		fixedChecker{Name: "a", Status: HealthStatusUp},
		fixedChecker{Name: "b", Status: HealthStatusDegraded},
	)
	if len(sh.Components) != 2 {
		t.Fatalf("expected 2 components, got %d", len(sh.Components))
	}
	if sh.Status != HealthStatusDegraded {
		t.Errorf("expected degraded, got %s", sh.Status)
	}
}

func TestSetSpanAttribute(t *testing.T) {
	exporter := useRecorder(t)

	ctx, span := StartSpan(context.Background(), "test-attrs")
	SetSpanAttribute(ctx, "string-key", "value")
	SetSpanAttribute(ctx, "int-key", 42)
	SetSpanAttribute(ctx, "int64-key", int64(100))
	SetSpanAttribute(ctx, "float-key", 3.14)
	SetSpanAttribute(ctx, "bool-key", true)
	SetSpanAttribute(ctx, "string-slice-key", []string{"a", "b"})
	SetSpanAttribute(ctx, "unsupported-key", struct{}{})
	span.End()

	got := exporter.GetSpans()[0].Attributes
	if len(got) != 6 {
		t.Errorf("expected 6 attributes, got %d", len(got))
	}
	if _, ok := attr(got, "unsupported-key"); ok {
		t.Error("unsupported types must be ignored")
	}
}

func TestSpanHelpersWithoutSpan(t *testing.T) {
	ctx := context.Background()
	SetSpanAttribute(ctx, "key", "value")
	SetSpanError(ctx, fmt.Errorf("no span error"))
	if SpanFromContext(ctx) == nil {
		t.Fatal("expected non-nil span (noop)")
	}
}
