package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/persist/logger"
)

// InitMeter installs a global meter provider exporting over OTLP/HTTP.
// The returned provider must be shut down on exit.
func InitMeter(ctx context.Context, cfg Config, log *logger.Logger) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	log.Info("meter initialized", logger.Fields(
		"endpoint", cfg.Endpoint,
		"interval", cfg.Interval.String(),
	))
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the instruments recorded by the mapper and storage layers.
type Metrics struct {
	batchTotal    metric.Int64Counter
	batchDuration metric.Float64Histogram
	entitiesTotal metric.Int64Counter
	errorTotal    metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	batchTotal, err := meter.Int64Counter("batch.total",
		metric.WithDescription("Total number of save/delete batches"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating batch.total counter: %w", err)
	}

	batchDuration, err := meter.Float64Histogram("batch.duration",
		metric.WithDescription("Duration of save/delete batches in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating batch.duration histogram: %w", err)
	}

	entitiesTotal, err := meter.Int64Counter("entities.total",
		metric.WithDescription("Total number of entities passed through save/delete"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating entities.total counter: %w", err)
	}

	errorTotal, err := meter.Int64Counter("error.total",
		metric.WithDescription("Total errors by type and component"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating error.total counter: %w", err)
	}

	return &Metrics{
		batchTotal:    batchTotal,
		batchDuration: batchDuration,
		entitiesTotal: entitiesTotal,
		errorTotal:    errorTotal,
	}, nil
}

// RecordBatch records one completed batch of size entities.
func (m *Metrics) RecordBatch(ctx context.Context, operation, status string, size int, duration time.Duration) {
	op := attribute.String("operation", operation)
	m.batchTotal.Add(ctx, 1, metric.WithAttributes(op, attribute.String("status", status)))
	m.batchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(op))
	m.entitiesTotal.Add(ctx, int64(size), metric.WithAttributes(op))
}

// RecordError records an error by type and component.
func (m *Metrics) RecordError(ctx context.Context, errType, component string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", errType),
		attribute.String("component", component),
	))
}
