// Package observability provides OpenTelemetry tracing and metrics.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, cfg, log)
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, "my.operation")
//	defer span.End()
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, cfg, log)
//	defer mp.Shutdown(ctx)
//	metrics, err := observability.NewMetrics(observability.Meter("persist"))
//
// The mapper wraps every save and delete in an Operation, which opens a
// span, counts the batch and records batch.total, batch.duration,
// entities.total and error.total.
package observability
