package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/persist/errors"
)

// Operation tracks one traced, measured unit of work such as a save batch.
type Operation struct {
	Name      string
	Component string
	StartTime time.Time
	Metrics   *Metrics

	span trace.Span
	size int
}

// StartOperation opens a span called spanName when tracing is set and
// starts the clock. metrics may be nil.
func StartOperation(ctx context.Context, spanName, operation, component string, tracing bool, metrics *Metrics) (context.Context, *Operation) {
	op := &Operation{
		Name:      operation,
		Component: component,
		StartTime: time.Now(),
		Metrics:   metrics,
	}
	if tracing {
		ctx, op.span = StartSpan(ctx, spanName, trace.WithAttributes(
			attribute.String(AttrOperation, operation),
		))
	}
	return ctx, op
}

// Add counts n more items in the operation.
func (op *Operation) Add(n int) { op.size += n }

// Size returns the number of items counted so far.
func (op *Operation) Size() int { return op.size }

// Duration returns the elapsed time since the operation started.
func (op *Operation) Duration() time.Duration {
	return time.Since(op.StartTime)
}

// End closes the span and records metrics. err is the operation's result.
func (op *Operation) End(ctx context.Context, err error) {
	duration := op.Duration()
	status := "ok"
	if err != nil {
		status = "error"
	}

	if op.span != nil {
		op.span.SetAttributes(
			attribute.Int(AttrBatchSize, op.size),
			attribute.String(AttrStatus, status),
			attribute.Int64(AttrDurationMs, duration.Milliseconds()),
		)
		if err != nil {
			if appErr, ok := errors.AsAppError(err); ok {
				op.span.SetAttributes(attribute.String(AttrErrorCode, string(appErr.Code)))
			}
			SetSpanError(trace.ContextWithSpan(ctx, op.span), err)
		}
		op.span.End()
	}

	if op.Metrics != nil {
		op.Metrics.RecordBatch(ctx, op.Name, status, op.size, duration)
		if err != nil {
			op.Metrics.RecordError(ctx, errorType(err), op.Component)
		}
	}
}

func errorType(err error) string {
	if appErr, ok := errors.AsAppError(err); ok {
		return string(appErr.Code)
	}
	return "external"
}
