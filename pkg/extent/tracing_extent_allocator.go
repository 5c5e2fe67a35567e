package extent

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type tracingExtentAllocator struct {
	base       ExtentAllocator
	tracer     trace.Tracer
	deviceName string
}

// NewTracingExtentAllocator is a decorator for ExtentAllocator that
// creates an OpenTelemetry trace span for every allocation and release.
// Time spent waiting for exclusive access to the device is included in
// the span.
func NewTracingExtentAllocator(base ExtentAllocator, tracerProvider trace.TracerProvider, deviceName string) ExtentAllocator {
	return &tracingExtentAllocator{
		base:       base,
		tracer:     tracerProvider.Tracer("github.com/buildbarn/bb-cxl-memory/pkg/extent"),
		deviceName: deviceName,
	}
}

func endSpanWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	span.End()
}

func (a *tracingExtentAllocator) Allocate(ctx context.Context, owner OwnerID, requestedBlocks uint64) (uint64, error) {
	ctxWithTracing, span := a.tracer.Start(ctx, "ExtentAllocator.Allocate", trace.WithAttributes(
		attribute.String("device", a.deviceName),
		attribute.String("owner", string(owner)),
		attribute.Int64("requested_blocks", int64(requestedBlocks)),
	))
	offset, err := a.base.Allocate(ctxWithTracing, owner, requestedBlocks)
	if err == nil {
		span.SetAttributes(attribute.Int64("offset_blocks", int64(offset)))
	}
	endSpanWithError(span, err)
	return offset, err
}

func (a *tracingExtentAllocator) Release(ctx context.Context, owner OwnerID) (int, error) {
	ctxWithTracing, span := a.tracer.Start(ctx, "ExtentAllocator.Release", trace.WithAttributes(
		attribute.String("device", a.deviceName),
		attribute.String("owner", string(owner)),
	))
	released, err := a.base.Release(ctxWithTracing, owner)
	if err == nil {
		span.SetAttributes(attribute.Int("released_extents", released))
	}
	endSpanWithError(span, err)
	return released, err
}

func (a *tracingExtentAllocator) GetExtents(ctx context.Context) ([]Extent, error) {
	ctxWithTracing, span := a.tracer.Start(ctx, "ExtentAllocator.GetExtents", trace.WithAttributes(
		attribute.String("device", a.deviceName),
	))
	extents, err := a.base.GetExtents(ctxWithTracing)
	endSpanWithError(span, err)
	return extents, err
}
