package aigen

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Breadcrumb is a diagnostic marker emitted on orchestrator state
// transitions. Breadcrumbs are purely observational and never affect control
// flow.
type Breadcrumb struct {
	Category string
	Message  string
	Data     map[string]interface{}
}

// Monitor receives breadcrumbs and recovered errors from the generation
// pipeline. It replaces the ambient error-tracking singleton of the original
// dashboard with an injected collaborator.
type Monitor interface {
	AddBreadcrumb(ctx context.Context, crumb Breadcrumb)
	CaptureError(ctx context.Context, err error, data map[string]interface{})
}

// NullMonitor discards everything.
type NullMonitor struct{}

// NewNullMonitor creates a NullMonitor.
func NewNullMonitor() *NullMonitor { return &NullMonitor{} }

func (m *NullMonitor) AddBreadcrumb(ctx context.Context, crumb Breadcrumb)                  {}
func (m *NullMonitor) CaptureError(ctx context.Context, err error, data map[string]interface{}) {}

// SpanMonitor records breadcrumbs as span events and errors on the active
// OpenTelemetry span, so generation attempts show up on whatever trace the
// caller is already inside.
type SpanMonitor struct{}

// NewSpanMonitor creates a SpanMonitor.
func NewSpanMonitor() *SpanMonitor { return &SpanMonitor{} }

// AddBreadcrumb implements Monitor.
func (m *SpanMonitor) AddBreadcrumb(ctx context.Context, crumb Breadcrumb) {
	span := trace.SpanFromContext(ctx)
	attrs := make([]attribute.KeyValue, 0, len(crumb.Data)+1)
	attrs = append(attrs, attribute.String("category", crumb.Category))
	for k, v := range crumb.Data {
		attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", v)))
	}
	span.AddEvent(crumb.Message, trace.WithAttributes(attrs...))
}

// CaptureError implements Monitor.
func (m *SpanMonitor) CaptureError(ctx context.Context, err error, data map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	attrs := make([]attribute.KeyValue, 0, len(data))
	for k, v := range data {
		attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", v)))
	}
	span.RecordError(err, trace.WithAttributes(attrs...))
}

var _ Monitor = (*NullMonitor)(nil)
var _ Monitor = (*SpanMonitor)(nil)
