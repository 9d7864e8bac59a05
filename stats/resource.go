package stats

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// NewResource describes the process that produces the metrics.
// An empty instance is left out.
func NewResource(service, instance string) *resource.Resource {
	attrs := []attribute.KeyValue{semconv.ServiceName(service)}
	if instance != "" {
		attrs = append(attrs, semconv.ServiceInstanceID(instance))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}
