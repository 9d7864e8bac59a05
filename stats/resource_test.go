package stats

import (
	"testing"

	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestNewResource(t *testing.T) {
	res := NewResource("apples-stats", "apples-7f9c")

	if v, ok := res.Set().Value(semconv.ServiceNameKey); !ok || v.AsString() != "apples-stats" {
		t.Errorf("service.name = %q (present %v), want apples-stats", v.AsString(), ok)
	}
	if v, ok := res.Set().Value(semconv.ServiceInstanceIDKey); !ok || v.AsString() != "apples-7f9c" {
		t.Errorf("service.instance.id = %q (present %v), want apples-7f9c", v.AsString(), ok)
	}
	if res.SchemaURL() != semconv.SchemaURL {
		t.Errorf("schema URL = %q, want %q", res.SchemaURL(), semconv.SchemaURL)
	}
}

func TestNewResourceOmitsEmptyInstance(t *testing.T) {
	res := NewResource("apples-stats", "")

	if _, ok := res.Set().Value(semconv.ServiceInstanceIDKey); ok {
		t.Error("service.instance.id should be left out when the instance is empty")
	}
	if res.Len() != 1 {
		t.Errorf("expected only service.name, got %d attributes", res.Len())
	}
}
