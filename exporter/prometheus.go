package exporter

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// NewPrometheus returns a pull reader that exposes the stats client's views
// through reg, next to the HTTP collectors on the admin /metrics endpoint.
func NewPrometheus(reg prometheus.Registerer) (sdkmetric.Reader, error) {
	exp, err := otelprom.New(
		otelprom.WithRegisterer(reg),
		otelprom.WithoutScopeInfo(),
	)
	if err != nil {
		return nil, fmt.Errorf("create prometheus reader: %w", err)
	}
	return exp, nil
}
