// Package exporter builds the metric exporters the stats client sends to:
// Google Cloud Monitoring for push, and a Prometheus registry for pull.
package exporter

import (
	"errors"
	"fmt"
	"os"

	mexporter "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// LegacyMetricPrefix is the metric type prefix OpenCensus used for custom
// metrics.
const LegacyMetricPrefix = "custom.googleapis.com/opencensus/"

var (
	ErrMissingProjectID   = errors.New("google cloud project ID is required")
	ErrMissingCredentials = errors.New("google cloud credentials file is required")
)

// GoogleCloudConfig binds the exporter to a project and a key file.
type GoogleCloudConfig struct {
	ProjectID string
	// CredentialsFile is the service account key. The client library reads
	// it through GOOGLE_APPLICATION_CREDENTIALS, so it is only stat'ed here.
	CredentialsFile string
	// MetricPrefix overrides the metric type prefix. Empty keeps the
	// exporter default (workload.googleapis.com/).
	MetricPrefix string
}

// NewGoogleCloud creates a Cloud Monitoring exporter for cfg.ProjectID.
func NewGoogleCloud(cfg GoogleCloudConfig) (sdkmetric.Exporter, error) {
	if cfg.ProjectID == "" {
		return nil, ErrMissingProjectID
	}
	if cfg.CredentialsFile == "" {
		return nil, ErrMissingCredentials
	}
	if _, err := os.Stat(cfg.CredentialsFile); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingCredentials, err)
	}

	opts := []mexporter.Option{mexporter.WithProjectID(cfg.ProjectID)}
	if cfg.MetricPrefix != "" {
		prefix := cfg.MetricPrefix
		opts = append(opts, mexporter.WithMetricDescriptorTypeFormatter(func(m metricdata.Metrics) string {
			return prefix + m.Name
		}))
	}

	exp, err := mexporter.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create cloud monitoring exporter: %w", err)
	}
	return exp, nil
}
