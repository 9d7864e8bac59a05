package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/giygas/apples-stats/config"
	"github.com/giygas/apples-stats/exporter"
	"github.com/giygas/apples-stats/handlers"
	"github.com/giygas/apples-stats/health"
	"github.com/giygas/apples-stats/interfaces"
	"github.com/giygas/apples-stats/logging"
	"github.com/giygas/apples-stats/metrics"
	"github.com/giygas/apples-stats/scheduler"
	"github.com/giygas/apples-stats/server"
	"github.com/giygas/apples-stats/stats"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const (
	serviceName     = "apples-stats"
	shutdownTimeout = 30 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx)
	stop()
	if err != nil {
		logging.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

// run wires the application and blocks until ctx is cancelled or the server fails.
// Configuration errors are returned before any listener is bound.
func run(ctx context.Context) error {
	if err := godotenv.Load(); err != nil {
		logging.Debug("No .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		logging.Error("OpenTelemetry error", "error", err)
	}))

	logging.Info("Configuration loaded",
		"env", cfg.Env,
		"project_id", cfg.ProjectID,
		"export_interval", cfg.ExportInterval.String(),
		"admin_enabled", cfg.AdminEnabled)

	podName := config.PodName()
	if podName == "" {
		logging.Warn("POD_NAME is not set, observations will carry an empty pod_name")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("failed to register HTTP metrics: %w", err)
	}

	opts := []stats.Option{
		stats.WithResource(stats.NewResource(serviceName, podName)),
		stats.WithLogger(logging.Logger()),
	}
	if cfg.AdminEnabled {
		reader, err := exporter.NewPrometheus(registry)
		if err != nil {
			return err
		}
		opts = append(opts, stats.WithReader(reader))
	}

	gcp, err := exporter.NewGoogleCloud(exporter.GoogleCloudConfig{
		ProjectID:       cfg.ProjectID,
		CredentialsFile: cfg.CredentialsFile,
		MetricPrefix:    exporter.LegacyMetricPrefix,
	})
	if err != nil {
		return fmt.Errorf("failed to create the Google Cloud exporter: %w", err)
	}

	client, err := startStats(ctx, gcp, handlers.RequestServerTimeView(), opts...)
	if err != nil {
		return err
	}

	sched := scheduler.NewScheduler(client, cfg.ExportInterval)
	if err := sched.Start(); err != nil {
		return errors.Join(fmt.Errorf("failed to start scheduler: %w", err), client.Shutdown(context.Background()))
	}

	healthChecker := health.NewHealthChecker(client, sched, cfg.ExportInterval)
	srv := server.NewServer(cfg, client, healthChecker, httpMetrics, registry)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logging.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return errors.Join(runErr, shutdown(shutdownCtx, srv, sched, client))
}

// startStats builds a stats client that owns exp, registers view and starts
// it. On failure exp is shut down before returning.
func startStats(ctx context.Context, exp sdkmetric.Exporter, view *stats.View, opts ...stats.Option) (*stats.Client, error) {
	client := stats.NewClient(append(opts, stats.WithExporter(exp))...)

	if err := client.RegisterView(view); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to register view: %w", err), exp.Shutdown(ctx))
	}
	if err := client.Start(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to start stats client: %w", err), exp.Shutdown(ctx))
	}
	return client, nil
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdown stops accepting requests, stops the export job, then drains the
// last batch to Cloud Monitoring.
func shutdown(ctx context.Context, srv shutdowner, sched interfaces.Scheduler, client shutdowner) error {
	var errs []error

	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}

	sched.Stop()

	if err := client.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("metrics drain: %w", err))
	}

	if len(errs) == 0 {
		logging.Info("Shutdown complete")
	}
	return errors.Join(errs...)
}
