package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
)

var (
	ErrViewConflict = errors.New("a different view is already registered under this name")
	ErrStarted      = errors.New("stats client already started")
	ErrNotStarted   = errors.New("stats client not started")
	ErrClosed       = errors.New("stats client closed")
	ErrNoView       = errors.New("no view registered for measure")
	ErrTagMismatch  = errors.New("tags do not match the view's tag keys")
)

const defaultMeterName = "github.com/giygas/apples-stats"

// ExportStatus summarises the export history of a Client.
type ExportStatus struct {
	LastAttempt time.Time
	LastSuccess time.Time
	LastError   error
	Exports     uint64 // batches handed to the exporter
	Failures    uint64
}

// Client owns the measures, views and meter provider of one process.
// Record is safe for concurrent use with itself and with Flush.
type Client struct {
	mu          sync.RWMutex
	views       map[string]*View
	viewOrder   []string
	instruments map[*Measure]metric.Int64Histogram
	provider    *sdkmetric.MeterProvider
	reader      *sdkmetric.ManualReader
	started     bool
	closing     bool // Shutdown in progress; Record and Flush still work
	closed      bool

	flushMu sync.Mutex
	status  ExportStatus

	exporter  sdkmetric.Exporter
	readers   []sdkmetric.Reader
	resource  *resource.Resource
	meterName string
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithExporter sets the push exporter that Flush sends batches to.
// Without one, Flush only collects.
func WithExporter(exp sdkmetric.Exporter) Option {
	return func(c *Client) { c.exporter = exp }
}

// WithReader adds a pull reader, such as a Prometheus bridge, to the provider.
func WithReader(r sdkmetric.Reader) Option {
	return func(c *Client) { c.readers = append(c.readers, r) }
}

func WithResource(res *resource.Resource) Option {
	return func(c *Client) { c.resource = res }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithMeterName(name string) Option {
	return func(c *Client) { c.meterName = name }
}

// NewClient creates an unstarted client
func NewClient(opts ...Option) *Client {
	c := &Client{
		views:       make(map[string]*View),
		instruments: make(map[*Measure]metric.Int64Histogram),
		meterName:   defaultMeterName,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterView adds v to the client. Registering a view equal to one already
// registered is a no-op, including after Start.
func (c *Client) RegisterView(v *View) error {
	if v == nil {
		return fmt.Errorf("nil view")
	}
	if err := v.validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closing || c.closed {
		return ErrClosed
	}
	if existing, ok := c.views[v.Name]; ok {
		if existing.equal(v) {
			return nil
		}
		return fmt.Errorf("register view %q: %w", v.Name, ErrViewConflict)
	}
	if c.started {
		return fmt.Errorf("register view %q: %w", v.Name, ErrStarted)
	}

	c.views[v.Name] = v.clone()
	c.viewOrder = append(c.viewOrder, v.Name)
	return nil
}

// View returns a copy of the view registered under name.
func (c *Client) View(name string) (*View, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.views[name]
	if !ok {
		return nil, false
	}
	return v.clone(), true
}

// Start builds the meter provider from the registered views and creates one
// histogram instrument per measure.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closing || c.closed {
		return ErrClosed
	}
	if c.started {
		return ErrStarted
	}

	var readerOpts []sdkmetric.ManualReaderOption
	if c.exporter != nil {
		readerOpts = append(readerOpts,
			sdkmetric.WithTemporalitySelector(c.exporter.Temporality),
			sdkmetric.WithAggregationSelector(c.exporter.Aggregation),
		)
	}
	c.reader = sdkmetric.NewManualReader(readerOpts...)

	providerOpts := []sdkmetric.Option{sdkmetric.WithReader(c.reader)}
	for _, r := range c.readers {
		providerOpts = append(providerOpts, sdkmetric.WithReader(r))
	}
	if c.resource != nil {
		providerOpts = append(providerOpts, sdkmetric.WithResource(c.resource))
	}
	for _, name := range c.viewOrder {
		providerOpts = append(providerOpts, sdkmetric.WithView(c.views[name].sdkView()))
	}
	c.provider = sdkmetric.NewMeterProvider(providerOpts...)

	meter := c.provider.Meter(c.meterName)
	for _, name := range c.viewOrder {
		m := c.views[name].Measure
		if _, ok := c.instruments[m]; ok {
			continue
		}
		h, err := meter.Int64Histogram(m.name,
			metric.WithDescription(m.description),
			metric.WithUnit(string(m.unit)),
		)
		if err != nil {
			_ = c.provider.Shutdown(ctx)
			return fmt.Errorf("create instrument %q: %w", m.name, err)
		}
		c.instruments[m] = h
	}

	c.started = true
	c.logger.Info("Stats client started", "views", len(c.viewOrder), "readers", 1+len(c.readers))
	return nil
}

// Record submits one observation of m. The tags must carry exactly the keys
// declared by every view over m, otherwise the observation is dropped.
func (c *Client) Record(ctx context.Context, m *Measure, value int64, tags Tags) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClosed
	}
	if !c.started {
		return ErrNotStarted
	}

	h, ok := c.instruments[m]
	if !ok {
		return fmt.Errorf("record %q: %w", m.name, ErrNoView)
	}

	got := tags.keys()
	for _, name := range c.viewOrder {
		v := c.views[name]
		if v.Measure != m {
			continue
		}
		if want := v.tagKeyNames(); !slices.Equal(got, want) {
			return fmt.Errorf("record %q into view %q: got keys %v, want %v: %w", m.name, v.Name, got, want, ErrTagMismatch)
		}
	}

	attrs := make([]attribute.KeyValue, 0, len(tags))
	for k, val := range tags {
		attrs = append(attrs, attribute.String(k.name, val))
	}
	h.Record(ctx, value, metric.WithAttributes(attrs...))
	return nil
}

// Flush collects everything recorded so far and sends it to the exporter.
// Concurrent calls are serialized.
func (c *Client) Flush(ctx context.Context) error {
	c.mu.RLock()
	closed, started := c.closed, c.started
	c.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if !started {
		return ErrNotStarted
	}
	return c.flush(ctx)
}

func (c *Client) flush(ctx context.Context) error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	var rm metricdata.ResourceMetrics
	if err := c.reader.Collect(ctx, &rm); err != nil {
		return c.recordExport(fmt.Errorf("collect metrics: %w", err), false)
	}
	// Nothing to send is still a successful attempt
	if c.exporter == nil || len(rm.ScopeMetrics) == 0 {
		return c.recordExport(nil, false)
	}
	if err := c.exporter.Export(ctx, &rm); err != nil {
		return c.recordExport(fmt.Errorf("export metrics: %w", err), false)
	}
	return c.recordExport(nil, true)
}

// recordExport updates the export status; caller must hold flushMu
func (c *Client) recordExport(err error, sent bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.status.LastAttempt = now
	c.status.LastError = err
	if err != nil {
		c.status.Failures++
		return err
	}
	c.status.LastSuccess = now
	if sent {
		c.status.Exports++
	}
	return nil
}

// Status returns a snapshot of the export history.
func (c *Client) Status() ExportStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Shutdown exports whatever is still buffered and releases the provider and
// the exporter. The client cannot be used afterwards. Only the first of
// several concurrent calls does the work; the others return ErrClosed.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.closing || c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.closing = true
	started := c.started
	c.mu.Unlock()

	var errs []error
	if started {
		if err := c.flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("final flush: %w", err))
		}
	}

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	if started {
		if err := c.provider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
		}
	}
	if c.exporter != nil {
		if err := c.exporter.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown exporter: %w", err))
		}
	}

	c.logger.Info("Stats client stopped")
	return errors.Join(errs...)
}
