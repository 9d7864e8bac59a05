// Package interfaces defines the contracts between the HTTP layer, the
// export scheduler and the stats client, so each side can be tested with a
// stand-in for the other.
package interfaces

import (
	"context"
	"time"

	"github.com/giygas/apples-stats/stats"
)

// Recorder accepts observations. Record must not block on export.
type Recorder interface {
	Record(ctx context.Context, m *stats.Measure, value int64, tags stats.Tags) error
}

// Flusher exports buffered observations on demand.
type Flusher interface {
	Flush(ctx context.Context) error
}

// ExportStatusProvider reports the export history used by health checks.
type ExportStatusProvider interface {
	Status() stats.ExportStatus
}

// Scheduler defines the contract for the periodic export job.
type Scheduler interface {
	// Lifecycle management
	Start() error
	Stop()

	// NextRun returns the next scheduled flush, or the zero time when stopped
	NextRun() time.Time
}

// HealthChecker defines the contract for health check functionality.
type HealthChecker interface {
	// HealthCheck returns the status label, response details and HTTP status code
	HealthCheck() (status string, details map[string]any, httpStatus int)
}
