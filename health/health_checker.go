// Package health provides health checking functionality for the metric export.
package health

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/giygas/apples-stats/interfaces"
)

// Compile-time check to ensure HealthCheckerImpl implements HealthChecker interface
var _ interfaces.HealthChecker = (*HealthCheckerImpl)(nil)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	exports   interfaces.ExportStatusProvider
	scheduler interfaces.Scheduler
	interval  time.Duration
	startedAt time.Time
	now       func() time.Time
}

// NewHealthChecker creates a new health checker with injected dependencies
func NewHealthChecker(exports interfaces.ExportStatusProvider, scheduler interfaces.Scheduler, interval time.Duration) *HealthCheckerImpl {
	return &HealthCheckerImpl{
		exports:   exports,
		scheduler: scheduler,
		interval:  interval,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// HealthCheck reports whether metrics are leaving the process.
// Used by the admin /health endpoint.
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	st := h.exports.Status()
	now := h.now()
	uptime := now.Sub(h.startedAt)

	switch {
	case st.LastAttempt.IsZero() && uptime < 2*h.interval:
		status = "starting"
		httpStatus = http.StatusOK

	case st.LastAttempt.IsZero():
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case st.LastError != nil:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case now.Sub(st.LastSuccess) > 3*h.interval:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	data = map[string]any{
		"uptime":          formatUptimeHuman(uptime),
		"export_interval": h.interval.String(),
		"exports":         st.Exports,
		"export_failures": st.Failures,
	}
	if !st.LastAttempt.IsZero() {
		data["last_export_attempt"] = st.LastAttempt.Format(time.RFC3339)
	}
	if !st.LastSuccess.IsZero() {
		data["last_export_success"] = st.LastSuccess.Format(time.RFC3339)
	}
	if st.LastError != nil {
		data["last_export_error"] = st.LastError.Error()
	}
	if h.scheduler != nil {
		if next := h.scheduler.NextRun(); !next.IsZero() {
			data["next_export"] = next.Format(time.RFC3339)
		}
	}

	return status, data, httpStatus
}

// formatUptimeHuman formats duration into a human-readable string
func formatUptimeHuman(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string

	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}
