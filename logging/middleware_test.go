package logging

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func newTestHandler(logOutput *strings.Builder, skipPaths ...string) http.Handler {
	logger := slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("apples"))
	})

	return LoggingMiddleware(logger, skipPaths...)(next)
}

func TestLoggingMiddlewareLogsRequest(t *testing.T) {
	var logOutput strings.Builder
	handler := newTestHandler(&logOutput)

	req := httptest.NewRequest(http.MethodGet, "/apples", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "test-789"))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if rr.Body.String() != "apples" {
		t.Errorf("middleware altered the body: %q", rr.Body.String())
	}

	logs := logOutput.String()
	for _, want := range []string{"HTTP request", "path=/apples", "request_id=test-789", "status_code=200", "bytes_written=6"} {
		if !strings.Contains(logs, want) {
			t.Errorf("log should contain %q, got: %s", want, logs)
		}
	}
	if strings.Contains(logs, "query=") {
		t.Errorf("log should not contain 'query=' field when empty, got: %s", logs)
	}
}

func TestLoggingMiddlewareSkipsListedPaths(t *testing.T) {
	var logOutput strings.Builder
	handler := newTestHandler(&logOutput, "/health", "/metrics")

	for _, path := range []string{"/health", "/metrics"} {
		t.Run(path, func(t *testing.T) {
			logOutput.Reset()
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))

			if rr.Code != http.StatusOK {
				t.Errorf("expected status 200, got %d", rr.Code)
			}
			if logOutput.Len() != 0 {
				t.Errorf("expected no logs for %s, got: %s", path, logOutput.String())
			}
		})
	}
}

func TestLoggingMiddlewareCapturesStatusAndQuery(t *testing.T) {
	var logOutput strings.Builder
	handler := newTestHandler(&logOutput)

	// Non-string request ID falls back to "unknown"
	req := httptest.NewRequest(http.MethodGet, "/missing?foo=bar", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, 12345))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	logs := logOutput.String()
	for _, want := range []string{"status_code=404", `query="foo=bar"`, "request_id=unknown"} {
		if !strings.Contains(logs, want) {
			t.Errorf("log should contain %q, got: %s", want, logs)
		}
	}
}
