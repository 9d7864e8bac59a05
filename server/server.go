// Package server provides HTTP server management and lifecycle handling.
// The public listener serves the apples route; the admin listener serves
// Prometheus metrics, health and, in development, pprof.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/giygas/apples-stats/config"
	"github.com/giygas/apples-stats/handlers"
	"github.com/giygas/apples-stats/interfaces"
	"github.com/giygas/apples-stats/logging"
	"github.com/giygas/apples-stats/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server represents the public and admin HTTP servers
type Server struct {
	server      *http.Server
	router      chi.Router
	admin       *http.Server
	adminRouter chi.Router
	config      *config.Config
	recorder    interfaces.Recorder
	health      interfaces.HealthChecker
	metrics     *metrics.HTTPMetrics
	gatherer    prometheus.Gatherer
	limiter     *RateLimiter
}

// NewServer creates a new server instance
func NewServer(
	cfg *config.Config,
	recorder interfaces.Recorder,
	healthChecker interfaces.HealthChecker,
	httpMetrics *metrics.HTTPMetrics,
	gatherer prometheus.Gatherer,
) *Server {
	router := chi.NewRouter()

	s := &Server{
		server: &http.Server{
			Handler:      router,
			Addr:         cfg.Address + ":" + cfg.Port,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		router:   router,
		config:   cfg,
		recorder: recorder,
		health:   healthChecker,
		metrics:  httpMetrics,
		gatherer: gatherer,
	}

	if cfg.RateLimitRPS > 0 {
		var buckets prometheus.Gauge
		if httpMetrics != nil {
			buckets = httpMetrics.RateLimiterBuckets
		}
		s.limiter = NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, buckets)
	}

	s.setupMiddleware()
	s.setupRoutes()

	if cfg.AdminEnabled {
		s.adminRouter = chi.NewRouter()
		s.admin = &http.Server{
			Handler:      s.adminRouter,
			Addr:         cfg.Address + ":" + cfg.AdminPort,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		s.setupAdminRoutes()
	}

	return s
}

// setupMiddleware configures all middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(logging.LoggingMiddleware(logging.Logger()))
	s.router.Use(middleware.Recoverer)
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware)
	}
	if s.limiter != nil {
		s.router.Use(s.limiter.Middleware)
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/apples", handlers.Apples(s.recorder, handlers.RandomDelay, config.PodName))
}

// setupAdminRoutes configures the operator endpoints
func (s *Server) setupAdminRoutes() {
	s.adminRouter.Use(middleware.Recoverer)

	if s.gatherer != nil {
		s.adminRouter.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	s.adminRouter.Get("/health", s.healthHandler)

	if s.config.Env == config.EnvDevelopment {
		s.adminRouter.Mount("/debug", middleware.Profiler())
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		RespondWithJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
		return
	}

	status, details, httpStatus := s.health.HealthCheck()
	RespondWithJSON(w, httpStatus, map[string]any{
		"status": status,
		"data":   details,
	})
}

// Handler returns the public router
func (s *Server) Handler() http.Handler {
	return s.router
}

// AdminHandler returns the admin router, or nil when the admin listener is disabled
func (s *Server) AdminHandler() http.Handler {
	if s.adminRouter == nil {
		return nil
	}
	return s.adminRouter
}

// Start binds both listeners, serves the admin one in the background and
// blocks on the public one. A bind failure on either is returned before
// anything is served. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	publicLn, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}

	if s.admin != nil {
		adminLn, err := net.Listen("tcp", s.admin.Addr)
		if err != nil {
			publicLn.Close()
			return fmt.Errorf("failed to listen on admin address %s: %w", s.admin.Addr, err)
		}

		go func() {
			logging.Info(fmt.Sprintf("Starting admin server at: %s", s.admin.Addr))
			if err := s.admin.Serve(adminLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Admin server failed", "error", err)
			}
		}()
	}

	logging.Info(fmt.Sprintf("Starting server at: %s:%s", s.config.Address, s.config.Port))
	return s.server.Serve(publicLn)
}

// Shutdown gracefully shuts down both listeners
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	if s.limiter != nil {
		s.limiter.Stop()
	}

	var errs []error
	if err := s.server.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
		if err := s.server.Close(); err != nil {
			logging.Error("Server close error", "error", err)
			errs = append(errs, err)
		}
	}

	if s.admin != nil {
		if err := s.admin.Shutdown(ctx); err != nil {
			logging.Error("Admin server forced to shutdown", "error", err)
			if err := s.admin.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	logging.Info("Server shutdown complete")
	return errors.Join(errs...)
}

// RespondWithJSON writes a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logging.Error("Failed to encode JSON response", "error", err)
		}
	}
}
