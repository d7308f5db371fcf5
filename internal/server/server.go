// Package server provides the fieldcast HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/fieldcast/fieldcast/internal/httpapi"
	"github.com/fieldcast/fieldcast/internal/version"
	"github.com/fieldcast/fieldcast/pkg/plugin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// PluginSource provides the server with plugin metadata, routes and health.
// Defined consumer-side so the server does not import the registry.
type PluginSource interface {
	AllRoutes() map[string][]plugin.Route
	All() []plugin.Plugin
	Health(ctx context.Context) map[string]plugin.HealthStatus
}

// ReadinessChecker returns nil when the server can serve traffic.
type ReadinessChecker func(ctx context.Context) error

// Server is the fieldcast HTTP server.
type Server struct {
	httpServer *http.Server
	plugins    PluginSource
	logger     *zap.Logger
	mux        *http.ServeMux
	ready      ReadinessChecker
}

// New builds the server, mounting core and plugin routes behind the
// middleware chain.
func New(cfg Config, plugins PluginSource, logger *zap.Logger, ready ReadinessChecker) *Server {
	mux := http.NewServeMux()
	s := &Server{
		plugins: plugins,
		logger:  logger,
		mux:     mux,
		ready:   ready,
	}
	s.registerRoutes()
	s.mountPluginRoutes()

	rps, burst := cfg.RateLimit, cfg.RateBurst
	if rps <= 0 {
		rps = 50
	}
	if burst <= 0 {
		burst = 100
	}
	probes := []string{"/healthz", "/readyz", "/metrics"}

	middlewares := []Middleware{
		RecoveryMiddleware(logger),
		RequestIDMiddleware,
		LoggingMiddleware(logger, probes),
		HeadersMiddleware,
		RateLimitMiddleware(rps, burst, probes),
	}
	if cfg.ReadOnly {
		middlewares = append(middlewares, ReadOnlyMiddleware)
		logger.Info("read-only mode enabled")
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           Chain(mux, middlewares...),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the full handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) registerRoutes() {
	s.handle("GET /healthz", http.HandlerFunc(s.handleHealthz))
	s.handle("GET /readyz", http.HandlerFunc(s.handleReadyz))
	s.handle("GET /metrics", promhttp.Handler())

	s.handle("GET /api/v1/health", http.HandlerFunc(s.handleHealth))
	s.handle("GET /api/v1/plugins", http.HandlerFunc(s.handlePlugins))
}

func (s *Server) handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, recordRoute(h))
}

// mountPluginRoutes registers plugin routes under /api/v1/{plugin}.
func (s *Server) mountPluginRoutes() {
	all := s.plugins.AllRoutes()
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, route := range all[name] {
			pattern := fmt.Sprintf("%s /api/v1/%s%s", route.Method, name, route.Path)
			s.handle(pattern, route.Handler)
			s.logger.Debug("mounted route",
				zap.String("plugin", name),
				zap.String("pattern", pattern),
			)
		}
	}
}

// Start serves HTTP until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			httpapi.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status  string                         `json:"status"`
	Service string                         `json:"service"`
	Version map[string]string              `json:"version"`
	Plugins map[string]plugin.HealthStatus `json:"plugins"`
}

// PluginResponse describes an active plugin.
type PluginResponse struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Roles       []string `json:"roles,omitempty"`
}

// handleHealth reports "degraded" when any plugin is not healthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	plugins := s.plugins.Health(r.Context())
	status := "ok"
	for _, h := range plugins {
		if h.Status != "healthy" {
			status = "degraded"
			break
		}
	}
	httpapi.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:  status,
		Service: "fieldcast",
		Version: version.Map(),
		Plugins: plugins,
	})
}

func (s *Server) handlePlugins(w http.ResponseWriter, _ *http.Request) {
	plugins := s.plugins.All()
	out := make([]PluginResponse, 0, len(plugins))
	for _, p := range plugins {
		info := p.Info()
		out = append(out, PluginResponse{
			Name:        info.Name,
			Version:     info.Version,
			Description: info.Description,
			Roles:       info.Roles,
		})
	}
	httpapi.WriteJSON(w, http.StatusOK, out)
}
