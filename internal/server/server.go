// Package server provides the carewatch HTTP API and websocket endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"procodus.dev/carewatch/internal/hub"
	"procodus.dev/carewatch/internal/store"
	"procodus.dev/carewatch/pkg/metrics"
)

// Server wires the stores, the websocket hub and the HTTP API together.
type Server struct {
	logger      *slog.Logger
	config      *ServerConfig
	devices     *store.DeviceStore
	emergencies *store.EmergencyStore
	hub         *hub.Hub
	handler     http.Handler
	httpServer  *http.Server
	metrics     *metrics.ServerMetrics
	started     time.Time
}

// ServerConfig holds the configuration for the Server.
type ServerConfig struct {
	Logger *slog.Logger

	// HTTP server configuration
	HTTPPort int

	// DataDir is where devices.json and emergencies.json live.
	DataDir string

	// Metrics is the optional Prometheus metrics collector.
	Metrics *metrics.ServerMetrics

	// Now overrides the clock used by the stores, for tests.
	Now func() time.Time
}

// NewServer creates a Server, loads both stores from DataDir and builds the
// route table. The network listener is not started until Run.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.HTTPPort <= 0 {
		return nil, errors.New("HTTP port must be positive")
	}
	if cfg.DataDir == "" {
		return nil, errors.New("data dir cannot be empty")
	}

	s := &Server{
		logger:  cfg.Logger,
		config:  cfg,
		metrics: cfg.Metrics,
		started: time.Now(),
	}

	devices, err := store.NewDeviceStore(&store.DeviceStoreConfig{
		Logger: cfg.Logger.With(slog.String("component", "device-store")),
		Path:   filepath.Join(cfg.DataDir, "devices.json"),
		Now:    cfg.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize device store: %w", err)
	}
	s.devices = devices

	emergencies, err := store.NewEmergencyStore(&store.EmergencyStoreConfig{
		Logger: cfg.Logger.With(slog.String("component", "emergency-store")),
		Path:   filepath.Join(cfg.DataDir, "emergencies.json"),
		Now:    cfg.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize emergency store: %w", err)
	}
	s.emergencies = emergencies

	h, err := hub.New(&hub.Config{
		Logger:   cfg.Logger.With(slog.String("component", "hub")),
		Snapshot: emergencies.ListActive,
		Metrics:  cfg.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize hub: %w", err)
	}
	s.hub = h
	s.emergencies.SetNotifier(h)

	s.handler = corsMiddleware(s.setupRoutes())
	return s, nil
}

// Handler returns the full HTTP handler, including middleware. Exposed for
// tests that drive the API through httptest.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Hub returns the websocket fan-out hub.
func (s *Server) Hub() *hub.Hub {
	return s.hub
}

// Run starts the hub and the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting carewatch server")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	hubDone := make(chan struct{})
	go func() {
		s.hub.Run(ctx)
		close(hubDone)
	}()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting HTTP server", "address", s.httpServer.Addr)

	httpErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- fmt.Errorf("HTTP server error: %w", err)
		}
		close(httpErr)
	}()

	s.logger.Info("carewatch server started successfully",
		"http_port", s.config.HTTPPort,
		"data_dir", s.config.DataDir,
	)

	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled")
	case err := <-httpErr:
		if err != nil {
			s.logger.Error("HTTP server error", "error", err)
			cancel()
			<-hubDone
			return err
		}
	}

	err := s.Shutdown()
	<-hubDone
	return err
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down carewatch server")

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown HTTP server", "error", err)
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		s.logger.Info("HTTP server stopped")
	}

	s.logger.Info("carewatch server shutdown completed")
	return nil
}

// setupRoutes configures the HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Device lifecycle and telemetry
	mux.HandleFunc("POST /api/devices/register", s.instrument("/api/devices/register", s.handleRegister))
	mux.HandleFunc("POST /api/health", s.instrument("/api/health", s.handleTelemetry))
	mux.HandleFunc("GET /api/devices", s.instrument("/api/devices", s.handleListDevices))
	mux.HandleFunc("GET /api/devices/{deviceId}", s.instrument("/api/devices/{deviceId}", s.handleGetDevice))
	mux.HandleFunc("PUT /api/devices/{deviceId}", s.instrument("/api/devices/{deviceId}", s.handleRenameDevice))
	mux.HandleFunc("DELETE /api/devices/{deviceId}", s.instrument("/api/devices/{deviceId}", s.handleDeleteDevice))

	// Emergency lifecycle
	mux.HandleFunc("POST /api/sos", s.instrument("/api/sos", s.handleSOS))
	mux.HandleFunc("GET /api/emergencies", s.instrument("/api/emergencies", s.handleListEmergencies))
	mux.HandleFunc("POST /api/emergencies/{id}/resolve", s.instrument("/api/emergencies/{id}/resolve", s.handleResolveEmergency))

	// Real-time channel for caregiver clients
	mux.HandleFunc("GET /ws", s.handleWebsocket)

	// Status and observability
	mux.HandleFunc("GET /api/test", s.instrument("/api/test", s.handleStatus))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /{$}", s.instrument("/", s.handleStatus))

	return mux
}
