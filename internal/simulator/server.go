package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"procodus.dev/carewatch/pkg/metrics"
)

var (
	errInvalidDeviceCount = errors.New("device count must be greater than 0")
	errInvalidInterval    = errors.New("interval must be greater than 0")
	errInvalidSOSChance   = errors.New("sos chance must be between 0 and 1")
	errLoggerRequired     = errors.New("logger is required")
	errServerURLRequired  = errors.New("server URL is required")
)

// ServerConfig holds the configuration for the simulator server.
type ServerConfig struct {
	// Logger is the structured logger
	Logger *slog.Logger
	// ServerURL is the base URL of the carewatch server
	ServerURL string
	// DeviceCount is the number of simulated devices
	DeviceCount int
	// Interval is the time between telemetry pushes per device
	Interval time.Duration
	// SOSChance is the per-push probability of raising an SOS
	SOSChance float64
	// Metrics is the optional Prometheus metrics collector
	Metrics *metrics.SimulatorMetrics
}

// Server manages the simulated fleet.
type Server struct {
	logger  *slog.Logger
	config  *ServerConfig
	client  *http.Client
	wg      sync.WaitGroup
	metrics *metrics.SimulatorMetrics
}

// NewServer creates a new simulator server with the given configuration.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.Logger == nil {
		return nil, errLoggerRequired
	}
	if cfg.ServerURL == "" {
		return nil, errServerURLRequired
	}
	if cfg.DeviceCount <= 0 {
		return nil, errInvalidDeviceCount
	}
	if cfg.Interval <= 0 {
		return nil, errInvalidInterval
	}
	if cfg.SOSChance < 0 || cfg.SOSChance > 1 {
		return nil, errInvalidSOSChance
	}

	return &Server{
		logger:  cfg.Logger,
		config:  cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		metrics: cfg.Metrics,
	}, nil
}

// Run registers the fleet and pushes telemetry until shutdown.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	for i := 0; i < s.config.DeviceCount; i++ {
		wearable := NewWearable()
		if wearable == nil {
			return errors.New("failed to generate wearable identity")
		}

		if err := s.register(ctx, wearable); err != nil {
			s.logger.Error("failed to register device", "device_id", wearable.DeviceID, "error", err)
			return err
		}

		s.wg.Add(1)
		go s.runDevice(ctx, i, wearable)
	}

	s.logger.Info("simulator started",
		"device_count", s.config.DeviceCount,
		"interval", s.config.Interval,
	)

	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled, shutting down")
	}

	s.logger.Info("waiting for devices to shut down...")
	s.wg.Wait()

	s.logger.Info("simulator stopped")
	return nil
}

// runDevice pushes telemetry for a single wearable at the configured interval.
func (s *Server) runDevice(ctx context.Context, id int, w *Wearable) {
	defer s.wg.Done()

	if s.metrics != nil {
		s.metrics.ActiveDevices.Inc()
		defer s.metrics.ActiveDevices.Dec()
	}

	gen := NewVitalsGenerator(w)
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	deviceLogger := s.logger.With(slog.Int("device_index", id), slog.String("device_id", w.DeviceID))
	deviceLogger.Info("device started")

	for {
		select {
		case <-ctx.Done():
			deviceLogger.Info("device shutting down")
			return

		case <-ticker.C:
			vitals := gen.Next(time.Now())

			if err := s.pushTelemetry(ctx, w, vitals); err != nil {
				deviceLogger.Error("failed to push telemetry", "error", err)
				// Continue on error - don't stop the device
				continue
			}
			deviceLogger.Debug("telemetry pushed", "heart_rate", vitals.HeartRate, "battery", vitals.Battery)

			if rand.Float64() < s.config.SOSChance {
				if err := s.raiseSOS(ctx, w, vitals); err != nil {
					deviceLogger.Error("failed to raise SOS", "error", err)
					continue
				}
				deviceLogger.Warn("simulated SOS raised")
			}
		}
	}
}

// register creates the device on the server.
func (s *Server) register(ctx context.Context, w *Wearable) error {
	return s.post(ctx, "register", "/api/devices/register", map[string]any{
		"deviceId":         w.DeviceID,
		"deviceName":       w.DeviceName,
		"ownerName":        w.OwnerName,
		"ownerDisplayName": w.OwnerName,
	})
}

// pushTelemetry sends one health sample.
func (s *Server) pushTelemetry(ctx context.Context, w *Wearable, v Vitals) error {
	err := s.post(ctx, "telemetry", "/api/health", map[string]any{
		"deviceId":  w.DeviceID,
		"heartRate": v.HeartRate,
		"steps":     v.Steps,
		"battery":   v.Battery,
		"location": map[string]any{
			"latitude":  v.Latitude,
			"longitude": v.Longitude,
			"address":   w.Address,
		},
	})
	if err == nil && s.metrics != nil {
		s.metrics.TelemetrySent.Inc()
	}
	return err
}

// raiseSOS sends an emergency alert from the wearable's current position.
func (s *Server) raiseSOS(ctx context.Context, w *Wearable, v Vitals) error {
	err := s.post(ctx, "sos", "/api/sos", map[string]any{
		"deviceId":         w.DeviceID,
		"ownerDisplayName": w.OwnerName,
		"location": map[string]any{
			"latitude":  v.Latitude,
			"longitude": v.Longitude,
			"address":   w.Address,
		},
	})
	if err == nil && s.metrics != nil {
		s.metrics.SOSRaised.Inc()
	}
	return err
}

// post sends a JSON body and checks for a 2xx response.
func (s *Server) post(ctx context.Context, operation, path string, body map[string]any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.ServerURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.countError(operation)
		return fmt.Errorf("%s request failed: %w", operation, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if s.metrics != nil {
		s.metrics.RequestLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.countError(operation)
		return fmt.Errorf("%s request returned status %d", operation, resp.StatusCode)
	}
	return nil
}

func (s *Server) countError(operation string) {
	if s.metrics != nil {
		s.metrics.RequestErrors.WithLabelValues(operation).Inc()
	}
}
