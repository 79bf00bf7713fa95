package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"procodus.dev/carewatch/internal/hub"
	"procodus.dev/carewatch/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is already open to any origin; the websocket follows suit.
	CheckOrigin: func(*http.Request) bool { return true },
}

type registerRequest struct {
	DeviceID         string `json:"deviceId"`
	DeviceName       string `json:"deviceName"`
	OwnerName        string `json:"ownerName"`
	OwnerDisplayName string `json:"ownerDisplayName"`
}

// handleRegister creates a new device record.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	dev, err := s.devices.Register(req.DeviceID, req.DeviceName, req.OwnerName, req.OwnerDisplayName)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, envelope{"message": "device registered", "device": dev})
}

type telemetryRequest struct {
	DeviceID string `json:"deviceId"`
	store.TelemetryUpdate
}

// handleTelemetry applies one telemetry push to a device.
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	var req telemetryRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	if _, err := s.devices.UpdateTelemetry(req.DeviceID, req.TelemetryUpdate); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, envelope{"message": "health data received"})
}

// handleListDevices returns every device with recomputed presence.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices, err := s.devices.List()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, envelope{"devices": devices})
}

// handleGetDevice returns a single device.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, err := s.devices.Get(r.PathValue("deviceId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, envelope{"device": dev})
}

type renameRequest struct {
	DeviceName string `json:"deviceName"`
	OwnerName  string `json:"ownerName"`
}

// handleRenameDevice updates the display strings of a device.
func (s *Server) handleRenameDevice(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	dev, err := s.devices.Rename(r.PathValue("deviceId"), req.DeviceName, req.OwnerName)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, envelope{"message": "device updated", "device": dev})
}

// handleDeleteDevice removes a device record. Emergencies referencing the
// deviceId remain untouched.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.devices.Delete(r.PathValue("deviceId")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSuccess(w, envelope{"message": "device deleted"})
}

type sosRequest struct {
	DeviceID         string `json:"deviceId"`
	OwnerDisplayName string `json:"ownerDisplayName"`
	Location         *struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		Address   string   `json:"address"`
	} `json:"location"`
}

// handleSOS raises an emergency for a registered device and fans it out to
// connected caregivers.
func (s *Server) handleSOS(w http.ResponseWriter, r *http.Request) {
	var req sosRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	if req.DeviceID == "" {
		s.writeError(w, fmt.Errorf("%w: deviceId is required", store.ErrValidation))
		return
	}
	if req.Location == nil || req.Location.Latitude == nil || req.Location.Longitude == nil {
		s.writeError(w, fmt.Errorf("%w: location latitude and longitude are required", store.ErrValidation))
		return
	}

	// The emergency may only be raised for a device that exists right now;
	// its record supplies the display-name snapshot.
	dev, err := s.devices.Get(req.DeviceID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	em, err := s.emergencies.Raise(dev, req.OwnerDisplayName, store.Location{
		Latitude:  *req.Location.Latitude,
		Longitude: *req.Location.Longitude,
		Address:   req.Location.Address,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.EmergenciesRaised.Inc()
	}
	s.writeSuccess(w, envelope{"message": "emergency alert sent", "emergency": em})
}

// handleListEmergencies returns every emergency raised during this process
// lifetime, resolved ones included; clients filter by status.
func (s *Server) handleListEmergencies(w http.ResponseWriter, _ *http.Request) {
	s.writeSuccess(w, envelope{"emergencies": s.emergencies.ListActive()})
}

// handleResolveEmergency marks an emergency resolved and broadcasts the
// resolution.
func (s *Server) handleResolveEmergency(w http.ResponseWriter, r *http.Request) {
	if err := s.emergencies.Resolve(r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.EmergenciesResolved.Inc()
	}
	s.writeSuccess(w, envelope{"message": "emergency resolved"})
}

// handleStatus serves the status payload for GET / and GET /api/test.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeSuccess(w, envelope{
		"service":   "carewatch",
		"status":    "ok",
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"devices":   s.devices.Count(),
		"clients":   s.hub.ClientCount(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleWebsocket upgrades the connection and attaches it to the hub. The
// client immediately receives the active_emergencies snapshot.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	hub.NewClient(s.hub, conn, s.logger.With("component", "ws-client")).Start()
}
