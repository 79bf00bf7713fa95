package store

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DeviceStore holds all registered devices, backed by a single JSON file that
// is rewritten wholesale on every mutation. All operations serialize on one
// mutex so concurrent requests cannot interleave read-modify-write cycles.
type DeviceStore struct {
	mu      sync.Mutex
	path    string
	logger  *slog.Logger
	now     func() time.Time
	devices []Device
}

// DeviceStoreConfig holds the configuration for a DeviceStore.
type DeviceStoreConfig struct {
	// Logger is the structured logger.
	Logger *slog.Logger
	// Path is the backing JSON file ({"devices": [...]}).
	Path string
	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// deviceFile is the on-disk document shape.
type deviceFile struct {
	Devices []Device `json:"devices"`
}

// NewDeviceStore creates a DeviceStore and loads any existing state from its
// backing file. A missing or corrupt file yields an empty store.
func NewDeviceStore(cfg *DeviceStoreConfig) (*DeviceStore, error) {
	if cfg == nil {
		return nil, errors.New("device store config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Path == "" {
		return nil, errors.New("store path cannot be empty")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &DeviceStore{
		path:   cfg.Path,
		logger: cfg.Logger,
		now:    now,
	}

	var doc deviceFile
	readFile(s.path, &doc, s.logger)
	s.devices = doc.Devices

	s.logger.Info("device store loaded", "path", s.path, "devices", len(s.devices))
	return s, nil
}

// Register creates a new device record. The deviceId is the caller-supplied
// unique key; registration fails with ErrConflict if it is already taken.
func (s *DeviceStore) Register(deviceID, deviceName, ownerName, ownerDisplayName string) (Device, error) {
	if deviceID == "" || deviceName == "" {
		return Device{}, fmt.Errorf("%w: deviceId and deviceName are required", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOfLocked(deviceID) >= 0 {
		return Device{}, fmt.Errorf("%w: device %q already registered", ErrConflict, deviceID)
	}

	dev := Device{
		ID:               uuid.NewString(),
		DeviceID:         deviceID,
		DeviceName:       deviceName,
		OwnerName:        ownerName,
		OwnerDisplayName: ownerDisplayName,
		RegisteredAt:     s.now().UTC(),
	}
	s.devices = append(s.devices, dev)

	if err := s.persistLocked(); err != nil {
		// Roll back so a failed write does not leave a phantom record.
		s.devices = s.devices[:len(s.devices)-1]
		return Device{}, err
	}

	s.logger.Info("device registered", "device_id", deviceID, "device_name", deviceName)
	return dev, nil
}

// UpdateTelemetry applies one telemetry push to a device. Only fields present
// in the update are overwritten; the push unconditionally stamps lastUpdate
// and marks the device online.
func (s *DeviceStore) UpdateTelemetry(deviceID string, update TelemetryUpdate) (Device, error) {
	if deviceID == "" {
		return Device{}, fmt.Errorf("%w: deviceId is required", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOfLocked(deviceID)
	if i < 0 {
		return Device{}, fmt.Errorf("%w: device %q", ErrNotFound, deviceID)
	}

	dev := &s.devices[i]
	if update.HeartRate != nil {
		dev.HealthData.HeartRate = *update.HeartRate
	}
	if update.Steps != nil {
		dev.HealthData.Steps = *update.Steps
	}
	if update.Battery != nil {
		dev.HealthData.Battery = *update.Battery
	}
	if update.Location != nil {
		dev.HealthData.Location = *update.Location
	}

	ts := s.now().UTC()
	dev.LastUpdate = &ts
	dev.IsOnline = true

	if err := s.persistLocked(); err != nil {
		return Device{}, err
	}

	s.logger.Debug("telemetry updated", "device_id", deviceID)
	return *dev, nil
}

// List returns every device with its presence recomputed against the current
// clock. The recomputed flags are persisted back to the store file, so
// listing is deliberately not read-only.
func (s *DeviceStore) List() ([]Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for i := range s.devices {
		s.devices[i].IsOnline = IsOnline(s.devices[i].LastUpdate, now)
	}

	if err := s.persistLocked(); err != nil {
		return nil, err
	}

	out := make([]Device, len(s.devices))
	copy(out, s.devices)
	return out, nil
}

// Get returns a single device with presence recomputed. Unlike List, Get has
// no persistence side effect.
func (s *DeviceStore) Get(deviceID string) (Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOfLocked(deviceID)
	if i < 0 {
		return Device{}, fmt.Errorf("%w: device %q", ErrNotFound, deviceID)
	}

	dev := s.devices[i]
	dev.IsOnline = IsOnline(dev.LastUpdate, s.now())
	return dev, nil
}

// Rename updates the display strings of a device. Empty fields are left
// untouched.
func (s *DeviceStore) Rename(deviceID, deviceName, ownerName string) (Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOfLocked(deviceID)
	if i < 0 {
		return Device{}, fmt.Errorf("%w: device %q", ErrNotFound, deviceID)
	}

	dev := &s.devices[i]
	if deviceName != "" {
		dev.DeviceName = deviceName
	}
	if ownerName != "" {
		dev.OwnerName = ownerName
	}

	if err := s.persistLocked(); err != nil {
		return Device{}, err
	}

	s.logger.Info("device renamed", "device_id", deviceID)
	return *dev, nil
}

// Delete removes a device record. Emergencies raised for the same deviceId
// are untouched; they reference the device, they do not belong to it.
func (s *DeviceStore) Delete(deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOfLocked(deviceID)
	if i < 0 {
		return fmt.Errorf("%w: device %q", ErrNotFound, deviceID)
	}

	removed := s.devices[i]
	s.devices = append(s.devices[:i], s.devices[i+1:]...)

	if err := s.persistLocked(); err != nil {
		s.devices = append(s.devices, Device{})
		copy(s.devices[i+1:], s.devices[i:])
		s.devices[i] = removed
		return err
	}

	s.logger.Info("device deleted", "device_id", removed.DeviceID)
	return nil
}

// Count returns the number of registered devices.
func (s *DeviceStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.devices)
}

func (s *DeviceStore) indexOfLocked(deviceID string) int {
	for i := range s.devices {
		if s.devices[i].DeviceID == deviceID {
			return i
		}
	}
	return -1
}

func (s *DeviceStore) persistLocked() error {
	if err := writeFile(s.path, deviceFile{Devices: s.devices}); err != nil {
		s.logger.Error("failed to persist device store", "error", err)
		return err
	}
	return nil
}
