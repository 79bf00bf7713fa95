// Package store provides the file-backed device and emergency stores for the
// carewatch monitoring backend.
package store

import "time"

// Emergency status values.
const (
	StatusActive   = "active"
	StatusResolved = "resolved"
)

// fallbackDisplayName is used when neither the SOS request nor the device
// record carries an owner name.
const fallbackDisplayName = "Usuario"

// Location is a geographic position reported by a wearable.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

// HealthData holds the most recent vitals pushed by a device.
type HealthData struct {
	HeartRate int      `json:"heartRate"`
	Steps     int      `json:"steps"`
	Battery   int      `json:"battery"`
	Location  Location `json:"location"`
}

// Device is a registered wearable tied to one monitored person.
type Device struct {
	ID               string     `json:"id"`
	DeviceID         string     `json:"deviceId"`
	DeviceName       string     `json:"deviceName"`
	OwnerName        string     `json:"ownerName"`
	OwnerDisplayName string     `json:"ownerDisplayName"`
	RegisteredAt     time.Time  `json:"registeredAt"`
	LastUpdate       *time.Time `json:"lastUpdate"`
	HealthData       HealthData `json:"healthData"`
	IsOnline         bool       `json:"isOnline"`
}

// Emergency is an SOS alert raised by a device. OwnerDisplayName and
// DeviceName are snapshots taken at creation time, not live joins, so the
// record stays meaningful even if the device is later deleted or renamed.
type Emergency struct {
	ID               string     `json:"id"`
	DeviceID         string     `json:"deviceId"`
	OwnerDisplayName string     `json:"ownerDisplayName"`
	DeviceName       string     `json:"deviceName"`
	Location         Location   `json:"location"`
	Timestamp        time.Time  `json:"timestamp"`
	Status           string     `json:"status"`
	ResolvedAt       *time.Time `json:"resolvedAt"`
}

// TelemetryUpdate carries one telemetry push. Nil fields were not provided by
// the device and leave the stored value untouched. Location is replaced as a
// whole when present; missing sub-fields come through as zero values.
type TelemetryUpdate struct {
	HeartRate *int      `json:"heartRate"`
	Steps     *int      `json:"steps"`
	Battery   *int      `json:"battery"`
	Location  *Location `json:"location"`
}

// Notifier receives emergency lifecycle events for real-time fan-out.
// Delivery is best-effort; implementations must not block.
type Notifier interface {
	EmergencyRaised(e Emergency)
	EmergencyResolved(id string)
}
