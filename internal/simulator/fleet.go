// Package simulator drives a synthetic wearable fleet against a running
// carewatch server over its public HTTP API.
package simulator

import (
	"math"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// Wearable is the identity of one simulated device.
type Wearable struct {
	DeviceID   string  `fake:"{uuid}"`
	OwnerName  string  `fake:"{name}"`
	Latitude   float64 `fake:"{latitude}"`
	Longitude  float64 `fake:"{longitude}"`
	Address    string  `fake:"{street}, {city}"`
	DeviceName string
}

// NewWearable generates a fake wearable identity.
func NewWearable() *Wearable {
	var w Wearable
	if err := gofakeit.Struct(&w); err != nil {
		return nil
	}
	w.DeviceName = "Band " + gofakeit.DigitN(4)
	return &w
}

// Vitals is one generated health sample.
type Vitals struct {
	HeartRate int
	Steps     int
	Battery   int
	Latitude  float64
	Longitude float64
}

// VitalsGenerator produces plausible vitals for one wearable: a resting
// heart rate with a daily cycle, steps that accumulate while the wearer is
// awake, a battery that drains over days, and a position that drifts slowly
// around the home coordinates.
type VitalsGenerator struct {
	baselineHR int
	steps      int
	battery    float64
	homeLat    float64
	homeLon    float64
	driftLat   float64
	driftLon   float64
}

// NewVitalsGenerator creates a generator anchored at the wearable's position.
func NewVitalsGenerator(w *Wearable) *VitalsGenerator {
	return &VitalsGenerator{
		baselineHR: 60 + rand.Intn(20),
		battery:    70 + rand.Float64()*30,
		homeLat:    w.Latitude,
		homeLon:    w.Longitude,
	}
}

// Next generates the vitals for the given instant and advances the
// generator's internal state.
func (g *VitalsGenerator) Next(t time.Time) Vitals {
	hour := float64(t.Hour())

	// Heart rate peaks mid-afternoon and dips at night.
	dailyCycle := 8 * math.Sin((hour-6)*math.Pi/12)
	noise := (rand.Float64() - 0.5) * 6

	// Occasional elevated readings (3% chance)
	anomaly := 0.0
	if rand.Float64() < 0.03 {
		anomaly = 20 + rand.Float64()*30
	}
	heartRate := float64(g.baselineHR) + dailyCycle + noise + anomaly

	// Steps only accumulate during waking hours.
	if hour >= 7 && hour <= 21 {
		g.steps += rand.Intn(400)
	}
	// Daily reset around midnight.
	if hour == 0 {
		g.steps = 0
	}

	// Battery drains slowly with small measurement jitter.
	g.battery -= 0.05 + rand.Float64()*0.05
	battery := math.Max(1, g.battery)

	// Position drifts within a few hundred meters of home.
	g.driftLat += (rand.Float64() - 0.5) * 0.0005
	g.driftLon += (rand.Float64() - 0.5) * 0.0005
	g.driftLat = math.Max(-0.003, math.Min(0.003, g.driftLat))
	g.driftLon = math.Max(-0.003, math.Min(0.003, g.driftLon))

	return Vitals{
		HeartRate: int(math.Round(heartRate)),
		Steps:     g.steps,
		Battery:   int(math.Round(battery)),
		Latitude:  g.homeLat + g.driftLat,
		Longitude: g.homeLon + g.driftLon,
	}
}
