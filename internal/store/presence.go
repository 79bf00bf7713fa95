package store

import "time"

// OnlineWindow is how recent the last telemetry push must be for a device to
// count as online. There is no hysteresis or grace period beyond this flat
// window; presence is recomputed on every read.
const OnlineWindow = 2 * time.Minute

// IsOnline reports whether a device with the given last telemetry timestamp
// counts as online at the given instant. A device that has never pushed
// telemetry (nil lastUpdate) is offline.
func IsOnline(lastUpdate *time.Time, now time.Time) bool {
	if lastUpdate == nil {
		return false
	}
	return now.Sub(*lastUpdate) < OnlineWindow
}
