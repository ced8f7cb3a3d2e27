package alerts

import "time"

// HealthSnapshot is the per-sensor bundle of derived signals computed during
// one scan pass. It is never persisted; it is constructed, scored, and
// discarded within the scan.
type HealthSnapshot struct {
	SensorID      string
	DaysInService float64

	LastSeenAt *time.Time
	AgeMinutes *float64

	LastRSSI      *float64
	LastSNR       *float64
	AvgRSSI       *float64
	AvgSNR        *float64
	SignalSamples int

	BatteryPercent     *float64
	BatteryDrainPerDay *float64

	FlapCount int
}

// OccupancySample is one decoded occupancy reading. Occupied is nil when the
// payload carried no decodable occupancy value.
type OccupancySample struct {
	At       time.Time
	Occupied *bool
}

// BatterySample is one battery reading from telemetry.
type BatterySample struct {
	At      time.Time
	Percent float64
}

// CountFlaps counts strict occupancy transitions between consecutive samples.
// A pair only counts when both samples carry a known occupancy value;
// undecodable samples never contribute a transition in either direction.
func CountFlaps(samples []OccupancySample) int {
	flaps := 0
	var previous *bool
	for _, sample := range samples {
		if sample.Occupied == nil {
			continue
		}
		if previous != nil && *previous != *sample.Occupied {
			flaps++
		}
		previous = sample.Occupied
	}
	return flaps
}

// DrainRatePerDay computes (max battery - min battery) / span-in-days over the
// given samples, with the span floored at one day so two extremes observed on
// the same day do not blow up the rate. Returns false with fewer than two
// samples.
func DrainRatePerDay(samples []BatterySample) (float64, bool) {
	if len(samples) < 2 {
		return 0, false
	}
	maxSample := samples[0]
	minSample := samples[0]
	for _, sample := range samples[1:] {
		if sample.Percent > maxSample.Percent {
			maxSample = sample
		}
		if sample.Percent < minSample.Percent {
			minSample = sample
		}
	}
	spanDays := maxSample.At.Sub(minSample.At).Hours() / 24
	if spanDays < 0 {
		spanDays = -spanDays
	}
	if spanDays < 1 {
		spanDays = 1
	}
	return (maxSample.Percent - minSample.Percent) / spanDays, true
}

// AgeMinutesAt returns the snapshot freshness relative to now, or nil when
// the sensor has never reported.
func AgeMinutesAt(lastSeen *time.Time, now time.Time) *float64 {
	if lastSeen == nil || lastSeen.IsZero() {
		return nil
	}
	age := now.Sub(*lastSeen).Minutes()
	if age < 0 {
		age = 0
	}
	return &age
}
