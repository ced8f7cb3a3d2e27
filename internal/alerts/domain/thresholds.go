package alerts

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Thresholds is a fully-populated per-tenant alerting policy bundle.
// Values are resolved once per scan by merging tenant overrides over the
// system defaults; a resolved bundle never has missing fields.
type Thresholds struct {
	OfflineTimeoutMinutes float64 `json:"offline_timeout_minutes"`

	LowBatteryPercent      float64 `json:"low_battery_percent"`
	BatteryDrainWarnPerDay float64 `json:"battery_drain_warn_per_day"`
	BatteryDrainCritPerDay float64 `json:"battery_drain_crit_per_day"`

	SignalLookbackHours float64 `json:"signal_lookback_hours"`
	SignalMinSamples    int     `json:"signal_min_samples"`
	RSSIFloorDBm        float64 `json:"rssi_floor_dbm"`
	SNRFloorDB          float64 `json:"snr_floor_db"`

	FlappingWindowMinutes float64 `json:"flapping_window_minutes"`
	FlappingMaxChanges    int     `json:"flapping_max_changes"`

	DeadLetterWindowMinutes float64 `json:"dead_letter_window_minutes"`
	DeadLettersWarning      int     `json:"dead_letters_warning"`
	DeadLettersCritical     int     `json:"dead_letters_critical"`

	SLACritical time.Duration `json:"sla_critical"`
	SLAWarning  time.Duration `json:"sla_warning"`
	SLAInfo     time.Duration `json:"sla_info"`
}

// DefaultThresholds returns the system default bundle.
func DefaultThresholds() Thresholds {
	return Thresholds{
		OfflineTimeoutMinutes:   120,
		LowBatteryPercent:       20,
		BatteryDrainWarnPerDay:  2,
		BatteryDrainCritPerDay:  5,
		SignalLookbackHours:     24,
		SignalMinSamples:        5,
		RSSIFloorDBm:            -110,
		SNRFloorDB:              -7,
		FlappingWindowMinutes:   60,
		FlappingMaxChanges:      6,
		DeadLetterWindowMinutes: 60,
		DeadLettersWarning:      10,
		DeadLettersCritical:     50,
		SLACritical:             4 * time.Hour,
		SLAWarning:              24 * time.Hour,
		SLAInfo:                 72 * time.Hour,
	}
}

// SLAFor returns the SLA duration for a severity tier.
func (t Thresholds) SLAFor(severity string) time.Duration {
	switch severity {
	case SeverityCritical:
		return t.SLACritical
	case SeverityWarning:
		return t.SLAWarning
	default:
		return t.SLAInfo
	}
}

// ResolveThresholds merges raw tenant overrides over the defaults. The merge
// is lenient: a missing, non-numeric, non-finite, or negative override leaves
// the default in place, so malformed tenant configuration never blocks a scan.
func ResolveThresholds(overrides map[string]any) Thresholds {
	t := DefaultThresholds()
	if len(overrides) == 0 {
		return t
	}

	mergeFloat(overrides, "offlineTimeoutMinutes", &t.OfflineTimeoutMinutes)
	mergeFloat(overrides, "lowBatteryPercent", &t.LowBatteryPercent)
	mergeFloat(overrides, "batteryDrainWarnPerDay", &t.BatteryDrainWarnPerDay)
	mergeFloat(overrides, "batteryDrainCritPerDay", &t.BatteryDrainCritPerDay)
	mergeFloat(overrides, "signalLookbackHours", &t.SignalLookbackHours)
	mergeInt(overrides, "signalMinSamples", &t.SignalMinSamples)
	mergeFloor(overrides, "rssiFloor", &t.RSSIFloorDBm)
	mergeFloor(overrides, "snrFloor", &t.SNRFloorDB)
	mergeFloat(overrides, "flappingWindowMinutes", &t.FlappingWindowMinutes)
	mergeInt(overrides, "flappingMaxChanges", &t.FlappingMaxChanges)
	mergeFloat(overrides, "deadLetterWindowMinutes", &t.DeadLetterWindowMinutes)
	mergeInt(overrides, "deadLettersWarning", &t.DeadLettersWarning)
	mergeInt(overrides, "deadLettersCritical", &t.DeadLettersCritical)
	mergeDurationMinutes(overrides, "slaCriticalMinutes", &t.SLACritical)
	mergeDurationMinutes(overrides, "slaWarningMinutes", &t.SLAWarning)
	mergeDurationMinutes(overrides, "slaInfoMinutes", &t.SLAInfo)

	return t
}

func mergeFloat(overrides map[string]any, key string, target *float64) {
	value, ok := numericOverride(overrides, key)
	if !ok || value < 0 {
		return
	}
	*target = value
}

// mergeFloor accepts negative values; RSSI/SNR floors are naturally below zero.
func mergeFloor(overrides map[string]any, key string, target *float64) {
	value, ok := numericOverride(overrides, key)
	if !ok {
		return
	}
	*target = value
}

func mergeInt(overrides map[string]any, key string, target *int) {
	value, ok := numericOverride(overrides, key)
	if !ok || value < 0 {
		return
	}
	*target = int(value)
}

func mergeDurationMinutes(overrides map[string]any, key string, target *time.Duration) {
	value, ok := numericOverride(overrides, key)
	if !ok || value < 0 {
		return
	}
	*target = time.Duration(value * float64(time.Minute))
}

func numericOverride(overrides map[string]any, key string) (float64, bool) {
	raw, ok := overrides[key]
	if !ok || raw == nil {
		return 0, false
	}
	var value float64
	switch typed := raw.(type) {
	case float64:
		value = typed
	case float32:
		value = float64(typed)
	case int:
		value = float64(typed)
	case int64:
		value = float64(typed)
	case json.Number:
		parsed, err := typed.Float64()
		if err != nil {
			return 0, false
		}
		value = parsed
	case string:
		parsed, err := strconv.ParseFloat(typed, 64)
		if err != nil {
			return 0, false
		}
		value = parsed
	default:
		return 0, false
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}
