package alerts

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestResolveThresholds_Defaults(t *testing.T) {
	resolved := ResolveThresholds(nil)
	if resolved != DefaultThresholds() {
		t.Fatalf("expected defaults, got %+v", resolved)
	}
}

func TestResolveThresholds_PartialOverride(t *testing.T) {
	resolved := ResolveThresholds(map[string]any{
		"offlineTimeoutMinutes": float64(30),
		"lowBatteryPercent":     float64(15),
	})
	if resolved.OfflineTimeoutMinutes != 30 {
		t.Fatalf("expected offline timeout 30, got %v", resolved.OfflineTimeoutMinutes)
	}
	if resolved.LowBatteryPercent != 15 {
		t.Fatalf("expected battery floor 15, got %v", resolved.LowBatteryPercent)
	}
	if resolved.FlappingMaxChanges != 6 {
		t.Fatalf("untouched field should keep default, got %d", resolved.FlappingMaxChanges)
	}
}

func TestResolveThresholds_CoercesNumericLikeValues(t *testing.T) {
	resolved := ResolveThresholds(map[string]any{
		"offlineTimeoutMinutes": "45",
		"signalMinSamples":      json.Number("8"),
		"flappingMaxChanges":    int64(4),
	})
	if resolved.OfflineTimeoutMinutes != 45 {
		t.Fatalf("string override should coerce, got %v", resolved.OfflineTimeoutMinutes)
	}
	if resolved.SignalMinSamples != 8 {
		t.Fatalf("json.Number override should coerce, got %d", resolved.SignalMinSamples)
	}
	if resolved.FlappingMaxChanges != 4 {
		t.Fatalf("int64 override should coerce, got %d", resolved.FlappingMaxChanges)
	}
}

func TestResolveThresholds_RejectsGarbage(t *testing.T) {
	resolved := ResolveThresholds(map[string]any{
		"offlineTimeoutMinutes": "not-a-number",
		"lowBatteryPercent":     float64(-5),
		"signalMinSamples":      math.NaN(),
		"flappingMaxChanges":    map[string]any{"nested": true},
		"deadLettersWarning":    nil,
	})
	if resolved != DefaultThresholds() {
		t.Fatalf("garbage overrides must leave defaults intact, got %+v", resolved)
	}
}

func TestResolveThresholds_NegativeFloorsAllowed(t *testing.T) {
	resolved := ResolveThresholds(map[string]any{
		"rssiFloor": float64(-95),
		"snrFloor":  float64(-3.5),
	})
	if resolved.RSSIFloorDBm != -95 {
		t.Fatalf("rssi floor should accept negatives, got %v", resolved.RSSIFloorDBm)
	}
	if resolved.SNRFloorDB != -3.5 {
		t.Fatalf("snr floor should accept negatives, got %v", resolved.SNRFloorDB)
	}
}

func TestResolveThresholds_SLAMinutes(t *testing.T) {
	resolved := ResolveThresholds(map[string]any{
		"slaCriticalMinutes": float64(60),
	})
	if resolved.SLACritical != time.Hour {
		t.Fatalf("expected 1h critical SLA, got %v", resolved.SLACritical)
	}
	if resolved.SLAWarning != 24*time.Hour {
		t.Fatalf("warning SLA should keep default, got %v", resolved.SLAWarning)
	}
}

func TestSLAFor(t *testing.T) {
	thresholds := DefaultThresholds()
	if got := thresholds.SLAFor(SeverityCritical); got != 4*time.Hour {
		t.Fatalf("critical SLA: got %v", got)
	}
	if got := thresholds.SLAFor(SeverityWarning); got != 24*time.Hour {
		t.Fatalf("warning SLA: got %v", got)
	}
	if got := thresholds.SLAFor(SeverityInfo); got != 72*time.Hour {
		t.Fatalf("info SLA: got %v", got)
	}
}
