package alerts

// Penalty weights for the composite health score. The score ranks sensors on
// dashboards; alert triggering uses the crisp per-condition checks instead.
const (
	penaltyStaleSevere   = 45
	penaltyStale         = 30
	penaltyStaleMild     = 10
	penaltyBatteryCrit   = 20
	penaltyBatteryLow    = 10
	penaltyDrainCrit     = 15
	penaltyDrainWarn     = 7
	penaltyPoorSignal    = 10
	penaltyFlappingFull  = 15
	penaltyFlappingHalf  = 7
	batteryCritThreshold = 10
	batteryLowThreshold  = 20
)

// HealthScore reduces a snapshot to an integer in [0,100]. It starts at 100
// and subtracts weighted penalties for staleness, battery level, battery
// drain, poor signal, and flapping.
func HealthScore(snapshot HealthSnapshot, t Thresholds) int {
	score := 100

	switch {
	case snapshot.AgeMinutes == nil:
		score -= penaltyStaleSevere
	case t.OfflineTimeoutMinutes > 0 && *snapshot.AgeMinutes >= 3*t.OfflineTimeoutMinutes:
		score -= penaltyStaleSevere
	case t.OfflineTimeoutMinutes > 0 && *snapshot.AgeMinutes > t.OfflineTimeoutMinutes:
		score -= penaltyStale
	case t.OfflineTimeoutMinutes > 0 && *snapshot.AgeMinutes > t.OfflineTimeoutMinutes/2:
		score -= penaltyStaleMild
	}

	if snapshot.BatteryPercent != nil {
		switch {
		case *snapshot.BatteryPercent < batteryCritThreshold:
			score -= penaltyBatteryCrit
		case *snapshot.BatteryPercent < batteryLowThreshold:
			score -= penaltyBatteryLow
		}
	}

	if snapshot.BatteryDrainPerDay != nil {
		switch {
		case t.BatteryDrainCritPerDay > 0 && *snapshot.BatteryDrainPerDay >= t.BatteryDrainCritPerDay:
			score -= penaltyDrainCrit
		case t.BatteryDrainWarnPerDay > 0 && *snapshot.BatteryDrainPerDay >= t.BatteryDrainWarnPerDay:
			score -= penaltyDrainWarn
		}
	}

	if snapshot.SignalSamples >= t.SignalMinSamples && t.SignalMinSamples > 0 {
		poorRSSI := snapshot.AvgRSSI != nil && *snapshot.AvgRSSI <= t.RSSIFloorDBm
		poorSNR := snapshot.AvgSNR != nil && *snapshot.AvgSNR <= t.SNRFloorDB
		if poorRSSI || poorSNR {
			score -= penaltyPoorSignal
		}
	}

	if t.FlappingMaxChanges > 0 {
		switch {
		case snapshot.FlapCount >= t.FlappingMaxChanges:
			score -= penaltyFlappingFull
		case snapshot.FlapCount >= (t.FlappingMaxChanges+1)/2:
			score -= penaltyFlappingHalf
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
