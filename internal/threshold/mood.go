package threshold

import (
	"agrosense/internal/models"
)

// Mood is the plant's overall disposition given its stats and profile
type Mood string

const (
	MoodSad     Mood = "sad"
	MoodNeutral Mood = "neutral"
	MoodExcited Mood = "excited"
)

// MoodReport is the mood plus the check counts it was derived from
type MoodReport struct {
	Mood    Mood   `json:"mood"`
	Message string `json:"message"`
	Checks  int    `json:"checks"`
	InRange int    `json:"inRange"`
}

var moodKeys = []string{"temperature", "humidity", "soilMoisture6cm", "soilMoisture15cm", "lightIntensity"}

// EvaluateMood checks each profile-mapped stat's current value against its range.
// More than half out of range is sad, any out of range is neutral, otherwise excited.
func (e *Evaluator) EvaluateMood(stats models.DeviceStats, profile *models.CropProfile) MoodReport {
	if len(stats) == 0 || profile == nil {
		return MoodReport{Mood: MoodNeutral, Message: "Awaiting data..."}
	}

	var report MoodReport
	for _, key := range moodKeys {
		st, ok := stats[key]
		if !ok || st.Current == nil {
			continue
		}
		r := e.RangeFor(key, profile)
		if r == nil {
			continue
		}
		report.Checks++
		if *st.Current >= r.Min && *st.Current <= r.Max {
			report.InRange++
		}
	}

	sad := report.Checks - report.InRange
	switch {
	case report.Checks == 0:
		report.Mood, report.Message = MoodNeutral, "No profile data to compare."
	case float64(sad) > float64(report.Checks)/2:
		report.Mood, report.Message = MoodSad, "Some conditions are far from ideal. Check the stats."
	case sad > 0:
		report.Mood, report.Message = MoodNeutral, "Mostly fine, but some readings are out of range."
	default:
		report.Mood, report.Message = MoodExcited, "Every reading is inside the ideal range."
	}
	return report
}
