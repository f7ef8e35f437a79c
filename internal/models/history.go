package models

import "time"

// Note is a user-authored log entry attached to one device
type Note struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"` // milliseconds since epoch
	Content   string `json:"content"`
}

// Session is a run of consecutive data points without a reporting gap
type Session struct {
	Start      time.Time          `json:"startTime"`
	End        time.Time          `json:"endTime"`
	Averages   map[string]float64 `json:"averages"`
	Irrigation bool               `json:"irrigation"`
	Points     int                `json:"points"`
}

// DurationMinutes returns the whole minutes between start and end
func (s Session) DurationMinutes() int {
	return int(s.End.Sub(s.Start) / time.Minute)
}

// DailySummary rolls up the sessions that fall on one calendar day
type DailySummary struct {
	Date            time.Time          `json:"date"`
	Sessions        []Session          `json:"sessions"`
	Averages        map[string]float64 `json:"averages"`
	HasIrrigation   bool               `json:"hasIrrigation"`
	DurationMinutes int                `json:"duration"`
}

// ReadingRow is one flattened archive row
type ReadingRow struct {
	Timestamp time.Time
	MasterID  string
	DeviceID  string
	SensorKey string
	Value     float64
}
