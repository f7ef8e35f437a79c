package aggregator

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"agrosense/internal/models"
)

// SessionConfig holds configuration for session detection and daily rollups
type SessionConfig struct {
	Gap            time.Duration  // largest gap between points inside one session
	IrrigationKeys []string       // truthy value on any of these marks irrigation
	Location       *time.Location // calendar used for day boundaries
}

// DefaultSessionConfig returns default session configuration
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Gap:            30 * time.Minute,
		IrrigationKeys: []string{"irrigation", "Irrigation", "irrigationStatus", "pump"},
		Location:       time.Local,
	}
}

func (c SessionConfig) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// DetectSessions groups a sorted series into sessions separated by gaps larger than cfg.Gap
func DetectSessions(points []models.DataPoint, cfg SessionConfig) []models.Session {
	var sessions []models.Session
	start := 0
	for i := 1; i <= len(points); i++ {
		if i < len(points) && time.Duration(points[i].Timestamp-points[i-1].Timestamp)*time.Millisecond <= cfg.Gap {
			continue
		}
		if i > start {
			sessions = append(sessions, buildSession(points[start:i], cfg))
		}
		start = i
	}
	return sessions
}

func buildSession(points []models.DataPoint, cfg SessionConfig) models.Session {
	loc := cfg.location()
	s := models.Session{
		Start:    points[0].Time().In(loc),
		End:      points[len(points)-1].Time().In(loc),
		Averages: averages(points),
		Points:   len(points),
	}
	for _, p := range points {
		for _, k := range cfg.IrrigationKeys {
			if v, ok := p.Readings[k]; ok && v.Truthy() {
				s.Irrigation = true
			}
		}
	}
	return s
}

func averages(points []models.DataPoint) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, p := range points {
		for k, v := range p.Readings {
			if f, ok := v.Finite(); ok {
				sums[k] += f
				counts[k]++
			}
		}
	}
	out := make(map[string]float64, len(sums))
	for k, sum := range sums {
		out[k] = sum / float64(counts[k])
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// splitAtMidnight cuts a session into one piece per calendar day it spans
func splitAtMidnight(s models.Session) []models.Session {
	if !s.End.After(s.Start) {
		return []models.Session{s}
	}
	var parts []models.Session
	cur := s.Start
	for cur.Before(s.End) {
		next := startOfDay(cur).AddDate(0, 0, 1)
		end := s.End
		if next.Before(end) {
			end = next
		}
		part := s
		part.Start, part.End = cur, end
		parts = append(parts, part)
		cur = end
	}
	return parts
}

// DailyRollup splits sessions at midnight and summarises each day, oldest first
func DailyRollup(sessions []models.Session, loc *time.Location) []models.DailySummary {
	if loc == nil {
		loc = time.Local
	}
	byDay := make(map[time.Time][]models.Session)
	for _, s := range sessions {
		s.Start, s.End = s.Start.In(loc), s.End.In(loc)
		for _, part := range splitAtMidnight(s) {
			day := startOfDay(part.Start)
			byDay[day] = append(byDay[day], part)
		}
	}

	days := make([]models.DailySummary, 0, len(byDay))
	for day, parts := range byDay {
		summary := models.DailySummary{Date: day, Sessions: parts}
		sums := make(map[string]float64)
		counts := make(map[string]int)
		for _, p := range parts {
			summary.DurationMinutes += p.DurationMinutes()
			summary.HasIrrigation = summary.HasIrrigation || p.Irrigation
			for k, v := range p.Averages {
				sums[k] += v
				counts[k]++
			}
		}
		summary.Averages = make(map[string]float64, len(sums))
		for k, sum := range sums {
			summary.Averages[k] = sum / float64(counts[k])
		}
		days = append(days, summary)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days
}

// IrrigationFilter selects days by irrigation presence
type IrrigationFilter string

const (
	IrrigationAll IrrigationFilter = "all"
	IrrigationYes IrrigationFilter = "yes"
	IrrigationNo  IrrigationFilter = "no"
)

// HistoryQuery narrows and orders daily summaries.
// SortBy is "date", "duration" or a sensor key (sorted by that key's daily average).
// Search keeps days whose long date ("May 1, 2024") or any session's rounded
// averages or "irrigation" marker contain it, ignoring case.
type HistoryQuery struct {
	From       time.Time
	To         time.Time
	Irrigation IrrigationFilter
	Search     string
	SortBy     string
	Descending bool
}

// DefaultDateRange covers the last seven days: start of the day six days ago through the end of today
func DefaultDateRange(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	today := startOfDay(now.In(loc))
	return today.AddDate(0, 0, -6), today.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// FilterRange keeps points with From <= time <= To. Zero bounds are open.
func FilterRange(points []models.DataPoint, from, to time.Time) []models.DataPoint {
	out := make([]models.DataPoint, 0, len(points))
	for _, p := range points {
		t := p.Time()
		if !from.IsZero() && t.Before(from) {
			continue
		}
		if !to.IsZero() && t.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// QueryDaily applies q to days and returns a new slice
func QueryDaily(days []models.DailySummary, q HistoryQuery) []models.DailySummary {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]models.DailySummary, 0, len(days))
	for _, d := range days {
		if search != "" && !matchesSearch(d, search) {
			continue
		}
		if !q.From.IsZero() && d.Date.Before(startOfDay(q.From.In(d.Date.Location()))) {
			continue
		}
		if !q.To.IsZero() && d.Date.After(q.To) {
			continue
		}
		switch q.Irrigation {
		case IrrigationYes:
			if !d.HasIrrigation {
				continue
			}
		case IrrigationNo:
			if d.HasIrrigation {
				continue
			}
		}
		out = append(out, d)
	}

	less := func(a, b models.DailySummary) bool { return a.Date.Before(b.Date) }
	switch q.SortBy {
	case "", "date":
	case "duration":
		less = func(a, b models.DailySummary) bool { return a.DurationMinutes < b.DurationMinutes }
	default:
		key := q.SortBy
		less = func(a, b models.DailySummary) bool {
			av, aok := a.Averages[key]
			bv, bok := b.Averages[key]
			if aok != bok {
				return aok
			}
			return av < bv
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if q.Descending {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

func matchesSearch(d models.DailySummary, search string) bool {
	if strings.Contains(strings.ToLower(d.Date.Format("January 2, 2006")), search) {
		return true
	}
	for _, s := range d.Sessions {
		if strings.Contains(sessionText(s), search) {
			return true
		}
	}
	return false
}

// sessionText is what a session is searchable by: every average rounded to
// one decimal, light intensity to a whole number
func sessionText(s models.Session) string {
	keys := make([]string, 0, len(s.Averages))
	for k := range s.Averages {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		prec := 1
		if k == "lightIntensity" {
			prec = 0
		}
		parts = append(parts, strconv.FormatFloat(s.Averages[k], 'f', prec, 64))
	}
	if s.Irrigation {
		parts = append(parts, "irrigation")
	}
	return strings.Join(parts, " ")
}

// History runs the whole pipeline: range filter, sessions, daily rollup, query
func History(points []models.DataPoint, cfg SessionConfig, q HistoryQuery) []models.DailySummary {
	points = FilterRange(points, q.From, q.To)
	days := DailyRollup(DetectSessions(points, cfg), cfg.location())
	return QueryDaily(days, q)
}
