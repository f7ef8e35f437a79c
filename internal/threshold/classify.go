// Package threshold judges readings against crop profile ranges.
// Every function fails open: without a usable range or a finite value the answer is Ideal.
package threshold

import (
	"math"

	"agrosense/internal/models"
	"agrosense/internal/sensors"
)

// Status is the classification of one reading
type Status string

const (
	Low   Status = "low"
	Ideal Status = "ideal"
	High  Status = "high"
)

// Classify places value relative to r. A nil range or non-finite value is Ideal.
func Classify(value float64, r *models.Range) Status {
	if r == nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return Ideal
	}
	switch {
	case value < r.Min:
		return Low
	case value > r.Max:
		return High
	}
	return Ideal
}

// Evaluator classifies sensor keys using the registry's key to profile field table
type Evaluator struct {
	registry *sensors.Registry
}

// NewEvaluator creates an evaluator; a nil registry uses the default one
func NewEvaluator(registry *sensors.Registry) *Evaluator {
	if registry == nil {
		registry = sensors.Default()
	}
	return &Evaluator{registry: registry}
}

// RangeFor returns the profile range that judges key, or nil
func (e *Evaluator) RangeFor(key string, profile *models.CropProfile) *models.Range {
	field, ok := e.registry.ProfileField(key)
	if !ok {
		return nil
	}
	r, ok := profile.Range(field)
	if !ok {
		return nil
	}
	return &r
}

// ClassifyKey classifies a reading of key against profile
func (e *Evaluator) ClassifyKey(key string, value float64, profile *models.CropProfile) Status {
	return Classify(value, e.RangeFor(key, profile))
}

// ClassifyStats classifies every stat's current value. Stats without a current value are Ideal.
func (e *Evaluator) ClassifyStats(stats models.DeviceStats, profile *models.CropProfile) map[string]Status {
	out := make(map[string]Status, len(stats))
	for key, st := range stats {
		if st.Current == nil {
			out[key] = Ideal
			continue
		}
		out[key] = e.ClassifyKey(key, *st.Current, profile)
	}
	return out
}

// ClassifyPoint classifies the finite numeric readings of one point
func (e *Evaluator) ClassifyPoint(p *models.DataPoint, profile *models.CropProfile) map[string]Status {
	out := make(map[string]Status)
	if p == nil {
		return out
	}
	for key := range p.Readings {
		if v, ok := p.Number(key); ok {
			out[key] = e.ClassifyKey(key, v, profile)
		}
	}
	return out
}
