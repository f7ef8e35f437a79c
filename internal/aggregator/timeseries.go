package aggregator

import (
	"sort"

	"agrosense/internal/models"
)

// Aggregator reshapes raw device nodes into time series and statistics.
// It holds no state besides its normalizer and is safe for concurrent use.
type Aggregator struct {
	normalizer *Normalizer
}

// NewAggregator creates an aggregator over the given normalizer
func NewAggregator(normalizer *Normalizer) *Aggregator {
	if normalizer == nil {
		normalizer = NewNormalizer(DefaultNormalizerConfig())
	}
	return &Aggregator{normalizer: normalizer}
}

type keyedEpoch struct {
	key   string
	epoch int64
}

// sortedEpochs returns the integer epoch keys of records, ascending
func sortedEpochs(records map[string]any) []keyedEpoch {
	out := make([]keyedEpoch, 0, len(records))
	for k := range records {
		if epoch, ok := ParseEpoch(k); ok {
			out = append(out, keyedEpoch{key: k, epoch: epoch})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].epoch != out[j].epoch {
			return out[i].epoch < out[j].epoch
		}
		return out[i].key < out[j].key
	})
	return out
}

// Points normalizes every valid record of a device, sorted by timestamp
func (a *Aggregator) Points(raw DeviceRaw) []models.DataPoint {
	epochs := sortedEpochs(raw.Records)
	points := make([]models.DataPoint, 0, len(epochs))
	for _, e := range epochs {
		if p, ok := a.normalizer.Normalize(e.key, raw.Records[e.key], raw.Signal); ok {
			points = append(points, p)
		}
	}
	return points
}

// Aggregate produces {fullData, current, stats} for one device node.
// Malformed input degrades to the empty result.
func (a *Aggregator) Aggregate(node any) models.ProcessedDevice {
	points := a.Points(SplitDeviceRaw(node))
	if len(points) == 0 {
		return models.EmptyProcessedDevice()
	}

	current := points[len(points)-1]
	return models.ProcessedDevice{
		FullData: points,
		Current:  &current,
		Stats:    ComputeStats(points),
	}
}

// ComputeStats derives per-key statistics from a sorted series.
// Only finite numbers count; a key with none is omitted. Current is the
// key's value at the last point, or nil when that point lacks it.
func ComputeStats(points []models.DataPoint) models.DeviceStats {
	stats := models.DeviceStats{}
	if len(points) == 0 {
		return stats
	}

	type acc struct {
		min, max, sum float64
		count         int
	}
	accs := make(map[string]*acc)
	for _, p := range points {
		for k, v := range p.Readings {
			f, ok := v.Finite()
			if !ok {
				continue
			}
			a, seen := accs[k]
			if !seen {
				accs[k] = &acc{min: f, max: f, sum: f, count: 1}
				continue
			}
			a.min = min(a.min, f)
			a.max = max(a.max, f)
			a.sum += f
			a.count++
		}
	}

	last := points[len(points)-1]
	for k, a := range accs {
		// rounding in sum/count can step just outside [min, max]
		avg := min(max(a.sum/float64(a.count), a.min), a.max)
		s := models.Stats{Min: a.min, Max: a.max, Avg: avg}
		if f, ok := last.Number(k); ok {
			s.Current = &f
		}
		stats[k] = s
	}
	return stats
}
