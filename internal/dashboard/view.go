package dashboard

import (
	"sort"

	"agrosense/internal/aggregator"
	"agrosense/internal/models"
	"agrosense/internal/sensors"
	"agrosense/internal/threshold"
)

// OverviewView is the ActiveView value for the fleet overview
const OverviewView = "overview"

// View is one rendered state of the session. A published View is never modified.
type View struct {
	Version        uint64              `json:"version"`
	Masters        []string            `json:"masters"`
	SelectedMaster string              `json:"selectedMaster"`
	Devices        []string            `json:"devices"`
	ActiveView     string              `json:"activeView"`
	Loading        bool                `json:"loading"`
	Profile        *models.CropProfile `json:"profile"`
	Overview       []OverviewCard      `json:"overview,omitempty"`
	Device         *DeviceView         `json:"device,omitempty"`
}

// OverviewCard is one device on the fleet overview
type OverviewCard struct {
	ID       string                      `json:"id"`
	Label    string                      `json:"label"`
	Online   bool                        `json:"online"`
	Latest   *models.DataPoint           `json:"latest"`
	Statuses map[string]threshold.Status `json:"statuses"`
}

// SensorCard is one tracked key of the device view
type SensorCard struct {
	sensors.Descriptor
	Stats  models.Stats     `json:"stats"`
	Status threshold.Status `json:"status"`
}

// PanelValue is one reading on the location or IMU panel
type PanelValue struct {
	sensors.Descriptor
	Value *float64 `json:"value"`
}

// DeviceView is the detail view of one device
type DeviceView struct {
	ID         string                 `json:"id"`
	Label      string                 `json:"label"`
	Data       models.ProcessedDevice `json:"data"`
	Cards      []SensorCard           `json:"cards"`
	Location   []PanelValue           `json:"location"`
	IMU        []PanelValue           `json:"imu"`
	Mood       threshold.MoodReport   `json:"mood"`
	Irrigation bool                   `json:"irrigation"`
}

type renderer struct {
	agg      *aggregator.Aggregator
	eval     *threshold.Evaluator
	registry *sensors.Registry
}

func (r *renderer) overview(ids []string, devices map[string]any, profile *models.CropProfile) []OverviewCard {
	fleet := r.agg.FleetSnapshot(ids, devices)
	cards := make([]OverviewCard, 0, len(fleet))
	for _, d := range fleet {
		cards = append(cards, OverviewCard{
			ID:       d.ID,
			Label:    aggregator.DeviceLabel(d.ID),
			Online:   d.Online(),
			Latest:   d.Latest,
			Statuses: r.eval.ClassifyPoint(d.Latest, profile),
		})
	}
	return cards
}

func (r *renderer) device(id string, data models.ProcessedDevice, irrigationOn bool, profile *models.CropProfile) *DeviceView {
	keys := make([]string, 0, len(data.Stats))
	for k := range data.Stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	statuses := r.eval.ClassifyStats(data.Stats, profile)
	cards := make([]SensorCard, 0, len(keys))
	for _, k := range keys {
		d := r.registry.Lookup(k)
		if d.Group != sensors.GroupCard {
			continue
		}
		cards = append(cards, SensorCard{Descriptor: d, Stats: data.Stats[k], Status: statuses[k]})
	}

	return &DeviceView{
		ID:         id,
		Label:      aggregator.DeviceLabel(id),
		Data:       data,
		Cards:      cards,
		Location:   r.panel(sensors.GroupLocation, data.Current),
		IMU:        r.panel(sensors.GroupIMU, data.Current),
		Mood:       r.eval.EvaluateMood(data.Stats, profile),
		Irrigation: irrigationOn,
	}
}

// panel lists the group's keys present on the latest point
func (r *renderer) panel(g sensors.Group, latest *models.DataPoint) []PanelValue {
	var out []PanelValue
	if latest == nil {
		return out
	}
	for _, d := range r.registry.InGroup(g) {
		if v, ok := latest.Number(d.Key); ok {
			out = append(out, PanelValue{Descriptor: d, Value: &v})
		}
	}
	return out
}
