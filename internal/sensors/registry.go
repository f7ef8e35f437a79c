// Package sensors describes the sensor keys firmware is known to emit.
// Unknown keys get a label derived from the key itself, so new firmware
// revisions render without code changes.
package sensors

import (
	"strings"
	"unicode"

	"agrosense/internal/models"
)

// Group places a sensor on a dashboard panel
type Group string

const (
	GroupCard     Group = "card"
	GroupLocation Group = "location"
	GroupIMU      Group = "imu"
)

// Descriptor is the display metadata for one sensor key
type Descriptor struct {
	Key          string              `json:"key"`
	Label        string              `json:"label"`
	Unit         string              `json:"unit"`
	Color        string              `json:"color"`
	ProfileField models.ProfileField `json:"profileField,omitempty"`
	Group        Group               `json:"group"`
	Known        bool                `json:"known"`
}

// SignalKey is the field that carries merged signal strength
const SignalKey = "RSSI"

var known = []Descriptor{
	{Key: "temperature", Label: "Temperature", Unit: "°C", Color: "amber", ProfileField: models.FieldTemperature},
	{Key: "humidity", Label: "Humidity", Unit: "%", Color: "sky", ProfileField: models.FieldHumidity},
	{Key: "soilMoisture6cm", Label: "Soil Moisture (6cm)", Unit: "cb", Color: "emerald", ProfileField: models.FieldMoisture6cm},
	{Key: "soilMoisture15cm", Label: "Soil Moisture (15cm)", Unit: "cb", Color: "teal", ProfileField: models.FieldMoisture15cm},
	{Key: "lightIntensity", Label: "Light Intensity", Unit: "lux", Color: "yellow", ProfileField: models.FieldLightIntensity},
	{Key: "weight", Label: "Weight", Unit: "g", Color: "slate"},
	{Key: "tilt", Label: "Tilt Angle", Unit: "°", Color: "blue", Group: GroupIMU},
	{Key: SignalKey, Label: "Signal Strength", Unit: "dBm", Color: "violet"},
	{Key: "latitude", Label: "Latitude", Unit: "°", Color: "purple", Group: GroupLocation},
	{Key: "longitude", Label: "Longitude", Unit: "°", Color: "purple", Group: GroupLocation},
	{Key: "altitude", Label: "Altitude", Unit: "m", Color: "indigo", Group: GroupLocation},
	{Key: "gpsAccuracy", Label: "GPS Accuracy", Unit: "m", Color: "pink", Group: GroupLocation},
	{Key: "accelerationX", Label: "Acceleration X", Unit: "G", Color: "slate", Group: GroupIMU},
	{Key: "accelerationY", Label: "Acceleration Y", Unit: "G", Color: "slate", Group: GroupIMU},
	{Key: "accelerationZ", Label: "Acceleration Z", Unit: "G", Color: "slate", Group: GroupIMU},
	{Key: "gyroX", Label: "Gyroscope X", Unit: "°/s", Color: "slate", Group: GroupIMU},
	{Key: "gyroY", Label: "Gyroscope Y", Unit: "°/s", Color: "slate", Group: GroupIMU},
	{Key: "gyroZ", Label: "Gyroscope Z", Unit: "°/s", Color: "slate", Group: GroupIMU},
}

// Registry resolves sensor keys to descriptors
type Registry struct {
	exact map[string]Descriptor
	fold  map[string]Descriptor
	order []string
}

// NewRegistry returns a registry preloaded with the known firmware keys
func NewRegistry() *Registry {
	r := &Registry{
		exact: make(map[string]Descriptor, len(known)),
		fold:  make(map[string]Descriptor, len(known)),
	}
	for _, d := range known {
		r.Register(d)
	}
	return r
}

var defaultRegistry = NewRegistry()

// Default returns the shared registry of known keys
func Default() *Registry { return defaultRegistry }

// Register adds or replaces a descriptor
func (r *Registry) Register(d Descriptor) {
	if d.Group == "" {
		d.Group = GroupCard
	}
	d.Known = true
	if _, ok := r.exact[d.Key]; !ok {
		r.order = append(r.order, d.Key)
	}
	r.exact[d.Key] = d
	r.fold[strings.ToLower(d.Key)] = d
}

// Lookup returns the descriptor for key. Matching is exact first, then
// case-insensitive ("Temperature" resolves to "temperature"). Unknown keys
// get an auto-formatted label and no profile field.
func (r *Registry) Lookup(key string) Descriptor {
	if d, ok := r.exact[key]; ok {
		return d
	}
	if d, ok := r.fold[strings.ToLower(key)]; ok {
		d.Key = key
		return d
	}
	return Descriptor{
		Key:   key,
		Label: AutoLabel(key),
		Color: "slate",
		Group: GroupCard,
	}
}

// InGroup returns the registered descriptors of a group in registration order
func (r *Registry) InGroup(g Group) []Descriptor {
	var out []Descriptor
	for _, key := range r.order {
		if d := r.exact[key]; d.Group == g {
			out = append(out, d)
		}
	}
	return out
}

// ProfileField returns the crop profile field that judges key
func (r *Registry) ProfileField(key string) (models.ProfileField, bool) {
	d := r.Lookup(key)
	return d.ProfileField, d.ProfileField != ""
}

// AutoLabel turns a camelCase key into a title: "soilPh" -> "Soil Ph".
// A space is inserted before every upper-case letter and the first letter is upper-cased.
func AutoLabel(key string) string {
	var b strings.Builder
	for i, r := range key {
		if unicode.IsUpper(r) {
			b.WriteRune(' ')
		} else if i == 0 {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
	}
	return strings.TrimLeft(b.String(), " ")
}
