package aggregator

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"agrosense/internal/models"
	"agrosense/internal/sensors"
)

// SignalPolicy decides what happens when a record has no signal-strength entry
type SignalPolicy string

const (
	// SignalSentinel fills the field with NormalizerConfig.SignalSentinel
	SignalSentinel SignalPolicy = "sentinel"
	// SignalAbsent leaves the field out of the point
	SignalAbsent SignalPolicy = "absent"
)

// ParseSignalPolicy validates a policy name
func ParseSignalPolicy(s string) (SignalPolicy, error) {
	switch p := SignalPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case SignalSentinel, SignalAbsent:
		return p, nil
	}
	return "", fmt.Errorf("unknown signal policy %q", s)
}

// Sub-mapping names used by firmware that splits a device node
const (
	sensorDataKey = "sensorData"
	controlKey    = "Control"
)

var signalMappingKeys = []string{"signalStrength", "rssi", "RSSI"}

// NormalizerConfig holds configuration for record normalization
type NormalizerConfig struct {
	SignalPolicy   SignalPolicy
	SignalSentinel float64 // dBm placeholder; biases averages toward the floor
	SignalField    string  // field the merged signal strength is stored under
}

// DefaultNormalizerConfig returns default normalization configuration
func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{
		SignalPolicy:   SignalSentinel,
		SignalSentinel: -100,
		SignalField:    sensors.SignalKey,
	}
}

// DeviceRaw is one device node from the store, split into its parts
type DeviceRaw struct {
	Records map[string]any // epoch-seconds string -> record
	Signal  map[string]any // epoch-seconds string -> signal strength; nil when the node has none
	Control map[string]any
}

// SplitDeviceRaw interprets a device node. Both the flat layout (epoch keys
// directly under the device) and the split layout (sensorData + signal
// sub-mappings) are accepted. Anything that is not an object yields an empty DeviceRaw.
func SplitDeviceRaw(node any) DeviceRaw {
	m, ok := node.(map[string]any)
	if !ok {
		return DeviceRaw{}
	}

	raw := DeviceRaw{Records: m}
	if sd, ok := m[sensorDataKey].(map[string]any); ok {
		raw.Records = sd
	}
	for _, k := range signalMappingKeys {
		if sig, ok := m[k].(map[string]any); ok {
			raw.Signal = sig
			break
		}
	}
	if ctl, ok := m[controlKey].(map[string]any); ok {
		raw.Control = ctl
	}
	return raw
}

// Normalizer turns raw records into DataPoints
type Normalizer struct {
	config NormalizerConfig
}

// NewNormalizer creates a normalizer
func NewNormalizer(config NormalizerConfig) *Normalizer {
	if config.SignalField == "" {
		config.SignalField = sensors.SignalKey
	}
	if config.SignalPolicy == "" {
		config.SignalPolicy = SignalSentinel
	}
	return &Normalizer{config: config}
}

// Config returns the active configuration
func (n *Normalizer) Config() NormalizerConfig {
	return n.config
}

// Normalize converts one record. ok is false when the epoch key is not an
// integer or the record is not an object. Values other than numbers and
// booleans are dropped. A record's own "timestamp" field never overrides the epoch.
func (n *Normalizer) Normalize(epochKey string, record any, signal map[string]any) (models.DataPoint, bool) {
	epoch, ok := ParseEpoch(epochKey)
	if !ok {
		return models.DataPoint{}, false
	}
	rec, ok := record.(map[string]any)
	if !ok || rec == nil {
		return models.DataPoint{}, false
	}

	readings := make(models.SensorReading, len(rec)+1)
	for k, v := range rec {
		if k == "timestamp" {
			continue
		}
		if val, ok := toValue(v); ok {
			readings[k] = val
		}
	}

	if signal != nil {
		if s, ok := signalValue(signal[epochKey]); ok {
			readings[n.config.SignalField] = models.Number(s)
		} else if _, has := readings[n.config.SignalField]; !has && n.config.SignalPolicy == SignalSentinel {
			readings[n.config.SignalField] = models.Number(n.config.SignalSentinel)
		}
	}

	return models.DataPoint{Timestamp: epoch * 1000, Readings: readings}, true
}

// ParseEpoch parses a seconds-granularity epoch key
func ParseEpoch(key string) (int64, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return 0, false
	}
	epoch, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return 0, false
	}
	return epoch, true
}

func toValue(v any) (models.Value, bool) {
	switch x := v.(type) {
	case bool:
		return models.Bool(x), true
	case float64:
		return models.Number(x), true
	case float32:
		return models.Number(float64(x)), true
	case int:
		return models.Number(float64(x)), true
	case int64:
		return models.Number(float64(x)), true
	case int32:
		return models.Number(float64(x)), true
	case uint64:
		return models.Number(float64(x)), true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return models.Value{}, false
		}
		return models.Number(f), true
	}
	return models.Value{}, false
}

// signalValue accepts a bare number or an object carrying one
func signalValue(v any) (float64, bool) {
	if m, ok := v.(map[string]any); ok {
		for _, k := range []string{"RSSI", "rssi", "value"} {
			if inner, ok := m[k]; ok {
				return signalValue(inner)
			}
		}
		return 0, false
	}
	val, ok := toValue(v)
	if !ok {
		return 0, false
	}
	return val.Finite()
}
