package models

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"time"
)

// ValueKind tags a sensor value as numeric or boolean
type ValueKind uint8

const (
	NumberValue ValueKind = iota + 1
	BoolValue
)

// Value is a single tagged sensor reading
type Value struct {
	Kind   ValueKind
	Number float64
	Bool   bool
}

// Number wraps a numeric reading
func Number(f float64) Value { return Value{Kind: NumberValue, Number: f} }

// Bool wraps a boolean reading (e.g. an irrigation flag)
func Bool(b bool) Value { return Value{Kind: BoolValue, Bool: b} }

// IsNumber reports whether the value is numeric, finite or not
func (v Value) IsNumber() bool { return v.Kind == NumberValue }

// Finite returns the numeric value when it is a finite number
func (v Value) Finite() (float64, bool) {
	if v.Kind != NumberValue || math.IsNaN(v.Number) || math.IsInf(v.Number, 0) {
		return 0, false
	}
	return v.Number, true
}

// Truthy follows the device convention: true, or any non-zero number
func (v Value) Truthy() bool {
	switch v.Kind {
	case BoolValue:
		return v.Bool
	case NumberValue:
		return v.Number != 0 && !math.IsNaN(v.Number)
	}
	return false
}

// Interface returns the plain Go value (float64 or bool)
func (v Value) Interface() any {
	if v.Kind == BoolValue {
		return v.Bool
	}
	return v.Number
}

// MarshalJSON writes non-finite numbers as null since JSON has no NaN
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case BoolValue:
		return strconv.AppendBool(nil, v.Bool), nil
	case NumberValue:
		if f, ok := v.Finite(); ok {
			return json.Marshal(f)
		}
	}
	return []byte("null"), nil
}

// SensorReading maps arbitrary sensor keys to tagged values
type SensorReading map[string]Value

// Keys returns the reading keys in lexical order
func (r SensorReading) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DataPoint is one timestamped reading. Timestamp is in milliseconds since epoch.
type DataPoint struct {
	Timestamp int64
	Readings  SensorReading
}

// Time returns the point timestamp as time.Time
func (p DataPoint) Time() time.Time {
	return time.UnixMilli(p.Timestamp)
}

// Number returns the finite numeric value for key, if any
func (p DataPoint) Number(key string) (float64, bool) {
	v, ok := p.Readings[key]
	if !ok {
		return 0, false
	}
	return v.Finite()
}

// MarshalJSON flattens the point into {"timestamp": ms, "<key>": value, ...}
func (p DataPoint) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"timestamp":`)
	buf.WriteString(strconv.FormatInt(p.Timestamp, 10))
	for _, k := range p.Readings.Keys() {
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := p.Readings[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Stats summarises one sensor key over a device's time series.
// Current is the value at the last DataPoint and is nil when that point lacks the key.
type Stats struct {
	Min     float64  `json:"min"`
	Max     float64  `json:"max"`
	Avg     float64  `json:"avg"`
	Current *float64 `json:"current"`
}

// DeviceStats maps sensor keys to their statistics
type DeviceStats map[string]Stats

// ProcessedDevice is the aggregation result for one device
type ProcessedDevice struct {
	FullData []DataPoint `json:"fullData"`
	Current  *DataPoint  `json:"current"`
	Stats    DeviceStats `json:"stats"`
}

// EmptyProcessedDevice is the result for a device with no usable records
func EmptyProcessedDevice() ProcessedDevice {
	return ProcessedDevice{
		FullData: []DataPoint{},
		Current:  nil,
		Stats:    DeviceStats{},
	}
}

// OverviewDevice is one fleet overview entry. Latest is nil for offline devices.
type OverviewDevice struct {
	ID     string     `json:"id"`
	Latest *DataPoint `json:"latest"`
}

// Online reports whether the device has reported at least one valid record
func (d OverviewDevice) Online() bool {
	return d.Latest != nil
}

// DeviceSeries is one device's normalized series as of one store push
type DeviceSeries struct {
	MasterID string
	DeviceID string
	Points   []DataPoint
}
