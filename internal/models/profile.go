package models

// Range is an inclusive ideal interval for one sensor
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// ProfileField names a threshold range inside a CropProfile
type ProfileField string

const (
	FieldTemperature    ProfileField = "temperature"
	FieldHumidity       ProfileField = "humidity"
	FieldMoisture6cm    ProfileField = "moisture6cm"
	FieldMoisture15cm   ProfileField = "moisture15cm"
	FieldLightIntensity ProfileField = "lightIntensity"
)

// ProfileFields lists every range a crop profile carries, in display order
func ProfileFields() []ProfileField {
	return []ProfileField{
		FieldTemperature,
		FieldHumidity,
		FieldMoisture6cm,
		FieldMoisture15cm,
		FieldLightIntensity,
	}
}

// CropProfile is a named set of ideal ranges
type CropProfile struct {
	ID             string `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	Temperature    Range  `json:"temperature" yaml:"temperature"`
	Humidity       Range  `json:"humidity" yaml:"humidity"`
	Moisture6cm    Range  `json:"moisture6cm" yaml:"moisture6cm"`
	Moisture15cm   Range  `json:"moisture15cm" yaml:"moisture15cm"`
	LightIntensity Range  `json:"lightIntensity" yaml:"lightIntensity"`
}

// Range returns the range stored under field
func (p *CropProfile) Range(field ProfileField) (Range, bool) {
	if p == nil {
		return Range{}, false
	}
	switch field {
	case FieldTemperature:
		return p.Temperature, true
	case FieldHumidity:
		return p.Humidity, true
	case FieldMoisture6cm:
		return p.Moisture6cm, true
	case FieldMoisture15cm:
		return p.Moisture15cm, true
	case FieldLightIntensity:
		return p.LightIntensity, true
	}
	return Range{}, false
}

// DefaultCropProfile is seeded when no profiles are stored
func DefaultCropProfile() CropProfile {
	return CropProfile{
		ID:             "tomato-default",
		Name:           "Tomato (Default)",
		Temperature:    Range{Min: 18, Max: 29},
		Humidity:       Range{Min: 60, Max: 80},
		Moisture6cm:    Range{Min: 50, Max: 75},
		Moisture15cm:   Range{Min: 45, Max: 70},
		LightIntensity: Range{Min: 8000, Max: 15000},
	}
}
