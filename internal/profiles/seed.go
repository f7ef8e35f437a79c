package profiles

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"agrosense/internal/models"
)

// SeedFile is the YAML layout for default crop profiles:
//
//	profiles:
//	  - id: tomato-default
//	    name: Tomato (Default)
//	    temperature: {min: 18, max: 29}
type SeedFile struct {
	Profiles []models.CropProfile `yaml:"profiles"`
}

// LoadSeedFile reads default profiles from path. An empty path yields the built-in default.
func LoadSeedFile(path string) ([]models.CropProfile, error) {
	if path == "" {
		return []models.CropProfile{models.DefaultCropProfile()}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	seen := make(map[string]bool, len(seed.Profiles))
	for i, p := range seed.Profiles {
		if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("seed profile %d: id and name are required", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("seed profile %d: duplicate id %s", i, p.ID)
		}
		seen[p.ID] = true
	}
	return seed.Profiles, nil
}
