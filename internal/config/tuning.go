package config

import (
	_ "embed"
	"fmt"
	"os"

	"loop-route-service/internal/services"

	"gopkg.in/yaml.v3"
)

//go:embed tuning.yaml
var defaultTuning []byte

// Tuning is the file-backed part of the configuration: search constants and
// the opaque costing bundle forwarded to the routing service.
type Tuning struct {
	Search  services.Params `yaml:"search"`
	Profile string          `yaml:"profile"`
	Costing map[string]any  `yaml:"costing"`
}

// LoadTuning parses the embedded defaults and then overlays path, when non-empty.
// Keys missing from the override keep their default values.
func LoadTuning(path string) (Tuning, error) {
	t := Tuning{Search: services.DefaultParams()}
	if err := yaml.Unmarshal(defaultTuning, &t); err != nil {
		return Tuning{}, fmt.Errorf("load tuning: parse embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Tuning{}, fmt.Errorf("load tuning: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &t); err != nil {
			return Tuning{}, fmt.Errorf("load tuning: parse %q: %w", path, err)
		}
	}

	if t.Profile == "" {
		t.Profile = "pedestrian"
	}
	if err := t.Search.Validate(); err != nil {
		return Tuning{}, fmt.Errorf("load tuning: %w", err)
	}

	return t, nil
}
