package tenant

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mannhummel-graphreasoner/engine/internal/apperrors"
)

// Loader reads a tenant Config from a YAML file. The core reads config
// once per process; a reload endpoint is permitted but not provided
// here — see spec §4.7's closing note.
type Loader struct{}

func NewLoader() *Loader { return &Loader{} }

// Load parses path and validates that the sections the core depends on
// are present and non-empty. Any YAML syntax error or missing required
// section is a *apperrors.ConfigError — fatal at startup, never
// recovered from mid-run.
func (l *Loader) Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &apperrors.ConfigError{Path: path, Err: err}
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, &apperrors.ConfigError{Path: path, Err: err}
	}

	if err := validate(&cfg); err != nil {
		return nil, &apperrors.ConfigError{Path: path, Err: err}
	}

	if cfg.OrientationThreshold == 0 {
		cfg.OrientationThreshold = 600
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if len(cfg.ProductFamilies) == 0 {
		return fmt.Errorf("product_families must not be empty")
	}
	if len(cfg.MaterialHierarchy) == 0 {
		return fmt.Errorf("material_hierarchy must not be empty")
	}
	if len(cfg.DimensionMapping) == 0 {
		return fmt.Errorf("dimension_mapping must not be empty")
	}
	if cfg.DefaultMaterial == "" {
		return fmt.Errorf("default_material must be set")
	}
	return nil
}
