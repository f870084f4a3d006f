package tenant_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mannhummel-graphreasoner/engine/internal/apperrors"
	"github.com/mannhummel-graphreasoner/engine/internal/tenant"
)

func TestLoad_Success(t *testing.T) {
	cfg, err := tenant.NewLoader().Load("../../tenant.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DomainID != "mann_hummel_hvac" {
		t.Errorf("DomainID = %q, want mann_hummel_hvac", cfg.DomainID)
	}
	if len(cfg.ProductFamilies) != 3 {
		t.Errorf("ProductFamilies = %d, want 3", len(cfg.ProductFamilies))
	}
	if cfg.OrientationThreshold != 600 {
		t.Errorf("OrientationThreshold = %v, want 600", cfg.OrientationThreshold)
	}
}

func TestLoad_MissingFileIsConfigError(t *testing.T) {
	_, err := tenant.NewLoader().Load("/nonexistent/tenant.yaml")
	var cfgErr *apperrors.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want *apperrors.ConfigError", err)
	}
}

func TestLoad_MalformedYAMLIsConfigError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tenant.yaml")
	if err := os.WriteFile(path, []byte("product_families: [GDB\n"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	_, err := tenant.NewLoader().Load(path)
	var cfgErr *apperrors.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want *apperrors.ConfigError", err)
	}
}

func TestLoad_MissingRequiredSectionIsConfigError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tenant.yaml")
	// Valid YAML, but missing material_hierarchy/dimension_mapping/default_material.
	if err := os.WriteFile(path, []byte("product_families: [GDB]\n"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	_, err := tenant.NewLoader().Load(path)
	var cfgErr *apperrors.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want *apperrors.ConfigError", err)
	}
}
