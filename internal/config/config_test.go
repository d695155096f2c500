package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flynnplatt/common-mapping-client/internal/proj"
	"github.com/flynnplatt/common-mapping-client/internal/units"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "console" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.DataDir != ".data" {
		t.Errorf("data_dir = %q", cfg.DataDir)
	}
	if cfg.DefaultProjection.Code != proj.LatLon || cfg.DefaultProjection.Extent != [4]float64{-180, -90, 180, 90} {
		t.Errorf("default projection = %+v", cfg.DefaultProjection)
	}
	if len(cfg.Units) != len(units.DefaultEntries()) {
		t.Errorf("units = %+v", cfg.Units)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  format: json
data_dir: /srv/maps
default_projection:
  code: EPSG:3857
  extent: [-20026376.39, -20048966.10, 20026376.39, 20048966.10]
units:
  - value: metric
    label: Metric
    abbrev: m
    qty_type: m
  - value: rods
    label: Rods
    abbrev: rd
    to_meters: 5.0292
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" || cfg.DataDir != "/srv/maps" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.DefaultProjection.Code != proj.WebMercator || cfg.DefaultProjection.Extent[3] != 20048966.10 {
		t.Errorf("default projection = %+v", cfg.DefaultProjection)
	}

	table, err := cfg.UnitsTable()
	if err != nil {
		t.Fatal(err)
	}
	if e, ok := table.Lookup("rods"); !ok || e.ToMeters != 5.0292 {
		t.Errorf("rods = %+v, %v", e, ok)
	}
	if _, ok := table.Lookup(units.Imperial); ok {
		t.Error("configured units replace the defaults")
	}
}

func TestLoad_Env(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CMC_DATA_DIR", "/tmp/cmc")
	t.Setenv("CMC_LOG_LEVEL", "warn")
	t.Setenv("CMC_DEFAULT_PROJECTION_CODE", "EPSG:3857")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != "/tmp/cmc" || cfg.Log.Level != "warn" || cfg.DefaultProjection.Code != proj.WebMercator {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"bad format", "log:\n  format: xml\n", "log.format"},
		{"inverted extent", "default_projection:\n  extent: [10, 0, -10, 5]\n", "default_projection.extent"},
		{"bad units", "units:\n  - value: parsecs\n    qty_type: pc\n", "unknown quantity type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}
