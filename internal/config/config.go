// Package config loads application configuration from defaults, an
// optional YAML file and CMC_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/flynnplatt/common-mapping-client/internal/proj"
	"github.com/flynnplatt/common-mapping-client/internal/units"
)

// Config holds all application configuration.
type Config struct {
	Log               LogConfig              `mapstructure:"log"`
	DataDir           string                 `mapstructure:"data_dir"`
	DefaultProjection proj.DefaultProjection `mapstructure:"default_projection"`
	Units             []units.Entry          `mapstructure:"units"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// UnitsTable builds the configured units table.
func (c *Config) UnitsTable() (*units.Table, error) {
	return units.NewTable(c.Units)
}

// Load reads configuration. An empty path searches for config.yaml in the
// working directory and ./configs; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("data_dir", ".data")
	v.SetDefault("default_projection.code", proj.LatLon)
	v.SetDefault("default_projection.extent", []float64{-180, -90, 180, 90})

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	// CMC_DEFAULT_PROJECTION_CODE → default_projection.code
	v.SetEnvPrefix("CMC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(cfg.Units) == 0 {
		cfg.Units = units.DefaultEntries()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q is not a zerolog level", c.Log.Level))
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		errs = append(errs, fmt.Sprintf("log.format must be console or json, got %q", c.Log.Format))
	}
	if c.DataDir == "" {
		errs = append(errs, "data_dir is required")
	}
	if c.DefaultProjection.Code == "" {
		errs = append(errs, "default_projection.code is required")
	}
	if e := c.DefaultProjection.Extent; e != [4]float64{} && (e[0] >= e[2] || e[1] >= e[3]) {
		errs = append(errs, fmt.Sprintf("default_projection.extent must be [minX, minY, maxX, maxY], got %v", e))
	}
	if _, err := c.UnitsTable(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
