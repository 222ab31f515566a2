// Package config loads scan settings from YAML or JSON files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/EmmaVellard/SolarConflux/core"
	"github.com/EmmaVellard/SolarConflux/ephem"
	"github.com/EmmaVellard/SolarConflux/timectrl"
)

// DefaultOutputDir is where results are written when no directory is set.
const DefaultOutputDir = "results"

// ScanConfig holds one scan request. Angles are degrees and the wind speed
// is km/s; unset optional values fall back to the engine defaults.
type ScanConfig struct {
	Bodies []string `yaml:"bodies" json:"bodies"`
	Start  string   `yaml:"start" json:"start"`
	End    string   `yaml:"end" json:"end"`
	Step   string   `yaml:"step,omitempty" json:"step,omitempty"`
	Modes  []string `yaml:"modes" json:"modes"`

	ConeWidthDeg       *float64 `yaml:"cone_width_deg,omitempty" json:"cone_width_deg,omitempty"`
	ToleranceDeg       *float64 `yaml:"tolerance_deg,omitempty" json:"tolerance_deg,omitempty"`
	ToleranceParkerDeg *float64 `yaml:"tolerance_parker_deg,omitempty" json:"tolerance_parker_deg,omitempty"`
	ArbitraryAngleDeg  *float64 `yaml:"arbitrary_angle_deg,omitempty" json:"arbitrary_angle_deg,omitempty"`
	SolarWindSpeedKmS  *float64 `yaml:"solar_wind_speed_km_s,omitempty" json:"solar_wind_speed_km_s,omitempty"`

	OutputDir   string      `yaml:"output_dir,omitempty" json:"output_dir,omitempty"`
	Plots       *bool       `yaml:"plots,omitempty" json:"plots,omitempty"`
	CachePath   string      `yaml:"cache_path,omitempty" json:"cache_path,omitempty"`
	ArchivePath string      `yaml:"archive_path,omitempty" json:"archive_path,omitempty"`
	HorizonsURL string      `yaml:"horizons_url,omitempty" json:"horizons_url,omitempty"`
	TLE         []ephem.TLE `yaml:"tle,omitempty" json:"tle,omitempty"`
	Workers     int         `yaml:"workers,omitempty" json:"workers,omitempty"`
}

// Load reads a scan configuration from path. The format follows the file
// extension: .yaml/.yml or .json.
func Load(path string) (*ScanConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg ScanConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	return &cfg, nil
}

// LoadTLEs reads a list of TLE entries from a YAML or JSON file and
// validates each one.
func LoadTLEs(path string) ([]ephem.TLE, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tles []ephem.TLE
	if err := yaml.Unmarshal(data, &tles); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for _, t := range tles {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", core.ErrConfiguration, path, err)
		}
	}
	return tles, nil
}

// Grid builds the scan time grid.
func (c *ScanConfig) Grid() (timectrl.Grid, error) {
	start, err := timectrl.ParseTime(c.Start)
	if err != nil {
		return timectrl.Grid{}, fmt.Errorf("start: %w", err)
	}
	end, err := timectrl.ParseTime(c.End)
	if err != nil {
		return timectrl.Grid{}, fmt.Errorf("end: %w", err)
	}
	step, err := timectrl.ParseStep(c.Step)
	if err != nil {
		return timectrl.Grid{}, err
	}
	return timectrl.NewGrid(start, end, step)
}

// Params converts the user-facing units into engine parameters.
func (c *ScanConfig) Params() core.Params {
	p := core.DefaultParams()
	if c.ConeWidthDeg != nil {
		p.ConeWidth = core.Radians(*c.ConeWidthDeg)
	}
	if c.ToleranceDeg != nil {
		p.Tolerance = core.Radians(*c.ToleranceDeg)
	}
	if c.ToleranceParkerDeg != nil {
		p.ToleranceParker = core.Radians(*c.ToleranceParkerDeg)
	}
	if c.ArbitraryAngleDeg != nil {
		p = p.WithArbitraryAngle(core.Radians(*c.ArbitraryAngleDeg))
	}
	if c.SolarWindSpeedKmS != nil {
		p.SolarWindSpeed = *c.SolarWindSpeedKmS * 1e3
	}
	return p
}

// PlotsEnabled reports whether plots should be rendered (default true).
func (c *ScanConfig) PlotsEnabled() bool {
	return c.Plots == nil || *c.Plots
}

// Output returns the output directory, defaulting to DefaultOutputDir.
func (c *ScanConfig) Output() string {
	if c.OutputDir == "" {
		return DefaultOutputDir
	}
	return c.OutputDir
}

// Validate checks that the request can be run. Mode names and parameters
// are checked by the scanner itself so a bad mode does not block the others.
func (c *ScanConfig) Validate() error {
	if len(c.Bodies) == 0 {
		return fmt.Errorf("%w: no bodies requested", core.ErrConfiguration)
	}
	if len(c.Modes) == 0 {
		return fmt.Errorf("%w: no alignment modes requested", core.ErrConfiguration)
	}
	if _, err := c.Grid(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrConfiguration, err)
	}
	for _, t := range c.TLE {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%w: %v", core.ErrConfiguration, err)
		}
	}
	return nil
}

// SplitList splits a comma separated flag value, trimming blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Float returns a pointer to v, for building configs in code.
func Float(v float64) *float64 { return &v }

// Window formats the configured window for logs.
func (c *ScanConfig) Window() string {
	g, err := c.Grid()
	if err != nil {
		return c.Start + " to " + c.End
	}
	return g.Start.Format(time.DateOnly) + " to " + g.Stop.Format(time.DateOnly) + " every " + g.Step.String()
}
