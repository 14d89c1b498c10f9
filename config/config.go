// Package config loads the static, rarely-changing device presets an
// operator picks by name — the CLI's substitute for the Slicer GUI's
// slider defaults, kept in TOML since it never varies per render the way
// a volume or fiducial scene file does.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Preset is one named device configuration: the gantry/optics/tile
// parameters a caller would otherwise have to set individually via
// set_pose/set_optics/set_tile.
type Preset struct {
	GantryAngleDeg float64    `toml:"gantry_angle_deg"`
	SDD            float64    `toml:"sdd_mm"`
	Threshold      float64    `toml:"threshold"`
	BlockSize      int        `toml:"block_size"`
	VolumeEulerDeg [3]float64 `toml:"volume_euler_deg"`
	VolumeTransMM  [3]float64 `toml:"volume_translation_mm"`
}

// Presets is the top-level shape of a presets.toml file: a flat map of
// preset name to Preset.
type Presets struct {
	Preset map[string]Preset `toml:"preset"`
}

// Load reads a presets.toml file.
func Load(path string) (*Presets, error) {
	var p Presets
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return nil, fmt.Errorf("config: decoding %q: %w", path, err)
	}
	return &p, nil
}

// Get returns the named preset, or an error if it isn't defined.
func (p *Presets) Get(name string) (Preset, error) {
	preset, ok := p.Preset[name]
	if !ok {
		return Preset{}, fmt.Errorf("config: no preset named %q", name)
	}
	return preset, nil
}
