// Package fiducial holds 3-D landmark points and their on-disk markup
// format, the YAML/JSON sidecar the CLI loads alongside a volume to drive
// the engine's projection operation.
package fiducial

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

// Point is a single named 3-D landmark in volume/world space.
type Point struct {
	Name     string  `json:"name" yaml:"name"`
	Position [3]float64 `json:"position" yaml:"position"`
}

// Vec3 returns the point's position as an mgl64.Vec3 for use with the
// geometry package.
func (p Point) Vec3() mgl64.Vec3 {
	return mgl64.Vec3{p.Position[0], p.Position[1], p.Position[2]}
}

// Collection is a named set of fiducial points, the unit the CLI loads from
// and writes projected image coordinates to.
type Collection struct {
	Points []Point `json:"points" yaml:"points"`
}

// Load reads a fiducial collection from a YAML or JSON file, selected by
// extension, matching volume.LoadConfig's sidecar convention.
func Load(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fiducial: reading %q: %w", path, err)
	}
	var c Collection
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("fiducial: parsing YAML %q: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("fiducial: parsing JSON %q: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("fiducial: unrecognised extension %q", ext)
	}
	if len(c.Points) == 0 {
		return nil, fmt.Errorf("fiducial: %q contains no points", path)
	}
	return &c, nil
}

// Projected is a fiducial point's 2-D detector-pixel projection, the output
// shape written back out by the CLI.
type Projected struct {
	Name string  `json:"name" yaml:"name"`
	I    float64 `json:"i" yaml:"i"`
	J    float64 `json:"j" yaml:"j"`
}

// Save writes projected points as YAML or JSON, selected by extension.
func Save(path string, points []Projected) error {
	var data []byte
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(points)
	case ".json":
		data, err = json.MarshalIndent(points, "", "  ")
	default:
		return fmt.Errorf("fiducial: unrecognised extension %q", ext)
	}
	if err != nil {
		return fmt.Errorf("fiducial: encoding %q: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("fiducial: writing %q: %w", path, err)
	}
	return nil
}
