// Package volume holds the dense CT voxel grid the engine renders from: a
// read-only, signed 16-bit lattice with per-axis physical spacing, plus the
// raw+YAML/JSON sidecar loader the CLI uses to bring one in from disk.
package volume

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

// Volume is an immutable dense 3-D grid of signed 16-bit Hounsfield-unit
// samples on a regular axis-aligned lattice. index(i,j,k) = i + j*Dims[0] +
// k*Dims[0]*Dims[1], with i fastest, matching the CT storage order the
// engine's traversal assumes.
type Volume struct {
	Dims    [3]int
	Spacing [3]float64
	Data    []int16
}

// New validates dims/spacing against the sample slice and returns a Volume.
// Spacing of zero in any axis defaults to 1.0mm, matching the external
// set_volume contract's documented default.
func New(dims [3]int, spacing [3]float64, data []int16) (*Volume, error) {
	want := dims[0] * dims[1] * dims[2]
	if want <= 0 {
		return nil, fmt.Errorf("volume: dimensions must be positive, got %v", dims)
	}
	if len(data) != want {
		return nil, fmt.Errorf("volume: expected %d samples for dims %v, got %d", want, dims, len(data))
	}
	for i := range spacing {
		if spacing[i] <= 0 {
			spacing[i] = 1.0
		}
	}
	return &Volume{Dims: dims, Spacing: spacing, Data: data}, nil
}

// At returns the sample at voxel (i,j,k). Callers must keep indices in
// bounds; the ray integrator is the only caller that walks out-of-range
// indices and it checks bounds itself before calling At.
func (v *Volume) At(i, j, k int) int16 {
	return v.Data[i+j*v.Dims[0]+k*v.Dims[0]*v.Dims[1]]
}

// Extent returns the physical size of the volume box in millimetres.
func (v *Volume) Extent() mgl64.Vec3 {
	return mgl64.Vec3{
		float64(v.Dims[0]) * v.Spacing[0],
		float64(v.Dims[1]) * v.Spacing[1],
		float64(v.Dims[2]) * v.Spacing[2],
	}
}

// Isocenter returns the geometric centre of the volume, the default pivot
// for gantry and volume rotations unless the caller overrides it.
func (v *Volume) Isocenter() mgl64.Vec3 {
	e := v.Extent()
	return mgl64.Vec3{e.X() / 2, e.Y() / 2, e.Z() / 2}
}

// Config describes a volume sourced from a raw binary file, the sidecar
// format the CLI understands alongside an in-memory Volume built by the
// shapes package. It mirrors the teacher's dual YAML/JSON, extension-sniffed
// scene descriptor convention.
type Config struct {
	Path    string     `json:"path" yaml:"path"`
	Dims    [3]int     `json:"dims" yaml:"dims"`
	Spacing [3]float64 `json:"spacing" yaml:"spacing"`
	Dtype   string     `json:"dtype" yaml:"dtype"` // int16 (default), uint8, uint16
}

// LoadConfig reads a volume descriptor from a YAML or JSON file, selected by
// file extension, the same sniff the teacher's load_object/load_deformation
// use.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("volume: reading config %q: %w", path, err)
	}
	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("volume: parsing YAML config %q: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("volume: parsing JSON config %q: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("volume: unrecognised config extension %q", ext)
	}
	if cfg.Dtype == "" {
		cfg.Dtype = "int16"
	}
	return &cfg, nil
}

// LoadRaw reads a raw binary volume from path according to cfg, converting
// samples to signed 16-bit Hounsfield units.
func LoadRaw(cfg *Config) (*Volume, error) {
	raw, err := os.ReadFile(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("volume: reading raw file %q: %w", cfg.Path, err)
	}
	n := cfg.Dims[0] * cfg.Dims[1] * cfg.Dims[2]
	data := make([]int16, n)
	switch cfg.Dtype {
	case "int16":
		if len(raw) != n*2 {
			return nil, fmt.Errorf("volume: raw file %q has %d bytes, expected %d for int16 dims %v", cfg.Path, len(raw), n*2, cfg.Dims)
		}
		for i := 0; i < n; i++ {
			data[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	case "uint16":
		if len(raw) != n*2 {
			return nil, fmt.Errorf("volume: raw file %q has %d bytes, expected %d for uint16 dims %v", cfg.Path, len(raw), n*2, cfg.Dims)
		}
		for i := 0; i < n; i++ {
			data[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]) >> 1)
		}
	case "uint8":
		if len(raw) != n {
			return nil, fmt.Errorf("volume: raw file %q has %d bytes, expected %d for uint8 dims %v", cfg.Path, len(raw), n, cfg.Dims)
		}
		for i := 0; i < n; i++ {
			data[i] = int16(raw[i])
		}
	default:
		return nil, fmt.Errorf("volume: unsupported dtype %q", cfg.Dtype)
	}
	return New(cfg.Dims, cfg.Spacing, data)
}
