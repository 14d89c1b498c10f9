// Package shapes synthesizes CT-like test volumes from analytic density
// fields, so the engine can be exercised without a real CT/DICOM file on
// disk. A Shape is rasterized onto a regular lattice by Voxelize, producing
// a volume.Volume the engine renders exactly like one loaded from a raw
// file.
package shapes

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog/log"

	"github.com/drrproj/drrengine/volume"
)

// Shape is an analytic density field over world-space coordinates, scaled
// to a 0-1 relative density (not Hounsfield units); Voxelize maps it onto
// an absolute HU range.
type Shape interface {
	Density(x, y, z float64) float64
	ToMap() map[string]interface{}
	FromMap(data map[string]interface{}) error
	MinFeatureSize() float64
	String() string
}

// Sphere is a uniform-density ball.
type Sphere struct {
	Center mgl64.Vec3
	Radius float64
	Rho    float64
}

func (s *Sphere) String() string {
	return fmt.Sprintf("Sphere{Center: %v, Radius: %v, Rho: %v}", s.Center, s.Radius, s.Rho)
}

func (s *Sphere) ToMap() map[string]interface{} {
	return map[string]interface{}{"type": "sphere", "center": s.Center, "radius": s.Radius, "rho": s.Rho}
}

func (s *Sphere) FromMap(data map[string]interface{}) error {
	slice, ok := data["center"].([]interface{})
	if !ok {
		return fmt.Errorf("center is not a Vec3")
	}
	if err := toVec(&slice, &s.Center); err != nil {
		return err
	}
	var err error
	if s.Radius, err = toFloat64(data["radius"]); err != nil {
		return fmt.Errorf("radius is not a float64")
	}
	if s.Rho, err = toFloat64(data["rho"]); err != nil {
		return fmt.Errorf("rho is not a float64")
	}
	return nil
}

func (s *Sphere) Density(x, y, z float64) float64 {
	dx, dy, dz := x-s.Center[0], y-s.Center[1], z-s.Center[2]
	if dx*dx+dy*dy+dz*dz < s.Radius*s.Radius {
		return s.Rho
	}
	return 0.0
}

func (s *Sphere) MinFeatureSize() float64 { return s.Radius }

// Box is an axis-aligned uniform-density block.
type Box struct {
	Center mgl64.Vec3
	Sides  mgl64.Vec3
	Rho    float64
}

func (b *Box) String() string {
	return fmt.Sprintf("Box{Center: %v, Sides: %v, Rho: %v}", b.Center, b.Sides, b.Rho)
}

func (b *Box) ToMap() map[string]interface{} {
	return map[string]interface{}{"type": "box", "center": b.Center, "sides": b.Sides, "rho": b.Rho}
}

func (b *Box) FromMap(data map[string]interface{}) error {
	slice, ok := data["center"].([]interface{})
	if !ok {
		return fmt.Errorf("center is not a Vec3")
	}
	if err := toVec(&slice, &b.Center); err != nil {
		return err
	}
	if slice, ok = data["sides"].([]interface{}); !ok {
		return fmt.Errorf("sides is not a Vec3")
	}
	if err := toVec(&slice, &b.Sides); err != nil {
		return err
	}
	var err error
	if b.Rho, err = toFloat64(data["rho"]); err != nil {
		return fmt.Errorf("rho is not a float64")
	}
	return nil
}

func (b *Box) Density(x, y, z float64) float64 {
	x, y, z = math.Abs(x-b.Center[0]), math.Abs(y-b.Center[1]), math.Abs(z-b.Center[2])
	if x < 0.5*b.Sides[0] && y < 0.5*b.Sides[1] && z < 0.5*b.Sides[2] {
		return b.Rho
	}
	return 0.0
}

func (b *Box) MinFeatureSize() float64 {
	return 0.1 * math.Min(b.Sides[0], math.Min(b.Sides[1], b.Sides[2]))
}

// Cylinder is a uniform-density line segment with thickness, used to build
// rod- and catheter-like fiducial-bearing structures.
type Cylinder struct {
	P0, P1 mgl64.Vec3
	Radius float64
	Rho    float64
}

func (c *Cylinder) String() string {
	return fmt.Sprintf("Cylinder{P0: %v, P1: %v, Radius: %v, Rho: %v}", c.P0, c.P1, c.Radius, c.Rho)
}

func (c *Cylinder) ToMap() map[string]interface{} {
	return map[string]interface{}{"type": "cylinder", "p0": c.P0, "p1": c.P1, "radius": c.Radius, "rho": c.Rho}
}

func (c *Cylinder) FromMap(data map[string]interface{}) error {
	slice, ok := data["p0"].([]interface{})
	if !ok {
		return fmt.Errorf("p0 is not a Vec3")
	}
	if err := toVec(&slice, &c.P0); err != nil {
		return err
	}
	if slice, ok = data["p1"].([]interface{}); !ok {
		return fmt.Errorf("p1 is not a Vec3")
	}
	if err := toVec(&slice, &c.P1); err != nil {
		return err
	}
	var err error
	if c.Radius, err = toFloat64(data["radius"]); err != nil {
		return fmt.Errorf("radius is not a float64")
	}
	if _, ok := data["rho"]; !ok {
		c.Rho = 1.0
	} else if c.Rho, err = toFloat64(data["rho"]); err != nil {
		return fmt.Errorf("rho is not a float64")
	}
	return nil
}

func (c *Cylinder) Density(x, y, z float64) float64 {
	v := c.P1.Sub(c.P0)
	w := mgl64.Vec3{x, y, z}.Sub(c.P0)
	t := w.Dot(v) / v.Dot(v)
	if t < 0.0 || t > 1.0 {
		return 0.0
	}
	if w.Sub(v.Mul(t)).Len() < c.Radius {
		return c.Rho
	}
	return 0.0
}

func (c *Cylinder) MinFeatureSize() float64 { return c.Radius }

// Gyroid is an implicit triply-periodic minimal-surface shell, useful as a
// textured phantom that exercises the traversal's handling of many small
// high-contrast boundaries.
type Gyroid struct {
	Center    mgl64.Vec3
	Scale     float64
	Thickness float64
	Rho       float64
}

func (g *Gyroid) String() string {
	return fmt.Sprintf("Gyroid{Center: %v, Scale: %v, Thickness: %v, Rho: %v}", g.Center, g.Scale, g.Thickness, g.Rho)
}

func (g *Gyroid) ToMap() map[string]interface{} {
	return map[string]interface{}{"type": "gyroid", "center": g.Center, "scale": g.Scale, "thickness": g.Thickness, "rho": g.Rho}
}

func (g *Gyroid) FromMap(data map[string]interface{}) error {
	slice, ok := data["center"].([]interface{})
	if !ok {
		return fmt.Errorf("center is not a Vec3")
	}
	if err := toVec(&slice, &g.Center); err != nil {
		return err
	}
	var err error
	if g.Scale, err = toFloat64(data["scale"]); err != nil {
		return fmt.Errorf("scale is not a float64")
	}
	if g.Thickness, err = toFloat64(data["thickness"]); err != nil {
		return fmt.Errorf("thickness is not a float64")
	}
	if g.Rho, err = toFloat64(data["rho"]); err != nil {
		return fmt.Errorf("rho is not a float64")
	}
	return nil
}

func (g *Gyroid) Density(x, y, z float64) float64 {
	x, y, z = (x-g.Center[0])/g.Scale, (y-g.Center[1])/g.Scale, (z-g.Center[2])/g.Scale
	v := math.Sin(x)*math.Cos(y) + math.Sin(y)*math.Cos(z) + math.Sin(z)*math.Cos(x)
	if math.Abs(v) < g.Thickness {
		return g.Rho
	}
	return 0.0
}

func (g *Gyroid) MinFeatureSize() float64 { return g.Scale * g.Thickness * 0.1 }

// Collection sums several shapes' densities, clipped to [0,1]. With
// GreedyDensEval it instead returns the first positive density, unclipped.
type Collection struct {
	Shapes         []Shape
	GreedyDensEval bool
}

func (cl *Collection) String() string {
	if len(cl.Shapes) > 5 {
		return fmt.Sprintf("Collection with %d shapes. GreedyDensEval=%v", len(cl.Shapes), cl.GreedyDensEval)
	}
	return fmt.Sprintf("Collection{%v, GreedyDensEval=%v}", cl.Shapes, cl.GreedyDensEval)
}

func (cl *Collection) ToMap() map[string]interface{} {
	shapes := make([]map[string]interface{}, len(cl.Shapes))
	for i, s := range cl.Shapes {
		shapes[i] = s.ToMap()
	}
	return map[string]interface{}{"type": "collection", "shapes": shapes, "greedy_dens_eval": cl.GreedyDensEval}
}

func (cl *Collection) FromMap(data map[string]interface{}) error {
	if greedy, ok := data["greedy_dens_eval"].(bool); ok {
		cl.GreedyDensEval = greedy
	}
	shapesData, ok := data["shapes"].([]interface{})
	if !ok {
		return fmt.Errorf("shapes is not a list")
	}
	log.Debug().Int("count", len(shapesData)).Msg("loading shape collection")
	shapes := make([]Shape, len(shapesData))
	for i, sd := range shapesData {
		s, err := New(sd.(map[string]interface{}))
		if err != nil {
			return err
		}
		shapes[i] = s
	}
	cl.Shapes = shapes
	return nil
}

func (cl *Collection) Density(x, y, z float64) float64 {
	var density float64
	for _, s := range cl.Shapes {
		rho := s.Density(x, y, z)
		if cl.GreedyDensEval && rho > 0.0 {
			return rho
		}
		density += rho
	}
	if density < 0.0 {
		density = 0.0
	} else if density > 1.0 {
		density = 1.0
	}
	return density
}

func (cl *Collection) MinFeatureSize() float64 {
	out := math.Inf(1)
	for _, s := range cl.Shapes {
		out = math.Min(out, s.MinFeatureSize())
	}
	return out
}

// New builds a Shape from its map[string]interface{} encoding (as decoded
// from YAML or JSON), dispatching on the "type" field.
func New(data map[string]interface{}) (Shape, error) {
	var s Shape
	switch data["type"] {
	case "sphere":
		s = &Sphere{}
	case "box":
		s = &Box{}
	case "cylinder":
		s = &Cylinder{}
	case "gyroid":
		s = &Gyroid{}
	case "collection":
		s = &Collection{}
	default:
		return nil, fmt.Errorf("unknown shape type %q", data["type"])
	}
	if err := s.FromMap(data); err != nil {
		return nil, err
	}
	return s, nil
}

func toFloat64(data interface{}) (float64, error) {
	switch t := data.(type) {
	case int:
		return float64(t), nil
	case float64:
		return t, nil
	default:
		return 0.0, fmt.Errorf("value is not a float64")
	}
}

func toVec(data *[]interface{}, vec *mgl64.Vec3) error {
	for i, val := range *data {
		v, err := toFloat64(val)
		if err != nil {
			return fmt.Errorf("element %d is not a float64", i)
		}
		vec[i] = v
	}
	return nil
}

// Voxelize rasterizes a Shape onto a regular dims-sized lattice with the
// given spacing, sampling at voxel centres in a frame centred on the
// volume's physical extent, and scales the shape's [0,1] relative density
// into signed 16-bit Hounsfield units via scaleHU (typically ~1000, water's
// approximate HU-equivalent scale for a unit-density synthetic phantom).
func Voxelize(s Shape, dims [3]int, spacing [3]float64, scaleHU float64) (*volume.Volume, error) {
	n := dims[0] * dims[1] * dims[2]
	data := make([]int16, n)
	cx := float64(dims[0]) * spacing[0] / 2
	cy := float64(dims[1]) * spacing[1] / 2
	cz := float64(dims[2]) * spacing[2] / 2
	for k := 0; k < dims[2]; k++ {
		z := (float64(k)+0.5)*spacing[2] - cz
		for j := 0; j < dims[1]; j++ {
			y := (float64(j)+0.5)*spacing[1] - cy
			for i := 0; i < dims[0]; i++ {
				x := (float64(i)+0.5)*spacing[0] - cx
				rho := s.Density(x, y, z)
				hu := rho * scaleHU
				if hu > 32767 {
					hu = 32767
				} else if hu < -32768 {
					hu = -32768
				}
				data[i+j*dims[0]+k*dims[0]*dims[1]] = int16(hu)
			}
		}
	}
	return volume.New(dims, spacing, data)
}
