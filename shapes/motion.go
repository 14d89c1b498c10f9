package shapes

import (
	"fmt"
	"math"

	"github.com/drrproj/drrengine/volume"
)

// Motion is a time-parametrized coordinate displacement field. VoxelizeSeries
// samples it once per output frame and applies it to shape-space coordinates
// before evaluating density, producing a short sequence of 4-D phantom
// volumes (e.g. a breathing or cardiac motion surrogate) out of a single
// static Shape.
type Motion interface {
	Apply(t, x, y, z float64) (float64, float64, float64)
	ToMap() map[string]interface{}
	FromMap(data map[string]interface{}) error
}

// GaussianMotion displaces points by an amount that decays with distance
// from Center and grows/shrinks sinusoidally with time over Period.
type GaussianMotion struct {
	Amplitudes [3]float64
	Sigmas     [3]float64
	Center     [3]float64
	Period     float64
}

func (g *GaussianMotion) Apply(t, x, y, z float64) (float64, float64, float64) {
	x0, y0, z0 := x-g.Center[0], y-g.Center[1], z-g.Center[2]
	r := math.Sqrt(x0*x0 + y0*y0 + z0*z0)
	phase := math.Sin(2 * math.Pi * t / g.Period)
	dx := g.Amplitudes[0] * math.Exp(-r*r/(2*g.Sigmas[0]*g.Sigmas[0])) * phase
	dy := g.Amplitudes[1] * math.Exp(-r*r/(2*g.Sigmas[1]*g.Sigmas[1])) * phase
	dz := g.Amplitudes[2] * math.Exp(-r*r/(2*g.Sigmas[2]*g.Sigmas[2])) * phase
	return x + dx, y + dy, z + dz
}

func (g *GaussianMotion) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type": "gaussian", "amplitudes": g.Amplitudes, "sigmas": g.Sigmas,
		"center": g.Center, "period": g.Period,
	}
}

func (g *GaussianMotion) FromMap(data map[string]interface{}) error {
	if err := fillVec3(data, "amplitudes", &g.Amplitudes); err != nil {
		return err
	}
	if err := fillVec3(data, "sigmas", &g.Sigmas); err != nil {
		return err
	}
	if err := fillVec3(data, "center", &g.Center); err != nil {
		return err
	}
	var err error
	if g.Period, err = toFloat64(data["period"]); err != nil {
		return fmt.Errorf("period is not a float64")
	}
	return nil
}

// LinearMotion scales each axis by a time-varying strain, modelling uniform
// expansion/contraction such as lung inflation.
type LinearMotion struct {
	Strains [3]float64
	Period  float64
}

func (l *LinearMotion) Apply(t, x, y, z float64) (float64, float64, float64) {
	phase := math.Sin(2 * math.Pi * t / l.Period)
	return x + l.Strains[0]*x*phase, y + l.Strains[1]*y*phase, z + l.Strains[2]*z*phase
}

func (l *LinearMotion) ToMap() map[string]interface{} {
	return map[string]interface{}{"type": "linear", "strains": l.Strains, "period": l.Period}
}

func (l *LinearMotion) FromMap(data map[string]interface{}) error {
	if err := fillVec3(data, "strains", &l.Strains); err != nil {
		return err
	}
	var err error
	if l.Period, err = toFloat64(data["period"]); err != nil {
		return fmt.Errorf("period is not a float64")
	}
	return nil
}

// RigidMotion translates the whole shape along a fixed direction with
// sinusoidal time dependence, modelling rigid-body drift.
type RigidMotion struct {
	Amplitude [3]float64
	Period    float64
}

func (r *RigidMotion) Apply(t, x, y, z float64) (float64, float64, float64) {
	phase := math.Sin(2 * math.Pi * t / r.Period)
	return x + r.Amplitude[0]*phase, y + r.Amplitude[1]*phase, z + r.Amplitude[2]*phase
}

func (r *RigidMotion) ToMap() map[string]interface{} {
	return map[string]interface{}{"type": "rigid", "amplitude": r.Amplitude, "period": r.Period}
}

func (r *RigidMotion) FromMap(data map[string]interface{}) error {
	if err := fillVec3(data, "amplitude", &r.Amplitude); err != nil {
		return err
	}
	var err error
	if r.Period, err = toFloat64(data["period"]); err != nil {
		return fmt.Errorf("period is not a float64")
	}
	return nil
}

// SigmoidMotion displaces along one axis with a logistic profile centred at
// Center, scaled in time by Amplitude*phase — a rough surrogate for a
// sliding-boundary effect such as diaphragm motion.
type SigmoidMotion struct {
	Amplitude   float64
	Center      float64
	Lengthscale float64
	Period      float64
	Direction   string
}

func (s *SigmoidMotion) Apply(t, x, y, z float64) (float64, float64, float64) {
	phase := math.Sin(2 * math.Pi * t / s.Period)
	switch s.Direction {
	case "x":
		return x + s.Amplitude*phase/(1+math.Exp(-(x-s.Center)/s.Lengthscale)), y, z
	case "y":
		return x, y + s.Amplitude*phase/(1+math.Exp(-(y-s.Center)/s.Lengthscale)), z
	case "z":
		return x, y, z + s.Amplitude*phase/(1+math.Exp(-(z-s.Center)/s.Lengthscale))
	default:
		return x, y, z
	}
}

func (s *SigmoidMotion) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type": "sigmoid", "amplitude": s.Amplitude, "center": s.Center,
		"lengthscale": s.Lengthscale, "period": s.Period, "direction": s.Direction,
	}
}

func (s *SigmoidMotion) FromMap(data map[string]interface{}) error {
	var err error
	if s.Amplitude, err = toFloat64(data["amplitude"]); err != nil {
		return fmt.Errorf("amplitude is not a float64")
	}
	if s.Center, err = toFloat64(data["center"]); err != nil {
		return fmt.Errorf("center is not a float64")
	}
	if s.Lengthscale, err = toFloat64(data["lengthscale"]); err != nil {
		return fmt.Errorf("lengthscale is not a float64")
	}
	if s.Period, err = toFloat64(data["period"]); err != nil {
		return fmt.Errorf("period is not a float64")
	}
	var ok bool
	if s.Direction, ok = data["direction"].(string); !ok {
		return fmt.Errorf("direction is not a string")
	}
	return nil
}

// NewMotion builds a Motion from its map encoding, dispatching on "type".
func NewMotion(data map[string]interface{}) (Motion, error) {
	switch data["type"] {
	case "gaussian":
		m := &GaussianMotion{}
		return m, m.FromMap(data)
	case "linear":
		m := &LinearMotion{}
		return m, m.FromMap(data)
	case "rigid":
		m := &RigidMotion{}
		return m, m.FromMap(data)
	case "sigmoid":
		m := &SigmoidMotion{}
		return m, m.FromMap(data)
	default:
		return nil, fmt.Errorf("unknown motion type %q", data["type"])
	}
}

func fillVec3(data map[string]interface{}, key string, out *[3]float64) error {
	slice, ok := data[key].([]interface{})
	if !ok {
		return fmt.Errorf("%s is not a list of 3 floats", key)
	}
	if len(slice) != 3 {
		return fmt.Errorf("%s must have exactly 3 elements", key)
	}
	for i, v := range slice {
		f, err := toFloat64(v)
		if err != nil {
			return fmt.Errorf("%s[%d] is not a float64", key, i)
		}
		out[i] = f
	}
	return nil
}

// VoxelizeSeries rasterizes shape at each time in times, applying motion to
// voxel-centre coordinates before evaluating density, producing one volume
// per time sample — a short 4-D phantom sequence out of one static shape.
func VoxelizeSeries(s Shape, motion Motion, times []float64, dims [3]int, spacing [3]float64, scaleHU float64) ([]*volume.Volume, error) {
	out := make([]*volume.Volume, len(times))
	for idx, t := range times {
		frame := &motionFrame{t: t, shape: s, motion: motion}
		v, err := Voxelize(frame, dims, spacing, scaleHU)
		if err != nil {
			return nil, fmt.Errorf("voxelizing frame at t=%v: %w", t, err)
		}
		out[idx] = v
	}
	return out, nil
}

// motionFrame adapts a (Shape, Motion, time) triple into a Shape so Voxelize
// can rasterize a single time sample without a dedicated code path.
type motionFrame struct {
	t      float64
	shape  Shape
	motion Motion
}

func (f *motionFrame) Density(x, y, z float64) float64 {
	mx, my, mz := f.motion.Apply(f.t, x, y, z)
	return f.shape.Density(mx, my, mz)
}
func (f *motionFrame) ToMap() map[string]interface{}             { return f.shape.ToMap() }
func (f *motionFrame) FromMap(data map[string]interface{}) error { return f.shape.FromMap(data) }
func (f *motionFrame) MinFeatureSize() float64                   { return f.shape.MinFeatureSize() }
func (f *motionFrame) String() string {
	return fmt.Sprintf("MotionFrame{t=%v, shape=%v}", f.t, f.shape)
}
