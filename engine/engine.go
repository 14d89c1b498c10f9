// Package engine implements the DRR rendering core: the transform composer,
// Siddon ray integrator, tile-parallel driver, output normaliser and
// fiducial projector, bound together on a single Engine instance per §2-§7
// of the core contract. The engine never imports a logging or CLI package;
// diagnostics go out through internal/diag's Sink interface, and callers
// supply volumes/detector geometry/pose through plain setters.
package engine

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/drrproj/drrengine/geom"
	"github.com/drrproj/drrengine/internal/diag"
	"github.com/drrproj/drrengine/volume"
)

// Engine holds one render's worth of mutable state: the bound volume,
// detector geometry, pose parameters, and the transform derived from them.
// It is not re-entrant: concurrent Render calls on one instance are
// undefined, matching §5's "shared-resource policy".
type Engine struct {
	vol *volume.Volume

	detDims    [2]int     // Dx, Dy
	detSpacing [2]float64 // px, py (mm)

	gantryAngle float64 // radians
	sdd         float64 // mm
	threshold   float64

	volumeEuler       mgl64.Vec3 // last Euler triple passed to SetPose
	volumeTranslation mgl64.Vec3
	blockSize         int

	// StrictTileRemainder opts back into the original's "leave remainder
	// pixels zero" behaviour (§9, §4.4) instead of this engine's default
	// of rendering a final partial tile. Set it when bit-compatibility
	// with P-6's divisor-only guarantee matters more than full coverage.
	StrictTileRemainder bool

	isocenter mgl64.Vec3

	accumulatedVolumeRotation mgl64.Mat4
	lastEulerAngles           mgl64.Vec3

	// camToWorld is the transform the composer produces (§4.2's
	// "worldToCamera"): despite the name it maps a camera-frame point to
	// the world/volume frame, matching the reference implementation's
	// m_Transform, which is applied directly to camera-frame points in
	// the ray integrator. Project inverts it to go the other way.
	camToWorld  mgl64.Mat4
	sourceWorld mgl64.Vec3

	modifyStamp uint64
	updateStamp uint64

	diag diag.Sink
}

// New returns an Engine with the reference implementation's default pose:
// zero gantry angle, SDD 1000mm, threshold 0, block size 32, identity
// volume rotation. sink receives advisory diagnostics; pass diag.Nop if the
// caller doesn't need them.
func New(sink diag.Sink) *Engine {
	if sink == nil {
		sink = diag.Nop
	}
	e := &Engine{
		sdd:                       1000,
		blockSize:                 32,
		detDims:                   [2]int{256, 256},
		detSpacing:                [2]float64{1, 1},
		accumulatedVolumeRotation: mgl64.Ident4(),
		diag:                      sink,
	}
	e.modifyStamp = 1 // force the first Render to compose
	return e
}

// SetVolume binds a volume for rendering and recomputes the isocentre to
// its geometric centre. The engine does not copy vol; the caller must keep
// it alive and read-only for the duration of any render.
func (e *Engine) SetVolume(vol *volume.Volume) {
	e.vol = vol
	e.isocenter = vol.Isocenter()
	e.bumpModify()
}

// SetDetector sets the detector pixel dimensions (Dx,Dy) and pitch (px,py)
// in millimetres.
func (e *Engine) SetDetector(dims [2]int, spacing [2]float64) {
	e.detDims = dims
	e.detSpacing = spacing
	e.bumpModify()
}

// SetPose sets the gantry angle, the volume's Euler triple (applied
// incrementally per §4.2 item 1) and its translation.
func (e *Engine) SetPose(gantryAngleRad float64, volumeEulerRad, volumeTranslationMM mgl64.Vec3) {
	e.gantryAngle = gantryAngleRad
	e.volumeEuler = volumeEulerRad
	e.volumeTranslation = volumeTranslationMM
	e.bumpModify()
}

// SetOptics sets source-to-detector distance (mm) and the voxel intensity
// threshold.
func (e *Engine) SetOptics(sddMM, threshold float64) {
	e.sdd = sddMM
	e.threshold = threshold
	e.bumpModify()
}

// SetTile sets the tile side length in pixels.
func (e *Engine) SetTile(blockSize int) {
	e.blockSize = blockSize
	e.bumpModify()
}

// RotateVolumeAxis is the unambiguous alternative to SetPose's
// single-axis-priority Euler update (§9 open question (a)): it applies a
// single incremental rotation of delta radians about axis ('x','y' or 'z')
// directly, with no inference about which axis the caller "meant".
func (e *Engine) RotateVolumeAxis(axis string, delta float64) {
	var rot mgl64.Mat4
	switch axis {
	case "x":
		rot = geom.RotateX(e.isocenter, delta)
	case "y":
		rot = geom.RotateY(e.isocenter, delta)
	case "z":
		rot = geom.RotateZ(e.isocenter, delta)
	default:
		return
	}
	e.accumulatedVolumeRotation = e.accumulatedVolumeRotation.Mul4(rot)
	e.bumpModify()
}

// Reset clears the accumulated volume rotation and last Euler triple,
// matching §4.2's Reset.
func (e *Engine) Reset() {
	e.accumulatedVolumeRotation = mgl64.Ident4()
	e.lastEulerAngles = mgl64.Vec3{}
	e.volumeEuler = mgl64.Vec3{}
	e.bumpModify()
}

func (e *Engine) bumpModify() {
	e.modifyStamp++
}

// ensureComposed recomputes the transform iff a setter fired since the last
// composition, the monotonic stamp pair from I-3.
func (e *Engine) ensureComposed() {
	if e.updateStamp >= e.modifyStamp {
		return
	}
	e.checkPreconditions()
	e.compose()
	e.updateStamp = e.modifyStamp
}

// checkPreconditions reports I-1 violations to the diagnostic side channel.
// It never blocks or alters the render; it is advisory only (§7).
func (e *Engine) checkPreconditions() {
	if e.vol == nil {
		e.diag.Warn("volume_not_set", nil)
		return
	}
	if e.sdd <= 0 {
		e.diag.Warn("invalid_sdd", map[string]interface{}{"sdd": e.sdd})
	}
	if e.detSpacing[0] <= 0 || e.detSpacing[1] <= 0 {
		e.diag.Warn("invalid_detector_spacing", map[string]interface{}{"spacing": e.detSpacing})
	}
	xBad := e.blockSize <= 0 || e.detDims[0]%e.blockSize != 0
	yBad := e.blockSize <= 0 || e.detDims[1]%e.blockSize != 0
	if xBad || yBad {
		axis := "x"
		if xBad && yBad {
			axis = "both"
		} else if yBad {
			axis = "y"
		}
		e.diag.Warn("block_size_not_divisor", map[string]interface{}{
			"axis": axis, "detector": e.detDims, "block_size": e.blockSize,
		})
	}
}
