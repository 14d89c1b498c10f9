package engine

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/drrproj/drrengine/geom"
)

const rotationEpsilon = 1e-8

// cameraReorient is the fixed axis-swap mapping camera Y-up into patient
// Z-up (§4.2 item 5).
var cameraReorient = geom.FromRows(
	[4]float64{1, 0, 0, 0},
	[4]float64{0, 0, 1, 0},
	[4]float64{0, -1, 0, 0},
	[4]float64{0, 0, 0, 1},
)

// compose assembles camToWorld and sourceWorld from the engine's current
// pose, following §4.2's five steps in order. Construction order affects
// floating-point results and is preserved exactly as specified/observed in
// the reference implementation — it is not a place to deduce an isomorphic
// refactor.
func (e *Engine) compose() {
	volumeRot := e.composeVolumeRotation()

	// 2. Volume translation: inject into the translation column.
	volumeRot = geom.AddTranslation(volumeRot, e.volumeTranslation)

	// 3. Gantry rotation about the isocentre.
	gantryRot := geom.RotateZ(e.isocenter, -e.gantryAngle)

	// 4. Camera shift.
	cameraShift := geom.AddTranslation(mgl64.Ident4(), mgl64.Vec3{
		-e.isocenter.X(), e.sdd - e.isocenter.Y(), -e.isocenter.Z(),
	})

	// 5. Fixed camera reorientation, then invert the full product.
	product := cameraReorient.Mul4(cameraShift).Mul4(gantryRot).Mul4(volumeRot)
	e.camToWorld = product.Inv()

	source := mgl64.Vec4{0, 0, 0, 1}
	sw := e.camToWorld.Mul4x1(source)
	e.sourceWorld = mgl64.Vec3{sw.X() / sw.W(), sw.Y() / sw.W(), sw.Z() / sw.W()}
}

// composeVolumeRotation implements §4.2 item 1: the single-axis-priority
// incremental rotation update. Exactly one axis is assumed to have changed
// between composition calls; if more than one delta exceeds the epsilon,
// ties are broken X, then Y, then Z. This bit-for-bit preserves the
// reference behaviour needed for P-5; RotateVolumeAxis is the unambiguous
// alternative for callers that want to avoid the single-axis assumption.
func (e *Engine) composeVolumeRotation() mgl64.Mat4 {
	deltaRx := e.volumeEuler.X() - e.lastEulerAngles.X()
	deltaRy := e.volumeEuler.Y() - e.lastEulerAngles.Y()
	deltaRz := e.volumeEuler.Z() - e.lastEulerAngles.Z()
	e.lastEulerAngles = e.volumeEuler

	var delta mgl64.Mat4
	switch {
	case math.Abs(deltaRx) > rotationEpsilon:
		delta = geom.RotateX(e.isocenter, deltaRx)
	case math.Abs(deltaRy) > rotationEpsilon:
		delta = geom.RotateY(e.isocenter, deltaRy)
	default:
		delta = geom.RotateZ(e.isocenter, deltaRz)
	}
	e.accumulatedVolumeRotation = e.accumulatedVolumeRotation.Mul4(delta)
	return e.accumulatedVolumeRotation
}
