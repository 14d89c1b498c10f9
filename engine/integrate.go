package engine

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	shortMin = -32768
	shortMax = 32767
	// axisOffSentinel marks an axis the ray never crosses (r_a == 0), per
	// §4.3 step 1/4: it must compare as "always last" against real alpha
	// values without ever winning the min-selection in the traversal loop.
	axisOffSentinel = 999.0
)

// integrate performs the Siddon incremental traversal of e.vol along the
// ray from e.sourceWorld to worldPoint, returning the clamped signed
// 16-bit accumulated intensity (§4.3).
func (e *Engine) integrate(worldPoint mgl64.Vec3) int16 {
	v := e.vol
	source := e.sourceWorld
	r := worldPoint.Sub(source)

	extent := v.Extent()

	alphaXMin, alphaXMax := axisAlphaRange(source.X(), r.X(), extent.X())
	alphaYMin, alphaYMax := axisAlphaRange(source.Y(), r.Y(), extent.Y())
	alphaZMin, alphaZMax := axisAlphaRange(source.Z(), r.Z(), extent.Z())

	alphaMin := max3(alphaXMin, alphaYMin, alphaZMin)
	alphaMax := min3(alphaXMax, alphaYMax, alphaZMax)
	if alphaMin >= alphaMax {
		return 0
	}

	entry := source.Add(r.Mul(alphaMin))
	entryIdx := [3]float64{entry.X() / v.Spacing[0], entry.Y() / v.Spacing[1], entry.Z() / v.Spacing[2]}

	voxel := [3]int{
		int(math.Floor(entryIdx[0])),
		int(math.Floor(entryIdx[1])),
		int(math.Floor(entryIdx[2])),
	}

	alphaX := firstPlaneAlpha(r.X(), source.X(), entryIdx[0], v.Spacing[0])
	alphaY := firstPlaneAlpha(r.Y(), source.Y(), entryIdx[1], v.Spacing[1])
	alphaZ := firstPlaneAlpha(r.Z(), source.Z(), entryIdx[2], v.Spacing[2])

	stepAlphaX := planeStep(r.X(), v.Spacing[0])
	stepAlphaY := planeStep(r.Y(), v.Spacing[1])
	stepAlphaZ := planeStep(r.Z(), v.Spacing[2])

	stepIdxX := voxelStep(r.X())
	stepIdxY := voxelStep(r.Y())
	stepIdxZ := voxelStep(r.Z())

	var d float64
	alphaCur := min3(alphaX, alphaY, alphaZ)

	for alphaCur < alphaMax {
		alphaPrev := alphaCur
		switch {
		case alphaX <= alphaY && alphaX <= alphaZ:
			alphaCur = alphaX
			voxel[0] += stepIdxX
			alphaX += stepAlphaX
		case alphaY <= alphaX && alphaY <= alphaZ:
			alphaCur = alphaY
			voxel[1] += stepIdxY
			alphaY += stepAlphaY
		default:
			alphaCur = alphaZ
			voxel[2] += stepIdxZ
			alphaZ += stepAlphaZ
		}

		if voxel[0] >= 0 && voxel[0] < v.Dims[0] &&
			voxel[1] >= 0 && voxel[1] < v.Dims[1] &&
			voxel[2] >= 0 && voxel[2] < v.Dims[2] {
			value := float64(v.At(voxel[0], voxel[1], voxel[2]))
			if value > e.threshold {
				d += (alphaCur - alphaPrev) * (value - e.threshold)
			}
		}
	}

	if d < shortMin {
		return shortMin
	}
	if d > shortMax {
		return shortMax
	}
	return int16(d)
}

// axisAlphaRange computes the entry/exit alpha bounds for one axis per
// §4.3 step 1; a zero ray component yields the -2/+2 sentinel that drops
// the axis out of the min/max reduction.
func axisAlphaRange(sourceA, rA, extentA float64) (amin, amax float64) {
	if rA == 0 {
		return -2, 2
	}
	a0 := (0 - sourceA) / rA
	aN := (extentA - sourceA) / rA
	if a0 < aN {
		return a0, aN
	}
	return aN, a0
}

// firstPlaneAlpha computes the parametric value at which the ray first
// crosses a voxel plane in the direction of travel (§4.3 step 3): the
// greater of the alphas for the floor and ceil index planes.
func firstPlaneAlpha(rA, sourceA, entryIdxA, spacingA float64) float64 {
	if rA == 0 {
		return axisOffSentinel
	}
	up := math.Ceil(entryIdxA)
	down := math.Floor(entryIdxA)
	alphaUp := (up*spacingA - sourceA) / rA
	alphaDown := (down*spacingA - sourceA) / rA
	if alphaUp > alphaDown {
		return alphaUp
	}
	return alphaDown
}

func planeStep(rA, spacingA float64) float64 {
	if rA == 0 {
		return axisOffSentinel
	}
	return spacingA / math.Abs(rA)
}

func voxelStep(rA float64) int {
	if rA >= 0 {
		return 1
	}
	return -1
}

func max3(a, b, c float64) float64 { return math.Max(a, math.Max(b, c)) }
func min3(a, b, c float64) float64 { return math.Min(a, math.Min(b, c)) }
