package engine

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/drrproj/drrengine/geom"
)

// Project maps a 3-D point in the volume frame onto the detector plane,
// returning pixel coordinates (possibly outside [0,Dx)x[0,Dy)), per §4.6.
func (e *Engine) Project(pointVolumeFrame mgl64.Vec3) (u, v float64) {
	e.ensureComposed()

	worldToCamera := e.camToWorld.Inv()
	qCam := geom.TransformPoint(worldToCamera, pointVolumeFrame)

	source := mgl64.Vec3{0, 0, 0}
	hit := geom.IntersectLinePlaneZ(qCam, source, -e.sdd)

	ox, oy := geom.ImageOrigin(e.detDims[0], e.detDims[1], e.detSpacing[0], e.detSpacing[1])
	i, j := geom.CameraToImage(hit, ox, oy, e.detSpacing[0], e.detSpacing[1])

	j = float64(e.detDims[1]) - j
	return i, j
}
