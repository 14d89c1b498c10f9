// Package geom provides the homogeneous-transform primitives shared by the
// transform composer and the fiducial projector: pivoted axis rotations and
// the image-to-camera pixel maps.
package geom

import "github.com/go-gl/mathgl/mgl64"

// RotateX returns the 4x4 homogeneous transform that rotates by angle
// radians about the X axis through pivot, leaving pivot fixed. It is built
// as translate(pivot) * Rx(angle) * translate(-pivot), matching the pattern
// used for RotateY and RotateZ below.
func RotateX(pivot mgl64.Vec3, angle float64) mgl64.Mat4 {
	return pivoted(mgl64.HomogRotate3DX(angle), pivot)
}

// RotateY returns the pivoted rotation about the Y axis.
func RotateY(pivot mgl64.Vec3, angle float64) mgl64.Mat4 {
	return pivoted(mgl64.HomogRotate3DY(angle), pivot)
}

// RotateZ returns the pivoted rotation about the Z axis.
func RotateZ(pivot mgl64.Vec3, angle float64) mgl64.Mat4 {
	return pivoted(mgl64.HomogRotate3DZ(angle), pivot)
}

func pivoted(rot mgl64.Mat4, pivot mgl64.Vec3) mgl64.Mat4 {
	toPivot := mgl64.Translate3D(pivot.X(), pivot.Y(), pivot.Z())
	fromPivot := mgl64.Translate3D(-pivot.X(), -pivot.Y(), -pivot.Z())
	return toPivot.Mul4(rot).Mul4(fromPivot)
}

// FromRows builds a Mat4 from four row vectors, each given in the natural
// left-to-right reading order. mgl64.Mat4 literals are column-major, which
// makes transcribing a row-major formula (as in spec prose or the original
// Eigen source) error-prone; this keeps the transcription direct.
func FromRows(r0, r1, r2, r3 [4]float64) mgl64.Mat4 {
	return mgl64.Mat4{
		r0[0], r1[0], r2[0], r3[0],
		r0[1], r1[1], r2[1], r3[1],
		r0[2], r1[2], r2[2], r3[2],
		r0[3], r1[3], r2[3], r3[3],
	}
}

// AddTranslation returns m with t added directly into its translation
// column (elements 12,13,14 in mgl64's column-major [16]float64 storage),
// leaving the rotation/scale block untouched.
func AddTranslation(m mgl64.Mat4, t mgl64.Vec3) mgl64.Mat4 {
	m[12] += t.X()
	m[13] += t.Y()
	m[14] += t.Z()
	return m
}

// TransformPoint applies a homogeneous transform to a point (w=1) and
// dehomogenises the result.
func TransformPoint(m mgl64.Mat4, p mgl64.Vec3) mgl64.Vec3 {
	v := m.Mul4x1(mgl64.Vec4{p.X(), p.Y(), p.Z(), 1})
	w := v.W()
	return mgl64.Vec3{v.X() / w, v.Y() / w, v.Z() / w}
}

// ImageOrigin returns the camera-frame origin of pixel (0,0) for a detector
// of the given pixel dimensions and pitch, centred on the optical axis.
func ImageOrigin(dimX, dimY int, pitchX, pitchY float64) (ox, oy float64) {
	ox = -pitchX * float64(dimX-1) / 2
	oy = -pitchY * float64(dimY-1) / 2
	return ox, oy
}

// ImageToCamera maps a detector pixel (i,j) to its camera-frame position,
// sitting on the plane z = -sdd.
func ImageToCamera(i, j int, ox, oy, pitchX, pitchY, sdd float64) mgl64.Vec3 {
	return mgl64.Vec3{ox + float64(i)*pitchX, oy + float64(j)*pitchY, -sdd}
}

// CameraToImage is the inverse of ImageToCamera, ignoring the z coordinate.
func CameraToImage(p mgl64.Vec3, ox, oy, pitchX, pitchY float64) (i, j float64) {
	i = (p.X() - ox) / pitchX
	j = (p.Y() - oy) / pitchY
	return i, j
}

// IntersectLinePlaneZ intersects the line through p0 and p1 with the plane
// z = planeZ and returns the intersection point. Degenerate lines parallel
// to the plane (p0.Z() == p1.Z()) return p0 unchanged; callers operating on
// a source-to-detector ray never hit this case because source and detector
// sit at different z.
func IntersectLinePlaneZ(p0, p1 mgl64.Vec3, planeZ float64) mgl64.Vec3 {
	dz := p1.Z() - p0.Z()
	if dz == 0 {
		return p0
	}
	t := (planeZ - p0.Z()) / dz
	dir := p1.Sub(p0)
	return p0.Add(dir.Mul(t))
}
