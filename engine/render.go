package engine

import (
	"sync"

	"github.com/drrproj/drrengine/geom"
)

// RenderResult is the output of a render: the normalised 8-bit luminance
// image (row-major, Dy rows of Dx columns, Y-flipped per §4.5) plus its
// dimensions.
type RenderResult struct {
	Pixels []byte
	Dx, Dy int
}

// Render composes the transform (if needed), tiles the detector image,
// dispatches one goroutine per tile, and joins before normalising and
// returning the 8-bit image (§4.4, §4.5). It never errors: per §7 the
// engine always renders something, reporting any precondition violation
// through the diagnostic side channel instead.
func (e *Engine) Render() RenderResult {
	e.ensureComposed()

	dx, dy := e.detDims[0], e.detDims[1]
	raw := make([]int16, dx*dy)

	if e.vol == nil {
		// Nothing to integrate against; return the (all-zero) image as-is.
		return RenderResult{Pixels: normalize(raw, dx, dy), Dx: dx, Dy: dy}
	}

	block := e.blockSize
	if block <= 0 {
		block = dx // degenerate: tile side falls back to the detector width
	}

	var wg sync.WaitGroup
	for i0 := 0; i0 < dx; i0 += block {
		i1 := i0 + block
		if i1 > dx {
			if e.StrictTileRemainder {
				continue
			}
			i1 = dx
		}
		for j0 := 0; j0 < dy; j0 += block {
			j1 := j0 + block
			if j1 > dy {
				if e.StrictTileRemainder {
					continue
				}
				j1 = dy
			}
			wg.Add(1)
			go e.renderTile(raw, dx, i0, i1, j0, j1, &wg)
		}
	}
	wg.Wait()

	return RenderResult{Pixels: normalize(raw, dx, dy), Dx: dx, Dy: dy}
}

// RenderRaw exposes the pre-normalisation signed 16-bit accumulation, the
// accessor the linearity property (P-2) is checked against.
func (e *Engine) RenderRaw() []int16 {
	e.ensureComposed()
	dx, dy := e.detDims[0], e.detDims[1]
	raw := make([]int16, dx*dy)
	if e.vol == nil {
		return raw
	}
	var wg sync.WaitGroup
	wg.Add(1)
	e.renderTile(raw, dx, 0, dx, 0, dy, &wg)
	return raw
}

// renderTile computes every pixel in [i0,i1)x[j0,j1) and writes it to its
// exclusive slice of raw — each tile's index range never overlaps
// another's, so no synchronisation beyond the WaitGroup barrier is needed
// (§4.4, I-2).
func (e *Engine) renderTile(raw []int16, dx, i0, i1, j0, j1 int, wg *sync.WaitGroup) {
	defer wg.Done()
	ox, oy := geom.ImageOrigin(e.detDims[0], e.detDims[1], e.detSpacing[0], e.detSpacing[1])
	for j := j0; j < j1; j++ {
		for i := i0; i < i1; i++ {
			camPoint := geom.ImageToCamera(i, j, ox, oy, e.detSpacing[0], e.detSpacing[1], e.sdd)
			worldPoint := geom.TransformPoint(e.camToWorld, camPoint)
			raw[i+j*dx] = e.integrate(worldPoint)
		}
	}
}
