// Package warp moves image regions by dragging handle points to target
// positions. The deformation is a thin plate spline pinned at the image
// corners and a grid of anchors, so only the area around the dragged
// handles actually moves.
package warp

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/atelier-studio/atelier/internal/imageio"
	"github.com/atelier-studio/atelier/pkg/schema"
)

// Point is a pixel coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DragPair maps a handle point on the source image to its desired target
// position.
type DragPair struct {
	Handle Point `json:"handle"`
	Target Point `json:"target"`
}

const (
	// anchorGridSize subdivides each axis; 10 gives an 11x11 anchor grid.
	anchorGridSize = 10
	// anchorExclusionRadius keeps anchors away from drag handles so the
	// surrounding area can move freely.
	anchorExclusionRadius = 100.0
	// movementThreshold below which a drag is treated as a no-op.
	movementThreshold = 1.0
)

// Drag warps the image so each handle lands on its target. Drags where no
// handle moved more than a pixel return the input unchanged. The result is
// a PNG data URL.
func Drag(imageDataURL string, pairs []DragPair) (string, error) {
	if len(pairs) == 0 {
		return "", schema.NewError(schema.ErrCodeValidation, "drag requires at least one point pair")
	}
	if !hasMovement(pairs) {
		return imageDataURL, nil
	}

	img, err := imageio.DecodeDataURL(imageDataURL)
	if err != nil {
		return "", schema.NewError(schema.ErrCodeValidation, "decode drag image").WithCause(err)
	}
	src := imaging.Clone(img)

	warped, err := dragImage(src, pairs)
	if err != nil {
		return "", err
	}
	return imageio.EncodePNGDataURL(warped)
}

func hasMovement(pairs []DragPair) bool {
	for _, p := range pairs {
		if math.Abs(p.Handle.X-p.Target.X) > movementThreshold ||
			math.Abs(p.Handle.Y-p.Target.Y) > movementThreshold {
			return true
		}
	}
	return false
}

// dragImage computes the inverse mapping (output pixel to source position)
// as two thin plate splines fitted through the control points, then
// resamples bilinearly. A singular control system leaves the image as is.
func dragImage(src *image.NRGBA, pairs []DragPair) (*image.NRGBA, error) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	handles := make([]Point, len(pairs))
	targets := make([]Point, len(pairs))
	for i, p := range pairs {
		handles[i] = p.Handle
		targets[i] = p.Target
	}

	srcPts, dstPts := controlPoints(handles, targets, w, h)

	// The splines run target -> handle so each output pixel looks up where
	// it came from.
	srcXs := make([]float64, len(srcPts))
	srcYs := make([]float64, len(srcPts))
	for i, p := range srcPts {
		srcXs[i] = p.X
		srcYs[i] = p.Y
	}
	mapX, err := solveTPS(dstPts, srcXs)
	if err != nil {
		return src, nil
	}
	mapY, err := solveTPS(dstPts, srcYs)
	if err != nil {
		return src, nil
	}

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			fx := float64(x)
			fy := float64(y)
			sx := clampF(mapX.Eval(fx, fy), 0, float64(w-1))
			sy := clampF(mapY.Eval(fx, fy), 0, float64(h-1))
			out.SetNRGBA(x, y, sampleBilinear(src, sx, sy))
		}
	}
	return out, nil
}

// controlPoints assembles the full control set: user handles, the four
// image corners, and grid anchors. Anchors and corners pin their position
// (source equals destination). A grid point within the exclusion radius of
// any already accepted point is dropped; this both frees the drag area and
// avoids duplicate points that would make the system singular.
func controlPoints(handles, targets []Point, w, h int) (src, dst []Point) {
	src = append(src, handles...)
	dst = append(dst, targets...)

	fw, fh := float64(w), float64(h)
	corners := []Point{{0, 0}, {0, fh}, {fw, 0}, {fw, fh}}
	for _, c := range corners {
		src = append(src, c)
		dst = append(dst, c)
	}

	for i := 0; i <= anchorGridSize; i++ {
		for j := 0; j <= anchorGridSize; j++ {
			a := Point{X: fw * float64(i) / anchorGridSize, Y: fh * float64(j) / anchorGridSize}
			if nearAny(a, src, anchorExclusionRadius) {
				continue
			}
			src = append(src, a)
			dst = append(dst, a)
		}
	}
	return src, dst
}

func nearAny(p Point, pts []Point, radius float64) bool {
	for _, q := range pts {
		if dist(p, q) < radius {
			return true
		}
	}
	return false
}

// sampleBilinear reads the source at a fractional position with clamped
// edges.
func sampleBilinear(src *image.NRGBA, x, y float64) color.NRGBA {
	b := src.Bounds()
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	x1 := min(x0+1, b.Dx()-1)
	y1 := min(y0+1, b.Dy()-1)
	tx := x - float64(x0)
	ty := y - float64(y0)

	c00 := src.NRGBAAt(x0, y0)
	c10 := src.NRGBAAt(x1, y0)
	c01 := src.NRGBAAt(x0, y1)
	c11 := src.NRGBAAt(x1, y1)

	lerp := func(a, b uint8, t float64) float64 {
		return float64(a)*(1-t) + float64(b)*t
	}
	mix := func(a, b, c, d uint8) uint8 {
		top := lerp(a, b, tx)
		bot := lerp(c, d, tx)
		return uint8(top*(1-ty) + bot*ty + 0.5)
	}

	return color.NRGBA{
		R: mix(c00.R, c10.R, c01.R, c11.R),
		G: mix(c00.G, c10.G, c01.G, c11.G),
		B: mix(c00.B, c10.B, c01.B, c11.B),
		A: mix(c00.A, c10.A, c01.A, c11.A),
	}
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
