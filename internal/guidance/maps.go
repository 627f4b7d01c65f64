// Package guidance synthesizes structural guidance maps (shadow, normal,
// depth) from abstract light and camera parameters. The maps are heuristic
// approximations meant to bias the generative backend, not geometrically
// accurate renders.
package guidance

import (
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/atelier-studio/atelier/internal/imageio"
	"github.com/atelier-studio/atelier/pkg/generate"
	"github.com/atelier-studio/atelier/pkg/schema"
)

// MapSize is the square resolution of every synthesized map.
const MapSize = 512

// Normal maps are rendered oversampled and downscaled for smooth edges.
const normalOversample = 2

// Light is a single light source described by angles in degrees.
// Azimuth 0 points right, 90 up; elevation 0 is grazing, 90 overhead.
type Light struct {
	Azimuth   float64 `json:"azimuth"`
	Elevation float64 `json:"elevation"`
}

// Camera is a coarse camera description.
type Camera struct {
	// Distance is a category tag (close, medium, far). Advisory only; the
	// depth map depends solely on Height.
	Distance string `json:"distance"`
	// Height is the normalized camera height in [-1, 1]: positive looks
	// down (high-angle), negative looks up (low-angle).
	Height float64 `json:"height"`
}

// Synthesize produces the three guidance maps from raw light/camera param
// values (as stored in node params). Returns nil when both are absent.
func Synthesize(light, camera any) (*generate.MapSet, error) {
	lights := ParseLights(light)
	cam, hasCam := ParseCamera(camera)
	if len(lights) == 0 && !hasCam {
		return nil, nil
	}

	shadow, err := ShadowMap(lights)
	if err != nil {
		return nil, err
	}
	normal, err := NormalMap()
	if err != nil {
		return nil, err
	}
	depth, err := DepthMap(cam)
	if err != nil {
		return nil, err
	}

	return &generate.MapSet{Shadow: shadow, Normal: normal, Depth: depth}, nil
}

// ShadowMap renders one radial gradient per light: white at the light's
// projected position fading to transparent, over a dark gray background.
func ShadowMap(lights []Light) (schema.Value, error) {
	dc := gg.NewContext(MapSize, MapSize)
	dc.SetColor(color.RGBA{R: 0x30, G: 0x30, B: 0x30, A: 0xff})
	dc.Clear()

	if len(lights) == 0 {
		// Camera-only setups still get a neutral overhead key light.
		lights = []Light{{Azimuth: 90, Elevation: 60}}
	}

	for _, l := range lights {
		cx, cy := projectLight(l)
		radius := float64(MapSize) * 0.6

		grad := gg.NewRadialGradient(cx, cy, 0, cx, cy, radius)
		grad.AddColorStop(0, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
		grad.AddColorStop(1, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0x00})
		dc.SetFillStyle(grad)
		dc.DrawRectangle(0, 0, MapSize, MapSize)
		dc.Fill()
	}

	return imageio.EncodePNGDataURL(dc.Image())
}

// projectLight maps azimuth/elevation onto the image plane: higher
// elevation pulls the highlight toward the center, azimuth sets the
// direction. Y is flipped because image coordinates grow downward.
func projectLight(l Light) (float64, float64) {
	elevation := clamp(l.Elevation, 0, 90)
	spread := 1 - elevation/90

	az := l.Azimuth * math.Pi / 180
	half := float64(MapSize) / 2
	x := half + math.Cos(az)*half*spread
	y := half - math.Sin(az)*half*spread
	return x, y
}

// NormalMap renders a flat "no relief" background with an analytic sphere
// at the center, normals packed into RGB with the standard tangent-space
// mapping ([-1,1] per axis onto [0,255]).
func NormalMap() (schema.Value, error) {
	size := MapSize * normalOversample
	dc := gg.NewContext(size, size)
	// Flat normal (0,0,1) packs to (128,128,255).
	dc.SetColor(color.RGBA{R: 0x80, G: 0x80, B: 0xff, A: 0xff})
	dc.Clear()

	img := dc.Image().(interface {
		Set(x, y int, c color.Color)
	})

	center := float64(size) / 2
	radius := float64(size) / 4

	for py := 0; py < size; py++ {
		for px := 0; px < size; px++ {
			dx := (float64(px) - center) / radius
			dy := (float64(py) - center) / radius
			d2 := dx*dx + dy*dy
			if d2 > 1 {
				continue
			}
			nx := dx
			ny := -dy // image y grows downward
			nz := math.Sqrt(1 - d2)
			img.Set(px, py, color.RGBA{
				R: packAxis(nx),
				G: packAxis(ny),
				B: packAxis(nz),
				A: 0xff,
			})
		}
	}

	smooth := imaging.Resize(dc.Image(), MapSize, MapSize, imaging.Lanczos)
	return imageio.EncodePNGDataURL(smooth)
}

func packAxis(v float64) uint8 {
	return uint8(math.Round((clamp(v, -1, 1) + 1) / 2 * 255))
}

// depthPreset holds the endpoint colors of a vertical depth gradient.
type depthPreset struct {
	top, bottom color.NRGBA
}

// Three fixed presets selected by the camera height ratio.
var (
	depthHighAngle = depthPreset{
		top:    color.NRGBA{R: 0xf0, G: 0xf0, B: 0xf0, A: 0xff},
		bottom: color.NRGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff},
	}
	depthEyeLevel = depthPreset{
		top:    color.NRGBA{R: 0x60, G: 0x60, B: 0x60, A: 0xff},
		bottom: color.NRGBA{R: 0xb0, G: 0xb0, B: 0xb0, A: 0xff},
	}
	depthLowAngle = depthPreset{
		top:    color.NRGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff},
		bottom: color.NRGBA{R: 0xf0, G: 0xf0, B: 0xf0, A: 0xff},
	}
)

// heightThreshold splits the [-1,1] height ratio into the three presets.
const heightThreshold = 0.33

// DepthMap renders a vertical gradient approximating a depth cue for the
// camera angle.
func DepthMap(cam Camera) (schema.Value, error) {
	preset := depthEyeLevel
	switch {
	case cam.Height > heightThreshold:
		preset = depthHighAngle
	case cam.Height < -heightThreshold:
		preset = depthLowAngle
	}

	dc := gg.NewContext(MapSize, MapSize)
	grad := gg.NewLinearGradient(0, 0, 0, MapSize)
	grad.AddColorStop(0, preset.top)
	grad.AddColorStop(1, preset.bottom)
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, MapSize, MapSize)
	dc.Fill()

	return imageio.EncodePNGDataURL(dc.Image())
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
