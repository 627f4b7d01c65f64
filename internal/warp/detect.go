package warp

import (
	"github.com/atelier-studio/atelier/internal/imageio"
	"github.com/atelier-studio/atelier/pkg/schema"
)

// DetectedPoint is a named landmark on an image.
type DetectedPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Label string  `json:"label"`
}

// landmark positions as fractions of the image dimensions. Stand-in for a
// pose estimation model; the editor only needs plausible drag handles.
var landmarks = []struct {
	fx, fy float64
	label  string
}{
	{0.5, 0.2, "Head"},
	{0.5, 0.3, "Neck"},
	{0.3, 0.4, "Left Shoulder"},
	{0.7, 0.4, "Right Shoulder"},
	{0.2, 0.6, "Left Hand"},
	{0.8, 0.6, "Right Hand"},
}

// Detect returns landmark points scaled to the image size.
func Detect(imageDataURL string) ([]DetectedPoint, error) {
	img, err := imageio.DecodeDataURL(imageDataURL)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "decode detect image").WithCause(err)
	}
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())

	points := make([]DetectedPoint, 0, len(landmarks))
	for _, lm := range landmarks {
		points = append(points, DetectedPoint{
			X:     w * lm.fx,
			Y:     h * lm.fy,
			Label: lm.label,
		})
	}
	return points, nil
}
