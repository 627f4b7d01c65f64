// Package imageio converts between image.Image and the base64 data-URL
// strings that flow across graph edges.
package imageio

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"strings"

	_ "image/jpeg" // register decoder

	"github.com/atelier-studio/atelier/pkg/schema"
)

const pngPrefix = "data:image/png;base64,"

// EncodePNGDataURL encodes an image as a base64 PNG data URL.
func EncodePNGDataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", schema.NewErrorf(schema.ErrCodeRender, "encode png: %s", err.Error()).WithCause(err)
	}
	return pngPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeDataURL decodes a base64 image data URL (or a bare base64 payload)
// into an image.Image.
func DecodeDataURL(s string) (image.Image, error) {
	payload := s
	if idx := strings.Index(s, ","); idx >= 0 && strings.HasPrefix(s, "data:") {
		payload = s[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "decode base64 image: %s", err.Error()).WithCause(err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "decode image: %s", err.Error()).WithCause(err)
	}
	return img, nil
}
