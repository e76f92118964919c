package raster

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"github.com/aurelmarchand/medidocs/internal/common"
)

// EncodePNG serializes an image to base64-encoded PNG at best compression.
// The alpha channel is flattened: model providers reject some alpha PNGs and
// the source rasters are opaque anyway.
func EncodePNG(img image.Image) (string, error) {
	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(img.Bounds())
		draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, rgba); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrEncoding, err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DataURL wraps a base64 PNG payload for embedding in a model request.
func DataURL(b64 string) string {
	return "data:image/png;base64," + b64
}
