package raster_test

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurelmarchand/medidocs/internal/raster"
)

func TestEncodePNGRoundTrip(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for x := 0; x < 8; x++ {
		src.Set(x, 0, color.RGBA{R: uint8(x * 30), A: 255})
	}

	b64, err := raster.EncodePNG(src)
	require.NoError(t, err)
	require.NotEmpty(t, b64)

	raw, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 8, decoded.Bounds().Dx())
	assert.Equal(t, 6, decoded.Bounds().Dy())
}

func TestEncodePNGNonRGBA(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 4))
	b64, err := raster.EncodePNG(src)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(raw))
	assert.NoError(t, err)
}

func TestDataURL(t *testing.T) {
	url := raster.DataURL("aGVsbG8=")
	assert.Equal(t, "data:image/png;base64,aGVsbG8=", url)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
}
