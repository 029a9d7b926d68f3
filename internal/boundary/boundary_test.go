package boundary

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

	"github.com/fraktlabs/fencewatch/internal/errors"
)

// maskWithRect returns a black w×h mask with a white filled rectangle.
func maskWithRect(w, h, x0, y0, x1, y1 int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.Black)
		}
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestExtractKnownRectangle(t *testing.T) {
	t.Parallel()

	r := Extract(maskWithRect(100, 100, 10, 10, 50, 30), DefaultThreshold)

	assert.InDelta(t, 0.10, r.X0, 1e-9)
	assert.InDelta(t, 0.10, r.Y0, 1e-9)
	assert.InDelta(t, 0.50, r.X1, 1e-9)
	assert.InDelta(t, 0.30, r.Y1, 1e-9)
	assert.True(t, r.Valid())
}

func TestExtractAllBackgroundIsInvalid(t *testing.T) {
	t.Parallel()

	img := image.NewGray(image.Rect(0, 0, 64, 48))
	r := Extract(img, DefaultThreshold)

	assert.InDelta(t, 1.0, r.X0, 1e-9)
	assert.InDelta(t, 1.0, r.Y0, 1e-9)
	assert.Less(t, r.X1, r.X0)
	assert.Less(t, r.X1, 0.0)
	assert.Less(t, r.Y1, 0.0)
	assert.False(t, r.Valid())
}

func TestExtractThresholdUsesRedChannelOnly(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	// Bright green and blue but dark red: background.
	img.Set(1, 1, color.NRGBA{R: 19, G: 255, B: 255, A: 255})
	// Exactly at threshold: foreground.
	img.Set(7, 8, color.NRGBA{R: 20, A: 255})

	r := Extract(img, DefaultThreshold)
	assert.Equal(t, Rect{X0: 0.7, Y0: 0.8, X1: 0.7, Y1: 0.8}, r)
}

func TestExtractHonorsNonZeroBoundsOrigin(t *testing.T) {
	t.Parallel()

	full := maskWithRect(20, 20, 10, 10, 14, 14)
	sub := full.SubImage(image.Rect(10, 10, 20, 20))

	r := Extract(sub, DefaultThreshold)
	assert.Equal(t, Rect{X0: 0, Y0: 0, X1: 0.4, Y1: 0.4}, r)
}

func TestExtractFromDataURL(t *testing.T) {
	t.Parallel()

	data := encodePNG(t, maskWithRect(100, 100, 10, 10, 50, 30))
	url := "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)

	r, err := ExtractFromDataURL(url, DefaultThreshold)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, r.X1, 1e-9)

	bare, err := ExtractFromDataURL(base64.StdEncoding.EncodeToString(data), DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, r, bare)
}

func TestDecodeFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"not base64", "data:image/png;base64,@@@"},
		{"not an image", base64.StdEncoding.EncodeToString([]byte("hello"))},
		{"not base64 data url", "data:image/png,rawbytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ExtractFromDataURL(tt.input, DefaultThreshold)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryDecode))
		})
	}

	_, err := ExtractFrom(strings.NewReader("garbage"), DefaultThreshold)
	assert.True(t, errors.IsCategory(err, errors.CategoryDecode))
}

func TestRectValidAndContains(t *testing.T) {
	t.Parallel()

	r := Rect{X0: 0.1, Y0: 0.1, X1: 0.9, Y1: 0.9}
	assert.True(t, r.Contains(0.1, 0.9))
	assert.False(t, r.Contains(0.05, 0.5))

	assert.False(t, Rect{X0: 0.5, Y0: 0, X1: 0.4, Y1: 1}.Valid())
	assert.False(t, Rect{X0: 0, Y0: 0, X1: 1.2, Y1: 1}.Valid())
}
