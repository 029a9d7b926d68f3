// Package boundary turns a segmentation mask into a normalized fence rectangle.
package boundary

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/fraktlabs/fencewatch/internal/errors"
)

// DefaultThreshold is the minimum red channel intensity counted as foreground.
const DefaultThreshold uint8 = 20

// Rect is a rectangle in normalized frame coordinates.
type Rect struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Valid reports whether r describes a non-empty region inside the unit square.
// The extractor returns an invalid Rect when the mask has no foreground.
func (r Rect) Valid() bool {
	if r.X1 < r.X0 || r.Y1 < r.Y0 {
		return false
	}
	for _, v := range [...]float64{r.X0, r.Y0, r.X1, r.Y1} {
		if v < 0 || v > 1 {
			return false
		}
	}
	return true
}

// Contains reports whether (x, y) lies inside r, edges included.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X0 && x <= r.X1 && y >= r.Y0 && y <= r.Y1
}

// Extract scans img once and returns the bounding box of all pixels whose red
// channel is at least threshold, divided by the image width and height.
// Masks are near-grayscale, so one channel is enough.
//
// With no foreground pixel the result is (1, 1, -1/w, -1/h).
func Extract(img image.Image, threshold uint8) Rect {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return Rect{X0: 1, Y0: 1, X1: -1, Y1: -1}
	}

	minX, minY, maxX, maxY := w, h, -1, -1
	red := redReader(img)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if red(b.Min.X+x, b.Min.Y+y) < threshold {
				continue
			}
			minX = min(minX, x)
			minY = min(minY, y)
			maxX = max(maxX, x)
			maxY = max(maxY, y)
		}
	}

	fw, fh := float64(w), float64(h)
	return Rect{
		X0: float64(minX) / fw,
		Y0: float64(minY) / fh,
		X1: float64(maxX) / fw,
		Y1: float64(maxY) / fh,
	}
}

// redReader returns a fast 8-bit red channel accessor for common image types.
func redReader(img image.Image) func(x, y int) uint8 {
	switch m := img.(type) {
	case *image.RGBA:
		return func(x, y int) uint8 { return m.Pix[m.PixOffset(x, y)] }
	case *image.NRGBA:
		return func(x, y int) uint8 { return m.Pix[m.PixOffset(x, y)] }
	case *image.Gray:
		return func(x, y int) uint8 { return m.Pix[m.PixOffset(x, y)] }
	default:
		return func(x, y int) uint8 {
			r, _, _, _ := img.At(x, y).RGBA()
			return uint8(r >> 8)
		}
	}
}

// Decode reads a PNG, JPEG or GIF image.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, errors.New(err).
			Component("boundary").
			Category(errors.CategoryDecode).
			Context("operation", "decode_mask").
			Build()
	}
	return img, nil
}

// DecodeDataURL decodes a "data:image/png;base64,..." URL or bare base64 text.
func DecodeDataURL(s string) (image.Image, error) {
	payload := strings.TrimSpace(s)
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 || !strings.Contains(payload[:comma], ";base64") {
			return nil, errors.Newf("mask data URL is not base64 encoded").
				Component("boundary").
				Category(errors.CategoryDecode).
				Build()
		}
		payload = payload[comma+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errors.New(err).
			Component("boundary").
			Category(errors.CategoryDecode).
			Context("operation", "decode_base64").
			Build()
	}
	return Decode(bytes.NewReader(raw))
}

// ExtractFrom decodes r and extracts its boundary.
func ExtractFrom(r io.Reader, threshold uint8) (Rect, error) {
	img, err := Decode(r)
	if err != nil {
		return Rect{}, err
	}
	return Extract(img, threshold), nil
}

// ExtractFromDataURL decodes a mask data URL and extracts its boundary.
func ExtractFromDataURL(s string, threshold uint8) (Rect, error) {
	img, err := DecodeDataURL(s)
	if err != nil {
		return Rect{}, err
	}
	return Extract(img, threshold), nil
}
