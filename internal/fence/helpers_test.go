package fence

import (
	"image"
	"image/color"
)

func blankImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := range 10 {
		for x := range 10 {
			img.Set(x, y, color.Black)
		}
	}
	return img
}
