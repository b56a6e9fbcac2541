package imaging

import (
	"image"
	"image/color"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Saturation returns the HSV saturation of c on the 0-255 scale used by OpenCV's
// 8-bit HSV conversion: S = (max - min) / max * 255, and 0 for black.
//
// Fully transparent pixels have no meaningful color and report 0.
func Saturation(c color.Color) float64 {
	col, ok := colorful.MakeColor(c)
	if !ok {
		return 0
	}
	_, s, _ := col.Hsv()
	return s * 255
}

// SaturatedPixels returns the coordinates of every pixel in img whose saturation is
// strictly greater than minSaturation (0-255 scale). Coordinates are relative to the
// image origin.
func SaturatedPixels(img image.Image, minSaturation float64) []image.Point {
	b := img.Bounds()
	var pts []image.Point
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if Saturation(img.At(x, y)) > minSaturation {
				pts = append(pts, image.Pt(x-b.Min.X, y-b.Min.Y))
			}
		}
	}
	return pts
}

// WhiteFraction returns the fraction (0.0-1.0) of pixels in g whose intensity is
// strictly above level. An empty image yields 0.
func WhiteFraction(g *image.Gray, level uint8) float64 {
	total := len(g.Pix)
	if total == 0 {
		return 0
	}

	var white int
	for _, v := range g.Pix {
		if v > level {
			white++
		}
	}
	return float64(white) / float64(total)
}
