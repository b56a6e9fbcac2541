package imaging

import (
	"image"

	"github.com/disintegration/imaging"
)

// Half names one side of a composite figure split at its vertical midline.
type Half string

const (
	// Left is the panel covering columns [0, mid).
	Left Half = "left"
	// Right is the panel covering columns [mid, width).
	Right Half = "right"
)

// Panel is one rectangular sub-region of a composite figure.
type Panel struct {
	// Position identifies where the panel came from ("left" or "right").
	Position Half

	// Image is the cropped panel with bounds starting at (0,0).
	Image *image.NRGBA
}

// SplitHalves splits a composite figure at mid_x = width/2 into a left and right panel.
//
// Most source figures place a micrograph and its absorption plot side by side, so the
// split is a fixed midline rather than a layout analysis. The left panel gets the
// floor of the width; an odd extra column goes to the right panel.
func SplitHalves(img image.Image) []Panel {
	b := img.Bounds()
	mid := b.Min.X + b.Dx()/2

	return []Panel{
		{Position: Left, Image: imaging.Crop(img, image.Rect(b.Min.X, b.Min.Y, mid, b.Max.Y))},
		{Position: Right, Image: imaging.Crop(img, image.Rect(mid, b.Min.Y, b.Max.X, b.Max.Y))},
	}
}

// CropMargins trims the given fraction from every side of img.
//
// With fraction 0.15 on a 200x100 image the margins are int(200*0.15)=30 columns and
// int(100*0.15)=15 rows, leaving a 140x70 region. The returned image is empty
// (zero-sized bounds) when the margins consume the whole image.
func CropMargins(img image.Image, fraction float64) *image.NRGBA {
	b := img.Bounds()
	mx := int(float64(b.Dx()) * fraction)
	my := int(float64(b.Dy()) * fraction)

	r := image.Rect(b.Min.X+mx, b.Min.Y+my, b.Max.X-mx, b.Max.Y-my)
	if r.Empty() {
		return &image.NRGBA{}
	}
	return imaging.Crop(img, r)
}
