package imaging

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func TestSaturation(t *testing.T) {
	tests := []struct {
		name string
		c    color.Color
		want float64
	}{
		{"red", color.NRGBA{255, 0, 0, 255}, 255},
		{"white", color.NRGBA{255, 255, 255, 255}, 0},
		{"black", color.NRGBA{0, 0, 0, 255}, 0},
		{"gray", color.Gray{Y: 128}, 0},
		{"half", color.NRGBA{200, 100, 100, 255}, 127.5},
		{"transparent", color.NRGBA{255, 0, 0, 0}, 0},
	}
	for _, tt := range tests {
		if got := Saturation(tt.c); math.Abs(got-tt.want) > 0.5 {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSaturatedPixels(t *testing.T) {
	img := image.NewNRGBA(image.Rect(10, 20, 15, 23))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.SetNRGBA(11, 21, color.NRGBA{0, 0, 255, 255})
	img.SetNRGBA(14, 22, color.NRGBA{0, 200, 0, 255})
	img.SetNRGBA(12, 20, color.NRGBA{110, 100, 100, 255})

	pts := SaturatedPixels(img, 40)
	want := []image.Point{{1, 1}, {4, 2}}
	if len(pts) != len(want) {
		t.Fatalf("got %v, want %v", pts, want)
	}
	for i := range want {
		if pts[i] != want[i] {
			t.Errorf("point %d: got %v, want %v", i, pts[i], want[i])
		}
	}
}

func TestWhiteFraction(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 10, 1))
	for i := range g.Pix {
		g.Pix[i] = uint8(235 + i)
	}

	// 235..244: strictly above 240 leaves 241..244.
	if got := WhiteFraction(g, 240); math.Abs(got-0.4) > 1e-12 {
		t.Errorf("got %v, want 0.4", got)
	}
	if got := WhiteFraction(&image.Gray{}, 240); got != 0 {
		t.Errorf("empty image: got %v", got)
	}
}
