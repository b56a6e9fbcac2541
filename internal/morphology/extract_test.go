package morphology

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// micrograph draws dark filled discs on a white background.
func micrograph(w, h int, centers []image.Point, radius int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	for _, c := range centers {
		for y := c.Y - radius; y <= c.Y+radius; y++ {
			for x := c.X - radius; x <= c.X+radius; x++ {
				dx, dy := x-c.X, y-c.Y
				if dx*dx+dy*dy <= radius*radius && image.Pt(x, y).In(img.Rect) {
					img.SetGray(x, y, color.Gray{Y: 20})
				}
			}
		}
	}
	return img
}

func solid(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestExtractDiscs(t *testing.T) {
	centers := []image.Point{{40, 40}, {120, 50}, {60, 140}, {150, 150}}
	img := micrograph(200, 200, centers, 10)

	res, err := Extract(img, DefaultConfig())
	require.NoError(t, err)

	fv := res.Features
	assert.Equal(t, len(centers), fv.Count)
	assert.Len(t, res.Particles, len(centers))

	// 20px discs scaled by 512/200.
	assert.InDelta(t, 20*2.56, fv.MeanDiameter, 6)
	assert.GreaterOrEqual(t, fv.StdDiameter, 0.0)
	assert.Less(t, fv.StdDiameter, 2.0)
	assert.InDelta(t, 1.0, fv.MeanAspect, 0.1)
}

func TestExtractAspectRatio(t *testing.T) {
	img := solid(256, 256, 255)
	for y := 100; y < 120; y++ {
		for x := 80; x < 160; x++ {
			img.SetGray(x, y, color.Gray{Y: 0})
		}
	}

	res, err := Extract(img, DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, 1, res.Features.Count)
	assert.InDelta(t, 4.0, res.Features.MeanAspect, 0.3)
}

func TestExtractNoParticles(t *testing.T) {
	tests := []struct {
		name string
		img  image.Image
	}{
		{"all white", solid(128, 128, 255)},
		{"all black", solid(128, 128, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.img, DefaultConfig())
			assert.ErrorIs(t, err, ErrNoParticlesDetected)
		})
	}
}

func TestExtractIgnoresSpecks(t *testing.T) {
	img := micrograph(512, 512, []image.Point{{256, 256}}, 30)
	// Single-pixel noise is removed by the opening.
	img.SetGray(10, 10, color.Gray{Y: 0})
	img.SetGray(500, 20, color.Gray{Y: 0})

	res, err := Extract(img, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Features.Count)
}

func TestExtract16Bit(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			v := uint16(65535)
			dx, dy := x-100, y-100
			if dx*dx+dy*dy <= 400 {
				v = 2000
			}
			img.SetGray16(x, y, color.Gray16{Y: v})
		}
	}

	res, err := Extract(img, Config{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Features.Count)
}

func TestFeatureVectorSlice(t *testing.T) {
	fv := FeatureVector{MeanDiameter: 12.5, StdDiameter: 1.5, Count: 7, MeanAspect: 1.1}
	assert.Equal(t, []float64{12.5, 1.5, 7, 1.1}, fv.Slice())

	back, err := FromSlice(fv.Slice())
	require.NoError(t, err)
	assert.Equal(t, fv, back)

	_, err = FromSlice([]float64{1, 2})
	assert.Error(t, err)
}

func TestConfigDefaults(t *testing.T) {
	c := Config{MinArea: 50}.withDefaults()
	assert.Equal(t, 512, c.CanonicalSize)
	assert.Equal(t, 5, c.BlurKernel)
	assert.Equal(t, 3, c.OpenKernel)
	assert.Equal(t, 50.0, c.MinArea)
}

func TestOverlay(t *testing.T) {
	img := micrograph(100, 100, []image.Point{{50, 50}}, 15)
	out, err := Overlay(img, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 512, 512), out.Bounds())
}
