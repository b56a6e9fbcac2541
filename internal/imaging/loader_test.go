package imaging

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// createTestImage creates a simple test image file and returns its path.
// The caller is responsible for removing the file.
func createTestImage(t *testing.T, width, height int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	tmpFile, err := os.CreateTemp("", "test-image-*.png")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer tmpFile.Close()

	if err := png.Encode(tmpFile, img); err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("failed to encode image: %v", err)
	}

	return tmpFile.Name()
}

func TestNewImageCache(t *testing.T) {
	cache := NewImageCache()
	if cache == nil {
		t.Fatal("NewImageCache returned nil")
	}
	if cache.images == nil {
		t.Fatal("NewImageCache did not initialize images map")
	}
}

func TestImageCache_Load(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 100, 100, color.RGBA{255, 0, 0, 255})
	defer os.Remove(imgPath)

	// First load
	img1, err := cache.Load(imgPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if img1 == nil {
		t.Fatal("Load returned nil image")
	}

	bounds := img1.Bounds()
	if bounds.Dx() != 100 || bounds.Dy() != 100 {
		t.Errorf("unexpected dimensions: got %dx%d, want 100x100", bounds.Dx(), bounds.Dy())
	}

	// Second load should return cached image
	img2, err := cache.Load(imgPath)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if img1 != img2 {
		t.Error("second Load did not return cached image")
	}
}

func TestImageCache_Load_NonExistent(t *testing.T) {
	cache := NewImageCache()
	_, err := cache.Load("/nonexistent/path/to/image.png")
	if err == nil {
		t.Error("Load should fail for non-existent file")
	}
}

func TestImageCache_Load_InvalidImage(t *testing.T) {
	cache := NewImageCache()

	// Create a file with invalid image data
	tmpFile, err := os.CreateTemp("", "invalid-image-*.png")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.WriteString("not an image")
	tmpFile.Close()
	defer os.Remove(tmpFile.Name())

	_, err = cache.Load(tmpFile.Name())
	if err == nil {
		t.Error("Load should fail for invalid image data")
	}
}

func TestImageCache_Clear(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 50, 50, color.RGBA{0, 255, 0, 255})
	defer os.Remove(imgPath)

	// Load image
	_, err := cache.Load(imgPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Clear cache
	cache.Clear()

	// Verify cache is empty by checking internal state
	cache.mu.RLock()
	count := len(cache.images)
	cache.mu.RUnlock()

	if count != 0 {
		t.Errorf("Clear did not empty cache: %d images remain", count)
	}
}

func TestImageCache_Evict(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 50, 50, color.RGBA{0, 0, 255, 255})
	defer os.Remove(imgPath)

	// Load image
	_, err := cache.Load(imgPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Evict
	cache.Evict(imgPath)

	// Verify image is evicted
	cache.mu.RLock()
	_, exists := cache.images[imgPath]
	cache.mu.RUnlock()

	if exists {
		t.Error("Evict did not remove image from cache")
	}
}

func TestImageCache_Evict_NonExistent(t *testing.T) {
	cache := NewImageCache()
	// Should not panic
	cache.Evict("/nonexistent/path")
}

func TestImageCache_ConcurrentAccess(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 50, 50, color.RGBA{128, 128, 128, 255})
	defer os.Remove(imgPath)

	var wg sync.WaitGroup
	errors := make(chan error, 100)

	// Concurrent loads
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Load(imgPath)
			if err != nil {
				errors <- err
			}
		}()
	}

	wg.Wait()
	close(errors)

	for err := range errors {
		t.Errorf("concurrent Load error: %v", err)
	}
}

func TestImageCache_Len(t *testing.T) {
	cache := NewImageCache()
	a := createTestImage(t, 10, 10, color.RGBA{1, 2, 3, 255})
	b := createTestImage(t, 10, 10, color.RGBA{4, 5, 6, 255})
	defer os.Remove(a)
	defer os.Remove(b)

	for _, p := range []string{a, b, a} {
		if _, err := cache.Load(p); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
	}
	if cache.Len() != 2 {
		t.Errorf("Len: got %d, want 2", cache.Len())
	}
}

func TestIsImageFile(t *testing.T) {
	tests := map[string]bool{
		"a.png":         true,
		"b.JPG":         true,
		"c.jpeg":        true,
		"scan.tif":      true,
		"scan.TIFF":     true,
		"old.bmp":       true,
		"anim.gif":      false,
		"spectrum.csv":  false,
		"spectrum.npy":  false,
		"noext":         false,
		"dir.png/x.txt": false,
	}
	for path, want := range tests {
		if got := IsImageFile(path); got != want {
			t.Errorf("IsImageFile(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestOpen_TIFF16(t *testing.T) {
	src := image.NewGray16(image.Rect(0, 0, 4, 2))
	src.SetGray16(1, 0, color.Gray16{Y: 65535})
	src.SetGray16(2, 1, color.Gray16{Y: 32768})

	path := filepath.Join(t.TempDir(), "scan.tif")
	if err := Save(src, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	img, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	g := ToGray(img)
	if g.Bounds() != image.Rect(0, 0, 4, 2) {
		t.Fatalf("bounds: got %v", g.Bounds())
	}
	if g.GrayAt(1, 0).Y != 255 {
		t.Errorf("white: got %d, want 255", g.GrayAt(1, 0).Y)
	}
	if v := g.GrayAt(2, 1).Y; v != 127 && v != 128 {
		t.Errorf("mid gray: got %d", v)
	}
}

func TestToGray(t *testing.T) {
	t.Run("gray16 collapses linearly", func(t *testing.T) {
		src := image.NewGray16(image.Rect(0, 0, 2, 1))
		src.SetGray16(0, 0, color.Gray16{Y: 65535})
		src.SetGray16(1, 0, color.Gray16{Y: 0x8000})
		g := ToGray(src)
		if g.Pix[0] != 255 || g.Pix[1] != 127 {
			t.Errorf("got %v", g.Pix)
		}
	})

	t.Run("gray sub-image is rebased", func(t *testing.T) {
		src := image.NewGray(image.Rect(0, 0, 4, 4))
		src.SetGray(2, 2, color.Gray{Y: 99})
		sub := src.SubImage(image.Rect(2, 2, 4, 4))
		g := ToGray(sub)
		if g.Bounds() != image.Rect(0, 0, 2, 2) {
			t.Fatalf("bounds: got %v", g.Bounds())
		}
		if g.GrayAt(0, 0).Y != 99 {
			t.Errorf("got %d, want 99", g.GrayAt(0, 0).Y)
		}
	})

	t.Run("color uses luminance", func(t *testing.T) {
		src := image.NewNRGBA(image.Rect(0, 0, 3, 1))
		src.SetNRGBA(0, 0, color.NRGBA{255, 255, 255, 255})
		src.SetNRGBA(1, 0, color.NRGBA{0, 0, 0, 255})
		src.SetNRGBA(2, 0, color.NRGBA{255, 0, 0, 255})
		g := ToGray(src)
		if g.Pix[0] < 254 || g.Pix[1] != 0 {
			t.Errorf("white/black: got %v", g.Pix[:2])
		}
		if g.Pix[2] < 70 || g.Pix[2] > 80 {
			t.Errorf("red luminance: got %d, want ~76", g.Pix[2])
		}
	})
}

func TestSave_CreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "out.png")
	if err := Save(image.NewGray(image.Rect(0, 0, 3, 3)), path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file not written: %v", err)
	}
}
