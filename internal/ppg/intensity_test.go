package ppg

import (
	"image"
	"image/color"
	"testing"
)

func TestAverageRedIntensity_Stride(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	// Only (0,0), (10,0), (0,10) and (10,10) are sampled.
	img.SetRGBA(0, 0, color.RGBA{R: 100, A: 255})
	img.SetRGBA(10, 0, color.RGBA{R: 200, A: 255})
	img.SetRGBA(0, 10, color.RGBA{R: 50, A: 255})
	img.SetRGBA(10, 10, color.RGBA{R: 50, A: 255})
	img.SetRGBA(5, 5, color.RGBA{R: 255, A: 255})

	if got := AverageRedIntensity(img); got != 100 {
		t.Fatalf("AverageRedIntensity = %v, want 100", got)
	}
}

func TestAverageRedIntensity_Empty(t *testing.T) {
	if got := AverageRedIntensity(image.NewRGBA(image.Rectangle{})); got != 0 {
		t.Fatalf("empty image: got %v, want 0", got)
	}
	if got := AverageRedIntensity(nil); got != 0 {
		t.Fatalf("nil image: got %v, want 0", got)
	}
}

func TestAverageRedIntensity_GenericImage(t *testing.T) {
	img := image.NewPaletted(image.Rect(0, 0, 4, 4), color.Palette{color.RGBA{R: 120, G: 10, B: 10, A: 255}})
	if got := AverageRedIntensity(img); got != 120 {
		t.Fatalf("paletted image: got %v, want 120", got)
	}
}

func TestFingerCoverage(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		want  float64
	}{
		{"red", solidFrame(0, 40, 40, color.RGBA{R: 200, G: 30, B: 30}), 1},
		{"blue", solidFrame(0, 40, 40, color.RGBA{R: 30, G: 30, B: 200}), 0},
		{"equal channels", solidFrame(0, 40, 40, color.RGBA{R: 90, G: 90, B: 90}), 0},
		{"roi empty", solidFrame(0, 3, 3, color.RGBA{R: 200}), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FingerCoverage(tt.frame.Image); got != tt.want {
				t.Errorf("FingerCoverage = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFingerCoverage_CentredRegion(t *testing.T) {
	// 40x40 frame: the region is 10x10 starting at (15,15).
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for y := 15; y < 25; y++ {
		for x := 15; x < 25; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	// Outside the region, must not count.
	img.SetRGBA(0, 0, color.RGBA{R: 200, A: 255})
	// Turn 15 of the 100 region pixels green.
	for x := 15; x < 25; x++ {
		img.SetRGBA(x, 15, color.RGBA{G: 200, A: 255})
	}
	for x := 15; x < 20; x++ {
		img.SetRGBA(x, 16, color.RGBA{G: 200, A: 255})
	}

	if got := FingerCoverage(img); got != 0.85 {
		t.Fatalf("FingerCoverage = %v, want 0.85", got)
	}
	if !IsFingerPresent(img, DefaultFingerThreshold) {
		t.Error("IsFingerPresent = false at 0.85 coverage")
	}
	if IsFingerPresent(img, 0.85) {
		t.Error("threshold must be exceeded strictly")
	}
}
