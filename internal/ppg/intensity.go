package ppg

import "image"

const (
	// IntensityStride is the pixel step used in both dimensions when
	// averaging the red channel.
	IntensityStride = 10

	// DefaultFingerThreshold is the fraction of red-dominant pixels in the
	// centre region above which a finger is considered present.
	DefaultFingerThreshold = 0.8
)

// AverageRedIntensity returns the mean red value over every tenth pixel in
// each dimension. It returns 0 if no pixel was sampled.
func AverageRedIntensity(img image.Image) float64 {
	if img == nil {
		return 0
	}
	b := img.Bounds()

	var sum float64
	var count int
	for y := b.Min.Y; y < b.Max.Y; y += IntensityStride {
		for x := b.Min.X; x < b.Max.X; x += IntensityStride {
			r, _, _ := rgbAt(img, x, y)
			sum += float64(r)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// FingerCoverage returns the fraction of pixels in the centred region of
// interest (a quarter of the frame's width and height) whose red value
// strictly exceeds both green and blue. An empty region yields 0.
func FingerCoverage(img image.Image) float64 {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	roiW, roiH := w/4, h/4
	if roiW == 0 || roiH == 0 {
		return 0
	}
	x0 := b.Min.X + w/2 - roiW/2
	y0 := b.Min.Y + h/2 - roiH/2

	var red int
	for y := y0; y < y0+roiH; y++ {
		for x := x0; x < x0+roiW; x++ {
			r, g, bl := rgbAt(img, x, y)
			if r > g && r > bl {
				red++
			}
		}
	}
	return float64(red) / float64(roiW*roiH)
}

// IsFingerPresent reports whether the red-dominant fraction of the centre
// region exceeds threshold.
func IsFingerPresent(img image.Image, threshold float64) bool {
	return FingerCoverage(img) > threshold
}
