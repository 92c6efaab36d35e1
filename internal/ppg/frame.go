package ppg

import (
	"errors"
	"fmt"
	"image"
)

var (
	// ErrMalformedFrame is returned for frames that carry no decodable pixels.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrAnalyzerClosed is returned by ProcessFrame after Close.
	ErrAnalyzerClosed = errors.New("analyzer closed")

	// ErrOutOfOrderSample is returned when a sample is older than the last
	// buffered one.
	ErrOutOfOrderSample = errors.New("sample timestamp out of order")

	// ErrListenerNotComparable is returned when a listener cannot be used as
	// a set member (for example a struct value holding a slice).
	ErrListenerNotComparable = errors.New("listener is not comparable")

	ErrNilListener   = errors.New("nil listener")
	ErrInvalidConfig = errors.New("invalid analyzer config")
)

// Frame is a decoded colour image stamped with its arrival time in
// milliseconds. The epoch is arbitrary but must be consistent across calls.
type Frame struct {
	Image     image.Image
	Timestamp int64
}

// Validate reports whether the frame can be analysed.
func (f Frame) Validate() error {
	if f.Image == nil {
		return fmt.Errorf("%w: nil image", ErrMalformedFrame)
	}
	b := f.Image.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("%w: empty bounds %v", ErrMalformedFrame, b)
	}
	return nil
}

// rgbAt returns the 8-bit red, green and blue values of the pixel at (x, y)
// in image coordinates.
func rgbAt(img image.Image, x, y int) (r, g, b uint8) {
	switch m := img.(type) {
	case *image.RGBA:
		i := m.PixOffset(x, y)
		return m.Pix[i], m.Pix[i+1], m.Pix[i+2]
	case *image.NRGBA:
		i := m.PixOffset(x, y)
		return m.Pix[i], m.Pix[i+1], m.Pix[i+2]
	}
	r32, g32, b32, _ := img.At(x, y).RGBA()
	return uint8(r32 >> 8), uint8(g32 >> 8), uint8(b32 >> 8)
}
