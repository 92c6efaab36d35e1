package capture

import (
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/banshee-data/pulse.report/internal/ppg"
)

// Frame records are single lines of the form
//
//	F,<timestamp_ms>,<width>,<height>,<hex RGB bytes>
//
// with pixels in row-major order, three bytes each. Lines starting with '{'
// are JSON status reports from the device; anything else is ignored.
const (
	LineKindFrame   = "frame"
	LineKindStatus  = "status"
	LineKindUnknown = "unknown"

	// MaxFrameWidth and MaxFrameHeight bound decoded frames.
	MaxFrameWidth  = 640
	MaxFrameHeight = 480
)

// ErrMalformedLine is returned for frame records that cannot be decoded.
var ErrMalformedLine = errors.New("malformed frame line")

// ClassifyLine returns the kind of a device output line.
func ClassifyLine(line string) string {
	switch {
	case strings.HasPrefix(line, "F,"):
		return LineKindFrame
	case strings.HasPrefix(line, "{"):
		return LineKindStatus
	default:
		return LineKindUnknown
	}
}

// DecodeFrameLine parses a frame record into a ppg.Frame backed by an
// *image.RGBA.
func DecodeFrameLine(line string) (ppg.Frame, error) {
	parts := strings.SplitN(strings.TrimSpace(line), ",", 5)
	if len(parts) != 5 || parts[0] != "F" {
		return ppg.Frame{}, fmt.Errorf("%w: expected 5 fields", ErrMalformedLine)
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return ppg.Frame{}, fmt.Errorf("%w: timestamp: %v", ErrMalformedLine, err)
	}
	w, err := strconv.Atoi(parts[2])
	if err != nil || w <= 0 || w > MaxFrameWidth {
		return ppg.Frame{}, fmt.Errorf("%w: width %q", ErrMalformedLine, parts[2])
	}
	h, err := strconv.Atoi(parts[3])
	if err != nil || h <= 0 || h > MaxFrameHeight {
		return ppg.Frame{}, fmt.Errorf("%w: height %q", ErrMalformedLine, parts[3])
	}
	if want := w * h * 3 * 2; len(parts[4]) != want {
		return ppg.Frame{}, fmt.Errorf("%w: pixel data has %d hex digits, want %d", ErrMalformedLine, len(parts[4]), want)
	}
	rgb, err := hex.DecodeString(parts[4])
	if err != nil {
		return ppg.Frame{}, fmt.Errorf("%w: pixel data: %v", ErrMalformedLine, err)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, j := 0, 0; i < len(rgb); i, j = i+3, j+4 {
		img.Pix[j] = rgb[i]
		img.Pix[j+1] = rgb[i+1]
		img.Pix[j+2] = rgb[i+2]
		img.Pix[j+3] = 0xff
	}
	return ppg.Frame{Image: img, Timestamp: ts}, nil
}

// EncodeFrameLine renders f as a frame record. It is the inverse of
// DecodeFrameLine and is used by fixtures and the mock device.
func EncodeFrameLine(f ppg.Frame) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}
	b := f.Image.Bounds()
	rgb := make([]byte, 0, b.Dx()*b.Dy()*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := f.Image.At(x, y).RGBA()
			rgb = append(rgb, uint8(r>>8), uint8(g>>8), uint8(bl>>8))
		}
	}
	return fmt.Sprintf("F,%d,%d,%d,%s", f.Timestamp, b.Dx(), b.Dy(), hex.EncodeToString(rgb)), nil
}
