//go:build !gocv

package capture

import (
	"context"
	"errors"

	"github.com/banshee-data/pulse.report/internal/ppg"
	"github.com/banshee-data/pulse.report/internal/timeutil"
)

// WebcamAvailable reports whether this binary was built with OpenCV.
const WebcamAvailable = false

// ErrWebcamUnavailable is returned when the binary was built without the
// gocv tag.
var ErrWebcamUnavailable = errors.New("webcam capture requires building with -tags gocv")

// WebcamSource reads frames from a local camera. This build has no OpenCV
// support.
type WebcamSource struct {
	DeviceID int
	Width    int
	Height   int
	Clock    timeutil.Clock
}

func (s *WebcamSource) Frames(context.Context) (<-chan ppg.Frame, error) {
	return nil, ErrWebcamUnavailable
}
