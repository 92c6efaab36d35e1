//go:build gocv

package capture

import (
	"context"
	"fmt"
	"log"

	"gocv.io/x/gocv"

	"github.com/banshee-data/pulse.report/internal/ppg"
	"github.com/banshee-data/pulse.report/internal/timeutil"
)

// WebcamAvailable reports whether this binary was built with OpenCV.
const WebcamAvailable = true

// WebcamSource reads frames from a local camera through OpenCV. Frames are
// stamped with Clock at the time they are read; pacing is left to the
// device and the analyzer's frame gate.
type WebcamSource struct {
	DeviceID int
	Width    int
	Height   int
	Clock    timeutil.Clock
}

func (s *WebcamSource) Frames(ctx context.Context) (<-chan ppg.Frame, error) {
	cam, err := gocv.OpenVideoCapture(s.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", s.DeviceID, err)
	}
	if s.Width > 0 && s.Height > 0 {
		cam.Set(gocv.VideoCaptureFrameWidth, float64(s.Width))
		cam.Set(gocv.VideoCaptureFrameHeight, float64(s.Height))
	}
	clock := s.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	out := make(chan ppg.Frame)
	go func() {
		defer close(out)
		defer cam.Close()
		mat := gocv.NewMat()
		defer mat.Close()

		for ctx.Err() == nil {
			if ok := cam.Read(&mat); !ok {
				log.Printf("[capture] camera %d closed", s.DeviceID)
				return
			}
			if mat.Empty() {
				continue
			}
			img, err := mat.ToImage()
			if err != nil {
				log.Printf("[capture] convert frame: %v", err)
				continue
			}
			select {
			case out <- ppg.Frame{Image: img, Timestamp: timeutil.UnixMillis(clock)}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
