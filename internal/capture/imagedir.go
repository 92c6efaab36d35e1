package capture

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/webp" // register decoder

	"github.com/banshee-data/pulse.report/internal/ppg"
	"github.com/banshee-data/pulse.report/internal/timeutil"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".webp": true,
}

// ImageDirSource replays the images in Dir in lexical file-name order, one
// per Interval. Frame timestamps advance by exactly Interval from the
// clock's time at the first frame so recorded captures replay
// deterministically.
type ImageDirSource struct {
	Dir      string
	Interval time.Duration
	Clock    timeutil.Clock
	Loop     bool
}

// ListImages returns the decodable image files in dir, sorted by name.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read image dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadImage decodes a single image file.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func (s *ImageDirSource) Frames(ctx context.Context) (<-chan ppg.Frame, error) {
	paths, err := ListImages(s.Dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no images in %s", s.Dir)
	}
	interval := s.Interval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	clock := s.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	out := make(chan ppg.Frame)
	ticker := clock.NewTicker(interval)
	go func() {
		defer close(out)
		defer ticker.Stop()

		start := timeutil.UnixMillis(clock)
		for n := 0; ; n++ {
			if n >= len(paths) && !s.Loop {
				return
			}
			path := paths[n%len(paths)]
			img, err := LoadImage(path)
			if err != nil {
				// Undecodable files become malformed frames so the
				// analyzer accounts for them.
				log.Printf("[capture] %v", err)
			}
			f := ppg.Frame{Image: img, Timestamp: start + int64(n)*interval.Milliseconds()}
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
			select {
			case <-ticker.C():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
