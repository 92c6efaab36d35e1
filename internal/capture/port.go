package capture

import (
	"context"
	"io"

	"github.com/banshee-data/pulse.report/internal/ppg"
)

// Porter is the minimal interface needed for a serial camera link.
type Porter interface {
	io.ReadWriter
	io.Closer
}

// Source produces frames until ctx is cancelled or the source is
// exhausted, then closes the channel.
type Source interface {
	Frames(ctx context.Context) (<-chan ppg.Frame, error)
}
