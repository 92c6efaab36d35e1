package ppg

// DefaultMinFrameIntervalMs bounds analysis to at most one frame per 100 ms.
const DefaultMinFrameIntervalMs = 100

// ShouldProcess reports whether a frame arriving at now should be analysed
// given the timestamp of the last analysed frame. Frames arriving sooner
// than minIntervalMs are dropped, never queued.
func ShouldProcess(now, lastProcessed, minIntervalMs int64) bool {
	return now-lastProcessed >= minIntervalMs
}
