package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pulse.report/internal/config"
	"github.com/banshee-data/pulse.report/internal/db"
	"github.com/banshee-data/pulse.report/internal/ppg"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func blackImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}

// syncBuffer is a bytes.Buffer safe for concurrent log writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLog(t *testing.T) *syncBuffer {
	t.Helper()
	buf := &syncBuffer{}
	orig := log.Writer()
	log.SetOutput(buf)
	t.Cleanup(func() { log.SetOutput(orig) })
	return buf
}

func testConfig(t *testing.T, source string) runConfig {
	t.Helper()
	return runConfig{
		Listen:        "127.0.0.1:0",
		DBPath:        filepath.Join(t.TempDir(), "pulse.db"),
		Source:        source,
		Port:          "mock",
		FrameInterval: 100 * time.Millisecond,
		SyntheticBPM:  72,
		NATSSubject:   "pulse.results",
		Tuning:        config.DefaultTuningConfig(),
	}
}

func TestHandleFrameSkipsMalformed(t *testing.T) {
	buf := captureLog(t)
	a := ppg.NewAnalyzer(ppg.DefaultConfig())
	defer a.Close()
	h := &frameHandler{analyzer: a}

	assert.NoError(t, h.handleFrame(ppg.Frame{Timestamp: 100}))
	assert.Equal(t, uint64(1), a.Stats().Malformed)
	assert.Contains(t, buf.String(), "skipping frame at 100")
}

func TestHandleFrameResetsOnClockJump(t *testing.T) {
	buf := captureLog(t)
	a := ppg.NewAnalyzer(ppg.DefaultConfig())
	defer a.Close()
	h := &frameHandler{analyzer: a}

	require.NoError(t, h.handleFrame(ppg.Frame{Timestamp: 5000, Image: blackImage()}))
	require.NoError(t, h.handleFrame(ppg.Frame{Timestamp: 200, Image: blackImage()}))

	stats := a.Stats()
	assert.Equal(t, uint64(2), stats.Processed, "frame after the jump is analysed")
	assert.Zero(t, stats.Skipped)
	assert.Contains(t, buf.String(), "went backwards")
}

func TestHandleFrameClosedAnalyzer(t *testing.T) {
	a := ppg.NewAnalyzer(ppg.DefaultConfig())
	a.Close()
	h := &frameHandler{analyzer: a}
	assert.ErrorIs(t, h.handleFrame(ppg.Frame{Timestamp: 1, Image: blackImage()}), ppg.ErrAnalyzerClosed)
}

func TestResultLoggerTransitions(t *testing.T) {
	buf := captureLog(t)
	l := &resultLogger{}

	l.OnResult(ppg.Result{Timestamp: 1})
	assert.Empty(t, buf.String(), "no transition while the finger stays absent")

	l.OnResult(ppg.Result{Timestamp: 2, FingerDetected: true})
	assert.Contains(t, buf.String(), "finger detected")

	l.OnResult(ppg.Result{Timestamp: 3, FingerDetected: true, HeartRate: 66, RawRate: 68, SDNN: 20, RMSSD: 25})
	assert.Contains(t, buf.String(), "heart rate 66 bpm (raw 68)")

	l.OnResult(ppg.Result{Timestamp: 4})
	assert.Contains(t, buf.String(), "finger removed")
}

func TestOpenSource(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		source  string
		port    string
		wantMux bool
		wantErr bool
	}{
		{source: "serial", port: "mock", wantMux: true},
		{source: "serial", port: filepath.Join(dir, "no-such-tty"), wantErr: true},
		{source: "synthetic"},
		{source: "images"},
		{source: "webcam"},
		{source: "disabled", wantMux: true},
		{source: "carrier-pigeon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.source+"/"+tt.port, func(t *testing.T) {
			cfg := testConfig(t, tt.source)
			cfg.Port = tt.port
			cfg.ImagesDir = dir
			src, mux, err := openSource(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, src)
			if tt.wantMux {
				require.NotNil(t, mux)
				assert.NoError(t, mux.Close())
			} else {
				assert.Nil(t, mux)
			}
		})
	}
}

func TestOpenSourceMockReplaysFrames(t *testing.T) {
	cfg := testConfig(t, "serial")
	cfg.FrameInterval = 10 * time.Millisecond
	src, mux, err := openSource(cfg)
	require.NoError(t, err)
	defer mux.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	frames, err := src.Frames(ctx)
	require.NoError(t, err)
	go mux.Monitor(ctx)

	select {
	case f := <-frames:
		assert.NotNil(t, f.Image)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame from the mock device")
	}
}

func TestRunImagesSource(t *testing.T) {
	captureLog(t)
	dir := t.TempDir()
	for i := range 3 {
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("frame_%02d.png", i)))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, blackImage()))
		require.NoError(t, f.Close())
	}

	cfg := testConfig(t, "images")
	cfg.ImagesDir = dir
	cfg.FrameInterval = 150 * time.Millisecond
	cfg.PlotDir = t.TempDir()

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	require.NoError(t, run(ctx, cfg))

	database, err := db.NewDB(cfg.DBPath)
	require.NoError(t, err)
	defer database.Close()

	sessions, err := database.Sessions(0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "images", sessions[0].Source)
	assert.NotNil(t, sessions[0].EndedAt, "session ended on shutdown")

	readings, err := database.Readings(sessions[0].ID, 0)
	require.NoError(t, err)
	assert.Len(t, readings, 3)
	for _, r := range readings {
		assert.False(t, r.Finger)
		assert.Zero(t, r.HeartRate)
	}

	// The plotter has no windows to draw, so only the session directory
	// is created.
	entries, err := os.ReadDir(cfg.PlotDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRunDisabledSource(t *testing.T) {
	buf := captureLog(t)
	cfg := testConfig(t, "disabled")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, run(ctx, cfg))
	assert.Contains(t, buf.String(), "HTTP server routine stopped")
}

func TestRunErrors(t *testing.T) {
	captureLog(t)

	t.Run("bad listen address", func(t *testing.T) {
		cfg := testConfig(t, "disabled")
		cfg.Listen = "not-an-address"
		assert.Error(t, run(context.Background(), cfg))
	})
	t.Run("empty image dir", func(t *testing.T) {
		cfg := testConfig(t, "images")
		cfg.ImagesDir = t.TempDir()
		err := run(context.Background(), cfg)
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "frame source"))
	})
	t.Run("invalid tuning", func(t *testing.T) {
		cfg := testConfig(t, "disabled")
		cfg.Tuning = config.EmptyTuningConfig()
		bad := "cubic"
		cfg.Tuning.FilterStrategy = &bad
		assert.Error(t, run(context.Background(), cfg))
	})
}
