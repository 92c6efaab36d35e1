package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/banshee-data/pulse.report/internal/api"
	"github.com/banshee-data/pulse.report/internal/capture"
	"github.com/banshee-data/pulse.report/internal/db"
	"github.com/banshee-data/pulse.report/internal/monitoring"
	"github.com/banshee-data/pulse.report/internal/plotter"
	"github.com/banshee-data/pulse.report/internal/ppg"
	"github.com/banshee-data/pulse.report/internal/publisher"
	"github.com/banshee-data/pulse.report/internal/stream"
	"github.com/banshee-data/pulse.report/internal/timeutil"
)

// mockFrameCount is the number of frames the mock serial device replays
// before looping.
const mockFrameCount = 600

// openSource builds the frame source named by cfg.Source. mux is non-nil
// for serial and disabled sources, which also need Monitor and expose
// admin routes.
func openSource(cfg runConfig) (src capture.Source, mux capture.FrameMuxInterface, err error) {
	clock := timeutil.RealClock{}
	switch cfg.Source {
	case "serial":
		if cfg.Port == "mock" {
			frames := capture.PulseFrames(0, mockFrameCount, cfg.FrameInterval, cfg.SyntheticBPM)
			lines := make([]string, 0, len(frames))
			for _, f := range frames {
				line, err := capture.EncodeFrameLine(f)
				if err != nil {
					return nil, nil, err
				}
				lines = append(lines, line)
			}
			m, _ := capture.NewMockFrameMux(lines, clock, cfg.FrameInterval)
			return m, m, nil
		}
		m, err := capture.NewRealFrameMux(cfg.Port, capture.PortOptions{BaudRate: cfg.Baud})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open camera port: %w", err)
		}
		return m, m, nil
	case "synthetic":
		return capture.NewSyntheticSource(cfg.SyntheticBPM, cfg.FrameInterval, clock), nil, nil
	case "images":
		return &capture.ImageDirSource{
			Dir:      cfg.ImagesDir,
			Interval: cfg.FrameInterval,
			Clock:    clock,
			Loop:     cfg.ImageLoop,
		}, nil, nil
	case "webcam":
		return &capture.WebcamSource{DeviceID: cfg.WebcamDevice, Clock: clock}, nil, nil
	case "disabled":
		m := capture.NewDisabledFrameMux()
		return m, m, nil
	}
	return nil, nil, fmt.Errorf("unknown source %q", cfg.Source)
}

// frameHandler feeds frames to the analyzer, restarting analysis when the
// device clock jumps backwards.
type frameHandler struct {
	analyzer *ppg.Analyzer
	last     int64
	seen     bool
}

// handleFrame processes f. Malformed frames are logged and skipped; any
// other error is returned.
func (h *frameHandler) handleFrame(f ppg.Frame) error {
	if h.seen && f.Timestamp < h.last {
		log.Printf("[pulse] frame clock went backwards (%d after %d), restarting analysis", f.Timestamp, h.last)
		h.analyzer.Reset()
	}
	h.last, h.seen = f.Timestamp, true

	err := h.analyzer.ProcessFrame(f)
	if errors.Is(err, ppg.ErrMalformedFrame) {
		log.Printf("[pulse] skipping frame at %d: %v", f.Timestamp, err)
		return nil
	}
	return err
}

// resultLogger logs finger transitions and every reported heart rate.
type resultLogger struct {
	ppg.NopListener

	mu     sync.Mutex
	finger bool
}

func (l *resultLogger) OnResult(r ppg.Result) {
	l.mu.Lock()
	changed := r.FingerDetected != l.finger
	l.finger = r.FingerDetected
	l.mu.Unlock()

	if changed {
		if r.FingerDetected {
			log.Printf("[pulse] finger detected")
		} else {
			log.Printf("[pulse] finger removed")
		}
	}
	if r.HeartRate > 0 {
		log.Printf("[pulse] heart rate %d bpm (raw %d) sdnn=%dms rmssd=%dms hr_eff=%.2f hrv_eff=%.2f",
			r.HeartRate, r.RawRate, r.SDNN, r.RMSSD, r.HREffective, r.HRVEffective)
	} else {
		monitoring.Debugf("[pulse] result at %d: finger=%v no rate", r.Timestamp, r.FingerDetected)
	}
}

// run wires source, analyzer and sinks and blocks until ctx is done and
// every routine has stopped.
func run(ctx context.Context, cfg runConfig) error {
	monitoring.SetDebug(cfg.Debug)

	analyzerCfg, err := cfg.Tuning.ToAnalyzerConfig()
	if err != nil {
		return fmt.Errorf("invalid tuning: %w", err)
	}

	src, frameMux, err := openSource(cfg)
	if err != nil {
		return err
	}
	if frameMux != nil {
		defer frameMux.Close()
		if err := frameMux.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize device: %w", err)
		}
	}

	database, err := db.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	recorder, err := db.NewRecorder(database, cfg.Source)
	if err != nil {
		return err
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			log.Printf("failed to end session: %v", err)
		}
	}()
	log.Printf("recording session %s", recorder.SessionID())

	hub := api.NewHub()
	defer hub.Close()

	listeners := []ppg.Listener{recorder, hub, &resultLogger{}}

	var pub *publisher.Publisher
	if cfg.GRPCListen != "" {
		pub = publisher.NewPublisher(publisher.Config{ListenAddr: cfg.GRPCListen})
		if err := pub.Start(); err != nil {
			return err
		}
		defer pub.Stop()
		listeners = append(listeners, pub)
	}

	if cfg.NATSURL != "" {
		nc, err := stream.Connect(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer nc.Drain()
		listeners = append(listeners, stream.NewNATSSink(nc, cfg.NATSSubject))
	}

	var opts []ppg.Option
	for _, l := range listeners {
		opts = append(opts, ppg.WithListener(l))
	}

	var wp *plotter.WindowPlotter
	if cfg.PlotDir != "" {
		wp = plotter.NewWindowPlotter(0)
		if err := wp.Start(filepath.Join(cfg.PlotDir, time.Now().Format("20060102_150405"))); err != nil {
			return err
		}
		opts = append(opts, ppg.WithWindowObserver(wp))
	}

	analyzer := ppg.NewAnalyzer(analyzerCfg, opts...)
	defer analyzer.Close()

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Listen, err)
	}

	frames, err := src.Frames(ctx)
	if err != nil {
		ln.Close()
		return fmt.Errorf("failed to start frame source: %w", err)
	}

	var wg sync.WaitGroup

	// run the monitor routine to manage IO on the serial port
	if frameMux != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := frameMux.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("failed to monitor camera port: %v", err)
			}
			log.Print("monitor routine terminated")
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		h := &frameHandler{analyzer: analyzer}
		for {
			select {
			case f, ok := <-frames:
				if !ok {
					log.Print("frame source finished")
					return
				}
				if err := h.handleFrame(f); err != nil {
					log.Printf("error handling frame: %v", err)
				}
			case <-ctx.Done():
				log.Printf("frame routine terminated")
				return
			}
		}
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(database, hub).ServeMux()
		if frameMux != nil {
			frameMux.AttachAdminRoutes(mux)
		}
		database.AttachAdminRoutes(mux)
		mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
			stats := map[string]any{"analyzer": analyzer.Stats()}
			if frameMux != nil {
				stats["capture"] = frameMux.Stats()
			}
			if pub != nil {
				stats["publisher"] = pub.Stats()
			}
			written, failed := recorder.Counts()
			stats["recorder"] = map[string]any{"session_id": recorder.SessionID(), "written": written, "failed": failed}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(stats)
		})

		server := &http.Server{Handler: api.LoggingMiddleware(mux)}
		go func() {
			log.Printf("HTTP server listening on %s", ln.Addr())
			if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
				log.Printf("HTTP server error: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		hub.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()

	if wp != nil {
		wp.Stop()
		n, err := wp.GeneratePlots()
		if err != nil {
			log.Printf("failed to generate plots: %v", err)
		} else {
			log.Printf("wrote %d plots", n)
		}
	}
	return nil
}
