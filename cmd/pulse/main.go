package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/pulse.report/internal/config"
	"github.com/banshee-data/pulse.report/internal/version"
)

var (
	listen        = flag.String("listen", ":8080", "HTTP listen address")
	grpcListen    = flag.String("grpc-listen", "", "gRPC result stream address (empty disables)")
	dbPath        = flag.String("db", "pulse.db", "SQLite database path")
	configFile    = flag.String("config", "", "Tuning config file (.json, .yaml or .yml)")
	source        = flag.String("source", "serial", "Frame source: serial|synthetic|images|webcam|disabled")
	port          = flag.String("port", "/dev/ttyUSB0", "Serial port of the camera (\"mock\" replays synthetic frames)")
	baud          = flag.Int("baud", 0, "Serial baud rate (0 uses the default)")
	imagesDir     = flag.String("images", "", "Directory of frames for -source=images")
	imageInterval = flag.Duration("image-interval", 0, "Frame interval for replayed and synthetic sources (0 uses the tuning config)")
	imageLoop     = flag.Bool("image-loop", false, "Loop the image directory")
	syntheticBPM  = flag.Float64("synthetic-bpm", 72, "Heart rate of the synthetic source")
	webcamDevice  = flag.Int("webcam-device", 0, "Camera index for -source=webcam")
	natsURL       = flag.String("nats", "", "NATS server URL (empty disables)")
	natsSubject   = flag.String("nats-subject", "pulse.results", "NATS subject for results")
	plotDir       = flag.String("plot-dir", "", "Write window and trend plots under this directory on shutdown")
	debugMode     = flag.Bool("debug", false, "Enable debug logging")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

// runConfig is the resolved process configuration.
type runConfig struct {
	Listen        string
	GRPCListen    string
	DBPath        string
	Source        string
	Port          string
	Baud          int
	ImagesDir     string
	FrameInterval time.Duration
	ImageLoop     bool
	SyntheticBPM  float64
	WebcamDevice  int
	NATSURL       string
	NATSSubject   string
	PlotDir       string
	Debug         bool
	Tuning        *config.TuningConfig
}

var validSources = map[string]bool{
	"serial":    true,
	"synthetic": true,
	"images":    true,
	"webcam":    true,
	"disabled":  true,
}

// configFromFlags resolves the parsed flags and the tuning file into a
// runConfig.
func configFromFlags() (runConfig, error) {
	if *listen == "" {
		return runConfig{}, fmt.Errorf("listen address is required")
	}
	if !validSources[*source] {
		return runConfig{}, fmt.Errorf("unknown source %q", *source)
	}
	if *source == "images" && *imagesDir == "" {
		return runConfig{}, fmt.Errorf("-images is required with -source=images")
	}
	if *source == "serial" && *port == "" {
		return runConfig{}, fmt.Errorf("serial port is required")
	}

	tuning := config.DefaultTuningConfig()
	if *configFile != "" {
		var err error
		if tuning, err = config.LoadTuningConfig(*configFile); err != nil {
			return runConfig{}, err
		}
	}

	interval := *imageInterval
	if interval <= 0 {
		interval = tuning.GetReplayInterval()
	}

	return runConfig{
		Listen:        *listen,
		GRPCListen:    *grpcListen,
		DBPath:        *dbPath,
		Source:        *source,
		Port:          *port,
		Baud:          *baud,
		ImagesDir:     *imagesDir,
		FrameInterval: interval,
		ImageLoop:     *imageLoop,
		SyntheticBPM:  *syntheticBPM,
		WebcamDevice:  *webcamDevice,
		NATSURL:       *natsURL,
		NATSSubject:   *natsSubject,
		PlotDir:       *plotDir,
		Debug:         *debugMode,
		Tuning:        tuning,
	}, nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get())
		return
	}

	cfg, err := configFromFlags()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("starting %s", version.Get())
	if err := run(ctx, cfg); err != nil {
		log.Printf("fatal: %v", err)
		os.Exit(1)
	}
	log.Printf("Graceful shutdown complete")
}
