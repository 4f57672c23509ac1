// Package main provides the entry point for the HSV colour tracker.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hsv-tracker/internal/calibrate"
	"hsv-tracker/internal/capture"
	"hsv-tracker/internal/config"
	"hsv-tracker/internal/hsv"
	"hsv-tracker/internal/steer"
	"hsv-tracker/internal/track"
	"hsv-tracker/internal/version"
	"hsv-tracker/ui/display"

	"gocv.io/x/gocv"
)

func main() {
	os.Exit(runTracker())
}

// runTracker returns the process exit code. Fatal paths return instead of
// exiting so deferred cleanup closes the camera, serial port and windows.
func runTracker() int {
	configPath := flag.String("config", "", "Path to JSON config file")
	device := flag.Int("device", 0, "Camera device index")
	screen := flag.Bool("screen", false, "Capture from the screen instead of a camera")
	workers := flag.Int("workers", capture.DefaultWorkers, "Detection workers (1 runs the single-threaded loop)")
	doCalibrate := flag.Bool("calibrate", false, "Sample the object colour before tracking")
	serialPort := flag.String("serial", "", "Serial port for steering commands")
	headless := flag.Bool("headless", false, "Run without windows")
	watch := flag.Bool("watch", false, "Reload bounds when the config file changes")
	verbose := flag.Bool("v", false, "Log the tracked area every frame")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return 0
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting %s", version.String())

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("Config: %v", err)
		return 1
	}

	// Flags given on the command line win over the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Device = *device
		case "screen":
			if *screen {
				cfg.Source = config.SourceScreen
			}
		case "workers":
			cfg.Workers = *workers
		case "calibrate":
			cfg.Calibrate = *doCalibrate
		case "serial":
			cfg.SerialPort = *serialPort
		case "headless":
			cfg.Display = !*headless
		case "v":
			cfg.Verbose = *verbose
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Printf("Config: %v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := openSource(cfg)
	if err != nil {
		log.Printf("Capture: %v", err)
		return 1
	}
	defer src.Close()

	store := hsv.NewBoundsStore(cfg.Bounds)
	guides := steer.NewGuides(cfg.Width, cfg.Height)

	controller, err := openController(cfg, guides)
	if err != nil {
		log.Printf("Steer: %v", err)
		return 1
	}
	if controller != nil {
		defer controller.Close()
	}

	opts := cfg.CaptureOptions()
	if controller != nil {
		opts.OnDetection = func(worker int, seq uint64, d track.Detection) {
			if _, err := controller.Handle(seq, d); err != nil && !errors.Is(err, steer.ErrStale) {
				log.Printf("Steer: worker %d: %v", worker, err)
			}
		}
	}
	coord := capture.NewCoordinator(src, store, opts)
	defer coord.Slot().Close()
	log.Printf("Capture: session %s, source %s, %dx%d, %d worker(s)",
		coord.Session(), cfg.Source, cfg.Width, cfg.Height, cfg.Workers)

	var disp *display.Display
	if cfg.Display {
		disp = display.Open(store, guides)
		defer disp.Close()
	}

	if *watch && *configPath != "" {
		startWatcher(ctx, *configPath, store)
	}

	if cfg.Calibrate {
		if err := runCalibration(ctx, cfg, coord, store, disp); err != nil {
			if errors.Is(err, context.Canceled) {
				return 0
			}
			log.Printf("Calibrate: %v", err)
			return 1
		}
	}

	if err := detect(ctx, cfg, coord, disp); err != nil {
		log.Printf("Capture: worker lifecycle failure: %v", err)
		return 1
	}
	log.Printf("Capture: stopped")
	return 0
}

// openSource opens the configured source and records the frame size it
// delivers in cfg, so the steering guides match the frames.
func openSource(cfg *config.Config) (capture.Source, error) {
	if cfg.Source == config.SourceScreen {
		rect := cfg.ScreenRect()
		if !rect.Empty() {
			cfg.Width, cfg.Height = rect.Dx(), rect.Dy()
		}
		return capture.NewScreenSource(rect, nil), nil
	}
	cam, err := capture.OpenCamera(cfg.Device, cfg.Width, cfg.Height)
	if err != nil {
		return nil, err
	}
	if got := cam.Size(); got.X > 0 && got.Y > 0 && got != image.Pt(cfg.Width, cfg.Height) {
		log.Printf("Capture: camera delivers %dx%d, requested %dx%d", got.X, got.Y, cfg.Width, cfg.Height)
		cfg.Width, cfg.Height = got.X, got.Y
	}
	return cam, nil
}

func openController(cfg *config.Config, guides steer.Guides) (*steer.Controller, error) {
	if cfg.SerialPort == "" {
		return nil, nil
	}
	sink, err := steer.OpenSerial(cfg.SerialPort, cfg.BaudRate)
	if err != nil {
		return nil, err
	}
	var smoother *steer.Smoother
	if cfg.Smoothing {
		smoother = steer.NewSmoother(steer.DefaultSmootherParams())
	}
	c := steer.NewController(guides, smoother, sink, nil)
	c.OnlyChanges = cfg.OnlyChanges
	log.Printf("Steer: sending to %s at %d baud", cfg.SerialPort, cfg.BaudRate)
	return c, nil
}

func startWatcher(ctx context.Context, path string, store *hsv.BoundsStore) {
	w, err := config.NewWatcher(path, 2*time.Second, func(c *config.Config) {
		store.Store(c.Bounds)
	}, nil)
	if err != nil {
		log.Printf("Config: %v", err)
		return
	}
	log.Printf("Config: watching %s", w.Path())
	go w.Run(ctx)
}

func runCalibration(ctx context.Context, cfg *config.Config, coord *capture.Coordinator,
	store *hsv.BoundsStore, disp *display.Display) error {
	opts := cfg.CalibrationOptions()
	if disp != nil {
		opts.Countdown = func(remaining time.Duration, roi image.Rectangle, frame gocv.Mat) {
			disp.ShowCountdown(remaining, roi, frame)
		}
	}
	_, err := calibrate.New(coord, store, opts).Calibrate(ctx)
	return err
}

// detect drives detection until ctx ends or the user quits the display.
func detect(ctx context.Context, cfg *config.Config, coord *capture.Coordinator, disp *display.Display) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Workers == 1 {
		var render func(*capture.Snapshot)
		if disp != nil {
			render = func(s *capture.Snapshot) {
				disp.SyncBounds()
				disp.Show(s)
				if disp.Poll(time.Millisecond) {
					cancel()
				}
			}
		}
		return coord.RunSingle(ctx, render)
	}

	if disp == nil {
		return coord.Run(ctx, cfg.Workers)
	}

	// highgui must stay on the main goroutine; workers run beside it.
	errCh := make(chan error, 1)
	go func() {
		errCh <- coord.Run(ctx, cfg.Workers)
		cancel()
	}()
	if err := disp.Loop(ctx, coord.Slot(), time.Duration(cfg.RenderWaitMs)*time.Millisecond); err != nil &&
		!errors.Is(err, context.Canceled) {
		log.Printf("Display: %v", err)
	}
	cancel()
	return <-errCh
}
