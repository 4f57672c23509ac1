// Package calibrate derives HSV threshold bounds by sampling the colour of an
// object held in a fixed region of the camera view.
package calibrate

import (
	"context"
	"fmt"
	"image"
	"log"
	"time"

	"hsv-tracker/internal/capture"
	"hsv-tracker/internal/hsv"

	"gocv.io/x/gocv"
)

// Defaults for Options.
const (
	DefaultDuration   = 5 * time.Second
	DefaultSigma      = 2.0
	DefaultRetryDelay = 10 * time.Millisecond
)

// FrameReader supplies frames; *capture.Coordinator implements it.
type FrameReader interface {
	AcquireFrame(ctx context.Context) (capture.Frame, error)
}

// Options configures a calibration run.
type Options struct {
	// Duration is how long the countdown runs before sampling.
	Duration time.Duration
	// ROI is the sampled rectangle; the zero value selects DefaultROI for
	// the sampled frame's size.
	ROI  image.Rectangle
	Mode Mode
	// Sigma is the multiplier for ModeSigma.
	Sigma float64
	// Countdown, if set, is called with every frame read during the
	// countdown, typically to draw the ROI and remaining time.
	Countdown  func(remaining time.Duration, roi image.Rectangle, frame gocv.Mat)
	RetryDelay time.Duration
	Logger     *log.Logger
}

// DefaultOptions returns a five second min/max calibration.
func DefaultOptions() Options {
	return Options{
		Duration:   DefaultDuration,
		Mode:       ModeMinMax,
		Sigma:      DefaultSigma,
		RetryDelay: DefaultRetryDelay,
	}
}

// Calibrator samples one frame after a countdown and stores the derived
// bounds.
type Calibrator struct {
	reader FrameReader
	store  *hsv.BoundsStore
	opts   Options
	logger *log.Logger
	now    func() time.Time
}

// New returns a calibrator that writes its result into store.
func New(reader FrameReader, store *hsv.BoundsStore, opts Options) *Calibrator {
	if opts.Duration < 0 {
		opts.Duration = 0
	}
	if opts.Sigma <= 0 {
		opts.Sigma = DefaultSigma
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Calibrator{reader: reader, store: store, opts: opts, logger: logger, now: time.Now}
}

// Calibrate runs the countdown, samples the ROI of the next good frame and
// swaps the result into the bounds store in one step. A failed read during
// the countdown skips that tick; the final read is retried until ctx is done.
func (c *Calibrator) Calibrate(ctx context.Context) (hsv.Bounds, error) {
	deadline := c.now().Add(c.opts.Duration)
	c.logger.Printf("Calibrate: hold the object in the box for %v", c.opts.Duration)

	for {
		remaining := deadline.Sub(c.now())
		if remaining <= 0 {
			break
		}
		f, err := c.reader.AcquireFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return hsv.Bounds{}, ctx.Err()
			}
			c.logger.Printf("Calibrate: %v, retrying", err)
			if err := c.pause(ctx); err != nil {
				return hsv.Bounds{}, err
			}
			continue
		}
		if c.opts.Countdown != nil {
			c.opts.Countdown(remaining, c.roiFor(f.Mat), f.Mat)
		}
		f.Close()
	}

	f, err := c.next(ctx)
	if err != nil {
		return hsv.Bounds{}, err
	}
	defer f.Close()

	roi := c.roiFor(f.Mat)
	b, err := Measure(f.Mat, roi, c.opts.Mode, c.opts.Sigma)
	if err != nil {
		return hsv.Bounds{}, fmt.Errorf("calibrate: %w", err)
	}
	c.store.Store(b)
	c.logger.Printf("Calibrate: %s from %v (%s)", b, roi, c.opts.Mode)
	return b, nil
}

// next reads until a frame arrives or ctx ends.
func (c *Calibrator) next(ctx context.Context) (capture.Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return capture.Frame{}, err
		}
		f, err := c.reader.AcquireFrame(ctx)
		if err == nil {
			return f, nil
		}
		if ctx.Err() != nil {
			return capture.Frame{}, ctx.Err()
		}
		c.logger.Printf("Calibrate: %v, retrying", err)
		if err := c.pause(ctx); err != nil {
			return capture.Frame{}, err
		}
	}
}

// pause waits RetryDelay or until ctx ends.
func (c *Calibrator) pause(ctx context.Context) error {
	t := time.NewTimer(c.opts.RetryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Calibrator) roiFor(frame gocv.Mat) image.Rectangle {
	if !c.opts.ROI.Empty() {
		return c.opts.ROI
	}
	return DefaultROI(frame.Cols(), frame.Rows())
}
