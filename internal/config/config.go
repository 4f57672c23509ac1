// Package config holds the tracker's runtime settings. Values come from an
// optional JSON file and may be overridden by command-line flags.
package config

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"time"

	"hsv-tracker/internal/calibrate"
	"hsv-tracker/internal/capture"
	"hsv-tracker/internal/hsv"
	"hsv-tracker/internal/morph"
	"hsv-tracker/internal/track"
)

// Frame sources.
const (
	SourceCamera = "camera"
	SourceScreen = "screen"
)

// Config holds runtime configuration for capture, detection and steering.
type Config struct {
	Verbose bool `json:"verbose"`
	Display bool `json:"display"`

	// Capture
	Source string `json:"source"`
	Device int    `json:"device"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	// Screen capture rectangle; zero size grabs the whole screen.
	ScreenX int `json:"screen_x"`
	ScreenY int `json:"screen_y"`
	ScreenW int `json:"screen_w"`
	ScreenH int `json:"screen_h"`

	Workers          int `json:"workers"`
	ReadTimeoutMs    int `json:"read_timeout_ms"`
	RenderWaitMs     int `json:"render_wait_ms"`
	StatsIntervalSec int `json:"stats_interval_sec"`

	// Detection
	Bounds         hsv.Bounds `json:"bounds"`
	ErodeSize      int        `json:"erode_size"`
	DilateSize     int        `json:"dilate_size"`
	MorphMode      string     `json:"morph_mode"`
	MinArea        float64    `json:"min_area"`
	MaxAreaDivisor float64    `json:"max_area_divisor"`
	MaxRegions     int        `json:"max_regions"`

	// Calibration
	Calibrate          bool    `json:"calibrate"`
	CalibrationSeconds float64 `json:"calibration_seconds"`
	CalibrationMode    string  `json:"calibration_mode"`
	CalibrationSigma   float64 `json:"calibration_sigma"`
	// ROI top-left and side; a zero side selects the centred default.
	ROIX    int `json:"roi_x"`
	ROIY    int `json:"roi_y"`
	ROISize int `json:"roi_size"`

	// Steering
	SerialPort  string `json:"serial_port"`
	BaudRate    int    `json:"baud_rate"`
	Smoothing   bool   `json:"smoothing"`
	OnlyChanges bool   `json:"only_changes"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Verbose:            false,
		Display:            true,
		Source:             SourceCamera,
		Device:             0,
		Width:              640,
		Height:             480,
		Workers:            capture.DefaultWorkers,
		ReadTimeoutMs:      int(capture.DefaultReadTimeout / time.Millisecond),
		RenderWaitMs:       int(capture.DefaultRenderWait / time.Millisecond),
		StatsIntervalSec:   0,
		Bounds:             hsv.FullRange(),
		ErodeSize:          12,
		DilateSize:         8,
		MorphMode:          morph.ModeOpenClose.String(),
		MinArea:            track.DefaultMinArea,
		MaxAreaDivisor:     1.5,
		MaxRegions:         track.DefaultMaxRegions,
		Calibrate:          false,
		CalibrationSeconds: calibrate.DefaultDuration.Seconds(),
		CalibrationMode:    calibrate.ModeMinMax.String(),
		CalibrationSigma:   calibrate.DefaultSigma,
		BaudRate:           9600,
		Smoothing:          true,
		OnlyChanges:        true,
	}
}

// Validate clamps values to safe ranges. It fails only on settings that
// cannot be repaired.
func (c *Config) Validate() error {
	switch c.Source {
	case "":
		c.Source = SourceCamera
	case SourceCamera, SourceScreen:
	default:
		return fmt.Errorf("unknown source %q (want %s or %s)", c.Source, SourceCamera, SourceScreen)
	}
	if c.Width <= 0 {
		c.Width = 640
	}
	if c.Height <= 0 {
		c.Height = 480
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.ReadTimeoutMs <= 0 {
		c.ReadTimeoutMs = int(capture.DefaultReadTimeout / time.Millisecond)
	}
	if c.RenderWaitMs <= 0 {
		c.RenderWaitMs = int(capture.DefaultRenderWait / time.Millisecond)
	}
	if c.StatsIntervalSec < 0 {
		c.StatsIntervalSec = 0
	}
	c.Bounds = c.Bounds.Clamp()
	if c.ErodeSize < 1 {
		c.ErodeSize = 12
	}
	if c.DilateSize < 1 {
		c.DilateSize = 8
	}
	c.MorphMode = morph.ParseMode(c.MorphMode).String()
	if c.MinArea < 0 {
		c.MinArea = track.DefaultMinArea
	}
	if c.MaxAreaDivisor < 1 {
		c.MaxAreaDivisor = 1.5
	}
	if c.MaxRegions <= 0 {
		c.MaxRegions = track.DefaultMaxRegions
	}
	if c.CalibrationSeconds < 0 {
		c.CalibrationSeconds = calibrate.DefaultDuration.Seconds()
	}
	c.CalibrationMode = calibrate.ParseMode(c.CalibrationMode).String()
	if c.CalibrationSigma <= 0 {
		c.CalibrationSigma = calibrate.DefaultSigma
	}
	if c.ROISize < 0 {
		c.ROISize = 0
	}
	if c.BaudRate <= 0 {
		c.BaudRate = 9600
	}
	return nil
}

// Load reads configuration from the given JSON file path. A missing file
// yields DefaultConfig(). Fields absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// MorphParams returns the cleanup stage settings.
func (c *Config) MorphParams() morph.Params {
	return morph.DefaultParams().
		WithSizes(c.ErodeSize, c.DilateSize).
		WithMode(morph.ParseMode(c.MorphMode))
}

// Band returns the candidate selection band. The pipeline sizes it from each
// frame, so a camera or screen delivering another size than Width x Height
// still gets frame area / MaxAreaDivisor.
func (c *Config) Band() track.Band {
	return track.Band{
		MinArea:        c.MinArea,
		MaxAreaDivisor: c.MaxAreaDivisor,
		MaxRegions:     c.MaxRegions,
	}
}

// ScreenRect returns the screen capture rectangle.
func (c *Config) ScreenRect() image.Rectangle {
	return image.Rect(c.ScreenX, c.ScreenY, c.ScreenX+c.ScreenW, c.ScreenY+c.ScreenH)
}

// CalibrationROI returns the sampled rectangle. Zero means the calibrator's
// centred default.
func (c *Config) CalibrationROI() image.Rectangle {
	if c.ROISize == 0 {
		return image.Rectangle{}
	}
	return image.Rect(c.ROIX, c.ROIY, c.ROIX+c.ROISize, c.ROIY+c.ROISize)
}

// CaptureOptions returns coordinator settings; the pipeline options are filled
// from the detection fields.
func (c *Config) CaptureOptions() capture.Options {
	opts := capture.DefaultOptions()
	opts.ReadTimeout = time.Duration(c.ReadTimeoutMs) * time.Millisecond
	opts.RenderWait = time.Duration(c.RenderWaitMs) * time.Millisecond
	opts.StatsInterval = time.Duration(c.StatsIntervalSec) * time.Second
	opts.Pipeline = track.Options{
		Morph:   c.MorphParams(),
		Band:    c.Band(),
		Verbose: c.Verbose,
	}
	return opts
}

// CalibrationOptions returns calibrator settings without a countdown callback.
func (c *Config) CalibrationOptions() calibrate.Options {
	opts := calibrate.DefaultOptions()
	opts.Duration = time.Duration(c.CalibrationSeconds * float64(time.Second))
	opts.Mode = calibrate.ParseMode(c.CalibrationMode)
	opts.Sigma = c.CalibrationSigma
	opts.ROI = c.CalibrationROI()
	return opts
}
