// Package capture owns the frame source and runs detection workers over it,
// publishing the most recent result for the display.
package capture

import (
	"fmt"
	"image"
	"log"
	"sync/atomic"
	"time"

	"github.com/vova616/screenshot"
	"gocv.io/x/gocv"
)

// Source delivers raw BGR frames. Read fills dst and reports success; it is
// never called concurrently by this package. *gocv.VideoCapture satisfies it.
type Source interface {
	Read(dst *gocv.Mat) bool
	Close() error
}

// Camera is a VideoCapture device opened at a fixed frame size.
type Camera struct {
	*gocv.VideoCapture
	Device int
}

// OpenCamera opens device and requests a width x height frame size.
func OpenCamera(device, width, height int) (*Camera, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open camera %d: device not available", device)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	return &Camera{VideoCapture: vc, Device: device}, nil
}

// Size returns the frame size the driver settled on.
func (c *Camera) Size() image.Point {
	return image.Point{
		X: int(c.Get(gocv.VideoCaptureFrameWidth)),
		Y: int(c.Get(gocv.VideoCaptureFrameHeight)),
	}
}

// StaticSource replays one frame forever. Used for still images and tests.
type StaticSource struct {
	frame gocv.Mat

	// Delay is slept inside every Read.
	Delay time.Duration
	// FailEvery makes every n-th read fail when > 0.
	FailEvery int

	reads atomic.Uint64
}

// NewStaticSource clones frame; the caller keeps ownership of its own Mat.
func NewStaticSource(frame gocv.Mat) *StaticSource {
	return &StaticSource{frame: frame.Clone()}
}

func (s *StaticSource) Read(dst *gocv.Mat) bool {
	n := s.reads.Add(1)
	if s.Delay > 0 {
		time.Sleep(s.Delay)
	}
	if s.FailEvery > 0 && n%uint64(s.FailEvery) == 0 {
		return false
	}
	if s.frame.Empty() {
		return false
	}
	s.frame.CopyTo(dst)
	return true
}

// Reads returns how many times Read was called.
func (s *StaticSource) Reads() uint64 {
	return s.reads.Load()
}

func (s *StaticSource) Close() error {
	return s.frame.Close()
}

// ScreenSource grabs frames from a rectangle of the desktop.
type ScreenSource struct {
	rect   image.Rectangle
	logger *log.Logger
}

// NewScreenSource captures rect; an empty rect means the whole primary screen.
func NewScreenSource(rect image.Rectangle, logger *log.Logger) *ScreenSource {
	if logger == nil {
		logger = log.Default()
	}
	return &ScreenSource{rect: rect, logger: logger}
}

func (s *ScreenSource) Read(dst *gocv.Mat) bool {
	var (
		img *image.RGBA
		err error
	)
	if s.rect.Empty() {
		img, err = screenshot.CaptureScreen()
	} else {
		img, err = screenshot.CaptureRect(s.rect)
	}
	if err != nil {
		s.logger.Printf("Capture: screen grab failed: %v", err)
		return false
	}
	mat := ImageToMat(img)
	defer mat.Close()
	mat.CopyTo(dst)
	return true
}

func (s *ScreenSource) Close() error { return nil }

// ImageToMat converts an image to a BGR Mat.
func ImageToMat(img image.Image) gocv.Mat {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)

	rgba, fast := img.(*image.RGBA)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var r, g, bl uint8
			if fast {
				i := rgba.PixOffset(b.Min.X+x, b.Min.Y+y)
				r, g, bl = rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2]
			} else {
				r32, g32, b32, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				r, g, bl = uint8(r32>>8), uint8(g32>>8), uint8(b32>>8)
			}
			mat.SetUCharAt(y, x*3+0, bl)
			mat.SetUCharAt(y, x*3+1, g)
			mat.SetUCharAt(y, x*3+2, r)
		}
	}
	return mat
}
