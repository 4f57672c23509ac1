package calibrate

import (
	"errors"
	"fmt"
	"image"
	"math"

	"hsv-tracker/internal/hsv"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// ErrROIOutOfBounds is returned when the sample rectangle is empty or does not
// fit inside the frame.
var ErrROIOutOfBounds = errors.New("calibration ROI outside frame")

// Mode selects how bounds are derived from the sampled pixels.
type Mode int

const (
	// ModeMinMax uses the per-channel minimum and maximum.
	ModeMinMax Mode = iota
	// ModeSigma uses mean +/- k standard deviations per channel, which
	// ignores a few stray pixels at the ROI edge.
	ModeSigma
)

func (m Mode) String() string {
	switch m {
	case ModeMinMax:
		return "minmax"
	case ModeSigma:
		return "sigma"
	default:
		return "unknown"
	}
}

// ParseMode maps a config string to a Mode; anything unknown is ModeMinMax.
func ParseMode(s string) Mode {
	if s == ModeSigma.String() {
		return ModeSigma
	}
	return ModeMinMax
}

// DefaultROISize is the side of the square sampled by default.
const DefaultROISize = 100

// DefaultROI returns the DefaultROISize square centred in a width x height
// frame, shrunk to fit smaller frames.
func DefaultROI(width, height int) image.Rectangle {
	side := min(DefaultROISize, width, height)
	x := (width - side) / 2
	y := (height - side) / 2
	return image.Rect(x, y, x+side, y+side)
}

// Measure derives threshold bounds from the pixels of a BGR frame inside roi.
// k is the sigma multiplier for ModeSigma and is ignored otherwise.
func Measure(frame gocv.Mat, roi image.Rectangle, mode Mode, k float64) (hsv.Bounds, error) {
	full := image.Rect(0, 0, frame.Cols(), frame.Rows())
	if roi.Empty() || !roi.In(full) {
		return hsv.Bounds{}, fmt.Errorf("%w: roi %v, frame %v", ErrROIOutOfBounds, roi, full.Max)
	}

	crop := frame.Region(roi)
	defer crop.Close()

	hsvCrop := gocv.NewMat()
	defer hsvCrop.Close()
	hsv.Convert(crop, &hsvCrop)

	channels := gocv.Split(hsvCrop)
	defer func() {
		for _, ch := range channels {
			ch.Close()
		}
	}()
	if len(channels) != 3 {
		return hsv.Bounds{}, fmt.Errorf("expected 3 channels, got %d", len(channels))
	}

	var lo, hi [3]int
	for i, ch := range channels {
		switch mode {
		case ModeSigma:
			lo[i], hi[i] = sigmaRange(ch, k)
		default:
			minVal, maxVal, _, _ := gocv.MinMaxLoc(ch)
			lo[i], hi[i] = int(minVal), int(maxVal)
		}
	}

	b := hsv.Bounds{
		HMin: lo[0], HMax: hi[0],
		SMin: lo[1], SMax: hi[1],
		VMin: lo[2], VMax: hi[2],
	}
	return b.Clamp(), nil
}

func sigmaRange(ch gocv.Mat, k float64) (int, int) {
	data := ch.ToBytes()
	values := make([]float64, len(data))
	for i, v := range data {
		values[i] = float64(v)
	}
	mean, std := stat.MeanStdDev(values, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return int(math.Floor(mean - k*std)), int(math.Ceil(mean + k*std))
}
