// Package overlay draws tracking annotations onto BGR frames.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"hsv-tracker/internal/steer"
	"hsv-tracker/internal/track"

	"gocv.io/x/gocv"
)

// Colors used by the overlay.
var (
	ColorTarget = color.RGBA{G: 255, A: 255}
	ColorCenter = color.RGBA{B: 255, A: 255}
	ColorBand   = color.RGBA{R: 255, A: 255}
	ColorWarn   = color.RGBA{R: 255, A: 255}
	ColorROI    = color.RGBA{R: 255, G: 255, A: 255}
)

const (
	lineThickness = 2
	crossArm      = 25
	circleRadius  = 20
)

// statusOrigin is where the status line is written.
var statusOrigin = image.Pt(0, 50)

// Guides draws the vertical centre line and band edges in the full frame
// height, plus the horizontal ones across the full width.
func Guides(frame *gocv.Mat, g steer.Guides) {
	w, h := frame.Cols(), frame.Rows()
	for i, x := range g.VerticalLines() {
		c := ColorBand
		if i == 1 {
			c = ColorCenter
		}
		gocv.Line(frame, image.Pt(x, h), image.Pt(x, 0), c, lineThickness)
	}
	for i, y := range g.HorizontalLines() {
		c := ColorBand
		if i == 1 {
			c = ColorCenter
		}
		gocv.Line(frame, image.Pt(0, y), image.Pt(w, y), c, 1)
	}
}

// Target draws the crosshair, coordinates and bounding box of a detection,
// followed by its status line. Without a detection only the status is drawn.
func Target(frame *gocv.Mat, d track.Detection) {
	if d.Found {
		crosshair(frame, d.Centroid.ImagePoint())
		gocv.Rectangle(frame, d.BoundingBox, ColorTarget, lineThickness)
	}
	Status(frame, d.Status)
}

func crosshair(frame *gocv.Mat, p image.Point) {
	w, h := frame.Cols(), frame.Rows()
	gocv.Circle(frame, p, circleRadius, ColorTarget, lineThickness)

	arm := func(to image.Point) {
		to.X = clamp(to.X, 0, w)
		to.Y = clamp(to.Y, 0, h)
		gocv.Line(frame, p, to, ColorTarget, lineThickness)
	}
	arm(image.Pt(p.X, p.Y-crossArm))
	arm(image.Pt(p.X, p.Y+crossArm))
	arm(image.Pt(p.X-crossArm, p.Y))
	arm(image.Pt(p.X+crossArm, p.Y))

	label := fmt.Sprintf("%d,%d", p.X, p.Y)
	gocv.PutText(frame, label, image.Pt(p.X, p.Y+30), gocv.FontHersheyPlain, 1, ColorTarget, lineThickness)
}

// Status writes the detection status in the top-left corner.
func Status(frame *gocv.Mat, s track.Status) {
	if s == track.StatusTracking {
		gocv.PutText(frame, s.String(), statusOrigin, gocv.FontHersheyComplex, 1, ColorTarget, lineThickness)
		return
	}
	gocv.PutText(frame, s.String(), statusOrigin, gocv.FontHersheyPlain, 2, ColorWarn, lineThickness)
}

// Countdown outlines the calibration ROI and shows the seconds left.
func Countdown(frame *gocv.Mat, roi image.Rectangle, remaining time.Duration) {
	gocv.Rectangle(frame, roi, ColorROI, lineThickness)
	secs := int(remaining.Seconds() + 0.999)
	label := fmt.Sprintf("Calibrating in %d", secs)
	gocv.PutText(frame, label, image.Pt(roi.Min.X, max(roi.Min.Y-10, 15)),
		gocv.FontHersheyPlain, 1.5, ColorROI, lineThickness)
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
