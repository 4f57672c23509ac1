package hsv

import (
	"gocv.io/x/gocv"
)

// Convert converts a BGR frame to HSV (OpenCV scale: H 0-179, S/V 0-255).
func Convert(frame gocv.Mat, dst *gocv.Mat) {
	gocv.CvtColor(frame, dst, gocv.ColorBGRToHSV)
}

// Threshold writes a binary mask of hsvFrame pixels whose three components
// all lie within b. Foreground is 255, background 0. Inverted channels
// produce an all-background mask.
func Threshold(hsvFrame gocv.Mat, b Bounds, mask *gocv.Mat) {
	gocv.InRangeWithScalar(hsvFrame, b.Lower(), b.Upper(), mask)
}

// Apply converts frame to HSV and thresholds it against b. Both outputs are
// caller-owned buffers so a worker can reuse them across cycles.
func Apply(frame gocv.Mat, b Bounds, hsvFrame, mask *gocv.Mat) {
	Convert(frame, hsvFrame)
	Threshold(*hsvFrame, b, mask)
}
