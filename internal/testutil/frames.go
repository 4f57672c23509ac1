// Package testutil provides synthetic frames and masks shared by the
// pipeline tests.
package testutil

import (
	"image"

	"gocv.io/x/gocv"
)

// HSV is a pixel in OpenCV's 8-bit HSV scale.
type HSV struct {
	H, S, V uint8
}

// NewHSVFrame returns a rows x cols 8UC3 HSV Mat filled with bg.
func NewHSVFrame(cols, rows int, bg HSV) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(float64(bg.H), float64(bg.S), float64(bg.V), 0),
		rows, cols, gocv.MatTypeCV8UC3)
}

// FillHSV paints r (clipped to the Mat) with px.
func FillHSV(m *gocv.Mat, r image.Rectangle, px HSV) {
	r = r.Intersect(image.Rect(0, 0, m.Cols(), m.Rows()))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.SetUCharAt(y, x*3+0, px.H)
			m.SetUCharAt(y, x*3+1, px.S)
			m.SetUCharAt(y, x*3+2, px.V)
		}
	}
}

// ToBGR converts an HSV Mat into the BGR frame a camera would deliver.
func ToBGR(hsvFrame gocv.Mat) gocv.Mat {
	bgr := gocv.NewMat()
	gocv.CvtColor(hsvFrame, &bgr, gocv.ColorHSVToBGR)
	return bgr
}

// SquareFrame builds a BGR frame of the given size holding one filled square
// of fg on a bg background.
func SquareFrame(cols, rows int, square image.Rectangle, fg, bg HSV) gocv.Mat {
	hsvFrame := NewHSVFrame(cols, rows, bg)
	defer hsvFrame.Close()
	FillHSV(&hsvFrame, square, fg)
	return ToBGR(hsvFrame)
}

// NewMask returns an all-background 8UC1 mask.
func NewMask(cols, rows int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV8U)
}

// FillMask sets every pixel of r (clipped to the mask) to val.
func FillMask(m *gocv.Mat, r image.Rectangle, val uint8) {
	r = r.Intersect(image.Rect(0, 0, m.Cols(), m.Rows()))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.SetUCharAt(y, x, val)
		}
	}
}

// CountIn returns the number of non-zero mask pixels inside r.
func CountIn(m gocv.Mat, r image.Rectangle) int {
	r = r.Intersect(image.Rect(0, 0, m.Cols(), m.Rows()))
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if m.GetUCharAt(y, x) != 0 {
				n++
			}
		}
	}
	return n
}

// MasksEqual reports whether two masks have identical pixels.
func MasksEqual(a, b gocv.Mat) bool {
	if a.Rows() != b.Rows() || a.Cols() != b.Cols() {
		return false
	}
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(a, b, &diff)
	return gocv.CountNonZero(diff) == 0
}

// IsSubset reports whether every foreground pixel of a is also foreground in b.
func IsSubset(a, b gocv.Mat) bool {
	notB := gocv.NewMat()
	defer notB.Close()
	gocv.BitwiseNot(b, &notB)

	outside := gocv.NewMat()
	defer outside.Close()
	gocv.BitwiseAnd(a, notB, &outside)
	return gocv.CountNonZero(outside) == 0
}
