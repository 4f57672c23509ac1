// Package morph removes speckle noise and fills small holes in binary masks.
package morph

import (
	"image"

	"gocv.io/x/gocv"
)

// Stage applies the configured morphological cleanup to masks in place. It
// owns its structuring elements; call Close when done. A Stage is not safe
// for concurrent use, each worker builds its own.
type Stage struct {
	params Params
	erode  element
	dilate element
}

// element is an n×n rectangle held as a pair of kernels: one for erosion and
// its reflection for dilation. OpenCV anchors every kernel at its centre and
// does not reflect it when dilating, so an even-sized square would drift by a
// pixel per pass. Embedding the square in an odd frame, flush top-left for
// erosion and bottom-right for dilation, makes open and close exact.
type element struct {
	erode  gocv.Mat
	dilate gocv.Mat
}

func newElement(n int) element {
	if n%2 == 1 {
		k := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(n, n))
		return element{erode: k, dilate: k.Clone()}
	}
	return element{
		erode:  paddedSquare(n, 0),
		dilate: paddedSquare(n, 1),
	}
}

// paddedSquare returns an (n+1)×(n+1) kernel with an n×n block of ones at
// offset (off, off).
func paddedSquare(n, off int) gocv.Mat {
	k := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), n+1, n+1, gocv.MatTypeCV8U)
	for y := off; y < off+n; y++ {
		for x := off; x < off+n; x++ {
			k.SetUCharAt(y, x, 1)
		}
	}
	return k
}

func (e element) close() error {
	if err := e.erode.Close(); err != nil {
		return err
	}
	return e.dilate.Close()
}

// NewStage builds filled-rectangle structuring elements for p.
func NewStage(p Params) *Stage {
	p = p.WithSizes(p.ErodeSize, p.DilateSize)
	return &Stage{
		params: p,
		erode:  newElement(p.ErodeSize),
		dilate: newElement(p.DilateSize),
	}
}

// Params returns the parameters the stage was built with.
func (s *Stage) Params() Params {
	return s.params
}

// Apply cleans mask in place.
func (s *Stage) Apply(mask *gocv.Mat) {
	if mask.Empty() {
		return
	}

	switch s.params.Mode {
	case ModeAggressive:
		gocv.Erode(*mask, mask, s.erode.erode)
		gocv.Erode(*mask, mask, s.erode.erode)
		gocv.Dilate(*mask, mask, s.dilate.dilate)
		gocv.Dilate(*mask, mask, s.dilate.dilate)
	default:
		// Open: drop anything the erode element cannot fit inside.
		gocv.Erode(*mask, mask, s.erode.erode)
		gocv.Dilate(*mask, mask, s.erode.dilate)
		// Close: fill holes and gaps smaller than the dilate element.
		gocv.Dilate(*mask, mask, s.dilate.dilate)
		gocv.Erode(*mask, mask, s.dilate.erode)
	}
}

// Close releases the structuring elements.
func (s *Stage) Close() error {
	if err := s.erode.close(); err != nil {
		return err
	}
	return s.dilate.close()
}
